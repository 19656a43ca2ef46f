package main

import (
	"context"
	"os"
	"time"

	"github.com/eventostec/eventostec/controller"
	"github.com/eventostec/eventostec/service"
	"github.com/eventostec/eventostec/store"
	"github.com/flowchartsman/retry"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("ENV") == "dev" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	mongoClient, err := mongo.NewClient(options.Client().ApplyURI(os.Getenv("MONGODB_URI")))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid mongo configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = mongoClient.Connect(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connect failed")
	}
	defer mongoClient.Disconnect(ctx)

	retrier := retry.NewRetrier(5, 100*time.Millisecond, time.Second)
	err = retrier.Run(func() error {
		return mongoClient.Ping(ctx, readpref.Primary())
	})
	if err != nil {
		log.Fatal().Err(err).Msg("mongo unreachable")
	}

	documentStore := store.NewMongoStore(mongoClient)

	calendarService := service.NewCalendarService(documentStore)
	eventService := service.NewEventService(documentStore, calendarService)
	groupService := service.NewGroupService(documentStore)
	userService := service.NewUserService(documentStore)

	webAppController := &controller.WebAppController{
		EventService:    eventService,
		CalendarService: calendarService,
		GroupService:    groupService,
		UserService:     userService,
	}

	if os.Getenv("ENV") != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), controller.RequestLogger(), controller.Authenticate(userService))

	api := r.Group("/api")
	{
		api.GET("/events", webAppController.GetEvents)
		api.POST("/events", webAppController.CreateEvent)
		api.GET("/events/:eid", webAppController.GetEvent)
		api.PATCH("/events/:eid", webAppController.UpdateEvent)
		api.DELETE("/events/:eid", webAppController.DeleteEvent)
		api.POST("/events/:eid/favorite", webAppController.ToggleFavorite)
		api.POST("/events/:eid/registration", webAppController.ToggleRegistration)

		api.GET("/groups", webAppController.GroupsList)
		api.GET("/groups/search", webAppController.SearchGroups)
		api.POST("/groups", webAppController.CreateGroup)
		api.GET("/groups/:gid", webAppController.GetGroup)
		api.PATCH("/groups/:gid", webAppController.UpdateGroup)
		api.DELETE("/groups/:gid", webAppController.DeleteGroup)
		api.PUT("/groups/:gid/admins", webAppController.UpdateAdmins)

		api.GET("/me", webAppController.Me)
		api.GET("/admins", webAppController.AdminList)
		api.GET("/users/:uid", webAppController.GetUser)
		api.PUT("/users/:uid/roles", webAppController.UpdateRoles)

		api.POST("/refresh", webAppController.Refresh)
	}

	err = r.Run(":" + os.Getenv("PORT"))
	if err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
