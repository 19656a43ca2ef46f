package controller

import (
	"net/http"
	"time"

	"github.com/eventostec/eventostec/entity"
	"github.com/eventostec/eventostec/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	actorKey = "actor"
	userKey  = "user"
)

// Authenticate resolves the identity headers set by the upstream auth proxy
// into an explicit Actor for the request. Missing headers leave the request
// anonymous; the services decide what anonymous callers may do. First
// sign-ins materialize the user document.
func Authenticate(userService *service.UserService) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		uid := ctx.GetHeader("X-Auth-Uid")
		if uid == "" {
			ctx.Set(actorKey, entity.Actor{})
			ctx.Next()
			return
		}

		user, err := userService.FindOrCreate(
			ctx.Request.Context(),
			uid,
			ctx.GetHeader("X-Auth-Fname"),
			ctx.GetHeader("X-Auth-Lname"),
			ctx.GetHeader("X-Auth-Email"),
		)
		if err != nil {
			log.Error().Err(err).Str("uid", uid).Msgf("Error resolving actor:")
			ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		ctx.Set(actorKey, entity.ActorFromUser(user))
		ctx.Set(userKey, user)
		ctx.Next()
	}
}

func actorFrom(ctx *gin.Context) entity.Actor {
	value, ok := ctx.Get(actorKey)
	if !ok {
		return entity.Actor{}
	}

	actor, ok := value.(entity.Actor)
	if !ok {
		return entity.Actor{}
	}
	return actor
}

// requireActor aborts with 401 when the request carries no identity.
func requireActor(ctx *gin.Context) (entity.Actor, bool) {
	actor := actorFrom(ctx)
	if !actor.IsAuthenticated() {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return entity.Actor{}, false
	}

	return actor, true
}

// RequestLogger logs every request with zerolog, error level tracking the
// response class.
func RequestLogger() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		event := log.Info()
		switch {
		case ctx.Writer.Status() >= http.StatusInternalServerError:
			event = log.Error()
		case ctx.Writer.Status() >= http.StatusBadRequest:
			event = log.Warn()
		}

		event.
			Str("method", ctx.Request.Method).
			Str("url", ctx.Request.URL.String()).
			Int("status", ctx.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("API request:")
	}
}
