package controller

import (
	"errors"
	"net/http"
	"reflect"
	"time"

	"github.com/eventostec/eventostec/entity"
	"github.com/eventostec/eventostec/service"
	"github.com/eventostec/eventostec/store"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/schema"
	"github.com/rs/zerolog/log"
)

type WebAppController struct {
	EventService    *service.EventService
	CalendarService *service.CalendarService
	GroupService    *service.GroupService
	UserService     *service.UserService
}

var decoder = schema.NewDecoder()

func init() {
	decoder.IgnoreUnknownKeys(true)
	decoder.RegisterConverter(time.Time{}, func(value string) reflect.Value {
		t, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return reflect.Value{}
		}
		return reflect.ValueOf(t)
	})
}

func respondError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUnauthorized):
		ctx.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, service.ErrAlreadyExists):
		ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrTooManyConflicts):
		ctx.JSON(http.StatusConflict, gin.H{"error": "too much contention, retry later"})
	default:
		log.Error().Err(err).Str("path", ctx.FullPath()).Msgf("Error:")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

type eventsQuery struct {
	Start time.Time          `schema:"start"`
	End   time.Time          `schema:"end"`
	Areas []string           `schema:"areas"`
	Types []entity.EventType `schema:"types"`
}

// GetEvents serves the calendar range query:
// GET /api/events?start=...&end=...&areas=ING&types=Taller
func (c *WebAppController) GetEvents(ctx *gin.Context) {
	var query eventsQuery
	if err := decoder.Decode(&query, ctx.Request.URL.Query()); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if query.Start.IsZero() || query.End.IsZero() {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "start and end are required RFC3339 timestamps"})
		return
	}

	filter := &service.CalendarFilter{Areas: query.Areas, Types: query.Types}
	summaries, err := c.CalendarService.GetEvents(ctx.Request.Context(), query.Start, query.End, filter)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, summaries)
}

func (c *WebAppController) GetEvent(ctx *gin.Context) {
	force := ctx.Query("force") == "true"
	event, err := c.EventService.GetEvent(ctx.Request.Context(), ctx.Param("eid"), force)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, event)
}

func (c *WebAppController) CreateEvent(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}

	var draft entity.Event
	if err := ctx.ShouldBindJSON(&draft); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event, err := c.EventService.CreateEvent(ctx.Request.Context(), actor, draft)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, event)
}

func (c *WebAppController) UpdateEvent(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}

	var patch entity.EventPatch
	if err := ctx.ShouldBindJSON(&patch); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event, err := c.EventService.UpdateEvent(ctx.Request.Context(), actor, ctx.Param("eid"), patch)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, event)
}

func (c *WebAppController) DeleteEvent(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}

	if err := c.EventService.DeleteEvent(ctx.Request.Context(), actor, ctx.Param("eid")); err != nil {
		respondError(ctx, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (c *WebAppController) ToggleFavorite(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}

	favorite, err := c.EventService.ToggleFavorite(ctx.Request.Context(), actor, ctx.Param("eid"))
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"favorite": favorite})
}

func (c *WebAppController) ToggleRegistration(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}

	registered, err := c.EventService.ToggleRegistration(ctx.Request.Context(), actor, ctx.Param("eid"))
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"registered": registered})
}

func (c *WebAppController) CreateGroup(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}

	var group entity.Group
	if err := ctx.ShouldBindJSON(&group); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := c.GroupService.CreateGroup(ctx.Request.Context(), actor, group)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, created)
}

func (c *WebAppController) UpdateGroup(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}

	var patch entity.GroupPatch
	if err := ctx.ShouldBindJSON(&patch); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	group, err := c.GroupService.UpdateGroup(ctx.Request.Context(), actor, ctx.Param("gid"), patch)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, group)
}

func (c *WebAppController) DeleteGroup(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}

	if err := c.GroupService.DeleteGroup(ctx.Request.Context(), actor, ctx.Param("gid")); err != nil {
		respondError(ctx, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (c *WebAppController) GetGroup(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}

	force := ctx.Query("force") == "true"
	group, err := c.GroupService.GetGroup(ctx.Request.Context(), actor, ctx.Param("gid"), force)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, group)
}

func (c *WebAppController) GroupsList(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}

	force := ctx.Query("force") == "true"
	list, err := c.GroupService.GroupsList(ctx.Request.Context(), actor, force)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, list)
}

func (c *WebAppController) SearchGroups(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}

	matches, err := c.GroupService.SearchGroups(ctx.Request.Context(), actor, ctx.Query("q"))
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, matches)
}

type adminsUpdate struct {
	Remove []string `json:"remove"`
	Add    []string `json:"add"`
}

func (c *WebAppController) UpdateAdmins(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}

	var body adminsUpdate
	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := c.GroupService.UpdateAdmins(ctx.Request.Context(), actor, ctx.Param("gid"), body.Remove, body.Add)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (c *WebAppController) Me(ctx *gin.Context) {
	user, ok := ctx.Get(userKey)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	ctx.JSON(http.StatusOK, user)
}

func (c *WebAppController) GetUser(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}

	force := ctx.Query("force") == "true"
	user, err := c.UserService.GetUser(ctx.Request.Context(), actor, ctx.Param("uid"), force)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, user)
}

func (c *WebAppController) AdminList(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}

	force := ctx.Query("force") == "true"
	list, err := c.UserService.AdminList(ctx.Request.Context(), actor, force)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, list)
}

type rolesUpdate struct {
	Remove []string `json:"remove"`
	Add    []string `json:"add"`
}

func (c *WebAppController) UpdateRoles(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}

	var body rolesUpdate
	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := c.UserService.UpdateRoles(ctx.Request.Context(), actor, ctx.Param("uid"), body.Remove, body.Add)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, user)
}

// Refresh drops the calendar cache so the next range query refetches.
func (c *WebAppController) Refresh(ctx *gin.Context) {
	c.CalendarService.Refresh()
	ctx.Status(http.StatusNoContent)
}
