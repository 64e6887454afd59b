package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/qs-lzh/cineportal/internal/app"
	"github.com/qs-lzh/cineportal/internal/service"
	"github.com/qs-lzh/cineportal/internal/service/domain"
)

// UserIDHeader carries the caller's identity, set by the authenticating
// proxy in front of this service.
const UserIDHeader = "X-User-ID"

type CatalogHandler struct {
	app *app.App
	now func() time.Time
}

func NewCatalogHandler(app *app.App) *CatalogHandler {
	return &CatalogHandler{
		app: app,
		now: time.Now,
	}
}

func RegisterRoutes(r gin.IRouter, h *CatalogHandler) {
	movies := r.Group("/movies")
	movies.GET("", h.HandleListMovies)
	movies.GET("/filter", h.HandleFilter)
	movies.GET("/dropdowns", h.HandleDropdowns)
	movies.GET("/:id", h.HandleGetMovie)
	movies.POST("", h.HandleCreateMovie)
	movies.PUT("/:id", h.HandleUpdateMovie)

	me := r.Group("/me")
	me.GET("/movies", h.HandleMyMovies)
	me.GET("/movies/:id/watch", h.HandleWatch)
}

type MovieRequest struct {
	domain.MovieFields
	ActorIDs []uint `json:"actor_ids"`
}

func (h *CatalogHandler) HandleListMovies(ctx *gin.Context) {
	entries, err := h.app.CatalogQueryService.ListMovies(ctx.Request.Context())
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(200, entries)
}

func (h *CatalogHandler) HandleFilter(ctx *gin.Context) {
	entries, err := h.app.CatalogQueryService.Filter(ctx.Request.Context(), ctx.Query("searchString"))
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(200, entries)
}

func (h *CatalogHandler) HandleDropdowns(ctx *gin.Context) {
	data, err := h.app.CatalogManager.GetDropdownReferenceData(ctx.Request.Context())
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(200, data)
}

func (h *CatalogHandler) HandleGetMovie(ctx *gin.Context) {
	id, ok := movieID(ctx)
	if !ok {
		return
	}
	detail, err := h.app.CatalogQueryService.GetMovie(ctx.Request.Context(), id)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(200, detail)
}

func (h *CatalogHandler) HandleCreateMovie(ctx *gin.Context) {
	var req MovieRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(400, gin.H{
			"error":  "Invalid request format",
			"detail": err.Error(),
		})
		return
	}

	id, err := h.app.CatalogManager.CreateMovie(ctx.Request.Context(), req.MovieFields, req.ActorIDs)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(201, gin.H{"id": id})
}

func (h *CatalogHandler) HandleUpdateMovie(ctx *gin.Context) {
	id, ok := movieID(ctx)
	if !ok {
		return
	}
	var req MovieRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(400, gin.H{
			"error":  "Invalid request format",
			"detail": err.Error(),
		})
		return
	}

	if err := h.app.CatalogManager.UpdateMovie(ctx.Request.Context(), id, req.MovieFields, req.ActorIDs); err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(200, gin.H{"message": "Movie updated successfully"})
}

func (h *CatalogHandler) HandleMyMovies(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	movies, err := h.app.CatalogQueryService.ListPurchasedMovies(ctx.Request.Context(), userID)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(200, movies)
}

func (h *CatalogHandler) HandleWatch(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := movieID(ctx)
	if !ok {
		return
	}

	access, err := h.app.EntitlementService.CanWatch(ctx.Request.Context(), userID, id, h.now())
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	if !access.Granted {
		ctx.JSON(403, gin.H{
			"error":   "Access denied",
			"message": "You do not have access to this movie or it has expired",
		})
		return
	}
	ctx.JSON(200, access.Watch)
}

func (h *CatalogHandler) writeError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		ctx.JSON(404, gin.H{
			"error":   "Not found",
			"message": err.Error(),
		})
	case errors.Is(err, service.ErrReference), errors.Is(err, service.ErrValidation):
		ctx.JSON(422, gin.H{
			"error":   "Invalid movie",
			"message": err.Error(),
		})
	default:
		h.app.Logger.Error("request failed",
			zap.String("method", ctx.Request.Method),
			zap.String("path", ctx.FullPath()),
			zap.Error(err),
		)
		ctx.JSON(500, gin.H{
			"error":   "Internal server error",
			"message": "Something went wrong, please try again later",
		})
	}
}

func movieID(ctx *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil || id == 0 {
		ctx.JSON(400, gin.H{
			"error":  "Invalid movie id",
			"detail": ctx.Param("id"),
		})
		return 0, false
	}
	return uint(id), true
}

func currentUser(ctx *gin.Context) (string, bool) {
	userID := ctx.GetHeader(UserIDHeader)
	if userID == "" {
		ctx.JSON(401, gin.H{
			"error":   "Unauthorized",
			"message": "Please sign in to see your movies",
		})
		return "", false
	}
	return userID, true
}
