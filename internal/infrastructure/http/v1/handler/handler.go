package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/jktrn/MemoLanes/internal/repository/cache"
	"github.com/jktrn/MemoLanes/internal/tile"
	"github.com/jktrn/MemoLanes/internal/usecase"
	"github.com/jktrn/MemoLanes/internal/worker"
	"github.com/jktrn/MemoLanes/pkg/logger"
)

const (
	internalServerErrorText = "the server encountered an error and could not process your request"
)

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type TileService interface {
	Resolve(ctx context.Context, c tile.Coordinate) (usecase.Result, error)
	Invalidate(ctx context.Context, c tile.Coordinate) error
	Clear(ctx context.Context) error
	Stats() cache.Stats
}

// Worker reports whether interception is live.
type Worker interface {
	State() worker.State
	Active() bool
}

type Handler struct {
	validate    *validator.Validate
	tiles       TileService
	worker      Worker
	passthrough http.Handler
}

func NewHandler(v *validator.Validate, tiles TileService, w Worker, passthrough http.Handler) *Handler {
	return &Handler{
		validate:    v,
		tiles:       tiles,
		worker:      w,
		passthrough: passthrough,
	}
}

func (h *Handler) RespondWithInternalServerError(c *gin.Context) {
	h.RespondWithJSON(c, http.StatusInternalServerError, internalServerErrorText, nil)
}

func (h *Handler) RespondWithJSON(c *gin.Context, code int, message string, data any) {
	success := code < 400

	r := response{
		Success: success,
		Message: message,
		Data:    data,
	}

	c.JSON(code, r)
}

func requestLogger(c *gin.Context) logger.Logger {
	if v, ok := c.Get("logger"); ok {
		if l, ok := v.(logger.Logger); ok {
			return l
		}
	}
	return logger.FromContext(c.Request.Context())
}
