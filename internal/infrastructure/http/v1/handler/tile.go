package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jktrn/MemoLanes/internal/tile"
	"github.com/jktrn/MemoLanes/internal/upstream"
	"github.com/jktrn/MemoLanes/internal/usecase"
	"github.com/jktrn/MemoLanes/pkg/http_server"
	"github.com/jktrn/MemoLanes/pkg/metrics"
)

const tileCacheControl = "public, max-age=604800"

// Tile intercepts GET /journey-tiles-sw/:z/:x/:y.
func (h *Handler) Tile(c *gin.Context) {
	l := requestLogger(c)

	if c.GetHeader(http_server.ProbeHeader) != "" {
		c.Header(http_server.WorkerHeader, http_server.WorkerActive)
		c.Status(http.StatusNoContent)
		return
	}

	if !h.worker.Active() {
		h.passThrough(c, "inactive")
		return
	}

	coord, err := tile.ParseSegments(c.Param("z"), c.Param("x"), c.Param("y"))
	if err != nil {
		l.Debug("not a tile address, passing through", "path", c.Request.URL.Path, "error", err)
		h.passThrough(c, "unparsable")
		return
	}

	res, err := h.tiles.Resolve(c.Request.Context(), coord)
	if err != nil {
		status := resolveStatus(err)
		metrics.InterceptedRequests.WithLabelValues(strconv.Itoa(status)).Inc()
		l.Warn("failed to resolve tile", "tile", coord, "status", status, "error", err)
		_ = c.Error(err)
		c.String(status, http.StatusText(status))
		return
	}

	metrics.InterceptedRequests.WithLabelValues(strconv.Itoa(http.StatusOK)).Inc()

	c.Header("X-Tile-Source", string(res.Source))
	c.Header("Cache-Control", tileCacheControl)
	c.Data(http.StatusOK, res.ContentType, res.Data)
}

// NoRoute hands every request outside the tile template to the default
// network path.
func (h *Handler) NoRoute(c *gin.Context) {
	h.passThrough(c, "unmatched")
}

func (h *Handler) passThrough(c *gin.Context, reason string) {
	metrics.PassthroughRequests.WithLabelValues(reason).Inc()
	h.passthrough.ServeHTTP(c.Writer, c.Request)
}

func resolveStatus(err error) int {
	switch {
	case errors.Is(err, upstream.ErrTileNotFound):
		return http.StatusNotFound
	case errors.Is(err, usecase.ErrStoreFailure):
		return http.StatusServiceUnavailable
	case errors.Is(err, usecase.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
