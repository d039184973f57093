package handler

import (
	"errors"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"

	"github.com/jktrn/MemoLanes/internal/infrastructure/http/v1/dto"
	"github.com/jktrn/MemoLanes/internal/tile"
)

func (h *Handler) CacheStats(c *gin.Context) {
	s := h.tiles.Stats()

	budget := "unbounded"
	if s.Budget > 0 {
		budget = humanize.IBytes(uint64(s.Budget))
	}

	h.RespondWithJSON(c, http.StatusOK, "cache stats", dto.CacheStatsResponse{
		Entries:    s.Entries,
		Bytes:      s.Bytes,
		Budget:     s.Budget,
		Used:       humanize.IBytes(uint64(s.Bytes)),
		BudgetText: budget,
	})
}

func (h *Handler) ClearCache(c *gin.Context) {
	l := requestLogger(c)

	if err := h.tiles.Clear(c.Request.Context()); err != nil {
		l.Error("failed to clear tile cache", "error", err)
		h.RespondWithInternalServerError(c)
		return
	}

	l.Info("tile cache cleared")
	h.RespondWithJSON(c, http.StatusOK, "cache cleared", nil)
}

func (h *Handler) InvalidateTile(c *gin.Context) {
	l := requestLogger(c)

	var uri dto.TileURI
	if err := c.ShouldBindUri(&uri); err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err := h.validate.Struct(uri); err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, "z, x and y should be non-negative integers", nil)
		return
	}

	coord, err := tile.ParseSegments(uri.Z, uri.X, uri.Y)
	if err != nil {
		msg := "invalid tile address"
		if errors.Is(err, tile.ErrOutOfRange) {
			msg = "tile coordinate out of range"
		}
		h.RespondWithJSON(c, http.StatusBadRequest, msg, nil)
		return
	}

	if err := h.tiles.Invalidate(c.Request.Context(), coord); err != nil {
		l.Error("failed to invalidate tile", "tile", coord, "error", err)
		h.RespondWithInternalServerError(c)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "tile invalidated", gin.H{"tile": coord.String()})
}
