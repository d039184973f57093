package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jktrn/MemoLanes/internal/infrastructure/http/v1/dto"
)

func (h *Handler) Healthz(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// Readyz succeeds only once the worker intercepts tile requests; clients
// wait on it before adding the tile layer.
func (h *Handler) Readyz(c *gin.Context) {
	resp := dto.WorkerStateResponse{State: h.worker.State().String()}

	if !h.worker.Active() {
		h.RespondWithJSON(c, http.StatusServiceUnavailable, "worker not active", resp)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "worker active", resp)
}
