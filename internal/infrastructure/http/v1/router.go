package v1

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jktrn/MemoLanes/internal/infrastructure/http/v1/handler"
	"github.com/jktrn/MemoLanes/internal/tile"
	"github.com/jktrn/MemoLanes/pkg/logger"
	"github.com/jktrn/MemoLanes/pkg/telemetry"
)

const (
	serviceName     = "journey-tiles"
	requestIDHeader = "X-Request-ID"
)

func NewRouter(handler *handler.Handler, l logger.Logger, telemetryEnabled bool) *gin.Engine {
	r := gin.New()

	// Unmatched paths, trailing slashes included, go to the passthrough
	// rather than being redirected.
	r.RedirectTrailingSlash = false

	r.Use(gin.Recovery())

	if telemetryEnabled {
		r.Use(telemetry.GinMiddleware(serviceName, "/api/v1/healthz", "/api/v1/readyz", "/metrics"))
	}

	r.Use(ginZapLogger(l))

	r.GET(tile.PathPrefix+":z/:x/:y", handler.Tile)

	api := r.Group("/api")
	v1 := api.Group("/v1")

	v1.GET("/healthz", handler.Healthz)
	v1.GET("/readyz", handler.Readyz)
	v1.GET("/cache/stats", handler.CacheStats)
	v1.DELETE("/cache", handler.ClearCache)
	v1.DELETE("/cache/:z/:x/:y", handler.InvalidateTile)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.NoRoute(handler.NoRoute)

	return r
}

func ginZapLogger(l logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header(requestIDHeader, requestID)
		c.Set("logger", l)

		start := time.Now()

		c.Next()

		l.Info("request",
			"request_id", requestID,
			"status", c.Writer.Status(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"ip", c.ClientIP(),
			"latency", time.Since(start),
			"size", c.Writer.Size(),
		)
	}
}
