package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"

	v1 "github.com/jktrn/MemoLanes/internal/infrastructure/http/v1"
	"github.com/jktrn/MemoLanes/internal/infrastructure/http/v1/handler"
	"github.com/jktrn/MemoLanes/internal/repository/cache"
	"github.com/jktrn/MemoLanes/internal/tile"
	"github.com/jktrn/MemoLanes/internal/upstream"
	"github.com/jktrn/MemoLanes/internal/usecase"
	"github.com/jktrn/MemoLanes/internal/worker"
	"github.com/jktrn/MemoLanes/pkg/config"
	"github.com/jktrn/MemoLanes/pkg/http_server"
	"github.com/jktrn/MemoLanes/pkg/logger"
	"github.com/jktrn/MemoLanes/pkg/telemetry"
)

func Run(cfg *config.Config, version string) {
	l := logger.NewZapLogger(cfg.Logger)
	defer l.Sync()

	l.Info("starting journey tiles", "version", version)
	l.Debug("app config", "cfg", cfg)

	ctx := logger.WithLogger(context.Background(), l)

	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err := telemetry.InitTracer(telemetry.Config{
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: cfg.Telemetry.ServiceVersion,
			Environment:    cfg.Telemetry.Environment,
			OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		}, l)
		if err != nil {
			l.Fatal("failed to initialize telemetry", "error", err)
		}
		defer func() {
			if err := shutdownTelemetry(context.Background()); err != nil {
				l.Error("failed to shutdown telemetry", "error", err)
			}
		}()
		l.Info("telemetry initialized", "service", cfg.Telemetry.ServiceName)
	}

	store, err := cache.NewStore(ctx, cfg, l)
	if err != nil {
		l.Fatal("failed to initialize tile cache", "error", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			l.Error("failed to close tile cache", "error", err)
		}
	}()

	tileUseCase := usecase.NewTileUseCase(store, newUpstream(cfg, l), cfg.Upstream.Timeout, l)

	passthrough, err := handler.NewPassthrough(cfg.Passthrough.OriginURL, l)
	if err != nil {
		l.Fatal("failed to initialize passthrough", "error", err)
	}

	// The handler gates on the manager, and the manager's registrar serves
	// the router built from the handler.
	gate := &managerGate{}
	h := handler.NewHandler(validator.New(), tileUseCase, gate, passthrough)
	router := v1.NewRouter(h, l, cfg.Telemetry.Enabled)

	registrar := http_server.NewRegistrar(ctx, cfg.HTTP.Server, router, tile.Coordinate{}.Path(), l)
	manager := worker.NewManager(registrar, cfg.Worker.ActivationTimeout, l)
	gate.Manager = manager

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	readiness := manager.Initialize(ctx)
	select {
	case <-readiness.Done():
	case <-quit:
		l.Info("received shutdown signal during registration")
		return
	}
	if err := readiness.Err(); err != nil {
		l.Error("worker failed to activate", "error", err)
		return
	}

	l.Info("tile layer ready",
		"template", tile.PathPrefix+"{z}/{x}/{y}",
		"address", registrar.Addr(),
		"cache", store.Stats(),
	)

	<-quit
	l.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := manager.Teardown(shutdownCtx); err != nil {
		l.Error("worker teardown failed", "error", err)
	}

	l.Info("application shutdown completed")
}

type managerGate struct {
	*worker.Manager
}

func newUpstream(cfg *config.Config, l logger.Logger) upstream.Source {
	client := &http.Client{Timeout: cfg.Upstream.Timeout}

	sources := make([]upstream.Source, 0, 1+len(cfg.Upstream.FallbackURLs))
	for _, u := range append([]string{cfg.Upstream.TileServerURL}, cfg.Upstream.FallbackURLs...) {
		var src upstream.Source = upstream.NewHTTPSource(upstream.HTTPConfig{
			BaseURL:   u,
			UserAgent: cfg.Upstream.UserAgent,
			Referer:   cfg.Upstream.Referer,
		}, client, l)
		if cfg.Upstream.RateLimit > 0 {
			src = upstream.NewRateLimitedSource(src, cfg.Upstream.RateLimit, cfg.Upstream.RateBurst)
		}
		sources = append(sources, src)
	}

	if len(sources) == 1 {
		return sources[0]
	}
	return upstream.NewFallbackSource(l, sources...)
}
