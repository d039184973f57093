package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/jktrn/MemoLanes/internal/repository/cache"
	"github.com/jktrn/MemoLanes/internal/tile"
	"github.com/jktrn/MemoLanes/internal/upstream"
	"github.com/jktrn/MemoLanes/pkg/logger"
	"github.com/jktrn/MemoLanes/pkg/metrics"
)

const (
	tracerName = "github.com/jktrn/MemoLanes/internal/usecase"

	// DefaultContentType is advertised when the tile bytes are not a
	// recognised image format.
	DefaultContentType = "image/png"
)

var (
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrStoreFailure        = errors.New("tile store failure")
)

// ResolveError is returned by Resolve. Kind is ErrUpstreamUnavailable or
// ErrStoreFailure; Err is the underlying cause.
type ResolveError struct {
	Coord tile.Coordinate
	Kind  error
	Err   error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve tile %s: %v: %v", e.Coord, e.Kind, e.Err)
}

func (e *ResolveError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

type Source string

const (
	SourceCache    Source = "cache"
	SourceUpstream Source = "upstream"
)

type Result struct {
	Data        []byte
	ContentType string
	Source      Source
}

type TileUseCase struct {
	store   cache.Store
	source  upstream.Source
	timeout time.Duration
	group   singleflight.Group
	tracer  trace.Tracer
	logger  logger.Logger
}

func NewTileUseCase(store cache.Store, source upstream.Source, timeout time.Duration, l logger.Logger) *TileUseCase {
	return &TileUseCase{
		store:   store,
		source:  source,
		timeout: timeout,
		tracer:  otel.Tracer(tracerName),
		logger:  l,
	}
}

// Resolve returns the bytes for c, from the cache when present and from the
// upstream source otherwise. Concurrent misses for the same tile share one
// upstream production.
func (uc *TileUseCase) Resolve(ctx context.Context, c tile.Coordinate) (Result, error) {
	ctx, span := uc.tracer.Start(ctx, "TileUseCase.Resolve", trace.WithAttributes(
		attribute.Int("tile.z", c.Z),
		attribute.Int("tile.x", c.X),
		attribute.Int("tile.y", c.Y),
	))
	defer span.End()

	if res, ok := uc.lookup(ctx, c.Key()); ok {
		metrics.CacheHits.Inc()
		span.SetAttributes(attribute.String("tile.source", string(SourceCache)))
		return res, nil
	}
	metrics.CacheMisses.Inc()

	// The production outlives any single waiter: it is bounded by the
	// upstream timeout, not by the context of whoever started it.
	detached := context.WithoutCancel(ctx)
	ch := uc.group.DoChan(string(c.Key()), func() (any, error) {
		return uc.produce(detached, c)
	})

	select {
	case <-ctx.Done():
		err := &ResolveError{Coord: c, Kind: ErrUpstreamUnavailable, Err: ctx.Err()}
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	case r := <-ch:
		if r.Shared {
			metrics.CoalescedRequests.Inc()
		}
		if r.Err != nil {
			span.RecordError(r.Err)
			span.SetStatus(codes.Error, r.Err.Error())
			return Result{}, r.Err
		}
		res := r.Val.(Result)
		span.SetAttributes(attribute.String("tile.source", string(res.Source)))
		return res, nil
	}
}

// lookup is the hit path. A read failure other than a miss is logged and
// treated as a miss so the tile can still be served from upstream.
func (uc *TileUseCase) lookup(ctx context.Context, key tile.Key) (Result, bool) {
	if !uc.store.Has(ctx, key) {
		return Result{}, false
	}

	data, err := uc.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			uc.logger.Warn("cache read failed, resolving from upstream", "key", key, "error", err)
		}
		return Result{}, false
	}

	uc.logger.Debug("cache hit", "key", key, "size", len(data))
	return Result{Data: data, ContentType: detectContentType(data), Source: SourceCache}, true
}

func (uc *TileUseCase) produce(ctx context.Context, c tile.Coordinate) (Result, error) {
	key := c.Key()

	// Another production for this key may have completed between our miss
	// and winning the flight.
	if res, ok := uc.lookup(ctx, key); ok {
		return res, nil
	}

	ctx, span := uc.tracer.Start(ctx, "TileUseCase.produce")
	defer span.End()

	fetchCtx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	start := time.Now()
	data, err := uc.source.Fetch(fetchCtx, c)
	metrics.UpstreamLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		outcome := "error"
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			outcome = "timeout"
		case errors.Is(err, upstream.ErrTileNotFound):
			outcome = "not_found"
		}
		metrics.UpstreamRequests.WithLabelValues(outcome).Inc()
		uc.logger.Warn("upstream production failed", "key", key, "outcome", outcome, "error", err)
		span.RecordError(err)
		return Result{}, &ResolveError{Coord: c, Kind: ErrUpstreamUnavailable, Err: err}
	}
	metrics.UpstreamRequests.WithLabelValues("ok").Inc()

	if err := uc.store.Put(ctx, key, data); err != nil {
		uc.logger.Error("failed to cache tile", "key", key, "error", err)
		span.RecordError(err)
		return Result{}, &ResolveError{Coord: c, Kind: ErrStoreFailure, Err: err}
	}

	uc.logger.Info("tile produced", "key", key, "size", len(data), "duration", time.Since(start))
	return Result{Data: data, ContentType: detectContentType(data), Source: SourceUpstream}, nil
}

// Invalidate drops the cached tile for c, if any.
func (uc *TileUseCase) Invalidate(ctx context.Context, c tile.Coordinate) error {
	uc.logger.Debug("invalidating tile", "key", c.Key())
	return uc.store.Delete(ctx, c.Key())
}

func (uc *TileUseCase) Clear(ctx context.Context) error {
	return uc.store.Clear(ctx)
}

func (uc *TileUseCase) Stats() cache.Stats {
	return uc.store.Stats()
}

func detectContentType(data []byte) string {
	mt := mimetype.Detect(data)
	if strings.HasPrefix(mt.String(), "image/") {
		return mt.String()
	}
	return DefaultContentType
}
