package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jktrn/MemoLanes/internal/repository/cache"
	"github.com/jktrn/MemoLanes/internal/tile"
	"github.com/jktrn/MemoLanes/internal/upstream"
	"github.com/jktrn/MemoLanes/pkg/logger"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x01\x00\x00\x00\x01\x00\x08\x06\x00\x00\x00")

type countingSource struct {
	calls atomic.Int32
	fetch func(ctx context.Context, c tile.Coordinate) ([]byte, error)
}

func (s *countingSource) Fetch(ctx context.Context, c tile.Coordinate) ([]byte, error) {
	s.calls.Add(1)
	return s.fetch(ctx, c)
}

func staticSource(data []byte) *countingSource {
	return &countingSource{fetch: func(context.Context, tile.Coordinate) ([]byte, error) {
		return data, nil
	}}
}

func newStore(t *testing.T) *cache.BudgetStore {
	t.Helper()
	s, err := cache.NewBudgetStore(context.Background(), cache.NewMapCache(), 0, logger.NewNoOpLogger())
	require.NoError(t, err)
	return s
}

func TestResolveMissThenHit(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	src := staticSource([]byte("IMG"))
	uc := NewTileUseCase(store, src, time.Second, logger.NewNoOpLogger())
	coord := tile.Coordinate{Z: 4, X: 10, Y: 6}

	res, err := uc.Resolve(ctx, coord)
	require.NoError(t, err)
	assert.Equal(t, []byte("IMG"), res.Data)
	assert.Equal(t, SourceUpstream, res.Source)
	assert.Equal(t, DefaultContentType, res.ContentType)
	assert.Equal(t, int32(1), src.calls.Load())

	stored, err := store.Get(ctx, coord.Key())
	require.NoError(t, err)
	assert.Equal(t, []byte("IMG"), stored)

	res, err = uc.Resolve(ctx, coord)
	require.NoError(t, err)
	assert.Equal(t, []byte("IMG"), res.Data)
	assert.Equal(t, SourceCache, res.Source)
	assert.Equal(t, int32(1), src.calls.Load(), "cache hit must not reach upstream")
}

func TestResolveDetectsImageType(t *testing.T) {
	uc := NewTileUseCase(newStore(t), staticSource(pngHeader), time.Second, logger.NewNoOpLogger())

	res, err := uc.Resolve(context.Background(), tile.Coordinate{})
	require.NoError(t, err)
	assert.Equal(t, "image/png", res.ContentType)
}

func TestResolveCoalescesConcurrentMisses(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	release := make(chan struct{})
	src := &countingSource{fetch: func(context.Context, tile.Coordinate) ([]byte, error) {
		<-release
		return []byte("IMG"), nil
	}}
	uc := NewTileUseCase(store, src, 5*time.Second, logger.NewNoOpLogger())
	coord := tile.Coordinate{Z: 4, X: 10, Y: 6}

	const n = 16
	var wg sync.WaitGroup
	results := make([]Result, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = uc.Resolve(ctx, coord)
		}(i)
	}

	// let every request join the flight before the upstream answers
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, []byte("IMG"), results[i].Data)
	}
	assert.Equal(t, int32(1), src.calls.Load())
	assert.Equal(t, cache.Stats{Entries: 1, Bytes: 3}, store.Stats())
}

func TestResolveUpstreamFailureIsNotCached(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	errBoom := errors.New("boom")
	src := &countingSource{fetch: func(context.Context, tile.Coordinate) ([]byte, error) {
		return nil, errBoom
	}}
	uc := NewTileUseCase(store, src, time.Second, logger.NewNoOpLogger())
	coord := tile.Coordinate{Z: 1, X: 1, Y: 1}

	_, err := uc.Resolve(ctx, coord)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, errBoom)

	var rerr *ResolveError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, coord, rerr.Coord)

	assert.False(t, store.Has(ctx, coord.Key()))

	// no negative caching: the next request tries upstream again
	_, err = uc.Resolve(ctx, coord)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestResolveNotFoundKeepsCause(t *testing.T) {
	src := &countingSource{fetch: func(context.Context, tile.Coordinate) ([]byte, error) {
		return nil, upstream.ErrTileNotFound
	}}
	uc := NewTileUseCase(newStore(t), src, time.Second, logger.NewNoOpLogger())

	_, err := uc.Resolve(context.Background(), tile.Coordinate{})
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, upstream.ErrTileNotFound)
}

func TestResolveTimeout(t *testing.T) {
	store := newStore(t)
	src := &countingSource{fetch: func(ctx context.Context, _ tile.Coordinate) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	uc := NewTileUseCase(store, src, 20*time.Millisecond, logger.NewNoOpLogger())

	start := time.Now()
	_, err := uc.Resolve(context.Background(), tile.Coordinate{Z: 2, X: 1, Y: 1})
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 0, store.Stats().Entries)
}

func TestResolveCallerCancellation(t *testing.T) {
	store := newStore(t)
	release := make(chan struct{})
	src := &countingSource{fetch: func(context.Context, tile.Coordinate) ([]byte, error) {
		<-release
		return []byte("IMG"), nil
	}}
	uc := NewTileUseCase(store, src, 5*time.Second, logger.NewNoOpLogger())
	coord := tile.Coordinate{Z: 3, X: 2, Y: 1}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := uc.Resolve(ctx, coord)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)

	// the abandoned production may still complete, and then writes a whole entry
	close(release)
	require.Eventually(t, func() bool {
		return store.Has(context.Background(), coord.Key())
	}, time.Second, 5*time.Millisecond)
	data, err := store.Get(context.Background(), coord.Key())
	require.NoError(t, err)
	assert.Equal(t, []byte("IMG"), data)
}

// flakyStore fails writes and, optionally, reads.
type flakyStore struct {
	cache.Store
	failGet bool
}

var errQuota = errors.New("quota exceeded")

func (s *flakyStore) Put(context.Context, tile.Key, []byte) error {
	return &cache.StoreError{Op: "put", Err: errQuota}
}

func (s *flakyStore) Get(ctx context.Context, k tile.Key) ([]byte, error) {
	if s.failGet {
		return nil, &cache.StoreError{Op: "get", Key: k, Err: errQuota}
	}
	return s.Store.Get(ctx, k)
}

func TestResolveStoreFailure(t *testing.T) {
	store := &flakyStore{Store: newStore(t)}
	uc := NewTileUseCase(store, staticSource([]byte("IMG")), time.Second, logger.NewNoOpLogger())

	_, err := uc.Resolve(context.Background(), tile.Coordinate{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreFailure)
	assert.ErrorIs(t, err, errQuota)
	assert.True(t, cache.IsStoreError(err))
}

func TestResolveDegradedRead(t *testing.T) {
	ctx := context.Background()
	inner := newStore(t)
	coord := tile.Coordinate{Z: 1, X: 0, Y: 0}
	require.NoError(t, inner.Put(ctx, coord.Key(), []byte("OLD")))

	store := &flakyStore{Store: inner, failGet: true}
	src := staticSource([]byte("NEW"))
	uc := NewTileUseCase(store, src, time.Second, logger.NewNoOpLogger())

	// reads fail, so the tile comes from upstream; the write fails too
	_, err := uc.Resolve(ctx, coord)
	assert.ErrorIs(t, err, ErrStoreFailure)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestInvalidateAndClear(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	src := staticSource([]byte("IMG"))
	uc := NewTileUseCase(store, src, time.Second, logger.NewNoOpLogger())
	a := tile.Coordinate{Z: 1, X: 0, Y: 0}
	b := tile.Coordinate{Z: 1, X: 1, Y: 0}

	for _, c := range []tile.Coordinate{a, b} {
		_, err := uc.Resolve(ctx, c)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, uc.Stats().Entries)

	require.NoError(t, uc.Invalidate(ctx, a))
	assert.False(t, store.Has(ctx, a.Key()))
	assert.True(t, store.Has(ctx, b.Key()))

	require.NoError(t, uc.Clear(ctx))
	assert.Equal(t, 0, uc.Stats().Entries)

	res, err := uc.Resolve(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, SourceUpstream, res.Source)
	assert.Equal(t, int32(3), src.calls.Load())
}
