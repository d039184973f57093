package upstream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jktrn/MemoLanes/internal/tile"
)

func TestRateLimitedSource(t *testing.T) {
	calls := 0
	src := NewRateLimitedSource(SourceFunc(func(context.Context, tile.Coordinate) ([]byte, error) {
		calls++
		return []byte("IMG"), nil
	}), 20, 1)

	start := time.Now()
	for i := 0; i < 3; i++ {
		data, err := src.Fetch(context.Background(), tile.Coordinate{})
		require.NoError(t, err)
		assert.Equal(t, []byte("IMG"), data)
	}
	assert.Equal(t, 3, calls)
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond, "two waits of 50ms after the initial burst")
}

func TestRateLimitedSourceHonoursDeadline(t *testing.T) {
	calls := 0
	src := NewRateLimitedSource(SourceFunc(func(context.Context, tile.Coordinate) ([]byte, error) {
		calls++
		return []byte("IMG"), nil
	}), 0.1, 1)

	_, err := src.Fetch(context.Background(), tile.Coordinate{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = src.Fetch(ctx, tile.Coordinate{})
	assert.Error(t, err)
	assert.Equal(t, 1, calls, "a fetch that cannot get a token must not reach upstream")
}
