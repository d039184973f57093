package upstream

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/jktrn/MemoLanes/internal/tile"
)

// RateLimitedSource spaces out fetches to an upstream with a usage policy.
type RateLimitedSource struct {
	source  Source
	limiter *rate.Limiter
}

func NewRateLimitedSource(source Source, perSecond float64, burst int) *RateLimitedSource {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedSource{
		source:  source,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (s *RateLimitedSource) Fetch(ctx context.Context, c tile.Coordinate) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("upstream rate limit wait: %w", err)
	}
	return s.source.Fetch(ctx, c)
}
