// Package upstream produces tile bytes for coordinates the cache does not
// hold yet.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jktrn/MemoLanes/internal/tile"
	"github.com/jktrn/MemoLanes/pkg/logger"
)

// ErrTileNotFound means the source answered but has no tile at that address.
var ErrTileNotFound = errors.New("tile not found upstream")

// maxTileBytes caps a single upstream body.
const maxTileBytes = 4 << 20

type Source interface {
	Fetch(ctx context.Context, c tile.Coordinate) ([]byte, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, c tile.Coordinate) ([]byte, error)

func (f SourceFunc) Fetch(ctx context.Context, c tile.Coordinate) ([]byte, error) {
	return f(ctx, c)
}

// HTTPSource fetches {baseURL}/{z}/{x}/{y}.png.
type HTTPSource struct {
	baseURL    string
	userAgent  string
	referer    string
	httpClient *http.Client
	logger     logger.Logger
}

type HTTPConfig struct {
	BaseURL   string
	UserAgent string
	Referer   string
}

func NewHTTPSource(cfg HTTPConfig, client *http.Client, l logger.Logger) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		referer:    cfg.Referer,
		httpClient: client,
		logger:     l,
	}
}

func (s *HTTPSource) URL(c tile.Coordinate) string {
	return fmt.Sprintf("%s/%d/%d/%d.png", s.baseURL, c.Z, c.X, c.Y)
}

func (s *HTTPSource) Fetch(ctx context.Context, c tile.Coordinate) ([]byte, error) {
	upstreamURL := s.URL(c)
	s.logger.Debug("fetching from upstream", "url", upstreamURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, upstreamURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set required headers for OpenStreetMap tile usage policy
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	if s.referer != "" {
		req.Header.Set("Referer", s.referer)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tile from upstream: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrTileNotFound, upstreamURL)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}

	tileData, err := io.ReadAll(io.LimitReader(resp.Body, maxTileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read tile data: %w", err)
	}
	if len(tileData) > maxTileBytes {
		return nil, fmt.Errorf("upstream tile exceeds %d bytes", maxTileBytes)
	}

	s.logger.Debug("fetched tile from upstream", "url", upstreamURL, "size", len(tileData))
	return tileData, nil
}

// FallbackSource asks each source in turn and returns the first success.
// A not-found from every source is reported as ErrTileNotFound.
type FallbackSource struct {
	sources []Source
	logger  logger.Logger
}

func NewFallbackSource(l logger.Logger, sources ...Source) *FallbackSource {
	return &FallbackSource{
		sources: sources,
		logger:  l,
	}
}

func (s *FallbackSource) Fetch(ctx context.Context, c tile.Coordinate) ([]byte, error) {
	if len(s.sources) == 0 {
		return nil, errors.New("no upstream sources configured")
	}

	var notFound, failures []error
	for i, src := range s.sources {
		data, err := src.Fetch(ctx, c)
		if err == nil {
			return data, nil
		}
		if errors.Is(err, ErrTileNotFound) {
			notFound = append(notFound, err)
		} else {
			failures = append(failures, err)
		}
		if ctx.Err() != nil {
			break
		}
		s.logger.Warn("upstream source failed, trying next", "source", i, "tile", c, "error", err)
	}

	if len(failures) > 0 {
		return nil, errors.Join(failures...)
	}
	return nil, errors.Join(notFound...)
}
