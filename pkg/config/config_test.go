package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv("HTTP_SERVER_PORT", "8080")
	t.Setenv("LOGGER_LEVEL", "debug")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTP.Server.Port)
	assert.Equal(t, "sqlite", cfg.Cache.Backend)
	assert.Equal(t, int64(256<<20), cfg.Cache.BudgetBytes)
	assert.Equal(t, 10*time.Second, cfg.Upstream.Timeout)
	assert.Zero(t, cfg.Upstream.RateLimit)
	assert.Equal(t, 4, cfg.Upstream.RateBurst)
	assert.Equal(t, 10*time.Second, cfg.Worker.ActivationTimeout)
	assert.Empty(t, cfg.Passthrough.OriginURL)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestParseFallbackURLs(t *testing.T) {
	t.Setenv("HTTP_SERVER_PORT", "8080")
	t.Setenv("LOGGER_LEVEL", "info")
	t.Setenv("UPSTREAM_FALLBACK_URLS", "https://a.example.com,https://b.example.com")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Upstream.FallbackURLs)
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing port", map[string]string{"LOGGER_LEVEL": "info"}},
		{"unknown backend", map[string]string{"HTTP_SERVER_PORT": "8080", "LOGGER_LEVEL": "info", "CACHE_BACKEND": "memcached"}},
		{"negative budget", map[string]string{"HTTP_SERVER_PORT": "8080", "LOGGER_LEVEL": "info", "CACHE_BUDGET_BYTES": "-1"}},
		{"bad origin", map[string]string{"HTTP_SERVER_PORT": "8080", "LOGGER_LEVEL": "info", "PASSTHROUGH_ORIGIN_URL": "not a url"}},
		{"zero timeout", map[string]string{"HTTP_SERVER_PORT": "8080", "LOGGER_LEVEL": "info", "UPSTREAM_TIMEOUT": "0s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Parse()
			assert.Error(t, err)
		})
	}
}
