package http_server

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jktrn/MemoLanes/pkg/config"
	"github.com/jktrn/MemoLanes/pkg/logger"
)

const probePath = "/journey-tiles-sw/0/0/0"

var testServerConfig = config.Server{
	Port:         "0",
	ReadTimeout:  time.Second,
	WriteTimeout: time.Second,
	IdleTimeout:  time.Second,
}

func probeHandler(answerAfter int32) (http.Handler, *atomic.Int32) {
	var probes atomic.Int32
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != probePath || r.Header.Get(ProbeHeader) == "" {
			http.NotFound(w, r)
			return
		}
		if probes.Add(1) <= answerAfter {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set(WorkerHeader, WorkerActive)
		w.WriteHeader(http.StatusNoContent)
	}), &probes
}

func TestRegistrarLifecycle(t *testing.T) {
	ctx := context.Background()
	h, probes := probeHandler(2)
	r := NewRegistrar(ctx, testServerConfig, h, probePath, logger.NewNoOpLogger())

	require.Empty(t, r.Addr())
	require.NoError(t, r.Register(ctx))
	addr := r.Addr()
	require.NotEmpty(t, addr)

	// registering twice keeps the running server
	require.NoError(t, r.Register(ctx))
	assert.Equal(t, addr, r.Addr())

	confirmCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, r.Confirm(confirmCtx))
	assert.Equal(t, int32(3), probes.Load(), "confirm retries until the worker answers")

	require.NoError(t, r.Unregister(ctx))
	assert.Empty(t, r.Addr())
	require.NoError(t, r.Unregister(ctx), "unregister is idempotent")

	_, err := http.Get("http://" + loopback(addr) + probePath)
	assert.Error(t, err, "server must be gone after unregister")

	// a fresh server comes up on re-register
	require.NoError(t, r.Register(ctx))
	t.Cleanup(func() { _ = r.Unregister(context.Background()) })
	require.NoError(t, r.Confirm(confirmCtx))
}

func TestRegistrarConfirmTimesOut(t *testing.T) {
	ctx := context.Background()
	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r := NewRegistrar(ctx, testServerConfig, h, probePath, logger.NewNoOpLogger())
	require.NoError(t, r.Register(ctx))
	t.Cleanup(func() { _ = r.Unregister(context.Background()) })

	confirmCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	err := r.Confirm(confirmCtx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errNotActive) || errors.Is(err, context.DeadlineExceeded), err.Error())
}

func TestRegistrarConfirmBeforeRegister(t *testing.T) {
	h, _ := probeHandler(0)
	r := NewRegistrar(context.Background(), testServerConfig, h, probePath, logger.NewNoOpLogger())
	assert.Error(t, r.Confirm(context.Background()))
}

func TestRegistrarListenFailure(t *testing.T) {
	cfg := testServerConfig
	cfg.Port = "99999"
	h, _ := probeHandler(0)
	r := NewRegistrar(context.Background(), cfg, h, probePath, logger.NewNoOpLogger())
	assert.Error(t, r.Register(context.Background()))
	assert.Empty(t, r.Addr())
}

func TestLoopback(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"[::]:8080", "127.0.0.1:8080"},
		{"0.0.0.0:8080", "127.0.0.1:8080"},
		{":8080", "127.0.0.1:8080"},
		{"127.0.0.1:8080", "127.0.0.1:8080"},
		{"10.0.0.5:80", "10.0.0.5:80"},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.want, loopback(tt.addr))
		})
	}
}
