package http_server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jktrn/MemoLanes/pkg/logger"
)

func TestNewServer(t *testing.T) {
	l := logger.NewNoOpLogger()
	ctx := logger.WithLogger(context.Background(), l)

	var got logger.Logger
	s := NewServer(ctx, testServerConfig, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = logger.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	assert.Equal(t, ":0", s.Addr)
	assert.Equal(t, testServerConfig.ReadTimeout, s.ReadTimeout)

	w := httptest.NewRecorder()
	s.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Same(t, l, got)
}
