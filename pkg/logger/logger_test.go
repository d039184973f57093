package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jktrn/MemoLanes/pkg/config"
)

func TestFromContext(t *testing.T) {
	l := NewNoOpLogger()
	ctx := WithLogger(context.Background(), l)

	assert.Same(t, l, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}

func TestToZapLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"nonsense", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, toZapLevel(tt.in))
		})
	}
}

func TestZapLoggerKeyValues(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewZapLoggerFrom(zap.New(core))

	l.Info("tile resolved", "z", 4, "x", 10, "y", 6)
	l.Debug("cache lookup", "key", "4/10/6")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "tile resolved", entries[0].Message)
	assert.Equal(t, int64(10), entries[0].ContextMap()["x"])
	assert.Equal(t, "4/10/6", entries[1].ContextMap()["key"])
}

func TestNewZapLogger(t *testing.T) {
	l := NewZapLogger(config.Logger{Level: "error"})
	require.NotNil(t, l)
	l.Info("suppressed")
}
