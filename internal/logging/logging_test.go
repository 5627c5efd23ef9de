// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package logging

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNewLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "veragate.log")

	l, closeLog, err := NewLogger("info", path)
	require.NoError(t, err)
	l.Debug("hidden")
	l.Info("run started", zap.String("run_id", "r1"))
	require.NoError(t, closeLog())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `"msg":"run started"`)
	assert.Contains(t, out, `"run_id":"r1"`)
	assert.False(t, strings.Contains(out, "hidden"))
}

func TestNewLoggerCloseReleasesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "veragate.log")

	l, closeLog, err := NewLogger("info", path)
	require.NoError(t, err)
	l.Info("first")
	require.NoError(t, closeLog())
	require.NoError(t, closeLog(), "close is idempotent")

	// A second logger appends to the same file after the first is closed.
	l2, closeLog2, err := NewLogger("info", path)
	require.NoError(t, err)
	l2.Info("second")
	require.NoError(t, closeLog2())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"msg":"first"`)
	assert.Contains(t, lines[1], `"msg":"second"`)
}

func TestNewLoggerStderrClose(t *testing.T) {
	l, closeLog, err := NewLogger("warn", "")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.NoError(t, closeLog())
}

func TestContextLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := zap.New(core)

	ctx := WithLogger(context.Background(), l)
	FromContext(ctx).Info("hello")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "hello", logs.All()[0].Message)
}

func TestFromContextFallsBackToGlobal(t *testing.T) {
	assert.Equal(t, zap.L(), FromContext(context.Background()))
}
