// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging builds the process-wide zap logger and carries
// request-scoped loggers through a context.
package logging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey struct{}

// ParseLevel maps a level name to a zap level. Unknown names map to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// NewLogger returns a JSON logger at the given level and a close function
// that flushes it and releases its sink. With an empty file it writes to
// stderr and close only flushes; otherwise it appends to file, creating
// parent directories as needed, and close also closes the file.
func NewLogger(level, file string) (*zap.Logger, func() error, error) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	if file == "" {
		l := newLogger(encCfg, zapcore.Lock(os.Stderr), level)
		return l, func() error {
			// stderr may refuse fsync on some terminals.
			_ = l.Sync()
			return nil
		}, nil
	}

	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file %s: %w", file, err)
	}
	l := newLogger(encCfg, zapcore.AddSync(f), level)
	var once sync.Once
	var closeErr error
	return l, func() error {
		once.Do(func() {
			closeErr = errors.Join(l.Sync(), f.Close())
		})
		return closeErr
	}, nil
}

func newLogger(encCfg zapcore.EncoderConfig, sink zapcore.WriteSyncer, level string) *zap.Logger {
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), sink, ParseLevel(level))
	return zap.New(core, zap.AddCaller())
}

// WithLogger returns a copy of ctx carrying l.
func WithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in ctx, falling back to the
// global zap logger.
func FromContext(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return zap.L()
}
