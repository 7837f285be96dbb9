// Package logx holds the process-wide structured logger.
package logx

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger atomic.Pointer[zap.Logger]

// L returns the logger. It uses a no-op logger until Set is called.
func L() *zap.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return zap.NewNop()
}

// Set replaces the logger. A nil logger restores the no-op default.
func Set(l *zap.Logger) {
	logger.Store(l)
}

// New builds a logger for the CLI. Level "off" (or "") returns a no-op
// logger; "debug" uses the development encoder.
func New(level string) (*zap.Logger, error) {
	switch level {
	case "", "off":
		return zap.NewNop(), nil
	case "debug":
		return zap.NewDevelopment()
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}
