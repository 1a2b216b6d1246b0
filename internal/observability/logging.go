// Package observability provides structured logging for the world server.
package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cory-johannsen/subjugate/internal/config"
)

// NewLogger creates a structured logger from the given logging configuration.
// Any fields are attached to every entry the logger writes.
//
// Precondition: cfg.Level must be one of "debug", "info", "warn", "error".
// Precondition: cfg.Format must be "json" or "console".
// Postcondition: Returns a configured zap.Logger or a non-nil error.
func NewLogger(cfg config.LoggingConfig, fields ...zap.Field) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}

	var zapCfg zap.Config
	switch cfg.Format {
	case "json":
		zapCfg = zap.NewProductionConfig()
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapCfg.Build(zap.Fields(fields...))
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}

// Guard runs fn and converts a panic into an error-level log entry.
// It reports whether fn completed without panicking.
//
// Postcondition: never panics.
func Guard(logger *zap.Logger, component string, fn func(), fields ...zap.Field) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			logger.Error("recovered panic",
				append(fields,
					zap.String("component", component),
					zap.Any("panic", r),
					zap.StackSkip("stack", 2),
				)...,
			)
		}
	}()
	fn()
	return true
}
