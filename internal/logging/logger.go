// Package logging provides zap logger helpers.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap.Logger configured for development or production.
func New(development bool) (*zap.Logger, error) {
	if development {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		logger, err := cfg.Build()
		if err != nil {
			return nil, fmt.Errorf("build dev logger: %w", err)
		}
		return logger, nil
	}
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = false
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build prod logger: %w", err)
	}
	return logger, nil
}

// OrNop returns logger, or a no-op logger when it is nil.
func OrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// Printf adapts a zap logger to Printf/Fatalf style interfaces such as goose.Logger.
type Printf struct {
	sugar *zap.SugaredLogger
}

// NewPrintf wraps logger for printf-style callers.
func NewPrintf(logger *zap.Logger) *Printf {
	return &Printf{sugar: OrNop(logger).Sugar()}
}

// Printf logs at info level, trimming the trailing newline callers tend to add.
func (p *Printf) Printf(format string, v ...any) {
	p.sugar.Infof(trimNewline(format), v...)
}

// Fatalf logs at error level. Unlike log.Fatalf it does not exit the process.
func (p *Printf) Fatalf(format string, v ...any) {
	p.sugar.Errorf(trimNewline(format), v...)
}

func trimNewline(format string) string {
	for len(format) > 0 && format[len(format)-1] == '\n' {
		format = format[:len(format)-1]
	}
	return format
}
