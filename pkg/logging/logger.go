package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger. format is "json" for the production
// encoder or "console" for the development encoder. The returned level can be
// changed after construction, for example when DEBUG is set.
func NewLogger(level zapcore.Level, format string) (*zap.Logger, zap.AtomicLevel, error) {
	var logConfig zap.Config
	switch format {
	case "json":
		logConfig = zap.NewProductionConfig()
	case "console":
		logConfig = zap.NewDevelopmentConfig()
	default:
		return nil, zap.AtomicLevel{}, fmt.Errorf("unsupported log format %q: use json or console", format)
	}

	atomicLevel := zap.NewAtomicLevelAt(level)
	logConfig.Level = atomicLevel
	logConfig.DisableStacktrace = true

	logger, err := logConfig.Build()
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, atomicLevel, nil
}
