package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerConfig controls how NewLogger builds the process logger
type LoggerConfig struct {
	Debug bool
}

// NewLogger returns a JSON zap logger. Debug lowers the level to debug and adds caller info.
func NewLogger(cfg *LoggerConfig, options ...zap.Option) (*zap.Logger, error) {
	if cfg == nil {
		cfg = &LoggerConfig{}
	}

	mergedOptions := append([]zap.Option{
		zap.WithCaller(cfg.Debug),
	}, options...)

	level := zap.InfoLevel
	if cfg.Debug {
		level = zap.DebugLevel
	}

	c := zap.NewProductionConfig()
	c.Level = zap.NewAtomicLevelAt(level)
	c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	c.Sampling = nil

	return c.Build(mergedOptions...)
}
