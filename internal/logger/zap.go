package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a logger at the given level. Development mode uses a colored
// console encoder; production mode emits JSON with ISO8601 timestamps.
func New(level Level, development bool) (*Logger, error) {
	var config zap.Config

	if development {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	} else {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	switch level {
	case DebugLevel:
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case InfoLevel:
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case ErrorLevel:
		config.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	zapLogger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create zap logger: %w", err)
	}

	return &Logger{sugar: zapLogger.Sugar()}, nil
}

// NewFromEnv creates a logger configured from environment variables.
// SCRIBE_LOG_LEVEL selects the level (debug, info, error; default info) and
// SCRIBE_LOG_FORMAT=json switches to the production JSON encoder.
func NewFromEnv() (*Logger, error) {
	levelStr := os.Getenv("SCRIBE_LOG_LEVEL")
	if levelStr == "" {
		levelStr = "info"
	}

	level := LevelFromString(levelStr)
	development := os.Getenv("SCRIBE_LOG_FORMAT") != "json"

	return New(level, development)
}
