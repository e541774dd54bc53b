// Package logger provides structured logging for scribe, backed by zap.
// A global logger is initialized from the environment at startup; packages
// attach contextual fields with WithField/WithFields.
package logger

import (
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Level represents the logging level
type Level int

const (
	// DebugLevel logs everything
	DebugLevel Level = iota
	// InfoLevel logs info, warnings, and errors
	InfoLevel
	// ErrorLevel logs only errors
	ErrorLevel
)

// Logger wraps a zap sugared logger behind the interface the rest of the
// codebase logs through.
type Logger struct {
	sugar *zap.SugaredLogger
}

var (
	globalLogger *Logger
	globalMu     sync.Mutex
)

func init() {
	if l, err := NewFromEnv(); err == nil {
		globalLogger = l
	} else {
		globalLogger = NewNop()
	}
}

// WithField adds a single field to the logger context
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{sugar: l.sugar.With(key, value)}
}

// WithFields adds multiple fields to the logger context
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{sugar: l.sugar.With(args...)}
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) { l.sugar.Debug(msg) }

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }

// Info logs an info message
func (l *Logger) Info(msg string) { l.sugar.Info(msg) }

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) { l.sugar.Infof(format, args...) }

// Warn logs a warning message
func (l *Logger) Warn(msg string) { l.sugar.Warn(msg) }

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...interface{}) { l.sugar.Warnf(format, args...) }

// Error logs an error message
func (l *Logger) Error(msg string) { l.sugar.Error(msg) }

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// Sync flushes any buffered log entries
func (l *Logger) Sync() error { return l.sugar.Sync() }

// GetLogger returns the global logger instance
func GetLogger() *Logger {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalLogger
}

// SetLogger sets the global logger instance
func SetLogger(logger *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = logger
}

// Package-level convenience functions logging through the global logger.

// WithField adds a field to the global logger context
func WithField(key string, value interface{}) *Logger { return GetLogger().WithField(key, value) }

// WithFields adds fields to the global logger context
func WithFields(fields map[string]interface{}) *Logger { return GetLogger().WithFields(fields) }

// Debug logs a debug message on the global logger
func Debug(msg string) { GetLogger().Debug(msg) }

// Debugf logs a formatted debug message on the global logger
func Debugf(format string, args ...interface{}) { GetLogger().Debugf(format, args...) }

// Info logs an info message on the global logger
func Info(msg string) { GetLogger().Info(msg) }

// Infof logs a formatted info message on the global logger
func Infof(format string, args ...interface{}) { GetLogger().Infof(format, args...) }

// Warn logs a warning message on the global logger
func Warn(msg string) { GetLogger().Warn(msg) }

// Warnf logs a formatted warning message on the global logger
func Warnf(format string, args ...interface{}) { GetLogger().Warnf(format, args...) }

// Error logs an error message on the global logger
func Error(msg string) { GetLogger().Error(msg) }

// Errorf logs a formatted error message on the global logger
func Errorf(format string, args ...interface{}) { GetLogger().Errorf(format, args...) }

// LevelFromString converts a string to a log level
func LevelFromString(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// NewNop returns a logger that discards everything. Used as the fallback when
// environment initialization fails and in tests that don't assert on logs.
func NewNop() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

// NewTestLogger creates a logger suitable for testing with debug level
func NewTestLogger() *Logger {
	l, err := New(DebugLevel, true)
	if err != nil {
		return NewNop()
	}
	return l
}
