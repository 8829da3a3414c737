// Package obslog provides a structured logging wrapper using zap.
package obslog

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// L is the global logger instance.
	L    *zap.Logger
	once sync.Once
)

// Init initializes the global logger. If debug is true, uses a
// development config with DEBUG level and colorized level names;
// otherwise production config with ISO8601 timestamps.
func Init(debug bool) {
	once.Do(func() {
		var err error
		if debug {
			cfg := zap.NewDevelopmentConfig()
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
			L, err = cfg.Build()
		} else {
			cfg := zap.NewProductionConfig()
			cfg.EncoderConfig.TimeKey = "timestamp"
			cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
			L, err = cfg.Build()
		}
		if err != nil {
			L = zap.NewNop()
		}
	})
}

// Sync flushes any buffered log entries. Call before process exit.
func Sync() {
	if L != nil {
		_ = L.Sync()
	}
}

// Default returns the global logger, initializing it from the
// FUZZYINDEX_DEBUG environment variable if Init was never called.
func Default() *zap.Logger {
	if L == nil {
		Init(os.Getenv("FUZZYINDEX_DEBUG") == "1")
	}
	return L
}

func With(fields ...zap.Field) *zap.Logger { return Default().With(fields...) }

func Debug(msg string, fields ...zap.Field) { Default().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { Default().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { Default().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { Default().Error(msg, fields...) }
func Fatal(msg string, fields ...zap.Field) { Default().Fatal(msg, fields...) }
