package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log = zap.NewNop()

// Init builds the global logger. Call once at startup, after config is loaded.
func Init(level string, development bool) error {
	var lvl zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = zapcore.DebugLevel
	case "warn":
		lvl = zapcore.WarnLevel
	case "error":
		lvl = zapcore.ErrorLevel
	default:
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	built, err := cfg.Build()
	if err != nil {
		return err
	}

	log = built.With(zap.String("service", "homeboard"))
	zap.ReplaceGlobals(log)
	return nil
}

// L returns the global logger
func L() *zap.Logger {
	return log
}

// Sync flushes buffered log entries
func Sync() {
	_ = log.Sync()
}
