// Package logger centralizes process-wide log configuration so every
// component logs with the same level and encoding.
package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
)

// Setup builds the process logger. Level comes from LOG_LEVEL, encoding from
// LOG_FORMAT ("console" for development, JSON otherwise).
func Setup() *zap.Logger {
	cfg := zap.NewProductionConfig()
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "console" {
		cfg.Encoding = "console"
	}
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}
