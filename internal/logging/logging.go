package logging

import (
	"fmt"
	"log"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sparkcampus/doubts/backend/internal/config"
)

// New builds the process logger. Development mode switches to the console
// encoder with caller info; otherwise JSON at the configured level.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	return zc.Build()
}

// StdLog adapts logger for libraries that want a *log.Logger (gorm, net/http).
func StdLog(logger *zap.Logger, component string) *log.Logger {
	return zap.NewStdLog(logger.With(zap.String("component", component)))
}
