package logging

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/postcadence/planner/pkg/config"
)

// Logger is the application logger
var Logger *zap.Logger

var fallbackOnce sync.Once

// InitLogger initializes the logger with the given configuration
func InitLogger(cfg *config.LoggingConfig) error {
	level := parseLevel(cfg.Level)

	if cfg.Format == "text" {
		zapConfig := zap.NewDevelopmentConfig()
		zapConfig.Level = zap.NewAtomicLevelAt(level)
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

		built, err := zapConfig.Build(zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
		if err != nil {
			return err
		}
		Logger = built
		return nil
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	if !cfg.ScalyrFormat {
		built, err := zapConfig.Build(zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
		if err != nil {
			return err
		}
		Logger = built
		return nil
	}

	encoderConfig := zapConfig.EncoderConfig
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	Logger = zap.New(
		zapcore.NewCore(NewScalyrEncoder(encoderConfig), zapcore.AddSync(os.Stdout), level),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	return nil
}

// parseLevel accepts zap level names in any case; unknown values mean info.
func parseLevel(s string) zapcore.Level {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return zapcore.InfoLevel
	}
	return level
}

// GetLogger returns the global logger
func GetLogger() *zap.Logger {
	if Logger == nil {
		fallbackOnce.Do(func() {
			if Logger == nil {
				Logger, _ = zap.NewProduction()
			}
		})
	}
	return Logger
}

// WithContext adds context fields to logger
func WithContext(fields ...zap.Field) *zap.Logger {
	return GetLogger().With(fields...)
}

// WithTraceID adds trace ID to logger
func WithTraceID(traceID string) *zap.Logger {
	return GetLogger().With(zap.String("trace_id", traceID))
}

// WithComponent adds component name to logger
func WithComponent(component string) *zap.Logger {
	return GetLogger().With(zap.String("component", component))
}

// WithUser scopes a logger to one creator.
func WithUser(logger *zap.Logger, userID string) *zap.Logger {
	if logger == nil {
		logger = GetLogger()
	}
	return logger.With(zap.String("user_id", userID))
}
