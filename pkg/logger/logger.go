package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InfoLogger and FatalLogger start as no-ops so packages can log before Init
// and inside tests.
var (
	InfoLogger  = zap.NewNop()
	FatalLogger = zap.NewNop()
)

var (
	serviceName = "default"
)

func SetServiceName(newName string) string {
	oldName := serviceName
	serviceName = newName

	return oldName
}

// Init builds the production loggers. level is a zap level name.
func Init(level string, json bool) (*zap.Logger, error) {
	lvl := zap.NewAtomicLevel()
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl.SetLevel(zapcore.InfoLevel)
	}
	cfg := zap.NewProductionConfig()
	if !json {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = lvl
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("logger.Init: %w", err)
	}
	InfoLogger = l
	FatalLogger = l
	return l, nil
}

func Sync() {
	_ = InfoLogger.Sync()
}

func with(l *zap.Logger) *zap.Logger {
	if l == nil {
		panic("logger is not initialized")
	}
	return l.With(zap.String("service", serviceName))
}

func Info(format string, args ...interface{}) {
	with(InfoLogger).Info(fmt.Sprintf(format, args...))
}

func Warn(format string, args ...interface{}) {
	with(InfoLogger).Warn(fmt.Sprintf(format, args...))
}

func Error(format string, args ...interface{}) {
	with(InfoLogger).Error(fmt.Sprintf(format, args...))
}

func Fatal(format string, args ...interface{}) {
	with(FatalLogger).Fatal(fmt.Sprintf(format, args...))
}
