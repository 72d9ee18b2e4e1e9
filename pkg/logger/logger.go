package logger

import (
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var sugar atomic.Pointer[zap.SugaredLogger]

func init() {
	sugar.Store(zap.NewNop().Sugar())
}

// Init configures the global logger (called once from main). format is
// "json" or "console"; level is any zap level name.
func Init(level, format string) error {
	cfg := zap.NewProductionConfig()
	if strings.EqualFold(format, "console") {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}
	sugar.Store(l.Sugar())
	return nil
}

// Set replaces the global logger. Tests use it with zaptest/observer.
func Set(l *zap.Logger) {
	sugar.Store(l.WithOptions(zap.AddCallerSkip(1)).Sugar())
}

// With returns a logger carrying the given key/value pairs.
func With(keysAndValues ...any) *zap.SugaredLogger {
	return sugar.Load().Desugar().WithOptions(zap.AddCallerSkip(-1)).Sugar().With(keysAndValues...)
}

func Sync() {
	_ = sugar.Load().Sync()
}

func Infof(format string, v ...any) {
	sugar.Load().Infof(format, v...)
}

func Warnf(format string, v ...any) {
	sugar.Load().Warnf(format, v...)
}

func Errorf(format string, v ...any) {
	sugar.Load().Errorf(format, v...)
}

func Debugf(format string, v ...any) {
	sugar.Load().Debugf(format, v...)
}
