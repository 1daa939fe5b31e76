// Package gridlog provides process-wide structured logging built on
// go.uber.org/zap: a package-level singleton initialized once via
// sync.Once, a JSON production encoder, and structured fields instead of
// Sprintf-ed messages.
package gridlog

import (
	"sync"

	"go.uber.org/zap"
)

var (
	once   sync.Once
	logger *zap.SugaredLogger
)

// Init builds the process-wide logger at the given level ("debug", "info",
// "warn", "error"). Safe to call multiple times; only the first call takes
// effect. Programs that never call Init get the same JSON production
// configuration at "info" level the first time L() is used.
func Init(level string) {
	once.Do(func() {
		logger = build(level)
	})
}

// L returns the process-wide logger, initializing it with the default
// level ("info") if Init was never called.
func L() *zap.SugaredLogger {
	once.Do(func() {
		logger = build("info")
	})
	return logger
}

func build(level string) *zap.SugaredLogger {
	zapLevel := zap.NewAtomicLevel()
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel.SetLevel(zap.InfoLevel)
	}

	cfg := zap.Config{
		Level:            zapLevel,
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		DisableCaller:    true,
	}

	built, err := cfg.Build()
	if err != nil {
		// Falls back to a no-op core rather than panicking: logging must
		// never be why the cache fails to serve a lookup.
		built = zap.NewNop()
	}
	return built.Sugar()
}
