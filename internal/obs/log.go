package obs

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	loggerMu sync.RWMutex
	logger   = zap.NewNop()
)

// InitLogger builds the shared JSON logger. Outside production the level is debug.
func InitLogger(env string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	if env != "production" {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	lg, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	SetLogger(lg)
	return lg, nil
}

// Logger returns the shared structured logger used across the service.
func Logger() *zap.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// SetLogger replaces the shared logger and returns a func restoring the previous one.
func SetLogger(lg *zap.Logger) func() {
	if lg == nil {
		lg = zap.NewNop()
	}
	loggerMu.Lock()
	prev := logger
	logger = lg
	loggerMu.Unlock()
	return func() { SetLogger(prev) }
}
