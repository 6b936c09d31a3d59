package logging

import (
	"strings"

	"github.com/Gobusters/ectologger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logger construction settings.
type Config struct {
	Level  string
	Pretty bool
}

// New builds a zap-backed EctoLogger. Every EctoLogMessage emitted through
// the logger interface is forwarded to zap with its structured fields.
func New(cfg Config) (ectologger.Logger, func(), error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.Pretty {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	zapLogger, err := zapCfg.Build(zap.AddCallerSkip(2))
	if err != nil {
		return nil, nil, err
	}

	logger := ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {
		fields := make([]zap.Field, 0, len(msg.Fields)+1)
		for k, v := range msg.Fields {
			fields = append(fields, zap.Any(k, v))
		}
		if msg.Err != nil {
			fields = append(fields, zap.Error(msg.Err))
		}

		switch strings.ToLower(string(msg.Level)) {
		case "debug":
			zapLogger.Debug(msg.Message, fields...)
		case "warn", "warning":
			zapLogger.Warn(msg.Message, fields...)
		case "error":
			zapLogger.Error(msg.Message, fields...)
		default:
			zapLogger.Info(msg.Message, fields...)
		}
	})

	flush := func() { _ = zapLogger.Sync() }
	return logger, flush, nil
}
