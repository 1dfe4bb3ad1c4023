// Package logger holds the process-wide zap logger. Init is called once from
// main; everywhere else uses L() or S(). Security events are logged here with
// hashed identifiers only, never raw emails or passwords.
package logger

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	once     sync.Once
	instance *zap.Logger
)

// Init builds the singleton logger. Idempotent: only the first call has any
// effect. env selects the encoder: "prod" emits JSON, anything else emits a
// colored console format for development.
func Init(env string) {
	once.Do(func() {
		instance = build(env)
	})
}

// L returns the singleton logger, initializing a dev logger if Init was
// never called (convenient in tests).
func L() *zap.Logger {
	if instance == nil {
		Init("dev")
	}
	return instance
}

// S returns the sugared form for printf-style logging.
func S() *zap.SugaredLogger {
	return L().Sugar()
}

// Sync flushes buffered entries. Deferred from main.
func Sync() error {
	if instance != nil {
		return instance.Sync()
	}
	return nil
}

func build(env string) *zap.Logger {
	var zcfg zap.Config
	if strings.ToLower(env) == "prod" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zcfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	}
	l, err := zcfg.Build()
	if err != nil {
		l, _ = zap.NewProduction()
	}
	return l
}
