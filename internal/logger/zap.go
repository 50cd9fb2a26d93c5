package logger

import (
	"os"
	"sync"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"gitlab.com/gfxd/gpu-mode-service/internal/config"
)

var (
	once sync.Once
	base *zap.Logger
)

type Logger struct {
	*zap.Logger
}

func (l *Logger) init() error {
	var err error
	if _, debug := os.LookupEnv("GFXD_DEBUG"); debug || config.GetConfig().General.Debug {
		zapConfig := zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		l.Logger, err = zapConfig.Build()
	} else {
		l.Logger, err = zap.NewProduction()
	}

	return err
}

// New takes in a package to initialize the new Logger in.
func New(pkg string) *Logger {
	log := &Logger{}
	if err := log.init(); err != nil {
		panic(err)
	}

	log.Logger = log.Logger.With(
		zap.String("package", pkg),
	)

	return log
}

// OtelZapLogger returns a trace-aware logger tagged with pkg. The underlying zap core is
// built once and shared across packages.
func OtelZapLogger(pkg string) otelzap.Logger {
	once.Do(func() {
		l := &Logger{}
		if err := l.init(); err != nil {
			panic(err)
		}
		base = l.Logger
	})
	return *otelzap.New(base.With(zap.String("package", pkg)))
}
