package log

import (
	"strings"
	"sync"

	"github.com/okieraised/power-alert-relay/internal/config"
	"github.com/okieraised/power-alert-relay/internal/constants"
	"github.com/okieraised/power-alert-relay/internal/utilities"
	"github.com/spf13/viper"
	"go.elastic.co/ecszap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	*zap.Logger
}

var (
	defaultOnce   sync.Once
	defaultLogger *zap.Logger
	defaultErr    error
)

func logLevel() zap.AtomicLevel {
	lvl, err := zapcore.ParseLevel(strings.ToLower(viper.GetString(config.RelayLogLevel)))
	if err != nil {
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return zap.NewAtomicLevelAt(lvl)
}

// DefaultConfig returns an ECS-compatible JSON config, or a console config
// when relay.log_format is "console".
func DefaultConfig() zap.Config {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig = ecszap.ECSCompatibleEncoderConfig(cfg.EncoderConfig)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	if strings.EqualFold(viper.GetString(config.RelayLogFormat), "console") {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.InitialFields = map[string]interface{}{"service.name": constants.ServiceName}
	if id := viper.GetString(config.RelayID); id != "" {
		cfg.InitialFields["service.node.name"] = id
	}
	cfg.Level = logLevel()
	return cfg
}

// InitDefault initializes the process-wide default logger once.
func InitDefault(opts ...zap.Option) error {
	defaultOnce.Do(func() {
		cfg := DefaultConfig()
		defaultLogger, defaultErr = cfg.Build(opts...)
	})
	return defaultErr
}

// Default returns the default logger, initializing it if needed.
func Default() *Logger {
	if defaultLogger == nil {
		if err := InitDefault(); err != nil {
			return Nop()
		}
	}
	return &Logger{defaultLogger}
}

// Component returns a child of the default logger tagged with a component name.
func Component(name string) *Logger {
	return Default().Named(name)
}

func Sync() error {
	if defaultLogger != nil {
		return defaultLogger.Sync()
	}
	return nil
}

func Nop() *Logger {
	return &Logger{zap.NewNop()}
}

func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{l.Logger.With(fields...)}
}

func (l *Logger) Named(name string) *Logger {
	return &Logger{l.Logger.Named(name)}
}

// Recipient logs a device token by its prefix only.
func Recipient(token string) zap.Field {
	return zap.String("recipient", utilities.MaskToken(token))
}
