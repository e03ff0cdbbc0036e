package log

import (
	"testing"

	"github.com/okieraised/power-alert-relay/internal/config"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestInitDefault(t *testing.T) {
	assert.NoError(t, InitDefault())
	Default().Error("test init default")
}

func TestLogger_ComponentAndWith(t *testing.T) {
	l := Component("router")

	l1 := l.With(zap.String("topic", "bluetti/generator/status"))
	l1.Info("test logger 1")

	Nop().Error("discarded")
}

func TestLogLevel(t *testing.T) {
	t.Cleanup(func() { viper.Set(config.RelayLogLevel, "") })

	viper.Set(config.RelayLogLevel, "DEBUG")
	assert.Equal(t, zapcore.DebugLevel, logLevel().Level())

	viper.Set(config.RelayLogLevel, "warn")
	assert.Equal(t, zapcore.WarnLevel, logLevel().Level())

	viper.Set(config.RelayLogLevel, "chatty")
	assert.Equal(t, zapcore.InfoLevel, logLevel().Level())
}

func TestDefaultConfig_Format(t *testing.T) {
	t.Cleanup(func() {
		viper.Set(config.RelayLogFormat, "")
		viper.Set(config.RelayID, "")
	})

	viper.Set(config.RelayID, "relay-a")
	cfg := DefaultConfig()
	assert.Equal(t, "json", cfg.Encoding)
	assert.Equal(t, "relay-a", cfg.InitialFields["service.node.name"])

	viper.Set(config.RelayLogFormat, "Console")
	assert.Equal(t, "console", DefaultConfig().Encoding)
}

func TestRecipient(t *testing.T) {
	assert.Equal(t, "short", Recipient("short").String)
	assert.Equal(t, "fcmToken...", Recipient("fcmTokenAbcdefghijklmnop").String)
}
