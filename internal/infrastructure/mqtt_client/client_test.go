package mqtt_client

import (
	"testing"
	"time"

	"github.com/okieraised/power-alert-relay/internal/config"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSecureScheme(t *testing.T) {
	assert.True(t, isSecureScheme("mqtts://broker:8883"))
	assert.True(t, isSecureScheme("SSL://broker:8883"))
	assert.True(t, isSecureScheme("wss://broker/mqtt"))
	assert.False(t, isSecureScheme("tcp://broker:1883"))
	assert.False(t, isSecureScheme("ws://broker/mqtt"))
}

func TestReadDuration(t *testing.T) {
	t.Cleanup(viper.Reset)

	assert.Equal(t, 3*time.Second, readDuration(config.MqttWriteTimeout, 3*time.Second))

	viper.Set(config.MqttWriteTimeout, "250ms")
	assert.Equal(t, 250*time.Millisecond, readDuration(config.MqttWriteTimeout, time.Second))

	viper.Set(config.MqttWriteTimeout, 7)
	assert.Equal(t, 7*time.Second, readDuration(config.MqttWriteTimeout, time.Second))

	viper.Set(config.MqttWriteTimeout, "nonsense")
	assert.Equal(t, time.Second, readDuration(config.MqttWriteTimeout, time.Second))
}

func TestBuildClientOptions(t *testing.T) {
	t.Cleanup(viper.Reset)

	opts := buildClientOptions("mqtts://broker:8883", "relay-1", resolveOptions(WithCredentials("relay", "secret")))

	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "broker:8883", opts.Servers[0].Host)
	assert.Equal(t, "relay-1", opts.ClientID)
	assert.Equal(t, "relay", opts.Username)
	assert.Equal(t, "secret", opts.Password)
	assert.True(t, opts.AutoReconnect)
	require.NotNil(t, opts.TLSConfig)
	assert.False(t, opts.TLSConfig.InsecureSkipVerify)
	assert.NotNil(t, opts.OnConnect)
}

func TestBuildClientOptions_PlainWithoutCredentials(t *testing.T) {
	t.Cleanup(viper.Reset)

	opts := buildClientOptions("tcp://localhost:1883", "relay-1", resolveOptions())
	assert.Empty(t, opts.Username)
	assert.Empty(t, opts.Password)
	assert.Nil(t, opts.TLSConfig)
	assert.True(t, opts.CleanSession)
}

func TestResolveOptions_Overrides(t *testing.T) {
	t.Cleanup(viper.Reset)

	conf := resolveOptions(
		WithCleanSession(false),
		WithAutoReconnect(false),
		WithConnectTimeout(2*time.Second),
		nil,
	)
	opts := buildClientOptions("tcp://localhost:1883", "relay-1", conf)

	assert.False(t, opts.CleanSession)
	assert.False(t, opts.AutoReconnect)
	assert.Equal(t, 2*time.Second, opts.ConnectTimeout)
}
