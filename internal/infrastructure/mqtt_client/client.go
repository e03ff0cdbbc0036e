package mqtt_client

import (
	"crypto/tls"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/okieraised/power-alert-relay/internal/config"
	"github.com/okieraised/power-alert-relay/internal/constants"
	"github.com/okieraised/power-alert-relay/internal/infrastructure/log"
	"github.com/okieraised/power-alert-relay/internal/utilities"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func getBool(key string, def bool) bool {
	if !viper.IsSet(key) {
		return def
	}
	return viper.GetBool(key)
}

// readDuration accepts "10s"/"500ms", an int (seconds), or a native duration.
func readDuration(key string, def time.Duration) time.Duration {
	if !viper.IsSet(key) {
		return def
	}
	return utilities.DurationOrDefault(viper.GetString(key), def)
}

func isSecureScheme(u string) bool {
	s := strings.ToLower(u)
	return strings.HasPrefix(s, "mqtts://") || strings.HasPrefix(s, "ssl://") ||
		strings.HasPrefix(s, "tls://") || strings.HasPrefix(s, "wss://")
}

// Subscription is a set of topic filters delivered to one handler. It is
// (re)established on every successful connect.
type Subscription struct {
	Topics  []string
	QoS     byte
	Handler mqtt.MessageHandler
}

type Options struct {
	Username             string
	Password             string
	Subscription         *Subscription
	CleanSession         *bool
	AutoReconnect        *bool
	ConnectRetry         *bool
	TLSInsecureSkip      *bool
	WriteTimeout         *time.Duration
	KeepAlive            *time.Duration
	PingTimeout          *time.Duration
	MaxReconnectInterval *time.Duration
	ConnectTimeout       *time.Duration
	ConnectRetryInterval *time.Duration
}

type Option func(*Options)

func WithCredentials(username, password string) Option {
	return func(o *Options) {
		o.Username = username
		o.Password = password
	}
}

func WithSubscription(topics []string, qos byte, handler mqtt.MessageHandler) Option {
	return func(o *Options) {
		o.Subscription = &Subscription{Topics: topics, QoS: qos, Handler: handler}
	}
}

func WithCleanSession(v bool) Option {
	return func(o *Options) {
		o.CleanSession = &v
	}
}

func WithAutoReconnect(v bool) Option {
	return func(o *Options) {
		o.AutoReconnect = &v
	}
}

func WithConnectTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.ConnectTimeout = &d
	}
}

func defaultOptionsFromViper() Options {
	return Options{
		CleanSession:         utilities.Ptr(true),
		AutoReconnect:        utilities.Ptr(true),
		ConnectRetry:         utilities.Ptr(getBool(config.MqttConnectRetry, true)),
		TLSInsecureSkip:      utilities.Ptr(getBool(config.MqttTLSInsecureSkipVerify, false)),
		WriteTimeout:         utilities.Ptr(readDuration(config.MqttWriteTimeout, constants.MqttDefaultWriteTimeout)),
		KeepAlive:            utilities.Ptr(readDuration(config.MqttKeepAliveDuration, constants.MqttDefaultKeepAlive)),
		PingTimeout:          utilities.Ptr(readDuration(config.MqttPingTimeout, constants.MqttDefaultPingTimeout)),
		MaxReconnectInterval: utilities.Ptr(readDuration(config.MqttMaxConnectInterval, constants.MqttDefaultMaxReconnectInterval)),
		ConnectTimeout:       utilities.Ptr(constants.MqttDefaultConnectTimeout),
		ConnectRetryInterval: utilities.Ptr(readDuration(config.MqttConnectRetryInterval, constants.MqttDefaultConnectRetryInterval)),
	}
}

// resolveOptions applies optFns over the viper-backed defaults.
func resolveOptions(optFns ...Option) Options {
	conf := defaultOptionsFromViper()
	for _, fn := range optFns {
		if fn != nil {
			fn(&conf)
		}
	}
	return conf
}

// onConnect subscribes the full topic list. Paho calls it after the first
// connect and after every automatic reconnect.
func onConnect(sub *Subscription, timeout time.Duration) mqtt.OnConnectHandler {
	logger := log.Component("mqtt")
	return func(c mqtt.Client) {
		logger.Info("Connected to MQTT broker")
		if sub == nil || len(sub.Topics) == 0 {
			return
		}
		filters := make(map[string]byte, len(sub.Topics))
		for _, t := range sub.Topics {
			filters[t] = sub.QoS
		}
		tok := c.SubscribeMultiple(filters, sub.Handler)
		if !tok.WaitTimeout(timeout) {
			logger.Error("MQTT subscribe timed out", zap.Strings("topics", sub.Topics))
			return
		}
		if err := tok.Error(); err != nil {
			logger.Error("MQTT subscribe failed", zap.Strings("topics", sub.Topics), zap.Error(err))
			return
		}
		logger.Info("Subscribed to telemetry topics", zap.Strings("topics", sub.Topics))
	}
}

func buildClientOptions(endpoint, clientID string, conf Options) *mqtt.ClientOptions {
	logger := log.Component("mqtt")
	opts := mqtt.NewClientOptions().
		AddBroker(endpoint).
		SetClientID(clientID).
		SetOnConnectHandler(onConnect(conf.Subscription, *conf.WriteTimeout)).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("Lost connection to MQTT broker", zap.Error(err))
		}).
		SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
			logger.Info("Reconnecting to MQTT broker")
		}).
		SetCleanSession(*conf.CleanSession).
		SetAutoReconnect(*conf.AutoReconnect).
		SetConnectRetry(*conf.ConnectRetry).
		SetConnectRetryInterval(*conf.ConnectRetryInterval).
		SetMaxReconnectInterval(*conf.MaxReconnectInterval).
		SetWriteTimeout(*conf.WriteTimeout).
		SetKeepAlive(*conf.KeepAlive).
		SetPingTimeout(*conf.PingTimeout).
		SetConnectTimeout(*conf.ConnectTimeout)
	if conf.Username != "" {
		opts.SetUsername(conf.Username)
		opts.SetPassword(conf.Password)
	}
	if isSecureScheme(endpoint) {
		if conf.TLSInsecureSkip != nil && *conf.TLSInsecureSkip {
			opts.SetTLSConfig(&tls.Config{InsecureSkipVerify: true}) // #nosec G402
		} else {
			opts.SetTLSConfig(&tls.Config{})
		}
	}
	return opts
}

var (
	once    sync.Once
	client  mqtt.Client
	initErr error
)

// NewMQTTClient connects the process-wide MQTT client. With connect retry
// enabled the first connect keeps retrying in the background; the call then
// returns once the connect timeout elapses.
func NewMQTTClient(endpoint, clientID string, optFns ...Option) error {
	once.Do(func() {
		conf := resolveOptions(optFns...)
		c := mqtt.NewClient(buildClientOptions(endpoint, clientID, conf))
		tok := c.Connect()
		if !tok.WaitTimeout(*conf.ConnectTimeout) {
			if !*conf.ConnectRetry {
				initErr = errors.Errorf("mqtt connect timeout after %s", conf.ConnectTimeout.String())
				return
			}
			log.Component("mqtt").Warn("MQTT broker not reachable yet, retrying in background", zap.String("endpoint", endpoint))
		} else if err := tok.Error(); err != nil {
			initErr = errors.Wrap(err, "mqtt connect error")
			return
		}
		client = c
	})
	return initErr
}

// IsConnected reports whether the client currently has a live broker connection.
func IsConnected() bool {
	return client != nil && client.IsConnectionOpen()
}

// Disconnect waits up to quiesce for in-flight work before closing the connection.
func Disconnect(quiesce time.Duration) {
	if client != nil {
		client.Disconnect(uint(quiesce.Milliseconds()))
	}
}
