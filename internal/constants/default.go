package constants

import "time"

const (
	ServiceName = "power-alert-relay"
)

const (
	RelayDefaultHTTPPort       = 8080
	RelayDefaultGRPCPort       = 7070
	RelayDefaultMonitoringPort = 6060
)

const (
	DefaultHTTPRequestTimeout = 10
	GraceWaitPeriod           = 10 * time.Second
)

const (
	MqttDefaultWriteTimeout         = 10 * time.Second
	MqttDefaultKeepAlive            = 30 * time.Second
	MqttDefaultPingTimeout          = 5 * time.Second
	MqttDefaultMaxReconnectInterval = 30 * time.Second
	MqttDefaultConnectTimeout       = 10 * time.Second
	MqttDefaultConnectRetryInterval = 10 * time.Second
	MqttDefaultSubscribeQoS         = 1
)

const (
	DefaultDevicePrefix   = "bluetti/AC200L2446000235977"
	DefaultGeneratorTopic = "bluetti/generator/status"
)

const (
	DefaultTimeoutMinutes     = 60
	DefaultWatchdogPeriod     = 60 * time.Second
	DefaultRouterQueueSize    = 256
	DefaultRouterFanoutLimit  = 16
	DefaultRouterCallTimeout  = 10 * time.Second
	DefaultReadingsCacheTTL   = 15 * time.Minute
	DefaultStoreDriver        = "postgres"
	StoreDriverMemory         = "memory"
	StoreDriverPostgres       = "postgres"
	DefaultFCMCredentialsPath = "./service-account-key.json"
)
