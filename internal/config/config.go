package config

const (
	RelayID                 = "relay.id"
	RelayEnableMonitoring   = "relay.enable_monitoring"
	RelayMonitoringPort     = "relay.monitoring_port"
	RelayLogLevel           = "relay.log_level"
	RelayLogFormat          = "relay.log_format"
	RelayHTTPPort           = "relay.http_port"
	RelayHTTPMode           = "relay.http_mode"
	RelayHTTPRequestTimeout = "relay.http_request_timeout"
	RelayEnableGRPC         = "relay.enable_grpc"
	RelayGRPCPort           = "relay.grpc_port"
	RelayTLSCertFile        = "relay.tls_cert_file"
	RelayTLSKeyFile         = "relay.tls_key_file"
	RelayTLSClientCAFile    = "relay.tls_client_ca_file"
	RelayEnableTracing      = "relay.enable_tracing"
	RelayEnableS3           = "relay.enable_s3"
)

const (
	MqttEndpoint              = "mqtt.endpoint"
	MqttCleanSession          = "mqtt.clean_session"
	MqttClientId              = "mqtt.client_id"
	MqttUsername              = "mqtt.username"
	MqttPassword              = "mqtt.password"
	MqttAutoReconnect         = "mqtt.auto_reconnect"
	MqttConnectRetry          = "mqtt.connect_retry"
	MqttMaxConnectInterval    = "mqtt.max_connect_interval"
	MqttWriteTimeout          = "mqtt.write_timeout"
	MqttPingTimeout           = "mqtt.ping_timeout"
	MqttKeepAliveDuration     = "mqtt.keep_alive_duration"
	MqttConnectTimeout        = "mqtt.connect_timeout"
	MqttConnectRetryInterval  = "mqtt.connect_retry_interval"
	MqttTLSInsecureSkipVerify = "mqtt.tls_insecure_skip_verify"
	MqttSubscribeQoS          = "mqtt.subscribe_qos"
)

const (
	TopicDevicePrefix   = "topics.device_prefix"
	TopicGeneratorState = "topics.generator_status"
)

const (
	RouterQueueSize   = "router.queue_size"
	RouterFanoutLimit = "router.fanout_limit"
	RouterCallTimeout = "router.call_timeout"
	WatchdogPeriod    = "watchdog.period"
)

const (
	StoreDriver          = "store.driver"
	PostgresDSN          = "postgres.dsn"
	PostgresMaxConns     = "postgres.max_conns"
	PostgresAutoMigrate  = "postgres.auto_migrate"
	FCMCredentialsSource = "fcm.credentials"
	FCMProjectID         = "fcm.project_id"
	ReadingsCacheTTL     = "readings.cache_ttl"
)

const (
	S3Region                = "s3.region"
	S3Endpoint              = "s3.endpoint"
	S3AccessKey             = "s3.access_key"
	S3SecretKey             = "s3.secret_key"
	S3UsePathStyle          = "s3.use_path_style"
	S3TLSInsecureSkipVerify = "s3.tls_insecure_skip_verify"
)

const (
	TracingEndpoint  = "tracing.endpoint"
	TracingInsecure  = "tracing.insecure"
	TracingNamespace = "tracing.namespace"
)
