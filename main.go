package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/okieraised/power-alert-relay/internal/alert_feed"
	"github.com/okieraised/power-alert-relay/internal/alerting"
	"github.com/okieraised/power-alert-relay/internal/catalog"
	"github.com/okieraised/power-alert-relay/internal/config"
	"github.com/okieraised/power-alert-relay/internal/constants"
	"github.com/okieraised/power-alert-relay/internal/infrastructure/fcm_client"
	"github.com/okieraised/power-alert-relay/internal/infrastructure/local_cache"
	"github.com/okieraised/power-alert-relay/internal/infrastructure/log"
	"github.com/okieraised/power-alert-relay/internal/infrastructure/mqtt_client"
	"github.com/okieraised/power-alert-relay/internal/infrastructure/postgres_client"
	"github.com/okieraised/power-alert-relay/internal/infrastructure/s3_client"
	"github.com/okieraised/power-alert-relay/internal/infrastructure/tracer_client"
	"github.com/okieraised/power-alert-relay/internal/server/grpc_server"
	"github.com/okieraised/power-alert-relay/internal/server/monitoring"
	"github.com/okieraised/power-alert-relay/internal/server/rest_server"
	"github.com/okieraised/power-alert-relay/internal/server/rest_server/routers"
	"github.com/okieraised/power-alert-relay/internal/server/rest_server/services/v1/restful"
	"github.com/okieraised/power-alert-relay/internal/server/rest_server/services/v1/ws"
	"github.com/okieraised/power-alert-relay/internal/store"
	"github.com/okieraised/power-alert-relay/internal/utilities"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func stringOr(key, def string) string {
	if v := strings.TrimSpace(viper.GetString(key)); v != "" {
		return v
	}
	return def
}

func intOr(key string, def int) int {
	if v := viper.GetInt(key); v > 0 {
		return v
	}
	return def
}

func durationOr(key string, def time.Duration) time.Duration {
	return utilities.DurationOrDefault(viper.GetString(key), def)
}

func boolOr(key string, def bool) bool {
	if !viper.IsSet(key) {
		return def
	}
	return viper.GetBool(key)
}

func initS3(ctx context.Context) error {
	opts := []s3_client.Option{
		s3_client.WithRegion(viper.GetString(config.S3Region)),
		s3_client.WithEndpoint(viper.GetString(config.S3Endpoint), viper.GetBool(config.S3UsePathStyle)),
		s3_client.WithRetry(5, 30*time.Second),
		s3_client.WithHTTPClient(
			&http.Client{
				Transport: &http.Transport{
					TLSClientConfig: &tls.Config{
						InsecureSkipVerify: viper.GetBool(config.S3TLSInsecureSkipVerify), // #nosec G402
					},
				},
			},
		),
	}
	if accessKey := viper.GetString(config.S3AccessKey); accessKey != "" {
		opts = append(opts, s3_client.WithStaticCredentials(accessKey, viper.GetString(config.S3SecretKey), ""))
	}
	return s3_client.NewS3Client(ctx, opts...)
}

// initFCM loads the service account from a local path or an s3:// object.
func initFCM(ctx context.Context) error {
	source := stringOr(config.FCMCredentialsSource, constants.DefaultFCMCredentialsPath)
	opts := []fcm_client.Option{fcm_client.WithProjectID(viper.GetString(config.FCMProjectID))}

	if s3_client.IsS3URI(source) {
		if !viper.GetBool(config.RelayEnableS3) {
			return errors.Errorf("fcm credentials %s require relay.enable_s3", source)
		}
		creds, err := s3_client.ReadObject(ctx, source)
		if err != nil {
			return errors.Wrap(err, "failed to download fcm credentials")
		}
		opts = append(opts, fcm_client.WithCredentialsJSON(creds))
	} else {
		if _, err := os.Stat(source); err != nil {
			return errors.Wrapf(err, "fcm credentials file %s", source)
		}
		opts = append(opts, fcm_client.WithCredentialsFile(source))
	}
	return fcm_client.NewFCMClient(ctx, opts...)
}

func initStore(ctx context.Context) (store.RecipientStore, error) {
	switch driver := stringOr(config.StoreDriver, constants.DefaultStoreDriver); driver {
	case constants.StoreDriverMemory:
		log.Default().Warn("Using the in-memory recipient store, registrations are lost on restart")
		return store.NewMemoryStore(), nil
	case constants.StoreDriverPostgres:
		err := postgres_client.NewPostgresClient(ctx, viper.GetString(config.PostgresDSN),
			postgres_client.WithMaxConns(int32(intOr(config.PostgresMaxConns, 10))),
		)
		if err != nil {
			return nil, err
		}
		pg := store.NewPostgresStore(postgres_client.Pool())
		if boolOr(config.PostgresAutoMigrate, true) {
			if err = pg.Migrate(ctx); err != nil {
				pg.Close()
				return nil, err
			}
		}
		return pg, nil
	default:
		return nil, errors.Errorf("unknown store driver %q", driver)
	}
}

func init() {
	if err := config.Load(); err != nil {
		panic(fmt.Sprintf("Failed to setup service configuration: %v", err))
	}
	if err := log.InitDefault(); err != nil {
		panic(err)
	}
}

func main() {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	defer func() { _ = log.Sync() }()

	parentCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initCtx, initCancel := context.WithTimeout(parentCtx, time.Minute)
	defer initCancel()

	if viper.GetBool(config.RelayEnableS3) {
		log.Default().Info("Started initializing client connection to external S3 storage")
		if err := initS3(initCtx); err != nil {
			log.Default().Fatal(fmt.Sprintf("Failed to initialize client connection to external S3 storage: %v", err))
		}
		log.Default().Info("Finished initializing client connection to external S3 storage")
	}

	if viper.GetBool(config.RelayEnableTracing) {
		log.Default().Info("Started initializing OTEL tracer")
		shutdownTracer, err := tracer_client.NewTracerClient()
		if err != nil {
			log.Default().Fatal(fmt.Sprintf("Failed to initialize OTEL tracer: %v", err))
		}
		defer func() { _ = shutdownTracer(context.Background()) }()
		log.Default().Info("Finished initializing OTEL tracer")
	}

	// No degraded mode without push delivery.
	log.Default().Info("Started initializing FCM client")
	if err := initFCM(initCtx); err != nil {
		log.Default().Fatal(fmt.Sprintf("Failed to initialize FCM client: %v", err))
	}
	log.Default().Info("Finished initializing FCM client")

	recipients, err := initStore(initCtx)
	if err != nil {
		log.Default().Fatal(fmt.Sprintf("Failed to initialize recipient store: %v", err))
	}
	defer recipients.Close()

	log.Default().Info("Started initializing local cache")
	if err = local_cache.NewLocalCache(local_cache.WithMetrics()); err != nil {
		log.Default().Fatal(fmt.Sprintf("Failed to initialize local cache: %v", err))
	}
	readings := local_cache.NewReadingsCache(local_cache.Cache(), durationOr(config.ReadingsCacheTTL, constants.DefaultReadingsCacheTTL))
	log.Default().Info("Finished initializing local cache")

	cat := catalog.New(
		stringOr(config.TopicDevicePrefix, constants.DefaultDevicePrefix),
		stringOr(config.TopicGeneratorState, constants.DefaultGeneratorTopic),
	)

	hub := alert_feed.NewHub()
	hub.Run(parentCtx)

	liveness := alerting.NewLivenessClock(time.Now)
	dispatcher := alerting.NewDispatcher(recipients, fcm_client.Client(),
		alerting.WithFanoutLimit(intOr(config.RouterFanoutLimit, constants.DefaultRouterFanoutLimit)),
		alerting.WithCallTimeout(durationOr(config.RouterCallTimeout, constants.DefaultRouterCallTimeout)),
		alerting.WithPublisher(hub),
	)
	watchdog := alerting.NewWatchdog(dispatcher, liveness,
		alerting.WithPeriod(durationOr(config.WatchdogPeriod, constants.DefaultWatchdogPeriod)),
	)
	router := alerting.NewRouter(cat, dispatcher, watchdog,
		alerting.WithQueueSize(intOr(config.RouterQueueSize, constants.DefaultRouterQueueSize)),
		alerting.WithReadingRecorder(readings),
	)

	log.Default().Info("Started initializing client connection to MQTT broker")
	err = mqtt_client.NewMQTTClient(
		viper.GetString(config.MqttEndpoint),
		stringOr(config.MqttClientId, constants.ServiceName),
		mqtt_client.WithSubscription(
			cat.SubscriptionTopics(),
			byte(intOr(config.MqttSubscribeQoS, constants.MqttDefaultSubscribeQoS)),
			func(_ mqtt.Client, msg mqtt.Message) {
				router.Enqueue(parentCtx, msg.Topic(), msg.Payload())
			},
		),
		mqtt_client.WithCredentials(viper.GetString(config.MqttUsername), viper.GetString(config.MqttPassword)),
		mqtt_client.WithCleanSession(boolOr(config.MqttCleanSession, true)),
		mqtt_client.WithAutoReconnect(boolOr(config.MqttAutoReconnect, true)),
		mqtt_client.WithConnectTimeout(durationOr(config.MqttConnectTimeout, constants.MqttDefaultConnectTimeout)),
	)
	if err != nil {
		log.Default().Fatal(fmt.Sprintf("Failed to initialize client connection to MQTT broker: %v", err))
	}
	defer mqtt_client.Disconnect(250 * time.Millisecond)
	log.Default().Info("Finished initializing client connection to MQTT broker",
		zap.Strings("topics", cat.SubscriptionTopics()),
	)

	g, ctx := errgroup.WithContext(parentCtx)

	g.Go(func() error {
		return router.Run(ctx)
	})

	g.Go(func() error {
		return watchdog.Run(ctx)
	})

	// Init GRPC server
	g.Go(func() error {
		if !viper.GetBool(config.RelayEnableGRPC) {
			return nil
		}
		return grpc_server.NewGRPCServer(ctx, func(ctx context.Context) error {
			if !mqtt_client.IsConnected() {
				return errors.New("mqtt broker is not connected")
			}
			return recipients.Ping(ctx)
		})
	})

	// Init profiling
	g.Go(func() error {
		if !viper.GetBool(config.RelayEnableMonitoring) {
			return nil
		}
		return monitoring.NewMonitoringServer(ctx, monitoring.WithCacheMetrics(local_cache.Cache().Metrics))
	})

	// Init HTTP server
	g.Go(func() error {
		appState := routers.NewAppState()

		v1RestState := routers.NewV1RestState()
		v1RestState.SetDeviceService(
			restful.NewDeviceService(
				restful.WithRecipientStore(recipients),
				restful.WithCatalog(cat),
				restful.WithRecipientLocker(dispatcher),
				restful.WithStoreTimeout(dispatcher.CallTimeout()),
			),
		)
		v1RestState.SetReadingsService(
			restful.NewReadingsService(
				restful.WithReadingsSource(readings),
				restful.WithLivenessSource(liveness),
				restful.WithReadingsCatalog(cat),
			),
		)
		v1RestState.SetHealthcheckService(
			restful.NewHealthcheckService(
				restful.WithStorePinger(recipients),
				restful.WithBrokerState(mqtt_client.IsConnected),
			),
		)
		appState.SetV1RestState(v1RestState)

		websocketState := routers.NewWebsocketState()
		websocketState.SetAlertFeedService(
			ws.NewAlertFeedService(
				ws.WithAlertFeedHub(hub),
			),
		)
		appState.SetWebsocketState(websocketState)

		return rest_server.NewHTTPServer(ctx, routers.NewRootRouter(appState, rest_server.HTTPRequestTimeout()).InitRouters)
	})

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case sig := <-sigCh:
		log.Default().Info(fmt.Sprintf("Signal received: %v", sig))
		cancel()

		select {
		case err = <-done:
			log.Default().Info("All tasks exited, shutting down relay")
		case sig2 := <-sigCh:
			log.Default().Info(fmt.Sprintf("Second signal received: %v", sig2))
		case <-time.After(constants.GraceWaitPeriod):
			log.Default().Info("Grace period timed out, forcing exit")
		}
	case err = <-done:
		if err != nil {
			log.Default().Error("Services finished early with error", zap.Error(err))
		}
	}
}
