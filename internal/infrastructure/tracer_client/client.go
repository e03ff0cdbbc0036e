package tracer_client

import (
	"context"
	"sync"
	"time"

	"github.com/okieraised/power-alert-relay/internal/config"
	"github.com/okieraised/power-alert-relay/internal/constants"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
)

var (
	mu   sync.Mutex
	tp   *sdktrace.TracerProvider
	once sync.Once
)

type options struct {
	endpoint    string
	insecure    bool
	serviceName string
	namespace   string
	timeout     time.Duration
	sampleRatio float64
	exporter    sdktrace.SpanExporter
}

type Option func(*options)

func WithEndpoint(ep string) Option {
	return func(o *options) { o.endpoint = ep }
}

func WithInsecure(insecure bool) Option {
	return func(o *options) { o.insecure = insecure }
}

func WithServiceName(name string) Option {
	return func(o *options) { o.serviceName = name }
}

func WithNamespace(ns string) Option {
	return func(o *options) { o.namespace = ns }
}

func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithSampleRatio sets the fraction of root spans that are recorded.
func WithSampleRatio(r float64) Option {
	return func(o *options) { o.sampleRatio = r }
}

// WithExporter replaces the OTLP exporter, mainly for tests.
func WithExporter(exp sdktrace.SpanExporter) Option {
	return func(o *options) { o.exporter = exp }
}

func defaultOptionsFromViper() options {
	return options{
		endpoint:    viper.GetString(config.TracingEndpoint),
		insecure:    viper.GetBool(config.TracingInsecure),
		namespace:   viper.GetString(config.TracingNamespace),
		serviceName: constants.ServiceName,
		timeout:     10 * time.Second,
		sampleRatio: 1.0,
	}
}

// NewTracerClient installs the global tracer provider once and returns its shutdown function.
func NewTracerClient(opts ...Option) (func(ctx context.Context) error, error) {
	var initErr error
	once.Do(func() {
		opt := defaultOptionsFromViper()
		for _, o := range opts {
			o(&opt)
		}
		if opt.timeout <= 0 {
			opt.timeout = 10 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), opt.timeout)
		defer cancel()

		exp := opt.exporter
		if exp == nil {
			if opt.endpoint == "" {
				initErr = errors.New("tracing endpoint is not configured")
				return
			}
			grpcOpts := []grpc.DialOption{
				grpc.WithKeepaliveParams(keepalive.ClientParameters{PermitWithoutStream: true}),
			}
			if opt.insecure {
				grpcOpts = append(grpcOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
			}
			var err error
			exp, err = otlptrace.New(ctx, otlptracegrpc.NewClient(
				otlptracegrpc.WithEndpoint(opt.endpoint),
				otlptracegrpc.WithDialOption(grpcOpts...),
			))
			if err != nil {
				initErr = errors.Wrap(err, "create otlp trace exporter")
				return
			}
		}

		attrs := []resource.Option{
			resource.WithFromEnv(),
			resource.WithProcess(),
			resource.WithTelemetrySDK(),
			resource.WithHost(),
		}
		if opt.namespace != "" {
			attrs = append(attrs, resource.WithAttributes(semconv.ServiceName(opt.serviceName), semconv.K8SNamespaceName(opt.namespace)))
		} else {
			attrs = append(attrs, resource.WithAttributes(semconv.ServiceName(opt.serviceName)))
		}
		res, err := resource.New(ctx, attrs...)
		if err != nil {
			initErr = errors.Wrap(err, "create resource")
			return
		}

		provider := sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(opt.sampleRatio))),
			sdktrace.WithBatcher(
				exp,
				sdktrace.WithBatchTimeout(5*time.Second),
				sdktrace.WithExportTimeout(10*time.Second),
			),
		)

		mu.Lock()
		tp = provider
		mu.Unlock()
		otel.SetTracerProvider(provider)
		otel.SetTextMapPropagator(
			propagation.NewCompositeTextMapPropagator(
				propagation.TraceContext{},
				propagation.Baggage{},
			),
		)
	})

	if initErr != nil {
		return nil, initErr
	}
	return Shutdown, nil
}

func Provider() *sdktrace.TracerProvider {
	mu.Lock()
	defer mu.Unlock()
	return tp
}

// Tracer returns a tracer from the installed provider, or the global no-op
// provider when tracing is disabled.
func Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	if p := Provider(); p != nil {
		return p.Tracer(name, opts...)
	}
	return otel.Tracer(name, opts...)
}

func Shutdown(ctx context.Context) error {
	mu.Lock()
	p := tp
	tp = nil
	mu.Unlock()
	if p == nil {
		return nil
	}
	return errors.Wrap(p.Shutdown(ctx), "shutdown tracer provider")
}
