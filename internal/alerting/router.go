package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/okieraised/power-alert-relay/internal/catalog"
	"github.com/okieraised/power-alert-relay/internal/constants"
	"github.com/okieraised/power-alert-relay/internal/infrastructure/log"
	"github.com/okieraised/power-alert-relay/internal/infrastructure/tracer_client"
	"github.com/okieraised/power-alert-relay/internal/models"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const routerTracerName = "alerting.router"

// ReadingRecorder keeps the latest value of each numeric topic.
type ReadingRecorder interface {
	Record(reading models.Reading)
}

type nopRecorder struct{}

func (nopRecorder) Record(models.Reading) {}

type message struct {
	topic   string
	payload []byte
}

type routerOptions struct {
	queueSize int
	readings  ReadingRecorder
	now       func() time.Time
}

type RouterOption func(*routerOptions)

func WithQueueSize(n int) RouterOption {
	return func(o *routerOptions) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

func WithReadingRecorder(r ReadingRecorder) RouterOption {
	return func(o *routerOptions) {
		if r != nil {
			o.readings = r
		}
	}
}

func WithRouterClock(now func() time.Time) RouterOption {
	return func(o *routerOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// Router classifies inbound messages and fans alerts out to recipients.
// Messages are processed one at a time in arrival order.
type Router struct {
	catalog    *catalog.Catalog
	dispatcher *Dispatcher
	watchdog   *Watchdog
	opts       routerOptions
	queue      chan message
	logger     *log.Logger
}

func NewRouter(cat *catalog.Catalog, dispatcher *Dispatcher, watchdog *Watchdog, opts ...RouterOption) *Router {
	o := routerOptions{
		queueSize: constants.DefaultRouterQueueSize,
		readings:  nopRecorder{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Router{
		catalog:    cat,
		dispatcher: dispatcher,
		watchdog:   watchdog,
		opts:       o,
		queue:      make(chan message, o.queueSize),
		logger:     log.Component("router"),
	}
}

// Enqueue hands a message to the worker. It waits at most the call timeout
// for queue space and reports whether the message was accepted.
func (r *Router) Enqueue(ctx context.Context, topic string, payload []byte) bool {
	msg := message{topic: topic, payload: append([]byte(nil), payload...)}
	select {
	case r.queue <- msg:
		return true
	default:
	}

	t := time.NewTimer(r.dispatcher.CallTimeout())
	defer t.Stop()
	select {
	case r.queue <- msg:
		return true
	case <-t.C:
	case <-ctx.Done():
	}
	r.logger.Warn("Router queue is full, dropping message", zap.String("topic", topic))
	return false
}

// Run drains the queue until ctx is done. A message already being routed
// completes under its own call timeouts.
func (r *Router) Run(ctx context.Context) error {
	r.logger.Info("Starting message router", zap.Int("queue_size", r.opts.queueSize))
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Stopping message router", zap.Int("pending", len(r.queue)))
			return nil
		case msg := <-r.queue:
			err := r.Route(context.WithoutCancel(ctx), msg.topic, msg.payload)
			switch {
			case err == nil, errors.Is(err, ErrUnknownTopic):
			case errors.Is(err, ErrMalformedPayload):
				r.logger.Warn("Dropping malformed payload", zap.String("topic", msg.topic), zap.Error(err))
			default:
				r.logger.Error("Failed to route message", zap.String("topic", msg.topic), zap.Error(err))
			}
		}
	}
}

// Route processes one message. Any telemetry refreshes liveness before the
// topic-specific handling runs.
func (r *Router) Route(ctx context.Context, topic string, payload []byte) (err error) {
	ctx, span := tracer_client.Tracer(routerTracerName).Start(ctx, "route")
	span.SetAttributes(attribute.String("mqtt.topic", topic))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	telemetry := r.catalog.IsTelemetry(topic)
	if telemetry {
		if oerr := r.watchdog.Observe(ctx); oerr != nil {
			r.logger.Error("Failed to record telemetry", zap.Error(oerr))
		}
	}

	if r.catalog.IsGeneratorStatus(topic) {
		return r.routeGenerator(ctx, topic, payload)
	}
	if def, ok := r.catalog.Lookup(topic); ok {
		return r.routeNumeric(ctx, def, payload)
	}
	if telemetry {
		return nil
	}
	return errors.Wrap(ErrUnknownTopic, topic)
}

func (r *Router) routeGenerator(ctx context.Context, topic string, payload []byte) error {
	status, err := ParseGeneratorStatus(payload)
	if err != nil {
		return err
	}

	recs, err := r.find(ctx, func(ctx context.Context) ([]models.Recipient, error) {
		return r.dispatcher.store.FindByGeneratorEnabled(ctx)
	})
	if err != nil {
		return errors.Wrap(err, "failed to load generator recipients")
	}

	failures := r.dispatcher.FanOut(ctx, Source{Topic: topic}, tokensOf(recs), func(rec models.Recipient) (*Emission, models.RecipientUpdate) {
		if !rec.Generator.Enabled {
			return nil, models.RecipientUpdate{}
		}
		em, next := EvaluateGenerator(status, rec.Generator)
		if rec.Generator.LastStatus != nil && *rec.Generator.LastStatus == status {
			return em, models.RecipientUpdate{}
		}
		return em, models.RecipientUpdate{GeneratorLastStatus: next.LastStatus}
	})
	r.logFailures(topic, failures)
	return nil
}

func (r *Router) routeNumeric(ctx context.Context, def catalog.TopicDefinition, payload []byte) error {
	value, err := ParseReading(payload)
	if err != nil {
		return err
	}
	r.opts.readings.Record(models.Reading{
		Topic:      def.Topic,
		Label:      def.Label,
		Unit:       def.Unit,
		Value:      value,
		ReceivedAt: r.opts.now(),
	})

	recs, err := r.find(ctx, func(ctx context.Context) ([]models.Recipient, error) {
		return r.dispatcher.store.FindByTopicEnabled(ctx, def.Topic)
	})
	if err != nil {
		return errors.Wrapf(err, "failed to load recipients of %s", def.Topic)
	}

	v := value
	failures := r.dispatcher.FanOut(ctx, Source{Topic: def.Topic, Value: &v}, tokensOf(recs), func(rec models.Recipient) (*Emission, models.RecipientUpdate) {
		rule, ok := rec.Topics[def.Topic]
		if !ok || !rule.Enabled {
			return nil, models.RecipientUpdate{}
		}
		em, next := EvaluateNumeric(def, value, rule)
		if next.AlertSentLow == rule.AlertSentLow && next.AlertSentHigh == rule.AlertSentHigh {
			return em, models.RecipientUpdate{}
		}
		return em, models.RecipientUpdate{
			TopicLatches: map[string]models.Latches{
				def.Topic: {Low: next.AlertSentLow, High: next.AlertSentHigh},
			},
		}
	})
	r.logFailures(def.Topic, failures)
	return nil
}

func (r *Router) find(ctx context.Context, fn func(ctx context.Context) ([]models.Recipient, error)) ([]models.Recipient, error) {
	cctx, cancel := context.WithTimeout(ctx, r.dispatcher.CallTimeout())
	defer cancel()
	return fn(cctx)
}

func (r *Router) logFailures(topic string, failures []RecipientFailure) {
	for _, f := range failures {
		r.logger.Warn(fmt.Sprintf("Alert delivery failed for topic [%s]", topic),
			log.Recipient(f.Token),
			zap.Error(f.Err),
		)
	}
}

func tokensOf(recs []models.Recipient) []string {
	tokens := make([]string, len(recs))
	for i, rec := range recs {
		tokens[i] = rec.Token
	}
	return tokens
}
