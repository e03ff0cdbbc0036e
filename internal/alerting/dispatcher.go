package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/okieraised/power-alert-relay/internal/constants"
	"github.com/okieraised/power-alert-relay/internal/infrastructure/log"
	"github.com/okieraised/power-alert-relay/internal/infrastructure/tracer_client"
	"github.com/okieraised/power-alert-relay/internal/models"
	"github.com/okieraised/power-alert-relay/internal/notifier"
	"github.com/okieraised/power-alert-relay/internal/store"
	"github.com/okieraised/power-alert-relay/internal/utilities"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	persistAttempts      = 3
	persistBackoffStart  = 100 * time.Millisecond
	persistBackoffMax    = time.Second
	dispatcherTracerName = "alerting.dispatcher"
)

// AlertPublisher receives every notification the relay attempts to send.
type AlertPublisher interface {
	Publish(evt models.AlertEvent)
}

type nopPublisher struct{}

func (nopPublisher) Publish(models.AlertEvent) {}

// Evaluator decides, from the recipient's current record, whether to notify
// and which latch fields to persist.
type Evaluator func(rec models.Recipient) (*Emission, models.RecipientUpdate)

// Source describes the message that triggered a fan-out.
type Source struct {
	Topic string
	Value *float64
}

// RecipientFailure is a per-recipient error collected during a fan-out.
type RecipientFailure struct {
	Token string
	Err   error
}

func (f RecipientFailure) Error() string {
	return fmt.Sprintf("recipient %s: %v", f.Token, f.Err)
}

type dispatcherOptions struct {
	fanoutLimit int
	callTimeout time.Duration
	publisher   AlertPublisher
	locks       *utilities.KeyedMutex
	now         func() time.Time
}

type DispatcherOption func(*dispatcherOptions)

func WithFanoutLimit(n int) DispatcherOption {
	return func(o *dispatcherOptions) {
		if n > 0 {
			o.fanoutLimit = n
		}
	}
}

func WithCallTimeout(d time.Duration) DispatcherOption {
	return func(o *dispatcherOptions) {
		if d > 0 {
			o.callTimeout = d
		}
	}
}

func WithPublisher(p AlertPublisher) DispatcherOption {
	return func(o *dispatcherOptions) {
		if p != nil {
			o.publisher = p
		}
	}
}

func WithKeyedMutex(m *utilities.KeyedMutex) DispatcherOption {
	return func(o *dispatcherOptions) {
		if m != nil {
			o.locks = m
		}
	}
}

func WithDispatcherClock(now func() time.Time) DispatcherOption {
	return func(o *dispatcherOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// Dispatcher runs evaluate, send, and persist for a set of recipients. Work
// for a single recipient is serialized through a per-token lock shared by
// every caller of the same Dispatcher.
type Dispatcher struct {
	store   store.RecipientStore
	gateway notifier.Gateway
	opts    dispatcherOptions
	logger  *log.Logger
}

func NewDispatcher(s store.RecipientStore, gw notifier.Gateway, opts ...DispatcherOption) *Dispatcher {
	o := dispatcherOptions{
		fanoutLimit: constants.DefaultRouterFanoutLimit,
		callTimeout: constants.DefaultRouterCallTimeout,
		publisher:   nopPublisher{},
		locks:       utilities.NewKeyedMutex(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Dispatcher{
		store:   s,
		gateway: gw,
		opts:    o,
		logger:  log.Component("dispatcher"),
	}
}

// Lock serializes work on a single recipient with in-flight alert deliveries.
func (d *Dispatcher) Lock(token string) func() {
	return d.opts.locks.Lock(token)
}

func (d *Dispatcher) CallTimeout() time.Duration {
	return d.opts.callTimeout
}

// FanOut evaluates every token concurrently, bounded by the fan-out limit.
// A failing recipient never cancels its siblings; failures are returned.
func (d *Dispatcher) FanOut(ctx context.Context, src Source, tokens []string, eval Evaluator) []RecipientFailure {
	if len(tokens) == 0 {
		return nil
	}

	failures := make([]RecipientFailure, len(tokens))
	var g errgroup.Group
	g.SetLimit(d.opts.fanoutLimit)
	for i, token := range tokens {
		g.Go(func() error {
			if err := d.deliver(ctx, src, token, eval); err != nil {
				failures[i] = RecipientFailure{Token: token, Err: err}
			}
			return nil
		})
	}
	_ = g.Wait()

	out := failures[:0]
	for _, f := range failures {
		if f.Err != nil {
			out = append(out, f)
		}
	}
	return out
}

func (d *Dispatcher) deliver(ctx context.Context, src Source, token string, eval Evaluator) (err error) {
	ctx, span := tracer_client.Tracer(dispatcherTracerName).Start(ctx, "deliver")
	span.SetAttributes(attribute.String("alert.topic", src.Topic))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	unlock := d.Lock(token)
	defer unlock()

	rec, err := d.get(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	em, update := eval(rec)
	if em == nil {
		return d.persist(ctx, token, update)
	}
	span.SetAttributes(attribute.String("alert.kind", string(em.Kind)))

	sendErr := d.send(ctx, token, em.Notification)
	outcome := notifier.Classify(sendErr)
	d.opts.publisher.Publish(models.AlertEvent{
		Kind:         em.Kind,
		Topic:        src.Topic,
		Value:        src.Value,
		Recipient:    utilities.MaskToken(token),
		Notification: em.Notification,
		Delivered:    outcome == notifier.OutcomeDelivered,
		Timestamp:    d.opts.now(),
	})

	fields := []zap.Field{
		log.Recipient(token),
		zap.String("alert.kind", string(em.Kind)),
		zap.String("alert.topic", src.Topic),
		zap.String("outcome", string(outcome)),
	}
	switch outcome {
	case notifier.OutcomeDelivered:
		d.logger.Info("Notification sent", fields...)
	case notifier.OutcomeUnregistered:
		d.logger.Info("Token is no longer registered, removing recipient", fields...)
		return d.remove(ctx, token)
	default:
		d.logger.Warn("Notification failed", append(fields, zap.Error(sendErr))...)
	}

	// Latches are kept after any attempted send, so a failing provider does not
	// turn every reading into a new notification.
	if err = d.persist(ctx, token, update); err != nil {
		return err
	}
	return sendErr
}

func (d *Dispatcher) get(ctx context.Context, token string) (models.Recipient, error) {
	cctx, cancel := context.WithTimeout(ctx, d.opts.callTimeout)
	defer cancel()
	return d.store.Get(cctx, token)
}

func (d *Dispatcher) send(ctx context.Context, token string, n models.Notification) error {
	cctx, cancel := context.WithTimeout(ctx, d.opts.callTimeout)
	defer cancel()
	return d.gateway.Send(cctx, token, n)
}

func (d *Dispatcher) remove(ctx context.Context, token string) error {
	cctx, cancel := context.WithTimeout(ctx, d.opts.callTimeout)
	defer cancel()
	if err := d.store.DeleteByToken(cctx, token); err != nil {
		return errors.Wrap(err, "failed to remove unregistered recipient")
	}
	return nil
}

func (d *Dispatcher) persist(ctx context.Context, token string, update models.RecipientUpdate) error {
	if update.IsEmpty() {
		return nil
	}
	err := utilities.RetryWithBackoff(ctx, func(ctx context.Context) error {
		cctx, cancel := context.WithTimeout(ctx, d.opts.callTimeout)
		defer cancel()
		err := d.store.Update(cctx, token, update)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}, persistAttempts, persistBackoffStart, persistBackoffMax)
	if err != nil {
		return errors.Wrap(err, "failed to persist alert state")
	}
	return nil
}
