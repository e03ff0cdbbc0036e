package alerting

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okieraised/power-alert-relay/internal/constants"
	"github.com/okieraised/power-alert-relay/internal/infrastructure/log"
	"github.com/okieraised/power-alert-relay/internal/models"
	"github.com/okieraised/power-alert-relay/internal/utilities"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type watchdogOptions struct {
	period time.Duration
}

type WatchdogOption func(*watchdogOptions)

func WithPeriod(d time.Duration) WatchdogOption {
	return func(o *watchdogOptions) {
		if d > 0 {
			o.period = d
		}
	}
}

// Watchdog notifies recipients when the power station has been silent for
// longer than their configured timeout. Each recipient is notified at most
// once per silence episode; the next telemetry message starts a new episode.
type Watchdog struct {
	dispatcher *Dispatcher
	clock      *LivenessClock
	opts       watchdogOptions
	logger     *log.Logger

	// mu guards latchesDirty and the epoch bump. It is not held across sends.
	mu sync.Mutex
	// latchesDirty is false only after a successful sweep with no tick firing since.
	latchesDirty bool
	// epoch counts observations; a tick that overlaps one must not latch.
	epoch atomic.Uint64
}

func NewWatchdog(dispatcher *Dispatcher, clock *LivenessClock, opts ...WatchdogOption) *Watchdog {
	o := watchdogOptions{period: constants.DefaultWatchdogPeriod}
	for _, opt := range opts {
		opt(&o)
	}
	return &Watchdog{
		dispatcher:   dispatcher,
		clock:        clock,
		opts:         o,
		logger:       log.Component("watchdog"),
		latchesDirty: true,
	}
}

// Observe records telemetry: it advances the liveness clock and clears every
// latched timeout alert so the next silence can be reported again.
func (w *Watchdog) Observe(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.epoch.Add(1)
	w.clock.Advance()
	if !w.latchesDirty {
		return nil
	}

	cctx, cancel := context.WithTimeout(ctx, w.dispatcher.CallTimeout())
	defer cancel()
	n, err := w.dispatcher.store.ClearTimeoutAlerts(cctx)
	if err != nil {
		return errors.Wrap(err, "failed to clear timeout alerts")
	}
	w.latchesDirty = false
	if n > 0 {
		w.logger.Info("Telemetry resumed, timeout alerts re-armed", zap.Int64("recipients", n))
	}
	return nil
}

// Tick evaluates every armed recipient once against the current silence.
func (w *Watchdog) Tick(ctx context.Context) ([]RecipientFailure, error) {
	tokens, silence, epoch, err := w.armed(ctx)
	if err != nil || len(tokens) == 0 {
		return nil, err
	}

	w.logger.Info("Power station is silent",
		zap.Duration("silence", silence),
		zap.Int("recipients", len(tokens)),
	)
	failures := w.dispatcher.FanOut(ctx, Source{}, tokens, func(rec models.Recipient) (*Emission, models.RecipientUpdate) {
		if w.epoch.Load() != epoch || rec.CommTimeout.AlertSent || !timedOut(rec.CommTimeout, silence) {
			return nil, models.RecipientUpdate{}
		}
		return &Emission{
				Kind:         models.AlertKindTimeout,
				Notification: TimeoutNotification(rec.CommTimeout.Minutes),
			}, models.RecipientUpdate{
				TimeoutAlertSent: utilities.Ptr(true),
			}
	})

	// Telemetry arrived mid-sweep: a latch may have landed after the clear.
	w.mu.Lock()
	if w.epoch.Load() != epoch {
		w.latchesDirty = true
	}
	w.mu.Unlock()
	return failures, nil
}

// armed selects the recipients whose timeout has elapsed and marks latches
// dirty before any of them is sent.
func (w *Watchdog) armed(ctx context.Context) ([]string, time.Duration, uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	epoch := w.epoch.Load()
	silence := w.clock.Silence()

	cctx, cancel := context.WithTimeout(ctx, w.dispatcher.CallTimeout())
	recs, err := w.dispatcher.store.FindByTimeoutEnabled(cctx, true)
	cancel()
	if err != nil {
		return nil, 0, 0, errors.Wrap(err, "failed to load timeout recipients")
	}

	tokens := make([]string, 0, len(recs))
	for _, rec := range recs {
		if timedOut(rec.CommTimeout, silence) {
			tokens = append(tokens, rec.Token)
		}
	}
	if len(tokens) > 0 {
		w.latchesDirty = true
	}
	return tokens, silence, epoch, nil
}

// Run ticks every period until ctx is done.
func (w *Watchdog) Run(ctx context.Context) error {
	w.logger.Info("Starting communication watchdog", zap.Duration("period", w.opts.period))
	ticker := time.NewTicker(w.opts.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Stopping communication watchdog")
			return nil
		case <-ticker.C:
			failures, err := w.Tick(ctx)
			if err != nil {
				w.logger.Error("Watchdog tick failed", zap.Error(err))
				continue
			}
			for _, f := range failures {
				w.logger.Warn("Timeout alert failed", log.Recipient(f.Token), zap.Error(f.Err))
			}
		}
	}
}

func timedOut(rule models.TimeoutRule, silence time.Duration) bool {
	if !rule.Enabled || rule.Minutes <= 0 {
		return false
	}
	// Compared in minutes: a large threshold would overflow time.Duration.
	return silence.Minutes() > rule.Minutes
}
