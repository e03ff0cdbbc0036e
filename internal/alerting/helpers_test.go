package alerting

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/okieraised/power-alert-relay/internal/catalog"
	"github.com/okieraised/power-alert-relay/internal/models"
	"github.com/okieraised/power-alert-relay/internal/store"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type sentNotification struct {
	token string
	n     models.Notification
}

type fakeGateway struct {
	mu   sync.Mutex
	sent []sentNotification
	errs map[string]error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{errs: make(map[string]error)}
}

func (g *fakeGateway) Send(_ context.Context, token string, n models.Notification) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, sentNotification{token: token, n: n})
	return g.errs[token]
}

func (g *fakeGateway) failWith(token string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.errs[token] = err
}

func (g *fakeGateway) sentTo(token string) []models.Notification {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]models.Notification, 0)
	for _, s := range g.sent {
		if s.token == token {
			out = append(out, s.n)
		}
	}
	return out
}

func (g *fakeGateway) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sent)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.AlertEvent
}

func (p *fakePublisher) Publish(evt models.AlertEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *fakePublisher) all() []models.AlertEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.AlertEvent(nil), p.events...)
}

type fakeRecorder struct {
	mu       sync.Mutex
	readings []models.Reading
}

func (r *fakeRecorder) Record(reading models.Reading) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readings = append(r.readings, reading)
}

func (r *fakeRecorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.readings)
}

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func newManualClock() *manualClock {
	return &manualClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) Add(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	cat        *catalog.Catalog
	store      *store.MemoryStore
	gateway    *fakeGateway
	publisher  *fakePublisher
	readings   *fakeRecorder
	clock      *manualClock
	liveness   *LivenessClock
	dispatcher *Dispatcher
	watchdog   *Watchdog
	router     *Router
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		cat:       catalog.New(testPrefix, testGenerator),
		store:     store.NewMemoryStore(),
		gateway:   newFakeGateway(),
		publisher: &fakePublisher{},
		readings:  &fakeRecorder{},
		clock:     newManualClock(),
	}
	h.liveness = NewLivenessClock(h.clock.Now)
	h.dispatcher = NewDispatcher(h.store, h.gateway,
		WithPublisher(h.publisher),
		WithFanoutLimit(4),
		WithCallTimeout(time.Second),
		WithDispatcherClock(h.clock.Now),
	)
	h.watchdog = NewWatchdog(h.dispatcher, h.liveness, WithPeriod(time.Minute))
	h.router = NewRouter(h.cat, h.dispatcher, h.watchdog,
		WithReadingRecorder(h.readings),
		WithRouterClock(h.clock.Now),
		WithQueueSize(8),
	)
	return h
}

func (h *harness) register(t *testing.T, reg models.Registration) models.Recipient {
	t.Helper()
	rec, err := h.store.UpsertOnRegister(context.Background(), reg, h.cat.DefaultBounds)
	require.NoError(t, err)
	return rec
}

func (h *harness) get(t *testing.T, token string) models.Recipient {
	t.Helper()
	rec, err := h.store.Get(context.Background(), token)
	require.NoError(t, err)
	return rec
}

// failingStore wraps a MemoryStore and fails reads or writes for chosen tokens.
type failingStore struct {
	*store.MemoryStore
	failGet    map[string]bool
	failUpdate map[string]bool
}

func (s *failingStore) Get(ctx context.Context, token string) (models.Recipient, error) {
	if s.failGet[token] {
		return models.Recipient{}, errors.New("connection refused")
	}
	return s.MemoryStore.Get(ctx, token)
}

func (s *failingStore) Update(ctx context.Context, token string, update models.RecipientUpdate) error {
	if s.failUpdate[token] {
		return errors.New("connection refused")
	}
	return s.MemoryStore.Update(ctx, token, update)
}

// withStore rebuilds the dispatcher, watchdog and router on top of s.
func (h *harness) withStore(s store.RecipientStore) {
	h.dispatcher = NewDispatcher(s, h.gateway,
		WithPublisher(h.publisher),
		WithFanoutLimit(4),
		WithCallTimeout(time.Second),
		WithDispatcherClock(h.clock.Now),
	)
	h.watchdog = NewWatchdog(h.dispatcher, h.liveness, WithPeriod(time.Minute))
	h.router = NewRouter(h.cat, h.dispatcher, h.watchdog,
		WithReadingRecorder(h.readings),
		WithRouterClock(h.clock.Now),
		WithQueueSize(8),
	)
}
