package alerting

import (
	"sync"
	"time"
)

// LivenessClock records when telemetry was last seen from the power station.
// It starts at construction time, so a station that never reports is still
// detected as silent.
type LivenessClock struct {
	mu       sync.RWMutex
	now      func() time.Time
	lastSeen time.Time
}

func NewLivenessClock(now func() time.Time) *LivenessClock {
	if now == nil {
		now = time.Now
	}
	return &LivenessClock{now: now, lastSeen: now()}
}

// Advance moves the clock to the current time and returns it.
func (l *LivenessClock) Advance() time.Time {
	t := l.now()
	l.mu.Lock()
	if t.After(l.lastSeen) {
		l.lastSeen = t
	}
	l.mu.Unlock()
	return t
}

func (l *LivenessClock) LastSeen() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastSeen
}

// Silence is the time elapsed since telemetry was last seen.
func (l *LivenessClock) Silence() time.Duration {
	return l.now().Sub(l.LastSeen())
}
