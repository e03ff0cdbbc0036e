package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okieraised/power-alert-relay/internal/constants"
	"github.com/okieraised/power-alert-relay/internal/models"
)

// MemoryStore keeps recipients in process memory. Reads return deep copies.
type MemoryStore struct {
	mu         sync.RWMutex
	recipients map[string]*models.Recipient
	now        func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		recipients: make(map[string]*models.Recipient),
		now:        time.Now,
	}
}

func (s *MemoryStore) find(match func(r *models.Recipient) bool) []models.Recipient {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Recipient, 0)
	for _, r := range s.recipients {
		if match(r) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out
}

func (s *MemoryStore) FindByTopicEnabled(_ context.Context, topic string) ([]models.Recipient, error) {
	return s.find(func(r *models.Recipient) bool {
		rule, ok := r.Topics[topic]
		return ok && rule.Enabled
	}), nil
}

func (s *MemoryStore) FindByGeneratorEnabled(_ context.Context) ([]models.Recipient, error) {
	return s.find(func(r *models.Recipient) bool { return r.Generator.Enabled }), nil
}

func (s *MemoryStore) FindByTimeoutEnabled(_ context.Context, excludingAlerted bool) ([]models.Recipient, error) {
	return s.find(func(r *models.Recipient) bool {
		return r.CommTimeout.Enabled && !(excludingAlerted && r.CommTimeout.AlertSent)
	}), nil
}

func (s *MemoryStore) Get(_ context.Context, token string) (models.Recipient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.recipients[token]
	if !ok {
		return models.Recipient{}, ErrNotFound
	}
	return r.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, token string, update models.RecipientUpdate) error {
	if update.IsEmpty() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.recipients[token]
	if !ok {
		return ErrNotFound
	}
	for topic, l := range update.TopicLatches {
		rule, ok := r.Topics[topic]
		if !ok {
			continue
		}
		rule.AlertSentLow, rule.AlertSentHigh = l.Low, l.High
		r.Topics[topic] = rule
	}
	if update.GeneratorLastStatus != nil {
		st := *update.GeneratorLastStatus
		r.Generator.LastStatus = &st
	}
	if update.TimeoutAlertSent != nil {
		r.CommTimeout.AlertSent = *update.TimeoutAlertSent
	}
	r.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) ClearTimeoutAlerts(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, r := range s.recipients {
		if r.CommTimeout.AlertSent {
			r.CommTimeout.AlertSent = false
			r.UpdatedAt = s.now()
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) DeleteByToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.recipients, token)
	return nil
}

func (s *MemoryStore) UpsertOnRegister(_ context.Context, reg models.Registration, defaults DefaultsFunc) (models.Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	r, ok := s.recipients[reg.Token]
	if !ok {
		r = &models.Recipient{
			Token:       reg.Token,
			Topics:      make(map[string]models.TopicRule),
			CommTimeout: models.TimeoutRule{Minutes: constants.DefaultTimeoutMinutes},
			CreatedAt:   now,
		}
		s.recipients[reg.Token] = r
	}
	reg.Merge(r, defaults)
	r.UpdatedAt = now
	return r.Clone(), nil
}

func (s *MemoryStore) Ping(_ context.Context) error { return nil }

func (s *MemoryStore) Close() {}
