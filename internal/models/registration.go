package models

import (
	"math"

	"github.com/pkg/errors"
)

type TopicSettings struct {
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Enabled *bool    `json:"enabled,omitempty"`
}

type GeneratorSettings struct {
	Enabled *bool `json:"enabled,omitempty"`
}

type TimeoutSettings struct {
	Enabled *bool    `json:"enabled,omitempty"`
	Minutes *float64 `json:"minutes,omitempty"`
}

// Registration is a partial-merge upsert request. Only supplied fields change.
type Registration struct {
	Token                 string                   `json:"fcmToken"`
	Topics                map[string]TopicSettings `json:"topics,omitempty"`
	GeneratorStatusAlerts *GeneratorSettings       `json:"generatorStatusAlerts,omitempty"`
	CommunicationTimeout  *TimeoutSettings         `json:"communicationTimeout,omitempty"`
}

func (r *Registration) Validate() error {
	if r.Token == "" {
		return errors.New("fcmToken is required")
	}
	for topic, s := range r.Topics {
		if s.Min != nil && !isFinite(*s.Min) {
			return errors.Errorf("topic %s: min must be a finite number", topic)
		}
		if s.Max != nil && !isFinite(*s.Max) {
			return errors.Errorf("topic %s: max must be a finite number", topic)
		}
	}
	if r.CommunicationTimeout != nil && r.CommunicationTimeout.Minutes != nil {
		m := *r.CommunicationTimeout.Minutes
		if !isFinite(m) || m <= 0 {
			return errors.New("communicationTimeout.minutes must be greater than zero")
		}
	}
	return nil
}

// Merge applies the registration onto rec in place. Supplying any setting for a
// topic resets that topic's latches; disabling the timeout rule clears its latch;
// disabling generator alerts forgets the last observed status.
func (r *Registration) Merge(rec *Recipient, defaults func(topic string) (low, high *float64)) {
	if rec.Topics == nil {
		rec.Topics = make(map[string]TopicRule)
	}
	for topic, s := range r.Topics {
		rule, ok := rec.Topics[topic]
		if !ok && defaults != nil {
			rule.Low, rule.High = defaults(topic)
		}
		if s.Min != nil {
			v := *s.Min
			rule.Low = &v
		}
		if s.Max != nil {
			v := *s.Max
			rule.High = &v
		}
		if s.Enabled != nil {
			rule.Enabled = *s.Enabled
		}
		rule.AlertSentLow, rule.AlertSentHigh = false, false
		rec.Topics[topic] = rule
	}

	if g := r.GeneratorStatusAlerts; g != nil && g.Enabled != nil {
		rec.Generator.Enabled = *g.Enabled
		if !rec.Generator.Enabled {
			rec.Generator.LastStatus = nil
		}
	}

	if t := r.CommunicationTimeout; t != nil {
		if t.Minutes != nil {
			rec.CommTimeout.Minutes = *t.Minutes
		}
		if t.Enabled != nil {
			rec.CommTimeout.Enabled = *t.Enabled
			if !rec.CommTimeout.Enabled {
				rec.CommTimeout.AlertSent = false
			}
		}
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
