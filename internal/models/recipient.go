package models

import "time"

type GeneratorStatus string

const (
	GeneratorOn  GeneratorStatus = "On"
	GeneratorOff GeneratorStatus = "Off"
)

// TopicRule is a recipient's threshold rule for one numeric topic.
// AlertSentLow and AlertSentHigh are latches cleared only when the value returns to range.
type TopicRule struct {
	Low           *float64 `json:"min"`
	High          *float64 `json:"max"`
	Enabled       bool     `json:"enabled"`
	AlertSentLow  bool     `json:"alertSentLow"`
	AlertSentHigh bool     `json:"alertSentHigh"`
}

type GeneratorRule struct {
	Enabled    bool             `json:"enabled"`
	LastStatus *GeneratorStatus `json:"lastStatus"`
}

type TimeoutRule struct {
	Enabled   bool    `json:"enabled"`
	Minutes   float64 `json:"minutes"`
	AlertSent bool    `json:"alertSent"`
}

// Recipient is a registered notification destination keyed by its FCM token.
type Recipient struct {
	Token       string               `json:"fcmToken"`
	Topics      map[string]TopicRule `json:"topics"`
	Generator   GeneratorRule        `json:"generatorStatusAlerts"`
	CommTimeout TimeoutRule          `json:"communicationTimeout"`
	CreatedAt   time.Time            `json:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt"`
}

// Clone returns a deep copy.
func (r Recipient) Clone() Recipient {
	out := r
	out.Topics = make(map[string]TopicRule, len(r.Topics))
	for k, v := range r.Topics {
		out.Topics[k] = v.clone()
	}
	if r.Generator.LastStatus != nil {
		s := *r.Generator.LastStatus
		out.Generator.LastStatus = &s
	}
	return out
}

func (t TopicRule) clone() TopicRule {
	out := t
	if t.Low != nil {
		v := *t.Low
		out.Low = &v
	}
	if t.High != nil {
		v := *t.High
		out.High = &v
	}
	return out
}

// Latches is the alert-side state of a topic rule.
type Latches struct {
	Low  bool
	High bool
}

// RecipientUpdate carries only the fields an alert path touched.
// Nil or empty members are left untouched by the store.
type RecipientUpdate struct {
	TopicLatches        map[string]Latches
	GeneratorLastStatus *GeneratorStatus
	TimeoutAlertSent    *bool
}

func (u RecipientUpdate) IsEmpty() bool {
	return len(u.TopicLatches) == 0 && u.GeneratorLastStatus == nil && u.TimeoutAlertSent == nil
}
