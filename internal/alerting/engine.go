package alerting

import (
	"math"
	"strconv"
	"strings"

	"github.com/okieraised/power-alert-relay/internal/catalog"
	"github.com/okieraised/power-alert-relay/internal/models"
	"github.com/pkg/errors"
)

// Emission is a notification decided by the engine for one recipient.
type Emission struct {
	Kind         models.AlertKind
	Notification models.Notification
}

// boundActive reports whether a threshold takes part in comparisons.
// Zero is treated as "no bound on this side".
func boundActive(b *float64) bool {
	return b != nil && *b != 0
}

// EvaluateNumeric applies one reading to a recipient's rule. The low side is
// checked first, so a rule with low > high reports "below" when both match.
func EvaluateNumeric(def catalog.TopicDefinition, value float64, rule models.TopicRule) (*Emission, models.TopicRule) {
	isLow := boundActive(rule.Low) && value < *rule.Low
	isHigh := boundActive(rule.High) && value > *rule.High

	switch {
	case isLow && !rule.AlertSentLow:
		rule.AlertSentLow = true
		return &Emission{Kind: models.AlertKindBelow, Notification: def.Template(value, catalog.Below)}, rule
	case isHigh && !rule.AlertSentHigh:
		rule.AlertSentHigh = true
		return &Emission{Kind: models.AlertKindAbove, Notification: def.Template(value, catalog.Above)}, rule
	case !isLow && !isHigh && (rule.AlertSentLow || rule.AlertSentHigh):
		rule.AlertSentLow, rule.AlertSentHigh = false, false
	}
	return nil, rule
}

// EvaluateGenerator records status and emits on a change from a known previous status.
func EvaluateGenerator(status models.GeneratorStatus, rule models.GeneratorRule) (*Emission, models.GeneratorRule) {
	var em *Emission
	if rule.LastStatus != nil && *rule.LastStatus != status {
		em = &Emission{Kind: models.AlertKindGenerator, Notification: GeneratorNotification(status)}
	}
	s := status
	rule.LastStatus = &s
	return em, rule
}

func GeneratorNotification(status models.GeneratorStatus) models.Notification {
	return models.Notification{
		Title: "Generator Status Alert",
		Body:  "Generator is now " + string(status) + ".",
	}
}

func TimeoutNotification(minutes float64) models.Notification {
	return models.Notification{
		Title: "Communication Timeout",
		Body:  "No data received from the power station for more than " + catalog.FormatValue(minutes) + " minutes.",
	}
}

// ParseReading accepts a plain decimal literal. Non-finite values are rejected.
func ParseReading(payload []byte) (float64, error) {
	s := strings.TrimSpace(string(payload))
	// ParseFloat also takes hex floats and digit separators.
	if strings.ContainsAny(s, "xX_") {
		return 0, errors.Wrapf(ErrMalformedPayload, "not a decimal number: %q", s)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrMalformedPayload, "not a number: %q", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.Wrapf(ErrMalformedPayload, "not a finite number: %q", s)
	}
	return v, nil
}

func ParseGeneratorStatus(payload []byte) (models.GeneratorStatus, error) {
	s := models.GeneratorStatus(strings.TrimSpace(string(payload)))
	switch s {
	case models.GeneratorOn, models.GeneratorOff:
		return s, nil
	default:
		return "", errors.Wrapf(ErrMalformedPayload, "unknown generator status: %q", string(s))
	}
}
