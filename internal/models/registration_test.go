package models

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func defaults(topic string) (low, high *float64) {
	if topic == "t/power" {
		return ptr(30.0), ptr(1000.0)
	}
	return nil, nil
}

func TestRegistration_Validate(t *testing.T) {
	assert.Error(t, (&Registration{}).Validate())
	assert.NoError(t, (&Registration{Token: "tok"}).Validate())

	bad := []Registration{
		{Token: "tok", Topics: map[string]TopicSettings{"t": {Min: ptr(math.NaN())}}},
		{Token: "tok", Topics: map[string]TopicSettings{"t": {Max: ptr(math.Inf(1))}}},
		{Token: "tok", CommunicationTimeout: &TimeoutSettings{Minutes: ptr(0.0)}},
		{Token: "tok", CommunicationTimeout: &TimeoutSettings{Minutes: ptr(-5.0)}},
	}
	for _, reg := range bad {
		assert.Error(t, reg.Validate())
	}
}

func TestRegistration_DecodesWireNames(t *testing.T) {
	var reg Registration
	require.NoError(t, json.Unmarshal([]byte(`{
		"fcmToken": "tok",
		"topics": {"t/power": {"min": 10, "enabled": true}},
		"generatorStatusAlerts": {"enabled": true},
		"communicationTimeout": {"minutes": 15}
	}`), &reg))

	assert.Equal(t, "tok", reg.Token)
	assert.Equal(t, 10.0, *reg.Topics["t/power"].Min)
	assert.Nil(t, reg.Topics["t/power"].Max)
	assert.True(t, *reg.GeneratorStatusAlerts.Enabled)
	assert.Nil(t, reg.CommunicationTimeout.Enabled)
}

func TestRegistration_MergeSeedsDefaultsAndResetsLatches(t *testing.T) {
	rec := Recipient{Token: "tok"}
	reg := Registration{Token: "tok", Topics: map[string]TopicSettings{"t/power": {Enabled: ptr(true)}}}
	reg.Merge(&rec, defaults)

	rule := rec.Topics["t/power"]
	assert.True(t, rule.Enabled)
	assert.Equal(t, 30.0, *rule.Low)
	assert.Equal(t, 1000.0, *rule.High)

	rule.AlertSentLow = true
	rec.Topics["t/power"] = rule

	reg = Registration{Token: "tok", Topics: map[string]TopicSettings{"t/power": {Max: ptr(900.0)}}}
	reg.Merge(&rec, defaults)
	rule = rec.Topics["t/power"]
	assert.False(t, rule.AlertSentLow)
	assert.Equal(t, 30.0, *rule.Low)
	assert.Equal(t, 900.0, *rule.High)
	assert.True(t, rule.Enabled)
}

func TestRegistration_MergeLeavesAbsentSectionsAlone(t *testing.T) {
	on := GeneratorOn
	rec := Recipient{
		Token:       "tok",
		Topics:      map[string]TopicRule{"t/power": {Enabled: true, AlertSentHigh: true}},
		Generator:   GeneratorRule{Enabled: true, LastStatus: &on},
		CommTimeout: TimeoutRule{Enabled: true, Minutes: 60, AlertSent: true},
	}

	(&Registration{Token: "tok", CommunicationTimeout: &TimeoutSettings{Minutes: ptr(5.0)}}).Merge(&rec, defaults)

	assert.True(t, rec.Topics["t/power"].AlertSentHigh)
	assert.Equal(t, &on, rec.Generator.LastStatus)
	assert.Equal(t, 5.0, rec.CommTimeout.Minutes)
	assert.True(t, rec.CommTimeout.AlertSent)
}

func TestRegistration_MergeDisablingClearsState(t *testing.T) {
	on := GeneratorOn
	rec := Recipient{
		Generator:   GeneratorRule{Enabled: true, LastStatus: &on},
		CommTimeout: TimeoutRule{Enabled: true, Minutes: 60, AlertSent: true},
	}
	(&Registration{
		GeneratorStatusAlerts: &GeneratorSettings{Enabled: ptr(false)},
		CommunicationTimeout:  &TimeoutSettings{Enabled: ptr(false)},
	}).Merge(&rec, nil)

	assert.False(t, rec.Generator.Enabled)
	assert.Nil(t, rec.Generator.LastStatus)
	assert.False(t, rec.CommTimeout.Enabled)
	assert.False(t, rec.CommTimeout.AlertSent)
	assert.NotNil(t, rec.Topics)
}
