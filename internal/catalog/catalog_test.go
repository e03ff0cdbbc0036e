package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPrefix    = "bluetti/AC200L2446000235977"
	testGenerator = "bluetti/generator/status"
)

func TestCatalog_Lookup(t *testing.T) {
	c := New(testPrefix, testGenerator)

	def, ok := c.Lookup(testPrefix + "/state/total_battery_percent")
	require.True(t, ok)
	assert.Equal(t, "Total Battery Percent", def.Label)
	assert.Equal(t, "%", def.Unit)
	assert.Equal(t, 20.0, *def.DefaultLow)
	assert.Equal(t, 100.0, *def.DefaultHigh)

	n := def.Template(15, Below)
	assert.Equal(t, "Battery Alert", n.Title)
	assert.Equal(t, "Battery is at 15%, which is below the normal charge.", n.Body)

	_, ok = c.Lookup(testPrefix + "/state/unknown_field")
	assert.False(t, ok)
}

func TestCatalog_PowerTemplate(t *testing.T) {
	c := New(testPrefix+"/", testGenerator)

	def, ok := c.Lookup(testPrefix + "/state/ac_input_power")
	require.True(t, ok)
	n := def.Template(1500.5, Above)
	assert.Equal(t, "AC Input Power Alert", n.Title)
	assert.Equal(t, "Power is 1500.5W, which is above the normal range.", n.Body)
}

func TestCatalog_IsTelemetry(t *testing.T) {
	c := New(testPrefix, testGenerator)

	assert.True(t, c.IsTelemetry(testPrefix+"/state/dc_input_power"))
	assert.True(t, c.IsTelemetry(testPrefix+"/state/some/nested/field"))
	assert.False(t, c.IsTelemetry(testPrefix+"/state/"))
	assert.False(t, c.IsTelemetry(testPrefix+"/command/power_off"))
	assert.False(t, c.IsTelemetry(testGenerator))
	assert.True(t, c.IsGeneratorStatus(testGenerator))
}

func TestCatalog_SubscriptionTopics(t *testing.T) {
	c := New(testPrefix, testGenerator)

	topics := c.SubscriptionTopics()
	assert.Len(t, topics, 7)
	assert.Contains(t, topics, testGenerator)
	assert.Contains(t, topics, testPrefix+"/state/#")
	assert.Contains(t, topics, testPrefix+"/state/dc_output_power")
}

func TestCatalog_DefaultBoundsAreCopies(t *testing.T) {
	c := New(testPrefix, testGenerator)
	topic := testPrefix + "/state/dc_output_power"

	low, high := c.DefaultBounds(topic)
	require.NotNil(t, low)
	require.NotNil(t, high)
	*low = 99

	def, _ := c.Lookup(topic)
	assert.Equal(t, 0.0, *def.DefaultLow)

	low, high = c.DefaultBounds("nope")
	assert.Nil(t, low)
	assert.Nil(t, high)
}
