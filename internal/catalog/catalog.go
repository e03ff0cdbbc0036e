package catalog

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/okieraised/power-alert-relay/internal/models"
)

type Direction string

const (
	Below Direction = "below"
	Above Direction = "above"
)

// Template renders the notification for a value outside the normal range.
type Template func(value float64, dir Direction) models.Notification

// TopicDefinition describes one monitored measurement.
type TopicDefinition struct {
	Topic       string
	Label       string
	Unit        string
	DefaultLow  *float64
	DefaultHigh *float64
	Template    Template
}

type measurement struct {
	suffix string
	label  string
	unit   string
	low    float64
	high   float64
	tmpl   Template
}

func powerTemplate(title string) Template {
	return func(value float64, dir Direction) models.Notification {
		return models.Notification{
			Title: title,
			Body:  fmt.Sprintf("Power is %sW, which is %s the normal range.", FormatValue(value), dir),
		}
	}
}

func batteryTemplate(value float64, dir Direction) models.Notification {
	return models.Notification{
		Title: "Battery Alert",
		Body:  fmt.Sprintf("Battery is at %s%%, which is %s the normal charge.", FormatValue(value), dir),
	}
}

var measurements = []measurement{
	{"dc_input_power", "DC Input Power", "W", 30, 1000, powerTemplate("DC Input Power Alert")},
	{"ac_input_power", "AC Input Power", "W", 100, 1500, powerTemplate("AC Input Power Alert")},
	{"ac_output_power", "AC Output Power", "W", 20, 100, powerTemplate("AC Output Power Alert")},
	{"dc_output_power", "DC Output Power", "W", 0, 100, powerTemplate("DC Output Power Alert")},
	{"total_battery_percent", "Total Battery Percent", "%", 20, 100, batteryTemplate},
}

// Catalog maps topic names to their definitions. It is immutable after New.
type Catalog struct {
	statePrefix    string
	generatorTopic string
	defs           map[string]TopicDefinition
}

// New builds the catalog for a device publishing under devicePrefix,
// e.g. "bluetti/AC200L2446000235977".
func New(devicePrefix, generatorTopic string) *Catalog {
	devicePrefix = strings.TrimSuffix(devicePrefix, "/")
	c := &Catalog{
		statePrefix:    devicePrefix + "/state/",
		generatorTopic: generatorTopic,
		defs:           make(map[string]TopicDefinition, len(measurements)),
	}
	for _, m := range measurements {
		low, high := m.low, m.high
		topic := c.statePrefix + m.suffix
		c.defs[topic] = TopicDefinition{
			Topic:       topic,
			Label:       m.label,
			Unit:        m.unit,
			DefaultLow:  &low,
			DefaultHigh: &high,
			Template:    m.tmpl,
		}
	}
	return c
}

func (c *Catalog) Lookup(topic string) (TopicDefinition, bool) {
	def, ok := c.defs[topic]
	return def, ok
}

// IsTelemetry reports whether topic falls under the device's state/# wildcard.
func (c *Catalog) IsTelemetry(topic string) bool {
	return strings.HasPrefix(topic, c.statePrefix) && len(topic) > len(c.statePrefix)
}

func (c *Catalog) IsGeneratorStatus(topic string) bool {
	return topic == c.generatorTopic
}

// Topics returns the numeric topics in a stable order.
func (c *Catalog) Topics() []string {
	out := make([]string, 0, len(c.defs))
	for t := range c.defs {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// SubscriptionTopics is the full list to (re)subscribe on every connect.
func (c *Catalog) SubscriptionTopics() []string {
	out := c.Topics()
	out = append(out, c.generatorTopic, c.statePrefix+"#")
	return out
}

// DefaultBounds returns copies of the default bounds for topic, nil if unknown.
func (c *Catalog) DefaultBounds(topic string) (low, high *float64) {
	def, ok := c.defs[topic]
	if !ok {
		return nil, nil
	}
	if def.DefaultLow != nil {
		v := *def.DefaultLow
		low = &v
	}
	if def.DefaultHigh != nil {
		v := *def.DefaultHigh
		high = &v
	}
	return low, high
}

// FormatValue renders v in its shortest decimal form.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
