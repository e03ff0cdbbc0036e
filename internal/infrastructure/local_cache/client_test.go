package local_cache

import (
	"testing"
	"time"

	"github.com/okieraised/power-alert-relay/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLocalCache(t *testing.T) {
	err := NewLocalCache()
	assert.NoError(t, err)

	success := Cache().Set("test-key", "test", 1)
	assert.Equal(t, true, success)

	Cache().Wait()

	val, success := Cache().Get("test-key")
	assert.Equal(t, "test", val)
	assert.Equal(t, true, success)
}

func TestNewCache_MaxEntries(t *testing.T) {
	c, err := newCache(WithMaxEntries(5), WithMaxEntries(-1), WithMetrics())
	require.NoError(t, err)
	assert.Equal(t, int64(5), c.MaxCost())
	assert.NotNil(t, c.Metrics)
}

func TestReadingsCache_Expires(t *testing.T) {
	c, err := newCache()
	require.NoError(t, err)
	rc := NewReadingsCache(c, 50*time.Millisecond)

	rc.Record(models.Reading{Topic: "a", Value: 1, ReceivedAt: time.Now()})
	rc.Flush()
	require.Len(t, rc.Latest([]string{"a"}), 1)

	assert.Eventually(t, func() bool {
		return len(rc.Latest([]string{"a"})) == 0
	}, 3*time.Second, 20*time.Millisecond)
}

func TestReadingsCache_Latest(t *testing.T) {
	c, err := newCache()
	require.NoError(t, err)
	rc := NewReadingsCache(c, time.Minute)

	now := time.Now()
	rc.Record(models.Reading{Topic: "a", Label: "A", Unit: "W", Value: 12, ReceivedAt: now})
	rc.Record(models.Reading{Topic: "b", Label: "B", Unit: "%", Value: 80, ReceivedAt: now})
	rc.Record(models.Reading{Topic: "a", Label: "A", Unit: "W", Value: 13, ReceivedAt: now})
	rc.Flush()

	got := rc.Latest([]string{"a", "b", "c"})
	require.Len(t, got, 2)
	assert.Equal(t, 13.0, got[0].Value)
	assert.Equal(t, "b", got[1].Topic)
}
