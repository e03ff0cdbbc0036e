package local_cache

import (
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/okieraised/power-alert-relay/internal/models"
)

const readingKeyPrefix = "reading:"

// ReadingsCache remembers the latest value seen on each numeric topic.
// Entries expire after ttl so a silent topic stops being reported.
type ReadingsCache struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

func NewReadingsCache(c *ristretto.Cache, ttl time.Duration) *ReadingsCache {
	return &ReadingsCache{cache: c, ttl: ttl}
}

func (r *ReadingsCache) Record(reading models.Reading) {
	r.cache.SetWithTTL(readingKeyPrefix+reading.Topic, reading, 1, r.ttl)
}

// Latest returns the cached readings for topics, skipping topics with no live entry.
func (r *ReadingsCache) Latest(topics []string) []models.Reading {
	out := make([]models.Reading, 0, len(topics))
	for _, topic := range topics {
		v, ok := r.cache.Get(readingKeyPrefix + topic)
		if !ok {
			continue
		}
		if reading, ok := v.(models.Reading); ok {
			out = append(out, reading)
		}
	}
	return out
}

// Flush waits for buffered writes to become visible.
func (r *ReadingsCache) Flush() {
	r.cache.Wait()
}
