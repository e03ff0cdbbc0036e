package local_cache

import (
	"sync"

	"github.com/dgraph-io/ristretto"
	"github.com/pkg/errors"
)

// Options sizes the cache. Every entry costs 1, so MaxCost is an entry count.
type Options struct {
	MaxEntries int64
	Metrics    bool
}

type Option func(*Options)

func WithMaxEntries(n int64) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxEntries = n
		}
	}
}

func WithMetrics() Option {
	return func(o *Options) {
		o.Metrics = true
	}
}

var (
	once  sync.Once
	cache *ristretto.Cache
)

// NewLocalCache builds the process-wide cache. Only the first call takes effect.
func NewLocalCache(opts ...Option) error {
	var initErr error
	once.Do(func() {
		cache, initErr = newCache(opts...)
	})
	return initErr
}

func newCache(opts ...Option) (*ristretto.Cache, error) {
	conf := Options{MaxEntries: 1_000}
	for _, fn := range opts {
		fn(&conf)
	}

	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:            conf.MaxEntries * 10,
		MaxCost:                conf.MaxEntries,
		BufferItems:            64,
		Metrics:                conf.Metrics,
		TtlTickerDurationInSec: 1,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create local cache")
	}
	return c, nil
}

func Cache() *ristretto.Cache {
	if cache == nil {
		panic("local cache not initialized; call NewLocalCache first")
	}
	return cache
}
