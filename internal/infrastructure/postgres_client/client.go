package postgres_client

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

type Options struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	PingTimeout     time.Duration
}

type Option func(*Options)

func WithMaxConns(n int32) Option {
	return func(o *Options) { o.MaxConns = n }
}

func WithMinConns(n int32) Option {
	return func(o *Options) { o.MinConns = n }
}

func WithMaxConnLifetime(d time.Duration) Option {
	return func(o *Options) { o.MaxConnLifetime = d }
}

func WithMaxConnIdleTime(d time.Duration) Option {
	return func(o *Options) { o.MaxConnIdleTime = d }
}

func WithPingTimeout(d time.Duration) Option {
	return func(o *Options) { o.PingTimeout = d }
}

func defaultOptions() Options {
	return Options{
		MaxConns:        10,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
		PingTimeout:     5 * time.Second,
	}
}

var (
	once sync.Once
	pool *pgxpool.Pool
)

// NewPostgresClient creates the process-wide pool and verifies connectivity.
func NewPostgresClient(ctx context.Context, dsn string, optFns ...Option) error {
	var initErr error
	once.Do(func() {
		conf := defaultOptions()
		for _, fn := range optFns {
			if fn != nil {
				fn(&conf)
			}
		}

		cfg, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			initErr = errors.Wrap(err, "failed to parse postgres dsn")
			return
		}
		cfg.MaxConns = conf.MaxConns
		cfg.MinConns = conf.MinConns
		cfg.MaxConnLifetime = conf.MaxConnLifetime
		cfg.MaxConnIdleTime = conf.MaxConnIdleTime

		p, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			initErr = errors.Wrap(err, "failed to create postgres pool")
			return
		}

		pingCtx, cancel := context.WithTimeout(ctx, conf.PingTimeout)
		defer cancel()
		if err = p.Ping(pingCtx); err != nil {
			p.Close()
			initErr = errors.Wrap(err, "failed to ping postgres")
			return
		}
		pool = p
	})
	return initErr
}

func Pool() *pgxpool.Pool {
	if pool == nil {
		panic("postgres pool not initialized; call NewPostgresClient first")
	}
	return pool
}
