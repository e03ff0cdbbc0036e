package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/arl/statsviz"
	"github.com/dgraph-io/ristretto"
	"github.com/okieraised/power-alert-relay/internal/config"
	"github.com/okieraised/power-alert-relay/internal/constants"
	"github.com/okieraised/power-alert-relay/internal/infrastructure/log"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

func getMonitoringPort() int {
	port := viper.GetInt(config.RelayMonitoringPort)
	if port <= 0 {
		return constants.RelayDefaultMonitoringPort
	}
	return port
}

type Option func(*options)

type options struct {
	cacheMetrics *ristretto.Metrics
}

// WithCacheMetrics exposes the readings cache hit ratio under /debug/cache.
func WithCacheMetrics(m *ristretto.Metrics) Option {
	return func(o *options) {
		o.cacheMetrics = m
	}
}

// NewMux returns a mux serving the runtime dashboard under /debug/statsviz/.
func NewMux(opts ...Option) (*http.ServeMux, error) {
	var conf options
	for _, fn := range opts {
		fn(&conf)
	}

	mux := http.NewServeMux()
	if err := statsviz.Register(mux); err != nil {
		return nil, errors.Wrap(err, "failed to register statsviz")
	}
	if m := conf.cacheMetrics; m != nil {
		mux.HandleFunc("/debug/cache", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = fmt.Fprintf(w, "hit_ratio: %.4f\n%s\n", m.Ratio(), m.String())
		})
	}
	return mux, nil
}

func NewMonitoringServer(ctx context.Context, opts ...Option) error {
	log.Default().Info("Starting monitoring server")
	mux, err := NewMux(opts...)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", getMonitoringPort()),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Default().Info("Shutting down monitoring server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err = <-errCh:
		wErr := errors.Wrap(err, "failed to start monitoring server")
		log.Default().Error(wErr.Error())
		return wErr
	}
}
