package grpc_server

import (
	"context"
	"time"

	"github.com/okieraised/power-alert-relay/internal/constants"
	"github.com/okieraised/power-alert-relay/internal/infrastructure/log"
	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const healthProbeInterval = 10 * time.Second

// ReadinessProbe reports whether the relay can currently process telemetry.
type ReadinessProbe func(ctx context.Context) error

// watchServingStatus mirrors probe into the health server for both the
// overall status and the named relay service until ctx is done.
func watchServingStatus(ctx context.Context, hs *health.Server, probe ReadinessProbe, interval time.Duration) {
	logger := log.Component("grpc_health")
	last := healthpb.HealthCheckResponse_UNKNOWN

	update := func() {
		next := healthpb.HealthCheckResponse_SERVING
		if probe != nil {
			pctx, cancel := context.WithTimeout(ctx, interval)
			err := probe(pctx)
			cancel()
			if err != nil {
				next = healthpb.HealthCheckResponse_NOT_SERVING
				if last != next {
					logger.Warn("Relay is not ready", zap.Error(err))
				}
			}
		}
		if next != last {
			hs.SetServingStatus("", next)
			hs.SetServingStatus(constants.ServiceName, next)
			last = next
		}
	}

	update()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-ticker.C:
			update()
		}
	}
}
