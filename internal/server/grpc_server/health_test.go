package grpc_server

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okieraised/power-alert-relay/internal/constants"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func servingStatus(hs *health.Server, service string) healthpb.HealthCheckResponse_ServingStatus {
	resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN
	}
	return resp.GetStatus()
}

func TestWatchServingStatus_FollowsProbe(t *testing.T) {
	var ready atomic.Bool
	probe := func(context.Context) error {
		if ready.Load() {
			return nil
		}
		return errors.New("broker disconnected")
	}

	hs := health.NewServer()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watchServingStatus(ctx, hs, probe, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		return servingStatus(hs, constants.ServiceName) == healthpb.HealthCheckResponse_NOT_SERVING
	}, time.Second, 5*time.Millisecond)

	ready.Store(true)
	assert.Eventually(t, func() bool {
		return servingStatus(hs, "") == healthpb.HealthCheckResponse_SERVING &&
			servingStatus(hs, constants.ServiceName) == healthpb.HealthCheckResponse_SERVING
	}, time.Second, 5*time.Millisecond)
}

func TestRecoverPanic(t *testing.T) {
	err := recoverPanic("boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "internal server error")
}
