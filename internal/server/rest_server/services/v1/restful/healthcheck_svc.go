package restful

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/okieraised/power-alert-relay/internal/api_response"
	"github.com/okieraised/power-alert-relay/internal/cerrors"
	"github.com/okieraised/power-alert-relay/internal/constants"
	"github.com/okieraised/power-alert-relay/internal/infrastructure/log"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const healthPingTimeout = 2 * time.Second

type IHealthcheckService interface {
	Healthcheck(ctx *gin.Context, input *HealthcheckInput) (*api_response.BaseOutput, *cerrors.AppError)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthcheckService struct {
	store     Pinger
	connected func() bool
	startedAt time.Time
	logger    *log.Logger
}

func NewHealthcheckService(options ...func(*HealthcheckService)) *HealthcheckService {
	svc := &HealthcheckService{
		connected: func() bool { return false },
		startedAt: time.Now(),
	}
	for _, opt := range options {
		opt(svc)
	}
	svc.logger = log.Component("healthcheck_service")
	return svc
}

func WithStorePinger(p Pinger) func(*HealthcheckService) {
	return func(svc *HealthcheckService) {
		svc.store = p
	}
}

// WithBrokerState reports the message broker connection state.
func WithBrokerState(connected func() bool) func(*HealthcheckService) {
	return func(svc *HealthcheckService) {
		if connected != nil {
			svc.connected = connected
		}
	}
}

type HealthcheckInput struct {
	TracerCtx context.Context
	Tracer    trace.Tracer
}

type HealthcheckOutput struct {
	Status        string  `json:"status"`
	Store         string  `json:"store"`
	Broker        string  `json:"broker"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

func (svc *HealthcheckService) Healthcheck(ctx *gin.Context, input *HealthcheckInput) (*api_response.BaseOutput, *cerrors.AppError) {
	rootCtx, span := input.Tracer.Start(input.TracerCtx, "healthcheck-handler")
	defer span.End()

	out := HealthcheckOutput{
		Status:        "ok",
		Store:         "up",
		Broker:        "connected",
		UptimeSeconds: time.Since(svc.startedAt).Seconds(),
	}

	_, cSpan := input.Tracer.Start(rootCtx, "ping-store")
	if svc.store != nil {
		pctx, cancel := context.WithTimeout(ctx.Request.Context(), healthPingTimeout)
		err := svc.store.Ping(pctx)
		cancel()
		if err != nil {
			wErr := errors.Wrap(err, "recipient store ping failed")
			svc.logger.Warn(wErr.Error(), zap.String(constants.APIFieldRequestID, ctx.GetString(constants.APIFieldRequestID)))
			out.Store = "down"
			out.Status = "degraded"
		}
	}
	cSpan.End()

	if !svc.connected() {
		out.Broker = "disconnected"
		out.Status = "degraded"
	}

	resp := &api_response.BaseOutput{
		Status:  http.StatusOK,
		Code:    cerrors.OK.Code,
		Message: cerrors.OK.Message,
		Data:    out,
	}
	if out.Status != "ok" {
		resp.Status = cerrors.ErrServiceUnavailable.HTTPStatus
		resp.Code = cerrors.ErrServiceUnavailable.Code
		resp.Message = cerrors.ErrServiceUnavailable.Message
	}
	return resp, nil
}
