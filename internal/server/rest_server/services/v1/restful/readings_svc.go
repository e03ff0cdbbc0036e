package restful

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/okieraised/power-alert-relay/internal/api_response"
	"github.com/okieraised/power-alert-relay/internal/catalog"
	"github.com/okieraised/power-alert-relay/internal/cerrors"
	"github.com/okieraised/power-alert-relay/internal/models"
	"go.opentelemetry.io/otel/trace"
)

type IReadingsService interface {
	Latest(ctx *gin.Context, input *ReadingsInput) (*api_response.BaseOutput, *cerrors.AppError)
}

type ReadingsSource interface {
	Latest(topics []string) []models.Reading
}

type LivenessSource interface {
	LastSeen() time.Time
	Silence() time.Duration
}

type ReadingsService struct {
	readings ReadingsSource
	liveness LivenessSource
	catalog  *catalog.Catalog
}

func NewReadingsService(options ...func(*ReadingsService)) *ReadingsService {
	svc := &ReadingsService{}
	for _, opt := range options {
		opt(svc)
	}
	return svc
}

func WithReadingsSource(r ReadingsSource) func(*ReadingsService) {
	return func(svc *ReadingsService) {
		svc.readings = r
	}
}

func WithLivenessSource(l LivenessSource) func(*ReadingsService) {
	return func(svc *ReadingsService) {
		svc.liveness = l
	}
}

func WithReadingsCatalog(c *catalog.Catalog) func(*ReadingsService) {
	return func(svc *ReadingsService) {
		svc.catalog = c
	}
}

type ReadingsInput struct {
	TracerCtx context.Context
	Tracer    trace.Tracer
}

type ReadingsOutput struct {
	Readings       []models.Reading `json:"readings"`
	LastSeen       time.Time        `json:"lastSeen"`
	SilenceSeconds float64          `json:"silenceSeconds"`
}

func (svc *ReadingsService) Latest(ctx *gin.Context, input *ReadingsInput) (*api_response.BaseOutput, *cerrors.AppError) {
	_, span := input.Tracer.Start(input.TracerCtx, "latest-readings-handler")
	defer span.End()

	out := ReadingsOutput{Readings: svc.readings.Latest(svc.catalog.Topics())}
	if svc.liveness != nil {
		out.LastSeen = svc.liveness.LastSeen()
		out.SilenceSeconds = svc.liveness.Silence().Seconds()
	}

	return &api_response.BaseOutput{
		Code:    cerrors.OK.Code,
		Message: cerrors.OK.Message,
		Data:    out,
		Count:   len(out.Readings),
	}, nil
}
