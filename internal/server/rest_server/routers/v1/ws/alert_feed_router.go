package ws

import (
	"github.com/gin-gonic/gin"
	"github.com/okieraised/power-alert-relay/internal/constants"
	"github.com/okieraised/power-alert-relay/internal/infrastructure/log"
	"github.com/okieraised/power-alert-relay/internal/infrastructure/tracer_client"
	"github.com/okieraised/power-alert-relay/internal/server/rest_server/services/v1/ws"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type AlertFeedRouter struct {
	svc    ws.IAlertFeedService
	logger *log.Logger
	tracer trace.Tracer
}

func NewAlertFeedRouter(svc ws.IAlertFeedService) *AlertFeedRouter {
	return &AlertFeedRouter{
		svc:    svc,
		logger: log.Component("alert_feed_router"),
		tracer: tracer_client.Tracer("alert_feed_router"),
	}
}

func (r *AlertFeedRouter) Routes(engine *gin.RouterGroup) {
	engine.GET("/alerts", r.subscribe)
}

func (r *AlertFeedRouter) subscribe(ctx *gin.Context) {
	rootCtx, span := r.tracer.Start(ctx, ctx.Request.URL.Path, trace.WithAttributes(
		attribute.String(constants.APIFieldRequestID, ctx.GetString(constants.APIFieldRequestID)),
	))
	defer span.End()

	r.logger.With(
		zap.String(constants.APIFieldRequestID, ctx.GetString(constants.APIFieldRequestID)),
	).Debug("Received new websocket handshake for the alert feed")

	if appErr := r.svc.Subscribe(ctx, rootCtx, r.tracer); appErr != nil {
		span.RecordError(appErr)
	}
}
