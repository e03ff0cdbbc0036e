package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/okieraised/power-alert-relay/internal/alert_feed"
	"github.com/okieraised/power-alert-relay/internal/cerrors"
	"github.com/okieraised/power-alert-relay/internal/constants"
	"github.com/okieraised/power-alert-relay/internal/infrastructure/log"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type IAlertFeedService interface {
	Subscribe(ctx *gin.Context, tracerCtx context.Context, tracer trace.Tracer) *cerrors.AppError
}

type AlertFeedService struct {
	hub      *alert_feed.Hub
	logger   *log.Logger
	upgrader websocket.Upgrader
}

func NewAlertFeedService(options ...func(*AlertFeedService)) *AlertFeedService {
	svc := &AlertFeedService{
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 5 * time.Second,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	for _, opt := range options {
		opt(svc)
	}
	svc.logger = log.Component("alert_feed_service")
	return svc
}

func WithAlertFeedHub(hub *alert_feed.Hub) func(*AlertFeedService) {
	return func(c *AlertFeedService) {
		c.hub = hub
	}
}

// Subscribe upgrades the request and attaches the connection to the feed.
// On upgrade failure the upgrader has already answered the request.
func (svc *AlertFeedService) Subscribe(ctx *gin.Context, tracerCtx context.Context, tracer trace.Tracer) *cerrors.AppError {
	_, span := tracer.Start(tracerCtx, "upgrade-connection")
	defer span.End()

	lg := svc.logger.With(
		zap.String(constants.APIFieldRequestID, ctx.GetString(constants.APIFieldRequestID)),
	)

	conn, err := svc.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		lg.Warn("Failed to upgrade alert feed connection", zap.Error(err))
		return cerrors.ErrGenericBadRequest.WithCause(err)
	}

	client := alert_feed.NewClient(uuid.New(), conn, svc.hub)
	svc.hub.Register(client)
	go client.Serve()

	lg.Info("Alert feed client connected", zap.String("client.id", client.ID.String()))
	return nil
}
