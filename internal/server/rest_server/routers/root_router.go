package routers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/okieraised/power-alert-relay/internal/server/rest_server/middlewares"
	"github.com/okieraised/power-alert-relay/internal/server/rest_server/routers/v1/restful"
	"github.com/okieraised/power-alert-relay/internal/server/rest_server/routers/v1/ws"
)

type RootRouter struct {
	appState       *AppState
	requestTimeout time.Duration
}

func NewRootRouter(appState *AppState, requestTimeout time.Duration) *RootRouter {
	return &RootRouter{
		appState:       appState,
		requestTimeout: requestTimeout,
	}
}

func (rr *RootRouter) InitRouters(engine *gin.Engine) {
	// http
	rootAPIRouter := engine.Group("/api", middlewares.RequestTimeoutMW(rr.requestTimeout))
	v1Router := rootAPIRouter.Group("/v1")
	{
		deviceRouter := restful.NewDeviceRouter(rr.appState.GetV1RestState().GetDeviceService())
		deviceRouter.Routes(v1Router)

		readingsRouter := restful.NewReadingsRouter(rr.appState.GetV1RestState().GetReadingsService())
		readingsRouter.Routes(v1Router)

		healthcheckRouter := restful.NewHealthcheckRouter(rr.appState.GetV1RestState().GetHealthcheckService())
		healthcheckRouter.Routes(v1Router)
	}

	// websocket
	{
		rootWSRouter := engine.Group("/ws")
		alertFeedRouter := ws.NewAlertFeedRouter(rr.appState.GetWebsocketState().GetAlertFeedService())
		alertFeedRouter.Routes(rootWSRouter)
	}
}
