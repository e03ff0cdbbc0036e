package routers

import (
	"github.com/okieraised/power-alert-relay/internal/server/rest_server/services/v1/restful"
	"github.com/okieraised/power-alert-relay/internal/server/rest_server/services/v1/ws"
)

type V1Rest struct {
	healthcheck *restful.HealthcheckService
	device      *restful.DeviceService
	readings    *restful.ReadingsService
}

func NewV1RestState() *V1Rest {
	return &V1Rest{}
}

func (svc *V1Rest) SetHealthcheckService(healthcheck *restful.HealthcheckService) {
	svc.healthcheck = healthcheck
}

func (svc *V1Rest) GetHealthcheckService() *restful.HealthcheckService {
	return svc.healthcheck
}

func (svc *V1Rest) SetDeviceService(device *restful.DeviceService) {
	svc.device = device
}

func (svc *V1Rest) GetDeviceService() *restful.DeviceService {
	return svc.device
}

func (svc *V1Rest) SetReadingsService(readings *restful.ReadingsService) {
	svc.readings = readings
}

func (svc *V1Rest) GetReadingsService() *restful.ReadingsService {
	return svc.readings
}

type Websocket struct {
	alertFeed *ws.AlertFeedService
}

func NewWebsocketState() *Websocket {
	return &Websocket{}
}

func (svc *Websocket) SetAlertFeedService(alertFeed *ws.AlertFeedService) {
	svc.alertFeed = alertFeed
}

func (svc *Websocket) GetAlertFeedService() *ws.AlertFeedService {
	return svc.alertFeed
}

type AppState struct {
	v1Rest    *V1Rest
	websocket *Websocket
}

func NewAppState() *AppState {
	return &AppState{}
}

func (svc *AppState) SetV1RestState(v1Rest *V1Rest) {
	svc.v1Rest = v1Rest
}

func (svc *AppState) GetV1RestState() *V1Rest {
	return svc.v1Rest
}

func (svc *AppState) GetWebsocketState() *Websocket {
	return svc.websocket
}

func (svc *AppState) SetWebsocketState(ws *Websocket) {
	svc.websocket = ws
}
