package routers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/okieraised/power-alert-relay/internal/alert_feed"
	"github.com/okieraised/power-alert-relay/internal/catalog"
	"github.com/okieraised/power-alert-relay/internal/cerrors"
	"github.com/okieraised/power-alert-relay/internal/models"
	"github.com/okieraised/power-alert-relay/internal/server/rest_server"
	"github.com/okieraised/power-alert-relay/internal/server/rest_server/services/v1/restful"
	"github.com/okieraised/power-alert-relay/internal/server/rest_server/services/v1/ws"
	"github.com/okieraised/power-alert-relay/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPrefix   = "bluetti/AC200L2446000235977"
	batteryTopic = testPrefix + "/state/total_battery_percent"
)

type staticReadings []models.Reading

func (s staticReadings) Latest(_ []string) []models.Reading { return s }

type envelope struct {
	RequestID string          `json:"request_id"`
	Code      string          `json:"code"`
	Message   string          `json:"message"`
	Count     int             `json:"count"`
	Data      json.RawMessage `json:"data"`
}

func newTestEngine(t *testing.T, s store.RecipientStore, brokerUp bool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cat := catalog.New(testPrefix, "bluetti/generator/status")

	v1 := NewV1RestState()
	v1.SetDeviceService(restful.NewDeviceService(
		restful.WithRecipientStore(s),
		restful.WithCatalog(cat),
	))
	v1.SetReadingsService(restful.NewReadingsService(
		restful.WithReadingsCatalog(cat),
		restful.WithReadingsSource(staticReadings{{Topic: batteryTopic, Label: "Total Battery Percent", Unit: "%", Value: 87}}),
	))
	v1.SetHealthcheckService(restful.NewHealthcheckService(
		restful.WithStorePinger(s),
		restful.WithBrokerState(func() bool { return brokerUp }),
	))
	wsState := NewWebsocketState()
	wsState.SetAlertFeedService(ws.NewAlertFeedService(ws.WithAlertFeedHub(alert_feed.NewHub())))

	appState := NewAppState()
	appState.SetV1RestState(v1)
	appState.SetWebsocketState(wsState)

	return rest_server.NewEngine(NewRootRouter(appState, 5*time.Second).InitRouters)
}

func do(t *testing.T, engine *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func TestDevices_RegisterGetDelete(t *testing.T) {
	engine := newTestEngine(t, store.NewMemoryStore(), true)

	w, env := do(t, engine, http.MethodPost, "/api/v1/devices/register", map[string]any{
		"fcmToken": "tok-1",
		"topics": map[string]any{
			batteryTopic: map[string]any{"enabled": true, "min": 25},
		},
		"communicationTimeout": map[string]any{"enabled": true, "minutes": 15},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, cerrors.OK.Code, env.Code)
	assert.NotEmpty(t, env.RequestID)

	var rec models.Recipient
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	assert.Equal(t, "tok-1", rec.Token)
	rule := rec.Topics[batteryTopic]
	assert.True(t, rule.Enabled)
	require.NotNil(t, rule.Low)
	assert.Equal(t, 25.0, *rule.Low)
	require.NotNil(t, rule.High)
	assert.Equal(t, 100.0, *rule.High)
	assert.Equal(t, 15.0, rec.CommTimeout.Minutes)

	w, env = do(t, engine, http.MethodGet, "/api/v1/devices/tok-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	assert.True(t, rec.CommTimeout.Enabled)

	w, _ = do(t, engine, http.MethodDelete, "/api/v1/devices/tok-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, env = do(t, engine, http.MethodGet, "/api/v1/devices/tok-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, cerrors.ErrRecipientNotFound.Code, env.Code)
}

func TestDevices_RegisterValidation(t *testing.T) {
	engine := newTestEngine(t, store.NewMemoryStore(), true)

	cases := []struct {
		name string
		body any
		code string
	}{
		{"missing token", map[string]any{"topics": map[string]any{}}, cerrors.ErrMissingDeviceToken.Code},
		{"blank token", map[string]any{"fcmToken": "  "}, cerrors.ErrMissingDeviceToken.Code},
		{"zero minutes", map[string]any{
			"fcmToken":             "tok-1",
			"communicationTimeout": map[string]any{"minutes": 0},
		}, cerrors.ErrInvalidRegistration.Code},
		{"unknown topic", map[string]any{
			"fcmToken": "tok-1",
			"topics":   map[string]any{"elsewhere/temp": map[string]any{"enabled": true}},
		}, cerrors.ErrUnknownAlertTopic.Code},
		{"wrong type", map[string]any{"fcmToken": 12}, cerrors.ErrGenericBadRequest.Code},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, env := do(t, engine, http.MethodPost, "/api/v1/devices/register", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tc.code, env.Code)
		})
	}
}

func TestDevices_DeleteUnknown(t *testing.T) {
	engine := newTestEngine(t, store.NewMemoryStore(), true)
	w, env := do(t, engine, http.MethodDelete, "/api/v1/devices/nobody", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, cerrors.ErrRecipientNotFound.Code, env.Code)
}

func TestReadings_Latest(t *testing.T) {
	engine := newTestEngine(t, store.NewMemoryStore(), true)
	w, env := do(t, engine, http.MethodGet, "/api/v1/readings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, env.Count)

	var out restful.ReadingsOutput
	require.NoError(t, json.Unmarshal(env.Data, &out))
	require.Len(t, out.Readings, 1)
	assert.Equal(t, 87.0, out.Readings[0].Value)
}

func TestHealthcheck(t *testing.T) {
	w, env := do(t, newTestEngine(t, store.NewMemoryStore(), true), http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, cerrors.OK.Code, env.Code)

	w, env = do(t, newTestEngine(t, store.NewMemoryStore(), false), http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, cerrors.ErrServiceUnavailable.Code, env.Code)

	var out restful.HealthcheckOutput
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, "disconnected", out.Broker)
	assert.Equal(t, "up", out.Store)
}

func TestNoRoute(t *testing.T) {
	w, env := do(t, newTestEngine(t, store.NewMemoryStore(), true), http.MethodGet, "/api/v2/nothing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, cerrors.ErrGenericUnknownAPIPath.Code, env.Code)
}
