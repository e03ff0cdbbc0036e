package restful

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/okieraised/power-alert-relay/internal/api_response"
	"github.com/okieraised/power-alert-relay/internal/cerrors"
	"github.com/okieraised/power-alert-relay/internal/constants"
	"github.com/okieraised/power-alert-relay/internal/infrastructure/log"
	"github.com/okieraised/power-alert-relay/internal/infrastructure/tracer_client"
	"github.com/okieraised/power-alert-relay/internal/models"
	"github.com/okieraised/power-alert-relay/internal/server/rest_server/services/v1/restful"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type DeviceRouter struct {
	svc    restful.IDeviceService
	logger *log.Logger
	tracer trace.Tracer
}

func NewDeviceRouter(svc restful.IDeviceService) *DeviceRouter {
	return &DeviceRouter{
		svc:    svc,
		logger: log.Component("device_router"),
		tracer: tracer_client.Tracer("device_http_router"),
	}
}

func (r *DeviceRouter) Routes(engine *gin.RouterGroup) {
	routes := engine.Group("/devices")
	routes.POST("/register", r.register)
	routes.GET("/:token", r.get)
	routes.DELETE("/:token", r.unregister)
}

type RegisterDeviceRequest struct {
	models.Registration
}

func (req *RegisterDeviceRequest) validate() *cerrors.AppError {
	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" {
		return cerrors.ErrMissingDeviceToken
	}
	if err := req.Registration.Validate(); err != nil {
		return cerrors.ErrInvalidRegistration.WithMessage("invalid registration: %s", err.Error())
	}
	return nil
}

func (req *RegisterDeviceRequest) ToRegisterDeviceInput(ctx context.Context, tracer trace.Tracer) *restful.RegisterDeviceInput {
	return &restful.RegisterDeviceInput{
		TracerCtx:    ctx,
		Tracer:       tracer,
		Registration: req.Registration,
	}
}

func (r *DeviceRouter) startSpan(ctx *gin.Context) (context.Context, trace.Span, *log.Logger) {
	rootCtx, span := r.tracer.Start(ctx, ctx.Request.URL.Path, trace.WithAttributes(
		attribute.String(constants.APIFieldRequestID, ctx.GetString(constants.APIFieldRequestID)),
	))
	lg := r.logger.With(
		zap.String(constants.APIFieldRequestID, ctx.GetString(constants.APIFieldRequestID)),
	)
	return rootCtx, span, lg
}

func (r *DeviceRouter) register(ctx *gin.Context) {
	rootCtx, span, lg := r.startSpan(ctx)
	defer span.End()

	resp := api_response.New[any](ctx)
	lg.Info("Received new device registration request")

	// serialization
	_, cSpan := r.tracer.Start(rootCtx, "serialization")
	var req RegisterDeviceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		cSpan.End()
		lg.Warn(err.Error())
		resp.Populate(cerrors.ErrGenericBadRequest.Code, cerrors.ErrGenericBadRequest.Message, nil, nil, nil)
		ctx.JSON(http.StatusBadRequest, resp)
		return
	}
	cSpan.End()

	// validation
	_, cSpan = r.tracer.Start(rootCtx, "validation")
	if appErr := req.validate(); appErr != nil {
		cSpan.End()
		lg.Warn(appErr.Error())
		resp.Populate(appErr.Code, appErr.Message, nil, nil, nil)
		ctx.JSON(cerrors.HTTPStatusOf(appErr), resp)
		return
	}
	cSpan.End()

	result, appErr := r.svc.Register(ctx, req.ToRegisterDeviceInput(rootCtx, r.tracer))
	if appErr != nil {
		resp.Populate(appErr.Code, appErr.Message, nil, nil, nil)
		ctx.JSON(cerrors.HTTPStatusOf(appErr), resp)
		return
	}

	resp.Populate(result.Code, result.Message, result.Data, nil, nil)
	ctx.JSON(http.StatusOK, resp)
}

func (r *DeviceRouter) get(ctx *gin.Context) {
	rootCtx, span, _ := r.startSpan(ctx)
	defer span.End()

	resp := api_response.New[any](ctx)
	result, appErr := r.svc.Get(ctx, &restful.DeviceTokenInput{
		TracerCtx: rootCtx,
		Tracer:    r.tracer,
		Token:     ctx.Param("token"),
	})
	if appErr != nil {
		resp.Populate(appErr.Code, appErr.Message, nil, nil, nil)
		ctx.JSON(cerrors.HTTPStatusOf(appErr), resp)
		return
	}

	resp.Populate(result.Code, result.Message, result.Data, nil, nil)
	ctx.JSON(http.StatusOK, resp)
}

func (r *DeviceRouter) unregister(ctx *gin.Context) {
	rootCtx, span, lg := r.startSpan(ctx)
	defer span.End()

	resp := api_response.New[any](ctx)
	lg.Info("Received device unregister request")

	result, appErr := r.svc.Unregister(ctx, &restful.DeviceTokenInput{
		TracerCtx: rootCtx,
		Tracer:    r.tracer,
		Token:     ctx.Param("token"),
	})
	if appErr != nil {
		resp.Populate(appErr.Code, appErr.Message, nil, nil, nil)
		ctx.JSON(cerrors.HTTPStatusOf(appErr), resp)
		return
	}

	resp.Populate(result.Code, result.Message, nil, nil, nil)
	ctx.JSON(http.StatusOK, resp)
}
