package restful

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/okieraised/power-alert-relay/internal/api_response"
	"github.com/okieraised/power-alert-relay/internal/cerrors"
	"github.com/okieraised/power-alert-relay/internal/constants"
	"github.com/okieraised/power-alert-relay/internal/infrastructure/tracer_client"
	"github.com/okieraised/power-alert-relay/internal/server/rest_server/services/v1/restful"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type ReadingsRouter struct {
	svc    restful.IReadingsService
	tracer trace.Tracer
}

func NewReadingsRouter(svc restful.IReadingsService) *ReadingsRouter {
	return &ReadingsRouter{
		svc:    svc,
		tracer: tracer_client.Tracer("readings_http_router"),
	}
}

func (r *ReadingsRouter) Routes(engine *gin.RouterGroup) {
	engine.GET("/readings", r.latest)
}

func (r *ReadingsRouter) latest(ctx *gin.Context) {
	rootCtx, span := r.tracer.Start(ctx, ctx.Request.URL.Path, trace.WithAttributes(
		attribute.String(constants.APIFieldRequestID, ctx.GetString(constants.APIFieldRequestID)),
	))
	defer span.End()

	resp := api_response.New[any](ctx)
	result, appErr := r.svc.Latest(ctx, &restful.ReadingsInput{
		TracerCtx: rootCtx,
		Tracer:    r.tracer,
	})
	if appErr != nil {
		resp.Populate(appErr.Code, appErr.Message, nil, nil, nil)
		ctx.JSON(cerrors.HTTPStatusOf(appErr), resp)
		return
	}

	resp.Populate(result.Code, result.Message, result.Data, nil, result.Count)
	ctx.JSON(http.StatusOK, resp)
}
