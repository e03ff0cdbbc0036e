package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/okieraised/power-alert-relay/internal/api_response"
	"github.com/okieraised/power-alert-relay/internal/cerrors"
)

func abortWithAppError(ctx *gin.Context, appErr *cerrors.AppError) {
	resp := api_response.New[any](ctx)
	resp.Populate(appErr.Code, appErr.Message, nil, nil, nil)
	ctx.AbortWithStatusJSON(cerrors.HTTPStatusOf(appErr), resp)
}
