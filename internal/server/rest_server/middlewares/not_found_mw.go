package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/okieraised/power-alert-relay/internal/cerrors"
)

func NoRouteMW() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		abortWithAppError(ctx, cerrors.ErrGenericUnknownAPIPath.WithMessage("unknown api path: %s %s", ctx.Request.Method, ctx.Request.URL.Path))
	}
}
