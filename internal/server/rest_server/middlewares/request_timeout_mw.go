package middlewares

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/okieraised/power-alert-relay/internal/cerrors"
)

// RequestTimeoutMW puts a deadline on the request context. Handlers run on the
// request goroutine and pass that context to every store call, so a stuck
// backend surfaces as DeadlineExceeded. If the handler wrote nothing by then,
// the client gets a 504.
func RequestTimeoutMW(timeout time.Duration) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), timeout)
		defer cancel()
		ctx.Request = ctx.Request.WithContext(reqCtx)

		ctx.Next()

		if !ctx.Writer.Written() && errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			abortWithAppError(ctx, cerrors.ErrGenericRequestTimedOut)
		}
	}
}
