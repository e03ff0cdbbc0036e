package middlewares

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/okieraised/power-alert-relay/internal/cerrors"
	"github.com/okieraised/power-alert-relay/internal/constants"
	"github.com/okieraised/power-alert-relay/internal/infrastructure/log"
	"go.uber.org/zap"
)

// RecoveryMW turns a handler panic into a 500 envelope. The panic value is logged, never returned.
func RecoveryMW() gin.HandlerFunc {
	logger := log.Component("http")
	return func(ctx *gin.Context) {
		defer func() {
			p := recover()
			if p == nil {
				return
			}
			logger.Error("Recovered from handler panic",
				zap.String(constants.APIFieldRequestID, ctx.GetString(constants.APIFieldRequestID)),
				zap.String("panic", fmt.Sprint(p)),
				zap.ByteString("stack", debug.Stack()),
			)
			if ctx.Writer.Written() {
				ctx.Abort()
				return
			}
			abortWithAppError(ctx, cerrors.ErrGenericInternalServer)
		}()
		ctx.Next()
	}
}
