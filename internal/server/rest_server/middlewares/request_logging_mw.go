package middlewares

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/okieraised/power-alert-relay/internal/constants"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func levelForStatus(status int) zapcore.Level {
	switch {
	case status >= 500:
		return zapcore.ErrorLevel
	case status >= 400:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

// RequestLoggingMW writes one access log line per request. Device tokens travel
// in the path, so only the route pattern is logged, never the raw path.
func RequestLoggingMW(logger *zap.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := ctx.Writer.Status()
		fields := []zapcore.Field{
			zap.String(constants.APIFieldRequestID, ctx.GetString(constants.APIFieldRequestID)),
			zap.Int("status", status),
			zap.String("method", ctx.Request.Method),
			zap.String("route", route),
			zap.String("ip", ctx.ClientIP()),
			zap.String("user-agent", ctx.Request.UserAgent()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(ctx.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", ctx.Errors.Errors()))
		}

		if ce := logger.Check(levelForStatus(status), ctx.Request.Method+" "+route); ce != nil {
			ce.Write(fields...)
		}
	}
}
