package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// quietPaths are polled constantly and not worth a log line.
var quietPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// StructuredLogging provides structured logging middleware
func StructuredLogging(logger *zap.Logger) gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		if _, quiet := quietPaths[param.Path]; quiet {
			return ""
		}

		requestID := ""
		if id, ok := param.Keys[RequestIDKey].(string); ok {
			requestID = id
		}

		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", param.Method),
			zap.String("path", param.Path),
			zap.Int("status", param.StatusCode),
			zap.Int64("latency_ms", param.Latency.Milliseconds()),
			zap.String("client_ip", param.ClientIP),
			zap.String("user_agent", param.Request.UserAgent()),
		}
		if param.ErrorMessage != "" {
			fields = append(fields, zap.String("error", param.ErrorMessage))
		}

		switch {
		case param.StatusCode >= 500:
			logger.Error("HTTP Request", fields...)
		case param.StatusCode >= 400:
			logger.Warn("HTTP Request", fields...)
		default:
			logger.Info("HTTP Request", fields...)
		}

		return ""
	})
}
