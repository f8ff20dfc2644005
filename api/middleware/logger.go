package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/yt-sync-go/pkg/logger"
)

// Logger returns a gin middleware for access logging. Server errors are
// also recorded in the error log.
func Logger(logAdapter *logger.LoggerAdapter) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", statusCode),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("size", c.Writer.Size()),
		}

		switch {
		case statusCode >= 500:
			logAdapter.LogAppError("HTTP error response", append(fields, zap.String("errors", c.Errors.String()))...)
		case statusCode >= 400:
			logAdapter.General().Warn("HTTP request", fields...)
		default:
			logAdapter.General().Info("HTTP request", fields...)
		}
	}
}
