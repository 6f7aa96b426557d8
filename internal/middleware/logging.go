// Package middleware holds the gin middleware shared by every route.
package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sparkcampus/doubts/backend/internal/response"
)

const RequestIDHeader = "X-Request-ID"

// RequestLogger tags each request with an id and logs it once it completes.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		id := requestID(c.GetHeader(RequestIDHeader))
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("request_id", id),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.Int("bytes", c.Writer.Size()),
			zap.String("client_ip", c.ClientIP()),
		}
		if user, ok := CurrentUser(c); ok {
			fields = append(fields, zap.Int("user_id", user.ID))
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("request completed", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("request completed", fields...)
		default:
			logger.Info("request completed", fields...)
		}
	}
}

// requestID keeps a caller's id only when it is a UUID; anything else is
// replaced so headers and logs never carry arbitrary client text.
func requestID(header string) string {
	if parsed, err := uuid.Parse(header); err == nil {
		return parsed.String()
	}
	return uuid.NewString()
}

// Recovery turns a panic into the generic 500 body.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("path", c.Request.URL.Path),
					zap.ByteString("stack", debug.Stack()),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": response.InternalMessage,
					"code":  response.CodeInternal,
				})
			}
		}()
		c.Next()
	}
}
