package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Gin context keys shared with the auth and request id middleware
const (
	ContextKeyLogger    = "logger"
	ContextKeyRequestID = "requestId"
	ContextKeyUserID    = "userId"
)

// Middleware returns a Gin middleware function that logs requests
func Middleware(logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetString(ContextKeyRequestID)
		if requestID == "" {
			requestID = c.GetHeader("X-Request-ID")
		}
		if requestID == "" {
			requestID = uuid.New().String()
			c.Header("X-Request-ID", requestID)
		}

		reqLogger := logger.WithRequestID(requestID)
		c.Set(ContextKeyLogger, reqLogger)
		c.Request = c.Request.WithContext(reqLogger.IntoContext(c.Request.Context()))

		start := time.Now()

		c.Next()

		// The auth middleware runs after this one, so pick up the user here
		if userID := c.GetString(ContextKeyUserID); userID != "" {
			reqLogger = reqLogger.WithUserID(userID)
		}

		latency := time.Since(start)
		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method

		reqLogger.LogRequest(method, path, status, latency)

		for _, err := range c.Errors {
			reqLogger.LogError(err.Err, "request error",
				"method", method,
				"path", path,
				"error_type", err.Type,
			)
		}
	}
}

// FromGin returns the request scoped logger set by Middleware, or the global logger
func FromGin(c *gin.Context) *Logger {
	if l, ok := c.Get(ContextKeyLogger); ok {
		if lg, ok := l.(*Logger); ok {
			return lg
		}
	}
	return FromContext(c.Request.Context())
}
