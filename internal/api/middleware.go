package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rideline/telemetry-service/internal/metrics"
)

// RequestLogger logs HTTP requests with a per-request ID
func RequestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := uuid.New().String()
		c.Set("request_id", requestID)
		c.Writer.Header().Set("X-Request-ID", requestID)

		c.Next()

		logger.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration":    time.Since(start).String(),
			"request_id":  requestID,
			"remote_addr": c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		}).Info("HTTP request")
	}
}

// Metrics records request counts and latencies per path
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		metrics.GetCollector().RecordHTTPRequest(path, c.Writer.Status(), time.Since(start))
	}
}
