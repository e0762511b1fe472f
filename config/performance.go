package config

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const RequestIDHeader = "X-Request-ID"

func PerformanceLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("requestId", requestID)
		c.Header(RequestIDHeader, requestID)

		c.Next()

		latency := time.Since(start)
		entry := log.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": latency.Milliseconds(),
		})
		entry.Info("request handled")

		// PDF rendering starts a browser, so those routes get a looser threshold.
		threshold := 200 * time.Millisecond
		if strings.HasSuffix(c.Request.URL.Path, "/pdf") || strings.HasSuffix(c.Request.URL.Path, "/regenerate") ||
			(c.Request.Method == "POST" && strings.HasSuffix(c.Request.URL.Path, "/invoices")) {
			threshold = 2 * time.Second
		}
		if latency > threshold {
			entry.Warn("slow request")
		}
	}
}
