package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/meetsmatch/matchqueue/internal/telemetry"
)

// CorrelationIDHeader carries the request correlation id in and out.
const CorrelationIDHeader = "X-Correlation-ID"

// LoggingConfig holds the configuration for logging middleware
type LoggingConfig struct {
	SkipPaths     []string
	LogHeaders    bool
	SlowThreshold time.Duration
}

// DefaultLoggingConfig returns the default logging middleware configuration
func DefaultLoggingConfig() *LoggingConfig {
	return &LoggingConfig{
		SkipPaths:     []string{"/health", "/health/live"},
		LogHeaders:    false,
		SlowThreshold: 2 * time.Second,
	}
}

var redactedHeaders = map[string]bool{
	"Authorization": true,
	"Cookie":        true,
	"X-Api-Key":     true,
}

// LoggingMiddleware assigns every request a correlation id, stores it on the
// request context and logs the completed request.
func LoggingMiddleware(config *LoggingConfig) gin.HandlerFunc {
	if config == nil {
		config = DefaultLoggingConfig()
	}
	skip := make(map[string]bool, len(config.SkipPaths))
	for _, path := range config.SkipPaths {
		skip[path] = true
	}

	return func(c *gin.Context) {
		correlationID := c.GetHeader(CorrelationIDHeader)
		if correlationID == "" {
			correlationID = telemetry.NewCorrelationID()
		}
		c.Header(CorrelationIDHeader, correlationID)
		c.Request = c.Request.WithContext(telemetry.WithCorrelationID(c.Request.Context(), correlationID))

		if skip[c.Request.URL.Path] {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		fields := logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       c.FullPath(),
			"query":       c.Request.URL.RawQuery,
			"remote_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
			"status":      c.Writer.Status(),
			"size":        c.Writer.Size(),
			"duration_ms": float64(duration.Microseconds()) / 1000,
		}
		if config.LogHeaders {
			headers := make(map[string]string, len(c.Request.Header))
			for name, values := range c.Request.Header {
				switch {
				case redactedHeaders[name]:
					headers[name] = "[REDACTED]"
				case len(values) > 0:
					headers[name] = values[0]
				}
			}
			fields["headers"] = headers
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.Errors()
		}

		logger := telemetry.GetContextualLogger(c.Request.Context()).WithFields(fields)
		switch status := c.Writer.Status(); {
		case status >= 500:
			logger.Error("HTTP request completed with server error")
		case status >= 400:
			logger.Warn("HTTP request completed with client error")
		case duration > config.SlowThreshold:
			logger.Warn("HTTP request completed (slow)")
		default:
			logger.Info("HTTP request completed")
		}
	}
}
