package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	resultSuccess = "success"
	resultError   = "error"
)

// HTTPMetricsMiddleware creates a Gin middleware that records HTTP metrics
func HTTPMetricsMiddleware(m Recorder) gin.HandlerFunc {
	// If NoopMetrics, return a lightweight middleware that does nothing
	if _, ok := m.(*NoopMetrics); ok {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		// Skip metrics endpoint to avoid self-recording
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		m.IncHTTPInFlight()
		defer m.DecHTTPInFlight()

		c.Next()

		// Use the route pattern, not the actual path, to keep label
		// cardinality bounded.
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		m.RecordHTTPRequest(
			c.Request.Method,
			path,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start),
		)
	}
}
