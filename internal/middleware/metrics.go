package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huangang/auditdesk/backend/internal/metrics"
)

// Metrics observes request latency by route pattern. Unmatched routes are
// grouped under one label so scanners cannot blow up cardinality.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RequestDuration.
			WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
