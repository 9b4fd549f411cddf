// metrics.go records per-request Prometheus metrics. Registered in
// internal/api/router.go before any route handlers so that every request is
// covered regardless of handler.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/project-registry/project-registry/internal/telemetry"
)

// MetricsMiddleware records a request counter and a latency histogram for
// every request. The path label is the matched route template
// (e.g. /api/v1/projects/:projectId/entities/:entity/mutations), never the raw
// URL, so entity names and ids do not explode label cardinality. Requests that
// match no route are labeled "<no-route>". Register after gin.Recovery so the
// status written by error handlers is the one observed.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "<no-route>"
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
