package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/sidechain/ranking/internal/metrics"
)

// MetricsMiddleware collects HTTP metrics for Prometheus. Requests are
// labelled by route template so path parameters do not explode cardinality.
func MetricsMiddleware() gin.HandlerFunc {
	m := metrics.Get()

	return func(c *gin.Context) {
		method := c.Request.Method
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		m.HTTPActiveConnections.WithLabelValues(method, route).Inc()
		defer m.HTTPActiveConnections.WithLabelValues(method, route).Dec()

		startTime := time.Now()
		c.Next()

		// numeric status labels let dashboards match status=~"5.."
		status := strconv.Itoa(c.Writer.Status())
		m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, route, status).Observe(time.Since(startTime).Seconds())

		if size := c.Writer.Size(); size > 0 {
			m.HTTPResponseSize.WithLabelValues(method, route, status).Observe(float64(size))
		}
		if c.Writer.Status() >= 500 {
			metrics.RecordError("http_"+status, route)
		}
	}
}
