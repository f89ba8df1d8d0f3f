package middleware

import (
	"time"

	"almoheat/internal/metrics"

	"github.com/gin-gonic/gin"
)

// Metrics records request count and latency per route template, so
// /api/products/:id is one series however many ids are requested.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
