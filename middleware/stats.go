package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/seo-optimizer/content-processor/metrics"
	"github.com/seo-optimizer/content-processor/stats"
)

// StatsMiddleware tracks every request in the usage statistics and the
// Prometheus collector. Either may be nil.
func StatsMiddleware(storage *stats.Storage, collector *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		if collector != nil {
			collector.ObserveRequest(c.Request.Method, route, status, time.Since(start))
			if status == http.StatusTooManyRequests {
				collector.RateLimited.Inc()
			}
		}

		if storage != nil {
			storage.TrackRequest(c.ClientIP(), status)
		}
	}
}
