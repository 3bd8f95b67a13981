package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the service. Each collector
// owns its registry, so several can coexist in tests.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Business metrics
	ArticlesProcessed  prometheus.Counter
	ValidationFailures prometheus.Counter
	RateLimited        prometheus.Counter
	Scores             *prometheus.HistogramVec
	SlugFallbacks      prometheus.Counter

	// Import metrics
	Imports        *prometheus.CounterVec
	ImportDuration prometheus.Histogram
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
}

// NewCollector creates a collector with the given metric namespace
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		ArticlesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_processed_total",
			Help:      "Articles turned into SEO results",
		}),
		ValidationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Requests rejected by input validation",
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		}),
		Scores: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "article_score",
				Help:      "Distribution of SEO scores",
				Buckets:   prometheus.LinearBuckets(0, 10, 11),
			},
			[]string{"kind"},
		),
		SlugFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slug_fallbacks_total",
			Help:      "Slugs that fell back to a timestamped placeholder",
		}),
		Imports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "imports_total",
				Help:      "Article imports by outcome",
			},
			[]string{"result"},
		),
		ImportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "import_duration_seconds",
			Help:      "Time spent fetching and extracting articles",
			Buckets:   prometheus.DefBuckets,
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_cache_hits_total",
			Help:      "Article imports served from cache",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_cache_misses_total",
			Help:      "Article imports that required a fetch",
		}),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.ArticlesProcessed,
		c.ValidationFailures,
		c.RateLimited,
		c.Scores,
		c.SlugFallbacks,
		c.Imports,
		c.ImportDuration,
		c.CacheHits,
		c.CacheMisses,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// Handler serves the metrics in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one handled HTTP request
func (c *Collector) ObserveRequest(method, route string, status int, duration time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveScores records the scores of one processed article
func (c *Collector) ObserveScores(title, content, overall int) {
	c.ArticlesProcessed.Inc()
	c.Scores.WithLabelValues("title").Observe(float64(title))
	c.Scores.WithLabelValues("content").Observe(float64(content))
	c.Scores.WithLabelValues("overall").Observe(float64(overall))
}

// ObserveImport records the outcome of one article import
func (c *Collector) ObserveImport(result string, duration time.Duration) {
	c.Imports.WithLabelValues(result).Inc()
	c.ImportDuration.Observe(duration.Seconds())
}

// ObserveCache records an import cache lookup
func (c *Collector) ObserveCache(hit bool) {
	if hit {
		c.CacheHits.Inc()
	} else {
		c.CacheMisses.Inc()
	}
}
