package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Graph metrics
	GraphQueries  *prometheus.CounterVec
	GraphDuration *prometheus.HistogramVec

	// Import metrics
	ImportBatches *prometheus.CounterVec
	ImportItems   *prometheus.CounterVec
}

// NewCollector creates a collector with its own registry so that several
// instances (one per test) never collide on registration.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
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
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		GraphQueries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "graph_queries_total",
				Help:      "Total number of graph queries by access mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		GraphDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "graph_query_duration_seconds",
				Help:      "Graph query duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"mode"},
		),
		ImportBatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "import_batches_total",
				Help:      "Committed import batches by entity kind",
			},
			[]string{"kind"},
		),
		ImportItems: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "import_items_total",
				Help:      "Imported items by entity kind",
			},
			[]string{"kind"},
		),
	}

	c.registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.GraphQueries,
		c.GraphDuration,
		c.ImportBatches,
		c.ImportItems,
	)

	return c
}

// Registry returns the collector's registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveGraphQuery records one graph query
func (c *Collector) ObserveGraphQuery(mode string, err error, took time.Duration) {
	if c == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.GraphQueries.WithLabelValues(mode, outcome).Inc()
	c.GraphDuration.WithLabelValues(mode).Observe(took.Seconds())
}

// ObserveImportBatch records one committed import batch
func (c *Collector) ObserveImportBatch(kind string, items int) {
	if c == nil {
		return
	}
	c.ImportBatches.WithLabelValues(kind).Inc()
	c.ImportItems.WithLabelValues(kind).Add(float64(items))
}

// Handler serves the collector's registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// GinMiddleware records request counts and latency per route template
func (c *Collector) GinMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		c.HTTPRequests.WithLabelValues(ctx.Request.Method, route, strconv.Itoa(ctx.Writer.Status())).Inc()
		c.HTTPDuration.WithLabelValues(ctx.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
