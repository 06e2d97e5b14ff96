package gateway

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	educhainRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "educhain_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	educhainRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "educhain_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	educhainCommitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "educhain_tx_commits_total",
		Help: "Total transaction commit attempts by result (committed, conflict).",
	}, []string{"result"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		educhainRequestsTotal.WithLabelValues(method, path, status).Inc()
		educhainRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordCommit records the outcome of a transaction commit attempt.
func RecordCommit(result string) {
	educhainCommitsTotal.WithLabelValues(result).Inc()
}
