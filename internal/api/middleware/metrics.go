// Package middleware provides HTTP middleware and Prometheus collectors for
// the lexiroute API server.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// httpRequestsTotal counts the total number of HTTP requests processed.
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexiroute_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDurationSeconds tracks the duration of HTTP requests.
	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lexiroute_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// dispatchAttemptsTotal counts settled dispatch attempts per endpoint.
	dispatchAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexiroute_dispatch_attempts_total",
			Help: "Total settled dispatch attempts grouped by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	// dispatchLatencySeconds tracks provider call latency per endpoint.
	dispatchLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lexiroute_dispatch_latency_seconds",
			Help:    "Latency of provider translation calls in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"endpoint"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		dispatchAttemptsTotal,
		dispatchLatencySeconds,
	)
}

// PrometheusMiddleware returns a Gin middleware that records request count
// and duration metrics for every handled request.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDurationSeconds.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// PrometheusHandler returns the /metrics scrape handler wrapped for Gin.
func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// ObserveDispatch records one settled dispatch attempt into the Prometheus
// counters. Called from the dispatch metrics recorder.
func ObserveDispatch(endpoint string, success bool, latencySeconds float64) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	dispatchAttemptsTotal.WithLabelValues(endpoint, outcome).Inc()
	if success {
		dispatchLatencySeconds.WithLabelValues(endpoint).Observe(latencySeconds)
	}
}
