package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics stores Prometheus collectors used across the service.
type Metrics struct {
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
	NegotiationRounds *prometheus.CounterVec
	InvoiceRequests   *prometheus.CounterVec
	InvoiceLatency    *prometheus.HistogramVec
	EmailSends        *prometheus.CounterVec
	CallResults       *prometheus.CounterVec
	Errors            *prometheus.CounterVec
}

var (
	regOnce         sync.Once
	metricsInstance *Metrics
)

// Registry builds and registers the metrics singleton with optional namespace.
func Registry(namespace string) *Metrics {
	regOnce.Do(func() {
		metricsInstance = &Metrics{
			HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests by method, route and status.",
			}, []string{"method", "route", "status"}),
			HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Latency distribution for HTTP requests.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method", "route"}),
			NegotiationRounds: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "negotiation_rounds_total",
				Help:      "Total negotiation rounds computed by result status.",
			}, []string{"status"}),
			InvoiceRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invoice_render_requests_total",
				Help:      "Total document render API requests by outcome.",
			}, []string{"status"}),
			InvoiceLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "invoice_render_duration_seconds",
				Help:      "Latency distribution for document render API calls.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"status"}),
			EmailSends: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "email_sends_total",
				Help:      "Total SMTP delivery attempts by outcome.",
			}, []string{"status"}),
			CallResults: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "call_results_total",
				Help:      "Total recorded call sessions by outcome.",
			}, []string{"outcome"}),
			Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total errors grouped by component.",
			}, []string{"component"}),
		}

		prometheus.MustRegister(
			metricsInstance.HTTPRequests,
			metricsInstance.HTTPDuration,
			metricsInstance.NegotiationRounds,
			metricsInstance.InvoiceRequests,
			metricsInstance.InvoiceLatency,
			metricsInstance.EmailSends,
			metricsInstance.CallResults,
			metricsInstance.Errors,
		)
	})
	return metricsInstance
}

// GinMiddleware records request counts and latency per route.
func GinMiddleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		m.HTTPRequests.WithLabelValues(method, route, status).Inc()
		m.HTTPDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
