// Package metrics owns the process's prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every collector the dashboard exports.
type Metrics struct {
	Registry *prometheus.Registry

	ActiveSubscriptions *prometheus.GaugeVec
	RealtimeEvents      *prometheus.CounterVec
	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
	TasksProcessed      *prometheus.CounterVec
	CacheLookups        *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		ActiveSubscriptions: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sellerhub_realtime_subscriptions",
			Help: "Live query subscriptions currently open.",
		}, []string{"collection"}),
		RealtimeEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sellerhub_realtime_events_total",
			Help: "Change events delivered to subscribers.",
		}, []string{"collection", "kind"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sellerhub_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sellerhub_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		TasksProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sellerhub_tasks_processed_total",
			Help: "Background tasks by type and outcome.",
		}, []string{"type", "outcome"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sellerhub_cache_lookups_total",
			Help: "View cache lookups by result.",
		}, []string{"result"}),
	}
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// GinMiddleware records request counts and latency per matched route.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// TaskOutcome records one processed background task.
func (m *Metrics) TaskOutcome(taskType string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.TasksProcessed.WithLabelValues(taskType, outcome).Inc()
}

// CacheResult records a view cache hit or miss.
func (m *Metrics) CacheResult(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.CacheLookups.WithLabelValues("miss").Inc()
}
