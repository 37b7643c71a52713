package metrics

import (
	"net/http"
	"strconv"
	"time"

	"agentwatch/internal/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics represents the collection of all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Refresh cycle
	CycleDuration  prometheus.Histogram
	CyclesTotal    prometheus.Counter
	AgentsByStatus *prometheus.GaugeVec
	ProviderHealth *prometheus.GaugeVec
	TokensTotal    prometheus.Gauge

	// Alerts
	AlertsFired      *prometheus.CounterVec
	AlertsSuppressed *prometheus.CounterVec
	ChannelFailures  *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them on a fresh registry, so
// several instances can coexist in one process.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentwatch_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentwatch_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	m.CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agentwatch_cycle_duration_seconds",
			Help:    "Duration of refresh cycles in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	m.CyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agentwatch_cycles_total",
			Help: "Total number of completed refresh cycles",
		},
	)

	m.AgentsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agentwatch_agents",
			Help: "Number of agents in the latest snapshot by status",
		},
		[]string{"status"},
	)

	m.ProviderHealth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agentwatch_provider_up",
			Help: "Provider health (1=connected, 0=otherwise)",
		},
		[]string{"provider", "state"},
	)

	m.TokensTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentwatch_tokens",
			Help: "Total tokens across agents in the latest snapshot",
		},
	)

	m.AlertsFired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentwatch_alerts_fired_total",
			Help: "Total number of alerts dispatched",
		},
		[]string{"event"},
	)

	m.AlertsSuppressed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentwatch_alerts_suppressed_total",
			Help: "Total number of alerts not dispatched",
		},
		[]string{"event", "reason"},
	)

	m.ChannelFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentwatch_channel_failures_total",
			Help: "Total number of failed channel deliveries",
		},
		[]string{"channel"},
	)

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.CycleDuration,
		m.CyclesTotal,
		m.AgentsByStatus,
		m.ProviderHealth,
		m.TokensTotal,
		m.AlertsFired,
		m.AlertsSuppressed,
		m.ChannelFailures,
	)

	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveCycle records one finished refresh cycle.
func (m *Metrics) ObserveCycle(d time.Duration, snap model.Snapshot) {
	m.CycleDuration.Observe(d.Seconds())
	m.CyclesTotal.Inc()

	counts := make(map[model.Status]int)
	for _, ag := range snap.Agents {
		counts[ag.Status]++
	}
	for _, s := range model.AllStatuses {
		m.AgentsByStatus.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
	m.TokensTotal.Set(float64(snap.Stats.TotalTokens))

	m.ProviderHealth.Reset()
	for _, p := range snap.Providers {
		up := 0.0
		if p.State == model.HealthConnected {
			up = 1
		}
		m.ProviderHealth.WithLabelValues(p.ID, string(p.State)).Set(up)
	}
}

func (m *Metrics) AlertFired(event string) {
	m.AlertsFired.WithLabelValues(event).Inc()
}

func (m *Metrics) AlertSuppressed(event, reason string) {
	m.AlertsSuppressed.WithLabelValues(event, reason).Inc()
}

func (m *Metrics) ChannelFailed(channel string) {
	m.ChannelFailures.WithLabelValues(channel).Inc()
}

// Middleware for tracking HTTP requests. path labels the route pattern
// rather than the raw URL so agent ids do not explode cardinality.
func (m *Metrics) RequestTrackingMiddleware(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.statusCode)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// responseWriter is a wrapper to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
