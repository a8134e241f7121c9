package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. Every Record method is safe to call
// on a nil *Metrics so components can run without a collector.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Page context
	Intercepts *prometheus.CounterVec
	Replays    *prometheus.CounterVec
	ReplayTime prometheus.Histogram

	// Cross-context messaging
	Messages     *prometheus.CounterVec
	Drops        *prometheus.CounterVec
	RelayQueries prometheus.Counter
	PagesActive  prometheus.Gauge
}

// NewMetrics creates a collector set on its own registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	register := func(c prometheus.Collector) {
		reg.MustRegister(c)
	}

	m := &Metrics{
		registry: reg,

		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aptools_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aptools_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"method", "path"},
		),
		Intercepts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aptools_intercepted_requests_total",
				Help: "Progress requests seen by the interceptor, by action",
			},
			[]string{"action"},
		),
		Replays: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aptools_replays_total",
				Help: "Replay actions, by outcome",
			},
			[]string{"outcome"},
		),
		ReplayTime: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "aptools_replay_duration_seconds",
				Help:    "Replay request round-trip time",
				Buckets: prometheus.DefBuckets,
			},
		),
		Messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aptools_messages_total",
				Help: "Cross-context messages, by direction and type",
			},
			[]string{"direction", "type"},
		),
		Drops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aptools_messages_dropped_total",
				Help: "Fire-and-forget messages dropped because the receiver was not ready",
			},
			[]string{"type"},
		),
		RelayQueries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "aptools_relay_queries_total",
				Help: "State queries answered from the relay cache",
			},
		),
		PagesActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "aptools_pages_active",
				Help: "Connected page instances",
			},
		),
	}

	register(m.RequestsTotal)
	register(m.RequestDuration)
	register(m.Intercepts)
	register(m.Replays)
	register(m.ReplayTime)
	register(m.Messages)
	register(m.Drops)
	register(m.RelayQueries)
	register(m.PagesActive)
	register(collectors.NewGoCollector())

	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordIntercept records what the interceptor did with a matched request
func (m *Metrics) RecordIntercept(action string) {
	if m == nil {
		return
	}
	m.Intercepts.WithLabelValues(action).Inc()
}

// RecordReplay records a replay outcome and, for network replays, its duration
func (m *Metrics) RecordReplay(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.Replays.WithLabelValues(outcome).Inc()
	if duration > 0 {
		m.ReplayTime.Observe(duration.Seconds())
	}
}

// RecordMessage records a cross-context message
func (m *Metrics) RecordMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.Messages.WithLabelValues(direction, msgType).Inc()
}

// RecordDrop records a message swallowed by fire-and-forget delivery
func (m *Metrics) RecordDrop(msgType string) {
	if m == nil {
		return
	}
	m.Drops.WithLabelValues(msgType).Inc()
}

// IncRelayQueries counts a state query
func (m *Metrics) IncRelayQueries() {
	if m == nil {
		return
	}
	m.RelayQueries.Inc()
}

// IncPages increments connected pages
func (m *Metrics) IncPages() {
	if m == nil {
		return
	}
	m.PagesActive.Inc()
}

// DecPages decrements connected pages
func (m *Metrics) DecPages() {
	if m == nil {
		return
	}
	m.PagesActive.Dec()
}
