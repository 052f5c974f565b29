package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects chat endpoint telemetry on a private registry, exposed on
// GET /metrics.
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration prometheus.Histogram
	events   *prometheus.CounterVec
}

// NewMetrics creates the metric set with Go runtime collectors included.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "legalrag_chat_requests_total",
			Help: "Chat requests by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "legalrag_chat_request_duration_seconds",
			Help:    "Chat request duration from decode to final event.",
			Buckets: prometheus.DefBuckets,
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "legalrag_stream_events_total",
			Help: "Stream events emitted, by step and status.",
		}, []string{"step", "status"}),
	}
	registry.MustRegister(m.requests, m.duration, m.events)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeRequest(outcome string, start time.Time) {
	m.requests.WithLabelValues(outcome).Inc()
	m.duration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) observeEvent(evt Event) {
	m.events.WithLabelValues(evt.Step, string(evt.Status)).Inc()
}
