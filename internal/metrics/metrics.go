// Package metrics exposes Prometheus collectors for the voicecoach pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "voicecoach"

// Provider kinds.
const (
	KindTextGen = "textgen"
	KindTTS     = "tts"
)

// Metrics holds the collectors and the registry they are registered on.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	providerRequests *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	requests         *prometheus.CounterVec
	requestDuration  prometheus.Histogram
	textSources      *prometheus.CounterVec
	filtered         prometheus.Counter
	active           prometheus.Gauge
}

// New creates the collectors on a fresh registry, together with the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		providerRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_requests_total",
				Help:      "Total number of outbound provider calls",
			},
			[]string{"kind", "provider", "status"}, // status: success, error
		),
		providerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_request_duration_seconds",
				Help:      "Duration of outbound provider calls in seconds",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"kind", "provider"},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of pipeline runs by outcome",
			},
			[]string{"outcome"}, // ok, partial, unauthorized, bad_payload, error
		),
		requestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Duration of pipeline runs in seconds",
				Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
		textSources: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "text_source_total",
				Help:      "Where response text came from",
			},
			[]string{"source"}, // model, template, supplied
		),
		filtered: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_filtered_total",
				Help:      "Texts replaced by the safe disclaimer",
			},
		),
		active: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "requests_active",
				Help:      "Number of pipeline runs in progress",
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.providerRequests,
		m.providerDuration,
		m.requests,
		m.requestDuration,
		m.textSources,
		m.filtered,
		m.active,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveProvider records one outbound provider call.
func (m *Metrics) ObserveProvider(kind, provider string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.providerRequests.WithLabelValues(kind, provider, status).Inc()
	m.providerDuration.WithLabelValues(kind, provider).Observe(d.Seconds())
}

// ObserveRequest records a finished pipeline run.
func (m *Metrics) ObserveRequest(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
	if d > 0 {
		m.requestDuration.Observe(d.Seconds())
	}
}

// ObserveText records the text source and whether the policy scrub fired.
func (m *Metrics) ObserveText(source string, filtered bool) {
	if m == nil {
		return
	}
	m.textSources.WithLabelValues(source).Inc()
	if filtered {
		m.filtered.Inc()
	}
}

// Track increments the active gauge and returns a func that decrements it.
func (m *Metrics) Track() func() {
	if m == nil {
		return func() {}
	}
	m.active.Inc()
	return m.active.Dec
}
