// Package telemetry holds the Prometheus metrics and OpenTelemetry tracing used by verification runs.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rollout_scope"

// Metrics collects verification metrics on a private registry.
// A nil *Metrics records nothing.
type Metrics struct {
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	cycles        prometheus.Counter
	checks        *prometheus.CounterVec
	activeRuns    prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates the collectors and registers them, with the Go and process collectors, on a new registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		runsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_completed_total",
				Help:      "Total number of verification runs by result",
			},
			[]string{"result"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of verification runs in seconds",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
			},
			[]string{"result"},
		),
		cycles: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "poll_cycles_total",
				Help:      "Total number of poll cycles executed",
			},
		),
		checks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "checks_total",
				Help:      "Total number of per target checks by kind and result",
			},
			[]string{"kind", "result"},
		),
		activeRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_runs",
				Help:      "Number of verification runs in progress",
			},
		),
	}

	registry.MustRegister(
		m.runsCompleted,
		m.runDuration,
		m.cycles,
		m.checks,
		m.activeRuns,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RecordRunStarted marks a run as in progress.
func (m *Metrics) RecordRunStarted() {
	if m == nil {
		return
	}
	m.activeRuns.Inc()
}

// RecordRunCompleted records a finished run. result is "verified", "failed", "timeout" or "canceled".
func (m *Metrics) RecordRunCompleted(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.runsCompleted.WithLabelValues(result).Inc()
	m.runDuration.WithLabelValues(result).Observe(duration.Seconds())
	m.activeRuns.Dec()
}

// RecordCycle counts one poll cycle.
func (m *Metrics) RecordCycle() {
	if m == nil {
		return
	}
	m.cycles.Inc()
}

// RecordCheck counts one per target check.
func (m *Metrics) RecordCheck(kind string, verified bool) {
	if m == nil {
		return
	}
	result := "not_verified"
	if verified {
		result = "verified"
	}
	m.checks.WithLabelValues(kind, result).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
