// Package metrics exposes Prometheus instrumentation for assembly requests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcomes recorded on assembly counters.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeAbandoned = "abandoned"
	OutcomeOrphaned  = "orphaned"
)

// Recorder is the subset the assembly actor reports through. A nil
// *Metrics satisfies it and records nothing.
type Recorder interface {
	ObserveAssembly(kind, outcome string, elapsed time.Duration)
	ObserveBackendCall(service, operation string, err error)
	SetMailboxDepth(depth int)
}

// Metrics owns a private registry so tests and embedded daemons do not
// collide on the global default.
type Metrics struct {
	registry     *prometheus.Registry
	assemblies   *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	backendCalls *prometheus.CounterVec
	mailbox      prometheus.Gauge
}

// New builds and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		assemblies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pmxfactory",
			Name:      "assemblies_total",
			Help:      "Assembly requests processed, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pmxfactory",
			Name:      "assembly_duration_seconds",
			Help:      "Time spent assembling a request once dequeued.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"kind", "outcome"}),
		backendCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pmxfactory",
			Name:      "backend_calls_total",
			Help:      "Calls made to backend services, by result.",
		}, []string{"service", "operation", "result"}),
		mailbox: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pmxfactory",
			Name:      "mailbox_depth",
			Help:      "Requests waiting in the assembly actor mailbox.",
		}),
	}
	m.registry.MustRegister(
		m.assemblies,
		m.duration,
		m.backendCalls,
		m.mailbox,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveAssembly counts a finished request.
func (m *Metrics) ObserveAssembly(kind, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.assemblies.WithLabelValues(kind, outcome).Inc()
	m.duration.WithLabelValues(kind, outcome).Observe(elapsed.Seconds())
}

// ObserveBackendCall counts a single backend request.
func (m *Metrics) ObserveBackendCall(service, operation string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.backendCalls.WithLabelValues(service, operation, result).Inc()
}

// SetMailboxDepth publishes the current mailbox length.
func (m *Metrics) SetMailboxDepth(depth int) {
	if m == nil {
		return
	}
	m.mailbox.Set(float64(depth))
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
