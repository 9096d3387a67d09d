// Package metrics exposes dispatcher and pin metrics on a private registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "robot"

// Outcome label values.
const (
	OutcomeExecuted = "executed"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

type Metrics struct {
	registry *prometheus.Registry

	commands *prometheus.CounterVec
	cycle    prometheus.Histogram
	pinLevel prometheus.Gauge
	busy     prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Dispatched commands by token and outcome.",
		}, []string{"command", "outcome"}),
		cycle: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_cycle_seconds",
			Help:      "Wall time of a full dispatch cycle including the post-delay.",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
		}),
		pinLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pin_level",
			Help:      "Last sampled output pin level (1=HIGH, 0=LOW).",
		}),
		busy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dispatch_busy",
			Help:      "1 while a dispatch cycle is in progress.",
		}),
	}
	m.registry.MustRegister(m.commands, m.cycle, m.pinLevel, m.busy,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// All recorders are nil-safe so components can run without metrics.

func (m *Metrics) ObserveCommand(command, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command, outcome).Inc()
	m.cycle.Observe(took.Seconds())
}

func (m *Metrics) SetPinLevel(high bool) {
	if m == nil {
		return
	}
	if high {
		m.pinLevel.Set(1)
		return
	}
	m.pinLevel.Set(0)
}

func (m *Metrics) SetBusy(busy bool) {
	if m == nil {
		return
	}
	if busy {
		m.busy.Set(1)
		return
	}
	m.busy.Set(0)
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
