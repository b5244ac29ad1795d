// Package metrics instruments the operations applied to the sets of a
// store with prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "keyset"

// Result labels of an operation
const (
	ResultApplied = "applied"
	ResultNoop    = "noop"
	ResultFailed  = "failed"
)

// Metrics holds the collectors of a store. A nil *Metrics is valid
// and records nothing
type Metrics struct {
	registry *prometheus.Registry
	ops      *prometheus.CounterVec
	size     *prometheus.GaugeVec
	height   *prometheus.GaugeVec
	sets     prometheus.Gauge
	dropped  prometheus.Counter
}

// New creates the collectors and registers them in a registry of
// their own, so that more than one instance can live in a process
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Number of keys processed by operation and result.",
		}, []string{"set", "op", "result"}),
		size: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "set_keys",
			Help:      "Number of keys held by a set.",
		}, []string{"set"}),
		height: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "set_height",
			Help:      "Height of the tree backing a set.",
		}, []string{"set"}),
		sets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sets",
			Help:      "Number of sets in the store.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "dropped_events_total",
			Help:      "Number of change events dropped because the feed could not keep up.",
		}),
	}

	m.registry.MustRegister(m.ops, m.size, m.height, m.sets, m.dropped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return m
}

// ObserveOp adds n keys to the counter of set, op and result
func (m *Metrics) ObserveOp(set, op, result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ops.WithLabelValues(set, op, result).Add(float64(n))
}

// SetSize records the number of keys and the height of set
func (m *Metrics) SetSize(set string, size, height int) {
	if m == nil {
		return
	}
	m.size.WithLabelValues(set).Set(float64(size))
	m.height.WithLabelValues(set).Set(float64(height))
}

// DropEvents counts n change events that were not delivered
func (m *Metrics) DropEvents(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.dropped.Add(float64(n))
}

// CreateSet counts a new set
func (m *Metrics) CreateSet(set string) {
	if m == nil {
		return
	}
	m.sets.Inc()
	m.SetSize(set, 0, 0)
}

// DropSet forgets the series of set
func (m *Metrics) DropSet(set string) {
	if m == nil {
		return
	}
	m.sets.Dec()
	m.size.DeleteLabelValues(set)
	m.height.DeleteLabelValues(set)
	m.ops.DeletePartialMatch(prometheus.Labels{"set": set})
}

// Registry returns the registry that holds the collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors in the prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
