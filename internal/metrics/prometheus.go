package metrics

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements Collector backed by Prometheus.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	timerOps        *prometheus.HistogramVec
	eventsPublished *prometheus.CounterVec
	reconciliations *prometheus.CounterVec
	cacheAccesses   *prometheus.CounterVec
}

// Compile-time assertion that PrometheusCollector implements Collector.
var _ Collector = (*PrometheusCollector)(nil)

// NewPrometheus creates a Prometheus-backed metrics collector.
//
// reg defaults to prometheus.DefaultRegisterer; namespace defaults to
// "timetracker".
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "timetracker"
	}
	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.timerOps = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "timer",
			Name:      "operation_seconds",
			Help:      "Duration of timer control operations by operation and outcome.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"op", "outcome"})

		p.eventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total session change events published by type.",
		}, []string{"type"})

		p.reconciliations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "sync",
			Name:      "reconciliations_total",
			Help:      "Total sync client reconciliations by result.",
		}, []string{"result"})

		p.cacheAccesses = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "cache",
			Name:      "accesses_total",
			Help:      "Total read-through cache lookups by cache and outcome.",
		}, []string{"cache", "outcome"})

		for _, collector := range []prometheus.Collector{
			p.timerOps, p.eventsPublished, p.reconciliations, p.cacheAccesses,
		} {
			if err := p.reg.Register(collector); err != nil {
				var already prometheus.AlreadyRegisteredError
				if !errors.As(err, &already) {
					panic(err)
				}
			}
		}
	})
}

// RecordTimerOperation observes one control action.
func (p *PrometheusCollector) RecordTimerOperation(op, outcome string, seconds float64) {
	p.ensureRegistered()
	p.timerOps.WithLabelValues(op, outcome).Observe(seconds)
}

// RecordEventPublished counts a pushed change event.
func (p *PrometheusCollector) RecordEventPublished(eventType string) {
	p.ensureRegistered()
	p.eventsPublished.WithLabelValues(eventType).Inc()
}

// RecordReconciliation counts a sync reconciliation.
func (p *PrometheusCollector) RecordReconciliation(result string) {
	p.ensureRegistered()
	p.reconciliations.WithLabelValues(result).Inc()
}

// RecordCacheAccess counts a cache lookup.
func (p *PrometheusCollector) RecordCacheAccess(cache string, hit bool) {
	p.ensureRegistered()
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	p.cacheAccesses.WithLabelValues(cache, outcome).Inc()
}
