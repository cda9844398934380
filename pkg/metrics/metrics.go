// Package metrics exposes Prometheus counters for the multisig engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/clemsos/safe-docs/pkg/resolver"
)

const namespace = "multisig"

// Metrics holds the engine counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	aggregations        *prometheus.CounterVec
	validations         *prometheus.CounterVec
	signaturesCollected *prometheus.CounterVec
	cacheLookups        *prometheus.CounterVec
}

// NewMetrics registers the counters on reg. A nil reg yields unregistered counters.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		aggregations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "aggregations_total",
			Help:      "Number of aggregation attempts by outcome",
		}, []string{"outcome"}),
		validations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validator",
			Name:      "validations_total",
			Help:      "Number of validations by result reason",
		}, []string{"reason"}),
		signaturesCollected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "signatures_collected_total",
			Help:      "Number of contributions added to signing sessions",
		}, []string{"kind"}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "cache_lookups_total",
			Help:      "Number of account cache lookups by result",
		}, []string{"result"}),
	}
}

// Aggregation outcomes
const (
	OutcomeComplete = "complete"
	OutcomePartial  = "partial"
	OutcomeFailed   = "failed"
)

func (m *Metrics) ObserveAggregation(outcome string) {
	if m == nil {
		return
	}
	m.aggregations.WithLabelValues(outcome).Inc()
}

// ObserveValidation records a validation result; accepted results use reason "accepted".
func (m *Metrics) ObserveValidation(reason string) {
	if m == nil {
		return
	}
	m.validations.WithLabelValues(reason).Inc()
}

// ObserveSignature records one collected contribution of the given kind (a method name or "nested").
func (m *Metrics) ObserveSignature(kind string) {
	if m == nil {
		return
	}
	m.signaturesCollected.WithLabelValues(kind).Inc()
}

// CacheHook feeds resolver.Cache lookups into the cache counter
func (m *Metrics) CacheHook() resolver.LookupHook {
	if m == nil {
		return nil
	}
	return func(hit bool) {
		if hit {
			m.cacheLookups.WithLabelValues("hit").Inc()
			return
		}
		m.cacheLookups.WithLabelValues("miss").Inc()
	}
}
