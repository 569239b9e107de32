// Package metrics exposes Prometheus instrumentation for the audit service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the audit service counters. A nil *Metrics is a valid no-op
// receiver so tests can construct services without a registry.
type Metrics struct {
	eventsCreated    prometheus.Counter
	eventsListed     prometheus.Counter
	acknowledgements *prometheus.CounterVec
	ackBatchSize     prometheus.Histogram
	txRetries        prometheus.Counter
}

// New registers the audit metrics with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		eventsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "audit_events_created_total",
			Help: "Number of audit events recorded.",
		}),
		eventsListed: factory.NewCounter(prometheus.CounterOpts{
			Name: "audit_event_list_requests_total",
			Help: "Number of audit event list queries served.",
		}),
		acknowledgements: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "audit_event_acknowledgements_total",
			Help: "Number of audit events acknowledged, by mode.",
		}, []string{"mode"}),
		ackBatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "audit_event_acknowledge_batch_size",
			Help:    "Number of events transitioned per acknowledge-including-previous call.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		txRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "audit_acknowledge_tx_retries_total",
			Help: "Number of acknowledgment transactions retried after a serialization conflict.",
		}),
	}
}

func (m *Metrics) EventCreated() {
	if m == nil {
		return
	}
	m.eventsCreated.Inc()
}

func (m *Metrics) ListServed() {
	if m == nil {
		return
	}
	m.eventsListed.Inc()
}

// Acknowledged records acknowledged events: mode is "single" or
// "including_previous".
func (m *Metrics) Acknowledged(mode string, count int) {
	if m == nil {
		return
	}
	m.acknowledgements.WithLabelValues(mode).Add(float64(count))
	if mode == "including_previous" {
		m.ackBatchSize.Observe(float64(count))
	}
}

func (m *Metrics) TxRetried() {
	if m == nil {
		return
	}
	m.txRetries.Inc()
}
