package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "payout"

// Metrics holds the worker's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	cycles      *prometheus.CounterVec
	batches     *prometheus.CounterVec
	anomalies   *prometheus.CounterVec
	staleClaims prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Poll cycles by result.",
		}, []string{"result"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Settlement batches by outcome.",
		}, []string{"outcome"}),
		anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_total",
			Help:      "Payout records skipped as data anomalies.",
		}, []string{"reason"}),
		staleClaims: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stale_claims",
			Help:      "Payouts stuck at the pending marker past the stale threshold.",
		}),
	}
	reg.MustRegister(m.cycles, m.batches, m.anomalies, m.staleClaims)
	return m
}

// Cycle counts a finished poll cycle.
func (m *Metrics) Cycle(result string) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(result).Inc()
}

// Batch counts a processed settlement batch.
func (m *Metrics) Batch(outcome string) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(outcome).Inc()
}

// Anomaly counts a skipped payout record.
func (m *Metrics) Anomaly(reason string) {
	if m == nil {
		return
	}
	m.anomalies.WithLabelValues(reason).Inc()
}

// StaleClaims sets the number of stuck pending payouts.
func (m *Metrics) StaleClaims(n int) {
	if m == nil {
		return
	}
	m.staleClaims.Set(float64(n))
}
