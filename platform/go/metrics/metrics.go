// Package metrics registers the prometheus counters emitted by the tenant
// and backup services.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for operation counters.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// Metrics bundles the counters shared across services.
type Metrics struct {
	Provisions *prometheus.CounterVec
	Backups    *prometheus.CounterVec
	Restores   *prometheus.CounterVec
}

// New registers the counter set on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		panic("metrics requires a registerer")
	}

	m := &Metrics{
		Provisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lumina_provisions_total",
			Help: "Tenant provisioning attempts by outcome.",
		}, []string{"outcome"}),
		Backups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lumina_backups_total",
			Help: "Database backup attempts by outcome.",
		}, []string{"outcome"}),
		Restores: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lumina_restores_total",
			Help: "Database restore attempts by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(m.Provisions, m.Backups, m.Restores)
	return m
}

// ObserveProvision records a provisioning outcome; nil-safe so services can
// run without metrics in tests.
func (m *Metrics) ObserveProvision(outcome string) {
	if m != nil {
		m.Provisions.WithLabelValues(outcome).Inc()
	}
}

// ObserveBackup records a backup outcome.
func (m *Metrics) ObserveBackup(outcome string) {
	if m != nil {
		m.Backups.WithLabelValues(outcome).Inc()
	}
}

// ObserveRestore records a restore outcome.
func (m *Metrics) ObserveRestore(outcome string) {
	if m != nil {
		m.Restores.WithLabelValues(outcome).Inc()
	}
}
