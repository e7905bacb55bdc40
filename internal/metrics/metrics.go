// Package metrics exposes Prometheus counters for reconciliation and drift.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "metasync"

// Metrics holds the collectors recorded during import and export passes.
type Metrics struct {
	objectsImported   prometheus.Counter
	changeOutcomes    *prometheus.CounterVec
	exportsDeleted    prometheus.Counter
	createTransitions prometheus.Counter
	driftDetected     *prometheus.CounterVec
	changesStaged     prometheus.Counter
	exportAttempts    prometheus.Counter
	importDuration    prometheus.Histogram
}

// New registers a fresh set of collectors with reg.
// Use Default() in production; New with a private registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		objectsImported: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "objects_imported_total",
			Help:      "Total number of imported connected system objects processed.",
		}),
		changeOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_changes_total",
			Help:      "Attribute changes examined by reconciliation, by outcome.",
		}, []string{"outcome"}),
		exportsDeleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pending_exports_confirmed_total",
			Help:      "Pending exports deleted because every change was confirmed.",
		}),
		createTransitions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "create_to_update_transitions_total",
			Help:      "Create pending exports reclassified as updates.",
		}),
		driftDetected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drift_attributes_total",
			Help:      "Attributes found drifted from enforced export rules, by connected system.",
		}, []string{"connected_system"}),
		changesStaged: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "corrective_changes_staged_total",
			Help:      "Corrective attribute changes appended or reset by drift staging.",
		}),
		exportAttempts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_attempts_total",
			Help:      "Attribute changes marked exported pending confirmation.",
		}),
		importDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "import_pass_duration_seconds",
			Help:      "Duration of a full import pass.",
			Buckets: []float64{
				0.001, 0.005, 0.01, 0.05,
				0.1, 0.5, 1, 5, 10, 30,
			},
		}),
	}
}

var defaultMetrics = sync.OnceValue(func() *Metrics {
	return New(prometheus.DefaultRegisterer)
})

// Default returns the process-wide Metrics registered with the default registry.
func Default() *Metrics {
	return defaultMetrics()
}

func (m *Metrics) ObjectImported() {
	m.objectsImported.Inc()
}

// ChangeOutcome counts one reconciled change; outcome is "confirmed", "retry" or "failed".
func (m *Metrics) ChangeOutcome(outcome string) {
	m.changeOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ExportDeleted() {
	m.exportsDeleted.Inc()
}

func (m *Metrics) CreateTransitioned() {
	m.createTransitions.Inc()
}

func (m *Metrics) DriftDetected(connectedSystem string, attributes int) {
	m.driftDetected.WithLabelValues(connectedSystem).Add(float64(attributes))
}

func (m *Metrics) ChangesStaged(n int) {
	m.changesStaged.Add(float64(n))
}

func (m *Metrics) ExportAttempts(n int) {
	m.exportAttempts.Add(float64(n))
}

func (m *Metrics) ObserveImport(seconds float64) {
	m.importDuration.Observe(seconds)
}
