// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncPasses counts reconciliation passes.
	// Labels: result (ok, error)
	SyncPasses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "folio",
		Subsystem: "sync",
		Name:      "passes_total",
		Help:      "Total reconciliation passes",
	}, []string{"result"})

	// SyncNotes counts note records touched by reconciliation.
	// Labels: change (created, updated, deleted)
	SyncNotes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "folio",
		Subsystem: "sync",
		Name:      "notes_total",
		Help:      "Note records changed by reconciliation",
	}, []string{"change"})

	// SyncDuration measures a full reconciliation pass.
	SyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "folio",
		Subsystem: "sync",
		Name:      "duration_seconds",
		Help:      "Reconciliation pass duration in seconds",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	// WatchEvents counts debounced filesystem events emitted by watchers.
	// Labels: kind (created, updated, deleted)
	WatchEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "folio",
		Subsystem: "watch",
		Name:      "events_total",
		Help:      "Debounced filesystem events emitted",
	}, []string{"kind"})
)

// RecordSync records the outcome of one pass.
func RecordSync(seconds float64, created, updated, deleted int, err error) {
	if err != nil {
		SyncPasses.WithLabelValues("error").Inc()
	} else {
		SyncPasses.WithLabelValues("ok").Inc()
	}
	SyncDuration.Observe(seconds)
	SyncNotes.WithLabelValues("created").Add(float64(created))
	SyncNotes.WithLabelValues("updated").Add(float64(updated))
	SyncNotes.WithLabelValues("deleted").Add(float64(deleted))
}
