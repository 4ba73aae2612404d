package sync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the sync engine's Prometheus series.
type Metrics struct {
	RunsTotal    *prometheus.CounterVec
	RecordsTotal *prometheus.CounterVec
	RunDuration  *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voxlane",
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Sync runs finalized, by provider and final status.",
		}, []string{"provider", "status"}),
		RecordsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voxlane",
			Subsystem: "sync",
			Name:      "records_total",
			Help:      "Records reconciled, by provider and outcome.",
		}, []string{"provider", "outcome"}),
		RunDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "voxlane",
			Subsystem: "sync",
			Name:      "run_duration_seconds",
			Help:      "Wall time of finalized sync runs.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"provider"}),
	}
}

func (m *Metrics) observeRun(provider string, run *SyncRun) {
	m.RunsTotal.WithLabelValues(provider, string(run.Status)).Inc()
	m.RecordsTotal.WithLabelValues(provider, "created").Add(float64(run.RecordsCreated))
	m.RecordsTotal.WithLabelValues(provider, "updated").Add(float64(run.RecordsUpdated))
	m.RecordsTotal.WithLabelValues(provider, "skipped").Add(float64(run.RecordsSkipped))
	if run.CompletedAt != nil {
		m.RunDuration.WithLabelValues(provider).Observe(run.CompletedAt.Sub(run.StartedAt).Seconds())
	}
}
