package metrics

import (
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/gc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// sweepMetrics is the Prometheus implementation of gc.Metrics.
type sweepMetrics struct {
	runs     *prometheus.CounterVec
	duration prometheus.Histogram
	deleted  prometheus.Counter
	failed   prometheus.Counter
	lastRun  prometheus.Gauge
}

// NewSweepMetrics creates a Prometheus-backed gc.Metrics.
//
// Returns nil if metrics are not enabled.
func NewSweepMetrics() gc.Metrics {
	if !IsEnabled() {
		return nil
	}
	return newSweepMetrics(GetRegistry())
}

func newSweepMetrics(reg prometheus.Registerer) *sweepMetrics {
	return &sweepMetrics{
		runs: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweeps_total",
				Help:      "Retention sweeps by status",
			},
			[]string{"status"},
		),
		duration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sweep_duration_seconds",
				Help:      "Duration of retention sweeps in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8),
			},
		),
		deleted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweep_deleted_entries_total",
				Help:      "Archive entries deleted by retention sweeps",
			},
		),
		failed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweep_failed_deletes_total",
				Help:      "Archive deletes that failed during retention sweeps",
			},
		),
		lastRun: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sweep_last_run_timestamp_seconds",
				Help:      "Unix time the last retention sweep ended",
			},
		),
	}
}

func (m *sweepMetrics) RecordSweep(stats *gc.Stats, err error) {
	status := "success"
	switch {
	case err != nil:
		status = "error"
	case stats.DryRun:
		status = "dry_run"
	}
	m.runs.WithLabelValues(status).Inc()
	m.duration.Observe(stats.Duration().Seconds())
	m.deleted.Add(float64(stats.DeletedCount))
	m.failed.Add(float64(stats.FailedCount))
	m.lastRun.Set(float64(stats.EndTime.Unix()))
}
