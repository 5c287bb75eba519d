package metrics

import (
	"time"

	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/snapshot"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// snapshotMetrics is the Prometheus implementation of snapshot.Metrics.
type snapshotMetrics struct {
	archives       *prometheus.CounterVec
	archivedBytes  *prometheus.CounterVec
	pruned         *prometheus.CounterVec
	restores       *prometheus.CounterVec
	restoreSeconds prometheus.Histogram
	statsCache     *prometheus.CounterVec
	statsSeconds   prometheus.Histogram
	statsEntries   prometheus.Gauge
}

// NewSnapshotMetrics creates a Prometheus-backed snapshot.Metrics.
//
// Returns nil if metrics are not enabled, which makes the coordinator, the
// aggregator and the stats cache use their no-op sink.
func NewSnapshotMetrics() snapshot.Metrics {
	if !IsEnabled() {
		return nil
	}
	return newSnapshotMetrics(GetRegistry())
}

func newSnapshotMetrics(reg prometheus.Registerer) *snapshotMetrics {
	return &snapshotMetrics{
		archives: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "archive_operations_total",
				Help:      "Archive decisions by save phase and outcome",
			},
			[]string{"phase", "outcome"},
		),
		archivedBytes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "archived_bytes_total",
				Help:      "Bytes copied into the archive by save phase",
			},
			[]string{"phase"},
		),
		pruned: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pruned_entries_total",
				Help:      "Archive entries deleted by retention, by reason",
			},
			[]string{"reason"},
		),
		restores: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "restores_total",
				Help:      "Restore operations by status",
			},
			[]string{"status"},
		),
		restoreSeconds: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "restore_duration_seconds",
				Help:      "Duration of restore operations in seconds",
				Buckets: []float64{
					0.01, // 10ms
					0.05, // 50ms
					0.1,  // 100ms
					0.5,  // 500ms
					1,    // 1s
					5,    // 5s
					30,   // 30s
				},
			},
		),
		statsCache: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stats_cache_requests_total",
				Help:      "Storage statistics requests by cache result",
			},
			[]string{"result"},
		),
		statsSeconds: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stats_compute_duration_seconds",
				Help:      "Duration of full archive scans for statistics",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
			},
		),
		statsEntries: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "archive_entries",
				Help:      "Archive entries seen by the last statistics scan",
			},
		),
	}
}

func (m *snapshotMetrics) RecordArchive(phase string, outcome snapshot.Outcome, bytes int64) {
	m.archives.WithLabelValues(phase, string(outcome)).Inc()
	if outcome == snapshot.OutcomeArchived && bytes > 0 {
		m.archivedBytes.WithLabelValues(phase).Add(float64(bytes))
	}
}

func (m *snapshotMetrics) RecordPrune(reason snapshot.DeletionReason, count int) {
	m.pruned.WithLabelValues(string(reason)).Add(float64(count))
}

func (m *snapshotMetrics) RecordRestore(success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	m.restores.WithLabelValues(status).Inc()
	m.restoreSeconds.Observe(duration.Seconds())
}

func (m *snapshotMetrics) RecordStatsCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.statsCache.WithLabelValues(result).Inc()
}

func (m *snapshotMetrics) RecordStatsCompute(duration time.Duration, entries int) {
	m.statsSeconds.Observe(duration.Seconds())
	m.statsEntries.Set(float64(entries))
}
