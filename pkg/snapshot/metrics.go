package snapshot

import "time"

// Archive phases reported to Metrics.
const (
	PhasePreSave  = "pre_save"
	PhasePostSave = "post_save"
)

// Metrics receives engine observations. A nil Metrics is replaced by a no-op
// implementation, so callers can pass nil when metrics are disabled.
type Metrics interface {
	// RecordArchive counts one archive decision for a save phase.
	RecordArchive(phase string, outcome Outcome, bytes int64)

	// RecordPrune counts entries deleted by retention.
	RecordPrune(reason DeletionReason, count int)

	// RecordRestore observes one restore attempt.
	RecordRestore(success bool, duration time.Duration)

	// RecordStatsCache counts a stats cache lookup.
	RecordStatsCache(hit bool)

	// RecordStatsCompute observes one full archive scan.
	RecordStatsCompute(duration time.Duration, entries int)
}

type noopMetrics struct{}

func (noopMetrics) RecordArchive(string, Outcome, int64)  {}
func (noopMetrics) RecordPrune(DeletionReason, int)       {}
func (noopMetrics) RecordRestore(bool, time.Duration)     {}
func (noopMetrics) RecordStatsCache(bool)                 {}
func (noopMetrics) RecordStatsCompute(time.Duration, int) {}

func metricsOrNoop(m Metrics) Metrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}
