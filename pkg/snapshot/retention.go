package snapshot

import "time"

// DeletionReason explains why retention selected an entry.
type DeletionReason string

const (
	// ReasonExpired means the entry is older than the age cutoff.
	ReasonExpired DeletionReason = "expired"

	// ReasonOverLimit means the entry ranks beyond the version count limit.
	ReasonOverLimit DeletionReason = "over limit"
)

// Deletion is an entry selected by retention.
type Deletion struct {
	Entry  Entry
	Reason DeletionReason
}

// RetentionPolicy holds the per-folder limits.
type RetentionPolicy struct {
	// MaxVersions keeps at most this many entries per folder. 0 disables.
	MaxVersions int

	// MaxAgeDays drops entries older than this many days. 0 or less disables.
	MaxAgeDays int
}

// Enabled reports whether any limit is active.
func (p RetentionPolicy) Enabled() bool {
	return p.MaxVersions > 0 || p.MaxAgeDays > 0
}

// Cutoff returns the age limit relative to now, or the zero time when the
// age limit is disabled.
func (p RetentionPolicy) Cutoff(now time.Time) time.Time {
	if p.MaxAgeDays <= 0 {
		return time.Time{}
	}
	return now.UTC().AddDate(0, 0, -p.MaxAgeDays)
}

// Select applies the policy to one folder's entries.
func (p RetentionPolicy) Select(entries []Entry, now time.Time) []Deletion {
	return SelectForDeletion(entries, p.MaxVersions, p.Cutoff(now))
}

// SelectForDeletion returns the entries to delete, most recent first.
//
// Entries are ranked newest first. An entry is selected when its rank is at
// least maxCount (maxCount > 0) or its timestamp is before cutoff (non-zero
// cutoff). Pinned entries are then dropped from the selection; they still
// occupy a rank. The reason is "expired" whenever the age rule applies.
func SelectForDeletion(entries []Entry, maxCount int, cutoff time.Time) []Deletion {
	var selected []Deletion

	for rank, e := range SortNewestFirst(entries) {
		expired := !cutoff.IsZero() && e.Timestamp.Before(cutoff)
		overLimit := maxCount > 0 && rank >= maxCount
		if !expired && !overLimit {
			continue
		}
		if e.Pinned() {
			continue
		}

		reason := ReasonOverLimit
		if expired {
			reason = ReasonExpired
		}
		selected = append(selected, Deletion{Entry: e, Reason: reason})
	}

	return selected
}
