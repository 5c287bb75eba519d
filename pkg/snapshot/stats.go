package snapshot

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/blob"
)

// ============================================================================
// Categories
// ============================================================================

// Category groups archive entries by file type.
type Category string

const (
	CategoryImage    Category = "Image"
	CategoryVideo    Category = "Video"
	CategoryAudio    Category = "Audio"
	CategoryDocument Category = "Document"
	CategoryOther    Category = "Other"
)

var categoryByExtension = map[string]Category{
	".jpg": CategoryImage, ".jpeg": CategoryImage, ".png": CategoryImage,
	".gif": CategoryImage, ".webp": CategoryImage, ".bmp": CategoryImage,
	".tif": CategoryImage, ".tiff": CategoryImage, ".svg": CategoryImage,
	".ico": CategoryImage, ".avif": CategoryImage, ".heic": CategoryImage,

	".mp4": CategoryVideo, ".mov": CategoryVideo, ".avi": CategoryVideo,
	".wmv": CategoryVideo, ".webm": CategoryVideo, ".mkv": CategoryVideo,
	".m4v": CategoryVideo,

	".mp3": CategoryAudio, ".wav": CategoryAudio, ".ogg": CategoryAudio,
	".flac": CategoryAudio, ".aac": CategoryAudio, ".m4a": CategoryAudio,
	".wma": CategoryAudio,

	".pdf": CategoryDocument, ".doc": CategoryDocument, ".docx": CategoryDocument,
	".xls": CategoryDocument, ".xlsx": CategoryDocument, ".ppt": CategoryDocument,
	".pptx": CategoryDocument, ".txt": CategoryDocument, ".csv": CategoryDocument,
	".rtf": CategoryDocument, ".odt": CategoryDocument, ".ods": CategoryDocument,
	".md": CategoryDocument,
}

// CategoryOf classifies a filename by extension.
func CategoryOf(filename string) Category {
	if c, ok := categoryByExtension[strings.ToLower(path.Ext(filename))]; ok {
		return c
	}
	return CategoryOther
}

// ============================================================================
// Storage Statistics
// ============================================================================

// FolderStats rolls up one media item's archive.
type FolderStats struct {
	Count     int       `json:"count"`
	SizeBytes int64     `json:"size_bytes"`
	Latest    time.Time `json:"latest"`
	Oldest    time.Time `json:"oldest"`
}

// DayBucket counts entries created on one UTC calendar day.
type DayBucket struct {
	Day       time.Time `json:"day"`
	Count     int       `json:"count"`
	SizeBytes int64     `json:"size_bytes"`
}

// CategoryBucket counts entries of one Category.
type CategoryBucket struct {
	Count     int   `json:"count"`
	SizeBytes int64 `json:"size_bytes"`
}

// StorageStats is the aggregate view of the whole archive.
type StorageStats struct {
	TotalSnapshotCount int                          `json:"total_snapshot_count"`
	TotalSizeBytes     int64                        `json:"total_size_bytes"`
	MediaItemCount     int                          `json:"media_item_count"`
	Folders            map[string]*FolderStats      `json:"folders"`
	Days               []DayBucket                  `json:"days"`
	Categories         map[Category]*CategoryBucket `json:"categories"`
	ComputedAt         time.Time                    `json:"computed_at"`
}

// Summary returns a one-line description for logs and the CLI.
func (s *StorageStats) Summary() string {
	return fmt.Sprintf("snapshots=%d size=%d media_items=%d days=%d",
		s.TotalSnapshotCount, s.TotalSizeBytes, s.MediaItemCount, len(s.Days))
}

// Aggregator computes StorageStats with one pass over the archive.
type Aggregator struct {
	archive blob.Store
	metrics Metrics
	now     func() time.Time
}

// NewAggregator creates an aggregator over the archive container.
func NewAggregator(archive blob.Store, m Metrics) *Aggregator {
	return &Aggregator{archive: archive, metrics: metricsOrNoop(m), now: time.Now}
}

func archivedAt(p blob.Properties, name string) time.Time {
	if !p.CreatedOn.IsZero() {
		return p.CreatedOn.UTC()
	}
	if ts, ok := ParseArchiveTimestamp(name); ok {
		return ts
	}
	return p.LastModified.UTC()
}

// Compute streams every archive blob once. Memory is bounded by the number
// of folders, days and categories, not by the number of entries.
//
// Entries are dated by the blob creation time. Backends without one fall back
// to the timestamp in the archive name, then to the last modified time, which
// metadata updates reset on some backends.
func (a *Aggregator) Compute(ctx context.Context) (*StorageStats, error) {
	start := time.Now()

	stats := &StorageStats{
		Folders:    make(map[string]*FolderStats),
		Categories: make(map[Category]*CategoryBucket),
	}
	days := make(map[time.Time]*DayBucket)

	err := a.archive.Walk(ctx, "", blob.WalkOptions{}, func(p blob.Properties) error {
		folder, name := SplitArchivePath(p.Key)
		created := archivedAt(p, name)

		stats.TotalSnapshotCount++
		stats.TotalSizeBytes += p.Size

		fs, ok := stats.Folders[folder]
		if !ok {
			fs = &FolderStats{Latest: created, Oldest: created}
			stats.Folders[folder] = fs
		}
		fs.Count++
		fs.SizeBytes += p.Size
		if created.After(fs.Latest) {
			fs.Latest = created
		}
		if created.Before(fs.Oldest) {
			fs.Oldest = created
		}

		day := time.Date(created.Year(), created.Month(), created.Day(), 0, 0, 0, 0, time.UTC)
		db, ok := days[day]
		if !ok {
			db = &DayBucket{Day: day}
			days[day] = db
		}
		db.Count++
		db.SizeBytes += p.Size

		cat := CategoryOf(DecodeOriginalName(name))
		cb, ok := stats.Categories[cat]
		if !ok {
			cb = &CategoryBucket{}
			stats.Categories[cat] = cb
		}
		cb.Count++
		cb.SizeBytes += p.Size

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan archive: %w", err)
	}

	stats.MediaItemCount = len(stats.Folders)
	stats.Days = make([]DayBucket, 0, len(days))
	for _, db := range days {
		stats.Days = append(stats.Days, *db)
	}
	sort.Slice(stats.Days, func(i, j int) bool {
		return stats.Days[i].Day.Before(stats.Days[j].Day)
	})
	stats.ComputedAt = a.now().UTC()

	a.metrics.RecordStatsCompute(time.Since(start), stats.TotalSnapshotCount)

	return stats, nil
}
