package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/blob"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/blob/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryOf(t *testing.T) {
	tests := map[string]Category{
		"photo.JPG":  CategoryImage,
		"logo.svg":   CategoryImage,
		"clip.mp4":   CategoryVideo,
		"song.mp3":   CategoryAudio,
		"report.pdf": CategoryDocument,
		"data.csv":   CategoryDocument,
		"archive.7z": CategoryOther,
		"README":     CategoryOther,
	}

	for name, want := range tests {
		assert.Equal(t, want, CategoryOf(name), name)
	}
}

func TestAggregator_Compute(t *testing.T) {
	f := newFixture(t, Config{})

	f.writeArchive("A/20240310_093000_a.jpg", 10, nil)
	f.clock.Advance(time.Hour)
	f.writeArchive("A/20240310_103000_a.jpg", 20, nil)
	f.clock.Advance(24 * time.Hour)
	f.writeArchive("A/20240311_103000_notes.pdf", 30, nil)
	f.writeArchive("B/20240311_103000_b.mp3", 5, nil)

	stats, err := NewAggregator(f.archive, nil).Compute(f.ctx)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.TotalSnapshotCount)
	assert.Equal(t, int64(65), stats.TotalSizeBytes)
	assert.Equal(t, 2, stats.MediaItemCount)

	require.Contains(t, stats.Folders, "A")
	a := stats.Folders["A"]
	assert.Equal(t, 3, a.Count)
	assert.Equal(t, int64(60), a.SizeBytes)
	assert.Equal(t, time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC), a.Oldest)
	assert.Equal(t, time.Date(2024, 3, 11, 10, 30, 0, 0, time.UTC), a.Latest)
	assert.Equal(t, int64(5), stats.Folders["B"].SizeBytes)

	require.Len(t, stats.Days, 2)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), stats.Days[0].Day)
	assert.Equal(t, 2, stats.Days[0].Count)
	assert.Equal(t, int64(30), stats.Days[0].SizeBytes)
	assert.Equal(t, 2, stats.Days[1].Count)
	assert.Equal(t, int64(35), stats.Days[1].SizeBytes)

	assert.Equal(t, &CategoryBucket{Count: 2, SizeBytes: 30}, stats.Categories[CategoryImage])
	assert.Equal(t, &CategoryBucket{Count: 1, SizeBytes: 30}, stats.Categories[CategoryDocument])
	assert.Equal(t, &CategoryBucket{Count: 1, SizeBytes: 5}, stats.Categories[CategoryAudio])
	assert.NotContains(t, stats.Categories, CategoryVideo)

	assert.Contains(t, stats.Summary(), "snapshots=4")
}

func TestAggregator_EmptyArchive(t *testing.T) {
	stats, err := NewAggregator(memory.NewMemoryStore(), nil).Compute(context.Background())
	require.NoError(t, err)

	assert.Zero(t, stats.TotalSnapshotCount)
	assert.Zero(t, stats.MediaItemCount)
	assert.Empty(t, stats.Days)
}

func TestAggregator_WalkError(t *testing.T) {
	store := memory.NewMemoryStore()
	store.FailNext("walk", "", assert.AnError)

	_, err := NewAggregator(store, nil).Compute(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
}

func TestAggregator_RecordsMetrics(t *testing.T) {
	f := newFixture(t, Config{})
	f.writeArchive("A/20240310_093000_a.jpg", 1, nil)
	m := newRecordingMetrics()

	_, err := NewAggregator(f.archive, m).Compute(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, m.computes)
}

// noCreationTime hides CreatedOn the way the S3 backend does.
type noCreationTime struct {
	blob.Store
}

func (s noCreationTime) Walk(ctx context.Context, prefix string, opts blob.WalkOptions, fn func(blob.Properties) error) error {
	return s.Store.Walk(ctx, prefix, opts, func(p blob.Properties) error {
		p.CreatedOn = time.Time{}
		return fn(p)
	})
}

func TestAggregator_DatesFromArchiveNameWithoutCreationTime(t *testing.T) {
	f := newFixture(t, Config{})
	res := f.upload(0, "a1", "pic.png", []byte("hello"))
	require.Equal(t, OutcomeArchived, res.complete.Outcome)

	f.clock.Advance(30 * 24 * time.Hour)
	require.NoError(t, f.coord.SetPinned(f.ctx, res.complete.ArchivePath, true))

	stats, err := NewAggregator(noCreationTime{f.archive}, nil).Compute(f.ctx)
	require.NoError(t, err)

	archived := time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)
	require.Contains(t, stats.Folders, "a1")
	assert.Equal(t, archived, stats.Folders["a1"].Oldest)
	assert.Equal(t, archived, stats.Folders["a1"].Latest)

	require.Len(t, stats.Days, 1)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), stats.Days[0].Day)
	assert.Equal(t, 1, stats.Days[0].Count)
}
