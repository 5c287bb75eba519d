package snapshot

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/blob/memory"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/media"
	mediamemory "github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/media/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Construction
// ============================================================================

func TestNewCoordinator_Validation(t *testing.T) {
	store := memory.NewMemoryStore()
	repo := mediamemory.NewMemoryRepository()

	_, err := NewCoordinator(nil, store, repo, Config{})
	assert.Error(t, err)
	_, err = NewCoordinator(store, nil, repo, Config{})
	assert.Error(t, err)
	_, err = NewCoordinator(store, store, nil, Config{})
	assert.Error(t, err)

	c, err := NewCoordinator(store, store, repo, Config{MediaRoot: "/assets/"})
	require.NoError(t, err)
	assert.Equal(t, "assets", c.MediaRoot())
	assert.NotNil(t, c.Directives())
}

func TestCoordinator_IsTracked(t *testing.T) {
	f := newFixture(t, Config{TrackedContentTypes: []string{"Image", "umbracoMediaVideo"}})

	assert.True(t, f.coord.IsTracked("image"))
	assert.True(t, f.coord.IsTracked("UMBRACOMEDIAVIDEO"))
	assert.False(t, f.coord.IsTracked("Folder"))

	all := newFixture(t, Config{})
	assert.True(t, all.coord.IsTracked("anything"))
}

// ============================================================================
// Save protocol
// ============================================================================

func TestArchive_FirstUploadArchivedAfterSave(t *testing.T) {
	f := newFixture(t, Config{})

	res := f.upload(0, "a1", "pic.png", []byte("hello"))

	assert.Equal(t, OutcomeSkipped, res.token.PreSave.Outcome)
	assert.Equal(t, "new item", res.token.PreSave.Reason)
	require.Equal(t, OutcomeArchived, res.complete.Outcome)
	assert.Equal(t, "a1/20240310_093000_pic.png", res.complete.ArchivePath)
	assert.Equal(t, int64(5), res.complete.Bytes)
	assert.Equal(t, []string{"a1/20240310_093000_pic.png"}, f.archiveKeys(""))

	props := f.archiveProps(res.complete.ArchivePath)
	uploader, _ := props.Metadata.Get(MetaUploaderName)
	assert.Equal(t, "editor", uploader)
	id, _ := props.Metadata.Get(MetaOriginalMediaID)
	assert.Equal(t, strconv.Itoa(res.rec.ID), id)
	uploaded, _ := props.Metadata.Get(MetaUploadDate)
	assert.Equal(t, f.clock.Now().Format(DateFormat), uploaded)
}

func TestArchive_UnchangedSaveIsDuplicate(t *testing.T) {
	f := newFixture(t, Config{})
	res := f.upload(0, "a1", "pic.png", []byte("hello"))
	f.clock.Advance(time.Minute)

	prev, err := f.records.Get(f.ctx, res.rec.ID)
	require.NoError(t, err)
	cur := prev.Clone()
	cur.Name = "renamed"

	token := f.coord.BeginArchive(f.ctx, SaveEvent{Previous: prev, Current: cur, FileDirty: false})
	assert.Equal(t, "file unchanged", token.PreSave.Reason)

	require.NoError(t, f.records.Save(f.ctx, cur))
	result := f.coord.CompleteArchive(f.ctx, token, cur)

	assert.Equal(t, OutcomeDuplicate, result.Outcome)
	assert.Len(t, f.archiveKeys(""), 1)
}

func TestArchive_PreSaveCapturesReplacedFile(t *testing.T) {
	f := newFixture(t, Config{})
	rec := f.seedItem("Image", "/media/s1/old.txt", "s1/old.txt", []byte("old content"))

	res := f.upload(rec.ID, "s1", "new.txt", []byte("new"))

	require.Equal(t, OutcomeArchived, res.token.PreSave.Outcome)
	assert.Equal(t, "s1/20240310_093000_old.txt", res.token.PreSave.ArchivePath)
	assert.Equal(t, OutcomeSkipped, res.complete.Outcome)
	assert.Equal(t, []string{"s1/20240310_093000_old.txt"}, f.archiveKeys("s1/"))

	props := f.archiveProps("s1/20240310_093000_old.txt")
	assert.Equal(t, int64(len("old content")), props.Size)
	uploadDate, _ := props.Metadata.Get(MetaUploadDate)
	assert.Equal(t, "2023-12-01T08:00:00Z", uploadDate, "upload date is carried over")
	uploader, _ := props.Metadata.Get(MetaUploaderName)
	assert.Equal(t, "seeder", uploader)
	snapshotDate, _ := props.Metadata.Get(MetaSnapshotDate)
	assert.Equal(t, f.clock.Now().Format(DateFormat), snapshotDate)
}

func TestArchive_SuppressedSkipsPreSave(t *testing.T) {
	f := newFixture(t, Config{})
	rec := f.seedItem("Image", "/media/s1/old.txt", "s1/old.txt", []byte("old"))

	f.coord.Directives().Suppress(rec.ID)
	res := f.upload(rec.ID, "s1", "new.txt", []byte("newer"))

	assert.Equal(t, "suppressed by restore", res.token.PreSave.Reason)
	assert.Equal(t, OutcomeArchived, res.complete.Outcome)
	assert.False(t, f.coord.Directives().ConsumeSuppressed(rec.ID))
	assert.Equal(t, []string{"s1/20240310_093000_new.txt"}, f.archiveKeys(""))
}

func TestArchive_SuppressedConsumedEvenWhenFileUnchanged(t *testing.T) {
	f := newFixture(t, Config{})
	rec := f.seedItem("Image", "/media/s1/old.txt", "s1/old.txt", []byte("old"))

	f.coord.Directives().Suppress(rec.ID)
	token := f.coord.BeginArchive(f.ctx, SaveEvent{Previous: rec, Current: rec.Clone(), FileDirty: false})

	assert.Equal(t, "suppressed by restore", token.PreSave.Reason)
	assert.False(t, f.coord.Directives().ConsumeSuppressed(rec.ID))
}

func TestArchive_MissingOldBlob(t *testing.T) {
	f := newFixture(t, Config{})
	rec := f.seedItem("Image", "/media/s1/old.txt", "s1/old.txt", []byte("old"))
	require.NoError(t, f.media.Delete(f.ctx, "s1/old.txt"))

	token := f.coord.BeginArchive(f.ctx, SaveEvent{Previous: rec, Current: rec.Clone(), FileDirty: true})

	assert.Equal(t, OutcomeMissing, token.PreSave.Outcome)
	assert.Empty(t, f.archiveKeys(""))
}

func TestArchive_UnrecognizedPath(t *testing.T) {
	f := newFixture(t, Config{})
	rec := f.seedItem("Image", "/media/flat.txt", "flat/flat.txt", []byte("x"))

	token := f.coord.BeginArchive(f.ctx, SaveEvent{Previous: rec, Current: rec.Clone(), FileDirty: true})
	assert.Equal(t, "unrecognized path", token.PreSave.Reason)

	result := f.coord.CompleteArchive(f.ctx, token, rec)
	assert.Equal(t, "unrecognized path", result.Reason)
}

func TestArchive_UntrackedContentType(t *testing.T) {
	f := newFixture(t, Config{TrackedContentTypes: []string{"File"}})

	res := f.upload(0, "a1", "pic.png", []byte("data"))

	assert.Equal(t, "untracked content type", res.token.PreSave.Reason)
	assert.Equal(t, "untracked content type", res.complete.Reason)
	assert.Empty(t, f.archiveKeys(""))
}

func TestArchive_NoFile(t *testing.T) {
	f := newFixture(t, Config{})
	rec := &media.Record{ContentTypeAlias: "Image"}
	require.NoError(t, f.records.Save(f.ctx, rec))

	result := f.coord.CompleteArchive(f.ctx, &ArchiveToken{}, rec)
	assert.Equal(t, "no file", result.Reason)

	token := f.coord.BeginArchive(f.ctx, SaveEvent{Current: nil})
	assert.Equal(t, OutcomeSkipped, token.PreSave.Outcome)
}

func TestArchive_RetentionAfterWrite(t *testing.T) {
	f := newFixture(t, Config{Retention: RetentionPolicy{MaxVersions: 2}})

	res := f.upload(0, "a1", "doc.pdf", []byte("1"))
	f.clock.Advance(time.Minute)
	f.upload(res.rec.ID, "a1", "doc.pdf", []byte("22"))
	f.clock.Advance(time.Minute)
	f.upload(res.rec.ID, "a1", "doc.pdf", []byte("333"))

	assert.Equal(t, []string{
		"a1/20240310_093100_doc.pdf",
		"a1/20240310_093200_doc.pdf",
	}, f.archiveKeys("a1/"))
}

func TestArchive_RetentionKeepsPinned(t *testing.T) {
	f := newFixture(t, Config{Retention: RetentionPolicy{MaxVersions: 1}})

	res := f.upload(0, "a1", "doc.pdf", []byte("1"))
	require.NoError(t, f.coord.SetPinned(f.ctx, res.complete.ArchivePath, true))
	f.clock.Advance(time.Minute)
	f.upload(res.rec.ID, "a1", "doc.pdf", []byte("22"))
	f.clock.Advance(time.Minute)
	f.upload(res.rec.ID, "a1", "doc.pdf", []byte("333"))

	assert.Equal(t, []string{
		"a1/20240310_093000_doc.pdf",
		"a1/20240310_093200_doc.pdf",
	}, f.archiveKeys("a1/"))
}

func TestArchive_RetentionByAge(t *testing.T) {
	f := newFixture(t, Config{Retention: RetentionPolicy{MaxAgeDays: 7}})

	res := f.upload(0, "a1", "doc.pdf", []byte("1"))
	f.clock.Advance(8 * 24 * time.Hour)
	f.upload(res.rec.ID, "a1", "doc.pdf", []byte("22"))

	assert.Equal(t, []string{"a1/20240318_093000_doc.pdf"}, f.archiveKeys("a1/"))
}

func TestArchive_StorageFailureDoesNotPropagate(t *testing.T) {
	f := newFixture(t, Config{})
	f.archive.FailNext("write", "", errors.New("archive offline"))

	res := f.upload(0, "a1", "pic.png", []byte("data"))

	assert.Equal(t, OutcomeFailed, res.complete.Outcome)
	assert.Equal(t, "archive offline", res.complete.Reason)
	assert.Equal(t, []byte("data"), f.readLive("a1/pic.png"), "live write is unaffected")
	assert.Empty(t, f.archiveKeys(""))
}

func TestArchive_PropertiesFailure(t *testing.T) {
	f := newFixture(t, Config{})
	rec := f.seedItem("Image", "/media/s1/old.txt", "s1/old.txt", []byte("old"))
	f.media.FailNext("properties", "s1/old.txt", errors.New("throttled"))

	token := f.coord.BeginArchive(f.ctx, SaveEvent{Previous: rec, Current: rec.Clone(), FileDirty: true})

	assert.Equal(t, OutcomeFailed, token.PreSave.Outcome)
}

func TestArchive_SourceRetry(t *testing.T) {
	f := newFixture(t, Config{SourceRetry: RetryPolicy{Attempts: 2}})
	f.media.FailNext("properties", "a1/pic.png", errors.New("not visible yet"))

	res := f.upload(0, "a1", "pic.png", []byte("data"))

	assert.Equal(t, OutcomeArchived, res.complete.Outcome)
}

func TestArchive_ForceSnapshotBypassesDuplicate(t *testing.T) {
	f := newFixture(t, Config{})
	res := f.upload(0, "a1", "pic.png", []byte("hello"))
	f.clock.Advance(time.Minute)

	f.coord.Directives().ForceSnapshot(res.rec.ID)
	result := f.coord.CompleteArchive(f.ctx, &ArchiveToken{}, res.rec)

	assert.Equal(t, OutcomeArchived, result.Outcome)
	assert.Len(t, f.archiveKeys(""), 2)
	assert.False(t, f.coord.Directives().ConsumeForceSnapshot(res.rec.ID))
}

func TestArchive_RecordsMetrics(t *testing.T) {
	f := newFixture(t, Config{})
	m := newRecordingMetrics()
	coord, err := NewCoordinator(f.media, f.archive, f.records, Config{Retention: RetentionPolicy{MaxVersions: 1}},
		WithClock(f.clock.Now), WithMetrics(m))
	require.NoError(t, err)
	f.coord = coord

	res := f.upload(0, "a1", "pic.png", []byte("a"))
	f.clock.Advance(time.Minute)
	f.upload(res.rec.ID, "a1", "pic.png", []byte("bb"))

	assert.Equal(t, 2, m.archives[PhasePreSave+":"+string(OutcomeSkipped)]+m.archives[PhasePreSave+":"+string(OutcomeDuplicate)])
	assert.Equal(t, 2, m.archives[PhasePostSave+":"+string(OutcomeArchived)])
	assert.Equal(t, 1, m.pruned[ReasonOverLimit])
}

// ============================================================================
// Retention runs
// ============================================================================

func TestPruneFolder(t *testing.T) {
	f := newFixture(t, Config{Retention: RetentionPolicy{MaxVersions: 1}})
	f.writeArchive("a1/20240101_000000_x.jpg", 1, nil)
	f.writeArchive("a1/20240102_000000_x.jpg", 1, nil)
	f.writeArchive("a1/20240103_000000_x.jpg", 1, nil)

	dry, err := f.coord.PruneFolder(f.ctx, "a1", PruneOptions{DryRun: true})
	require.NoError(t, err)
	assert.Len(t, dry.Selected, 2)
	assert.Zero(t, dry.Deleted)
	assert.Len(t, f.archiveKeys(""), 3)

	calls := 0
	res, err := f.coord.PruneFolder(f.ctx, "a1", PruneOptions{
		BeforeDelete: func(context.Context) error {
			calls++
			return nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Deleted)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []string{"a1/20240103_000000_x.jpg"}, f.archiveKeys(""))
}

func TestPruneFolder_BeforeDeleteStopsRun(t *testing.T) {
	f := newFixture(t, Config{Retention: RetentionPolicy{MaxVersions: 1}})
	f.writeArchive("a1/20240101_000000_x.jpg", 1, nil)
	f.writeArchive("a1/20240102_000000_x.jpg", 1, nil)

	stop := errors.New("rate limited")
	res, err := f.coord.PruneFolder(f.ctx, "a1", PruneOptions{
		BeforeDelete: func(context.Context) error { return stop },
	})

	assert.ErrorIs(t, err, stop)
	assert.Zero(t, res.Deleted)
	assert.Len(t, f.archiveKeys(""), 2)
}

func TestPruneFolder_DeleteFailureCounted(t *testing.T) {
	f := newFixture(t, Config{Retention: RetentionPolicy{MaxVersions: 1}})
	f.writeArchive("a1/20240101_000000_x.jpg", 1, nil)
	f.writeArchive("a1/20240102_000000_x.jpg", 1, nil)
	f.archive.FailNext("delete", "a1/20240101_000000_x.jpg", errors.New("locked"))

	res, err := f.coord.PruneFolder(f.ctx, "a1", PruneOptions{})

	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Zero(t, res.Deleted)
}

func TestPruneFolder_Disabled(t *testing.T) {
	f := newFixture(t, Config{})
	f.writeArchive("a1/20240101_000000_x.jpg", 1, nil)

	res, err := f.coord.PruneFolder(f.ctx, "a1", PruneOptions{})
	require.NoError(t, err)
	assert.Empty(t, res.Selected)
}

func TestScanFolders(t *testing.T) {
	f := newFixture(t, Config{})
	f.writeArchive("a1/20240101_000000_x.jpg", 1, nil)
	f.writeArchive("a1/20240102_000000_x.jpg", 1, nil)
	f.writeArchive("b2/20240101_000000_y.pdf", 1, nil)

	folders, err := f.coord.ScanFolders(f.ctx)
	require.NoError(t, err)

	assert.Len(t, folders, 2)
	assert.Len(t, folders["a1"], 2)
	assert.Len(t, folders["b2"], 1)
	assert.Equal(t, "y.pdf", folders["b2"][0].OriginalFilename)
}

func TestListFolder_IgnoresPrefixSiblings(t *testing.T) {
	f := newFixture(t, Config{})
	f.writeArchive("a1/20240101_000000_x.jpg", 1, nil)
	f.writeArchive("a1/nested/20240101_000000_z.jpg", 1, nil)
	f.writeArchive("a10/20240101_000000_y.jpg", 1, nil)

	entries, err := f.coord.listFolder(f.ctx, "a1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a1/20240101_000000_x.jpg", entries[0].Path())
}
