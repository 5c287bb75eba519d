package snapshot

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/blob"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/blob/memory"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/media"
	mediamemory "github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/media/memory"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fixture wires a Coordinator to memory stores and acts as the host.
type fixture struct {
	t       *testing.T
	ctx     context.Context
	clock   *fakeClock
	media   *memory.MemoryStore
	archive *memory.MemoryStore
	records *mediamemory.MemoryRepository
	cache   *StatsCache
	coord   *Coordinator

	persistErr error
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	clock := newFakeClock()
	f := &fixture{
		t:       t,
		ctx:     context.Background(),
		clock:   clock,
		media:   memory.NewMemoryStore(memory.WithClock(clock.Now)),
		archive: memory.NewMemoryStore(memory.WithClock(clock.Now)),
		records: mediamemory.NewMemoryRepository(),
	}

	if cfg.SourceRetry.Attempts == 0 {
		cfg.SourceRetry = RetryPolicy{Attempts: 1}
	}

	f.cache = NewStatsCache(NewAggregator(f.archive, nil), NewMemorySlot(time.Minute), nil)

	coord, err := NewCoordinator(f.media, f.archive, f.records, cfg,
		WithClock(clock.Now),
		WithInvalidator(f.cache),
	)
	require.NoError(t, err)
	coord.SetPersister(f)
	f.coord = coord

	return f
}

// Persist runs the host save pipeline for a record whose blob is already in
// place.
func (f *fixture) Persist(ctx context.Context, rec *media.Record) error {
	if f.persistErr != nil {
		return f.persistErr
	}

	prev, err := f.records.Get(ctx, rec.ID)
	if err != nil && !errors.Is(err, media.ErrNotFound) {
		return err
	}

	dirty := prev == nil || prev.File != rec.File
	token := f.coord.BeginArchive(ctx, SaveEvent{Previous: prev, Current: rec, FileDirty: dirty})
	if err := f.records.Save(ctx, rec); err != nil {
		return err
	}
	f.coord.CompleteArchive(ctx, token, rec)
	return nil
}

// saveResult captures both phases of an upload.
type saveResult struct {
	rec      *media.Record
	token    *ArchiveToken
	complete ArchiveResult
}

// upload emulates a host save that replaces the item's file with new content.
// id 0 creates a new item in folder.
func (f *fixture) upload(id int, folder, filename string, data []byte) saveResult {
	f.t.Helper()

	var prev *media.Record
	cur := &media.Record{ContentTypeAlias: "Image", UploaderName: "editor"}
	if id > 0 {
		p, err := f.records.Get(f.ctx, id)
		require.NoError(f.t, err)
		prev = p
		cur = p.Clone()
	}

	token := f.coord.BeginArchive(f.ctx, SaveEvent{Previous: prev, Current: cur, FileDirty: true})

	key := folder + "/" + filename
	f.writeLive(key, data, blob.Metadata{
		MetaUploaderName: "editor",
		MetaUploadDate:   f.clock.Now().Format(DateFormat),
	})
	if prev != nil {
		if oldPath, ok := ExtractRawPath(prev.File); ok {
			if oldKey, ok := BlobKeyOfPath(oldPath, DefaultMediaRoot); ok && oldKey != key {
				require.NoError(f.t, f.media.Delete(f.ctx, oldKey))
			}
		}
	}

	ref, ok := ParseFileRef(cur.File)
	newPath := StoragePath(DefaultMediaRoot, folder, filename)
	if ok {
		cur.File = ref.WithPath(newPath).String()
	} else {
		cur.File = newPath
	}
	cur.Bytes = int64(len(data))
	require.NoError(f.t, f.records.Save(f.ctx, cur))

	res := f.coord.CompleteArchive(f.ctx, token, cur)
	return saveResult{rec: cur, token: token, complete: res}
}

// seedItem stores a record and its live blob without going through the save
// protocol, so the archive starts empty.
func (f *fixture) seedItem(alias, file, key string, data []byte) *media.Record {
	f.t.Helper()
	f.writeLive(key, data, blob.Metadata{
		MetaUploaderName: "seeder",
		MetaUploadDate:   "2023-12-01T08:00:00Z",
	})
	rec := &media.Record{ContentTypeAlias: alias, File: file, Bytes: int64(len(data)), UploaderName: "seeder"}
	require.NoError(f.t, f.records.Save(f.ctx, rec))
	return rec
}

func (f *fixture) writeLive(key string, data []byte, md blob.Metadata) {
	f.t.Helper()
	require.NoError(f.t, f.media.Write(f.ctx, key, bytes.NewReader(data), blob.WriteOptions{
		ContentType: "application/octet-stream",
		Metadata:    md,
	}))
}

func (f *fixture) writeArchive(path string, size int, md blob.Metadata) {
	f.t.Helper()
	require.NoError(f.t, f.archive.Write(f.ctx, path, bytes.NewReader(make([]byte, size)), blob.WriteOptions{
		Metadata: md,
	}))
}

func (f *fixture) archiveKeys(prefix string) []string {
	f.t.Helper()
	var keys []string
	require.NoError(f.t, f.archive.Walk(f.ctx, prefix, blob.WalkOptions{}, func(p blob.Properties) error {
		keys = append(keys, p.Key)
		return nil
	}))
	return keys
}

func (f *fixture) readLive(key string) []byte {
	f.t.Helper()
	r, err := f.media.Read(f.ctx, key)
	require.NoError(f.t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(f.t, err)
	return data
}

func (f *fixture) archiveProps(path string) *blob.Properties {
	f.t.Helper()
	props, err := f.archive.Properties(f.ctx, path)
	require.NoError(f.t, err)
	return props
}

// entryAt builds an Entry for pure-function tests.
func entryAt(folder, filename string, ts time.Time, size int64, pinned bool) Entry {
	md := blob.Metadata{}
	if pinned {
		md[MetaPinned] = "true"
	}
	return EntryFromProperties(blob.Properties{
		Key:          EncodeArchivePath(folder, filename, ts),
		Size:         size,
		LastModified: ts,
		Metadata:     md,
	})
}

// recordingMetrics counts calls for assertions.
type recordingMetrics struct {
	mu        sync.Mutex
	archives  map[string]int
	pruned    map[DeletionReason]int
	restores  []bool
	cacheHits int
	cacheMiss int
	computes  int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{archives: map[string]int{}, pruned: map[DeletionReason]int{}}
}

func (m *recordingMetrics) RecordArchive(phase string, outcome Outcome, _ int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.archives[phase+":"+string(outcome)]++
}

func (m *recordingMetrics) RecordPrune(reason DeletionReason, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruned[reason] += count
}

func (m *recordingMetrics) RecordRestore(success bool, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restores = append(m.restores, success)
}

func (m *recordingMetrics) RecordStatsCache(hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.cacheHits++
	} else {
		m.cacheMiss++
	}
}

func (m *recordingMetrics) RecordStatsCompute(time.Duration, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.computes++
}
