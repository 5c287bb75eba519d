// Package snapshot implements media file versioning: archiving outgoing file
// content before it is overwritten, pruning the archive under count, age and
// pin rules, restoring archived versions, and aggregating archive statistics.
//
// The live files sit in a media container and archived copies in a separate
// archive container, both reached through blob.Store. Archive entries are named
// "<folder>/<YYYYMMDD>_<HHMMSS>_<original-filename>", where folder is the
// per-item segment of the media path.
//
// A host save runs as a two-step protocol:
//
//	token := coord.BeginArchive(ctx, event)   // before the new value is persisted
//	... host writes the blob and persists the record ...
//	coord.CompleteArchive(ctx, token, record) // after it is persisted
//
// Neither step returns errors: a failed snapshot is logged and never blocks
// the save. Restore and the reporting operations do return errors.
package snapshot

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pauldequant/umbraco-media-snapshot-sub000/internal/logger"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/blob"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/media"
)

// ============================================================================
// Configuration
// ============================================================================

// DefaultMediaRoot is the leading path segment of media file paths.
const DefaultMediaRoot = "media"

// DefaultTrackedContentTypes are the media types versioned by default.
var DefaultTrackedContentTypes = []string{
	"Image",
	"File",
	"umbracoMediaVectorGraphics",
	"umbracoMediaVideo",
	"umbracoMediaAudio",
	"umbracoMediaArticle",
}

// Config configures a Coordinator.
type Config struct {
	// MediaRoot is the root segment stripped from paths ("media").
	MediaRoot string

	// TrackedContentTypes lists the content type aliases that are versioned,
	// compared case-insensitively. Empty tracks every type.
	TrackedContentTypes []string

	// Retention is applied to a folder after every archive write.
	Retention RetentionPolicy

	// SourceRetry governs opening the source blob in CompleteArchive.
	SourceRetry RetryPolicy
}

// Persister saves a media record through the host's normal save pipeline,
// which calls back into BeginArchive and CompleteArchive.
type Persister interface {
	Persist(ctx context.Context, rec *media.Record) error
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithDirectives shares a restore directive registry.
func WithDirectives(d *Directives) Option {
	return func(c *Coordinator) { c.directives = d }
}

// WithInvalidator registers the stats cache to invalidate on changes.
func WithInvalidator(inv Invalidator) Option {
	return func(c *Coordinator) { c.invalidator = inv }
}

// WithMetrics sets the metrics sink. nil keeps the no-op sink.
func WithMetrics(m Metrics) Option {
	return func(c *Coordinator) { c.metrics = metricsOrNoop(m) }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// ============================================================================
// Coordinator
// ============================================================================

// Coordinator runs the archive, retention, restore and reporting operations.
//
// Thread Safety:
// Safe for concurrent use. Archive writes and retention for one folder are
// serialized inside the process; different folders proceed in parallel.
type Coordinator struct {
	media   blob.Store
	archive blob.Store
	records media.Repository

	persister   Persister
	directives  *Directives
	invalidator Invalidator
	metrics     Metrics
	locks       *folderLocks
	now         func() time.Time

	mediaRoot string
	tracked   map[string]struct{}
	retention RetentionPolicy
	retry     RetryPolicy
}

// NewCoordinator creates a coordinator over the live media container, the
// archive container and the host's record repository.
func NewCoordinator(mediaStore, archiveStore blob.Store, records media.Repository, cfg Config, opts ...Option) (*Coordinator, error) {
	if mediaStore == nil || archiveStore == nil {
		return nil, fmt.Errorf("media and archive stores are required")
	}
	if records == nil {
		return nil, fmt.Errorf("media repository is required")
	}

	if cfg.MediaRoot == "" {
		cfg.MediaRoot = DefaultMediaRoot
	}
	if cfg.SourceRetry.Attempts == 0 {
		cfg.SourceRetry = DefaultRetryPolicy
	}

	c := &Coordinator{
		media:      mediaStore,
		archive:    archiveStore,
		records:    records,
		directives: NewDirectives(),
		metrics:    noopMetrics{},
		locks:      newFolderLocks(),
		now:        time.Now,
		mediaRoot:  strings.Trim(cfg.MediaRoot, "/"),
		tracked:    make(map[string]struct{}, len(cfg.TrackedContentTypes)),
		retention:  cfg.Retention,
		retry:      cfg.SourceRetry,
	}
	for _, alias := range cfg.TrackedContentTypes {
		c.tracked[strings.ToLower(alias)] = struct{}{}
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// SetPersister wires the host persist hook used by Restore. It is separate
// from the constructor because the host usually depends on the coordinator.
func (c *Coordinator) SetPersister(p Persister) {
	c.persister = p
}

// Directives returns the restore directive registry.
func (c *Coordinator) Directives() *Directives {
	return c.directives
}

// MediaRoot returns the configured media root segment.
func (c *Coordinator) MediaRoot() string {
	return c.mediaRoot
}

// Retention returns the active retention policy.
func (c *Coordinator) Retention() RetentionPolicy {
	return c.retention
}

// IsTracked reports whether a content type alias is versioned.
func (c *Coordinator) IsTracked(alias string) bool {
	if len(c.tracked) == 0 {
		return true
	}
	_, ok := c.tracked[strings.ToLower(alias)]
	return ok
}

// ============================================================================
// Save Protocol
// ============================================================================

// Outcome is the result of one archive decision.
type Outcome string

const (
	OutcomeArchived  Outcome = "archived"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeMissing   Outcome = "missing"
	OutcomeFailed    Outcome = "failed"
)

// SaveEvent describes a host save about to happen.
type SaveEvent struct {
	// Previous is the persisted record before the save, nil for new items.
	Previous *media.Record

	// Current is the record about to be persisted.
	Current *media.Record

	// FileDirty reports whether the file field or its content changes.
	FileDirty bool
}

// ArchiveResult reports what one phase did.
type ArchiveResult struct {
	Outcome     Outcome
	Reason      string
	ArchivePath string
	Bytes       int64
}

// ArchiveToken carries the pre-save result into CompleteArchive.
type ArchiveToken struct {
	MediaID int
	PreSave ArchiveResult
}

// Archived reports whether the pre-save phase wrote an archive entry.
func (t *ArchiveToken) Archived() bool {
	return t != nil && t.PreSave.Outcome == OutcomeArchived
}

func skipped(reason string) ArchiveResult {
	return ArchiveResult{Outcome: OutcomeSkipped, Reason: reason}
}

// BeginArchive is the pre-save phase. It archives the file about to be
// replaced, then prunes the folder.
//
// Skipped when the content type is untracked, the item was never persisted,
// a restore suppressed it (the Suppressed flag is consumed here), or the file
// is not changing. A missing old blob is logged and skipped.
func (c *Coordinator) BeginArchive(ctx context.Context, ev SaveEvent) *ArchiveToken {
	token := &ArchiveToken{}
	if ev.Current != nil {
		token.MediaID = ev.Current.ID
	}

	token.PreSave = c.beginArchive(ctx, ev)
	c.metrics.RecordArchive(PhasePreSave, token.PreSave.Outcome, token.PreSave.Bytes)

	logger.Debug("Pre-save archive for media %d: %s %s",
		token.MediaID, token.PreSave.Outcome, token.PreSave.Reason)

	return token
}

func (c *Coordinator) beginArchive(ctx context.Context, ev SaveEvent) ArchiveResult {
	if ev.Current == nil {
		return skipped("no record")
	}
	if !c.IsTracked(ev.Current.ContentTypeAlias) {
		return skipped("untracked content type")
	}
	if !ev.Previous.Persisted() {
		return skipped("new item")
	}
	if c.directives.ConsumeSuppressed(ev.Previous.ID) {
		return skipped("suppressed by restore")
	}
	if !ev.FileDirty {
		return skipped("file unchanged")
	}

	oldPath, ok := ExtractRawPath(ev.Previous.File)
	if !ok {
		return skipped("no previous file")
	}
	key, ok := BlobKeyOfPath(oldPath, c.mediaRoot)
	if !ok {
		logger.Warn("Pre-save archive: unrecognized media path %q for media %d", oldPath, ev.Previous.ID)
		return skipped("unrecognized path")
	}

	props, err := c.media.Properties(ctx, key)
	if err != nil {
		if blob.IsNotFound(err) {
			logger.Info("Pre-save archive: old file %s of media %d is missing, skipping", key, ev.Previous.ID)
			return ArchiveResult{Outcome: OutcomeMissing, Reason: key}
		}
		logger.Error("Pre-save archive: failed to read properties of %s: %v", key, err)
		return ArchiveResult{Outcome: OutcomeFailed, Reason: err.Error()}
	}

	now := c.now().UTC()
	uploadDate, ok := props.Metadata.Get(MetaUploadDate)
	if !ok || uploadDate == "" {
		uploadDate = props.CreatedOrModified().UTC().Format(DateFormat)
	}
	uploader, ok := props.Metadata.Get(MetaUploaderName)
	if !ok {
		uploader = ev.Previous.UploaderName
	}

	return c.archiveBlob(ctx, archiveRequest{
		mediaID:   ev.Previous.ID,
		sourceKey: key,
		props:     props,
		metadata: blob.Metadata{
			MetaUploaderName:    uploader,
			MetaUploadDate:      uploadDate,
			MetaSnapshotDate:    now.Format(DateFormat),
			MetaOriginalMediaID: strconv.Itoa(ev.Previous.ID),
		},
	})
}

// CompleteArchive is the post-save phase. When the pre-save phase did not
// archive, it archives the file now referenced by current unless the newest
// entry already matches it. A pending ForceSnapshot flag (consumed here)
// bypasses the duplicate check.
func (c *Coordinator) CompleteArchive(ctx context.Context, token *ArchiveToken, current *media.Record) ArchiveResult {
	result := c.completeArchive(ctx, token, current)
	c.metrics.RecordArchive(PhasePostSave, result.Outcome, result.Bytes)

	id := 0
	if current != nil {
		id = current.ID
	}
	logger.Debug("Post-save archive for media %d: %s %s", id, result.Outcome, result.Reason)

	return result
}

func (c *Coordinator) completeArchive(ctx context.Context, token *ArchiveToken, current *media.Record) ArchiveResult {
	if token.Archived() {
		return skipped("archived before save")
	}
	if current == nil || !current.Persisted() {
		return skipped("no record")
	}
	if !c.IsTracked(current.ContentTypeAlias) {
		return skipped("untracked content type")
	}

	path, ok := ExtractRawPath(current.File)
	if !ok {
		return skipped("no file")
	}
	key, ok := BlobKeyOfPath(path, c.mediaRoot)
	if !ok {
		logger.Warn("Post-save archive: unrecognized media path %q for media %d", path, current.ID)
		return skipped("unrecognized path")
	}

	force := c.directives.ConsumeForceSnapshot(current.ID)

	var props *blob.Properties
	err := c.retry.Do(ctx, func() error {
		var err error
		props, err = c.media.Properties(ctx, key)
		return err
	})
	if err != nil {
		if blob.IsNotFound(err) {
			logger.Info("Post-save archive: file %s of media %d is missing, skipping", key, current.ID)
			return ArchiveResult{Outcome: OutcomeMissing, Reason: key}
		}
		logger.Error("Post-save archive: failed to read properties of %s: %v", key, err)
		return ArchiveResult{Outcome: OutcomeFailed, Reason: err.Error()}
	}

	uploader, ok := props.Metadata.Get(MetaUploaderName)
	if !ok {
		uploader = current.UploaderName
	}

	return c.archiveBlob(ctx, archiveRequest{
		mediaID:   current.ID,
		sourceKey: key,
		props:     props,
		metadata: blob.Metadata{
			MetaUploaderName:    uploader,
			MetaUploadDate:      c.now().UTC().Format(DateFormat),
			MetaOriginalMediaID: strconv.Itoa(current.ID),
		},
		force:     force,
		retryOpen: true,
	})
}

// ============================================================================
// Archive Writes
// ============================================================================

type archiveRequest struct {
	mediaID   int
	sourceKey string
	props     *blob.Properties
	metadata  blob.Metadata
	force     bool
	retryOpen bool
}

// archiveBlob copies one live blob into the archive and prunes its folder.
func (c *Coordinator) archiveBlob(ctx context.Context, req archiveRequest) ArchiveResult {
	folder, filename := SplitArchivePath(req.sourceKey)

	unlock := c.locks.lock(folder)
	defer unlock()

	entries, err := c.listFolder(ctx, folder)
	if err != nil {
		logger.Error("Archive: failed to list snapshots of folder %s: %v", folder, err)
		return ArchiveResult{Outcome: OutcomeFailed, Reason: err.Error()}
	}

	if !req.force && len(entries) > 0 && IsDuplicate(entries, filename, req.props.Size) {
		return ArchiveResult{Outcome: OutcomeDuplicate, Reason: filename}
	}

	archivePath := EncodeArchivePath(folder, filename, c.now())

	var src io.ReadCloser
	open := func() error {
		var err error
		src, err = c.media.Read(ctx, req.sourceKey)
		return err
	}
	if req.retryOpen {
		err = c.retry.Do(ctx, open)
	} else {
		err = open()
	}
	if err != nil {
		if blob.IsNotFound(err) {
			logger.Info("Archive: source %s disappeared before copy, skipping", req.sourceKey)
			return ArchiveResult{Outcome: OutcomeMissing, Reason: req.sourceKey}
		}
		logger.Error("Archive: failed to open %s: %v", req.sourceKey, err)
		return ArchiveResult{Outcome: OutcomeFailed, Reason: err.Error()}
	}
	defer src.Close()

	err = c.archive.Write(ctx, archivePath, src, blob.WriteOptions{
		ContentType: req.props.ContentType,
		Metadata:    req.metadata,
	})
	if err != nil {
		logger.Error("Archive: failed to write %s: %v", archivePath, err)
		return ArchiveResult{Outcome: OutcomeFailed, Reason: err.Error()}
	}

	logger.Info("Archived %s as %s (media %d, %d bytes)", req.sourceKey, archivePath, req.mediaID, req.props.Size)

	if _, err := c.pruneLocked(ctx, folder, PruneOptions{}); err != nil {
		logger.Warn("Archive: retention for folder %s failed: %v", folder, err)
	}

	c.invalidate(ctx)

	return ArchiveResult{Outcome: OutcomeArchived, ArchivePath: archivePath, Bytes: req.props.Size}
}

// ============================================================================
// Retention
// ============================================================================

// PruneOptions adjusts a retention run.
type PruneOptions struct {
	// DryRun selects without deleting.
	DryRun bool

	// BeforeDelete is called before each delete, e.g. to rate limit. An
	// error stops the run.
	BeforeDelete func(ctx context.Context) error
}

// PruneResult reports one retention run over a folder.
type PruneResult struct {
	Folder   string
	Selected []Deletion
	Deleted  int
	Failed   int
}

// PruneFolder applies the retention policy to one folder.
func (c *Coordinator) PruneFolder(ctx context.Context, folder string, opts PruneOptions) (*PruneResult, error) {
	unlock := c.locks.lock(folder)
	defer unlock()

	result, err := c.pruneLocked(ctx, folder, opts)
	if result != nil && result.Deleted > 0 {
		c.invalidate(ctx)
	}
	return result, err
}

func (c *Coordinator) pruneLocked(ctx context.Context, folder string, opts PruneOptions) (*PruneResult, error) {
	result := &PruneResult{Folder: folder}
	if !c.retention.Enabled() {
		return result, nil
	}

	entries, err := c.listFolder(ctx, folder)
	if err != nil {
		return result, err
	}

	result.Selected = c.retention.Select(entries, c.now())
	if opts.DryRun || len(result.Selected) == 0 {
		return result, nil
	}

	for _, d := range result.Selected {
		if opts.BeforeDelete != nil {
			if err := opts.BeforeDelete(ctx); err != nil {
				return result, err
			}
		}

		if err := c.archive.Delete(ctx, d.Entry.Path()); err != nil {
			result.Failed++
			logger.Warn("Retention: failed to delete %s: %v", d.Entry.Path(), err)
			continue
		}
		result.Deleted++
		c.metrics.RecordPrune(d.Reason, 1)
		logger.Info("Retention: deleted %s (%s)", d.Entry.Path(), d.Reason)
	}

	return result, nil
}

// ============================================================================
// Helpers
// ============================================================================

// listFolder returns the folder's entries with metadata.
func (c *Coordinator) listFolder(ctx context.Context, folder string) ([]Entry, error) {
	var entries []Entry
	err := c.archive.Walk(ctx, folder+"/", blob.WalkOptions{IncludeMetadata: true}, func(p blob.Properties) error {
		e := EntryFromProperties(p)
		if e.Folder == folder {
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ScanFolders lists every folder in the archive with its entries in one walk.
func (c *Coordinator) ScanFolders(ctx context.Context) (map[string][]Entry, error) {
	folders := make(map[string][]Entry)
	err := c.archive.Walk(ctx, "", blob.WalkOptions{IncludeMetadata: true}, func(p blob.Properties) error {
		e := EntryFromProperties(p)
		folders[e.Folder] = append(folders[e.Folder], e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan archive: %w", err)
	}
	return folders, nil
}

func (c *Coordinator) invalidate(ctx context.Context) {
	if c.invalidator != nil {
		c.invalidator.Invalidate(ctx)
	}
}
