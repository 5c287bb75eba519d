package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/internal/logger"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/blob"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/media"
)

// Restore steps reported in RestoreError.Step.
const (
	StepLoadMedia    = "load media"
	StepLoadEntry    = "load entry"
	StepReadEntry    = "read entry"
	StepWriteLive    = "write live file"
	StepTagEntry     = "tag entry"
	StepPersistMedia = "persist media"
)

// Restore copies an archive entry back to the live media location of
// mediaID and persists the record through the host.
//
// entry is an archive name ("20240101_120000_photo.jpg") within the item's
// folder, or a full archive path ("a1b2c3/20240101_120000_photo.jpg").
//
// The live file is written under the entry's original filename; a live file
// at a different path is removed once the record has been persisted. Non-path members of a structured
// file reference are kept, and Bytes, Width and Height follow the restored
// content. The entry is tagged RestoredFrom/RestoredDate. Before persisting,
// the Suppressed and ForceSnapshot flags are set so the triggered save skips
// its pre-save archive and records the restored file as the newest entry.
// Flags the save did not consume are cleared once Persist returns.
//
// Every failure is returned as a *RestoreError.
func (c *Coordinator) Restore(ctx context.Context, mediaID int, entry string) (err error) {
	opID := uuid.NewString()
	start := time.Now()
	defer func() {
		c.metrics.RecordRestore(err == nil, time.Since(start))
	}()

	fail := func(step string, cause error) error {
		logger.Error("Restore %s: media %d entry %q failed at %s: %v", opID, mediaID, entry, step, cause)
		return &RestoreError{OpID: opID, MediaID: mediaID, Entry: entry, Step: step, Err: cause}
	}

	if err := ctx.Err(); err != nil {
		return fail(StepLoadMedia, err)
	}
	if c.persister == nil {
		return fail(StepPersistMedia, ErrNoPersister)
	}

	// (a) Resolve and verify the record and the archive entry.
	rec, err := c.records.Get(ctx, mediaID)
	if err != nil {
		if errors.Is(err, media.ErrNotFound) {
			return fail(StepLoadMedia, fmt.Errorf("media %d: %w", mediaID, ErrMediaNotFound))
		}
		return fail(StepLoadMedia, err)
	}
	if !c.IsTracked(rec.ContentTypeAlias) {
		return fail(StepLoadMedia, fmt.Errorf("%s: %w", rec.ContentTypeAlias, ErrUntracked))
	}

	ref, hasRef := ParseFileRef(rec.File)
	folder, archivePath, err := c.resolveEntry(ref, hasRef, entry)
	if err != nil {
		return fail(StepLoadEntry, err)
	}

	props, err := c.archive.Properties(ctx, archivePath)
	if err != nil {
		if blob.IsNotFound(err) {
			return fail(StepLoadEntry, fmt.Errorf("%s: %w", archivePath, ErrEntryNotFound))
		}
		return fail(StepLoadEntry, err)
	}

	src, err := c.archive.Read(ctx, archivePath)
	if err != nil {
		if blob.IsNotFound(err) {
			err = fmt.Errorf("%s: %w", archivePath, ErrEntryNotFound)
		}
		return fail(StepReadEntry, err)
	}
	defer src.Close()

	original := DecodeOriginalName(archivePath)
	targetKey := folder + "/" + original
	targetPath := StoragePath(c.mediaRoot, folder, original)

	var replaced, staleKey string
	if hasRef {
		replaced = ref.Path
		if currentKey, ok := BlobKeyOfPath(ref.Path, c.mediaRoot); ok && currentKey != targetKey {
			staleKey = currentKey
		}
	}

	// (b) Stream the archived content to its original name. The replaced
	// live file stays in place until the record points elsewhere.
	now := c.now().UTC()
	uploader, _ := props.Metadata.Get(MetaUploaderName)
	head := newHeaderSink(dimensionHeaderLimit)
	err = c.media.Write(ctx, targetKey, io.TeeReader(src, head), blob.WriteOptions{
		ContentType: props.ContentType,
		Metadata: blob.Metadata{
			MetaUploaderName: uploader,
			MetaUploadDate:   now.Format(DateFormat),
		},
	})
	if err != nil {
		return fail(StepWriteLive, err)
	}

	// (c) Point the record at the restored file.
	if hasRef {
		rec.File = ref.WithPath(targetPath).String()
	} else {
		rec.File = targetPath
	}
	rec.Bytes = head.total
	if w, h, ok := DecodeDimensions(original, head.Bytes()); ok {
		rec.Width, rec.Height = w, h
	} else {
		rec.Width, rec.Height = 0, 0
	}

	// (d) Tag the restored entry.
	tagged := props.Metadata.Clone()
	tagged.Set(MetaRestoredDate, now.Format(DateFormat))
	if replaced != "" {
		tagged.Set(MetaRestoredFrom, replaced)
	} else {
		tagged.Set(MetaRestoredFrom, targetPath)
	}
	if err := c.archive.SetMetadata(ctx, archivePath, tagged); err != nil {
		c.discardLive(ctx, opID, targetKey, staleKey)
		return fail(StepTagEntry, err)
	}

	// (e) Persist through the host with the restore directives armed.
	c.directives.Suppress(mediaID)
	c.directives.ForceSnapshot(mediaID)
	err = c.persister.Persist(ctx, rec)
	if c.directives.Clear(mediaID) {
		logger.Debug("Restore %s: cleared unconsumed directives for media %d", opID, mediaID)
	}
	if err != nil {
		c.discardLive(ctx, opID, targetKey, staleKey)
		return fail(StepPersistMedia, err)
	}

	// (f) Drop the replaced live file now that nothing references it.
	if staleKey != "" {
		if err := c.media.Delete(ctx, staleKey); err != nil {
			logger.Warn("Restore %s: failed to remove replaced live file %s: %v", opID, staleKey, err)
		} else {
			logger.Debug("Restore %s: removed replaced live file %s", opID, staleKey)
		}
	}

	c.invalidate(ctx)

	logger.Info("Restore %s: media %d restored from %s to %s", opID, mediaID, archivePath, targetPath)
	return nil
}

// discardLive removes a restored file written under a new name after a later
// step failed. A restore onto the current name has nothing to undo.
func (c *Coordinator) discardLive(ctx context.Context, opID, targetKey, staleKey string) {
	if staleKey == "" {
		return
	}
	if err := c.media.Delete(ctx, targetKey); err != nil {
		logger.Warn("Restore %s: failed to remove orphaned live file %s: %v", opID, targetKey, err)
	}
}

// resolveEntry turns the caller's entry reference into the folder and full
// archive path, checking that it belongs to the record.
func (c *Coordinator) resolveEntry(ref FileRef, hasRef bool, entry string) (folder, archivePath string, err error) {
	entry = strings.Trim(strings.TrimSpace(entry), "/")
	if entry == "" {
		return "", "", fmt.Errorf("empty entry name: %w", ErrEntryNotFound)
	}

	entryFolder, name := SplitArchivePath(entry)

	if hasRef {
		if f, ok := FolderOfPath(ref.Path, c.mediaRoot); ok {
			folder = f
		}
	}

	switch {
	case folder == "" && entryFolder == "":
		return "", "", fmt.Errorf("cannot locate folder for %q: %w", entry, ErrNoFile)
	case folder == "":
		folder = entryFolder
	case entryFolder != "" && entryFolder != folder:
		return "", "", fmt.Errorf("%s does not belong to folder %s: %w", entry, folder, ErrEntryNotFound)
	}

	return folder, folder + "/" + name, nil
}
