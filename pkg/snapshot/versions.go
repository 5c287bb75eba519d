package snapshot

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/pauldequant/umbraco-media-snapshot-sub000/internal/logger"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/blob"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/media"
)

// ============================================================================
// Reporting
// ============================================================================

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// VersionPage is one page of an item's archive, newest first.
type VersionPage struct {
	MediaID  int     `json:"media_id"`
	Folder   string  `json:"folder"`
	Total    int     `json:"total"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
	Entries  []Entry `json:"entries"`
}

// ListVersions returns page (1-based) of the item's archive entries.
func (c *Coordinator) ListVersions(ctx context.Context, mediaID, page, pageSize int) (*VersionPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	folder, err := c.folderOf(ctx, mediaID)
	if err != nil {
		return nil, err
	}

	entries, err := c.listFolder(ctx, folder)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions of media %d: %w", mediaID, err)
	}
	entries = SortNewestFirst(entries)

	result := &VersionPage{
		MediaID:  mediaID,
		Folder:   folder,
		Total:    len(entries),
		Page:     page,
		PageSize: pageSize,
		Entries:  []Entry{},
	}

	start := (page - 1) * pageSize
	if start < len(entries) {
		end := start + pageSize
		if end > len(entries) {
			end = len(entries)
		}
		result.Entries = entries[start:end]
	}

	return result, nil
}

// DeleteResult is the outcome of one explicit delete.
type DeleteResult struct {
	Path string `json:"path"`
	Err  error  `json:"-"`
}

// DeleteEntries removes archive entries by path. Pinned entries are refused
// with ErrPinned and missing ones report ErrEntryNotFound; the other paths
// are still processed.
func (c *Coordinator) DeleteEntries(ctx context.Context, paths []string) []DeleteResult {
	results := make([]DeleteResult, 0, len(paths))
	deleted := 0

	for _, p := range paths {
		err := c.deleteEntry(ctx, p)
		if err == nil {
			deleted++
		}
		results = append(results, DeleteResult{Path: p, Err: err})
	}

	if deleted > 0 {
		c.invalidate(ctx)
	}
	return results
}

func (c *Coordinator) deleteEntry(ctx context.Context, path string) error {
	folder, _ := SplitArchivePath(path)
	unlock := c.locks.lock(folder)
	defer unlock()

	props, err := c.entryProperties(ctx, path)
	if err != nil {
		return err
	}
	if EntryFromProperties(*props).Pinned() {
		return fmt.Errorf("%s: %w", path, ErrPinned)
	}

	if err := c.archive.Delete(ctx, path); err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	logger.Info("Deleted snapshot %s", path)
	return nil
}

// SetPinned pins or unpins an entry.
func (c *Coordinator) SetPinned(ctx context.Context, path string, pinned bool) error {
	return c.updateMetadata(ctx, path, func(md blob.Metadata) {
		if pinned {
			md.Set(MetaPinned, "true")
		} else {
			md.Delete(MetaPinned)
		}
	})
}

// SetNote sets the entry's note. An empty note clears it.
func (c *Coordinator) SetNote(ctx context.Context, path, note string) error {
	if utf8.RuneCountInString(note) > MaxNoteLength {
		return fmt.Errorf("%d characters, max %d: %w", utf8.RuneCountInString(note), MaxNoteLength, ErrNoteTooLong)
	}
	return c.updateMetadata(ctx, path, func(md blob.Metadata) {
		if note == "" {
			md.Delete(MetaNote)
		} else {
			md.Set(MetaNote, note)
		}
	})
}

func (c *Coordinator) updateMetadata(ctx context.Context, path string, mutate func(blob.Metadata)) error {
	props, err := c.entryProperties(ctx, path)
	if err != nil {
		return err
	}

	md := props.Metadata.Clone()
	mutate(md)

	if err := c.archive.SetMetadata(ctx, path, md); err != nil {
		if blob.IsNotFound(err) {
			return fmt.Errorf("%s: %w", path, ErrEntryNotFound)
		}
		return fmt.Errorf("failed to update %s: %w", path, err)
	}
	return nil
}

// DeleteFolder removes every archive entry of a folder, pinned ones
// included. It backs the cascade when a media item is permanently deleted.
func (c *Coordinator) DeleteFolder(ctx context.Context, folder string) (int, error) {
	if folder == "" {
		return 0, fmt.Errorf("empty folder")
	}

	unlock := c.locks.lock(folder)
	defer unlock()

	entries, err := c.listFolder(ctx, folder)
	if err != nil {
		return 0, fmt.Errorf("failed to list folder %s: %w", folder, err)
	}

	deleted := 0
	var errs []error
	for _, e := range entries {
		if err := c.archive.Delete(ctx, e.Path()); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Path(), err))
			continue
		}
		deleted++
	}

	if deleted > 0 {
		logger.Info("Deleted %d snapshots of folder %s", deleted, folder)
		c.invalidate(ctx)
	}
	return deleted, errors.Join(errs...)
}

// Entry returns one archive entry by path.
func (c *Coordinator) Entry(ctx context.Context, path string) (Entry, error) {
	props, err := c.entryProperties(ctx, path)
	if err != nil {
		return Entry{}, err
	}
	return EntryFromProperties(*props), nil
}

func (c *Coordinator) entryProperties(ctx context.Context, path string) (*blob.Properties, error) {
	props, err := c.archive.Properties(ctx, path)
	if err != nil {
		if blob.IsNotFound(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrEntryNotFound)
		}
		return nil, err
	}
	return props, nil
}

// folderOf resolves a media id to its archive folder.
func (c *Coordinator) folderOf(ctx context.Context, mediaID int) (string, error) {
	rec, err := c.records.Get(ctx, mediaID)
	if err != nil {
		if errors.Is(err, media.ErrNotFound) {
			return "", fmt.Errorf("media %d: %w", mediaID, ErrMediaNotFound)
		}
		return "", err
	}

	folder, ok := ExtractFolder(rec.File, c.mediaRoot)
	if !ok {
		return "", fmt.Errorf("media %d: %w", mediaID, ErrNoFile)
	}
	return folder, nil
}
