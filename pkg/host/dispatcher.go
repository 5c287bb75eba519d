// Package host runs the save and delete pipelines of the media host around
// the snapshot engine.
//
// A save goes through Dispatcher.Save:
//
//	prev := records.Get(id)
//	token := coord.BeginArchive(prev, rec)   // old file still in place
//	write the uploaded blob, drop the old one
//	records.Save(rec)
//	coord.CompleteArchive(token, rec)       // new file in place
//
// The Dispatcher is also the coordinator's snapshot.Persister, so a restore
// re-enters this same pipeline.
package host

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/internal/logger"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/blob"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/media"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/snapshot"
)

var (
	// ErrInvalidUpload indicates an upload without a usable filename or body.
	ErrInvalidUpload = errors.New("invalid upload")
)

// Upload is a new file for a media item.
type Upload struct {
	// Filename is the base name stored under the item's folder.
	Filename string

	// Content is the file body.
	Content io.Reader

	// ContentType defaults to a guess from the extension.
	ContentType string
}

// SaveResult reports what a save did.
type SaveResult struct {
	Record   *media.Record
	PreSave  snapshot.ArchiveResult
	PostSave snapshot.ArchiveResult
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithClock overrides the time source for UploadDate metadata.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// WithFolderNamer overrides how folders are named for new items.
func WithFolderNamer(fn func() string) Option {
	return func(d *Dispatcher) { d.newFolder = fn }
}

// Dispatcher owns the host save pipeline.
//
// Thread Safety: Safe for concurrent use on different media ids.
type Dispatcher struct {
	records media.Repository
	media   blob.Store
	coord   *snapshot.Coordinator

	now       func() time.Time
	newFolder func() string
}

// NewDispatcher wires a dispatcher and registers it as coord's persister.
func NewDispatcher(records media.Repository, mediaStore blob.Store, coord *snapshot.Coordinator, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		records:   records,
		media:     mediaStore,
		coord:     coord,
		now:       time.Now,
		newFolder: newFolderID,
	}
	for _, opt := range opts {
		opt(d)
	}

	coord.SetPersister(d)
	return d
}

// newFolderID returns a short random folder segment.
func newFolderID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Save persists rec and, when up is non-nil, replaces its file. rec.ID 0
// creates a new item. rec is updated in place (ID, File, Bytes, dimensions).
func (d *Dispatcher) Save(ctx context.Context, rec *media.Record, up *Upload) (*SaveResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := media.Validate(rec); err != nil {
		return nil, err
	}

	var prev *media.Record
	if rec.ID > 0 {
		p, err := d.records.Get(ctx, rec.ID)
		switch {
		case err == nil:
			prev = p
		case !errors.Is(err, media.ErrNotFound):
			return nil, fmt.Errorf("load media %d: %w", rec.ID, err)
		}
	}

	var data []byte
	var newKey string
	if up != nil {
		var err error
		if data, newKey, err = d.prepareUpload(prev, rec, up); err != nil {
			return nil, err
		}
	}

	dirty := up != nil || (prev == nil && rec.File != "") || (prev != nil && prev.File != rec.File)
	token := d.coord.BeginArchive(ctx, snapshot.SaveEvent{Previous: prev, Current: rec, FileDirty: dirty})

	if up != nil {
		if err := d.writeLive(ctx, prev, rec, up, newKey, data); err != nil {
			return nil, err
		}
	}

	if err := d.records.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("save media: %w", err)
	}

	post := d.coord.CompleteArchive(ctx, token, rec)

	return &SaveResult{Record: rec, PreSave: token.PreSave, PostSave: post}, nil
}

// Persist implements snapshot.Persister.
func (d *Dispatcher) Persist(ctx context.Context, rec *media.Record) error {
	_, err := d.Save(ctx, rec, nil)
	return err
}

// prepareUpload reads the body and points rec.File at the new location.
func (d *Dispatcher) prepareUpload(prev, rec *media.Record, up *Upload) ([]byte, string, error) {
	name := strings.TrimSpace(up.Filename)
	if name == "" || name != path.Base(name) || name == "." || name == ".." {
		return nil, "", fmt.Errorf("filename %q: %w", up.Filename, ErrInvalidUpload)
	}
	if up.Content == nil {
		return nil, "", fmt.Errorf("no content: %w", ErrInvalidUpload)
	}

	data, err := io.ReadAll(up.Content)
	if err != nil {
		return nil, "", fmt.Errorf("read upload: %w", err)
	}

	root := d.coord.MediaRoot()
	folder, ok := "", false
	if prev != nil {
		folder, ok = snapshot.ExtractFolder(prev.File, root)
	}
	if !ok {
		folder, ok = snapshot.ExtractFolder(rec.File, root)
	}
	if !ok {
		folder = d.newFolder()
	}

	newPath := snapshot.StoragePath(root, folder, name)
	if ref, ok := snapshot.ParseFileRef(rec.File); ok {
		rec.File = ref.WithPath(newPath).String()
	} else {
		rec.File = newPath
	}

	return data, folder + "/" + name, nil
}

// writeLive stores the upload and removes the file it replaces.
func (d *Dispatcher) writeLive(ctx context.Context, prev, rec *media.Record, up *Upload, key string, data []byte) error {
	contentType := up.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(path.Ext(key))
	}

	err := d.media.Write(ctx, key, bytes.NewReader(data), blob.WriteOptions{
		ContentType: contentType,
		Metadata: blob.Metadata{
			snapshot.MetaUploaderName: rec.UploaderName,
			snapshot.MetaUploadDate:   d.now().UTC().Format(snapshot.DateFormat),
		},
	})
	if err != nil {
		return fmt.Errorf("write media file %s: %w", key, err)
	}

	if prev != nil {
		if oldPath, ok := snapshot.ExtractRawPath(prev.File); ok {
			if oldKey, ok := snapshot.BlobKeyOfPath(oldPath, d.coord.MediaRoot()); ok && oldKey != key {
				if err := d.media.Delete(ctx, oldKey); err != nil {
					logger.Warn("Save: failed to remove replaced file %s: %v", oldKey, err)
				}
			}
		}
	}

	rec.Bytes = int64(len(data))
	rec.Width, rec.Height = 0, 0
	if w, h, ok := snapshot.DecodeDimensions(key, data); ok {
		rec.Width, rec.Height = w, h
	}
	return nil
}

// Delete removes a media item permanently: the record, its live file and
// every archived version. Archive cleanup failures are logged, not returned.
func (d *Dispatcher) Delete(ctx context.Context, id int) error {
	rec, err := d.records.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := d.records.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete media %d: %w", id, err)
	}

	root := d.coord.MediaRoot()
	if p, ok := snapshot.ExtractRawPath(rec.File); ok {
		if key, ok := snapshot.BlobKeyOfPath(p, root); ok {
			if err := d.media.Delete(ctx, key); err != nil {
				logger.Warn("Delete: failed to remove media file %s: %v", key, err)
			}
		}
	}

	if folder, ok := snapshot.ExtractFolder(rec.File, root); ok {
		n, err := d.coord.DeleteFolder(ctx, folder)
		if err != nil {
			logger.Warn("Delete: archive cleanup of folder %s for media %d incomplete: %v", folder, id, err)
		} else {
			logger.Info("Delete: removed media %d and %d archived versions", id, n)
		}
	}

	return nil
}

// EnsureContainers creates the containers of stores that need one.
func EnsureContainers(ctx context.Context, stores ...blob.Store) error {
	for _, s := range stores {
		ensurer, ok := s.(blob.ContainerEnsurer)
		if !ok {
			continue
		}
		if err := ensurer.EnsureContainer(ctx); err != nil {
			return fmt.Errorf("ensure container: %w", err)
		}
	}
	return nil
}
