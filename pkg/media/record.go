// Package media models the host application's media records: the entities
// whose file field the snapshot engine versions.
//
// The engine never owns these records. It reads File to locate the live blob
// and, on restore only, writes File, Bytes, Width and Height back through the
// host's persist call.
package media

import (
	"context"
	"time"
)

// Record is a persisted media item.
type Record struct {
	// ID is the host-assigned identity. Zero means the record has never been
	// persisted.
	ID int `json:"id"`

	// ContentTypeAlias names the media type ("Image", "File", "umbracoMediaVideo", ...).
	ContentTypeAlias string `json:"content_type_alias"`

	// Name is the display name.
	Name string `json:"name,omitempty"`

	// File is the raw file field: a bare path such as "/media/a1b2c3/photo.jpg"
	// or a JSON image descriptor {"src": "...", "crops": [...], ...}.
	File string `json:"file"`

	// Bytes, Width and Height are the side fields the host keeps next to File.
	Bytes  int64 `json:"bytes"`
	Width  int   `json:"width,omitempty"`
	Height int   `json:"height,omitempty"`

	// UploaderName is the display name of the user who last saved the record.
	UploaderName string `json:"uploader_name,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a copy that shares nothing with r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// Persisted reports whether the record has a host identity.
func (r *Record) Persisted() bool {
	return r != nil && r.ID > 0
}

// Repository stores media records.
//
// Save assigns an ID to records with ID 0 and stamps CreatedAt/UpdatedAt.
// Get and Delete return an error wrapping ErrNotFound for unknown ids.
type Repository interface {
	Get(ctx context.Context, id int) (*Record, error)
	Save(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, id int) error
	List(ctx context.Context) ([]*Record, error)
	Close() error
}
