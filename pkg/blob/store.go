// Package blob defines the object-storage abstraction used for both the live
// media container and the snapshot archive container.
//
// A Store is scoped to a single container. Keys are slash-separated relative
// paths with no leading "/" (e.g. "a1b2c3/photo.jpg"). Implementations exist
// for memory (tests, development), the local filesystem and S3-compatible
// object storage.
package blob

import (
	"context"
	"io"
	"strings"
	"time"
)

// ============================================================================
// Store Interface
// ============================================================================

// Store provides container-scoped blob operations.
//
// Semantics expected from every implementation:
//   - Per-blob operations are strongly ordered: a Read after a completed Write
//     observes the written content.
//   - Write replaces existing content and metadata.
//   - Delete is idempotent (deleting a missing blob succeeds).
//   - Read, Properties and SetMetadata return an error wrapping ErrNotFound
//     when the blob does not exist.
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
// Concurrent writes to the same key are last-write-wins.
type Store interface {
	// Read opens the blob content for streaming. The caller must close the
	// returned reader.
	Read(ctx context.Context, key string) (io.ReadCloser, error)

	// Write stores the content read from r under key, replacing any existing
	// blob.
	Write(ctx context.Context, key string, r io.Reader, opts WriteOptions) error

	// Delete removes the blob. Missing blobs are not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether a blob exists. It only returns an error for
	// storage failures or context cancellation.
	Exists(ctx context.Context, key string) (bool, error)

	// Properties returns size, timestamps, content type and metadata.
	Properties(ctx context.Context, key string) (*Properties, error)

	// SetMetadata replaces the metadata of an existing blob without
	// touching its content.
	SetMetadata(ctx context.Context, key string, md Metadata) error

	// Walk streams every blob whose key starts with prefix to fn, in
	// lexical key order. Returning an error from fn stops the walk and the
	// error is returned unchanged.
	//
	// Metadata is only populated when opts.IncludeMetadata is set, since
	// some backends need an extra request per blob to fetch it.
	Walk(ctx context.Context, prefix string, opts WalkOptions, fn func(Properties) error) error
}

// ContainerEnsurer is implemented by stores whose container may need to be
// created before first use (buckets, directories). EnsureContainer must be
// idempotent.
type ContainerEnsurer interface {
	EnsureContainer(ctx context.Context) error
}

// ============================================================================
// Supporting Types
// ============================================================================

// WriteOptions carries the optional attributes of a Write.
type WriteOptions struct {
	ContentType string
	Metadata    Metadata
}

// WalkOptions controls what Walk populates.
type WalkOptions struct {
	IncludeMetadata bool
}

// Properties describes a stored blob.
type Properties struct {
	Key          string
	Size         int64
	ContentType  string
	CreatedOn    time.Time // zero when the backend does not track creation time
	LastModified time.Time
	Metadata     Metadata
}

// CreatedOrModified returns CreatedOn, falling back to LastModified when the
// backend does not report a creation time.
func (p Properties) CreatedOrModified() time.Time {
	if !p.CreatedOn.IsZero() {
		return p.CreatedOn
	}
	return p.LastModified
}

// Metadata is a string map attached to a blob.
//
// Some backends normalize key case (S3 lowercases user metadata keys), so
// lookups through Get are case-insensitive.
type Metadata map[string]string

// Get returns the value stored under key, matching case-insensitively.
func (m Metadata) Get(key string) (string, bool) {
	if m == nil {
		return "", false
	}
	if v, ok := m[key]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

// Set stores value under key, replacing any entry that differs only in case.
func (m Metadata) Set(key, value string) {
	m.Delete(key)
	m[key] = value
}

// Delete removes key and any case variant of it.
func (m Metadata) Delete(key string) {
	for k := range m {
		if strings.EqualFold(k, key) {
			delete(m, k)
		}
	}
}

// Clone returns an independent copy. A nil receiver yields an empty map.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ValidateKey rejects keys that cannot be stored portably.
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.HasSuffix(key, "/") {
		return invalidKey(key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return invalidKey(key)
		}
	}
	return nil
}
