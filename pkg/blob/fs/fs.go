// Package fs implements blob.Store on the local filesystem.
//
// Each blob is stored as a regular file at <basePath>/<key>. Content type,
// creation time and user metadata live in a sidecar "<file>.attr.json" next to
// the data file. Data files and sidecars are written atomically
// (temp file, fsync, rename) so readers never observe a partial blob.
package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/blob"
)

const (
	// AttrSuffix marks sidecar metadata files.
	AttrSuffix = ".attr.json"

	tmpPrefix = ".tmp-"
)

// attrs is the on-disk sidecar document.
type attrs struct {
	ContentType string            `json:"content_type,omitempty"`
	CreatedOn   time.Time         `json:"created_on"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// FSStore implements blob.Store using a directory tree.
//
// Thread Safety:
// Writes use rename, which is atomic on POSIX filesystems. Concurrent writes
// to the same key are last-write-wins; the data file and its sidecar may come
// from different writers in that case.
type FSStore struct {
	basePath string
	now      func() time.Time
}

// NewFSStore creates a filesystem store rooted at basePath, creating the
// directory if needed.
func NewFSStore(ctx context.Context, basePath string) (*FSStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FSStore{basePath: basePath, now: time.Now}, nil
}

// BasePath returns the root directory of the store.
func (s *FSStore) BasePath() string {
	return s.basePath
}

// validateKey applies blob.ValidateKey plus the names this backend reserves.
func validateKey(key string) error {
	if err := blob.ValidateKey(key); err != nil {
		return err
	}
	base := key[strings.LastIndex(key, "/")+1:]
	if strings.HasSuffix(base, AttrSuffix) || strings.HasPrefix(base, tmpPrefix) {
		return fmt.Errorf("key %q uses a reserved name: %w", key, blob.ErrInvalidKey)
	}
	return nil
}

func (s *FSStore) dataPath(key string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(key))
}

func attrPath(dataPath string) string {
	return dataPath + AttrSuffix
}

// ============================================================================
// blob.Store Implementation
// ============================================================================

func (s *FSStore) Read(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateKey(key); err != nil {
		return nil, err
	}

	file, err := os.Open(s.dataPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob %s: %w", key, blob.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open blob: %w", err)
	}

	return file, nil
}

func (s *FSStore) Write(ctx context.Context, key string, r io.Reader, opts blob.WriteOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}

	path := s.dataPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", key, err)
	}

	created := s.now().UTC()
	if existing, err := readAttrs(attrPath(path)); err == nil && !existing.CreatedOn.IsZero() {
		created = existing.CreatedOn
	}

	if err := writeAtomic(path, r); err != nil {
		return fmt.Errorf("failed to write blob %s: %w", key, err)
	}

	a := &attrs{
		ContentType: opts.ContentType,
		CreatedOn:   created,
		Metadata:    opts.Metadata.Clone(),
	}
	if err := writeAttrs(attrPath(path), a); err != nil {
		return fmt.Errorf("failed to write attributes for %s: %w", key, err)
	}

	return nil
}

func (s *FSStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}

	path := s.dataPath(key)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob %s: %w", key, err)
	}
	if err := os.Remove(attrPath(path)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete attributes for %s: %w", key, err)
	}

	return nil
}

func (s *FSStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := validateKey(key); err != nil {
		return false, err
	}

	info, err := os.Stat(s.dataPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat blob %s: %w", key, err)
	}

	return info.Mode().IsRegular(), nil
}

func (s *FSStore) Properties(ctx context.Context, key string) (*blob.Properties, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateKey(key); err != nil {
		return nil, err
	}

	props, err := s.properties(key, true)
	if err != nil {
		return nil, err
	}
	return props, nil
}

func (s *FSStore) SetMetadata(ctx context.Context, key string, md blob.Metadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}

	path := s.dataPath(key)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("blob %s: %w", key, blob.ErrNotFound)
		}
		return fmt.Errorf("failed to stat blob %s: %w", key, err)
	}

	a, err := readAttrs(attrPath(path))
	if err != nil {
		a = &attrs{CreatedOn: info.ModTime().UTC()}
	}
	a.Metadata = md.Clone()

	if err := writeAttrs(attrPath(path), a); err != nil {
		return fmt.Errorf("failed to write attributes for %s: %w", key, err)
	}

	// Metadata changes count as modifications, as on object stores.
	now := s.now()
	_ = os.Chtimes(path, now, now)

	return nil
}

func (s *FSStore) Walk(ctx context.Context, prefix string, opts blob.WalkOptions, fn func(blob.Properties) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Start from the deepest directory fully named by the prefix.
	root := s.basePath
	if i := strings.LastIndex(prefix, "/"); i >= 0 {
		root = filepath.Join(s.basePath, filepath.FromSlash(prefix[:i]))
	}

	var keys []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.HasSuffix(name, AttrSuffix) || strings.HasPrefix(name, tmpPrefix) {
			return nil
		}

		rel, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk %q: %w", prefix, err)
	}

	sort.Strings(keys)

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		props, err := s.properties(key, opts.IncludeMetadata)
		if err != nil {
			// Removed between listing and stat.
			if blob.IsNotFound(err) {
				continue
			}
			return err
		}
		if err := fn(*props); err != nil {
			return err
		}
	}

	return nil
}

// EnsureContainer creates the base directory.
func (s *FSStore) EnsureContainer(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.MkdirAll(s.basePath, 0o755)
}

// ============================================================================
// Helpers
// ============================================================================

func (s *FSStore) properties(key string, withMetadata bool) (*blob.Properties, error) {
	path := s.dataPath(key)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob %s: %w", key, blob.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to stat blob %s: %w", key, err)
	}

	props := &blob.Properties{
		Key:          key,
		Size:         info.Size(),
		LastModified: info.ModTime().UTC(),
	}

	// A missing or corrupt sidecar degrades to "no creation time, no metadata".
	if a, err := readAttrs(attrPath(path)); err == nil {
		props.ContentType = a.ContentType
		props.CreatedOn = a.CreatedOn
		if withMetadata {
			props.Metadata = blob.Metadata(a.Metadata).Clone()
		}
	} else if withMetadata {
		props.Metadata = blob.Metadata{}
	}

	return props, nil
}

func readAttrs(path string) (*attrs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var a attrs
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return &a, nil
}

func writeAttrs(path string, a *attrs) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode attributes: %w", err)
	}
	return writeAtomic(path, strings.NewReader(string(data)))
}

// writeAtomic streams r into a temp file beside path, fsyncs and renames it
// over path.
func writeAtomic(path string, r io.Reader) error {
	tmpPath := filepath.Join(filepath.Dir(path), tmpPrefix+uuid.NewString())

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}
