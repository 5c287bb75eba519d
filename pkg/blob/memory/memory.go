// Package memory implements blob.Store in memory.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/blob"
)

// MemoryStore implements blob.Store using an in-memory map.
//
// It is designed for tests and development. Content is copied on every read
// and write so callers never share buffers with the store.
//
// Thread Safety:
// All operations are protected by a sync.RWMutex.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]*object
	now     func() time.Time

	// failures lets tests inject storage errors per operation and key.
	failures map[string]error
}

type object struct {
	data  []byte
	props blob.Properties
}

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithClock overrides the time source used for CreatedOn/LastModified.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		objects:  make(map[string]*object),
		now:      time.Now,
		failures: make(map[string]error),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FailNext makes the next call of operation ("read", "write", "delete",
// "properties", "metadata", "walk") on key return err. An empty key matches
// any key. The failure is consumed by the first matching call.
func (s *MemoryStore) FailNext(operation, key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[operation+"\x00"+key] = err
}

// takeFailure must be called with s.mu held for writing.
func (s *MemoryStore) takeFailure(operation, key string) error {
	for _, k := range []string{operation + "\x00" + key, operation + "\x00"} {
		if err, ok := s.failures[k]; ok {
			delete(s.failures, k)
			return err
		}
	}
	return nil
}

// Len returns the number of stored blobs.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// ============================================================================
// blob.Store Implementation
// ============================================================================

func (s *MemoryStore) Read(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure("read", key); err != nil {
		return nil, err
	}

	obj, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("blob %s: %w", key, blob.ErrNotFound)
	}

	data := make([]byte, len(obj.data))
	copy(data, obj.data)

	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *MemoryStore) Write(ctx context.Context, key string, r io.Reader, opts blob.WriteOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := blob.ValidateKey(key); err != nil {
		return err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read source for %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure("write", key); err != nil {
		return err
	}

	now := s.now().UTC()
	created := now
	if existing, ok := s.objects[key]; ok {
		created = existing.props.CreatedOn
	}

	s.objects[key] = &object{
		data: data,
		props: blob.Properties{
			Key:          key,
			Size:         int64(len(data)),
			ContentType:  opts.ContentType,
			CreatedOn:    created,
			LastModified: now,
			Metadata:     opts.Metadata.Clone(),
		},
	}

	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure("delete", key); err != nil {
		return err
	}

	delete(s.objects, key)
	return nil
}

func (s *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.objects[key]
	return ok, nil
}

func (s *MemoryStore) Properties(ctx context.Context, key string) (*blob.Properties, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure("properties", key); err != nil {
		return nil, err
	}

	obj, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("blob %s: %w", key, blob.ErrNotFound)
	}

	props := obj.props
	props.Metadata = obj.props.Metadata.Clone()
	return &props, nil
}

func (s *MemoryStore) SetMetadata(ctx context.Context, key string, md blob.Metadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure("metadata", key); err != nil {
		return err
	}

	obj, ok := s.objects[key]
	if !ok {
		return fmt.Errorf("blob %s: %w", key, blob.ErrNotFound)
	}

	obj.props.Metadata = md.Clone()
	obj.props.LastModified = s.now().UTC()
	return nil
}

func (s *MemoryStore) Walk(ctx context.Context, prefix string, opts blob.WalkOptions, fn func(blob.Properties) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Snapshot matching entries so fn can call back into the store.
	s.mu.Lock()
	if err := s.takeFailure("walk", prefix); err != nil {
		s.mu.Unlock()
		return err
	}
	matched := make([]blob.Properties, 0)
	for key, obj := range s.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		props := obj.props
		if opts.IncludeMetadata {
			props.Metadata = obj.props.Metadata.Clone()
		} else {
			props.Metadata = nil
		}
		matched = append(matched, props)
	}
	s.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Key < matched[j].Key
	})

	for _, props := range matched {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(props); err != nil {
			return err
		}
	}

	return nil
}

// EnsureContainer is a no-op for memory stores.
func (s *MemoryStore) EnsureContainer(ctx context.Context) error {
	return ctx.Err()
}
