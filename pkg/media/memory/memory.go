// Package memory implements media.Repository in memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/media"
)

// MemoryRepository keeps records in a map. Records are cloned on the way in
// and out so callers never alias stored state.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[int]*media.Record
	nextID  int
	now     func() time.Time
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		records: make(map[int]*media.Record),
		nextID:  1,
		now:     time.Now,
	}
}

func (r *MemoryRepository) Get(ctx context.Context, id int) (*media.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, fmt.Errorf("media %d: %w", id, media.ErrNotFound)
	}
	return rec.Clone(), nil
}

func (r *MemoryRepository) Save(ctx context.Context, rec *media.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := media.Validate(rec); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	if rec.ID == 0 {
		rec.ID = r.nextID
		rec.CreatedAt = now
	} else if existing, ok := r.records[rec.ID]; ok {
		rec.CreatedAt = existing.CreatedAt
	} else if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.ID >= r.nextID {
		r.nextID = rec.ID + 1
	}
	rec.UpdatedAt = now

	r.records[rec.ID] = rec.Clone()
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[id]; !ok {
		return fmt.Errorf("media %d: %w", id, media.ErrNotFound)
	}
	delete(r.records, id)
	return nil
}

// List returns every record ordered by id.
func (r *MemoryRepository) List(ctx context.Context) ([]*media.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*media.Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepository) Close() error {
	return nil
}
