// Package badger implements media.Repository on BadgerDB.
//
// Key layout:
//
//	m:<id, zero-padded to 10 digits>  → JSON-encoded media.Record
//	seq:media                         → badger sequence for new ids
//
// Zero padding keeps prefix iteration in id order.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/media"
)

const (
	recordPrefix = "m:"
	sequenceKey  = "seq:media"

	sequenceBandwidth = 100
)

// BadgerRepositoryConfig configures a BadgerRepository.
type BadgerRepositoryConfig struct {
	// DBPath is the directory holding the database files.
	DBPath string

	// InMemory runs Badger without touching disk (tests, development).
	InMemory bool
}

// BadgerRepository persists media records in BadgerDB.
//
// Thread Safety:
// Badger transactions provide isolation; mu only guards Close against
// in-flight operations.
type BadgerRepository struct {
	mu  sync.RWMutex
	db  *badger.DB
	seq *badger.Sequence
	now func() time.Time
}

// NewBadgerRepository opens (or creates) the database.
func NewBadgerRepository(ctx context.Context, config BadgerRepositoryConfig) (*BadgerRepository, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if config.DBPath == "" {
			return nil, fmt.Errorf("badger media repository: db_path is required")
		}
		opts = badger.DefaultOptions(config.DBPath)
	}
	opts = opts.WithLoggingLevel(badger.WARNING) // Reduce log noise

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", config.DBPath, err)
	}

	seq, err := db.GetSequence([]byte(sequenceKey), sequenceBandwidth)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open id sequence: %w", err)
	}

	return &BadgerRepository{db: db, seq: seq, now: time.Now}, nil
}

func recordKey(id int) []byte {
	return []byte(fmt.Sprintf("%s%010d", recordPrefix, id))
}

func (r *BadgerRepository) Get(ctx context.Context, id int) (*media.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var rec *media.Record
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = getRecord(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *BadgerRepository) Save(ctx context.Context, rec *media.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := media.Validate(rec); err != nil {
		return err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now().UTC()
	if rec.ID == 0 {
		id, err := r.allocateID()
		if err != nil {
			return err
		}
		rec.ID = id
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	return r.db.Update(func(txn *badger.Txn) error {
		existing, err := getRecord(txn, rec.ID)
		switch {
		case err == nil:
			rec.CreatedAt = existing.CreatedAt
		case errors.Is(err, media.ErrNotFound):
			if rec.CreatedAt.IsZero() {
				rec.CreatedAt = now
			}
		default:
			return err
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode media %d: %w", rec.ID, err)
		}
		return txn.Set(recordKey(rec.ID), data)
	})
}

func (r *BadgerRepository) Delete(ctx context.Context, id int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(recordKey(id)); err != nil {
			if err == badger.ErrKeyNotFound {
				return fmt.Errorf("media %d: %w", id, media.ErrNotFound)
			}
			return fmt.Errorf("failed to get media %d: %w", id, err)
		}
		return txn.Delete(recordKey(id))
	})
}

// List returns every record ordered by id.
func (r *BadgerRepository) List(ctx context.Context) ([]*media.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*media.Record
	processed := 0

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			processed++
			if processed%1000 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}

			err := it.Item().Value(func(val []byte) error {
				var rec media.Record
				if err := json.Unmarshal(val, &rec); err != nil {
					// Skip corrupted entries
					return nil
				}
				out = append(out, &rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan media records: %w", err)
	}

	return out, nil
}

// Close releases the id sequence and closes the database.
func (r *BadgerRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.seq.Release(); err != nil {
		return fmt.Errorf("failed to release id sequence: %w", err)
	}
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("failed to close BadgerDB: %w", err)
	}
	return nil
}

// allocateID draws ids from the sequence, skipping any already taken by
// records saved with an explicit id.
func (r *BadgerRepository) allocateID() (int, error) {
	for {
		next, err := r.seq.Next()
		if err != nil {
			return 0, fmt.Errorf("failed to allocate media id: %w", err)
		}
		// Sequences start at 0; host ids start at 1.
		id := int(next) + 1

		taken := false
		err = r.db.View(func(txn *badger.Txn) error {
			_, err := txn.Get(recordKey(id))
			switch {
			case err == nil:
				taken = true
				return nil
			case err == badger.ErrKeyNotFound:
				return nil
			default:
				return err
			}
		})
		if err != nil {
			return 0, fmt.Errorf("failed to allocate media id: %w", err)
		}
		if !taken {
			return id, nil
		}
	}
}

func getRecord(txn *badger.Txn, id int) (*media.Record, error) {
	item, err := txn.Get(recordKey(id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, fmt.Errorf("media %d: %w", id, media.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get media %d: %w", id, err)
	}

	var rec media.Record
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode media %d: %w", id, err)
	}
	return &rec, nil
}
