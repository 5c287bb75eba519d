package memory

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/blob"
	blobtesting "github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/blob/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMemoryStore runs the complete blob.Store suite against MemoryStore.
func TestMemoryStore(t *testing.T) {
	suite := &blobtesting.StoreTestSuite{
		NewStore: func() blob.Store {
			return NewMemoryStore()
		},
	}

	suite.Run(t)
}

func TestMemoryStore_PreservesCreatedOnAcrossOverwrite(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(WithClock(func() time.Time { return now }))

	require.NoError(t, store.Write(ctx, "f/a.txt", bytes.NewReader([]byte("1")), blob.WriteOptions{}))
	now = now.Add(time.Hour)
	require.NoError(t, store.Write(ctx, "f/a.txt", bytes.NewReader([]byte("22")), blob.WriteOptions{}))

	props, err := store.Properties(ctx, "f/a.txt")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), props.CreatedOn)
	assert.Equal(t, time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC), props.LastModified)
}

func TestMemoryStore_FailNext(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	boom := errors.New("boom")

	store.FailNext("write", "", boom)

	err := store.Write(ctx, "f/a.txt", bytes.NewReader([]byte("1")), blob.WriteOptions{})
	assert.ErrorIs(t, err, boom)

	// Failure is consumed by the first call.
	require.NoError(t, store.Write(ctx, "f/a.txt", bytes.NewReader([]byte("1")), blob.WriteOptions{}))
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewMemoryStore()
	_, err := store.Read(ctx, "f/a.txt")
	assert.ErrorIs(t, err, context.Canceled)
}
