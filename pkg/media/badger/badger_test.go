package badger

import (
	"context"
	"testing"

	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/media"
	mediatesting "github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/media/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerRepository(t *testing.T) {
	suite := &mediatesting.RepositoryTestSuite{
		NewRepository: func() media.Repository {
			repo, err := NewBadgerRepository(context.Background(), BadgerRepositoryConfig{InMemory: true})
			if err != nil {
				t.Fatalf("Failed to create BadgerRepository: %v", err)
			}
			return repo
		},
	}

	suite.Run(t)
}

func TestBadgerRepository_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	repo, err := NewBadgerRepository(ctx, BadgerRepositoryConfig{DBPath: dir})
	require.NoError(t, err)

	rec := &media.Record{ContentTypeAlias: "Image", File: `{"src":"/media/a1/x.jpg"}`}
	require.NoError(t, repo.Save(ctx, rec))
	require.NoError(t, repo.Close())

	reopened, err := NewBadgerRepository(ctx, BadgerRepositoryConfig{DBPath: dir})
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.File, got.File)
}

func TestNewBadgerRepository_RequiresPath(t *testing.T) {
	_, err := NewBadgerRepository(context.Background(), BadgerRepositoryConfig{})
	assert.Error(t, err)
}
