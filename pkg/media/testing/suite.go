// Package testing provides a contract test suite for media.Repository
// implementations.
package testing

import (
	"context"
	"testing"

	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RepositoryTestSuite runs the same tests against any media.Repository.
type RepositoryTestSuite struct {
	// NewRepository creates a fresh, empty repository for each test.
	NewRepository func() media.Repository
}

// Run executes all tests in the suite.
func (suite *RepositoryTestSuite) Run(t *testing.T) {
	t.Run("Save_AssignsID", suite.testSaveAssignsID)
	t.Run("Save_Update", suite.testSaveUpdate)
	t.Run("Save_ExplicitID", suite.testSaveExplicitID)
	t.Run("Save_Invalid", suite.testSaveInvalid)
	t.Run("Get_NotFound", suite.testGetNotFound)
	t.Run("Delete", suite.testDelete)
	t.Run("List_Ordered", suite.testListOrdered)
}

func (suite *RepositoryTestSuite) newRepository(t *testing.T) media.Repository {
	t.Helper()
	repo := suite.NewRepository()
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func (suite *RepositoryTestSuite) testSaveAssignsID(t *testing.T) {
	ctx := context.Background()
	repo := suite.newRepository(t)

	first := &media.Record{ContentTypeAlias: "Image", File: "/media/a1/x.jpg"}
	second := &media.Record{ContentTypeAlias: "File", File: "/media/b2/y.pdf"}
	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Save(ctx, second))

	assert.Greater(t, first.ID, 0)
	assert.Greater(t, second.ID, 0)
	assert.NotEqual(t, first.ID, second.ID)
	assert.False(t, first.UpdatedAt.IsZero())

	got, err := repo.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "/media/a1/x.jpg", got.File)
}

func (suite *RepositoryTestSuite) testSaveUpdate(t *testing.T) {
	ctx := context.Background()
	repo := suite.newRepository(t)

	rec := &media.Record{ContentTypeAlias: "Image", File: "/media/a1/x.jpg", Bytes: 10}
	require.NoError(t, repo.Save(ctx, rec))
	created := rec.CreatedAt

	rec.File = "/media/a1/z.jpg"
	rec.Bytes = 20
	require.NoError(t, repo.Save(ctx, rec))

	got, err := repo.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "/media/a1/z.jpg", got.File)
	assert.Equal(t, int64(20), got.Bytes)
	assert.True(t, created.Equal(got.CreatedAt), "CreatedAt should survive updates")
}

func (suite *RepositoryTestSuite) testSaveExplicitID(t *testing.T) {
	ctx := context.Background()
	repo := suite.newRepository(t)

	require.NoError(t, repo.Save(ctx, &media.Record{ID: 1, ContentTypeAlias: "Image"}))

	next := &media.Record{ContentTypeAlias: "Image"}
	require.NoError(t, repo.Save(ctx, next))
	assert.NotEqual(t, 1, next.ID, "allocated ids must not collide with explicit ones")
}

func (suite *RepositoryTestSuite) testSaveInvalid(t *testing.T) {
	ctx := context.Background()
	repo := suite.newRepository(t)

	assert.ErrorIs(t, repo.Save(ctx, nil), media.ErrInvalidRecord)
	assert.ErrorIs(t, repo.Save(ctx, &media.Record{}), media.ErrInvalidRecord)
	assert.ErrorIs(t, repo.Save(ctx, &media.Record{ID: -1, ContentTypeAlias: "Image"}), media.ErrInvalidRecord)
}

func (suite *RepositoryTestSuite) testGetNotFound(t *testing.T) {
	ctx := context.Background()
	repo := suite.newRepository(t)

	_, err := repo.Get(ctx, 42)
	assert.ErrorIs(t, err, media.ErrNotFound)
}

func (suite *RepositoryTestSuite) testDelete(t *testing.T) {
	ctx := context.Background()
	repo := suite.newRepository(t)

	rec := &media.Record{ContentTypeAlias: "Image"}
	require.NoError(t, repo.Save(ctx, rec))
	require.NoError(t, repo.Delete(ctx, rec.ID))

	_, err := repo.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, media.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, rec.ID), media.ErrNotFound)
}

func (suite *RepositoryTestSuite) testListOrdered(t *testing.T) {
	ctx := context.Background()
	repo := suite.newRepository(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Save(ctx, &media.Record{ContentTypeAlias: "Image"}))
	}

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Less(t, list[0].ID, list[1].ID)
	assert.Less(t, list[1].ID, list[2].ID)
}
