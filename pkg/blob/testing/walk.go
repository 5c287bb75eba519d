package testing

import (
	"errors"
	"testing"

	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/blob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunWalkTests executes listing contract tests.
func (suite *StoreTestSuite) RunWalkTests(t *testing.T) {
	t.Run("Walk_Prefix", suite.testWalkPrefix)
	t.Run("Walk_Empty", suite.testWalkEmpty)
	t.Run("Walk_Order", suite.testWalkOrder)
	t.Run("Walk_Metadata", suite.testWalkMetadata)
	t.Run("Walk_StopOnError", suite.testWalkStopOnError)
}

func (suite *StoreTestSuite) testWalkPrefix(t *testing.T) {
	store := suite.NewStore()

	mustWrite(t, store, "aa/1.txt", []byte("1"), nil)
	mustWrite(t, store, "aa/2.txt", []byte("2"), nil)
	mustWrite(t, store, "ab/3.txt", []byte("3"), nil)

	assert.Equal(t, []string{"aa/1.txt", "aa/2.txt"}, collectKeys(t, store, "aa/"))
	assert.Len(t, collectKeys(t, store, ""), 3)
}

func (suite *StoreTestSuite) testWalkEmpty(t *testing.T) {
	store := suite.NewStore()

	assert.Empty(t, collectKeys(t, store, "nothing/"))
}

func (suite *StoreTestSuite) testWalkOrder(t *testing.T) {
	store := suite.NewStore()

	mustWrite(t, store, "f/20240103_000000_a.txt", []byte("c"), nil)
	mustWrite(t, store, "f/20240101_000000_a.txt", []byte("a"), nil)
	mustWrite(t, store, "f/20240102_000000_a.txt", []byte("b"), nil)

	assert.Equal(t, []string{
		"f/20240101_000000_a.txt",
		"f/20240102_000000_a.txt",
		"f/20240103_000000_a.txt",
	}, collectKeys(t, store, "f/"))
}

func (suite *StoreTestSuite) testWalkMetadata(t *testing.T) {
	store := suite.NewStore()

	mustWrite(t, store, "f/a.txt", []byte("abc"), blob.Metadata{"Pinned": "true"})

	var seen []blob.Properties
	err := store.Walk(testContext(), "f/", blob.WalkOptions{IncludeMetadata: true}, func(p blob.Properties) error {
		seen = append(seen, p)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Equal(t, int64(3), seen[0].Size)
	pinned, ok := seen[0].Metadata.Get("Pinned")
	require.True(t, ok)
	assert.Equal(t, "true", pinned)
}

func (suite *StoreTestSuite) testWalkStopOnError(t *testing.T) {
	store := suite.NewStore()

	mustWrite(t, store, "f/1.txt", []byte("1"), nil)
	mustWrite(t, store, "f/2.txt", []byte("2"), nil)

	stop := errors.New("stop")
	visited := 0
	err := store.Walk(testContext(), "f/", blob.WalkOptions{}, func(blob.Properties) error {
		visited++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, visited)
}
