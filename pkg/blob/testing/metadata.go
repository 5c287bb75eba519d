package testing

import (
	"testing"

	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/blob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunMetadataTests executes metadata contract tests.
func (suite *StoreTestSuite) RunMetadataTests(t *testing.T) {
	t.Run("Write_Metadata", suite.testWriteMetadata)
	t.Run("SetMetadata_Replaces", suite.testSetMetadataReplaces)
	t.Run("SetMetadata_KeepsContent", suite.testSetMetadataKeepsContent)
	t.Run("SetMetadata_NotFound", suite.testSetMetadataNotFound)
}

func (suite *StoreTestSuite) testWriteMetadata(t *testing.T) {
	store := suite.NewStore()

	mustWrite(t, store, "f1/a.jpg", []byte("img"), blob.Metadata{
		"UploaderName": "Jane",
		"UploadDate":   "2024-01-02T03:04:05Z",
	})

	props := mustProperties(t, store, "f1/a.jpg")
	uploader, ok := props.Metadata.Get("uploadername")
	require.True(t, ok)
	assert.Equal(t, "Jane", uploader)

	date, ok := props.Metadata.Get("UploadDate")
	require.True(t, ok)
	assert.Equal(t, "2024-01-02T03:04:05Z", date)
}

func (suite *StoreTestSuite) testSetMetadataReplaces(t *testing.T) {
	store := suite.NewStore()

	mustWrite(t, store, "f1/a.jpg", []byte("img"), blob.Metadata{"Note": "first"})

	require.NoError(t, store.SetMetadata(testContext(), "f1/a.jpg", blob.Metadata{"Pinned": "true"}))

	props := mustProperties(t, store, "f1/a.jpg")
	_, hasNote := props.Metadata.Get("Note")
	assert.False(t, hasNote, "SetMetadata should replace, not merge")
	pinned, ok := props.Metadata.Get("Pinned")
	require.True(t, ok)
	assert.Equal(t, "true", pinned)
}

func (suite *StoreTestSuite) testSetMetadataKeepsContent(t *testing.T) {
	store := suite.NewStore()
	data := generateTestData(300)

	mustWrite(t, store, "f1/a.bin", data, nil)
	require.NoError(t, store.SetMetadata(testContext(), "f1/a.bin", blob.Metadata{"Note": "kept"}))

	assert.Equal(t, data, mustRead(t, store, "f1/a.bin"))
}

func (suite *StoreTestSuite) testSetMetadataNotFound(t *testing.T) {
	store := suite.NewStore()

	err := store.SetMetadata(testContext(), "missing/a.bin", blob.Metadata{"Note": "x"})
	AssertErrorIs(t, blob.ErrNotFound, err)
}
