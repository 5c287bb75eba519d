package testing

import (
	"bytes"
	"testing"

	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/blob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunBasicTests executes read/write/delete contract tests.
func (suite *StoreTestSuite) RunBasicTests(t *testing.T) {
	t.Run("Write_Read", suite.testWriteRead)
	t.Run("Write_Overwrite", suite.testWriteOverwrite)
	t.Run("Write_InvalidKey", suite.testWriteInvalidKey)
	t.Run("Read_NotFound", suite.testReadNotFound)
	t.Run("Exists", suite.testExists)
	t.Run("Delete_Success", suite.testDeleteSuccess)
	t.Run("Delete_Idempotent", suite.testDeleteIdempotent)
	t.Run("Properties_Size", suite.testPropertiesSize)
	t.Run("Properties_NotFound", suite.testPropertiesNotFound)
}

// ============================================================================
// Read / Write
// ============================================================================

func (suite *StoreTestSuite) testWriteRead(t *testing.T) {
	store := suite.NewStore()
	data := generateTestData(4096)

	mustWrite(t, store, "a1b2/photo.jpg", data, nil)

	assert.Equal(t, data, mustRead(t, store, "a1b2/photo.jpg"))
}

func (suite *StoreTestSuite) testWriteOverwrite(t *testing.T) {
	store := suite.NewStore()

	mustWrite(t, store, "a1b2/doc.pdf", []byte("old data"), blob.Metadata{"UploaderName": "old"})
	mustWrite(t, store, "a1b2/doc.pdf", []byte("new data that is longer"), blob.Metadata{"UploaderName": "new"})

	assert.Equal(t, []byte("new data that is longer"), mustRead(t, store, "a1b2/doc.pdf"))

	props := mustProperties(t, store, "a1b2/doc.pdf")
	assert.Equal(t, int64(len("new data that is longer")), props.Size)
	uploader, ok := props.Metadata.Get("UploaderName")
	require.True(t, ok)
	assert.Equal(t, "new", uploader)
}

func (suite *StoreTestSuite) testWriteInvalidKey(t *testing.T) {
	store := suite.NewStore()

	for _, key := range []string{"", "/abs/path", "a/../b", "dir/"} {
		err := store.Write(testContext(), key, bytes.NewReader([]byte("x")), blob.WriteOptions{})
		AssertErrorIs(t, blob.ErrInvalidKey, err)
	}
}

func (suite *StoreTestSuite) testReadNotFound(t *testing.T) {
	store := suite.NewStore()

	_, err := store.Read(testContext(), "missing/file.txt")
	AssertErrorIs(t, blob.ErrNotFound, err)
}

func (suite *StoreTestSuite) testExists(t *testing.T) {
	store := suite.NewStore()

	assertExists(t, store, "f1/a.txt", false)
	mustWrite(t, store, "f1/a.txt", []byte("a"), nil)
	assertExists(t, store, "f1/a.txt", true)
}

// ============================================================================
// Delete
// ============================================================================

func (suite *StoreTestSuite) testDeleteSuccess(t *testing.T) {
	store := suite.NewStore()

	mustWrite(t, store, "f1/a.txt", []byte("a"), nil)
	require.NoError(t, store.Delete(testContext(), "f1/a.txt"))

	assertExists(t, store, "f1/a.txt", false)
}

func (suite *StoreTestSuite) testDeleteIdempotent(t *testing.T) {
	store := suite.NewStore()

	require.NoError(t, store.Delete(testContext(), "never/existed.txt"))
	require.NoError(t, store.Delete(testContext(), "never/existed.txt"))
}

// ============================================================================
// Properties
// ============================================================================

func (suite *StoreTestSuite) testPropertiesSize(t *testing.T) {
	store := suite.NewStore()

	mustWrite(t, store, "f1/size.bin", generateTestData(1234), nil)

	props := mustProperties(t, store, "f1/size.bin")
	assert.Equal(t, "f1/size.bin", props.Key)
	assert.Equal(t, int64(1234), props.Size)
	assert.False(t, props.CreatedOrModified().IsZero(), "blob should carry a timestamp")
}

func (suite *StoreTestSuite) testPropertiesNotFound(t *testing.T) {
	store := suite.NewStore()

	_, err := store.Properties(testContext(), "missing/file.txt")
	AssertErrorIs(t, blob.ErrNotFound, err)
}
