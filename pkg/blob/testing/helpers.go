package testing

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/blob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mustWrite writes data under key and fails the test if it errors.
func mustWrite(t *testing.T, store blob.Store, key string, data []byte, md blob.Metadata) {
	t.Helper()
	err := store.Write(testContext(), key, bytes.NewReader(data), blob.WriteOptions{
		ContentType: "application/octet-stream",
		Metadata:    md,
	})
	require.NoError(t, err, "Write should succeed")
}

// mustRead reads the whole blob and fails the test if it errors.
func mustRead(t *testing.T, store blob.Store, key string) []byte {
	t.Helper()
	r, err := store.Read(testContext(), key)
	require.NoError(t, err, "Read should succeed")
	defer r.Close()

	data, err := io.ReadAll(r)
	require.NoError(t, err, "Reading blob should succeed")
	return data
}

// mustProperties fetches properties and fails the test if it errors.
func mustProperties(t *testing.T, store blob.Store, key string) *blob.Properties {
	t.Helper()
	props, err := store.Properties(testContext(), key)
	require.NoError(t, err, "Properties should succeed")
	return props
}

// assertExists checks blob existence.
func assertExists(t *testing.T, store blob.Store, key string, expected bool) {
	t.Helper()
	exists, err := store.Exists(testContext(), key)
	require.NoError(t, err, "Exists should not error")
	assert.Equal(t, expected, exists, "Blob existence mismatch")
}

// collectKeys walks prefix and returns the visited keys in order.
func collectKeys(t *testing.T, store blob.Store, prefix string) []string {
	t.Helper()
	var keys []string
	err := store.Walk(testContext(), prefix, blob.WalkOptions{}, func(p blob.Properties) error {
		keys = append(keys, p.Key)
		return nil
	})
	require.NoError(t, err, "Walk should succeed")
	return keys
}

// generateTestData creates test data of the given size.
func generateTestData(size int) []byte {
	data := make([]byte, size)
	for i := 0; i < size; i++ {
		data[i] = byte(i % 256)
	}
	return data
}

// AssertErrorIs checks if the error matches the expected error using errors.Is.
func AssertErrorIs(t *testing.T, expected error, actual error) {
	t.Helper()
	if !errors.Is(actual, expected) {
		t.Errorf("Expected error %v, got %v", expected, actual)
	}
}
