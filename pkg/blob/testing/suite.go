package testing

import (
	"context"
	"testing"

	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/blob"
)

// StoreTestSuite is a contract test suite for blob.Store implementations.
// It exercises the interface, not implementation details, so the same tests
// run against memory, filesystem and S3 stores.
//
// Usage:
//
//	func TestMyStore(t *testing.T) {
//	    suite := &blobtesting.StoreTestSuite{
//	        NewStore: func() blob.Store {
//	            return mystore.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore creates a fresh, empty store for each test.
	NewStore func() blob.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("BasicOperations", suite.RunBasicTests)
	t.Run("MetadataOperations", suite.RunMetadataTests)
	t.Run("WalkOperations", suite.RunWalkTests)
}

func testContext() context.Context {
	return context.Background()
}
