// Package storagetest provides a conformance suite for storage.Adapter
// implementations.
package storagetest

import (
	"context"
	"testing"

	"github.com/marmos91/strata/pkg/storage"
)

// AdapterTestSuite is a comprehensive test suite for Adapter implementations.
// It tests the interface contract, not implementation details, making it
// reusable across different backends (memory, local, S3, badger, ...).
//
// Usage:
//
//	func TestMyAdapter(t *testing.T) {
//	    suite := &storagetest.AdapterTestSuite{
//	        NewAdapter: func(t *testing.T) storage.Adapter {
//	            return myadapter.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type AdapterTestSuite struct {
	// NewAdapter is a factory function that creates a fresh, empty Adapter
	// for each test. This ensures test isolation.
	NewAdapter func(t *testing.T) storage.Adapter

	// SkipVisibility disables the visibility tests for backends that cannot
	// store it.
	SkipVisibility bool

	// SkipMimeType disables the mime type tests.
	SkipMimeType bool
}

// Run executes all tests in the suite.
func (suite *AdapterTestSuite) Run(t *testing.T) {
	t.Run("BasicOperations", suite.RunBasicTests)
	t.Run("DirectoryOperations", suite.RunDirectoryTests)
	t.Run("Listing", suite.RunListingTests)
	t.Run("Metadata", suite.RunMetadataTests)
	t.Run("Transfer", suite.RunTransferTests)
	t.Run("Errors", suite.RunErrorTests)
}

// newFilesystem creates a Filesystem over a fresh adapter and closes it when
// the test ends.
func (suite *AdapterTestSuite) newFilesystem(t *testing.T) (*storage.Filesystem, storage.Adapter) {
	t.Helper()
	adapter := suite.NewAdapter(t)
	fs := storage.New(adapter)
	t.Cleanup(func() {
		if err := fs.Close(); err != nil {
			t.Logf("closing adapter: %v", err)
		}
	})
	return fs, adapter
}

// testContext returns a standard test context.
func testContext() context.Context {
	return context.Background()
}
