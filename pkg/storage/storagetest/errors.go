package storagetest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/strata/pkg/storage"
)

// RunErrorTests checks that adapters report failures with the right kinds.
func (suite *AdapterTestSuite) RunErrorTests(t *testing.T) {
	t.Run("Read_Missing", suite.testReadMissing)
	t.Run("ReadStream_Missing", suite.testReadStreamMissing)
	t.Run("Read_Directory", suite.testReadDirectory)
	t.Run("Adapter_ErrorsBelongToTaxonomy", suite.testAdapterErrorsBelongToTaxonomy)
	t.Run("Requested_PathRecorded", suite.testRequestedPathRecorded)
	t.Run("PathTraversal_Rejected", suite.testPathTraversalRejected)
}

func (suite *AdapterTestSuite) testReadMissing(t *testing.T) {
	fs, _ := suite.newFilesystem(t)

	_, err := fs.Read(testContext(), "missing.txt")
	AssertErrorIs(t, storage.ErrUnableToReadFile, err)
}

func (suite *AdapterTestSuite) testReadStreamMissing(t *testing.T) {
	fs, _ := suite.newFilesystem(t)

	_, err := fs.ReadStream(testContext(), "missing.txt")
	AssertErrorIs(t, storage.ErrUnableToReadFile, err)
}

func (suite *AdapterTestSuite) testReadDirectory(t *testing.T) {
	fs, _ := suite.newFilesystem(t)
	mustCreateDirectory(t, fs, "dir")

	_, err := fs.Read(testContext(), "dir")
	AssertErrorIs(t, storage.ErrUnableToReadFile, err)
}

func (suite *AdapterTestSuite) testAdapterErrorsBelongToTaxonomy(t *testing.T) {
	_, adapter := suite.newFilesystem(t)
	ctx := testContext()

	_, err := adapter.Read(ctx, "missing.txt")
	assert.True(t, storage.IsOperationError(err), "Read: %v", err)

	_, err = adapter.FileSize(ctx, "missing.txt")
	assert.True(t, storage.IsOperationError(err), "FileSize: %v", err)

	err = adapter.Move(ctx, "missing.txt", "other.txt", storage.Config{})
	assert.True(t, storage.IsOperationError(err), "Move: %v", err)

	err = adapter.Copy(ctx, "missing.txt", "other.txt", storage.Config{})
	assert.True(t, storage.IsOperationError(err), "Copy: %v", err)
}

func (suite *AdapterTestSuite) testRequestedPathRecorded(t *testing.T) {
	fs, _ := suite.newFilesystem(t)

	_, err := fs.Read(testContext(), "/dir//missing.txt")
	require.Error(t, err)

	var oe *storage.OperationError
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, "dir/missing.txt", oe.Location)
	assert.Equal(t, "/dir//missing.txt", oe.Requested)
}

func (suite *AdapterTestSuite) testPathTraversalRejected(t *testing.T) {
	fs, _ := suite.newFilesystem(t)

	err := fs.Write(testContext(), "../outside.txt", []byte("x"), storage.Config{})
	AssertErrorIs(t, storage.ErrPathTraversalDetected, err)
}
