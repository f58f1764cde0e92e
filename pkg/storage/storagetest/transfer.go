package storagetest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/strata/pkg/storage"
)

// RunTransferTests executes copy and move tests.
func (suite *AdapterTestSuite) RunTransferTests(t *testing.T) {
	t.Run("Copy_Basic", suite.testCopyBasic)
	t.Run("Copy_RetainsVisibility", suite.testCopyRetainsVisibility)
	t.Run("Copy_ExplicitVisibility", suite.testCopyExplicitVisibility)
	t.Run("Copy_Overwrite", suite.testCopyOverwrite)
	t.Run("Copy_MissingSource", suite.testCopyMissingSource)
	t.Run("Move_Basic", suite.testMoveBasic)
	t.Run("Move_RetainsVisibility", suite.testMoveRetainsVisibility)
	t.Run("Move_MissingSource", suite.testMoveMissingSource)
	t.Run("Move_SamePath", suite.testMoveSamePath)
}

func (suite *AdapterTestSuite) testCopyBasic(t *testing.T) {
	fs, _ := suite.newFilesystem(t)
	mustWrite(t, fs, "source.txt", []byte("contents to be copied"), storage.Config{})

	require.NoError(t, fs.Copy(testContext(), "source.txt", "nested/destination.txt", storage.Config{}))

	assertFileExists(t, fs, "source.txt", true)
	assertContents(t, fs, "nested/destination.txt", []byte("contents to be copied"))
}

func (suite *AdapterTestSuite) testCopyRetainsVisibility(t *testing.T) {
	if suite.SkipVisibility {
		t.Skip("Adapter does not support visibility")
	}
	fs, _ := suite.newFilesystem(t)
	mustWrite(t, fs, "source.txt", []byte("contents to be copied"), withVisibility(storage.VisibilityPublic))

	require.NoError(t, fs.Copy(testContext(), "source.txt", "destination.txt", storage.Config{}))

	assertContents(t, fs, "destination.txt", []byte("contents to be copied"))
	assertVisibility(t, fs, "destination.txt", storage.VisibilityPublic)
}

func (suite *AdapterTestSuite) testCopyExplicitVisibility(t *testing.T) {
	if suite.SkipVisibility {
		t.Skip("Adapter does not support visibility")
	}
	fs, _ := suite.newFilesystem(t)
	mustWrite(t, fs, "source.txt", []byte("contents"), withVisibility(storage.VisibilityPublic))

	require.NoError(t, fs.Copy(testContext(), "source.txt", "destination.txt", withVisibility(storage.VisibilityPrivate)))

	assertVisibility(t, fs, "source.txt", storage.VisibilityPublic)
	assertVisibility(t, fs, "destination.txt", storage.VisibilityPrivate)
}

func (suite *AdapterTestSuite) testCopyOverwrite(t *testing.T) {
	fs, _ := suite.newFilesystem(t)
	mustWrite(t, fs, "source.txt", []byte("new"), storage.Config{})
	mustWrite(t, fs, "destination.txt", []byte("old and longer"), storage.Config{})

	require.NoError(t, fs.Copy(testContext(), "source.txt", "destination.txt", storage.Config{}))

	assertContents(t, fs, "destination.txt", []byte("new"))
}

func (suite *AdapterTestSuite) testCopyMissingSource(t *testing.T) {
	fs, _ := suite.newFilesystem(t)

	err := fs.Copy(testContext(), "missing.txt", "destination.txt", storage.Config{})
	AssertErrorIs(t, storage.ErrUnableToCopyFile, err)
	assertFileExists(t, fs, "destination.txt", false)
}

func (suite *AdapterTestSuite) testMoveBasic(t *testing.T) {
	fs, _ := suite.newFilesystem(t)
	mustWrite(t, fs, "source.txt", []byte("contents to be moved"), storage.Config{})

	require.NoError(t, fs.Move(testContext(), "source.txt", "nested/destination.txt", storage.Config{}))

	assertFileExists(t, fs, "source.txt", false)
	assertContents(t, fs, "nested/destination.txt", []byte("contents to be moved"))
}

func (suite *AdapterTestSuite) testMoveRetainsVisibility(t *testing.T) {
	if suite.SkipVisibility {
		t.Skip("Adapter does not support visibility")
	}
	fs, _ := suite.newFilesystem(t)
	mustWrite(t, fs, "source.txt", []byte("contents"), withVisibility(storage.VisibilityPrivate))

	require.NoError(t, fs.Move(testContext(), "source.txt", "destination.txt", storage.Config{}))

	assertVisibility(t, fs, "destination.txt", storage.VisibilityPrivate)
}

func (suite *AdapterTestSuite) testMoveMissingSource(t *testing.T) {
	fs, _ := suite.newFilesystem(t)

	err := fs.Move(testContext(), "missing.txt", "destination.txt", storage.Config{})
	AssertErrorIs(t, storage.ErrUnableToMoveFile, err)
}

func (suite *AdapterTestSuite) testMoveSamePath(t *testing.T) {
	fs, _ := suite.newFilesystem(t)
	mustWrite(t, fs, "path.txt", []byte("contents"), storage.Config{})

	require.NoError(t, fs.Move(testContext(), "path.txt", "/path.txt", storage.Config{}))

	assertContents(t, fs, "path.txt", []byte("contents"))
}
