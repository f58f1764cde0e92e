package storagetest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/strata/pkg/storage"
)

// RunDirectoryTests executes directory creation and deletion tests.
func (suite *AdapterTestSuite) RunDirectoryTests(t *testing.T) {
	t.Run("CreateDirectory_Basic", suite.testCreateDirectoryBasic)
	t.Run("CreateDirectory_Idempotent", suite.testCreateDirectoryIdempotent)
	t.Run("CreateDirectory_Nested", suite.testCreateDirectoryNested)
	t.Run("DeleteDirectory_Recursive", suite.testDeleteDirectoryRecursive)
	t.Run("DeleteDirectory_Idempotent", suite.testDeleteDirectoryIdempotent)
	t.Run("DeleteDirectory_KeepsSiblings", suite.testDeleteDirectoryKeepsSiblings)
}

func (suite *AdapterTestSuite) testCreateDirectoryBasic(t *testing.T) {
	fs, _ := suite.newFilesystem(t)

	mustCreateDirectory(t, fs, "dir")

	assertDirectoryExists(t, fs, "dir", true)
	entries := mustList(t, fs, "", false)
	require.Contains(t, entries, "dir")
	require.True(t, entries["dir"].IsDir())
}

func (suite *AdapterTestSuite) testCreateDirectoryIdempotent(t *testing.T) {
	fs, _ := suite.newFilesystem(t)

	mustCreateDirectory(t, fs, "dir")
	mustCreateDirectory(t, fs, "dir")

	assertDirectoryExists(t, fs, "dir", true)
}

func (suite *AdapterTestSuite) testCreateDirectoryNested(t *testing.T) {
	fs, _ := suite.newFilesystem(t)

	mustCreateDirectory(t, fs, "a/b/c")

	assertDirectoryExists(t, fs, "a/b/c", true)
	assertDirectoryExists(t, fs, "a", true)
}

func (suite *AdapterTestSuite) testDeleteDirectoryRecursive(t *testing.T) {
	fs, _ := suite.newFilesystem(t)

	mustWrite(t, fs, "dir/file.txt", []byte("1"), storage.Config{})
	mustWrite(t, fs, "dir/sub/file.txt", []byte("2"), storage.Config{})
	mustCreateDirectory(t, fs, "dir/empty")

	require.NoError(t, fs.DeleteDirectory(testContext(), "dir"))

	assertDirectoryExists(t, fs, "dir", false)
	assertFileExists(t, fs, "dir/file.txt", false)
	assertFileExists(t, fs, "dir/sub/file.txt", false)
	require.Empty(t, mustList(t, fs, "dir", true))
}

func (suite *AdapterTestSuite) testDeleteDirectoryIdempotent(t *testing.T) {
	fs, _ := suite.newFilesystem(t)

	require.NoError(t, fs.DeleteDirectory(testContext(), "missing"))
}

func (suite *AdapterTestSuite) testDeleteDirectoryKeepsSiblings(t *testing.T) {
	fs, _ := suite.newFilesystem(t)

	mustWrite(t, fs, "dir/file.txt", []byte("1"), storage.Config{})
	mustWrite(t, fs, "dir-sibling/file.txt", []byte("2"), storage.Config{})
	mustWrite(t, fs, "dirfile.txt", []byte("3"), storage.Config{})

	require.NoError(t, fs.DeleteDirectory(testContext(), "dir"))

	assertFileExists(t, fs, "dir-sibling/file.txt", true)
	assertFileExists(t, fs, "dirfile.txt", true)
}
