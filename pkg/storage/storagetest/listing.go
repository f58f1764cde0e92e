package storagetest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/strata/pkg/storage"
)

// RunListingTests executes ListContents tests.
func (suite *AdapterTestSuite) RunListingTests(t *testing.T) {
	t.Run("Shallow", suite.testListShallow)
	t.Run("Deep", suite.testListDeep)
	t.Run("DistinguishesTypes", suite.testListDistinguishesTypes)
	t.Run("MissingDirectory", suite.testListMissingDirectory)
	t.Run("SubdirectoryPaths", suite.testListSubdirectoryPaths)
	t.Run("FileMetadata", suite.testListFileMetadata)
}

func (suite *AdapterTestSuite) seedTree(t *testing.T, fs storage.Operator) {
	t.Helper()
	mustWrite(t, fs, "a.txt", []byte("a"), storage.Config{})
	mustWrite(t, fs, "dir/b.txt", []byte("bb"), storage.Config{})
	mustWrite(t, fs, "dir/sub/c.txt", []byte("ccc"), storage.Config{})
	mustCreateDirectory(t, fs, "empty")
}

func (suite *AdapterTestSuite) testListShallow(t *testing.T) {
	fs, _ := suite.newFilesystem(t)
	suite.seedTree(t, fs)

	entries := mustList(t, fs, "", false)
	assert.Equal(t, []string{"a.txt", "dir", "empty"}, listedPaths(entries))
}

func (suite *AdapterTestSuite) testListDeep(t *testing.T) {
	fs, _ := suite.newFilesystem(t)
	suite.seedTree(t, fs)

	entries := mustList(t, fs, "", true)
	assert.Equal(t,
		[]string{"a.txt", "dir", "dir/b.txt", "dir/sub", "dir/sub/c.txt", "empty"},
		listedPaths(entries))
}

func (suite *AdapterTestSuite) testListDistinguishesTypes(t *testing.T) {
	fs, _ := suite.newFilesystem(t)
	suite.seedTree(t, fs)

	entries := mustList(t, fs, "", true)

	for _, file := range []string{"a.txt", "dir/b.txt", "dir/sub/c.txt"} {
		require.Contains(t, entries, file)
		assert.IsType(t, &storage.FileAttributes{}, entries[file], file)
		assert.Equal(t, storage.EntryTypeFile, entries[file].Type())
	}
	for _, dir := range []string{"dir", "dir/sub", "empty"} {
		require.Contains(t, entries, dir)
		assert.IsType(t, &storage.DirectoryAttributes{}, entries[dir], dir)
		assert.True(t, entries[dir].IsDir())
	}
}

func (suite *AdapterTestSuite) testListMissingDirectory(t *testing.T) {
	fs, _ := suite.newFilesystem(t)

	assert.Empty(t, mustList(t, fs, "missing", false))
	assert.Empty(t, mustList(t, fs, "missing", true))
}

func (suite *AdapterTestSuite) testListSubdirectoryPaths(t *testing.T) {
	fs, _ := suite.newFilesystem(t)
	suite.seedTree(t, fs)

	entries := mustList(t, fs, "dir", false)
	assert.Equal(t, []string{"dir/b.txt", "dir/sub"}, listedPaths(entries))
}

func (suite *AdapterTestSuite) testListFileMetadata(t *testing.T) {
	fs, _ := suite.newFilesystem(t)
	suite.seedTree(t, fs)

	entries := mustList(t, fs, "dir", false)
	file, ok := entries["dir/b.txt"].(*storage.FileAttributes)
	require.True(t, ok)

	size, known := file.FileSize()
	require.True(t, known, "listed files should report their size")
	assert.Equal(t, int64(2), size)
}
