package storagetest

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/strata/pkg/storage"
)

// RunBasicTests executes read, write and delete tests.
func (suite *AdapterTestSuite) RunBasicTests(t *testing.T) {
	t.Run("Write_Read", suite.testWriteRead)
	t.Run("Write_Overwrite", suite.testWriteOverwrite)
	t.Run("Write_Empty", suite.testWriteEmpty)
	t.Run("WriteStream_ReadStream", suite.testWriteStreamReadStream)
	t.Run("WriteStream_Large", suite.testWriteStreamLarge)
	t.Run("Write_NestedPath", suite.testWriteNestedPath)
	t.Run("Write_UnicodePath", suite.testWriteUnicodePath)
	t.Run("FileExists_Directory", suite.testFileExistsOnDirectory)
	t.Run("Delete_Success", suite.testDeleteSuccess)
	t.Run("Delete_Idempotent", suite.testDeleteIdempotent)
	t.Run("Checksum_Default", suite.testChecksumDefault)
	t.Run("Checksum_Algorithm", suite.testChecksumAlgorithm)
}

func (suite *AdapterTestSuite) testWriteRead(t *testing.T) {
	fs, _ := suite.newFilesystem(t)

	mustWrite(t, fs, "path.txt", []byte("contents"), storage.Config{})

	assertFileExists(t, fs, "path.txt", true)
	assertContents(t, fs, "path.txt", []byte("contents"))
}

func (suite *AdapterTestSuite) testWriteOverwrite(t *testing.T) {
	fs, _ := suite.newFilesystem(t)

	mustWrite(t, fs, "path.txt", []byte("a much longer initial contents"), storage.Config{})
	mustWrite(t, fs, "path.txt", []byte("new"), storage.Config{})

	assertContents(t, fs, "path.txt", []byte("new"))
}

func (suite *AdapterTestSuite) testWriteEmpty(t *testing.T) {
	fs, _ := suite.newFilesystem(t)

	mustWrite(t, fs, "empty.txt", []byte{}, storage.Config{})

	assertFileExists(t, fs, "empty.txt", true)
	assert.Empty(t, mustRead(t, fs, "empty.txt"))
}

func (suite *AdapterTestSuite) testWriteStreamReadStream(t *testing.T) {
	fs, _ := suite.newFilesystem(t)

	err := fs.WriteStream(testContext(), "stream.txt", bytes.NewReader([]byte("streamed")), storage.Config{})
	require.NoError(t, err)

	assert.Equal(t, []byte("streamed"), mustReadStream(t, fs, "stream.txt"))
}

func (suite *AdapterTestSuite) testWriteStreamLarge(t *testing.T) {
	fs, _ := suite.newFilesystem(t)
	data := generateTestData(3*1024*1024 + 17)

	err := fs.WriteStream(testContext(), "large.bin", bytes.NewReader(data), storage.Config{})
	require.NoError(t, err)

	assert.Equal(t, data, mustReadStream(t, fs, "large.bin"))

	size, err := fs.FileSize(testContext(), "large.bin")
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), size)
}

func (suite *AdapterTestSuite) testWriteNestedPath(t *testing.T) {
	fs, _ := suite.newFilesystem(t)

	mustWrite(t, fs, "some/deep/nested/file.txt", []byte("nested"), storage.Config{})

	assertContents(t, fs, "some/deep/nested/file.txt", []byte("nested"))
	assertDirectoryExists(t, fs, "some", true)
	assertDirectoryExists(t, fs, "some/deep/nested", true)
}

func (suite *AdapterTestSuite) testWriteUnicodePath(t *testing.T) {
	fs, _ := suite.newFilesystem(t)

	mustWrite(t, fs, "dir/ünïcödé fïlé.txt", []byte("unicode"), storage.Config{})

	assertContents(t, fs, "dir/ünïcödé fïlé.txt", []byte("unicode"))
	entries := mustList(t, fs, "dir", false)
	assert.Contains(t, entries, "dir/ünïcödé fïlé.txt")
}

func (suite *AdapterTestSuite) testFileExistsOnDirectory(t *testing.T) {
	fs, _ := suite.newFilesystem(t)

	mustCreateDirectory(t, fs, "dir")

	assertFileExists(t, fs, "dir", false)
	assertDirectoryExists(t, fs, "dir", true)
	assertDirectoryExists(t, fs, "missing", false)

	has, err := fs.Has(testContext(), "dir")
	require.NoError(t, err)
	assert.True(t, has)
}

func (suite *AdapterTestSuite) testDeleteSuccess(t *testing.T) {
	fs, _ := suite.newFilesystem(t)

	mustWrite(t, fs, "path.txt", []byte("contents"), storage.Config{})
	require.NoError(t, fs.Delete(testContext(), "path.txt"))

	assertFileExists(t, fs, "path.txt", false)
}

func (suite *AdapterTestSuite) testDeleteIdempotent(t *testing.T) {
	fs, _ := suite.newFilesystem(t)

	mustWrite(t, fs, "keep.txt", []byte("top"), storage.Config{})
	mustWrite(t, fs, "dir/keep.txt", []byte("nested"), storage.Config{})
	before := listPaths(t, fs)

	require.NoError(t, fs.Delete(testContext(), "missing.txt"), "Deleting a missing file should succeed")
	require.NoError(t, fs.Delete(testContext(), "dir/missing.txt"))
	require.NoError(t, fs.Delete(testContext(), "missing/nested.txt"))

	assertContents(t, fs, "keep.txt", []byte("top"))
	assertContents(t, fs, "dir/keep.txt", []byte("nested"))
	assert.Equal(t, before, listPaths(t, fs), "Deleting missing files should not change other entries")
}

// listPaths returns every path below the root, sorted.
func listPaths(t *testing.T, fs storage.Operator) []string {
	t.Helper()
	entries, err := fs.ListContents(testContext(), "", true).Sort(storage.SortByPath).ToSlice()
	require.NoError(t, err)

	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		paths = append(paths, entry.Path())
	}
	return paths
}

func (suite *AdapterTestSuite) testChecksumDefault(t *testing.T) {
	fs, _ := suite.newFilesystem(t)

	mustWrite(t, fs, "path.txt", []byte("foobar"), storage.Config{})

	sum, err := fs.Checksum(testContext(), "path.txt", storage.Config{})
	require.NoError(t, err)
	assert.Equal(t, "3858f62230ac3c915f300c664312c63f", sum)
}

func (suite *AdapterTestSuite) testChecksumAlgorithm(t *testing.T) {
	fs, _ := suite.newFilesystem(t)

	mustWrite(t, fs, "path.txt", []byte("foobar"), storage.Config{})

	cfg := storage.NewConfig(map[string]any{storage.OptionChecksumAlgo: "sha256"})
	sum, err := fs.Checksum(testContext(), "path.txt", cfg)
	require.NoError(t, err)
	assert.Equal(t, "c3ab8ff13720e8ad9047dd39466b3c8974e592c2fa383d4a3960714caef0c4f2", sum)
}
