package storagetest

import (
	"errors"
	"io"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/strata/pkg/storage"
)

// AssertErrorIs checks if the error matches the expected kind using errors.Is.
func AssertErrorIs(t *testing.T, expected error, actual error) {
	t.Helper()
	if !errors.Is(actual, expected) {
		t.Errorf("Expected error %v, got %v", expected, actual)
	}
}

func withVisibility(v storage.Visibility) storage.Config {
	return storage.NewConfig(map[string]any{storage.OptionVisibility: string(v)})
}

// mustWrite writes contents and fails the test if it errors.
func mustWrite(t *testing.T, fs storage.Operator, path string, contents []byte, config storage.Config) {
	t.Helper()
	err := fs.Write(testContext(), path, contents, config)
	require.NoError(t, err, "Write %s should succeed", path)
}

// mustRead reads a file and fails the test if it errors.
func mustRead(t *testing.T, fs storage.Operator, path string) []byte {
	t.Helper()
	contents, err := fs.Read(testContext(), path)
	require.NoError(t, err, "Read %s should succeed", path)
	return contents
}

// mustReadStream reads a file through ReadStream.
func mustReadStream(t *testing.T, fs storage.Operator, path string) []byte {
	t.Helper()
	stream, err := fs.ReadStream(testContext(), path)
	require.NoError(t, err, "ReadStream %s should succeed", path)
	defer stream.Close()

	contents, err := io.ReadAll(stream)
	require.NoError(t, err, "Reading stream should succeed")
	return contents
}

// mustCreateDirectory creates a directory and fails the test if it errors.
func mustCreateDirectory(t *testing.T, fs storage.Operator, path string) {
	t.Helper()
	err := fs.CreateDirectory(testContext(), path, storage.Config{})
	require.NoError(t, err, "CreateDirectory %s should succeed", path)
}

// mustList collects a listing, keyed by path.
func mustList(t *testing.T, fs storage.Operator, path string, deep bool) map[string]storage.StorageAttributes {
	t.Helper()
	items, err := fs.ListContents(testContext(), path, deep).ToSlice()
	require.NoError(t, err, "ListContents %s should succeed", path)

	entries := make(map[string]storage.StorageAttributes, len(items))
	for _, item := range items {
		entries[item.Path()] = item
	}
	return entries
}

// listedPaths returns the sorted paths of a listing.
func listedPaths(entries map[string]storage.StorageAttributes) []string {
	paths := make([]string, 0, len(entries))
	for p := range entries {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

// assertFileExists checks file existence.
func assertFileExists(t *testing.T, fs storage.Operator, path string, expected bool) {
	t.Helper()
	exists, err := fs.FileExists(testContext(), path)
	require.NoError(t, err, "FileExists should not error")
	assert.Equal(t, expected, exists, "File existence mismatch for %s", path)
}

// assertDirectoryExists checks directory existence.
func assertDirectoryExists(t *testing.T, fs storage.Operator, path string, expected bool) {
	t.Helper()
	exists, err := fs.DirectoryExists(testContext(), path)
	require.NoError(t, err, "DirectoryExists should not error")
	assert.Equal(t, expected, exists, "Directory existence mismatch for %s", path)
}

// assertContents checks the contents of a file.
func assertContents(t *testing.T, fs storage.Operator, path string, expected []byte) {
	t.Helper()
	assert.Equal(t, expected, mustRead(t, fs, path), "Contents mismatch for %s", path)
}

// assertVisibility checks the visibility of a path.
func assertVisibility(t *testing.T, fs storage.Operator, path string, expected storage.Visibility) {
	t.Helper()
	v, err := fs.Visibility(testContext(), path)
	require.NoError(t, err, "Visibility should not error")
	assert.Equal(t, expected, v, "Visibility mismatch for %s", path)
}

// generateTestData creates test data of specified size.
func generateTestData(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}
