package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/strata/pkg/storage"
	"github.com/marmos91/strata/pkg/storage/storagetest"
)

func newTestAdapter(t *testing.T, opts ...Option) *Adapter {
	t.Helper()
	a, err := New(t.TempDir(), opts...)
	require.NoError(t, err, "Failed to create local adapter")
	return a
}

// TestLocalAdapter runs the complete adapter test suite against the local
// filesystem implementation.
func TestLocalAdapter(t *testing.T) {
	suite := &storagetest.AdapterTestSuite{
		NewAdapter: func(t *testing.T) storage.Adapter {
			return newTestAdapter(t)
		},
	}

	suite.Run(t)
}

func TestLocalAdapterCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "root")

	a, err := New(root)
	require.NoError(t, err)

	info, err := os.Stat(a.Root())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLocalAdapterRequiresRoot(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestLocalAdapterPermissions(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)

	cfg := storage.NewConfig(map[string]any{
		storage.OptionVisibility:          "private",
		storage.OptionDirectoryVisibility: "public",
	})
	require.NoError(t, a.Write(ctx, "dir/file.txt", []byte("x"), cfg))

	info, err := os.Stat(filepath.Join(a.Root(), "dir", "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	info, err = os.Stat(filepath.Join(a.Root(), "dir"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())
}

func TestLocalAdapterLeavesNoTemporaryFiles(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, a.Write(ctx, "file.txt", []byte("contents"), storage.Config{}))
	}

	entries, err := os.ReadDir(a.Root())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "file.txt", entries[0].Name())
}

func TestLocalAdapterSymbolicLinks(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T, h LinkHandling) *Adapter {
		a := newTestAdapter(t, WithLinkHandling(h))
		require.NoError(t, a.Write(ctx, "file.txt", []byte("x"), storage.Config{}))
		require.NoError(t, os.Symlink(
			filepath.Join(a.Root(), "file.txt"),
			filepath.Join(a.Root(), "link.txt"),
		))
		return a
	}

	t.Run("Disallow", func(t *testing.T) {
		a := setup(t, DisallowLinks)
		fs := storage.New(a)

		for _, deep := range []bool{false, true} {
			_, err := fs.ListContents(ctx, "", deep).ToSlice()
			assert.ErrorIs(t, err, storage.ErrSymbolicLinkEncountered, "deep=%v", deep)
		}
	})

	t.Run("Skip", func(t *testing.T) {
		a := setup(t, SkipLinks)
		fs := storage.New(a)

		for _, deep := range []bool{false, true} {
			items, err := fs.ListContents(ctx, "", deep).ToSlice()
			require.NoError(t, err)
			require.Len(t, items, 1, "deep=%v", deep)
			assert.Equal(t, "file.txt", items[0].Path())
		}
	})
}

func TestLocalAdapterDeepListingEarlyStop(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)
	for _, p := range []string{"a/1.txt", "a/2.txt", "b/3.txt", "b/c/4.txt"} {
		require.NoError(t, a.Write(ctx, p, []byte(p), storage.Config{}))
	}

	count := 0
	for _, err := range a.ListContents(ctx, "", true) {
		require.NoError(t, err)
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestLocalAdapterDeleteRootEmptiesIt(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)
	require.NoError(t, a.Write(ctx, "dir/file.txt", []byte("x"), storage.Config{}))

	require.NoError(t, a.DeleteDirectory(ctx, ""))

	entries, err := os.ReadDir(a.Root())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLocalAdapterDeleteDirectoryPath(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)
	require.NoError(t, a.CreateDirectory(ctx, "dir", storage.Config{}))

	err := a.Delete(ctx, "dir")
	assert.ErrorIs(t, err, storage.ErrUnableToDeleteFile)
}

func TestLocalAdapterFailedMoveCreatesNoDirectories(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	a, err := New(root)
	require.NoError(t, err)

	err = a.Move(ctx, "missing.txt", "new/nested/destination.txt", storage.Config{})
	storagetest.AssertErrorIs(t, storage.ErrUnableToMoveFile, err)

	_, statErr := os.Stat(filepath.Join(root, "new"))
	assert.True(t, os.IsNotExist(statErr), "Failed move should not create parent directories")

	require.NoError(t, a.CreateDirectory(ctx, "dir", storage.Config{}))
	err = a.Move(ctx, "dir", "other/dir", storage.Config{})
	storagetest.AssertErrorIs(t, storage.ErrUnableToMoveFile, err)

	_, statErr = os.Stat(filepath.Join(root, "other"))
	assert.True(t, os.IsNotExist(statErr))
}
