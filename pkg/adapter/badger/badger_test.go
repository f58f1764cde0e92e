package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/strata/pkg/storage"
	"github.com/marmos91/strata/pkg/storage/storagetest"
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	a, err := New(Config{InMemory: true})
	require.NoError(t, err, "Failed to open in-memory BadgerDB")
	return a
}

// TestBadgerAdapter runs the complete adapter test suite against the
// BadgerDB implementation.
func TestBadgerAdapter(t *testing.T) {
	suite := &storagetest.AdapterTestSuite{
		NewAdapter: func(t *testing.T) storage.Adapter {
			return newTestAdapter(t)
		},
	}

	suite.Run(t)
}

func TestBadgerAdapterPersistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	a, err := New(Config{Path: dir})
	require.NoError(t, err)
	require.NoError(t, a.Write(ctx, "dir/file.txt", []byte("persisted"), storage.Config{}))
	require.NoError(t, a.Close())

	reopened, err := New(Config{Path: dir})
	require.NoError(t, err)
	defer reopened.Close()

	contents, err := reopened.Read(ctx, "dir/file.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("persisted"), contents)
}

func TestBadgerAdapterRequiresPath(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{InMemory: true, DefaultVisibility: "hidden"})
	assert.ErrorIs(t, err, storage.ErrInvalidVisibility)
}

func TestBadgerAdapterDefaultVisibility(t *testing.T) {
	ctx := context.Background()
	a, err := New(Config{InMemory: true, DefaultVisibility: "private"})
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Write(ctx, "file.txt", []byte("x"), storage.Config{}))

	attrs, err := a.Visibility(ctx, "file.txt")
	require.NoError(t, err)
	assert.Equal(t, storage.VisibilityPrivate, attrs.Visibility())
}

func TestBadgerAdapterSiblingPrefixes(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)
	defer a.Close()

	require.NoError(t, a.Write(ctx, "dir/a.txt", []byte("a"), storage.Config{}))
	require.NoError(t, a.Write(ctx, "dir-other/b.txt", []byte("b"), storage.Config{}))

	var paths []string
	for attrs, err := range a.ListContents(ctx, "dir", true) {
		require.NoError(t, err)
		paths = append(paths, attrs.Path())
	}
	assert.Equal(t, []string{"dir/a.txt"}, paths)
}
