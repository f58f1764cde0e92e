package compose

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/strata/pkg/adapter/memory"
	"github.com/marmos91/strata/pkg/storage"
	"github.com/marmos91/strata/pkg/storage/storagetest"
)

func newMountManager(t *testing.T) (*MountManager, *storage.Filesystem, *storage.Filesystem) {
	t.Helper()
	first := storage.New(memory.New())
	second := storage.New(memory.New())

	mm, err := NewMountManagerWith(map[string]storage.Operator{
		"first":  first,
		"second": second,
	})
	require.NoError(t, err)
	return mm, first, second
}

func TestMountManagerRouting(t *testing.T) {
	ctx := context.Background()
	mm, first, second := newMountManager(t)
	assert.Equal(t, []string{"first", "second"}, mm.Mounts())

	require.NoError(t, mm.Write(ctx, "first://a.txt", []byte("one"), storage.Config{}))
	require.NoError(t, mm.Write(ctx, "second://a.txt", []byte("two"), storage.Config{}))

	got, err := first.Read(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "one", string(got))

	got, err = second.Read(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "two", string(got))

	got, err = mm.Read(ctx, "second://a.txt")
	require.NoError(t, err)
	assert.Equal(t, "two", string(got))

	size, err := mm.FileSize(ctx, "first://a.txt")
	require.NoError(t, err)
	assert.EqualValues(t, 3, size)
}

func TestMountManagerResolveFailures(t *testing.T) {
	ctx := context.Background()
	mm, _, _ := newMountManager(t)

	_, err := mm.Read(ctx, "a.txt")
	storagetest.AssertErrorIs(t, storage.ErrUnableToResolveFilesystemMount, err)

	_, err = mm.Read(ctx, "third://a.txt")
	storagetest.AssertErrorIs(t, storage.ErrUnableToResolveFilesystemMount, err)

	var oe *storage.OperationError
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, "third://a.txt", oe.Location)

	err = mm.Copy(ctx, "first://a.txt", "nowhere", storage.Config{})
	storagetest.AssertErrorIs(t, storage.ErrUnableToResolveFilesystemMount, err)
}

func TestMountManagerMountValidation(t *testing.T) {
	mm := NewMountManager()
	fs := storage.New(memory.New())

	for _, name := range []string{"", "a/b", "a:b", "@a", "a\\b", "a\nb"} {
		err := mm.Mount(name, fs)
		storagetest.AssertErrorIs(t, storage.ErrUnableToMountFilesystem, err)
	}

	require.NoError(t, mm.Mount("local", fs))
	storagetest.AssertErrorIs(t, storage.ErrUnableToMountFilesystem, mm.Mount("local", fs))
	storagetest.AssertErrorIs(t, storage.ErrUnableToMountFilesystem, mm.Mount("other", nil))

	op, err := mm.Unmount("local")
	require.NoError(t, err)
	assert.Same(t, fs, op)

	_, err = mm.Unmount("local")
	storagetest.AssertErrorIs(t, storage.ErrUnableToResolveFilesystemMount, err)
	assert.Empty(t, mm.Mounts())
}

func TestMountManagerErrorLocations(t *testing.T) {
	ctx := context.Background()
	mm, _, _ := newMountManager(t)

	_, err := mm.Read(ctx, "first://missing.txt")
	storagetest.AssertErrorIs(t, storage.ErrUnableToReadFile, err)

	var oe *storage.OperationError
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, "first://missing.txt", oe.Location)
}

func TestMountManagerListing(t *testing.T) {
	ctx := context.Background()
	mm, _, _ := newMountManager(t)
	require.NoError(t, mm.Write(ctx, "first://dir/a.txt", []byte("a"), storage.Config{}))

	entries, err := mm.ListContents(ctx, "first://", true).ToSlice()
	require.NoError(t, err)

	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		paths = append(paths, entry.Path())
	}
	assert.ElementsMatch(t, []string{"first://dir", "first://dir/a.txt"}, paths)

	_, err = mm.ListContents(ctx, "dir", true).ToSlice()
	storagetest.AssertErrorIs(t, storage.ErrUnableToResolveFilesystemMount, err)
}

func TestMountManagerSameMountDelegates(t *testing.T) {
	ctx := context.Background()
	mm, first, _ := newMountManager(t)
	require.NoError(t, mm.Write(ctx, "first://a.txt", []byte("a"), storage.Config{}))

	require.NoError(t, mm.Move(ctx, "first://a.txt", "first://b.txt", storage.Config{}))

	exists, err := first.FileExists(ctx, "a.txt")
	require.NoError(t, err)
	assert.False(t, exists)

	got, err := first.Read(ctx, "b.txt")
	require.NoError(t, err)
	assert.Equal(t, "a", string(got))
}

func TestMountManagerCrossMountCopy(t *testing.T) {
	ctx := context.Background()
	mm, first, second := newMountManager(t)
	require.NoError(t, mm.Write(ctx, "first://a.txt", []byte("payload"),
		storage.Config{}.WithSetting(storage.OptionVisibility, "private")))

	require.NoError(t, mm.Copy(ctx, "first://a.txt", "second://copy/a.txt", storage.Config{}))

	got, err := second.Read(ctx, "copy/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))

	v, err := second.Visibility(ctx, "copy/a.txt")
	require.NoError(t, err)
	assert.Equal(t, storage.VisibilityPrivate, v)

	exists, err := first.FileExists(ctx, "a.txt")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, mm.Copy(ctx, "first://a.txt", "second://public.txt",
		storage.Config{}.WithSetting(storage.OptionVisibility, "public")))
	v, err = second.Visibility(ctx, "public.txt")
	require.NoError(t, err)
	assert.Equal(t, storage.VisibilityPublic, v)
}

func TestMountManagerCrossMountMove(t *testing.T) {
	ctx := context.Background()
	mm, first, second := newMountManager(t)
	require.NoError(t, mm.Write(ctx, "first://a.txt", []byte("payload"), storage.Config{}))

	require.NoError(t, mm.Move(ctx, "first://a.txt", "second://b.txt", storage.Config{}))

	exists, err := first.FileExists(ctx, "a.txt")
	require.NoError(t, err)
	assert.False(t, exists)

	got, err := second.Read(ctx, "b.txt")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))
}

func TestMountManagerCrossMountMoveFailure(t *testing.T) {
	ctx := context.Background()
	mm, _, second := newMountManager(t)

	err := mm.Move(ctx, "first://missing.txt", "second://b.txt", storage.Config{})
	storagetest.AssertErrorIs(t, storage.ErrUnableToMoveFile, err)

	var oe *storage.OperationError
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, "first://missing.txt", oe.Source)
	assert.Equal(t, "second://b.txt", oe.Destination)

	exists, err := second.FileExists(ctx, "b.txt")
	require.NoError(t, err)
	assert.False(t, exists)

	err = mm.Copy(ctx, "first://missing.txt", "second://b.txt", storage.Config{})
	storagetest.AssertErrorIs(t, storage.ErrUnableToCopyFile, err)
}

func TestMountManagerSharedOperatorStillCopies(t *testing.T) {
	ctx := context.Background()
	shared := storage.New(memory.New())
	mm, err := NewMountManagerWith(map[string]storage.Operator{"a": shared, "b": shared})
	require.NoError(t, err)

	require.NoError(t, mm.Write(ctx, "a://x.txt", []byte("x"), storage.Config{}))
	require.NoError(t, mm.Move(ctx, "a://x.txt", "b://y.txt", storage.Config{}))

	exists, err := shared.FileExists(ctx, "x.txt")
	require.NoError(t, err)
	assert.False(t, exists)

	got, err := shared.Read(ctx, "y.txt")
	require.NoError(t, err)
	assert.Equal(t, "x", string(got))
}

func TestMountManagerOverPrefixedFilesystems(t *testing.T) {
	ctx := context.Background()
	backing := storage.New(memory.New())

	tenantA, err := NewPrefixedFilesystem(backing, "tenants/a")
	require.NoError(t, err)
	tenantB, err := NewPrefixedFilesystem(backing, "tenants/b")
	require.NoError(t, err)

	mm := NewMountManager()
	require.NoError(t, mm.Mount("a", tenantA))
	require.NoError(t, mm.Mount("b", tenantB))

	require.NoError(t, mm.Write(ctx, "a://doc.txt", []byte("doc"), storage.Config{}))
	require.NoError(t, mm.Copy(ctx, "a://doc.txt", "b://doc.txt", storage.Config{}))

	for _, path := range []string{"tenants/a/doc.txt", "tenants/b/doc.txt"} {
		exists, err := backing.FileExists(ctx, path)
		require.NoError(t, err)
		assert.True(t, exists, path)
	}

	_, err = mm.Read(ctx, "b://missing.txt")
	var oe *storage.OperationError
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, "b://missing.txt", oe.Location)
}
