package billyfs

import (
	"context"
	"errors"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/strata/pkg/storage"
	"github.com/marmos91/strata/pkg/storage/storagetest"
	"github.com/marmos91/strata/pkg/storage/visibility"
)

// TestMemfsAdapter runs the complete adapter test suite against an
// in-memory billy filesystem.
func TestMemfsAdapter(t *testing.T) {
	suite := &storagetest.AdapterTestSuite{
		NewAdapter: func(t *testing.T) storage.Adapter {
			return New(memfs.New())
		},
	}

	suite.Run(t)
}

// TestOSAdapter runs the suite against osfs bound to a temporary directory.
func TestOSAdapter(t *testing.T) {
	suite := &storagetest.AdapterTestSuite{
		NewAdapter: func(t *testing.T) storage.Adapter {
			a, err := NewOS(t.TempDir())
			require.NoError(t, err)
			return a
		},
	}

	suite.Run(t)
}

func TestNewOSRequiresRoot(t *testing.T) {
	_, err := NewOS("")
	assert.Error(t, err)
}

func TestWriteAppliesModeOnOverwrite(t *testing.T) {
	ctx := context.Background()
	mem := memfs.New()
	a := New(mem)

	private := storage.Config{}.WithSetting(storage.OptionVisibility, "private")
	require.NoError(t, a.Write(ctx, "file.txt", []byte("one"), private))

	info, err := mem.Stat("file.txt")
	require.NoError(t, err)
	assert.Equal(t, visibility.DefaultFilePrivate, info.Mode().Perm())

	require.NoError(t, a.Write(ctx, "file.txt", []byte("two"), storage.Config{}))

	info, err = mem.Stat("file.txt")
	require.NoError(t, err)
	assert.Equal(t, visibility.DefaultFilePublic, info.Mode().Perm())

	got, err := util.ReadFile(mem, "file.txt")
	require.NoError(t, err)
	assert.Equal(t, "two", string(got))
}

func TestSetVisibilityRewritesFile(t *testing.T) {
	ctx := context.Background()
	a := New(memfs.New())

	require.NoError(t, a.Write(ctx, "dir/file.txt", []byte("contents"), storage.Config{}))
	require.NoError(t, a.SetVisibility(ctx, "dir/file.txt", storage.VisibilityPrivate))

	attrs, err := a.Visibility(ctx, "dir/file.txt")
	require.NoError(t, err)
	assert.Equal(t, storage.VisibilityPrivate, attrs.Visibility())

	got, err := a.Read(ctx, "dir/file.txt")
	require.NoError(t, err)
	assert.Equal(t, "contents", string(got))
}

func TestSetDirectoryVisibilityWithoutChmod(t *testing.T) {
	ctx := context.Background()
	a := New(memfs.New())

	require.NoError(t, a.CreateDirectory(ctx, "dir", storage.Config{}))

	// Directories default to private, so asking for private is a no-op.
	require.NoError(t, a.SetVisibility(ctx, "dir", storage.VisibilityPrivate))

	err := a.SetVisibility(ctx, "dir", storage.VisibilityPublic)
	storagetest.AssertErrorIs(t, storage.ErrUnableToSetVisibility, err)
}

func TestDirectoryVisibilityOnCreate(t *testing.T) {
	ctx := context.Background()
	mem := memfs.New()
	a := New(mem)

	cfg := storage.Config{}.WithSetting(storage.OptionDirectoryVisibility, "public")
	require.NoError(t, a.Write(ctx, "a/b/file.txt", []byte("x"), cfg))

	for _, dir := range []string{"a", "a/b"} {
		info, err := mem.Stat(dir)
		require.NoError(t, err)
		assert.Equal(t, visibility.DefaultDirectoryPublic, info.Mode().Perm(), dir)
	}
}

func TestMoveLeavesSimilarNamesAlone(t *testing.T) {
	ctx := context.Background()
	a := New(memfs.New())

	require.NoError(t, a.Write(ctx, "report.txt", []byte("current"), storage.Config{}))
	require.NoError(t, a.Write(ctx, "report.txt.bak", []byte("backup"), storage.Config{}))

	require.NoError(t, a.Move(ctx, "report.txt", "archive/report.txt", storage.Config{}))

	got, err := a.Read(ctx, "report.txt.bak")
	require.NoError(t, err)
	assert.Equal(t, "backup", string(got))

	exists, err := a.FileExists(ctx, "archive/report.txt.bak")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestListingReleasesLock(t *testing.T) {
	ctx := context.Background()
	a := New(memfs.New())

	require.NoError(t, a.Write(ctx, "one.txt", []byte("1"), storage.Config{}))
	require.NoError(t, a.Write(ctx, "two.txt", []byte("2"), storage.Config{}))

	for attrs, err := range a.ListContents(ctx, "", false) {
		require.NoError(t, err)
		require.NoError(t, a.Delete(ctx, attrs.Path()))
	}

	exists, err := a.FileExists(ctx, "one.txt")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestListingSymlink(t *testing.T) {
	ctx := context.Background()
	mem := memfs.New()
	a := New(mem)

	require.NoError(t, a.Write(ctx, "target.txt", []byte("x"), storage.Config{}))
	require.NoError(t, mem.Symlink("target.txt", "link.txt"))

	var listErr error
	for _, err := range a.ListContents(ctx, "", false) {
		if err != nil {
			listErr = err
		}
	}
	storagetest.AssertErrorIs(t, storage.ErrSymbolicLinkEncountered, listErr)
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := New(memfs.New())

	err := a.Write(ctx, "file.txt", []byte("x"), storage.Config{})
	storagetest.AssertErrorIs(t, storage.ErrUnableToWriteFile, err)

	for _, err := range a.ListContents(ctx, "", true) {
		storagetest.AssertErrorIs(t, storage.ErrUnableToListContents, err)
	}
}

// failingReader returns some bytes and then an error.
type failingReader struct {
	data []byte
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestFailedOverwriteKeepsOriginal(t *testing.T) {
	for name, newAdapter := range map[string]func(t *testing.T) *Adapter{
		"memfs": func(t *testing.T) *Adapter { return New(memfs.New()) },
		"osfs": func(t *testing.T) *Adapter {
			a, err := NewOS(t.TempDir())
			require.NoError(t, err)
			return a
		},
	} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a := newAdapter(t)
			require.NoError(t, a.Write(ctx, "dir/file.txt", []byte("original"), storage.Config{}))

			boom := errors.New("stream broke")
			err := a.WriteStream(ctx, "dir/file.txt", &failingReader{data: []byte("partial"), err: boom}, storage.Config{})
			storagetest.AssertErrorIs(t, storage.ErrUnableToWriteFile, err)
			assert.ErrorIs(t, err, boom)

			got, err := a.Read(ctx, "dir/file.txt")
			require.NoError(t, err)
			assert.Equal(t, "original", string(got))

			// Copy onto an existing destination from a missing source
			err = a.Copy(ctx, "dir/missing.txt", "dir/file.txt", storage.Config{})
			storagetest.AssertErrorIs(t, storage.ErrUnableToCopyFile, err)
			got, err = a.Read(ctx, "dir/file.txt")
			require.NoError(t, err)
			assert.Equal(t, "original", string(got))

			var paths []string
			for attrs, err := range a.ListContents(ctx, "", true) {
				require.NoError(t, err)
				paths = append(paths, attrs.Path())
			}
			assert.ElementsMatch(t, []string{"dir", "dir/file.txt"}, paths)
		})
	}
}

func TestOverwriteAppliesNewVisibility(t *testing.T) {
	ctx := context.Background()
	a := New(memfs.New())

	require.NoError(t, a.Write(ctx, "file.txt", []byte("v1"), storage.Config{}))
	require.NoError(t, a.Write(ctx, "file.txt", []byte("v2"), storage.Config{}.
		WithSetting(storage.OptionVisibility, "private")))

	attrs, err := a.Visibility(ctx, "file.txt")
	require.NoError(t, err)
	assert.Equal(t, storage.VisibilityPrivate, attrs.Visibility())

	got, err := a.Read(ctx, "file.txt")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(got))
}
