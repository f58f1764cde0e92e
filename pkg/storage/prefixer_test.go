package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathPrefixer(t *testing.T) {
	t.Run("PrefixPath", func(t *testing.T) {
		p := NewPathPrefixer("prefix", "/")
		assert.Equal(t, "prefix/some/path.txt", p.PrefixPath("some/path.txt"))
		assert.Equal(t, "prefix/some/path.txt", p.PrefixPath("/some/path.txt"))
	})

	t.Run("TrailingSeparatorsAreNormalized", func(t *testing.T) {
		for _, prefix := range []string{"prefix", "prefix/", "prefix//", "prefix\\"} {
			assert.Equal(t, "prefix/", NewPathPrefixer(prefix, "/").Prefix(), prefix)
		}
	})

	t.Run("EmptyPrefix", func(t *testing.T) {
		p := NewPathPrefixer("", "/")
		assert.Equal(t, "", p.Prefix())
		assert.Equal(t, "path.txt", p.PrefixPath("/path.txt"))
		assert.Equal(t, "path.txt", p.StripPrefix("path.txt"))
	})

	t.Run("SeparatorOnlyPrefix", func(t *testing.T) {
		p := NewPathPrefixer("/", "/")
		assert.Equal(t, "/", p.Prefix())
		assert.Equal(t, "/file.txt", p.PrefixPath("file.txt"))
		assert.Equal(t, "file.txt", p.StripPrefix("/file.txt"))
	})

	t.Run("StripPrefix", func(t *testing.T) {
		p := NewPathPrefixer("prefix", "/")
		assert.Equal(t, "some/path.txt", p.StripPrefix("prefix/some/path.txt"))
		assert.Equal(t, "other/path.txt", p.StripPrefix("other/path.txt"))
	})

	t.Run("DirectoryPaths", func(t *testing.T) {
		p := NewPathPrefixer("prefix", "/")
		assert.Equal(t, "prefix/dir/", p.PrefixDirectoryPath("dir"))
		assert.Equal(t, "prefix/dir/", p.PrefixDirectoryPath("dir/"))
		assert.Equal(t, "dir", p.StripDirectoryPrefix("prefix/dir/"))
		assert.Equal(t, "", NewPathPrefixer("", "/").PrefixDirectoryPath(""))
	})

	t.Run("RoundTrip", func(t *testing.T) {
		for _, prefix := range []string{"", "root", "/var/data/", "a/b/c"} {
			p := NewPathPrefixer(prefix, "/")
			for _, path := range []string{"file.txt", "a/b/c.txt", "dir", "ünï/cödé"} {
				assert.Equal(t, path, p.StripPrefix(p.PrefixPath(path)), "prefix=%q path=%q", prefix, path)
			}
		}
	})
}
