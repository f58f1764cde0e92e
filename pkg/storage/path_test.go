package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPathNormalizer(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "path/to/file.txt", "path/to/file.txt"},
		{"leading slash", "/path/to/file.txt", "path/to/file.txt"},
		{"trailing slash", "path/to/dir/", "path/to/dir"},
		{"duplicate slashes", "path//to///file.txt", "path/to/file.txt"},
		{"dot segments", "./path/./to/file.txt", "path/to/file.txt"},
		{"backslashes", "path\\to\\file.txt", "path/to/file.txt"},
		{"parent segment", "path/to/../file.txt", "path/file.txt"},
		{"collapse to root", "path/..", ""},
		{"root", "/", ""},
		{"empty", "", ""},
		{"unicode", "dir/ünïcödé.txt", "dir/ünïcödé.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePath(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			again, err := NormalizePath(got)
			require.NoError(t, err)
			assert.Equal(t, got, again, "normalization must be idempotent")
		})
	}
}

func TestDefaultPathNormalizerRejectsTraversal(t *testing.T) {
	for _, input := range []string{"..", "../file.txt", "path/../../file.txt", "/../etc/passwd", "a\\..\\..\\b"} {
		t.Run(input, func(t *testing.T) {
			_, err := NormalizePath(input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrPathTraversalDetected))
			assert.True(t, errors.Is(err, ErrFilesystemOperationFailed))
		})
	}
}

func TestDefaultPathNormalizerRejectsControlCharacters(t *testing.T) {
	for _, input := range []string{"file\x00.txt", "dir/\nfile", "\x7f", "a\u0085b"} {
		_, err := NormalizePath(input)
		require.Error(t, err, "%q", input)
		assert.True(t, errors.Is(err, ErrCorruptedPathDetected))
	}
}

func TestDefaultPathNormalizerRejectsInvisibleCharacters(t *testing.T) {
	for _, input := range []string{"file\u200b.txt", "\ufeffdir/file.txt", "dir/\u00adfile", "\ue000"} {
		_, err := NormalizePath(input)
		require.Error(t, err, "%q", input)
		assert.True(t, errors.Is(err, ErrCorruptedPathDetected), "%q", input)
	}

	normalized, err := NormalizePath("café/日本語/file.txt")
	require.NoError(t, err)
	assert.Equal(t, "café/日本語/file.txt", normalized)
}

func TestParentDirectory(t *testing.T) {
	assert.Equal(t, "", ParentDirectory("file.txt"))
	assert.Equal(t, "a", ParentDirectory("a/b"))
	assert.Equal(t, "a/b", ParentDirectory("a/b/c.txt"))
}

func TestJoinPath(t *testing.T) {
	assert.Equal(t, "a/b/c", JoinPath("a", "/b/", "c"))
	assert.Equal(t, "b", JoinPath("", "b"))
	assert.Equal(t, "", JoinPath("", "/"))
}

func TestIntermediateDirectories(t *testing.T) {
	assert.Equal(t, []string{"a/b", "a/b/c"}, IntermediateDirectories("a", "a/b/c/d.txt"))
	assert.Equal(t, []string{"x"}, IntermediateDirectories("", "x/y.txt"))
	assert.Empty(t, IntermediateDirectories("a", "a/file.txt"))
	assert.Empty(t, IntermediateDirectories("", "file.txt"))
}
