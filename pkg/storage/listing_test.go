package storage

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleListing() *DirectoryListing[StorageAttributes] {
	return NewDirectoryListing(SliceListing([]StorageAttributes{
		NewFileAttributes("b.txt"),
		NewDirectoryAttributes("a"),
		NewFileAttributes("a/c.md"),
		NewFileAttributes("a/d.txt"),
	}))
}

func paths(t *testing.T, l *DirectoryListing[StorageAttributes]) []string {
	t.Helper()
	items, err := l.ToSlice()
	require.NoError(t, err)
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Path())
	}
	return out
}

func TestDirectoryListing(t *testing.T) {
	t.Run("SinglePass", func(t *testing.T) {
		l := sampleListing()
		assert.Len(t, paths(t, l), 4)

		_, err := l.ToSlice()
		assert.True(t, errors.Is(err, ErrListingConsumed))
	})

	t.Run("DerivedListingsShareTheSource", func(t *testing.T) {
		l := sampleListing()
		files := l.Filter(OnlyFiles)
		assert.Len(t, paths(t, files), 3)

		_, err := l.ToSlice()
		assert.True(t, errors.Is(err, ErrListingConsumed))
	})

	t.Run("IsLazy", func(t *testing.T) {
		pulled := 0
		l := NewDirectoryListing(func(yield func(StorageAttributes, error) bool) {
			for _, p := range []string{"a", "b", "c"} {
				pulled++
				if !yield(NewFileAttributes(p), nil) {
					return
				}
			}
		})
		filtered := l.Filter(func(StorageAttributes) bool { return true })
		assert.Equal(t, 0, pulled)

		for range filtered.All() {
			break
		}
		assert.Equal(t, 1, pulled)
	})

	t.Run("SortIsIterable", func(t *testing.T) {
		sorted := sampleListing().Sort(SortByPath)
		assert.Equal(t, []string{"a", "a/c.md", "a/d.txt", "b.txt"}, paths(t, sorted))
	})

	t.Run("FilterThenSort", func(t *testing.T) {
		l := sampleListing().Filter(OnlyFiles).Sort(SortByPath)
		assert.Equal(t, []string{"a/c.md", "a/d.txt", "b.txt"}, paths(t, l))
	})

	t.Run("OnlyDirectories", func(t *testing.T) {
		assert.Equal(t, []string{"a"}, paths(t, sampleListing().Filter(OnlyDirectories)))
	})

	t.Run("MatchGlob", func(t *testing.T) {
		l := sampleListing().Filter(MatchGlob("**/*.txt"))
		assert.Equal(t, []string{"b.txt", "a/d.txt"}, paths(t, l))
	})

	t.Run("MapListing", func(t *testing.T) {
		upper := MapListing(sampleListing(), func(a StorageAttributes) string {
			return strings.ToUpper(a.Path())
		})
		items, err := upper.ToSlice()
		require.NoError(t, err)
		assert.Equal(t, []string{"B.TXT", "A", "A/C.MD", "A/D.TXT"}, items)
	})

	t.Run("ErrorsStopIteration", func(t *testing.T) {
		boom := errors.New("boom")
		l := NewDirectoryListing(func(yield func(StorageAttributes, error) bool) {
			if !yield(NewFileAttributes("a"), nil) {
				return
			}
			if !yield(nil, boom) {
				return
			}
			yield(NewFileAttributes("b"), nil)
		})

		items, err := l.Sort(SortByPath).ToSlice()
		assert.ErrorIs(t, err, boom)
		assert.Empty(t, items)
	})
}
