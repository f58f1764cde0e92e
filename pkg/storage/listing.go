package storage

import (
	"iter"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"
)

// listingSource is the shared, single-pass origin of a chain of listings.
type listingSource struct {
	consumed atomic.Bool
}

// DirectoryListing is a lazy, single-pass sequence of entries.
//
// Filter, Sort and MapListing return new listings that share the same
// source. Iterating any listing of the chain consumes the source; a second
// iteration (of the same or a derived listing) yields ErrListingConsumed.
//
// Sort has to see every entry before it can yield the first one, so it
// materialises internally, but the listing it returns is iterated exactly
// like any other.
type DirectoryListing[T any] struct {
	source *listingSource
	seq    iter.Seq2[T, error]
}

// NewDirectoryListing wraps seq in a listing.
func NewDirectoryListing[T any](seq iter.Seq2[T, error]) *DirectoryListing[T] {
	return &DirectoryListing[T]{source: &listingSource{}, seq: seq}
}

func derive[T, U any](parent *DirectoryListing[T], seq iter.Seq2[U, error]) *DirectoryListing[U] {
	return &DirectoryListing[U]{source: parent.source, seq: seq}
}

// All returns the underlying sequence. Errors are yielded with a zero value;
// iteration stops after the first error.
func (l *DirectoryListing[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		if l.source.consumed.Swap(true) {
			var zero T
			yield(zero, ErrListingConsumed)
			return
		}

		for item, err := range l.seq {
			if !yield(item, err) || err != nil {
				return
			}
		}
	}
}

// Filter keeps the entries for which keep returns true.
func (l *DirectoryListing[T]) Filter(keep func(T) bool) *DirectoryListing[T] {
	parent := l.seq
	return derive[T, T](l, func(yield func(T, error) bool) {
		for item, err := range parent {
			if err != nil {
				yield(item, err)
				return
			}
			if keep(item) && !yield(item, nil) {
				return
			}
		}
	})
}

// Sort orders the entries with cmp (see slices.SortStableFunc).
func (l *DirectoryListing[T]) Sort(cmp func(a, b T) int) *DirectoryListing[T] {
	parent := l.seq
	return derive[T, T](l, func(yield func(T, error) bool) {
		var items []T
		for item, err := range parent {
			if err != nil {
				yield(item, err)
				return
			}
			items = append(items, item)
		}

		slices.SortStableFunc(items, cmp)

		for _, item := range items {
			if !yield(item, nil) {
				return
			}
		}
	})
}

// ToSlice consumes the listing and returns every entry.
func (l *DirectoryListing[T]) ToSlice() ([]T, error) {
	var items []T
	for item, err := range l.All() {
		if err != nil {
			return items, err
		}
		items = append(items, item)
	}
	return items, nil
}

// MapListing transforms every entry of l with fn.
func MapListing[T, U any](l *DirectoryListing[T], fn func(T) U) *DirectoryListing[U] {
	parent := l.seq
	return derive[T, U](l, func(yield func(U, error) bool) {
		for item, err := range parent {
			if err != nil {
				var zero U
				yield(zero, err)
				return
			}
			if !yield(fn(item), nil) {
				return
			}
		}
	})
}

// ============================================================================
// Common filters and orderings
// ============================================================================

// SortByPath orders attributes lexically by path.
func SortByPath(a, b StorageAttributes) int {
	return strings.Compare(a.Path(), b.Path())
}

// OnlyFiles keeps file entries.
func OnlyFiles(attrs StorageAttributes) bool {
	_, ok := attrs.(*FileAttributes)
	return ok
}

// OnlyDirectories keeps directory entries.
func OnlyDirectories(attrs StorageAttributes) bool {
	_, ok := attrs.(*DirectoryAttributes)
	return ok
}

// MatchGlob returns a filter keeping entries whose path matches pattern.
// Patterns use doublestar syntax ("**/*.txt"). An invalid pattern matches
// nothing.
func MatchGlob(pattern string) func(StorageAttributes) bool {
	return func(attrs StorageAttributes) bool {
		ok, err := doublestar.Match(pattern, attrs.Path())
		return err == nil && ok
	}
}
