package local

import (
	"context"
	"errors"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/charlievieth/fastwalk"

	"github.com/marmos91/strata/pkg/storage"
)

// errStopWalk aborts a deep walk once the consumer stops iterating.
var errStopWalk = errors.New("listing stopped")

type walkResult struct {
	attrs storage.StorageAttributes
	err   error
}

// ListContents implements storage.Adapter.
//
// Shallow listings read a single directory. Deep listings walk the tree
// with fastwalk; entries arrive in no particular order.
func (a *Adapter) ListContents(ctx context.Context, path string, deep bool) iter.Seq2[storage.StorageAttributes, error] {
	return func(yield func(storage.StorageAttributes, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(nil, storage.UnableToListContents(path, deep, err))
			return
		}

		location := filepath.Clean(a.location(path))
		info, err := os.Stat(location)
		if err != nil || !info.IsDir() {
			return
		}

		if deep {
			a.listDeep(ctx, path, location, yield)
			return
		}
		a.listShallow(path, location, yield)
	}
}

func (a *Adapter) listShallow(path, location string, yield func(storage.StorageAttributes, error) bool) {
	entries, err := os.ReadDir(location)
	if err != nil {
		yield(nil, storage.UnableToListContents(path, false, err))
		return
	}

	for _, entry := range entries {
		attrs, skip, err := a.entryAttributes(filepath.Join(location, entry.Name()), entry)
		if err != nil {
			yield(nil, err)
			return
		}
		if skip {
			continue
		}
		if !yield(attrs, nil) {
			return
		}
	}
}

func (a *Adapter) listDeep(ctx context.Context, path, location string, yield func(storage.StorageAttributes, error) bool) {
	walkCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan walkResult)
	done := make(chan error, 1)

	go func() {
		conf := fastwalk.Config{Follow: false}
		done <- fastwalk.Walk(&conf, location, func(p string, d fs.DirEntry, err error) error {
			if p == location {
				return err
			}

			var result walkResult
			if err != nil {
				result.err = storage.UnreadableFileEncountered(a.relative(p), err)
			} else {
				attrs, skip, err := a.entryAttributes(p, d)
				if skip {
					return nil
				}
				result = walkResult{attrs: attrs, err: err}
			}

			select {
			case results <- result:
				return nil
			case <-walkCtx.Done():
				return errStopWalk
			}
		})
		close(results)
	}()

	for result := range results {
		if result.err != nil {
			yield(nil, result.err)
			cancel()
			drain(results)
			<-done
			return
		}
		if !yield(result.attrs, nil) {
			cancel()
			drain(results)
			<-done
			return
		}
	}

	if err := <-done; err != nil && !errors.Is(err, errStopWalk) {
		yield(nil, storage.UnableToListContents(path, true, err))
	}
}

func drain(results <-chan walkResult) {
	for range results {
	}
}

// entryAttributes converts a directory entry. skip is true for entries that
// are hidden from listings (temporary files, skipped links).
func (a *Adapter) entryAttributes(location string, d fs.DirEntry) (storage.StorageAttributes, bool, error) {
	path := a.relative(location)

	if strings.HasPrefix(d.Name(), tempPrefix) && strings.HasSuffix(d.Name(), ".tmp") {
		return nil, true, nil
	}

	if d.Type()&fs.ModeSymlink != 0 {
		if a.links == SkipLinks {
			return nil, true, nil
		}
		return nil, false, storage.SymbolicLinkEncountered(path)
	}

	info, err := d.Info()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, true, nil
		}
		return nil, false, storage.UnreadableFileEncountered(path, err)
	}

	if info.IsDir() {
		return storage.NewDirectoryAttributes(path,
			storage.WithVisibility(a.converter.InverseForDirectory(info.Mode())),
			storage.WithLastModified(info.ModTime()),
		), false, nil
	}

	return storage.NewFileAttributes(path,
		storage.WithFileSize(info.Size()),
		storage.WithVisibility(a.converter.InverseForFile(info.Mode())),
		storage.WithLastModified(info.ModTime()),
	), false, nil
}
