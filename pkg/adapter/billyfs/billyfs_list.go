package billyfs

import (
	"context"
	"io/fs"
	"iter"
	"path"
	"strings"

	"github.com/marmos91/strata/pkg/storage"
)

// ListContents implements storage.Adapter.
//
// Directories are read one at a time under the read lock, and the lock is
// released before entries are yielded, so consumers may call back into the
// adapter while iterating. Deep listings are breadth first.
func (a *Adapter) ListContents(ctx context.Context, dir string, deep bool) iter.Seq2[storage.StorageAttributes, error] {
	return func(yield func(storage.StorageAttributes, error) bool) {
		pending := []string{dir}
		for len(pending) > 0 {
			if err := ctx.Err(); err != nil {
				yield(nil, storage.UnableToListContents(dir, deep, err))
				return
			}

			current := pending[0]
			pending = pending[1:]

			entries, err := a.readDir(current)
			if err != nil {
				if isNotExist(err) {
					continue
				}
				yield(nil, storage.UnableToListContents(dir, deep, err))
				return
			}

			for _, info := range entries {
				if isTempFile(info) {
					continue
				}
				entryPath := path.Join(current, info.Name())
				if info.Mode()&fs.ModeSymlink != 0 {
					yield(nil, storage.SymbolicLinkEncountered(entryPath))
					return
				}

				if !yield(a.attributes(entryPath, info), nil) {
					return
				}
				if deep && info.IsDir() {
					pending = append(pending, entryPath)
				}
			}
		}
	}
}

func isTempFile(info fs.FileInfo) bool {
	return !info.IsDir() && strings.HasPrefix(info.Name(), tempPrefix) && strings.HasSuffix(info.Name(), tempSuffix)
}

func (a *Adapter) readDir(dir string) ([]fs.FileInfo, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.fs.ReadDir(location(dir))
}

func (a *Adapter) attributes(p string, info fs.FileInfo) storage.StorageAttributes {
	opts := []storage.AttributeOption{
		storage.WithVisibility(a.visibility(info)),
		storage.WithLastModified(info.ModTime()),
	}
	if info.IsDir() {
		return storage.NewDirectoryAttributes(p, opts...)
	}

	opts = append(opts, storage.WithFileSize(info.Size()))
	return storage.NewFileAttributes(p, opts...)
}
