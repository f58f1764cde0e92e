package badger

import (
	"context"
	"iter"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/strata/pkg/storage"
)

// ListContents implements storage.Adapter.
//
// Entries are yielded straight from a read transaction in key order. Implicit
// directories (parents of stored keys without a record of their own) are
// synthesized the first time one of their descendants is seen.
func (a *Adapter) ListContents(ctx context.Context, path string, deep bool) iter.Seq2[storage.StorageAttributes, error] {
	return func(yield func(storage.StorageAttributes, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(nil, storage.UnableToListContents(path, deep, err))
			return
		}

		stopped := false
		seen := make(map[string]struct{})
		emit := func(attrs storage.StorageAttributes) bool {
			if _, dup := seen[attrs.Path()]; dup {
				return true
			}
			seen[attrs.Path()] = struct{}{}
			if !yield(attrs, nil) {
				stopped = true
				return false
			}
			return true
		}

		err := a.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = keyMetaChildren(path)

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Rewind(); it.Valid(); it.Next() {
				if err := ctx.Err(); err != nil {
					return err
				}

				item := it.Item()
				entryPath := pathFromMetaKey(item.Key())
				parents := storage.IntermediateDirectories(path, entryPath)

				if !deep && len(parents) > 0 {
					if !emit(storage.NewDirectoryAttributes(parents[0])) {
						return nil
					}
					continue
				}
				for _, parent := range parents {
					if _, dup := seen[parent]; dup {
						continue
					}
					if !emit(storage.NewDirectoryAttributes(parent)) {
						return nil
					}
				}

				var r *record
				if err := item.Value(func(val []byte) error {
					var err error
					r, err = decodeRecord(val)
					return err
				}); err != nil {
					return err
				}
				if !emit(r.attributes(entryPath)) {
					return nil
				}
			}
			return nil
		})

		if err != nil && !stopped {
			yield(nil, storage.UnableToListContents(path, deep, err))
		}
	}
}
