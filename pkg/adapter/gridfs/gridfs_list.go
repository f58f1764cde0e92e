package gridfs

import (
	"context"
	"iter"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/marmos91/strata/pkg/storage"
)

// ListContents implements storage.Adapter.
//
// The files collection is scanned with a cursor in filename order, newest
// revision first, so only the live revision of each name is reported.
// Directories are synthesized from the filenames.
func (a *Adapter) ListContents(ctx context.Context, path string, deep bool) iter.Seq2[storage.StorageAttributes, error] {
	return func(yield func(storage.StorageAttributes, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(nil, storage.UnableToListContents(path, deep, err))
			return
		}

		prefix := a.dirKey(path)
		cursor, err := a.files.Find(ctx, below(prefix), options.Find().SetSort(bson.D{
			{Key: "filename", Value: 1},
			{Key: "uploadDate", Value: -1},
		}))
		if err != nil {
			yield(nil, storage.UnableToListContents(path, deep, err))
			return
		}
		defer func() { _ = cursor.Close(context.WithoutCancel(ctx)) }()

		seen := make(map[string]struct{})
		emit := func(attrs storage.StorageAttributes) bool {
			if _, dup := seen[attrs.Path()]; dup {
				return true
			}
			seen[attrs.Path()] = struct{}{}
			return yield(attrs, nil)
		}

		lastName := ""
		for cursor.Next(ctx) {
			var file gridfs.File
			if err := cursor.Decode(&file); err != nil {
				yield(nil, storage.UnableToListContents(path, deep, err))
				return
			}
			if file.Name == lastName || file.Name == prefix {
				continue
			}
			lastName = file.Name

			entryPath := a.prefixer.StripDirectoryPrefix(file.Name)
			parents := storage.IntermediateDirectories(path, entryPath)

			if !deep && len(parents) > 0 {
				if !emit(storage.NewDirectoryAttributes(parents[0])) {
					return
				}
				continue
			}
			for _, parent := range parents {
				if !emit(storage.NewDirectoryAttributes(parent)) {
					return
				}
			}
			if !emit(attributes(entryPath, &file)) {
				return
			}
		}

		if err := cursor.Err(); err != nil {
			yield(nil, storage.UnableToListContents(path, deep, err))
		}
	}
}
