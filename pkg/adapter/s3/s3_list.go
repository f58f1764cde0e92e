package s3

import (
	"context"
	"iter"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/marmos91/strata/pkg/storage"
)

// ListContents implements storage.Adapter.
//
// Pages are fetched lazily with ListObjectsV2. Shallow listings use the "/"
// delimiter so that subdirectories come back as common prefixes. Deep
// listings walk every key and synthesize the implicit directories between
// the listed path and each object.
func (a *Adapter) ListContents(ctx context.Context, path string, deep bool) iter.Seq2[storage.StorageAttributes, error] {
	return func(yield func(storage.StorageAttributes, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(nil, storage.UnableToListContents(path, deep, err))
			return
		}

		prefix := a.dirKey(path)
		input := &s3.ListObjectsV2Input{
			Bucket: aws.String(a.bucket),
			Prefix: aws.String(prefix),
		}
		if !deep {
			input.Delimiter = aws.String("/")
		}

		seen := make(map[string]struct{})
		emit := func(attrs storage.StorageAttributes) bool {
			if _, dup := seen[attrs.Path()]; dup {
				return true
			}
			seen[attrs.Path()] = struct{}{}
			return yield(attrs, nil)
		}

		paginator := s3.NewListObjectsV2Paginator(a.client, input)
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				yield(nil, storage.UnableToListContents(path, deep, err))
				return
			}

			for _, common := range page.CommonPrefixes {
				dir := a.prefixer.StripDirectoryPrefix(aws.ToString(common.Prefix))
				if !emit(storage.NewDirectoryAttributes(dir)) {
					return
				}
			}

			for _, obj := range page.Contents {
				key := aws.ToString(obj.Key)
				if key == prefix {
					continue
				}

				entryPath := a.prefixer.StripDirectoryPrefix(key)
				for _, parent := range storage.IntermediateDirectories(path, entryPath) {
					if !emit(storage.NewDirectoryAttributes(parent)) {
						return
					}
				}
				if !emit(a.objectAttributes(entryPath, key, obj)) {
					return
				}
			}
		}
	}
}

func (a *Adapter) objectAttributes(path, key string, obj types.Object) storage.StorageAttributes {
	var opts []storage.AttributeOption
	if obj.LastModified != nil {
		opts = append(opts, storage.WithLastModified(*obj.LastModified))
	}

	if strings.HasSuffix(key, "/") {
		return storage.NewDirectoryAttributes(path, opts...)
	}

	opts = append(opts, storage.WithFileSize(aws.ToInt64(obj.Size)))
	if etag := aws.ToString(obj.ETag); etag != "" {
		opts = append(opts, storage.WithExtraMetadata(map[string]any{"etag": strings.Trim(etag, `"`)}))
	}
	return storage.NewFileAttributes(path, opts...)
}
