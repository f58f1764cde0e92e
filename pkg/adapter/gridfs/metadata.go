package gridfs

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/gridfs"

	"github.com/marmos91/strata/pkg/storage"
)

// fileMetadata is the document stored in the "metadata" field of every
// GridFS file written by the adapter.
type fileMetadata struct {
	Visibility string `bson:"visibility"`
	MimeType   string `bson:"mime_type,omitempty"`
	Directory  bool   `bson:"directory,omitempty"`
}

func decodeMetadata(raw bson.Raw) fileMetadata {
	var meta fileMetadata
	if len(raw) > 0 {
		// Files uploaded by other tools may carry any metadata shape.
		_ = bson.Unmarshal(raw, &meta)
	}
	return meta
}

func (m fileMetadata) visibility() storage.Visibility {
	v, err := storage.ParseVisibility(m.Visibility)
	if err != nil {
		return storage.VisibilityUnknown
	}
	return v
}

// attributes converts a GridFS file document to storage attributes. Marker
// documents (filenames ending in "/") become directories.
func attributes(path string, file *gridfs.File) storage.StorageAttributes {
	meta := decodeMetadata(file.Metadata)

	opts := []storage.AttributeOption{
		storage.WithVisibility(meta.visibility()),
		storage.WithLastModified(file.UploadDate),
	}
	if meta.Directory || strings.HasSuffix(file.Name, "/") {
		return storage.NewDirectoryAttributes(path, opts...)
	}

	opts = append(opts, storage.WithFileSize(file.Length))
	if meta.MimeType != "" {
		opts = append(opts, storage.WithMimeType(meta.MimeType))
	}
	return storage.NewFileAttributes(path, opts...)
}
