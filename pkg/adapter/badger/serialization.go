package badger

import (
	"encoding/json"
	"fmt"

	"github.com/marmos91/strata/pkg/storage"
)

// record is the JSON metadata stored under "m:<path>".
type record struct {
	Type         storage.EntryType  `json:"type"`
	Size         int64              `json:"size,omitempty"`
	Visibility   storage.Visibility `json:"visibility"`
	MimeType     string             `json:"mime_type,omitempty"`
	LastModified int64              `json:"last_modified"`
}

func encodeRecord(r *record) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	return data, nil
}

func decodeRecord(data []byte) (*record, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return &r, nil
}

// attributes converts a record into storage attributes for path.
func (r *record) attributes(path string) storage.StorageAttributes {
	if r.Type == storage.EntryTypeDirectory {
		return storage.NewDirectoryAttributes(path,
			storage.WithVisibility(r.Visibility),
			storage.WithLastModifiedUnix(r.LastModified),
		)
	}
	return r.fileAttributes(path)
}

func (r *record) fileAttributes(path string) *storage.FileAttributes {
	return storage.NewFileAttributes(path,
		storage.WithFileSize(r.Size),
		storage.WithVisibility(r.Visibility),
		storage.WithMimeType(r.MimeType),
		storage.WithLastModifiedUnix(r.LastModified),
	)
}
