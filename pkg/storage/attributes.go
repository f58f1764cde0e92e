package storage

import (
	"fmt"
	"maps"
	"strings"
	"time"
)

// ============================================================================
// Visibility
// ============================================================================

// Visibility is the coarse public/private classification of a path.
//
// Backends realise it differently (POSIX permission bits, object ACLs,
// stored flags). VisibilityUnknown is only ever reported, never accepted by
// SetVisibility.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
	VisibilityUnknown Visibility = "unknown"
)

// ParseVisibility validates a visibility string. Only public and private are
// accepted (case-insensitive).
func ParseVisibility(value string) (Visibility, error) {
	switch Visibility(strings.ToLower(value)) {
	case VisibilityPublic:
		return VisibilityPublic, nil
	case VisibilityPrivate:
		return VisibilityPrivate, nil
	default:
		return "", fmt.Errorf("%q: %w", value, ErrInvalidVisibility)
	}
}

// ============================================================================
// StorageAttributes
// ============================================================================

// EntryType distinguishes files from directories.
type EntryType string

const (
	EntryTypeFile      EntryType = "file"
	EntryTypeDirectory EntryType = "dir"
)

// StorageAttributes describes a single path returned by an adapter.
//
// The interface is sealed: the only implementations are *FileAttributes and
// *DirectoryAttributes. Consumers should switch on the concrete type:
//
//	switch attrs := entry.(type) {
//	case *storage.FileAttributes:
//	    size, _ := attrs.FileSize()
//	case *storage.DirectoryAttributes:
//	    // ...
//	}
type StorageAttributes interface {
	Path() string
	Type() EntryType
	IsFile() bool
	IsDir() bool

	// Visibility returns "" when the backend did not report one.
	Visibility() Visibility

	// LastModified returns the unix timestamp and whether it is known.
	LastModified() (int64, bool)

	// ExtraMetadata returns a copy of backend-specific metadata.
	ExtraMetadata() map[string]any

	// WithPath returns a copy of the attributes with a different path.
	WithPath(path string) StorageAttributes

	sealed()
}

// attributes holds the fields shared by both variants.
type attributes struct {
	path          string
	visibility    Visibility
	lastModified  int64
	hasModified   bool
	extraMetadata map[string]any
}

func (a *attributes) Path() string           { return a.path }
func (a *attributes) Visibility() Visibility { return a.visibility }

func (a *attributes) LastModified() (int64, bool) {
	return a.lastModified, a.hasModified
}

func (a *attributes) ExtraMetadata() map[string]any {
	if a.extraMetadata == nil {
		return map[string]any{}
	}
	return maps.Clone(a.extraMetadata)
}

// AttributeOption customises attributes at construction time.
type AttributeOption func(*attributeOptions)

type attributeOptions struct {
	attributes
	fileSize    int64
	hasFileSize bool
	mimeType    string
}

// WithVisibility sets the reported visibility.
func WithVisibility(v Visibility) AttributeOption {
	return func(o *attributeOptions) { o.visibility = v }
}

// WithLastModified sets the last modification time.
func WithLastModified(t time.Time) AttributeOption {
	return func(o *attributeOptions) {
		if t.IsZero() {
			return
		}
		o.lastModified = t.Unix()
		o.hasModified = true
	}
}

// WithLastModifiedUnix sets the last modification time from a unix timestamp.
func WithLastModifiedUnix(ts int64) AttributeOption {
	return func(o *attributeOptions) {
		o.lastModified = ts
		o.hasModified = true
	}
}

// WithExtraMetadata attaches backend-specific metadata. The map is copied.
func WithExtraMetadata(extra map[string]any) AttributeOption {
	return func(o *attributeOptions) { o.extraMetadata = maps.Clone(extra) }
}

// WithFileSize sets the file size. Ignored for directories and negative values.
func WithFileSize(size int64) AttributeOption {
	return func(o *attributeOptions) {
		if size < 0 {
			return
		}
		o.fileSize = size
		o.hasFileSize = true
	}
}

// WithMimeType sets the mime type. Ignored for directories.
func WithMimeType(mimeType string) AttributeOption {
	return func(o *attributeOptions) { o.mimeType = mimeType }
}

func buildOptions(path string, opts []AttributeOption) attributeOptions {
	o := attributeOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	o.path = strings.TrimLeft(path, "/")
	return o
}

// ============================================================================
// FileAttributes
// ============================================================================

// FileAttributes describes a file.
type FileAttributes struct {
	attributes
	fileSize    int64
	hasFileSize bool
	mimeType    string
}

// NewFileAttributes creates file attributes for path.
func NewFileAttributes(path string, opts ...AttributeOption) *FileAttributes {
	o := buildOptions(path, opts)
	return &FileAttributes{
		attributes:  o.attributes,
		fileSize:    o.fileSize,
		hasFileSize: o.hasFileSize,
		mimeType:    o.mimeType,
	}
}

func (f *FileAttributes) Type() EntryType { return EntryTypeFile }
func (f *FileAttributes) IsFile() bool    { return true }
func (f *FileAttributes) IsDir() bool     { return false }
func (f *FileAttributes) sealed()         {}

// FileSize returns the size in bytes and whether it is known.
func (f *FileAttributes) FileSize() (int64, bool) { return f.fileSize, f.hasFileSize }

// MimeType returns the mime type and whether it is known.
func (f *FileAttributes) MimeType() (string, bool) { return f.mimeType, f.mimeType != "" }

// WithPath implements StorageAttributes.
func (f *FileAttributes) WithPath(path string) StorageAttributes {
	clone := *f
	clone.path = strings.TrimLeft(path, "/")
	clone.extraMetadata = maps.Clone(f.extraMetadata)
	return &clone
}

// ============================================================================
// DirectoryAttributes
// ============================================================================

// DirectoryAttributes describes a directory.
type DirectoryAttributes struct {
	attributes
}

// NewDirectoryAttributes creates directory attributes for path. File-only
// options (size, mime type) are ignored.
func NewDirectoryAttributes(path string, opts ...AttributeOption) *DirectoryAttributes {
	o := buildOptions(path, opts)
	return &DirectoryAttributes{attributes: o.attributes}
}

func (d *DirectoryAttributes) Type() EntryType { return EntryTypeDirectory }
func (d *DirectoryAttributes) IsFile() bool    { return false }
func (d *DirectoryAttributes) IsDir() bool     { return true }
func (d *DirectoryAttributes) sealed()         {}

// WithPath implements StorageAttributes.
func (d *DirectoryAttributes) WithPath(path string) StorageAttributes {
	clone := *d
	clone.path = strings.TrimLeft(path, "/")
	clone.extraMetadata = maps.Clone(d.extraMetadata)
	return &clone
}
