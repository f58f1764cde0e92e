package storage

import (
	"context"
	"io"
	"iter"
)

// ============================================================================
// Adapter Interface
// ============================================================================

// Adapter is the operation contract every storage backend implements.
//
// Adapters receive paths that are already normalized by the Filesystem:
// forward slashes, no leading separator, no "." or ".." segments. They own
// their backend connection exclusively.
//
// Failure Semantics:
// Every error returned by an adapter must belong to the error taxonomy
// (see errors.go). Backend-native errors are attached as the cause, never
// returned bare.
//
// Idempotency:
//   - Delete of a missing file succeeds
//   - DeleteDirectory of a missing directory succeeds
//   - CreateDirectory of an existing directory succeeds
//
// Write Semantics:
// Write and WriteStream create or overwrite. Missing parent directories are
// created implicitly where the backend has a notion of directories.
//
// Thread Safety:
// The core places no lock around an adapter. Each adapter documents whether
// concurrent calls into the same instance are safe.
type Adapter interface {
	// FileExists reports whether a file exists at path. Directories report false.
	FileExists(ctx context.Context, path string) (bool, error)

	// DirectoryExists reports whether a directory exists at path.
	DirectoryExists(ctx context.Context, path string) (bool, error)

	// Write stores contents at path, replacing any existing file.
	Write(ctx context.Context, path string, contents []byte, config Config) error

	// WriteStream stores everything read from r at path. The adapter does
	// not close r; the caller owns it.
	WriteStream(ctx context.Context, path string, r io.Reader, config Config) error

	// Read returns the full contents of the file at path. Missing paths and
	// directories fail with ErrUnableToReadFile.
	Read(ctx context.Context, path string) ([]byte, error)

	// ReadStream opens the file at path. The caller must close the reader.
	ReadStream(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes the file at path.
	Delete(ctx context.Context, path string) error

	// DeleteDirectory removes the directory at path and everything below it.
	DeleteDirectory(ctx context.Context, path string) error

	// CreateDirectory creates the directory at path and any missing parents.
	CreateDirectory(ctx context.Context, path string, config Config) error

	// SetVisibility changes the visibility of path.
	SetVisibility(ctx context.Context, path string, visibility Visibility) error

	// Visibility returns attributes carrying at least the visibility of path.
	Visibility(ctx context.Context, path string) (*FileAttributes, error)

	// MimeType returns attributes carrying at least the mime type of path.
	MimeType(ctx context.Context, path string) (*FileAttributes, error)

	// LastModified returns attributes carrying at least the modification time.
	LastModified(ctx context.Context, path string) (*FileAttributes, error)

	// FileSize returns attributes carrying at least the size of path.
	FileSize(ctx context.Context, path string) (*FileAttributes, error)

	// ListContents lists the entries below path, recursing when deep is true.
	// Directory entries are yielded as well as files. Listing a missing
	// directory yields nothing.
	ListContents(ctx context.Context, path string, deep bool) iter.Seq2[StorageAttributes, error]

	// Move relocates source to destination.
	Move(ctx context.Context, source, destination string, config Config) error

	// Copy duplicates source at destination.
	Copy(ctx context.Context, source, destination string, config Config) error
}

// ChecksumProvider is an optional capability for adapters that can compute
// checksums without streaming the file through the caller (for example from
// an object store ETag).
//
// Implementations return ErrChecksumAlgoNotSupported when the configured
// algorithm is not available natively; the Filesystem then hashes the stream.
type ChecksumProvider interface {
	Checksum(ctx context.Context, path string, config Config) (string, error)
}

// Closer is implemented by adapters holding resources (database handles,
// network clients) that must be released.
type Closer interface {
	Close() error
}

// ============================================================================
// Sequence helpers for adapter implementations
// ============================================================================

// EmptyListing is a sequence that yields nothing.
func EmptyListing() iter.Seq2[StorageAttributes, error] {
	return func(func(StorageAttributes, error) bool) {}
}

// FailedListing is a sequence that yields a single error.
func FailedListing(err error) iter.Seq2[StorageAttributes, error] {
	return func(yield func(StorageAttributes, error) bool) {
		yield(nil, err)
	}
}

// SliceListing yields the given entries in order.
func SliceListing(entries []StorageAttributes) iter.Seq2[StorageAttributes, error] {
	return func(yield func(StorageAttributes, error) bool) {
		for _, entry := range entries {
			if !yield(entry, nil) {
				return
			}
		}
	}
}
