package compose

import (
	"context"
	"io"
	"iter"

	"github.com/marmos91/strata/pkg/storage"
)

// ReadOnlyAdapter forwards reads to the wrapped adapter and refuses every
// mutation. Refusals carry the kind of the attempted operation and
// ErrReadOnly as their cause.
type ReadOnlyAdapter struct {
	inner storage.Adapter
}

var _ storage.Adapter = (*ReadOnlyAdapter)(nil)

// NewReadOnlyAdapter wraps inner.
func NewReadOnlyAdapter(inner storage.Adapter) *ReadOnlyAdapter {
	return &ReadOnlyAdapter{inner: inner}
}

// Unwrap returns the wrapped adapter.
func (r *ReadOnlyAdapter) Unwrap() storage.Adapter {
	return r.inner
}

// ============================================================================
// Reads
// ============================================================================

// FileExists implements storage.Adapter.
func (r *ReadOnlyAdapter) FileExists(ctx context.Context, path string) (bool, error) {
	return r.inner.FileExists(ctx, path)
}

// DirectoryExists implements storage.Adapter.
func (r *ReadOnlyAdapter) DirectoryExists(ctx context.Context, path string) (bool, error) {
	return r.inner.DirectoryExists(ctx, path)
}

// Read implements storage.Adapter.
func (r *ReadOnlyAdapter) Read(ctx context.Context, path string) ([]byte, error) {
	return r.inner.Read(ctx, path)
}

// ReadStream implements storage.Adapter.
func (r *ReadOnlyAdapter) ReadStream(ctx context.Context, path string) (io.ReadCloser, error) {
	return r.inner.ReadStream(ctx, path)
}

// Visibility implements storage.Adapter.
func (r *ReadOnlyAdapter) Visibility(ctx context.Context, path string) (*storage.FileAttributes, error) {
	return r.inner.Visibility(ctx, path)
}

// MimeType implements storage.Adapter.
func (r *ReadOnlyAdapter) MimeType(ctx context.Context, path string) (*storage.FileAttributes, error) {
	return r.inner.MimeType(ctx, path)
}

// LastModified implements storage.Adapter.
func (r *ReadOnlyAdapter) LastModified(ctx context.Context, path string) (*storage.FileAttributes, error) {
	return r.inner.LastModified(ctx, path)
}

// FileSize implements storage.Adapter.
func (r *ReadOnlyAdapter) FileSize(ctx context.Context, path string) (*storage.FileAttributes, error) {
	return r.inner.FileSize(ctx, path)
}

// ListContents implements storage.Adapter.
func (r *ReadOnlyAdapter) ListContents(ctx context.Context, path string, deep bool) iter.Seq2[storage.StorageAttributes, error] {
	return r.inner.ListContents(ctx, path, deep)
}

// Checksum implements storage.ChecksumProvider when the wrapped adapter
// does.
func (r *ReadOnlyAdapter) Checksum(ctx context.Context, path string, config storage.Config) (string, error) {
	if provider, ok := r.inner.(storage.ChecksumProvider); ok {
		return provider.Checksum(ctx, path, config)
	}
	return "", storage.ErrChecksumAlgoNotSupported
}

// Close implements storage.Closer.
func (r *ReadOnlyAdapter) Close() error {
	return closeAll([]storage.Adapter{r.inner})
}

// ============================================================================
// Refused mutations
// ============================================================================

// Write implements storage.Adapter.
func (r *ReadOnlyAdapter) Write(_ context.Context, path string, _ []byte, _ storage.Config) error {
	return storage.UnableToWriteFile(path, "", ErrReadOnly)
}

// WriteStream implements storage.Adapter.
func (r *ReadOnlyAdapter) WriteStream(_ context.Context, path string, _ io.Reader, _ storage.Config) error {
	return storage.UnableToWriteFile(path, "", ErrReadOnly)
}

// Delete implements storage.Adapter.
func (r *ReadOnlyAdapter) Delete(_ context.Context, path string) error {
	return storage.UnableToDeleteFile(path, "", ErrReadOnly)
}

// DeleteDirectory implements storage.Adapter.
func (r *ReadOnlyAdapter) DeleteDirectory(_ context.Context, path string) error {
	return storage.UnableToDeleteDirectory(path, "", ErrReadOnly)
}

// CreateDirectory implements storage.Adapter.
func (r *ReadOnlyAdapter) CreateDirectory(_ context.Context, path string, _ storage.Config) error {
	return storage.UnableToCreateDirectory(path, "", ErrReadOnly)
}

// SetVisibility implements storage.Adapter.
func (r *ReadOnlyAdapter) SetVisibility(_ context.Context, path string, _ storage.Visibility) error {
	return storage.UnableToSetVisibility(path, "", ErrReadOnly)
}

// Move implements storage.Adapter.
func (r *ReadOnlyAdapter) Move(_ context.Context, source, destination string, _ storage.Config) error {
	return storage.UnableToMoveFile(source, destination, "", ErrReadOnly)
}

// Copy implements storage.Adapter.
func (r *ReadOnlyAdapter) Copy(_ context.Context, source, destination string, _ storage.Config) error {
	return storage.UnableToCopyFile(source, destination, "", ErrReadOnly)
}
