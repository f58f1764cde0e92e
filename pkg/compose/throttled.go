package compose

import (
	"context"
	"fmt"
	"io"
	"iter"

	"github.com/marmos91/strata/internal/logger"
	"github.com/marmos91/strata/internal/ratelimiter"
	"github.com/marmos91/strata/pkg/storage"
)

// ThrottledAdapter bounds the rate of calls to the wrapped adapter. Every
// call takes one token from a shared bucket before it reaches the backend;
// a listing takes its token when iteration starts.
//
// When waiting for a token fails (the context is canceled, or its deadline
// comes before the next token) the call is still forwarded, with a context
// canceled by the wait error, so the adapter reports the failure with the
// error kind of the operation.
type ThrottledAdapter struct {
	inner   storage.Adapter
	limiter *ratelimiter.Limiter
}

var _ storage.Adapter = (*ThrottledAdapter)(nil)

// NewThrottledAdapter wraps inner with a limit of opsPerSecond sustained
// calls and bursts of up to burst calls. opsPerSecond <= 0 disables the
// limit; burst <= 0 defaults to the rate.
func NewThrottledAdapter(inner storage.Adapter, opsPerSecond float64, burst int) *ThrottledAdapter {
	return &ThrottledAdapter{inner: inner, limiter: ratelimiter.New(opsPerSecond, burst)}
}

// Unwrap returns the wrapped adapter.
func (t *ThrottledAdapter) Unwrap() storage.Adapter {
	return t.inner
}

// wait takes a token and returns the context the call runs with.
func (t *ThrottledAdapter) wait(ctx context.Context) context.Context {
	err := t.limiter.Wait(ctx)
	if err == nil {
		return ctx
	}

	logger.Debug("throttled adapter: wait for token failed: %v", err)
	canceled, cancel := context.WithCancelCause(ctx)
	cancel(fmt.Errorf("rate limit: %w", err))
	return canceled
}

// FileExists implements storage.Adapter.
func (t *ThrottledAdapter) FileExists(ctx context.Context, path string) (bool, error) {
	return t.inner.FileExists(t.wait(ctx), path)
}

// DirectoryExists implements storage.Adapter.
func (t *ThrottledAdapter) DirectoryExists(ctx context.Context, path string) (bool, error) {
	return t.inner.DirectoryExists(t.wait(ctx), path)
}

// Write implements storage.Adapter.
func (t *ThrottledAdapter) Write(ctx context.Context, path string, contents []byte, config storage.Config) error {
	return t.inner.Write(t.wait(ctx), path, contents, config)
}

// WriteStream implements storage.Adapter.
func (t *ThrottledAdapter) WriteStream(ctx context.Context, path string, r io.Reader, config storage.Config) error {
	return t.inner.WriteStream(t.wait(ctx), path, r, config)
}

// Read implements storage.Adapter.
func (t *ThrottledAdapter) Read(ctx context.Context, path string) ([]byte, error) {
	return t.inner.Read(t.wait(ctx), path)
}

// ReadStream implements storage.Adapter.
func (t *ThrottledAdapter) ReadStream(ctx context.Context, path string) (io.ReadCloser, error) {
	return t.inner.ReadStream(t.wait(ctx), path)
}

// Delete implements storage.Adapter.
func (t *ThrottledAdapter) Delete(ctx context.Context, path string) error {
	return t.inner.Delete(t.wait(ctx), path)
}

// DeleteDirectory implements storage.Adapter.
func (t *ThrottledAdapter) DeleteDirectory(ctx context.Context, path string) error {
	return t.inner.DeleteDirectory(t.wait(ctx), path)
}

// CreateDirectory implements storage.Adapter.
func (t *ThrottledAdapter) CreateDirectory(ctx context.Context, path string, config storage.Config) error {
	return t.inner.CreateDirectory(t.wait(ctx), path, config)
}

// SetVisibility implements storage.Adapter.
func (t *ThrottledAdapter) SetVisibility(ctx context.Context, path string, visibility storage.Visibility) error {
	return t.inner.SetVisibility(t.wait(ctx), path, visibility)
}

// Visibility implements storage.Adapter.
func (t *ThrottledAdapter) Visibility(ctx context.Context, path string) (*storage.FileAttributes, error) {
	return t.inner.Visibility(t.wait(ctx), path)
}

// MimeType implements storage.Adapter.
func (t *ThrottledAdapter) MimeType(ctx context.Context, path string) (*storage.FileAttributes, error) {
	return t.inner.MimeType(t.wait(ctx), path)
}

// LastModified implements storage.Adapter.
func (t *ThrottledAdapter) LastModified(ctx context.Context, path string) (*storage.FileAttributes, error) {
	return t.inner.LastModified(t.wait(ctx), path)
}

// FileSize implements storage.Adapter.
func (t *ThrottledAdapter) FileSize(ctx context.Context, path string) (*storage.FileAttributes, error) {
	return t.inner.FileSize(t.wait(ctx), path)
}

// ListContents implements storage.Adapter.
func (t *ThrottledAdapter) ListContents(ctx context.Context, path string, deep bool) iter.Seq2[storage.StorageAttributes, error] {
	return func(yield func(storage.StorageAttributes, error) bool) {
		for attrs, err := range t.inner.ListContents(t.wait(ctx), path, deep) {
			if !yield(attrs, err) {
				return
			}
		}
	}
}

// Move implements storage.Adapter.
func (t *ThrottledAdapter) Move(ctx context.Context, source, destination string, config storage.Config) error {
	return t.inner.Move(t.wait(ctx), source, destination, config)
}

// Copy implements storage.Adapter.
func (t *ThrottledAdapter) Copy(ctx context.Context, source, destination string, config storage.Config) error {
	return t.inner.Copy(t.wait(ctx), source, destination, config)
}

// Checksum implements storage.ChecksumProvider when the wrapped adapter
// does.
func (t *ThrottledAdapter) Checksum(ctx context.Context, path string, config storage.Config) (string, error) {
	provider, ok := t.inner.(storage.ChecksumProvider)
	if !ok {
		return "", storage.ErrChecksumAlgoNotSupported
	}
	return provider.Checksum(t.wait(ctx), path, config)
}

// Close implements storage.Closer.
func (t *ThrottledAdapter) Close() error {
	return closeAll([]storage.Adapter{t.inner})
}
