package compose

import (
	"context"
	"io"
	"iter"
	"time"

	"github.com/marmos91/strata/pkg/storage"
)

// Metrics provides observability for adapter operations.
//
// Implementations can use this interface to collect operation counts,
// latency and throughput. This is optional - if not provided, metrics
// collection is skipped.
//
// Example implementations:
//   - Prometheus metrics (pkg/metrics)
//   - In-memory counters for testing
type Metrics interface {
	// ObserveOperation records one adapter call. err is the call's result.
	ObserveOperation(adapter, operation string, duration time.Duration, err error)

	// RecordBytes records bytes read or written by an operation.
	RecordBytes(adapter, operation string, bytes int64)
}

// noopMetrics is the default no-op metrics implementation.
type noopMetrics struct{}

func (noopMetrics) ObserveOperation(string, string, time.Duration, error) {}
func (noopMetrics) RecordBytes(string, string, int64)                     {}

// Operation names reported to Metrics.
const (
	OpFileExists      = "file_exists"
	OpDirectoryExists = "directory_exists"
	OpWrite           = "write"
	OpWriteStream     = "write_stream"
	OpRead            = "read"
	OpReadStream      = "read_stream"
	OpDelete          = "delete"
	OpDeleteDirectory = "delete_directory"
	OpCreateDirectory = "create_directory"
	OpSetVisibility   = "set_visibility"
	OpVisibility      = "visibility"
	OpMimeType        = "mime_type"
	OpLastModified    = "last_modified"
	OpFileSize        = "file_size"
	OpListContents    = "list_contents"
	OpMove            = "move"
	OpCopy            = "copy"
	OpChecksum        = "checksum"
)

// InstrumentedAdapter reports every call of the wrapped adapter to a
// Metrics implementation under a fixed adapter name.
//
// Streams are measured when they end: ReadStream bytes are recorded when
// the returned reader is closed, listings are observed once iteration
// stops.
type InstrumentedAdapter struct {
	name    string
	inner   storage.Adapter
	metrics Metrics
}

var _ storage.Adapter = (*InstrumentedAdapter)(nil)

// NewInstrumentedAdapter wraps inner. A nil metrics disables collection.
func NewInstrumentedAdapter(name string, inner storage.Adapter, metrics Metrics) *InstrumentedAdapter {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &InstrumentedAdapter{name: name, inner: inner, metrics: metrics}
}

// Unwrap returns the wrapped adapter.
func (i *InstrumentedAdapter) Unwrap() storage.Adapter {
	return i.inner
}

func (i *InstrumentedAdapter) observe(operation string, start time.Time, err error) {
	i.metrics.ObserveOperation(i.name, operation, time.Since(start), err)
}

// FileExists implements storage.Adapter.
func (i *InstrumentedAdapter) FileExists(ctx context.Context, path string) (bool, error) {
	start := time.Now()
	exists, err := i.inner.FileExists(ctx, path)
	i.observe(OpFileExists, start, err)
	return exists, err
}

// DirectoryExists implements storage.Adapter.
func (i *InstrumentedAdapter) DirectoryExists(ctx context.Context, path string) (bool, error) {
	start := time.Now()
	exists, err := i.inner.DirectoryExists(ctx, path)
	i.observe(OpDirectoryExists, start, err)
	return exists, err
}

// Write implements storage.Adapter.
func (i *InstrumentedAdapter) Write(ctx context.Context, path string, contents []byte, config storage.Config) error {
	start := time.Now()
	err := i.inner.Write(ctx, path, contents, config)
	i.observe(OpWrite, start, err)
	if err == nil {
		i.metrics.RecordBytes(i.name, OpWrite, int64(len(contents)))
	}
	return err
}

// WriteStream implements storage.Adapter.
func (i *InstrumentedAdapter) WriteStream(ctx context.Context, path string, r io.Reader, config storage.Config) error {
	start := time.Now()
	counter := &countingReader{r: r}
	err := i.inner.WriteStream(ctx, path, counter, config)
	i.observe(OpWriteStream, start, err)
	if err == nil {
		i.metrics.RecordBytes(i.name, OpWriteStream, counter.n)
	}
	return err
}

// Read implements storage.Adapter.
func (i *InstrumentedAdapter) Read(ctx context.Context, path string) ([]byte, error) {
	start := time.Now()
	contents, err := i.inner.Read(ctx, path)
	i.observe(OpRead, start, err)
	if err == nil {
		i.metrics.RecordBytes(i.name, OpRead, int64(len(contents)))
	}
	return contents, err
}

// ReadStream implements storage.Adapter.
func (i *InstrumentedAdapter) ReadStream(ctx context.Context, path string) (io.ReadCloser, error) {
	start := time.Now()
	stream, err := i.inner.ReadStream(ctx, path)
	i.observe(OpReadStream, start, err)
	if err != nil {
		return nil, err
	}
	return &measuredStream{ReadCloser: stream, counter: countingReader{r: stream}, owner: i}, nil
}

// measuredStream records the bytes read from a stream when it is closed.
type measuredStream struct {
	io.ReadCloser
	counter countingReader
	owner   *InstrumentedAdapter
	closed  bool
}

func (s *measuredStream) Read(p []byte) (int, error) {
	return s.counter.Read(p)
}

func (s *measuredStream) Close() error {
	if !s.closed {
		s.closed = true
		s.owner.metrics.RecordBytes(s.owner.name, OpReadStream, s.counter.n)
	}
	return s.ReadCloser.Close()
}

// Delete implements storage.Adapter.
func (i *InstrumentedAdapter) Delete(ctx context.Context, path string) error {
	start := time.Now()
	err := i.inner.Delete(ctx, path)
	i.observe(OpDelete, start, err)
	return err
}

// DeleteDirectory implements storage.Adapter.
func (i *InstrumentedAdapter) DeleteDirectory(ctx context.Context, path string) error {
	start := time.Now()
	err := i.inner.DeleteDirectory(ctx, path)
	i.observe(OpDeleteDirectory, start, err)
	return err
}

// CreateDirectory implements storage.Adapter.
func (i *InstrumentedAdapter) CreateDirectory(ctx context.Context, path string, config storage.Config) error {
	start := time.Now()
	err := i.inner.CreateDirectory(ctx, path, config)
	i.observe(OpCreateDirectory, start, err)
	return err
}

// SetVisibility implements storage.Adapter.
func (i *InstrumentedAdapter) SetVisibility(ctx context.Context, path string, visibility storage.Visibility) error {
	start := time.Now()
	err := i.inner.SetVisibility(ctx, path, visibility)
	i.observe(OpSetVisibility, start, err)
	return err
}

// Visibility implements storage.Adapter.
func (i *InstrumentedAdapter) Visibility(ctx context.Context, path string) (*storage.FileAttributes, error) {
	start := time.Now()
	attrs, err := i.inner.Visibility(ctx, path)
	i.observe(OpVisibility, start, err)
	return attrs, err
}

// MimeType implements storage.Adapter.
func (i *InstrumentedAdapter) MimeType(ctx context.Context, path string) (*storage.FileAttributes, error) {
	start := time.Now()
	attrs, err := i.inner.MimeType(ctx, path)
	i.observe(OpMimeType, start, err)
	return attrs, err
}

// LastModified implements storage.Adapter.
func (i *InstrumentedAdapter) LastModified(ctx context.Context, path string) (*storage.FileAttributes, error) {
	start := time.Now()
	attrs, err := i.inner.LastModified(ctx, path)
	i.observe(OpLastModified, start, err)
	return attrs, err
}

// FileSize implements storage.Adapter.
func (i *InstrumentedAdapter) FileSize(ctx context.Context, path string) (*storage.FileAttributes, error) {
	start := time.Now()
	attrs, err := i.inner.FileSize(ctx, path)
	i.observe(OpFileSize, start, err)
	return attrs, err
}

// ListContents implements storage.Adapter.
func (i *InstrumentedAdapter) ListContents(ctx context.Context, path string, deep bool) iter.Seq2[storage.StorageAttributes, error] {
	return func(yield func(storage.StorageAttributes, error) bool) {
		start := time.Now()
		var listErr error
		defer func() { i.observe(OpListContents, start, listErr) }()

		for attrs, err := range i.inner.ListContents(ctx, path, deep) {
			if err != nil {
				listErr = err
			}
			if !yield(attrs, err) {
				return
			}
		}
	}
}

// Move implements storage.Adapter.
func (i *InstrumentedAdapter) Move(ctx context.Context, source, destination string, config storage.Config) error {
	start := time.Now()
	err := i.inner.Move(ctx, source, destination, config)
	i.observe(OpMove, start, err)
	return err
}

// Copy implements storage.Adapter.
func (i *InstrumentedAdapter) Copy(ctx context.Context, source, destination string, config storage.Config) error {
	start := time.Now()
	err := i.inner.Copy(ctx, source, destination, config)
	i.observe(OpCopy, start, err)
	return err
}

// Checksum implements storage.ChecksumProvider when the wrapped adapter
// does.
func (i *InstrumentedAdapter) Checksum(ctx context.Context, path string, config storage.Config) (string, error) {
	provider, ok := i.inner.(storage.ChecksumProvider)
	if !ok {
		return "", storage.ErrChecksumAlgoNotSupported
	}

	start := time.Now()
	sum, err := provider.Checksum(ctx, path, config)
	i.observe(OpChecksum, start, err)
	return sum, err
}

// Close implements storage.Closer.
func (i *InstrumentedAdapter) Close() error {
	return closeAll([]storage.Adapter{i.inner})
}
