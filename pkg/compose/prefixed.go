package compose

import (
	"context"
	"io"
	"iter"

	"github.com/marmos91/strata/pkg/storage"
)

// prefixMapper maps caller paths below a fixed directory and back.
type prefixMapper struct {
	prefixer *storage.PathPrefixer
	root     string
}

func newPrefixMapper(prefix string) (prefixMapper, error) {
	normalized, err := storage.NormalizePath(prefix)
	if err != nil {
		return prefixMapper{}, err
	}
	if normalized == "" {
		return prefixMapper{}, ErrEmptyPrefix
	}
	return prefixMapper{
		prefixer: storage.NewPathPrefixer(normalized, "/"),
		root:     normalized,
	}, nil
}

// prefix maps a normalized caller path. The root maps onto the prefix
// directory itself.
func (m prefixMapper) prefix(path string) string {
	if path == "" {
		return m.root
	}
	return m.prefixer.PrefixPath(path)
}

// strip maps a path of the wrapped filesystem back to the caller's view.
func (m prefixMapper) strip(path string) string {
	if path == m.root {
		return ""
	}
	return m.prefixer.StripPrefix(path)
}

func (m prefixMapper) relocate(err error) error {
	return storage.RelocateError(err, m.strip)
}

// ============================================================================
// PrefixedFilesystem
// ============================================================================

// PrefixedFilesystem exposes a subdirectory of an operator as if it were
// the root.
//
// Caller paths are normalized first, so ".." can never climb out of the
// prefix. Listing results and error locations are reported relative to the
// prefix.
type PrefixedFilesystem struct {
	inner  storage.Operator
	mapper prefixMapper
}

var _ storage.Operator = (*PrefixedFilesystem)(nil)

// NewPrefixedFilesystem wraps inner below prefix. An empty prefix fails
// with ErrEmptyPrefix.
func NewPrefixedFilesystem(inner storage.Operator, prefix string) (*PrefixedFilesystem, error) {
	mapper, err := newPrefixMapper(prefix)
	if err != nil {
		return nil, err
	}
	return &PrefixedFilesystem{inner: inner, mapper: mapper}, nil
}

// Prefix returns the normalized prefix.
func (p *PrefixedFilesystem) Prefix() string {
	return p.mapper.root
}

// path normalizes a caller path and prefixes it.
func (p *PrefixedFilesystem) path(path string) (string, error) {
	normalized, err := storage.NormalizePath(path)
	if err != nil {
		return "", err
	}
	return p.mapper.prefix(normalized), nil
}

// FileExists implements storage.Reader.
func (p *PrefixedFilesystem) FileExists(ctx context.Context, path string) (bool, error) {
	location, err := p.path(path)
	if err != nil {
		return false, err
	}
	exists, err := p.inner.FileExists(ctx, location)
	return exists, p.mapper.relocate(err)
}

// DirectoryExists implements storage.Reader.
func (p *PrefixedFilesystem) DirectoryExists(ctx context.Context, path string) (bool, error) {
	location, err := p.path(path)
	if err != nil {
		return false, err
	}
	exists, err := p.inner.DirectoryExists(ctx, location)
	return exists, p.mapper.relocate(err)
}

// Has implements storage.Reader.
func (p *PrefixedFilesystem) Has(ctx context.Context, path string) (bool, error) {
	location, err := p.path(path)
	if err != nil {
		return false, err
	}
	exists, err := p.inner.Has(ctx, location)
	return exists, p.mapper.relocate(err)
}

// Read implements storage.Reader.
func (p *PrefixedFilesystem) Read(ctx context.Context, path string) ([]byte, error) {
	location, err := p.path(path)
	if err != nil {
		return nil, err
	}
	contents, err := p.inner.Read(ctx, location)
	return contents, p.mapper.relocate(err)
}

// ReadStream implements storage.Reader.
func (p *PrefixedFilesystem) ReadStream(ctx context.Context, path string) (io.ReadCloser, error) {
	location, err := p.path(path)
	if err != nil {
		return nil, err
	}
	stream, err := p.inner.ReadStream(ctx, location)
	return stream, p.mapper.relocate(err)
}

// ListContents implements storage.Reader.
func (p *PrefixedFilesystem) ListContents(ctx context.Context, path string, deep bool) *storage.DirectoryListing[storage.StorageAttributes] {
	location, err := p.path(path)
	if err != nil {
		return storage.NewDirectoryListing(storage.FailedListing(err))
	}
	return storage.NewDirectoryListing(p.mapper.mapListing(p.inner.ListContents(ctx, location, deep).All()))
}

// mapListing strips the prefix from every entry and error.
func (m prefixMapper) mapListing(seq iter.Seq2[storage.StorageAttributes, error]) iter.Seq2[storage.StorageAttributes, error] {
	return func(yield func(storage.StorageAttributes, error) bool) {
		for attrs, err := range seq {
			if err != nil {
				yield(nil, m.relocate(err))
				return
			}
			if !yield(attrs.WithPath(m.strip(attrs.Path())), nil) {
				return
			}
		}
	}
}

// LastModified implements storage.Reader.
func (p *PrefixedFilesystem) LastModified(ctx context.Context, path string) (int64, error) {
	location, err := p.path(path)
	if err != nil {
		return 0, err
	}
	ts, err := p.inner.LastModified(ctx, location)
	return ts, p.mapper.relocate(err)
}

// FileSize implements storage.Reader.
func (p *PrefixedFilesystem) FileSize(ctx context.Context, path string) (int64, error) {
	location, err := p.path(path)
	if err != nil {
		return 0, err
	}
	size, err := p.inner.FileSize(ctx, location)
	return size, p.mapper.relocate(err)
}

// MimeType implements storage.Reader.
func (p *PrefixedFilesystem) MimeType(ctx context.Context, path string) (string, error) {
	location, err := p.path(path)
	if err != nil {
		return "", err
	}
	mimeType, err := p.inner.MimeType(ctx, location)
	return mimeType, p.mapper.relocate(err)
}

// Visibility implements storage.Reader.
func (p *PrefixedFilesystem) Visibility(ctx context.Context, path string) (storage.Visibility, error) {
	location, err := p.path(path)
	if err != nil {
		return "", err
	}
	v, err := p.inner.Visibility(ctx, location)
	return v, p.mapper.relocate(err)
}

// Checksum implements storage.Reader.
func (p *PrefixedFilesystem) Checksum(ctx context.Context, path string, config storage.Config) (string, error) {
	location, err := p.path(path)
	if err != nil {
		return "", err
	}
	sum, err := p.inner.Checksum(ctx, location, config)
	return sum, p.mapper.relocate(err)
}

// Write implements storage.Writer.
func (p *PrefixedFilesystem) Write(ctx context.Context, path string, contents []byte, config storage.Config) error {
	location, err := p.path(path)
	if err != nil {
		return err
	}
	return p.mapper.relocate(p.inner.Write(ctx, location, contents, config))
}

// WriteStream implements storage.Writer.
func (p *PrefixedFilesystem) WriteStream(ctx context.Context, path string, r io.Reader, config storage.Config) error {
	location, err := p.path(path)
	if err != nil {
		return err
	}
	return p.mapper.relocate(p.inner.WriteStream(ctx, location, r, config))
}

// SetVisibility implements storage.Writer.
func (p *PrefixedFilesystem) SetVisibility(ctx context.Context, path string, visibility storage.Visibility) error {
	location, err := p.path(path)
	if err != nil {
		return err
	}
	return p.mapper.relocate(p.inner.SetVisibility(ctx, location, visibility))
}

// Delete implements storage.Writer.
func (p *PrefixedFilesystem) Delete(ctx context.Context, path string) error {
	location, err := p.path(path)
	if err != nil {
		return err
	}
	return p.mapper.relocate(p.inner.Delete(ctx, location))
}

// DeleteDirectory implements storage.Writer. Deleting the root empties the
// prefix directory and removes it.
func (p *PrefixedFilesystem) DeleteDirectory(ctx context.Context, path string) error {
	location, err := p.path(path)
	if err != nil {
		return err
	}
	return p.mapper.relocate(p.inner.DeleteDirectory(ctx, location))
}

// CreateDirectory implements storage.Writer.
func (p *PrefixedFilesystem) CreateDirectory(ctx context.Context, path string, config storage.Config) error {
	location, err := p.path(path)
	if err != nil {
		return err
	}
	return p.mapper.relocate(p.inner.CreateDirectory(ctx, location, config))
}

// Move implements storage.Writer.
func (p *PrefixedFilesystem) Move(ctx context.Context, source, destination string, config storage.Config) error {
	from, err := p.path(source)
	if err != nil {
		return err
	}
	to, err := p.path(destination)
	if err != nil {
		return err
	}
	return p.mapper.relocate(p.inner.Move(ctx, from, to, config))
}

// Copy implements storage.Writer.
func (p *PrefixedFilesystem) Copy(ctx context.Context, source, destination string, config storage.Config) error {
	from, err := p.path(source)
	if err != nil {
		return err
	}
	to, err := p.path(destination)
	if err != nil {
		return err
	}
	return p.mapper.relocate(p.inner.Copy(ctx, from, to, config))
}

// ============================================================================
// PathPrefixedAdapter
// ============================================================================

// PathPrefixedAdapter scopes an adapter to a subdirectory. It receives
// already-normalized paths from a storage.Filesystem.
type PathPrefixedAdapter struct {
	inner  storage.Adapter
	mapper prefixMapper
}

var _ storage.Adapter = (*PathPrefixedAdapter)(nil)

// NewPathPrefixedAdapter wraps inner below prefix. An empty prefix fails
// with ErrEmptyPrefix.
func NewPathPrefixedAdapter(inner storage.Adapter, prefix string) (*PathPrefixedAdapter, error) {
	mapper, err := newPrefixMapper(prefix)
	if err != nil {
		return nil, err
	}
	return &PathPrefixedAdapter{inner: inner, mapper: mapper}, nil
}

// Unwrap returns the wrapped adapter.
func (p *PathPrefixedAdapter) Unwrap() storage.Adapter {
	return p.inner
}

// FileExists implements storage.Adapter.
func (p *PathPrefixedAdapter) FileExists(ctx context.Context, path string) (bool, error) {
	exists, err := p.inner.FileExists(ctx, p.mapper.prefix(path))
	return exists, p.mapper.relocate(err)
}

// DirectoryExists implements storage.Adapter.
func (p *PathPrefixedAdapter) DirectoryExists(ctx context.Context, path string) (bool, error) {
	exists, err := p.inner.DirectoryExists(ctx, p.mapper.prefix(path))
	return exists, p.mapper.relocate(err)
}

// Write implements storage.Adapter.
func (p *PathPrefixedAdapter) Write(ctx context.Context, path string, contents []byte, config storage.Config) error {
	return p.mapper.relocate(p.inner.Write(ctx, p.mapper.prefix(path), contents, config))
}

// WriteStream implements storage.Adapter.
func (p *PathPrefixedAdapter) WriteStream(ctx context.Context, path string, r io.Reader, config storage.Config) error {
	return p.mapper.relocate(p.inner.WriteStream(ctx, p.mapper.prefix(path), r, config))
}

// Read implements storage.Adapter.
func (p *PathPrefixedAdapter) Read(ctx context.Context, path string) ([]byte, error) {
	contents, err := p.inner.Read(ctx, p.mapper.prefix(path))
	return contents, p.mapper.relocate(err)
}

// ReadStream implements storage.Adapter.
func (p *PathPrefixedAdapter) ReadStream(ctx context.Context, path string) (io.ReadCloser, error) {
	stream, err := p.inner.ReadStream(ctx, p.mapper.prefix(path))
	return stream, p.mapper.relocate(err)
}

// Delete implements storage.Adapter.
func (p *PathPrefixedAdapter) Delete(ctx context.Context, path string) error {
	return p.mapper.relocate(p.inner.Delete(ctx, p.mapper.prefix(path)))
}

// DeleteDirectory implements storage.Adapter.
func (p *PathPrefixedAdapter) DeleteDirectory(ctx context.Context, path string) error {
	return p.mapper.relocate(p.inner.DeleteDirectory(ctx, p.mapper.prefix(path)))
}

// CreateDirectory implements storage.Adapter.
func (p *PathPrefixedAdapter) CreateDirectory(ctx context.Context, path string, config storage.Config) error {
	return p.mapper.relocate(p.inner.CreateDirectory(ctx, p.mapper.prefix(path), config))
}

// SetVisibility implements storage.Adapter.
func (p *PathPrefixedAdapter) SetVisibility(ctx context.Context, path string, visibility storage.Visibility) error {
	return p.mapper.relocate(p.inner.SetVisibility(ctx, p.mapper.prefix(path), visibility))
}

// Visibility implements storage.Adapter.
func (p *PathPrefixedAdapter) Visibility(ctx context.Context, path string) (*storage.FileAttributes, error) {
	return p.attributes(p.inner.Visibility(ctx, p.mapper.prefix(path)))
}

// MimeType implements storage.Adapter.
func (p *PathPrefixedAdapter) MimeType(ctx context.Context, path string) (*storage.FileAttributes, error) {
	return p.attributes(p.inner.MimeType(ctx, p.mapper.prefix(path)))
}

// LastModified implements storage.Adapter.
func (p *PathPrefixedAdapter) LastModified(ctx context.Context, path string) (*storage.FileAttributes, error) {
	return p.attributes(p.inner.LastModified(ctx, p.mapper.prefix(path)))
}

// FileSize implements storage.Adapter.
func (p *PathPrefixedAdapter) FileSize(ctx context.Context, path string) (*storage.FileAttributes, error) {
	return p.attributes(p.inner.FileSize(ctx, p.mapper.prefix(path)))
}

func (p *PathPrefixedAdapter) attributes(attrs *storage.FileAttributes, err error) (*storage.FileAttributes, error) {
	if err != nil {
		return nil, p.mapper.relocate(err)
	}
	if attrs == nil {
		return nil, nil
	}
	stripped, _ := attrs.WithPath(p.mapper.strip(attrs.Path())).(*storage.FileAttributes)
	return stripped, nil
}

// ListContents implements storage.Adapter.
func (p *PathPrefixedAdapter) ListContents(ctx context.Context, path string, deep bool) iter.Seq2[storage.StorageAttributes, error] {
	return p.mapper.mapListing(p.inner.ListContents(ctx, p.mapper.prefix(path), deep))
}

// Move implements storage.Adapter.
func (p *PathPrefixedAdapter) Move(ctx context.Context, source, destination string, config storage.Config) error {
	return p.mapper.relocate(p.inner.Move(ctx, p.mapper.prefix(source), p.mapper.prefix(destination), config))
}

// Copy implements storage.Adapter.
func (p *PathPrefixedAdapter) Copy(ctx context.Context, source, destination string, config storage.Config) error {
	return p.mapper.relocate(p.inner.Copy(ctx, p.mapper.prefix(source), p.mapper.prefix(destination), config))
}

// Checksum implements storage.ChecksumProvider when the wrapped adapter
// does.
func (p *PathPrefixedAdapter) Checksum(ctx context.Context, path string, config storage.Config) (string, error) {
	provider, ok := p.inner.(storage.ChecksumProvider)
	if !ok {
		return "", storage.ErrChecksumAlgoNotSupported
	}
	sum, err := provider.Checksum(ctx, p.mapper.prefix(path), config)
	return sum, p.mapper.relocate(err)
}

// Close implements storage.Closer.
func (p *PathPrefixedAdapter) Close() error {
	return closeAll([]storage.Adapter{p.inner})
}
