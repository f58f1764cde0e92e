package storage

import (
	"context"
	"errors"
	"io"

	"github.com/marmos91/strata/internal/logger"
)

// ============================================================================
// Operator Interfaces
// ============================================================================

// Reader is the read side of the caller-facing filesystem contract.
type Reader interface {
	FileExists(ctx context.Context, path string) (bool, error)
	DirectoryExists(ctx context.Context, path string) (bool, error)
	Has(ctx context.Context, path string) (bool, error)
	Read(ctx context.Context, path string) ([]byte, error)
	ReadStream(ctx context.Context, path string) (io.ReadCloser, error)
	ListContents(ctx context.Context, path string, deep bool) *DirectoryListing[StorageAttributes]
	LastModified(ctx context.Context, path string) (int64, error)
	FileSize(ctx context.Context, path string) (int64, error)
	MimeType(ctx context.Context, path string) (string, error)
	Visibility(ctx context.Context, path string) (Visibility, error)
	Checksum(ctx context.Context, path string, config Config) (string, error)
}

// Writer is the mutating side of the caller-facing filesystem contract.
type Writer interface {
	Write(ctx context.Context, path string, contents []byte, config Config) error
	WriteStream(ctx context.Context, path string, r io.Reader, config Config) error
	SetVisibility(ctx context.Context, path string, visibility Visibility) error
	Delete(ctx context.Context, path string) error
	DeleteDirectory(ctx context.Context, path string) error
	CreateDirectory(ctx context.Context, path string, config Config) error
	Move(ctx context.Context, source, destination string, config Config) error
	Copy(ctx context.Context, source, destination string, config Config) error
}

// Operator is the full caller-facing contract. *Filesystem implements it, and
// so do the operator-level decorators in pkg/compose.
type Operator interface {
	Reader
	Writer
}

// ============================================================================
// Filesystem
// ============================================================================

// Filesystem is the caller-facing facade over a single Adapter.
//
// Every path argument is normalized before it reaches the adapter, call
// configs are merged over the default config, and any failure the adapter
// did not already classify is translated into the error taxonomy. When the
// caller's path differs from its normalized form, the original is recorded
// in OperationError.Requested.
//
// Filesystem holds no mutable state; it is safe for concurrent use to the
// extent its adapter is.
type Filesystem struct {
	adapter    Adapter
	config     Config
	normalizer PathNormalizer
}

// Option configures a Filesystem.
type Option func(*Filesystem)

// WithConfig sets the default config merged under every call config.
func WithConfig(config Config) Option {
	return func(f *Filesystem) { f.config = config }
}

// WithPathNormalizer replaces the DefaultPathNormalizer.
func WithPathNormalizer(normalizer PathNormalizer) Option {
	return func(f *Filesystem) { f.normalizer = normalizer }
}

// New creates a Filesystem over adapter.
func New(adapter Adapter, opts ...Option) *Filesystem {
	f := &Filesystem{
		adapter:    adapter,
		normalizer: DefaultPathNormalizer{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Adapter returns the wrapped adapter.
func (f *Filesystem) Adapter() Adapter {
	return f.adapter
}

// Config returns the default config.
func (f *Filesystem) Config() Config {
	return f.config
}

// Close releases the adapter's resources when it holds any.
func (f *Filesystem) Close() error {
	if closer, ok := f.adapter.(Closer); ok {
		return closer.Close()
	}
	return nil
}

// ============================================================================
// Read Operations
// ============================================================================

// FileExists reports whether a file exists at path.
func (f *Filesystem) FileExists(ctx context.Context, path string) (bool, error) {
	location, err := f.normalizer.NormalizePath(path)
	if err != nil {
		return false, err
	}

	exists, err := f.adapter.FileExists(ctx, location)
	if err != nil {
		return false, f.translate(err, path, location, func(cause error) error {
			return UnableToCheckFileExistence(location, cause)
		})
	}
	return exists, nil
}

// DirectoryExists reports whether a directory exists at path.
func (f *Filesystem) DirectoryExists(ctx context.Context, path string) (bool, error) {
	location, err := f.normalizer.NormalizePath(path)
	if err != nil {
		return false, err
	}

	exists, err := f.adapter.DirectoryExists(ctx, location)
	if err != nil {
		return false, f.translate(err, path, location, func(cause error) error {
			return UnableToCheckDirectoryExistence(location, cause)
		})
	}
	return exists, nil
}

// Has reports whether a file or a directory exists at path.
func (f *Filesystem) Has(ctx context.Context, path string) (bool, error) {
	exists, err := f.FileExists(ctx, path)
	if err != nil || exists {
		return exists, err
	}
	return f.DirectoryExists(ctx, path)
}

// Read returns the contents of the file at path.
func (f *Filesystem) Read(ctx context.Context, path string) ([]byte, error) {
	location, err := f.normalizer.NormalizePath(path)
	if err != nil {
		return nil, err
	}

	contents, err := f.adapter.Read(ctx, location)
	if err != nil {
		return nil, f.translate(err, path, location, func(cause error) error {
			return UnableToReadFile(location, "", cause)
		})
	}
	return contents, nil
}

// ReadStream opens the file at path. The caller must close the reader.
func (f *Filesystem) ReadStream(ctx context.Context, path string) (io.ReadCloser, error) {
	location, err := f.normalizer.NormalizePath(path)
	if err != nil {
		return nil, err
	}

	stream, err := f.adapter.ReadStream(ctx, location)
	if err != nil {
		return nil, f.translate(err, path, location, func(cause error) error {
			return UnableToReadFile(location, "", cause)
		})
	}
	return stream, nil
}

// ListContents lists the entries below path. The listing is lazy: nothing
// is fetched from the adapter until it is iterated.
func (f *Filesystem) ListContents(ctx context.Context, path string, deep bool) *DirectoryListing[StorageAttributes] {
	location, err := f.normalizer.NormalizePath(path)
	if err != nil {
		return NewDirectoryListing(FailedListing(err))
	}

	return NewDirectoryListing(func(yield func(StorageAttributes, error) bool) {
		for attrs, err := range f.adapter.ListContents(ctx, location, deep) {
			if err != nil {
				yield(nil, f.translate(err, path, location, func(cause error) error {
					return UnableToListContents(location, deep, cause)
				}))
				return
			}
			if !yield(attrs, nil) {
				return
			}
		}
	})
}

// LastModified returns the unix modification time of the file at path.
func (f *Filesystem) LastModified(ctx context.Context, path string) (int64, error) {
	location, attrs, err := f.metadata(ctx, path, FieldLastModified, f.adapter.LastModified)
	if err != nil {
		return 0, err
	}

	ts, ok := attrs.LastModified()
	if !ok {
		return 0, UnableToRetrieveMetadata(location, FieldLastModified, "last modified time is not available", nil)
	}
	return ts, nil
}

// FileSize returns the size in bytes of the file at path.
func (f *Filesystem) FileSize(ctx context.Context, path string) (int64, error) {
	location, attrs, err := f.metadata(ctx, path, FieldFileSize, f.adapter.FileSize)
	if err != nil {
		return 0, err
	}

	size, ok := attrs.FileSize()
	if !ok {
		return 0, UnableToRetrieveMetadata(location, FieldFileSize, "file size is not available", nil)
	}
	return size, nil
}

// MimeType returns the mime type of the file at path.
func (f *Filesystem) MimeType(ctx context.Context, path string) (string, error) {
	location, attrs, err := f.metadata(ctx, path, FieldMimeType, f.adapter.MimeType)
	if err != nil {
		return "", err
	}

	mimeType, ok := attrs.MimeType()
	if !ok {
		return "", UnableToRetrieveMetadata(location, FieldMimeType, "mime type is not available", nil)
	}
	return mimeType, nil
}

// Visibility returns the visibility of path.
func (f *Filesystem) Visibility(ctx context.Context, path string) (Visibility, error) {
	location, attrs, err := f.metadata(ctx, path, FieldVisibility, f.adapter.Visibility)
	if err != nil {
		return "", err
	}

	visibility := attrs.Visibility()
	if visibility == "" {
		return "", UnableToRetrieveMetadata(location, FieldVisibility, "visibility is not available", nil)
	}
	return visibility, nil
}

// Checksum returns the hex checksum of the file at path.
//
// The algorithm comes from the checksum_algo option (md5 by default). When
// the adapter implements ChecksumProvider it is asked first; otherwise, or
// when it does not support the algorithm, the file is streamed through the
// hash with bounded memory.
func (f *Filesystem) Checksum(ctx context.Context, path string, config Config) (string, error) {
	location, err := f.normalizer.NormalizePath(path)
	if err != nil {
		return "", err
	}

	cfg := f.config.Extend(config.Options())
	algo := cfg.GetString(OptionChecksumAlgo, DefaultChecksumAlgo)

	if provider, ok := f.adapter.(ChecksumProvider); ok {
		sum, err := provider.Checksum(ctx, location, cfg)
		if err == nil {
			return sum, nil
		}
		if !errors.Is(err, ErrChecksumAlgoNotSupported) {
			return "", f.translate(err, path, location, func(cause error) error {
				return UnableToProvideChecksum(location, "", cause)
			})
		}
		logger.Debug("checksum: adapter cannot provide %s for %s, hashing stream", algo, location)
	}

	stream, err := f.adapter.ReadStream(ctx, location)
	if err != nil {
		return "", UnableToProvideChecksum(location, err.Error(), err)
	}
	defer func() { _ = stream.Close() }()

	sum, err := ChecksumFromStream(stream, algo)
	if err != nil {
		return "", UnableToProvideChecksum(location, "", err)
	}
	return sum, nil
}

// ============================================================================
// Write Operations
// ============================================================================

// Write stores contents at path.
func (f *Filesystem) Write(ctx context.Context, path string, contents []byte, config Config) error {
	location, err := f.normalizer.NormalizePath(path)
	if err != nil {
		return err
	}

	cfg := f.config.Extend(config.Options())
	if err := validateVisibilityOptions(cfg); err != nil {
		return UnableToWriteFile(location, "", err)
	}

	err = f.adapter.Write(ctx, location, contents, cfg)
	return f.translate(err, path, location, func(cause error) error {
		return UnableToWriteFile(location, "", cause)
	})
}

// WriteStream stores everything read from r at path. r is not closed.
func (f *Filesystem) WriteStream(ctx context.Context, path string, r io.Reader, config Config) error {
	location, err := f.normalizer.NormalizePath(path)
	if err != nil {
		return err
	}
	if r == nil {
		return UnableToWriteFile(location, "stream is nil", nil)
	}

	cfg := f.config.Extend(config.Options())
	if err := validateVisibilityOptions(cfg); err != nil {
		return UnableToWriteFile(location, "", err)
	}

	err = f.adapter.WriteStream(ctx, location, r, cfg)
	return f.translate(err, path, location, func(cause error) error {
		return UnableToWriteFile(location, "", cause)
	})
}

// SetVisibility changes the visibility of path.
func (f *Filesystem) SetVisibility(ctx context.Context, path string, visibility Visibility) error {
	location, err := f.normalizer.NormalizePath(path)
	if err != nil {
		return err
	}

	parsed, err := ParseVisibility(string(visibility))
	if err != nil {
		return UnableToSetVisibility(location, "", err)
	}

	err = f.adapter.SetVisibility(ctx, location, parsed)
	return f.translate(err, path, location, func(cause error) error {
		return UnableToSetVisibility(location, "", cause)
	})
}

// Delete removes the file at path. Missing files are not an error.
func (f *Filesystem) Delete(ctx context.Context, path string) error {
	location, err := f.normalizer.NormalizePath(path)
	if err != nil {
		return err
	}

	err = f.adapter.Delete(ctx, location)
	return f.translate(err, path, location, func(cause error) error {
		return UnableToDeleteFile(location, "", cause)
	})
}

// DeleteDirectory removes the directory at path recursively. Missing
// directories are not an error.
func (f *Filesystem) DeleteDirectory(ctx context.Context, path string) error {
	location, err := f.normalizer.NormalizePath(path)
	if err != nil {
		return err
	}

	err = f.adapter.DeleteDirectory(ctx, location)
	return f.translate(err, path, location, func(cause error) error {
		return UnableToDeleteDirectory(location, "", cause)
	})
}

// CreateDirectory creates the directory at path. Existing directories are
// not an error.
func (f *Filesystem) CreateDirectory(ctx context.Context, path string, config Config) error {
	location, err := f.normalizer.NormalizePath(path)
	if err != nil {
		return err
	}

	cfg := f.config.Extend(config.Options())
	if err := validateVisibilityOptions(cfg); err != nil {
		return UnableToCreateDirectory(location, "", err)
	}

	err = f.adapter.CreateDirectory(ctx, location, cfg)
	return f.translate(err, path, location, func(cause error) error {
		return UnableToCreateDirectory(location, "", cause)
	})
}

// Move relocates source to destination. Moving an existing file onto
// itself is a no-op; a missing source fails either way.
func (f *Filesystem) Move(ctx context.Context, source, destination string, config Config) error {
	from, err := f.normalizer.NormalizePath(source)
	if err != nil {
		return err
	}
	to, err := f.normalizer.NormalizePath(destination)
	if err != nil {
		return err
	}
	if from == to {
		return f.translateTransfer(f.sourceExists(ctx, from, to, UnableToMoveFile), source, destination, from, to, nil)
	}

	cfg := f.transferConfig(config)
	if err := validateVisibilityOptions(cfg); err != nil {
		return UnableToMoveFile(from, to, "", err)
	}

	err = f.adapter.Move(ctx, from, to, cfg)
	return f.translateTransfer(err, source, destination, from, to, func(cause error) error {
		return UnableToMoveFile(from, to, "", cause)
	})
}

// Copy duplicates source at destination. Copying an existing file onto
// itself is a no-op; a missing source fails either way.
func (f *Filesystem) Copy(ctx context.Context, source, destination string, config Config) error {
	from, err := f.normalizer.NormalizePath(source)
	if err != nil {
		return err
	}
	to, err := f.normalizer.NormalizePath(destination)
	if err != nil {
		return err
	}
	if from == to {
		return f.translateTransfer(f.sourceExists(ctx, from, to, UnableToCopyFile), source, destination, from, to, nil)
	}

	cfg := f.transferConfig(config)
	if err := validateVisibilityOptions(cfg); err != nil {
		return UnableToCopyFile(from, to, "", err)
	}

	err = f.adapter.Copy(ctx, from, to, cfg)
	return f.translateTransfer(err, source, destination, from, to, func(cause error) error {
		return UnableToCopyFile(from, to, "", cause)
	})
}

// sourceExists checks the source of a transfer onto itself.
func (f *Filesystem) sourceExists(ctx context.Context, from, to string, fail func(source, destination, reason string, cause error) error) error {
	exists, err := f.adapter.FileExists(ctx, from)
	if err != nil {
		return fail(from, to, "", err)
	}
	if !exists {
		return fail(from, to, "source file does not exist", nil)
	}
	return nil
}

// ============================================================================
// Helpers
// ============================================================================

// metadata normalizes path and asks the adapter for one attribute.
func (f *Filesystem) metadata(
	ctx context.Context,
	path string,
	field MetadataField,
	fetch func(context.Context, string) (*FileAttributes, error),
) (string, *FileAttributes, error) {
	location, err := f.normalizer.NormalizePath(path)
	if err != nil {
		return "", nil, err
	}

	attrs, err := fetch(ctx, location)
	if err != nil {
		return location, nil, f.translate(err, path, location, func(cause error) error {
			return UnableToRetrieveMetadata(location, field, "", cause)
		})
	}
	if attrs == nil {
		return location, nil, UnableToRetrieveMetadata(location, field, "adapter returned no attributes", nil)
	}
	return location, attrs, nil
}

// transferConfig resolves the config for move and copy.
//
// Visibility is retained by default: unless the call config sets a
// visibility explicitly, the default visibility is dropped so the adapter
// keeps the source visibility.
func (f *Filesystem) transferConfig(config Config) Config {
	retain := config.GetBool(OptionRetainVisibility, f.config.GetBool(OptionRetainVisibility, true))
	full := f.config.Extend(config.Options())

	if _, explicit := config.Get(OptionVisibility); retain && !explicit {
		full = full.Without(OptionVisibility)
	}
	return full.WithSetting(OptionRetainVisibility, retain)
}

// translate classifies an adapter failure.
//
// Errors already in the taxonomy pass through; when they refer to the
// normalized location and the caller spelled the path differently, the
// requested path is attached. Anything else is wrapped with wrap.
func (f *Filesystem) translate(err error, requested, location string, wrap func(error) error) error {
	if err == nil {
		return nil
	}
	if !IsOperationError(err) {
		err = wrap(err)
	}
	if requested == location {
		return err
	}

	var oe *OperationError
	if errors.As(err, &oe) && oe.Location == location && oe.Requested == "" {
		annotated := *oe
		annotated.Requested = requested
		return &annotated
	}
	return err
}

// translateTransfer is translate for two-path operations. When either path
// differs from its normalized form, Requested holds "source -> destination"
// as the caller wrote them.
func (f *Filesystem) translateTransfer(err error, source, destination, from, to string, wrap func(error) error) error {
	if err == nil {
		return nil
	}
	if !IsOperationError(err) && wrap != nil {
		err = wrap(err)
	}
	if source == from && destination == to {
		return err
	}

	var oe *OperationError
	if errors.As(err, &oe) && oe.Source == from && oe.Destination == to && oe.Requested == "" {
		annotated := *oe
		annotated.Requested = source + " -> " + destination
		return &annotated
	}
	return err
}

func validateVisibilityOptions(config Config) error {
	if _, _, err := config.Visibility(OptionVisibility); err != nil {
		return err
	}
	if _, _, err := config.Visibility(OptionDirectoryVisibility); err != nil {
		return err
	}
	return nil
}

// ResolveTransferVisibility returns the visibility a copy or move should
// apply to its destination.
//
// An explicit visibility option wins. Otherwise, when retain_visibility is
// enabled (the default), sourceVisibility is consulted. An empty result
// means the destination keeps the backend default.
func ResolveTransferVisibility(config Config, sourceVisibility func() (Visibility, error)) (Visibility, error) {
	if v, ok, err := config.Visibility(OptionVisibility); err != nil || ok {
		return v, err
	}
	if !config.GetBool(OptionRetainVisibility, true) || sourceVisibility == nil {
		return "", nil
	}

	v, err := sourceVisibility()
	if err != nil {
		return "", err
	}
	if v == VisibilityUnknown {
		return "", nil
	}
	return v, nil
}

// CopyBetween copies a file from one operator to another by streaming it.
//
// This is the derived copy used when source and destination live behind
// different operators. The source visibility is preserved when retrievable
// unless the config sets one explicitly or disables retain_visibility. Any
// failure along the way is reported as a single ErrUnableToCopyFile.
func CopyBetween(ctx context.Context, src Reader, source string, dst Writer, destination string, config Config) error {
	stream, err := src.ReadStream(ctx, source)
	if err != nil {
		return UnableToCopyFile(source, destination, "", err)
	}
	defer func() { _ = stream.Close() }()

	visibility, _ := ResolveTransferVisibility(config, func() (Visibility, error) {
		return src.Visibility(ctx, source)
	})

	cfg := config.Without(OptionRetainVisibility)
	if visibility != "" {
		cfg = cfg.WithSetting(OptionVisibility, string(visibility))
	}

	if err := dst.WriteStream(ctx, destination, stream, cfg); err != nil {
		return UnableToCopyFile(source, destination, "", err)
	}
	return nil
}
