// Package local implements storage.Adapter on top of a directory of the
// local filesystem.
package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"

	"github.com/marmos91/strata/internal/logger"
	"github.com/marmos91/strata/pkg/storage"
	"github.com/marmos91/strata/pkg/storage/mimetype"
	"github.com/marmos91/strata/pkg/storage/visibility"
)

// LinkHandling controls how listings treat symbolic links.
type LinkHandling int

const (
	// DisallowLinks fails a listing with ErrSymbolicLinkEncountered.
	DisallowLinks LinkHandling = iota

	// SkipLinks silently omits symbolic links from listings.
	SkipLinks
)

// tempPrefix marks in-flight writes; such files never appear in listings.
const tempPrefix = ".strata-"

// Adapter implements storage.Adapter for a root directory on disk.
//
// Paths are resolved below the root with a storage.PathPrefixer. Visibility
// is mapped onto permission bits with a visibility.Converter.
//
// Write Semantics:
// Files are written to a uniquely named temporary file in the destination
// directory and renamed into place, so readers never observe a partially
// written file. Missing parent directories are created with the configured
// directory visibility.
//
// Thread Safety:
// The adapter holds no mutable state; concurrent calls are as safe as the
// underlying filesystem operations.
type Adapter struct {
	root      string
	prefixer  *storage.PathPrefixer
	converter visibility.Converter
	detector  *mimetype.Detector
	links     LinkHandling
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithVisibilityConverter replaces the default UnixConverter.
func WithVisibilityConverter(c visibility.Converter) Option {
	return func(a *Adapter) { a.converter = c }
}

// WithLinkHandling selects how symbolic links are treated in listings.
func WithLinkHandling(h LinkHandling) Option {
	return func(a *Adapter) { a.links = h }
}

// WithMimeTypeDetector replaces the default detector.
func WithMimeTypeDetector(d *mimetype.Detector) Option {
	return func(a *Adapter) { a.detector = d }
}

// New creates an adapter rooted at root, creating the directory if needed.
func New(root string, opts ...Option) (*Adapter, error) {
	if root == "" {
		return nil, fmt.Errorf("local adapter: root directory is required")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("local adapter: resolve root %s: %w", root, err)
	}

	a := &Adapter{
		root:      abs,
		prefixer:  storage.NewPathPrefixer(abs, string(os.PathSeparator)),
		converter: visibility.NewUnixConverter(),
		detector:  mimetype.NewDetector(),
		links:     DisallowLinks,
	}
	for _, opt := range opts {
		opt(a)
	}

	if err := os.MkdirAll(abs, a.converter.DefaultForDirectories()); err != nil {
		return nil, fmt.Errorf("local adapter: create root %s: %w", abs, err)
	}

	logger.Debug("local adapter: rooted at %s", abs)
	return a, nil
}

// Root returns the absolute root directory.
func (a *Adapter) Root() string {
	return a.root
}

// location maps a normalized path onto the local filesystem.
func (a *Adapter) location(path string) string {
	return a.prefixer.PrefixPath(filepath.FromSlash(path))
}

// relative maps a local filesystem path back onto a normalized path.
func (a *Adapter) relative(location string) string {
	if location == a.root {
		return ""
	}
	return filepath.ToSlash(a.prefixer.StripPrefix(location))
}

// ============================================================================
// Existence
// ============================================================================

// FileExists implements storage.Adapter.
func (a *Adapter) FileExists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, storage.UnableToCheckFileExistence(path, err)
	}

	info, err := os.Stat(a.location(path))
	if err != nil {
		if isNotExist(err) {
			return false, nil
		}
		return false, storage.UnableToCheckFileExistence(path, err)
	}
	return info.Mode().IsRegular(), nil
}

// DirectoryExists implements storage.Adapter.
func (a *Adapter) DirectoryExists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, storage.UnableToCheckDirectoryExistence(path, err)
	}

	info, err := os.Stat(a.location(path))
	if err != nil {
		if isNotExist(err) {
			return false, nil
		}
		return false, storage.UnableToCheckDirectoryExistence(path, err)
	}
	return info.IsDir(), nil
}

// ============================================================================
// Reading
// ============================================================================

// Read implements storage.Adapter.
func (a *Adapter) Read(ctx context.Context, path string) ([]byte, error) {
	stream, err := a.ReadStream(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = stream.Close() }()

	contents, err := io.ReadAll(stream)
	if err != nil {
		return nil, storage.UnableToReadFile(path, "", err)
	}
	return contents, nil
}

// ReadStream implements storage.Adapter.
func (a *Adapter) ReadStream(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, storage.UnableToReadFile(path, "", err)
	}

	f, err := os.Open(a.location(path))
	if err != nil {
		return nil, storage.UnableToReadFile(path, "", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, storage.UnableToReadFile(path, "", err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, storage.UnableToReadFile(path, "path is a directory", nil)
	}
	return f, nil
}

// ============================================================================
// Writing
// ============================================================================

// Write implements storage.Adapter.
func (a *Adapter) Write(ctx context.Context, path string, contents []byte, config storage.Config) error {
	return a.WriteStream(ctx, path, bytes.NewReader(contents), config)
}

// WriteStream implements storage.Adapter.
func (a *Adapter) WriteStream(ctx context.Context, path string, r io.Reader, config storage.Config) error {
	// ========================================================================
	// Step 1: Resolve options and parent directory
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return storage.UnableToWriteFile(path, "", err)
	}

	fileVisibility, hasVisibility, err := config.Visibility(storage.OptionVisibility)
	if err != nil {
		return storage.UnableToWriteFile(path, "", err)
	}

	location := a.location(path)
	if err := a.ensureDirectory(filepath.Dir(location), config); err != nil {
		return storage.UnableToWriteFile(path, "", err)
	}

	// ========================================================================
	// Step 2: Write to a temporary file next to the destination
	// ========================================================================

	tmp := filepath.Join(filepath.Dir(location), tempPrefix+uuid.NewString()+".tmp")
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0666)
	if err != nil {
		return storage.UnableToWriteFile(path, "", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmp)
		}
	}()

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return storage.UnableToWriteFile(path, "", err)
	}
	if err := f.Close(); err != nil {
		return storage.UnableToWriteFile(path, "", err)
	}

	// ========================================================================
	// Step 3: Apply visibility and move into place
	// ========================================================================

	if hasVisibility {
		if err := os.Chmod(tmp, a.converter.ForFile(fileVisibility)); err != nil {
			return storage.UnableToSetVisibility(path, "", err)
		}
	}

	if err := os.Rename(tmp, location); err != nil {
		return storage.UnableToWriteFile(path, "", err)
	}
	committed = true
	return nil
}

// Delete implements storage.Adapter.
func (a *Adapter) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return storage.UnableToDeleteFile(path, "", err)
	}

	location := a.location(path)
	info, err := os.Lstat(location)
	if err != nil {
		if isNotExist(err) {
			return nil
		}
		return storage.UnableToDeleteFile(path, "", err)
	}
	if info.IsDir() {
		return storage.UnableToDeleteFile(path, "path is a directory", nil)
	}

	if err := os.Remove(location); err != nil && !isNotExist(err) {
		return storage.UnableToDeleteFile(path, "", err)
	}
	return nil
}

// DeleteDirectory implements storage.Adapter. Symbolic links inside the
// directory are removed, never followed. Deleting the root empties it.
func (a *Adapter) DeleteDirectory(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return storage.UnableToDeleteDirectory(path, "", err)
	}

	location := a.location(path)
	if path != "" {
		if err := os.RemoveAll(location); err != nil {
			return storage.UnableToDeleteDirectory(path, "", err)
		}
		return nil
	}

	entries, err := os.ReadDir(location)
	if err != nil {
		return storage.UnableToDeleteDirectory(path, "", err)
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(location, entry.Name())); err != nil {
			return storage.UnableToDeleteDirectory(path, "", err)
		}
	}
	return nil
}

// CreateDirectory implements storage.Adapter.
func (a *Adapter) CreateDirectory(ctx context.Context, path string, config storage.Config) error {
	if err := ctx.Err(); err != nil {
		return storage.UnableToCreateDirectory(path, "", err)
	}

	location := a.location(path)
	if err := a.ensureDirectory(location, config); err != nil {
		return storage.UnableToCreateDirectory(path, "", err)
	}

	v, explicit, err := directoryVisibility(config)
	if err != nil {
		return storage.UnableToCreateDirectory(path, "", err)
	}
	if explicit {
		if err := os.Chmod(location, a.converter.ForDirectory(v)); err != nil {
			return storage.UnableToCreateDirectory(path, "", err)
		}
	}
	return nil
}

// ensureDirectory creates location and its parents with the directory
// visibility configured in config.
func (a *Adapter) ensureDirectory(location string, config storage.Config) error {
	info, err := os.Stat(location)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("%s exists and is not a directory", location)
		}
		return nil
	}

	mode := a.converter.DefaultForDirectories()
	if v, explicit, err := directoryVisibility(config); err != nil {
		return err
	} else if explicit {
		mode = a.converter.ForDirectory(v)
	}

	return os.MkdirAll(location, mode)
}

// SetVisibility implements storage.Adapter.
func (a *Adapter) SetVisibility(ctx context.Context, path string, v storage.Visibility) error {
	if err := ctx.Err(); err != nil {
		return storage.UnableToSetVisibility(path, "", err)
	}

	location := a.location(path)
	info, err := os.Stat(location)
	if err != nil {
		return storage.UnableToSetVisibility(path, "", err)
	}

	mode := a.converter.ForFile(v)
	if info.IsDir() {
		mode = a.converter.ForDirectory(v)
	}
	if err := os.Chmod(location, mode); err != nil {
		return storage.UnableToSetVisibility(path, "", err)
	}
	return nil
}

// ============================================================================
// Metadata
// ============================================================================

// Visibility implements storage.Adapter.
func (a *Adapter) Visibility(ctx context.Context, path string) (*storage.FileAttributes, error) {
	info, err := a.stat(ctx, path, storage.FieldVisibility, true)
	if err != nil {
		return nil, err
	}

	v := a.converter.InverseForFile(info.Mode())
	if info.IsDir() {
		v = a.converter.InverseForDirectory(info.Mode())
	}
	return storage.NewFileAttributes(path, storage.WithVisibility(v)), nil
}

// MimeType implements storage.Adapter.
func (a *Adapter) MimeType(ctx context.Context, path string) (*storage.FileAttributes, error) {
	if _, err := a.stat(ctx, path, storage.FieldMimeType, false); err != nil {
		return nil, err
	}

	mimeType, err := a.detector.DetectFile(a.location(path))
	if err != nil {
		return nil, storage.UnableToRetrieveMetadata(path, storage.FieldMimeType, "", err)
	}
	if mimeType == "" {
		return nil, storage.UnableToRetrieveMetadata(path, storage.FieldMimeType, "unknown mime type", nil)
	}
	return storage.NewFileAttributes(path, storage.WithMimeType(mimeType)), nil
}

// LastModified implements storage.Adapter.
func (a *Adapter) LastModified(ctx context.Context, path string) (*storage.FileAttributes, error) {
	info, err := a.stat(ctx, path, storage.FieldLastModified, false)
	if err != nil {
		return nil, err
	}
	return storage.NewFileAttributes(path, storage.WithLastModified(info.ModTime())), nil
}

// FileSize implements storage.Adapter.
func (a *Adapter) FileSize(ctx context.Context, path string) (*storage.FileAttributes, error) {
	info, err := a.stat(ctx, path, storage.FieldFileSize, false)
	if err != nil {
		return nil, err
	}
	return storage.NewFileAttributes(path, storage.WithFileSize(info.Size())), nil
}

func (a *Adapter) stat(ctx context.Context, path string, field storage.MetadataField, allowDir bool) (fs.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, storage.UnableToRetrieveMetadata(path, field, "", err)
	}

	info, err := os.Stat(a.location(path))
	if err != nil {
		return nil, storage.UnableToRetrieveMetadata(path, field, "", err)
	}
	if info.IsDir() && !allowDir {
		return nil, storage.UnableToRetrieveMetadata(path, field, "path is a directory", nil)
	}
	return info, nil
}

// ============================================================================
// Move & Copy
// ============================================================================

// Move implements storage.Adapter.
func (a *Adapter) Move(ctx context.Context, source, destination string, config storage.Config) error {
	if err := ctx.Err(); err != nil {
		return storage.UnableToMoveFile(source, destination, "", err)
	}

	from, to := a.location(source), a.location(destination)

	// ========================================================================
	// Step 1: Check the source before touching the destination tree
	// ========================================================================

	info, err := os.Lstat(from)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return storage.UnableToMoveFile(source, destination, "source file does not exist", nil)
		}
		return storage.UnableToMoveFile(source, destination, "", err)
	}
	if info.IsDir() {
		return storage.UnableToMoveFile(source, destination, "source is a directory", nil)
	}
	v, explicit, err := config.Visibility(storage.OptionVisibility)
	if err != nil {
		return storage.UnableToMoveFile(source, destination, "", err)
	}

	// ========================================================================
	// Step 2: Rename into place
	// ========================================================================

	if err := a.ensureDirectory(filepath.Dir(to), config); err != nil {
		return storage.UnableToMoveFile(source, destination, "", err)
	}
	if err := os.Rename(from, to); err != nil {
		return storage.UnableToMoveFile(source, destination, "", err)
	}

	if explicit {
		if err := os.Chmod(to, a.converter.ForFile(v)); err != nil {
			return storage.UnableToMoveFile(source, destination, "", err)
		}
	}
	return nil
}

// Copy implements storage.Adapter.
func (a *Adapter) Copy(ctx context.Context, source, destination string, config storage.Config) error {
	if err := ctx.Err(); err != nil {
		return storage.UnableToCopyFile(source, destination, "", err)
	}

	src, err := a.ReadStream(ctx, source)
	if err != nil {
		return storage.UnableToCopyFile(source, destination, "", err)
	}
	defer func() { _ = src.Close() }()

	v, err := storage.ResolveTransferVisibility(config, func() (storage.Visibility, error) {
		attrs, err := a.Visibility(ctx, source)
		if err != nil {
			return "", err
		}
		return attrs.Visibility(), nil
	})
	if err != nil {
		return storage.UnableToCopyFile(source, destination, "", err)
	}

	cfg := config.Without(storage.OptionVisibility)
	if v != "" {
		cfg = cfg.WithSetting(storage.OptionVisibility, string(v))
	}

	if err := a.WriteStream(ctx, destination, src, cfg); err != nil {
		return storage.UnableToCopyFile(source, destination, "", err)
	}
	return nil
}

// ============================================================================
// Helpers
// ============================================================================

// directoryVisibility returns the explicitly configured directory visibility.
func directoryVisibility(config storage.Config) (storage.Visibility, bool, error) {
	return config.Visibility(storage.OptionDirectoryVisibility)
}

// isNotExist also treats ENOTDIR as missing: a path below a regular file
// cannot exist.
func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}
