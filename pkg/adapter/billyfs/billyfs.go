// Package billyfs implements storage.Adapter on top of any go-billy
// filesystem: in-memory (memfs), the host filesystem (osfs) or any other
// billy.Filesystem implementation.
package billyfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"sync"
	"syscall"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/uuid"

	"github.com/marmos91/strata/internal/logger"
	"github.com/marmos91/strata/pkg/storage"
	"github.com/marmos91/strata/pkg/storage/mimetype"
	"github.com/marmos91/strata/pkg/storage/visibility"
)

// Temporary files of in-flight writes; they never appear in listings.
const (
	tempPrefix = ".strata-"
	tempSuffix = ".tmp"
)

// Adapter implements storage.Adapter for a billy.Filesystem.
//
// Visibility is stored in permission bits through a visibility.Converter.
// Filesystems implementing billy.Change are chmod-ed in place; on the
// others a file's visibility is changed by rewriting it with the new mode.
//
// Thread Safety:
// Not every billy implementation is safe for concurrent use (memfs is not),
// so the adapter serializes calls with a read/write mutex. Streams returned
// by ReadStream are read outside the lock.
type Adapter struct {
	mu        sync.RWMutex
	fs        billy.Filesystem
	converter visibility.Converter
	detector  *mimetype.Detector
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithVisibilityConverter replaces the default UnixConverter.
func WithVisibilityConverter(c visibility.Converter) Option {
	return func(a *Adapter) { a.converter = c }
}

// WithMimeTypeDetector replaces the default detector.
func WithMimeTypeDetector(d *mimetype.Detector) Option {
	return func(a *Adapter) { a.detector = d }
}

// New wraps filesystem.
func New(filesystem billy.Filesystem, opts ...Option) *Adapter {
	a := &Adapter{
		fs:        filesystem,
		converter: visibility.NewUnixConverter(),
		detector:  mimetype.NewDetector(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewOS creates an adapter over root on the host filesystem. Paths cannot
// escape root, symbolic links included.
func NewOS(root string, opts ...Option) (*Adapter, error) {
	if root == "" {
		return nil, fmt.Errorf("billyfs adapter: root directory is required")
	}
	if err := os.MkdirAll(root, visibility.DefaultDirectoryPrivate); err != nil {
		return nil, fmt.Errorf("billyfs adapter: create root %s: %w", root, err)
	}

	logger.Debug("billyfs adapter: bound to %s", root)
	return New(osfs.New(root, osfs.WithBoundOS()), opts...), nil
}

// Filesystem returns the wrapped filesystem.
func (a *Adapter) Filesystem() billy.Filesystem {
	return a.fs
}

// location maps a normalized path onto the billy filesystem.
func location(p string) string {
	if p == "" {
		return "."
	}
	return p
}

// ============================================================================
// Existence
// ============================================================================

// FileExists implements storage.Adapter.
func (a *Adapter) FileExists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, storage.UnableToCheckFileExistence(path, err)
	}

	info, err := a.stat(path)
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
	if path == "" {
		return true, nil
	}

	info, err := a.stat(path)
	if err != nil {
		if isNotExist(err) {
			return false, nil
		}
		return false, storage.UnableToCheckDirectoryExistence(path, err)
	}
	return info.IsDir(), nil
}

func (a *Adapter) stat(path string) (fs.FileInfo, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.fs.Stat(location(path))
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

	a.mu.RLock()
	defer a.mu.RUnlock()

	info, err := a.fs.Stat(location(path))
	if err != nil {
		return nil, storage.UnableToReadFile(path, "", err)
	}
	if info.IsDir() {
		return nil, storage.UnableToReadFile(path, "path is a directory", nil)
	}

	f, err := a.fs.Open(location(path))
	if err != nil {
		return nil, storage.UnableToReadFile(path, "", err)
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

// WriteStream implements storage.Adapter. Files written without a visibility
// option get the public file mode.
func (a *Adapter) WriteStream(ctx context.Context, path string, r io.Reader, config storage.Config) error {
	if err := ctx.Err(); err != nil {
		return storage.UnableToWriteFile(path, "", err)
	}

	v, explicit, err := config.Visibility(storage.OptionVisibility)
	if err != nil {
		return storage.UnableToWriteFile(path, "", err)
	}
	if !explicit {
		v = storage.VisibilityPublic
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.writeFile(path, r, a.converter.ForFile(v), config); err != nil {
		return storage.UnableToWriteFile(path, "", err)
	}
	return nil
}

// writeFile replaces path with the contents of r. The caller holds the write
// lock.
//
// The contents go to a sibling temporary file created with mode, which is
// renamed over p once fully written; a failed write leaves p untouched.
func (a *Adapter) writeFile(p string, r io.Reader, mode os.FileMode, config storage.Config) error {
	// ========================================================================
	// Step 1: Make room for the new file
	// ========================================================================

	if err := a.ensureDirectory(path.Dir(p), config); err != nil {
		return err
	}

	if info, err := a.fs.Stat(p); err == nil {
		if info.IsDir() {
			return fmt.Errorf("a directory exists at %s", p)
		}
	} else if !isNotExist(err) {
		return err
	}

	// ========================================================================
	// Step 2: Fill a temporary file
	// ========================================================================

	tmp := path.Join(path.Dir(p), tempPrefix+uuid.NewString()+tempSuffix)
	f, err := a.fs.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = a.fs.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = a.fs.Remove(tmp)
		return err
	}

	// ========================================================================
	// Step 3: Replace the file
	// ========================================================================

	if err := a.fs.Rename(tmp, p); err != nil {
		_ = a.fs.Remove(tmp)
		return err
	}
	return nil
}

// ensureDirectory creates dir and its parents. The caller holds the write
// lock.
func (a *Adapter) ensureDirectory(dir string, config storage.Config) error {
	if dir == "." || dir == "" {
		return nil
	}

	info, err := a.fs.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("%s exists and is not a directory", dir)
		}
		return nil
	}
	if !isNotExist(err) {
		return err
	}

	mode := a.converter.DefaultForDirectories()
	if v, explicit, err := config.Visibility(storage.OptionDirectoryVisibility); err != nil {
		return err
	} else if explicit {
		mode = a.converter.ForDirectory(v)
	}
	return a.fs.MkdirAll(dir, mode)
}

// Delete implements storage.Adapter.
func (a *Adapter) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return storage.UnableToDeleteFile(path, "", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	info, err := a.fs.Lstat(location(path))
	if err != nil {
		if isNotExist(err) {
			return nil
		}
		return storage.UnableToDeleteFile(path, "", err)
	}
	if info.IsDir() {
		return storage.UnableToDeleteFile(path, "path is a directory", nil)
	}

	if err := a.fs.Remove(location(path)); err != nil && !isNotExist(err) {
		return storage.UnableToDeleteFile(path, "", err)
	}
	return nil
}

// DeleteDirectory implements storage.Adapter. Deleting the root empties it.
func (a *Adapter) DeleteDirectory(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return storage.UnableToDeleteDirectory(path, "", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if path != "" {
		if err := util.RemoveAll(a.fs, path); err != nil {
			return storage.UnableToDeleteDirectory(path, "", err)
		}
		return nil
	}

	entries, err := a.fs.ReadDir(".")
	if err != nil {
		if isNotExist(err) {
			return nil
		}
		return storage.UnableToDeleteDirectory(path, "", err)
	}
	for _, entry := range entries {
		if err := util.RemoveAll(a.fs, entry.Name()); err != nil {
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
	if path == "" {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.ensureDirectory(path, config); err != nil {
		return storage.UnableToCreateDirectory(path, "", err)
	}

	v, explicit, err := config.Visibility(storage.OptionDirectoryVisibility)
	if err != nil {
		return storage.UnableToCreateDirectory(path, "", err)
	}
	if change, ok := a.fs.(billy.Change); ok && explicit {
		if err := change.Chmod(path, a.converter.ForDirectory(v)); err != nil {
			return storage.UnableToCreateDirectory(path, "", err)
		}
	}
	return nil
}

// SetVisibility implements storage.Adapter.
func (a *Adapter) SetVisibility(ctx context.Context, path string, v storage.Visibility) error {
	if err := ctx.Err(); err != nil {
		return storage.UnableToSetVisibility(path, "", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	info, err := a.fs.Stat(location(path))
	if err != nil {
		return storage.UnableToSetVisibility(path, "", err)
	}

	mode := a.converter.ForFile(v)
	if info.IsDir() {
		mode = a.converter.ForDirectory(v)
	}
	if info.Mode().Perm() == mode.Perm() {
		return nil
	}

	if change, ok := a.fs.(billy.Change); ok {
		if err := change.Chmod(location(path), mode); err != nil {
			return storage.UnableToSetVisibility(path, "", err)
		}
		return nil
	}

	if info.IsDir() {
		return storage.UnableToSetVisibility(path, "filesystem cannot change directory permissions", nil)
	}
	if err := a.rewrite(path, mode); err != nil {
		return storage.UnableToSetVisibility(path, "", err)
	}
	return nil
}

// rewrite recreates the file at p with mode. The caller holds the write lock.
func (a *Adapter) rewrite(p string, mode os.FileMode) error {
	contents, err := util.ReadFile(a.fs, p)
	if err != nil {
		return err
	}
	return a.writeFile(p, bytes.NewReader(contents), mode, storage.Config{})
}

// ============================================================================
// Metadata
// ============================================================================

// Visibility implements storage.Adapter.
func (a *Adapter) Visibility(ctx context.Context, path string) (*storage.FileAttributes, error) {
	info, err := a.metadata(ctx, path, storage.FieldVisibility, true)
	if err != nil {
		return nil, err
	}
	return storage.NewFileAttributes(path, storage.WithVisibility(a.visibility(info))), nil
}

// MimeType implements storage.Adapter.
func (a *Adapter) MimeType(ctx context.Context, path string) (*storage.FileAttributes, error) {
	if _, err := a.metadata(ctx, path, storage.FieldMimeType, false); err != nil {
		return nil, err
	}

	stream, err := a.ReadStream(ctx, path)
	if err != nil {
		return nil, storage.UnableToRetrieveMetadata(path, storage.FieldMimeType, "", err)
	}
	defer func() { _ = stream.Close() }()

	mimeType, err := a.detector.DetectReader(path, stream)
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
	info, err := a.metadata(ctx, path, storage.FieldLastModified, false)
	if err != nil {
		return nil, err
	}
	return storage.NewFileAttributes(path, storage.WithLastModified(info.ModTime())), nil
}

// FileSize implements storage.Adapter.
func (a *Adapter) FileSize(ctx context.Context, path string) (*storage.FileAttributes, error) {
	info, err := a.metadata(ctx, path, storage.FieldFileSize, false)
	if err != nil {
		return nil, err
	}
	return storage.NewFileAttributes(path, storage.WithFileSize(info.Size())), nil
}

func (a *Adapter) metadata(ctx context.Context, path string, field storage.MetadataField, allowDir bool) (fs.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, storage.UnableToRetrieveMetadata(path, field, "", err)
	}

	info, err := a.stat(path)
	if err != nil {
		return nil, storage.UnableToRetrieveMetadata(path, field, "", err)
	}
	if info.IsDir() && !allowDir {
		return nil, storage.UnableToRetrieveMetadata(path, field, "path is a directory", nil)
	}
	return info, nil
}

func (a *Adapter) visibility(info fs.FileInfo) storage.Visibility {
	if info.IsDir() {
		return a.converter.InverseForDirectory(info.Mode())
	}
	return a.converter.InverseForFile(info.Mode())
}

// ============================================================================
// Move & Copy
// ============================================================================

// Move implements storage.Adapter. The file is copied to destination and
// the source removed afterwards.
func (a *Adapter) Move(ctx context.Context, source, destination string, config storage.Config) error {
	if err := a.transfer(ctx, source, destination, config); err != nil {
		return storage.UnableToMoveFile(source, destination, "", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.fs.Remove(location(source)); err != nil && !isNotExist(err) {
		return storage.UnableToMoveFile(source, destination, "", err)
	}
	return nil
}

// Copy implements storage.Adapter.
func (a *Adapter) Copy(ctx context.Context, source, destination string, config storage.Config) error {
	if err := a.transfer(ctx, source, destination, config); err != nil {
		return storage.UnableToCopyFile(source, destination, "", err)
	}
	return nil
}

// transfer streams source into destination with the resolved visibility.
func (a *Adapter) transfer(ctx context.Context, source, destination string, config storage.Config) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := a.ReadStream(ctx, source)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	v, err := storage.ResolveTransferVisibility(config, func() (storage.Visibility, error) {
		info, err := a.stat(source)
		if err != nil {
			return "", err
		}
		return a.visibility(info), nil
	})
	if err != nil {
		return err
	}
	if v == "" {
		v = storage.VisibilityPublic
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	return a.writeFile(destination, src, a.converter.ForFile(v), config)
}

// ============================================================================
// Helpers
// ============================================================================

// isNotExist also treats ENOTDIR as missing: a path below a regular file
// cannot exist.
func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}
