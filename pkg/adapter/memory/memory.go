package memory

import (
	"bytes"
	"context"
	"io"
	"iter"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/strata/pkg/storage"
	"github.com/marmos91/strata/pkg/storage/mimetype"
)

// Adapter implements storage.Adapter using in-memory storage.
//
// This implementation keeps every file in a map. It's designed for:
//   - Testing and development
//   - Ephemeral scratch space
//   - Fixtures for decorators and mount managers
//
// Characteristics:
//   - Fast: All operations are memory-speed
//   - Volatile: Data lost on restart
//   - Thread-safe: Protected by RWMutex
//
// Directories:
// Directories created with CreateDirectory are stored explicitly. Every
// parent of a stored file or directory exists implicitly, so writing
// "a/b/c.txt" makes "a" and "a/b" visible to DirectoryExists and listings.
//
// Thread Safety:
// All operations are protected by a sync.RWMutex. Contents are copied on
// read and write so callers never share buffers with the store.
type Adapter struct {
	// files stores the file entries keyed by normalized path
	files map[string]*entry

	// dirs stores explicitly created directories
	dirs map[string]*entry

	defaultVisibility storage.Visibility
	detector          *mimetype.Detector
	now               func() time.Time

	// mu protects files and dirs
	mu sync.RWMutex
}

type entry struct {
	contents     []byte
	visibility   storage.Visibility
	lastModified int64
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithDefaultVisibility sets the visibility of entries written without a
// visibility option. Defaults to public.
func WithDefaultVisibility(v storage.Visibility) Option {
	return func(a *Adapter) { a.defaultVisibility = v }
}

// WithMimeTypeDetector replaces the default detector.
func WithMimeTypeDetector(d *mimetype.Detector) Option {
	return func(a *Adapter) { a.detector = d }
}

// WithClock replaces time.Now for modification times.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// New creates an empty in-memory adapter.
func New(opts ...Option) *Adapter {
	a := &Adapter{
		files:             make(map[string]*entry),
		dirs:              make(map[string]*entry),
		defaultVisibility: storage.VisibilityPublic,
		detector:          mimetype.NewDetector(),
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ============================================================================
// Existence
// ============================================================================

// FileExists implements storage.Adapter.
func (a *Adapter) FileExists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, storage.UnableToCheckFileExistence(path, err)
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	_, ok := a.files[path]
	return ok, nil
}

// DirectoryExists implements storage.Adapter.
func (a *Adapter) DirectoryExists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, storage.UnableToCheckDirectoryExistence(path, err)
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.directoryExistsLocked(path), nil
}

func (a *Adapter) directoryExistsLocked(path string) bool {
	if path == "" {
		return true
	}
	if _, ok := a.dirs[path]; ok {
		return true
	}

	prefix := path + "/"
	for p := range a.files {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	for p := range a.dirs {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// ============================================================================
// Reading
// ============================================================================

// Read implements storage.Adapter.
func (a *Adapter) Read(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, storage.UnableToReadFile(path, "", err)
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	file, ok := a.files[path]
	if !ok {
		return nil, storage.UnableToReadFile(path, "file does not exist", nil)
	}
	return bytes.Clone(file.contents), nil
}

// ReadStream implements storage.Adapter. The stream reads from a snapshot of
// the contents.
func (a *Adapter) ReadStream(ctx context.Context, path string) (io.ReadCloser, error) {
	contents, err := a.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(contents)), nil
}

// ============================================================================
// Writing
// ============================================================================

// Write implements storage.Adapter.
func (a *Adapter) Write(ctx context.Context, path string, contents []byte, config storage.Config) error {
	if err := ctx.Err(); err != nil {
		return storage.UnableToWriteFile(path, "", err)
	}

	visibility, err := a.visibilityFromConfig(config, storage.OptionVisibility)
	if err != nil {
		return storage.UnableToWriteFile(path, "", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.files[path] = &entry{
		contents:     bytes.Clone(contents),
		visibility:   visibility,
		lastModified: a.now().Unix(),
	}
	return nil
}

// WriteStream implements storage.Adapter. The stream is buffered in full.
func (a *Adapter) WriteStream(ctx context.Context, path string, r io.Reader, config storage.Config) error {
	contents, err := io.ReadAll(r)
	if err != nil {
		return storage.UnableToWriteFile(path, "", err)
	}
	return a.Write(ctx, path, contents, config)
}

// Delete implements storage.Adapter.
func (a *Adapter) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return storage.UnableToDeleteFile(path, "", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.files, path)
	return nil
}

// DeleteDirectory implements storage.Adapter.
func (a *Adapter) DeleteDirectory(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return storage.UnableToDeleteDirectory(path, "", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for p := range a.files {
		if isBelow(p, path) {
			delete(a.files, p)
		}
	}
	for p := range a.dirs {
		if p == path || isBelow(p, path) {
			delete(a.dirs, p)
		}
	}
	return nil
}

// CreateDirectory implements storage.Adapter.
func (a *Adapter) CreateDirectory(ctx context.Context, path string, config storage.Config) error {
	if err := ctx.Err(); err != nil {
		return storage.UnableToCreateDirectory(path, "", err)
	}

	visibility, err := a.visibilityFromConfig(config, storage.OptionDirectoryVisibility, storage.OptionVisibility)
	if err != nil {
		return storage.UnableToCreateDirectory(path, "", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if path == "" {
		return nil
	}
	if _, ok := a.files[path]; ok {
		return storage.UnableToCreateDirectory(path, "a file exists at this location", nil)
	}
	if dir, ok := a.dirs[path]; ok {
		dir.visibility = visibility
		return nil
	}

	a.dirs[path] = &entry{visibility: visibility, lastModified: a.now().Unix()}
	return nil
}

// SetVisibility implements storage.Adapter.
func (a *Adapter) SetVisibility(ctx context.Context, path string, visibility storage.Visibility) error {
	if err := ctx.Err(); err != nil {
		return storage.UnableToSetVisibility(path, "", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if file, ok := a.files[path]; ok {
		file.visibility = visibility
		return nil
	}
	if dir, ok := a.dirs[path]; ok {
		dir.visibility = visibility
		return nil
	}
	return storage.UnableToSetVisibility(path, "file does not exist", nil)
}

// ============================================================================
// Metadata
// ============================================================================

// Visibility implements storage.Adapter.
func (a *Adapter) Visibility(ctx context.Context, path string) (*storage.FileAttributes, error) {
	return a.attributes(ctx, path, storage.FieldVisibility)
}

// MimeType implements storage.Adapter.
func (a *Adapter) MimeType(ctx context.Context, path string) (*storage.FileAttributes, error) {
	attrs, err := a.attributes(ctx, path, storage.FieldMimeType)
	if err != nil {
		return nil, err
	}
	if _, ok := attrs.MimeType(); !ok {
		return nil, storage.UnableToRetrieveMetadata(path, storage.FieldMimeType, "unknown mime type", nil)
	}
	return attrs, nil
}

// LastModified implements storage.Adapter.
func (a *Adapter) LastModified(ctx context.Context, path string) (*storage.FileAttributes, error) {
	return a.attributes(ctx, path, storage.FieldLastModified)
}

// FileSize implements storage.Adapter.
func (a *Adapter) FileSize(ctx context.Context, path string) (*storage.FileAttributes, error) {
	return a.attributes(ctx, path, storage.FieldFileSize)
}

func (a *Adapter) attributes(ctx context.Context, path string, field storage.MetadataField) (*storage.FileAttributes, error) {
	if err := ctx.Err(); err != nil {
		return nil, storage.UnableToRetrieveMetadata(path, field, "", err)
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	file, ok := a.files[path]
	if !ok {
		if dir, isDir := a.dirs[path]; isDir && field == storage.FieldVisibility {
			return storage.NewFileAttributes(path, storage.WithVisibility(dir.visibility)), nil
		}
		return nil, storage.UnableToRetrieveMetadata(path, field, "file does not exist", nil)
	}
	return a.fileAttributes(path, file), nil
}

func (a *Adapter) fileAttributes(path string, file *entry) *storage.FileAttributes {
	return storage.NewFileAttributes(path,
		storage.WithFileSize(int64(len(file.contents))),
		storage.WithVisibility(file.visibility),
		storage.WithLastModifiedUnix(file.lastModified),
		storage.WithMimeType(a.detector.Detect(path, file.contents)),
	)
}

// ============================================================================
// Listing
// ============================================================================

// ListContents implements storage.Adapter.
//
// The entries are snapshotted when iteration starts, so concurrent writes
// never invalidate a running listing.
func (a *Adapter) ListContents(ctx context.Context, path string, deep bool) iter.Seq2[storage.StorageAttributes, error] {
	return func(yield func(storage.StorageAttributes, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(nil, storage.UnableToListContents(path, deep, err))
			return
		}

		for _, attrs := range a.snapshot(path, deep) {
			if !yield(attrs, nil) {
				return
			}
		}
	}
}

func (a *Adapter) snapshot(path string, deep bool) []storage.StorageAttributes {
	a.mu.RLock()
	defer a.mu.RUnlock()

	included := func(p string) bool {
		if !isBelow(p, path) {
			return false
		}
		return deep || storage.ParentDirectory(p) == path
	}

	dirs := make(map[string]storage.Visibility)
	addParents := func(p string) {
		for parent := storage.ParentDirectory(p); parent != ""; parent = storage.ParentDirectory(parent) {
			if _, seen := dirs[parent]; !seen {
				dirs[parent] = ""
			}
		}
	}

	var entries []storage.StorageAttributes
	for p, file := range a.files {
		addParents(p)
		if included(p) {
			entries = append(entries, a.fileAttributes(p, file))
		}
	}
	for p, dir := range a.dirs {
		addParents(p)
		dirs[p] = dir.visibility
	}
	for p, visibility := range dirs {
		if !included(p) {
			continue
		}
		opts := []storage.AttributeOption{storage.WithVisibility(visibility)}
		if dir, ok := a.dirs[p]; ok {
			opts = append(opts, storage.WithLastModifiedUnix(dir.lastModified))
		}
		entries = append(entries, storage.NewDirectoryAttributes(p, opts...))
	}

	slices.SortFunc(entries, storage.SortByPath)
	return entries
}

// ============================================================================
// Move & Copy
// ============================================================================

// Move implements storage.Adapter.
func (a *Adapter) Move(ctx context.Context, source, destination string, config storage.Config) error {
	if err := ctx.Err(); err != nil {
		return storage.UnableToMoveFile(source, destination, "", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	file, ok := a.files[source]
	if !ok {
		return storage.UnableToMoveFile(source, destination, "source file does not exist", nil)
	}

	visibility, err := storage.ResolveTransferVisibility(config, func() (storage.Visibility, error) {
		return file.visibility, nil
	})
	if err != nil {
		return storage.UnableToMoveFile(source, destination, "", err)
	}
	if visibility != "" {
		file.visibility = visibility
	}

	delete(a.files, source)
	a.files[destination] = file
	return nil
}

// Copy implements storage.Adapter.
func (a *Adapter) Copy(ctx context.Context, source, destination string, config storage.Config) error {
	if err := ctx.Err(); err != nil {
		return storage.UnableToCopyFile(source, destination, "", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	file, ok := a.files[source]
	if !ok {
		return storage.UnableToCopyFile(source, destination, "source file does not exist", nil)
	}

	visibility, err := storage.ResolveTransferVisibility(config, func() (storage.Visibility, error) {
		return file.visibility, nil
	})
	if err != nil {
		return storage.UnableToCopyFile(source, destination, "", err)
	}
	if visibility == "" {
		visibility = a.defaultVisibility
	}

	a.files[destination] = &entry{
		contents:     bytes.Clone(file.contents),
		visibility:   visibility,
		lastModified: a.now().Unix(),
	}
	return nil
}

// ============================================================================
// Helpers
// ============================================================================

// Reset removes every entry.
func (a *Adapter) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.files = make(map[string]*entry)
	a.dirs = make(map[string]*entry)
}

func (a *Adapter) visibilityFromConfig(config storage.Config, keys ...string) (storage.Visibility, error) {
	for _, key := range keys {
		v, ok, err := config.Visibility(key)
		if err != nil {
			return "", err
		}
		if ok {
			return v, nil
		}
	}
	return a.defaultVisibility, nil
}

// isBelow reports whether p lies strictly below dir ("" is the root).
func isBelow(p, dir string) bool {
	if dir == "" {
		return p != ""
	}
	return strings.HasPrefix(p, dir+"/")
}
