package compose

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/marmos91/strata/internal/logger"
	"github.com/marmos91/strata/pkg/storage"
)

// MountSeparator separates the mount name from the path in MountManager
// paths ("name://path").
const MountSeparator = "://"

// MountManager routes "name://path" paths to named operators.
//
// Operations whose paths resolve to the same mount are delegated to that
// operator. Move and copy between two mounts stream the file from the
// source to the destination (and delete the source for a move); a failure
// at any step is reported as one ErrUnableToMoveFile or ErrUnableToCopyFile
// for the whole operation. Two mounts are never treated as the same
// backend, even when they share an operator.
//
// Listing results and error locations carry the "name://" prefix.
//
// Example usage:
//
//	mm := compose.NewMountManager()
//	mm.Mount("local", storage.New(localAdapter))
//	mm.Mount("s3", storage.New(s3Adapter))
//
//	mm.Copy(ctx, "local://report.pdf", "s3://archive/report.pdf", storage.Config{})
//
// Thread Safety:
// Mount and Unmount may be called concurrently with operations.
type MountManager struct {
	mu     sync.RWMutex
	mounts map[string]storage.Operator
}

var _ storage.Operator = (*MountManager)(nil)

// NewMountManager creates an empty mount manager.
func NewMountManager() *MountManager {
	return &MountManager{mounts: make(map[string]storage.Operator)}
}

// NewMountManagerWith creates a mount manager with the given mounts.
func NewMountManagerWith(mounts map[string]storage.Operator) (*MountManager, error) {
	m := NewMountManager()
	for name, op := range mounts {
		if err := m.Mount(name, op); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Mount registers op under name. Invalid or duplicate names fail with
// ErrUnableToMountFilesystem.
func (m *MountManager) Mount(name string, op storage.Operator) error {
	if err := validateMountName(name); err != nil {
		return err
	}
	if op == nil {
		return storage.UnableToMountFilesystem(fmt.Sprintf("mount %q has no filesystem", name))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.mounts[name]; exists {
		return storage.UnableToMountFilesystem(fmt.Sprintf("mount %q already registered", name))
	}

	m.mounts[name] = op
	logger.Debug("mount manager: mounted %s", name)
	return nil
}

// Unmount removes the mount registered under name and returns its
// operator. The operator is not closed.
func (m *MountManager) Unmount(name string) (storage.Operator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	op, exists := m.mounts[name]
	if !exists {
		return nil, storage.UnableToResolveFilesystemMount(name+MountSeparator, fmt.Sprintf("no filesystem mounted as %q", name))
	}
	delete(m.mounts, name)
	return op, nil
}

// Mounts returns the registered mount names, sorted.
func (m *MountManager) Mounts() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.mounts))
	for name := range m.mounts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Filesystem returns the operator mounted as name.
func (m *MountManager) Filesystem(name string) (storage.Operator, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	op, ok := m.mounts[name]
	return op, ok
}

// Close closes every mounted operator that holds resources.
func (m *MountManager) Close() error {
	m.mu.RLock()
	ops := make([]storage.Operator, 0, len(m.mounts))
	for _, op := range m.mounts {
		ops = append(ops, op)
	}
	m.mu.RUnlock()

	return closeAll(ops)
}

// mountTarget is a resolved "name://path".
type mountTarget struct {
	name string
	path string
	op   storage.Operator
}

// relocate rewrites the locations of err with the mount prefix.
func (t mountTarget) relocate(err error) error {
	return storage.RelocateError(err, func(location string) string {
		return t.name + MountSeparator + location
	})
}

// resolve splits path into mount name and inner path.
func (m *MountManager) resolve(path string) (mountTarget, error) {
	name, rest, found := strings.Cut(path, MountSeparator)
	if !found {
		return mountTarget{}, storage.UnableToResolveFilesystemMount(path, "missing mount prefix separator "+MountSeparator)
	}

	op, ok := m.Filesystem(name)
	if !ok {
		return mountTarget{}, storage.UnableToResolveFilesystemMount(path, fmt.Sprintf("no filesystem mounted as %q", name))
	}
	return mountTarget{name: name, path: rest, op: op}, nil
}

// ============================================================================
// Reads
// ============================================================================

// FileExists implements storage.Reader.
func (m *MountManager) FileExists(ctx context.Context, path string) (bool, error) {
	t, err := m.resolve(path)
	if err != nil {
		return false, err
	}
	exists, err := t.op.FileExists(ctx, t.path)
	return exists, t.relocate(err)
}

// DirectoryExists implements storage.Reader.
func (m *MountManager) DirectoryExists(ctx context.Context, path string) (bool, error) {
	t, err := m.resolve(path)
	if err != nil {
		return false, err
	}
	exists, err := t.op.DirectoryExists(ctx, t.path)
	return exists, t.relocate(err)
}

// Has implements storage.Reader.
func (m *MountManager) Has(ctx context.Context, path string) (bool, error) {
	t, err := m.resolve(path)
	if err != nil {
		return false, err
	}
	exists, err := t.op.Has(ctx, t.path)
	return exists, t.relocate(err)
}

// Read implements storage.Reader.
func (m *MountManager) Read(ctx context.Context, path string) ([]byte, error) {
	t, err := m.resolve(path)
	if err != nil {
		return nil, err
	}
	contents, err := t.op.Read(ctx, t.path)
	return contents, t.relocate(err)
}

// ReadStream implements storage.Reader.
func (m *MountManager) ReadStream(ctx context.Context, path string) (io.ReadCloser, error) {
	t, err := m.resolve(path)
	if err != nil {
		return nil, err
	}
	stream, err := t.op.ReadStream(ctx, t.path)
	return stream, t.relocate(err)
}

// ListContents implements storage.Reader.
func (m *MountManager) ListContents(ctx context.Context, path string, deep bool) *storage.DirectoryListing[storage.StorageAttributes] {
	t, err := m.resolve(path)
	if err != nil {
		return storage.NewDirectoryListing(storage.FailedListing(err))
	}

	inner := t.op.ListContents(ctx, t.path, deep)
	return storage.NewDirectoryListing(func(yield func(storage.StorageAttributes, error) bool) {
		for attrs, err := range inner.All() {
			if err != nil {
				yield(nil, t.relocate(err))
				return
			}
			if !yield(attrs.WithPath(t.name+MountSeparator+attrs.Path()), nil) {
				return
			}
		}
	})
}

// LastModified implements storage.Reader.
func (m *MountManager) LastModified(ctx context.Context, path string) (int64, error) {
	t, err := m.resolve(path)
	if err != nil {
		return 0, err
	}
	ts, err := t.op.LastModified(ctx, t.path)
	return ts, t.relocate(err)
}

// FileSize implements storage.Reader.
func (m *MountManager) FileSize(ctx context.Context, path string) (int64, error) {
	t, err := m.resolve(path)
	if err != nil {
		return 0, err
	}
	size, err := t.op.FileSize(ctx, t.path)
	return size, t.relocate(err)
}

// MimeType implements storage.Reader.
func (m *MountManager) MimeType(ctx context.Context, path string) (string, error) {
	t, err := m.resolve(path)
	if err != nil {
		return "", err
	}
	mimeType, err := t.op.MimeType(ctx, t.path)
	return mimeType, t.relocate(err)
}

// Visibility implements storage.Reader.
func (m *MountManager) Visibility(ctx context.Context, path string) (storage.Visibility, error) {
	t, err := m.resolve(path)
	if err != nil {
		return "", err
	}
	v, err := t.op.Visibility(ctx, t.path)
	return v, t.relocate(err)
}

// Checksum implements storage.Reader.
func (m *MountManager) Checksum(ctx context.Context, path string, config storage.Config) (string, error) {
	t, err := m.resolve(path)
	if err != nil {
		return "", err
	}
	sum, err := t.op.Checksum(ctx, t.path, config)
	return sum, t.relocate(err)
}

// ============================================================================
// Writes
// ============================================================================

// Write implements storage.Writer.
func (m *MountManager) Write(ctx context.Context, path string, contents []byte, config storage.Config) error {
	t, err := m.resolve(path)
	if err != nil {
		return err
	}
	return t.relocate(t.op.Write(ctx, t.path, contents, config))
}

// WriteStream implements storage.Writer.
func (m *MountManager) WriteStream(ctx context.Context, path string, r io.Reader, config storage.Config) error {
	t, err := m.resolve(path)
	if err != nil {
		return err
	}
	return t.relocate(t.op.WriteStream(ctx, t.path, r, config))
}

// SetVisibility implements storage.Writer.
func (m *MountManager) SetVisibility(ctx context.Context, path string, visibility storage.Visibility) error {
	t, err := m.resolve(path)
	if err != nil {
		return err
	}
	return t.relocate(t.op.SetVisibility(ctx, t.path, visibility))
}

// Delete implements storage.Writer.
func (m *MountManager) Delete(ctx context.Context, path string) error {
	t, err := m.resolve(path)
	if err != nil {
		return err
	}
	return t.relocate(t.op.Delete(ctx, t.path))
}

// DeleteDirectory implements storage.Writer.
func (m *MountManager) DeleteDirectory(ctx context.Context, path string) error {
	t, err := m.resolve(path)
	if err != nil {
		return err
	}
	return t.relocate(t.op.DeleteDirectory(ctx, t.path))
}

// CreateDirectory implements storage.Writer.
func (m *MountManager) CreateDirectory(ctx context.Context, path string, config storage.Config) error {
	t, err := m.resolve(path)
	if err != nil {
		return err
	}
	return t.relocate(t.op.CreateDirectory(ctx, t.path, config))
}

// ============================================================================
// Move & Copy
// ============================================================================

// Move implements storage.Writer.
func (m *MountManager) Move(ctx context.Context, source, destination string, config storage.Config) error {
	src, dst, err := m.resolvePair(source, destination)
	if err != nil {
		return err
	}
	if src.name == dst.name {
		return src.relocate(src.op.Move(ctx, src.path, dst.path, config))
	}

	// Step 1: stream the file across
	logger.Debug("mount manager: moving %s to %s across mounts", source, destination)
	if err := storage.CopyBetween(ctx, src.op, src.path, dst.op, dst.path, config); err != nil {
		return storage.UnableToMoveFile(source, destination, "", err)
	}

	// Step 2: remove the source
	if err := src.op.Delete(ctx, src.path); err != nil {
		return storage.UnableToMoveFile(source, destination, "", err)
	}
	return nil
}

// Copy implements storage.Writer.
func (m *MountManager) Copy(ctx context.Context, source, destination string, config storage.Config) error {
	src, dst, err := m.resolvePair(source, destination)
	if err != nil {
		return err
	}
	if src.name == dst.name {
		return src.relocate(src.op.Copy(ctx, src.path, dst.path, config))
	}

	logger.Debug("mount manager: copying %s to %s across mounts", source, destination)
	if err := storage.CopyBetween(ctx, src.op, src.path, dst.op, dst.path, config); err != nil {
		return storage.UnableToCopyFile(source, destination, "", err)
	}
	return nil
}

func (m *MountManager) resolvePair(source, destination string) (mountTarget, mountTarget, error) {
	src, err := m.resolve(source)
	if err != nil {
		return mountTarget{}, mountTarget{}, err
	}
	dst, err := m.resolve(destination)
	if err != nil {
		return mountTarget{}, mountTarget{}, err
	}
	return src, dst, nil
}
