package compose

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"slices"
	"strings"

	"github.com/marmos91/strata/pkg/storage"
)

// ArrayAdapter routes "@namespace/path" paths to named adapters.
//
// It is the adapter-level counterpart of MountManager and sits below a
// storage.Filesystem:
//
//	array, _ := compose.NewArrayAdapter(map[string]storage.Adapter{
//	    "main":  memory.New(),
//	    "cache": badgerAdapter,
//	})
//	fs := storage.New(array)
//	fs.Read(ctx, "@cache/index.json")
//
// Paths without the leading "@" or naming an unregistered namespace fail
// with ErrUnableToResolveFilesystemMount. Moves and copies between two
// namespaces are streamed, and a failure at any step is reported once for
// the whole operation.
//
// The set of namespaces is fixed at construction.
type ArrayAdapter struct {
	adapters map[string]storage.Adapter
}

var _ storage.Adapter = (*ArrayAdapter)(nil)

// NewArrayAdapter creates an adapter over the given namespaces. Invalid
// names fail with ErrUnableToMountFilesystem.
func NewArrayAdapter(adapters map[string]storage.Adapter) (*ArrayAdapter, error) {
	a := &ArrayAdapter{adapters: make(map[string]storage.Adapter, len(adapters))}
	for name, adapter := range adapters {
		if err := validateMountName(name); err != nil {
			return nil, err
		}
		if adapter == nil {
			return nil, storage.UnableToMountFilesystem(fmt.Sprintf("namespace %q has no adapter", name))
		}
		a.adapters[name] = adapter
	}
	return a, nil
}

// Namespaces returns the registered namespace names, sorted.
func (a *ArrayAdapter) Namespaces() []string {
	names := make([]string, 0, len(a.adapters))
	for name := range a.adapters {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Adapter returns the adapter registered for namespace.
func (a *ArrayAdapter) Adapter(namespace string) (storage.Adapter, bool) {
	adapter, ok := a.adapters[namespace]
	return adapter, ok
}

// Close closes every namespace adapter that holds resources.
func (a *ArrayAdapter) Close() error {
	adapters := make([]storage.Adapter, 0, len(a.adapters))
	for _, name := range a.Namespaces() {
		adapters = append(adapters, a.adapters[name])
	}
	return closeAll(adapters)
}

// namespaceTarget is a resolved "@namespace/path".
type namespaceTarget struct {
	namespace string
	path      string
	adapter   storage.Adapter
}

func (t namespaceTarget) location(path string) string {
	if path == "" {
		return "@" + t.namespace
	}
	return "@" + t.namespace + "/" + path
}

func (t namespaceTarget) relocate(err error) error {
	return storage.RelocateError(err, t.location)
}

func (a *ArrayAdapter) resolve(path string) (namespaceTarget, error) {
	if !strings.HasPrefix(path, "@") {
		return namespaceTarget{}, storage.UnableToResolveFilesystemMount(path, "path does not start with @namespace")
	}

	namespace, rest, _ := strings.Cut(path[1:], "/")
	if namespace == "" {
		return namespaceTarget{}, storage.UnableToResolveFilesystemMount(path, "empty namespace")
	}

	adapter, ok := a.adapters[namespace]
	if !ok {
		return namespaceTarget{}, storage.UnableToResolveFilesystemMount(path, fmt.Sprintf("no adapter registered for namespace %q", namespace))
	}
	return namespaceTarget{namespace: namespace, path: rest, adapter: adapter}, nil
}

// ============================================================================
// Reads
// ============================================================================

// FileExists implements storage.Adapter.
func (a *ArrayAdapter) FileExists(ctx context.Context, path string) (bool, error) {
	t, err := a.resolve(path)
	if err != nil {
		return false, err
	}
	exists, err := t.adapter.FileExists(ctx, t.path)
	return exists, t.relocate(err)
}

// DirectoryExists implements storage.Adapter.
func (a *ArrayAdapter) DirectoryExists(ctx context.Context, path string) (bool, error) {
	t, err := a.resolve(path)
	if err != nil {
		return false, err
	}
	exists, err := t.adapter.DirectoryExists(ctx, t.path)
	return exists, t.relocate(err)
}

// Read implements storage.Adapter.
func (a *ArrayAdapter) Read(ctx context.Context, path string) ([]byte, error) {
	t, err := a.resolve(path)
	if err != nil {
		return nil, err
	}
	contents, err := t.adapter.Read(ctx, t.path)
	return contents, t.relocate(err)
}

// ReadStream implements storage.Adapter.
func (a *ArrayAdapter) ReadStream(ctx context.Context, path string) (io.ReadCloser, error) {
	t, err := a.resolve(path)
	if err != nil {
		return nil, err
	}
	stream, err := t.adapter.ReadStream(ctx, t.path)
	return stream, t.relocate(err)
}

// Visibility implements storage.Adapter.
func (a *ArrayAdapter) Visibility(ctx context.Context, path string) (*storage.FileAttributes, error) {
	t, err := a.resolve(path)
	if err != nil {
		return nil, err
	}
	return t.attributes(t.adapter.Visibility(ctx, t.path))
}

// MimeType implements storage.Adapter.
func (a *ArrayAdapter) MimeType(ctx context.Context, path string) (*storage.FileAttributes, error) {
	t, err := a.resolve(path)
	if err != nil {
		return nil, err
	}
	return t.attributes(t.adapter.MimeType(ctx, t.path))
}

// LastModified implements storage.Adapter.
func (a *ArrayAdapter) LastModified(ctx context.Context, path string) (*storage.FileAttributes, error) {
	t, err := a.resolve(path)
	if err != nil {
		return nil, err
	}
	return t.attributes(t.adapter.LastModified(ctx, t.path))
}

// FileSize implements storage.Adapter.
func (a *ArrayAdapter) FileSize(ctx context.Context, path string) (*storage.FileAttributes, error) {
	t, err := a.resolve(path)
	if err != nil {
		return nil, err
	}
	return t.attributes(t.adapter.FileSize(ctx, t.path))
}

func (t namespaceTarget) attributes(attrs *storage.FileAttributes, err error) (*storage.FileAttributes, error) {
	if err != nil {
		return nil, t.relocate(err)
	}
	if attrs == nil {
		return nil, nil
	}
	routed, _ := attrs.WithPath(t.location(attrs.Path())).(*storage.FileAttributes)
	return routed, nil
}

// ListContents implements storage.Adapter. Entries are reported with their
// "@namespace/" prefix.
func (a *ArrayAdapter) ListContents(ctx context.Context, path string, deep bool) iter.Seq2[storage.StorageAttributes, error] {
	t, err := a.resolve(path)
	if err != nil {
		return storage.FailedListing(err)
	}

	return func(yield func(storage.StorageAttributes, error) bool) {
		for attrs, err := range t.adapter.ListContents(ctx, t.path, deep) {
			if err != nil {
				yield(nil, t.relocate(err))
				return
			}
			if !yield(attrs.WithPath(t.location(attrs.Path())), nil) {
				return
			}
		}
	}
}

// Checksum implements storage.ChecksumProvider when the namespace adapter
// does.
func (a *ArrayAdapter) Checksum(ctx context.Context, path string, config storage.Config) (string, error) {
	t, err := a.resolve(path)
	if err != nil {
		return "", err
	}
	provider, ok := t.adapter.(storage.ChecksumProvider)
	if !ok {
		return "", storage.ErrChecksumAlgoNotSupported
	}
	sum, err := provider.Checksum(ctx, t.path, config)
	if errors.Is(err, storage.ErrChecksumAlgoNotSupported) {
		return "", err
	}
	return sum, t.relocate(err)
}

// ============================================================================
// Writes
// ============================================================================

// Write implements storage.Adapter.
func (a *ArrayAdapter) Write(ctx context.Context, path string, contents []byte, config storage.Config) error {
	t, err := a.resolve(path)
	if err != nil {
		return err
	}
	return t.relocate(t.adapter.Write(ctx, t.path, contents, config))
}

// WriteStream implements storage.Adapter.
func (a *ArrayAdapter) WriteStream(ctx context.Context, path string, r io.Reader, config storage.Config) error {
	t, err := a.resolve(path)
	if err != nil {
		return err
	}
	return t.relocate(t.adapter.WriteStream(ctx, t.path, r, config))
}

// Delete implements storage.Adapter.
func (a *ArrayAdapter) Delete(ctx context.Context, path string) error {
	t, err := a.resolve(path)
	if err != nil {
		return err
	}
	return t.relocate(t.adapter.Delete(ctx, t.path))
}

// DeleteDirectory implements storage.Adapter.
func (a *ArrayAdapter) DeleteDirectory(ctx context.Context, path string) error {
	t, err := a.resolve(path)
	if err != nil {
		return err
	}
	return t.relocate(t.adapter.DeleteDirectory(ctx, t.path))
}

// CreateDirectory implements storage.Adapter.
func (a *ArrayAdapter) CreateDirectory(ctx context.Context, path string, config storage.Config) error {
	t, err := a.resolve(path)
	if err != nil {
		return err
	}
	return t.relocate(t.adapter.CreateDirectory(ctx, t.path, config))
}

// SetVisibility implements storage.Adapter.
func (a *ArrayAdapter) SetVisibility(ctx context.Context, path string, visibility storage.Visibility) error {
	t, err := a.resolve(path)
	if err != nil {
		return err
	}
	return t.relocate(t.adapter.SetVisibility(ctx, t.path, visibility))
}

// ============================================================================
// Move & Copy
// ============================================================================

// Move implements storage.Adapter.
func (a *ArrayAdapter) Move(ctx context.Context, source, destination string, config storage.Config) error {
	src, dst, err := a.resolvePair(source, destination)
	if err != nil {
		return err
	}
	if src.namespace == dst.namespace {
		return src.relocate(src.adapter.Move(ctx, src.path, dst.path, config))
	}

	if err := streamBetween(ctx, src.adapter, src.path, dst.adapter, dst.path, config); err != nil {
		return storage.UnableToMoveFile(source, destination, "", err)
	}
	if err := src.adapter.Delete(ctx, src.path); err != nil {
		return storage.UnableToMoveFile(source, destination, "", err)
	}
	return nil
}

// Copy implements storage.Adapter.
func (a *ArrayAdapter) Copy(ctx context.Context, source, destination string, config storage.Config) error {
	src, dst, err := a.resolvePair(source, destination)
	if err != nil {
		return err
	}
	if src.namespace == dst.namespace {
		return src.relocate(src.adapter.Copy(ctx, src.path, dst.path, config))
	}

	if err := streamBetween(ctx, src.adapter, src.path, dst.adapter, dst.path, config); err != nil {
		return storage.UnableToCopyFile(source, destination, "", err)
	}
	return nil
}

func (a *ArrayAdapter) resolvePair(source, destination string) (namespaceTarget, namespaceTarget, error) {
	src, err := a.resolve(source)
	if err != nil {
		return namespaceTarget{}, namespaceTarget{}, err
	}
	dst, err := a.resolve(destination)
	if err != nil {
		return namespaceTarget{}, namespaceTarget{}, err
	}
	return src, dst, nil
}
