// Package badger implements storage.Adapter on top of an embedded BadgerDB
// key-value store.
package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/marmos91/strata/internal/logger"
	"github.com/marmos91/strata/pkg/storage"
	"github.com/marmos91/strata/pkg/storage/mimetype"
)

// Config contains configuration for creating a BadgerDB adapter.
type Config struct {
	// Path is the directory where BadgerDB stores its files.
	// Ignored when InMemory is true.
	Path string `mapstructure:"path"`

	// InMemory keeps the whole database in memory (nothing is persisted).
	InMemory bool `mapstructure:"in_memory"`

	// DefaultVisibility applies to entries written without a visibility
	// option (default: public).
	DefaultVisibility string `mapstructure:"default_visibility" validate:"omitempty,oneof=public private"`

	// BadgerOptions allows customization of BadgerDB behavior.
	// If nil, sensible defaults are used.
	BadgerOptions *badger.Options `mapstructure:"-"`
}

// Adapter implements storage.Adapter using BadgerDB for persistence.
//
// Key Features:
//   - Persistent storage with crash recovery (WAL-based)
//   - ACID transactions: Move and Copy are atomic
//   - Prefix scans for listings (see keys.go)
//
// Thread Safety:
// BadgerDB provides MVCC transactions; the adapter keeps no other state and
// is safe for concurrent use.
type Adapter struct {
	db                *badger.DB
	defaultVisibility storage.Visibility
	detector          *mimetype.Detector
}

// New opens (or creates) a BadgerDB database and wraps it in an adapter.
func New(config Config) (*Adapter, error) {
	var opts badger.Options
	switch {
	case config.BadgerOptions != nil:
		opts = *config.BadgerOptions
	case config.InMemory:
		opts = badger.DefaultOptions("").WithInMemory(true)
	default:
		if config.Path == "" {
			return nil, fmt.Errorf("badger adapter: path is required unless in_memory is set")
		}
		opts = badger.DefaultOptions(config.Path)
	}

	if config.BadgerOptions == nil {
		opts = opts.WithLoggingLevel(badger.WARNING)
		opts = opts.WithCompression(options.None)
	}

	defaultVisibility := storage.VisibilityPublic
	if config.DefaultVisibility != "" {
		v, err := storage.ParseVisibility(config.DefaultVisibility)
		if err != nil {
			return nil, fmt.Errorf("badger adapter: %w", err)
		}
		defaultVisibility = v
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	logger.Debug("badger adapter: opened database (in_memory=%v path=%s)", config.InMemory, config.Path)

	return &Adapter{
		db:                db,
		defaultVisibility: defaultVisibility,
		detector:          mimetype.NewDetector(),
	}, nil
}

// Close closes the BadgerDB database and releases all resources.
func (a *Adapter) Close() error {
	if err := a.db.Close(); err != nil {
		return fmt.Errorf("failed to close BadgerDB: %w", err)
	}
	return nil
}

// ============================================================================
// Transaction helpers
// ============================================================================

// getRecord loads the metadata record for path. It returns (nil, nil) when
// the path has no record.
func getRecord(txn *badger.Txn, path string) (*record, error) {
	item, err := txn.Get(keyMeta(path))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var r *record
	err = item.Value(func(val []byte) error {
		r, err = decodeRecord(val)
		return err
	})
	return r, err
}

func putRecord(txn *badger.Txn, path string, r *record) error {
	data, err := encodeRecord(r)
	if err != nil {
		return err
	}
	return txn.Set(keyMeta(path), data)
}

// getFile loads a file record, failing when path is missing or a directory.
func getFile(txn *badger.Txn, path string) (*record, error) {
	r, err := getRecord(txn, path)
	if err != nil {
		return nil, err
	}
	if r == nil || r.Type != storage.EntryTypeFile {
		return nil, errFileNotFound
	}
	return r, nil
}

var errFileNotFound = errors.New("file does not exist")

// hasChildren reports whether any key lives below dir.
func hasChildren(txn *badger.Txn, dir string) bool {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = keyMetaChildren(dir)

	it := txn.NewIterator(opts)
	defer it.Close()

	it.Rewind()
	return it.Valid()
}

// ============================================================================
// Existence
// ============================================================================

// FileExists implements storage.Adapter.
func (a *Adapter) FileExists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, storage.UnableToCheckFileExistence(path, err)
	}

	var exists bool
	err := a.db.View(func(txn *badger.Txn) error {
		r, err := getRecord(txn, path)
		exists = r != nil && r.Type == storage.EntryTypeFile
		return err
	})
	if err != nil {
		return false, storage.UnableToCheckFileExistence(path, err)
	}
	return exists, nil
}

// DirectoryExists implements storage.Adapter.
func (a *Adapter) DirectoryExists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, storage.UnableToCheckDirectoryExistence(path, err)
	}
	if path == "" {
		return true, nil
	}

	var exists bool
	err := a.db.View(func(txn *badger.Txn) error {
		r, err := getRecord(txn, path)
		if err != nil {
			return err
		}
		exists = (r != nil && r.Type == storage.EntryTypeDirectory) || hasChildren(txn, path)
		return nil
	})
	if err != nil {
		return false, storage.UnableToCheckDirectoryExistence(path, err)
	}
	return exists, nil
}

// ============================================================================
// Reading
// ============================================================================

// Read implements storage.Adapter.
func (a *Adapter) Read(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, storage.UnableToReadFile(path, "", err)
	}

	var contents []byte
	err := a.db.View(func(txn *badger.Txn) error {
		if _, err := getFile(txn, path); err != nil {
			return err
		}
		item, err := txn.Get(keyContents(path))
		if err != nil {
			return err
		}
		contents, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, storage.UnableToReadFile(path, "", err)
	}
	return contents, nil
}

// ReadStream implements storage.Adapter. Values are loaded in full; BadgerDB
// has no partial value reads.
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

	v, err := a.visibility(config, storage.OptionVisibility)
	if err != nil {
		return storage.UnableToWriteFile(path, "", err)
	}

	r := &record{
		Type:         storage.EntryTypeFile,
		Size:         int64(len(contents)),
		Visibility:   v,
		MimeType:     a.detector.Detect(path, contents),
		LastModified: time.Now().Unix(),
	}

	err = a.db.Update(func(txn *badger.Txn) error {
		if existing, err := getRecord(txn, path); err != nil {
			return err
		} else if existing != nil && existing.Type == storage.EntryTypeDirectory {
			return fmt.Errorf("a directory exists at this location")
		}
		if err := putRecord(txn, path, r); err != nil {
			return err
		}
		return txn.Set(keyContents(path), contents)
	})
	if err != nil {
		return storage.UnableToWriteFile(path, "", err)
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

	err := a.db.Update(func(txn *badger.Txn) error {
		r, err := getRecord(txn, path)
		if err != nil || r == nil {
			return err
		}
		if r.Type != storage.EntryTypeFile {
			return fmt.Errorf("path is a directory")
		}
		if err := txn.Delete(keyMeta(path)); err != nil {
			return err
		}
		return txn.Delete(keyContents(path))
	})
	if err != nil {
		return storage.UnableToDeleteFile(path, "", err)
	}
	return nil
}

// DeleteDirectory implements storage.Adapter.
//
// Keys are collected in a read transaction and removed with a WriteBatch, so
// directories of any size stay below the transaction size limit.
func (a *Adapter) DeleteDirectory(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return storage.UnableToDeleteDirectory(path, "", err)
	}

	var keys [][]byte
	err := a.db.View(func(txn *badger.Txn) error {
		if path != "" {
			if r, err := getRecord(txn, path); err != nil {
				return err
			} else if r != nil && r.Type == storage.EntryTypeDirectory {
				keys = append(keys, keyMeta(path))
			}
		}

		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		for _, prefix := range [][]byte{keyMetaChildren(path), keyContentsChildren(path)} {
			opts.Prefix = prefix
			it := txn.NewIterator(opts)
			for it.Rewind(); it.Valid(); it.Next() {
				keys = append(keys, it.Item().KeyCopy(nil))
			}
			it.Close()
		}
		return nil
	})
	if err != nil {
		return storage.UnableToDeleteDirectory(path, "", err)
	}

	wb := a.db.NewWriteBatch()
	defer wb.Cancel()

	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return storage.UnableToDeleteDirectory(path, "", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return storage.UnableToDeleteDirectory(path, "", err)
	}

	logger.Debug("badger adapter: deleted %d keys below %q", len(keys), path)
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

	v, err := a.visibility(config, storage.OptionDirectoryVisibility, storage.OptionVisibility)
	if err != nil {
		return storage.UnableToCreateDirectory(path, "", err)
	}

	err = a.db.Update(func(txn *badger.Txn) error {
		existing, err := getRecord(txn, path)
		if err != nil {
			return err
		}
		if existing != nil && existing.Type == storage.EntryTypeFile {
			return fmt.Errorf("a file exists at this location")
		}
		return putRecord(txn, path, &record{
			Type:         storage.EntryTypeDirectory,
			Visibility:   v,
			LastModified: time.Now().Unix(),
		})
	})
	if err != nil {
		return storage.UnableToCreateDirectory(path, "", err)
	}
	return nil
}

// SetVisibility implements storage.Adapter.
func (a *Adapter) SetVisibility(ctx context.Context, path string, v storage.Visibility) error {
	if err := ctx.Err(); err != nil {
		return storage.UnableToSetVisibility(path, "", err)
	}

	err := a.db.Update(func(txn *badger.Txn) error {
		r, err := getRecord(txn, path)
		if err != nil {
			return err
		}
		if r == nil {
			return errFileNotFound
		}
		r.Visibility = v
		return putRecord(txn, path, r)
	})
	if err != nil {
		return storage.UnableToSetVisibility(path, "", err)
	}
	return nil
}

// ============================================================================
// Metadata
// ============================================================================

// Visibility implements storage.Adapter.
func (a *Adapter) Visibility(ctx context.Context, path string) (*storage.FileAttributes, error) {
	return a.metadata(ctx, path, storage.FieldVisibility)
}

// MimeType implements storage.Adapter.
func (a *Adapter) MimeType(ctx context.Context, path string) (*storage.FileAttributes, error) {
	attrs, err := a.metadata(ctx, path, storage.FieldMimeType)
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
	return a.metadata(ctx, path, storage.FieldLastModified)
}

// FileSize implements storage.Adapter.
func (a *Adapter) FileSize(ctx context.Context, path string) (*storage.FileAttributes, error) {
	return a.metadata(ctx, path, storage.FieldFileSize)
}

func (a *Adapter) metadata(ctx context.Context, path string, field storage.MetadataField) (*storage.FileAttributes, error) {
	if err := ctx.Err(); err != nil {
		return nil, storage.UnableToRetrieveMetadata(path, field, "", err)
	}

	var r *record
	err := a.db.View(func(txn *badger.Txn) error {
		var err error
		r, err = getFile(txn, path)
		return err
	})
	if err != nil {
		return nil, storage.UnableToRetrieveMetadata(path, field, "", err)
	}
	return r.fileAttributes(path), nil
}

// ============================================================================
// Move & Copy
// ============================================================================

// Move implements storage.Adapter. The move is a single transaction.
func (a *Adapter) Move(ctx context.Context, source, destination string, config storage.Config) error {
	if err := ctx.Err(); err != nil {
		return storage.UnableToMoveFile(source, destination, "", err)
	}

	err := a.db.Update(func(txn *badger.Txn) error {
		if err := a.copyInTxn(txn, source, destination, config); err != nil {
			return err
		}
		if err := txn.Delete(keyMeta(source)); err != nil {
			return err
		}
		return txn.Delete(keyContents(source))
	})
	if err != nil {
		return storage.UnableToMoveFile(source, destination, "", err)
	}
	return nil
}

// Copy implements storage.Adapter. The copy is a single transaction.
func (a *Adapter) Copy(ctx context.Context, source, destination string, config storage.Config) error {
	if err := ctx.Err(); err != nil {
		return storage.UnableToCopyFile(source, destination, "", err)
	}

	err := a.db.Update(func(txn *badger.Txn) error {
		return a.copyInTxn(txn, source, destination, config)
	})
	if err != nil {
		return storage.UnableToCopyFile(source, destination, "", err)
	}
	return nil
}

func (a *Adapter) copyInTxn(txn *badger.Txn, source, destination string, config storage.Config) error {
	r, err := getFile(txn, source)
	if err != nil {
		return err
	}

	item, err := txn.Get(keyContents(source))
	if err != nil {
		return err
	}
	contents, err := item.ValueCopy(nil)
	if err != nil {
		return err
	}

	v, err := storage.ResolveTransferVisibility(config, func() (storage.Visibility, error) {
		return r.Visibility, nil
	})
	if err != nil {
		return err
	}
	if v == "" {
		v = a.defaultVisibility
	}

	copied := *r
	copied.Visibility = v
	copied.LastModified = time.Now().Unix()

	if err := putRecord(txn, destination, &copied); err != nil {
		return err
	}
	return txn.Set(keyContents(destination), contents)
}

// ============================================================================
// Helpers
// ============================================================================

func (a *Adapter) visibility(config storage.Config, keys ...string) (storage.Visibility, error) {
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
