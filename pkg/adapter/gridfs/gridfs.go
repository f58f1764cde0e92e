// Package gridfs implements storage.Adapter on a MongoDB GridFS bucket.
//
// Every path is a GridFS filename below an optional key prefix. Writing a
// path uploads a new revision and removes the older ones, so each filename
// has a single live revision once a write returns. Directories are implicit
// in the filenames; CreateDirectory stores an empty "dir/" marker file.
package gridfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/marmos91/strata/internal/logger"
	"github.com/marmos91/strata/pkg/storage"
	"github.com/marmos91/strata/pkg/storage/mimetype"
)

// sniffLength is how much of a stream is inspected for its mime type.
const sniffLength = 3072

// Config contains configuration for the GridFS adapter.
type Config struct {
	// URI is the MongoDB connection string. Ignored when Client is set.
	URI string `mapstructure:"uri" json:"-" yaml:"-" validate:"required_without=Client"`

	// Database holds the GridFS collections.
	Database string `mapstructure:"database" validate:"required"`

	// Bucket is the GridFS bucket name (default: "fs").
	Bucket string `mapstructure:"bucket"`

	// KeyPrefix is an optional prefix for every filename.
	KeyPrefix string `mapstructure:"key_prefix"`

	// ChunkSize overrides the GridFS chunk size in bytes (default: 255KB).
	ChunkSize int32 `mapstructure:"chunk_size" validate:"gte=0"`

	// DefaultVisibility applies to entries written without a visibility
	// option (default: public).
	DefaultVisibility string `mapstructure:"default_visibility" validate:"omitempty,oneof=public private"`

	// Client reuses an existing connection. The adapter does not disconnect
	// clients it did not create.
	Client *mongo.Client `mapstructure:"-"`
}

// Adapter implements storage.Adapter on a GridFS bucket.
//
// Thread Safety:
// The mongo client is safe for concurrent use and the adapter keeps no
// other mutable state. Deadlines are applied per stream, never on the
// shared bucket.
type Adapter struct {
	client            *mongo.Client
	ownsClient        bool
	bucket            *gridfs.Bucket
	files             *mongo.Collection
	prefixer          *storage.PathPrefixer
	defaultVisibility storage.Visibility
	detector          *mimetype.Detector
}

// New connects to MongoDB (unless cfg.Client is set) and opens the bucket.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("gridfs adapter: database is required")
	}

	defaultVisibility := storage.VisibilityPublic
	if cfg.DefaultVisibility != "" {
		v, err := storage.ParseVisibility(cfg.DefaultVisibility)
		if err != nil {
			return nil, fmt.Errorf("gridfs adapter: %w", err)
		}
		defaultVisibility = v
	}

	client, owns := cfg.Client, false
	if client == nil {
		if cfg.URI == "" {
			return nil, fmt.Errorf("gridfs adapter: uri is required")
		}

		var err error
		client, err = mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		owns = true

		if err := client.Ping(ctx, nil); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
		}
	}

	bucketOpts := options.GridFSBucket()
	if cfg.Bucket != "" {
		bucketOpts.SetName(cfg.Bucket)
	}
	if cfg.ChunkSize > 0 {
		bucketOpts.SetChunkSizeBytes(cfg.ChunkSize)
	}

	bucket, err := gridfs.NewBucket(client.Database(cfg.Database), bucketOpts)
	if err != nil {
		if owns {
			_ = client.Disconnect(context.Background())
		}
		return nil, fmt.Errorf("failed to open GridFS bucket: %w", err)
	}

	logger.Debug("gridfs adapter: database=%s bucket=%s prefix=%q", cfg.Database, cfg.Bucket, cfg.KeyPrefix)

	return &Adapter{
		client:            client,
		ownsClient:        owns,
		bucket:            bucket,
		files:             bucket.GetFilesCollection(),
		prefixer:          storage.NewPathPrefixer(cfg.KeyPrefix, "/"),
		defaultVisibility: defaultVisibility,
		detector:          mimetype.NewDetector(),
	}, nil
}

// Close disconnects the client if the adapter created it.
func (a *Adapter) Close() error {
	if !a.ownsClient {
		return nil
	}
	if err := a.client.Disconnect(context.Background()); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}
	return nil
}

// ============================================================================
// Existence
// ============================================================================

// FileExists implements storage.Adapter.
func (a *Adapter) FileExists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, storage.UnableToCheckFileExistence(path, err)
	}
	if path == "" {
		return false, nil
	}

	n, err := a.files.CountDocuments(ctx, bson.D{{Key: "filename", Value: a.key(path)}}, options.Count().SetLimit(1))
	if err != nil {
		return false, storage.UnableToCheckFileExistence(path, err)
	}
	return n > 0, nil
}

// DirectoryExists implements storage.Adapter.
func (a *Adapter) DirectoryExists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, storage.UnableToCheckDirectoryExistence(path, err)
	}
	if path == "" {
		return true, nil
	}

	n, err := a.files.CountDocuments(ctx, below(a.dirKey(path)), options.Count().SetLimit(1))
	if err != nil {
		return false, storage.UnableToCheckDirectoryExistence(path, err)
	}
	return n > 0, nil
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

// ReadStream implements storage.Adapter. Chunks are fetched as the reader
// is consumed.
func (a *Adapter) ReadStream(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, storage.UnableToReadFile(path, "", err)
	}

	stream, err := a.bucket.OpenDownloadStreamByName(a.key(path))
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, storage.UnableToReadFile(path, "file does not exist", err)
	}
	if err != nil {
		return nil, storage.UnableToReadFile(path, "", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.SetReadDeadline(deadline)
	}
	return stream, nil
}

// ============================================================================
// Writing
// ============================================================================

// Write implements storage.Adapter.
func (a *Adapter) Write(ctx context.Context, path string, contents []byte, config storage.Config) error {
	return a.write(ctx, path, bytes.NewReader(contents), a.detector.Detect(path, contents), config)
}

// WriteStream implements storage.Adapter. The mime type is sniffed from the
// head of the stream.
func (a *Adapter) WriteStream(ctx context.Context, path string, r io.Reader, config storage.Config) error {
	head := make([]byte, sniffLength)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return storage.UnableToWriteFile(path, "", err)
	}
	head = head[:n]

	return a.write(ctx, path, io.MultiReader(bytes.NewReader(head), r), a.detector.Detect(path, head), config)
}

func (a *Adapter) write(ctx context.Context, path string, r io.Reader, mimeType string, config storage.Config) error {
	if err := ctx.Err(); err != nil {
		return storage.UnableToWriteFile(path, "", err)
	}

	v, err := a.visibility(config, storage.OptionVisibility)
	if err != nil {
		return storage.UnableToWriteFile(path, "", err)
	}

	meta := fileMetadata{Visibility: string(v), MimeType: mimeType}
	if err := a.upload(ctx, a.key(path), r, meta); err != nil {
		return storage.UnableToWriteFile(path, "", err)
	}
	return nil
}

// upload stores a new revision of filename and removes the older ones.
func (a *Adapter) upload(ctx context.Context, filename string, r io.Reader, meta fileMetadata) error {
	stream, err := a.bucket.OpenUploadStream(filename, options.GridFSUpload().SetMetadata(meta))
	if err != nil {
		return fmt.Errorf("failed to open upload stream: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.SetWriteDeadline(deadline)
	}

	if _, err := io.Copy(stream, r); err != nil {
		_ = stream.Abort()
		return fmt.Errorf("failed to upload %s: %w", filename, err)
	}
	if err := stream.Close(); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", filename, err)
	}

	return a.deleteRevisions(ctx, bson.D{
		{Key: "filename", Value: filename},
		{Key: "_id", Value: bson.D{{Key: "$ne", Value: stream.FileID}}},
	})
}

// deleteRevisions removes every file (files document and chunks) matching
// filter.
func (a *Adapter) deleteRevisions(ctx context.Context, filter any) error {
	cursor, err := a.files.Find(ctx, filter, options.Find().SetProjection(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return err
	}

	var docs []struct {
		ID any `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return err
	}

	for _, doc := range docs {
		err := a.bucket.DeleteContext(ctx, doc.ID)
		if err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
			return err
		}
	}
	return nil
}

// Delete implements storage.Adapter. Every revision of the file is removed.
func (a *Adapter) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return storage.UnableToDeleteFile(path, "", err)
	}

	if err := a.deleteRevisions(ctx, bson.D{{Key: "filename", Value: a.key(path)}}); err != nil {
		return storage.UnableToDeleteFile(path, "", err)
	}
	return nil
}

// DeleteDirectory implements storage.Adapter.
func (a *Adapter) DeleteDirectory(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return storage.UnableToDeleteDirectory(path, "", err)
	}

	if err := a.deleteRevisions(ctx, below(a.dirKey(path))); err != nil {
		return storage.UnableToDeleteDirectory(path, "", err)
	}
	return nil
}

// CreateDirectory implements storage.Adapter by storing an empty marker
// file named "dir/".
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

	meta := fileMetadata{Visibility: string(v), Directory: true}
	if err := a.upload(ctx, a.dirKey(path), bytes.NewReader(nil), meta); err != nil {
		return storage.UnableToCreateDirectory(path, "", err)
	}
	return nil
}

// ============================================================================
// Visibility
// ============================================================================

// SetVisibility implements storage.Adapter. It applies to a file or to a
// directory marker at path.
func (a *Adapter) SetVisibility(ctx context.Context, path string, v storage.Visibility) error {
	if err := ctx.Err(); err != nil {
		return storage.UnableToSetVisibility(path, "", err)
	}

	res, err := a.files.UpdateMany(ctx,
		bson.D{{Key: "filename", Value: bson.D{{Key: "$in", Value: bson.A{a.key(path), a.dirKey(path)}}}}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "metadata.visibility", Value: string(v)}}}},
	)
	if err != nil {
		return storage.UnableToSetVisibility(path, "", err)
	}
	if res.MatchedCount == 0 {
		return storage.UnableToSetVisibility(path, "file does not exist", nil)
	}
	return nil
}

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

	file, err := a.latest(ctx, a.key(path))
	if err != nil {
		return nil, storage.UnableToRetrieveMetadata(path, field, "", err)
	}

	attrs, ok := attributes(path, file).(*storage.FileAttributes)
	if !ok {
		return nil, storage.UnableToRetrieveMetadata(path, field, "path is a directory", nil)
	}
	return attrs, nil
}

// latest returns the newest revision of filename.
func (a *Adapter) latest(ctx context.Context, filename string) (*gridfs.File, error) {
	res := a.files.FindOne(ctx,
		bson.D{{Key: "filename", Value: filename}},
		options.FindOne().SetSort(bson.D{{Key: "uploadDate", Value: -1}}),
	)

	var file gridfs.File
	if err := res.Decode(&file); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, gridfs.ErrFileNotFound
		}
		return nil, err
	}
	return &file, nil
}

// ============================================================================
// Move & Copy
// ============================================================================

// Move implements storage.Adapter by renaming the live revision.
func (a *Adapter) Move(ctx context.Context, source, destination string, config storage.Config) error {
	if err := ctx.Err(); err != nil {
		return storage.UnableToMoveFile(source, destination, "", err)
	}

	sourceKey, destinationKey := a.key(source), a.key(destination)
	if sourceKey == destinationKey {
		return nil
	}

	file, err := a.latest(ctx, sourceKey)
	if err != nil {
		return storage.UnableToMoveFile(source, destination, "", err)
	}
	meta := decodeMetadata(file.Metadata)

	v, err := a.transferVisibility(config, meta)
	if err != nil {
		return storage.UnableToMoveFile(source, destination, "", err)
	}

	// ========================================================================
	// Step 1: Clear the destination, then rename the live revision
	// ========================================================================

	if err := a.deleteRevisions(ctx, bson.D{{Key: "filename", Value: destinationKey}}); err != nil {
		return storage.UnableToMoveFile(source, destination, "", err)
	}
	if err := a.bucket.RenameContext(ctx, file.ID, destinationKey); err != nil {
		return storage.UnableToMoveFile(source, destination, "", err)
	}

	// ========================================================================
	// Step 2: Drop stale source revisions and apply the visibility
	// ========================================================================

	if err := a.deleteRevisions(ctx, bson.D{{Key: "filename", Value: sourceKey}}); err != nil {
		return storage.UnableToMoveFile(source, destination, "", err)
	}

	if string(v) != meta.Visibility {
		_, err := a.files.UpdateByID(ctx, file.ID,
			bson.D{{Key: "$set", Value: bson.D{{Key: "metadata.visibility", Value: string(v)}}}})
		if err != nil {
			return storage.UnableToMoveFile(source, destination, "", err)
		}
	}
	return nil
}

// Copy implements storage.Adapter by streaming the live revision into a new
// file.
func (a *Adapter) Copy(ctx context.Context, source, destination string, config storage.Config) error {
	if err := ctx.Err(); err != nil {
		return storage.UnableToCopyFile(source, destination, "", err)
	}

	file, err := a.latest(ctx, a.key(source))
	if err != nil {
		return storage.UnableToCopyFile(source, destination, "", err)
	}
	meta := decodeMetadata(file.Metadata)

	v, err := a.transferVisibility(config, meta)
	if err != nil {
		return storage.UnableToCopyFile(source, destination, "", err)
	}

	stream, err := a.bucket.OpenDownloadStream(file.ID)
	if err != nil {
		return storage.UnableToCopyFile(source, destination, "", err)
	}
	defer func() { _ = stream.Close() }()
	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.SetReadDeadline(deadline)
	}

	copied := fileMetadata{Visibility: string(v), MimeType: meta.MimeType}
	if err := a.upload(ctx, a.key(destination), stream, copied); err != nil {
		return storage.UnableToCopyFile(source, destination, "", err)
	}
	return nil
}

func (a *Adapter) transferVisibility(config storage.Config, meta fileMetadata) (storage.Visibility, error) {
	v, err := storage.ResolveTransferVisibility(config, func() (storage.Visibility, error) {
		return meta.visibility(), nil
	})
	if err != nil {
		return "", err
	}
	if v == "" {
		v = a.defaultVisibility
	}
	return v, nil
}

// ============================================================================
// Helpers
// ============================================================================

func (a *Adapter) key(path string) string {
	return a.prefixer.PrefixPath(path)
}

func (a *Adapter) dirKey(path string) string {
	return a.prefixer.PrefixDirectoryPath(path)
}

// below matches every filename starting with prefix.
func below(prefix string) bson.D {
	return bson.D{{Key: "filename", Value: bson.D{{Key: "$regex", Value: "^" + regexp.QuoteMeta(prefix)}}}}
}
