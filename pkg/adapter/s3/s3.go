// Package s3 implements storage.Adapter on Amazon S3 or any S3-compatible
// object store (MinIO, Localstack, Cubbit DS3, ...).
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/marmos91/strata/internal/logger"
	"github.com/marmos91/strata/pkg/storage"
	"github.com/marmos91/strata/pkg/storage/mimetype"
)

const (
	// DefaultPartSize is the multipart part size used when Config.PartSize
	// is zero.
	DefaultPartSize int64 = 10 * 1024 * 1024

	minPartSize int64 = 5 * 1024 * 1024
	maxPartSize int64 = 5 * 1024 * 1024 * 1024

	allUsersURI = "http://acs.amazonaws.com/groups/global/AllUsers"
)

// API is the subset of the S3 client used by the adapter. *s3.Client
// satisfies it.
type API interface {
	s3.ListObjectsV2APIClient

	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	GetObjectAcl(ctx context.Context, params *s3.GetObjectAclInput, optFns ...func(*s3.Options)) (*s3.GetObjectAclOutput, error)
	PutObjectAcl(ctx context.Context, params *s3.PutObjectAclInput, optFns ...func(*s3.Options)) (*s3.PutObjectAclOutput, error)
	CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

// Config contains configuration for the S3 adapter.
type Config struct {
	// Client is the configured S3 client (see NewClient).
	Client API `mapstructure:"-"`

	// Bucket is the S3 bucket name. The bucket must already exist.
	Bucket string `mapstructure:"bucket" validate:"required"`

	// KeyPrefix is an optional prefix for all object keys.
	// Example: "strata/" results in keys like "strata/docs/report.pdf"
	KeyPrefix string `mapstructure:"key_prefix"`

	// PartSize is the size of each part for multipart uploads (default: 10MB).
	// Must be between 5MB and 5GB. Streams shorter than one part are sent
	// with a single PutObject.
	PartSize int64 `mapstructure:"part_size" validate:"omitempty,gte=5242880"`

	// DefaultVisibility is applied as a canned ACL when a write carries no
	// visibility option. Empty leaves the bucket default in place, which is
	// required for buckets with ACLs disabled.
	DefaultVisibility string `mapstructure:"default_visibility" validate:"omitempty,oneof=public private"`
}

// Adapter implements storage.Adapter using S3 objects.
//
// Path-Based Key Design:
//   - Files map to objects named after their path below KeyPrefix
//   - Directories exist implicitly when an object lives below them
//   - CreateDirectory stores an empty "dir/" marker object
//   - Visibility maps to canned ACLs (public-read / private)
//
// Thread Safety:
// This implementation is safe for concurrent use by multiple goroutines.
// Concurrent writes to the same path are last-write-wins.
type Adapter struct {
	client            API
	bucket            string
	prefixer          *storage.PathPrefixer
	partSize          int64
	defaultVisibility storage.Visibility
	detector          *mimetype.Detector
}

// New creates an S3 adapter.
//
// The bucket must already exist; New verifies it is reachable.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	// ========================================================================
	// Step 1: Check context before S3 operations
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// ========================================================================
	// Step 2: Validate configuration
	// ========================================================================

	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	partSize := cfg.PartSize
	if partSize == 0 {
		partSize = DefaultPartSize
	}
	if partSize < minPartSize {
		return nil, fmt.Errorf("part size must be at least 5MB, got %d bytes", partSize)
	}
	if partSize > maxPartSize {
		return nil, fmt.Errorf("part size must be at most 5GB, got %d bytes", partSize)
	}

	var defaultVisibility storage.Visibility
	if cfg.DefaultVisibility != "" {
		v, err := storage.ParseVisibility(cfg.DefaultVisibility)
		if err != nil {
			return nil, fmt.Errorf("s3 adapter: %w", err)
		}
		defaultVisibility = v
	}

	// ========================================================================
	// Step 3: Verify bucket access
	// ========================================================================

	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	logger.Debug("s3 adapter: bucket=%s prefix=%q part_size=%d", cfg.Bucket, cfg.KeyPrefix, partSize)

	return &Adapter{
		client:            cfg.Client,
		bucket:            cfg.Bucket,
		prefixer:          storage.NewPathPrefixer(cfg.KeyPrefix, "/"),
		partSize:          partSize,
		defaultVisibility: defaultVisibility,
		detector:          mimetype.NewDetector(),
	}, nil
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

	_, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(path)),
	})
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, storage.UnableToCheckFileExistence(path, err)
	}
	return true, nil
}

// DirectoryExists implements storage.Adapter. A directory exists when its
// marker or any object below it exists.
func (a *Adapter) DirectoryExists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, storage.UnableToCheckDirectoryExistence(path, err)
	}
	if path == "" {
		return true, nil
	}

	out, err := a.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(a.bucket),
		Prefix:  aws.String(a.dirKey(path)),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, storage.UnableToCheckDirectoryExistence(path, err)
	}
	return len(out.Contents) > 0, nil
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

// ReadStream implements storage.Adapter. The returned reader streams the
// object body straight from S3.
func (a *Adapter) ReadStream(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, storage.UnableToReadFile(path, "", err)
	}

	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(path)),
	})
	if isNotFound(err) {
		return nil, storage.UnableToReadFile(path, "file does not exist", err)
	}
	if err != nil {
		return nil, storage.UnableToReadFile(path, "", err)
	}
	return out.Body, nil
}

// ============================================================================
// Writing
// ============================================================================

// Write implements storage.Adapter.
func (a *Adapter) Write(ctx context.Context, path string, contents []byte, config storage.Config) error {
	if err := ctx.Err(); err != nil {
		return storage.UnableToWriteFile(path, "", err)
	}

	acl, err := a.acl(config, storage.OptionVisibility)
	if err != nil {
		return storage.UnableToWriteFile(path, "", err)
	}

	if err := a.putObject(ctx, a.key(path), contents, a.detector.Detect(path, contents), acl); err != nil {
		return storage.UnableToWriteFile(path, "", err)
	}
	return nil
}

func (a *Adapter) putObject(ctx context.Context, key string, contents []byte, contentType string, acl types.ObjectCannedACL) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(contents),
		ContentLength: aws.Int64(int64(len(contents))),
		ACL:           acl,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	_, err := a.client.PutObject(ctx, input)
	return err
}

// Delete implements storage.Adapter. Deleting a missing object succeeds.
func (a *Adapter) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return storage.UnableToDeleteFile(path, "", err)
	}

	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(path)),
	})
	if err != nil && !isNotFound(err) {
		return storage.UnableToDeleteFile(path, "", err)
	}
	return nil
}

// DeleteDirectory implements storage.Adapter.
//
// Every object below the directory (its marker included) is removed, one
// DeleteObjects batch per listing page.
func (a *Adapter) DeleteDirectory(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return storage.UnableToDeleteDirectory(path, "", err)
	}

	paginator := s3.NewListObjectsV2Paginator(a.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(a.dirKey(path)),
	})

	deleted := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return storage.UnableToDeleteDirectory(path, "", err)
		}
		if len(page.Contents) == 0 {
			continue
		}

		objects := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			objects = append(objects, types.ObjectIdentifier{Key: obj.Key})
		}

		out, err := a.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(a.bucket),
			Delete: &types.Delete{
				Objects: objects,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return storage.UnableToDeleteDirectory(path, "", err)
		}
		if len(out.Errors) > 0 {
			first := out.Errors[0]
			reason := fmt.Sprintf("failed to delete %s: %s", aws.ToString(first.Key), aws.ToString(first.Message))
			return storage.UnableToDeleteDirectory(path, reason, nil)
		}
		deleted += len(objects)
	}

	logger.Debug("s3 adapter: deleted %d objects below %q", deleted, path)
	return nil
}

// CreateDirectory implements storage.Adapter by storing a "dir/" marker.
func (a *Adapter) CreateDirectory(ctx context.Context, path string, config storage.Config) error {
	if err := ctx.Err(); err != nil {
		return storage.UnableToCreateDirectory(path, "", err)
	}
	if path == "" {
		return nil
	}

	acl, err := a.acl(config, storage.OptionDirectoryVisibility, storage.OptionVisibility)
	if err != nil {
		return storage.UnableToCreateDirectory(path, "", err)
	}

	if err := a.putObject(ctx, a.dirKey(path), nil, "", acl); err != nil {
		return storage.UnableToCreateDirectory(path, "", err)
	}
	return nil
}

// ============================================================================
// Visibility
// ============================================================================

// SetVisibility implements storage.Adapter.
func (a *Adapter) SetVisibility(ctx context.Context, path string, v storage.Visibility) error {
	if err := ctx.Err(); err != nil {
		return storage.UnableToSetVisibility(path, "", err)
	}

	acl, err := cannedACL(v)
	if err != nil {
		return storage.UnableToSetVisibility(path, "", err)
	}

	_, err = a.client.PutObjectAcl(ctx, &s3.PutObjectAclInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(path)),
		ACL:    acl,
	})
	if err != nil {
		return storage.UnableToSetVisibility(path, "", err)
	}
	return nil
}

// Visibility implements storage.Adapter. An object is public when the
// AllUsers group holds a READ grant.
func (a *Adapter) Visibility(ctx context.Context, path string) (*storage.FileAttributes, error) {
	if err := ctx.Err(); err != nil {
		return nil, storage.UnableToRetrieveMetadata(path, storage.FieldVisibility, "", err)
	}

	v, err := a.objectVisibility(ctx, a.key(path))
	if err != nil {
		return nil, storage.UnableToRetrieveMetadata(path, storage.FieldVisibility, "", err)
	}
	return storage.NewFileAttributes(path, storage.WithVisibility(v)), nil
}

func (a *Adapter) objectVisibility(ctx context.Context, key string) (storage.Visibility, error) {
	out, err := a.client.GetObjectAcl(ctx, &s3.GetObjectAclInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", err
	}
	return visibilityFromGrants(out.Grants), nil
}

func visibilityFromGrants(grants []types.Grant) storage.Visibility {
	for _, grant := range grants {
		if grant.Grantee == nil || aws.ToString(grant.Grantee.URI) != allUsersURI {
			continue
		}
		if grant.Permission == types.PermissionRead || grant.Permission == types.PermissionFullControl {
			return storage.VisibilityPublic
		}
	}
	return storage.VisibilityPrivate
}

func cannedACL(v storage.Visibility) (types.ObjectCannedACL, error) {
	switch v {
	case storage.VisibilityPublic:
		return types.ObjectCannedACLPublicRead, nil
	case storage.VisibilityPrivate:
		return types.ObjectCannedACLPrivate, nil
	case "":
		return "", nil
	default:
		return "", fmt.Errorf("%q: %w", v, storage.ErrInvalidVisibility)
	}
}

// acl returns the canned ACL for the first visibility option set in config,
// falling back to the adapter default. An empty ACL leaves the bucket
// default in place.
func (a *Adapter) acl(config storage.Config, keys ...string) (types.ObjectCannedACL, error) {
	for _, key := range keys {
		v, ok, err := config.Visibility(key)
		if err != nil {
			return "", err
		}
		if ok {
			return cannedACL(v)
		}
	}
	return cannedACL(a.defaultVisibility)
}

// ============================================================================
// Metadata
// ============================================================================

// MimeType implements storage.Adapter. S3 reports a generic binary type for
// objects stored without a content type; those count as unknown.
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

	out, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(path)),
	})
	if err != nil {
		return nil, storage.UnableToRetrieveMetadata(path, field, "", err)
	}

	opts := []storage.AttributeOption{
		storage.WithFileSize(aws.ToInt64(out.ContentLength)),
		storage.WithMimeType(contentType(out.ContentType)),
	}
	if out.LastModified != nil {
		opts = append(opts, storage.WithLastModified(*out.LastModified))
	}
	if etag := aws.ToString(out.ETag); etag != "" {
		opts = append(opts, storage.WithExtraMetadata(map[string]any{"etag": strings.Trim(etag, `"`)}))
	}
	return storage.NewFileAttributes(path, opts...), nil
}

// contentType drops the placeholder types S3 assigns to untyped objects.
func contentType(value *string) string {
	switch ct := aws.ToString(value); ct {
	case "binary/octet-stream", "application/octet-stream":
		return ""
	default:
		return ct
	}
}

// ============================================================================
// Move & Copy
// ============================================================================

// Move implements storage.Adapter as a server-side copy followed by a
// delete of the source.
func (a *Adapter) Move(ctx context.Context, source, destination string, config storage.Config) error {
	if err := a.copyObject(ctx, source, destination, config); err != nil {
		return storage.UnableToMoveFile(source, destination, "", err)
	}

	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(source)),
	})
	if err != nil {
		return storage.UnableToMoveFile(source, destination, "", err)
	}
	return nil
}

// Copy implements storage.Adapter with a server-side CopyObject.
func (a *Adapter) Copy(ctx context.Context, source, destination string, config storage.Config) error {
	if err := a.copyObject(ctx, source, destination, config); err != nil {
		return storage.UnableToCopyFile(source, destination, "", err)
	}
	return nil
}

func (a *Adapter) copyObject(ctx context.Context, source, destination string, config storage.Config) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	sourceKey := a.key(source)

	v, err := storage.ResolveTransferVisibility(config, func() (storage.Visibility, error) {
		v, err := a.objectVisibility(ctx, sourceKey)
		if err != nil && !isNotFound(err) {
			// Buckets with ACLs disabled reject GetObjectAcl; copy without one.
			logger.Debug("s3 adapter: cannot read ACL of %s: %v", sourceKey, err)
			return storage.VisibilityUnknown, nil
		}
		return v, err
	})
	if err != nil {
		return err
	}
	if v == "" {
		v = a.defaultVisibility
	}

	acl, err := cannedACL(v)
	if err != nil {
		return err
	}

	_, err = a.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(a.bucket),
		Key:        aws.String(a.key(destination)),
		CopySource: aws.String(copySource(a.bucket, sourceKey)),
		ACL:        acl,
	})
	return err
}

// copySource builds the URL-encoded "bucket/key" value CopyObject expects.
func copySource(bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return bucket + "/" + strings.Join(segments, "/")
}

// ============================================================================
// Checksum
// ============================================================================

// Checksum implements storage.ChecksumProvider from the object ETag.
//
// Only md5 is available, and only for objects uploaded in a single part:
// multipart ETags ("<hash>-<parts>") are not content digests.
func (a *Adapter) Checksum(ctx context.Context, path string, config storage.Config) (string, error) {
	algo := strings.ToLower(config.GetString(storage.OptionChecksumAlgo, storage.DefaultChecksumAlgo))
	if algo != "md5" {
		return "", fmt.Errorf("s3 etag: %q: %w", algo, storage.ErrChecksumAlgoNotSupported)
	}

	attrs, err := a.metadata(ctx, path, storage.FieldFileSize)
	if err != nil {
		return "", storage.UnableToProvideChecksum(path, "", err)
	}

	etag, _ := attrs.ExtraMetadata()["etag"].(string)
	if etag == "" || strings.Contains(etag, "-") {
		return "", fmt.Errorf("s3 etag %q: %w", etag, storage.ErrChecksumAlgoNotSupported)
	}
	return etag, nil
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

// isNotFound reports whether err is S3's answer for a missing key.
// HeadObject has no body, so its 404 only carries the "NotFound" code.
func isNotFound(err error) bool {
	if err == nil {
		return false
	}

	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
