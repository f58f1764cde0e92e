package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/marmos91/strata/internal/logger"
	"github.com/marmos91/strata/pkg/storage"
)

// WriteStream implements storage.Adapter.
//
// The first part is buffered. Streams that end within it are stored with a
// single PutObject; longer streams switch to a multipart upload, holding at
// most one part in memory at a time.
func (a *Adapter) WriteStream(ctx context.Context, path string, r io.Reader, config storage.Config) error {
	if err := ctx.Err(); err != nil {
		return storage.UnableToWriteFile(path, "", err)
	}

	acl, err := a.acl(config, storage.OptionVisibility)
	if err != nil {
		return storage.UnableToWriteFile(path, "", err)
	}

	buf := make([]byte, a.partSize)
	n, err := io.ReadFull(r, buf)
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		if err := a.putObject(ctx, a.key(path), buf[:n], a.detector.Detect(path, buf[:n]), acl); err != nil {
			return storage.UnableToWriteFile(path, "", err)
		}
		return nil
	case err != nil:
		return storage.UnableToWriteFile(path, "", err)
	}

	if err := a.uploadMultipart(ctx, a.key(path), a.detector.Detect(path, buf), acl, buf, r); err != nil {
		return storage.UnableToWriteFile(path, "", err)
	}
	return nil
}

// uploadMultipart uploads first followed by the rest of r, one part at a
// time. The upload is aborted on any failure so no parts are left behind.
func (a *Adapter) uploadMultipart(
	ctx context.Context,
	key, contentType string,
	acl types.ObjectCannedACL,
	first []byte,
	r io.Reader,
) error {
	// ========================================================================
	// Step 1: Initiate the upload
	// ========================================================================

	input := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		ACL:    acl,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	created, err := a.client.CreateMultipartUpload(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to create multipart upload: %w", err)
	}
	uploadID := aws.ToString(created.UploadId)

	abort := func(cause error) error {
		_, abortErr := a.client.AbortMultipartUpload(context.WithoutCancel(ctx), &s3.AbortMultipartUploadInput{
			Bucket:   aws.String(a.bucket),
			Key:      aws.String(key),
			UploadId: aws.String(uploadID),
		})
		if abortErr != nil {
			logger.Warn("s3 adapter: failed to abort multipart upload %s for %s: %v", uploadID, key, abortErr)
		}
		return cause
	}

	// ========================================================================
	// Step 2: Upload parts sequentially
	// ========================================================================

	var parts []types.CompletedPart
	buf := first
	for partNumber := int32(1); ; partNumber++ {
		if err := ctx.Err(); err != nil {
			return abort(err)
		}

		out, err := a.client.UploadPart(ctx, &s3.UploadPartInput{
			Bucket:     aws.String(a.bucket),
			Key:        aws.String(key),
			UploadId:   aws.String(uploadID),
			PartNumber: aws.Int32(partNumber),
			Body:       bytes.NewReader(buf),
		})
		if err != nil {
			return abort(fmt.Errorf("failed to upload part %d: %w", partNumber, err))
		}
		parts = append(parts, types.CompletedPart{
			ETag:       out.ETag,
			PartNumber: aws.Int32(partNumber),
		})

		n, err := io.ReadFull(r, buf[:cap(buf)])
		if n == 0 && errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
			return abort(err)
		}
		buf = buf[:n]
	}

	// ========================================================================
	// Step 3: Complete the upload
	// ========================================================================

	_, err = a.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(a.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: parts,
		},
	})
	if err != nil {
		return abort(fmt.Errorf("failed to complete multipart upload: %w", err))
	}

	logger.Debug("s3 adapter: multipart upload of %s completed in %d parts", key, len(parts))
	return nil
}
