package s3

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3 is an in-memory stand-in for a single S3 bucket. It implements
// the calls the adapter makes, with S3's answers for missing keys.
type fakeS3 struct {
	mu       sync.Mutex
	bucket   string
	pageSize int32
	objects  map[string]*fakeObject
	uploads  map[string]*fakeUpload
	nextID   int

	multipartCompleted int
}

type fakeObject struct {
	data        []byte
	contentType string
	acl         types.ObjectCannedACL
	etag        string
	modified    time.Time
}

type fakeUpload struct {
	parts       map[int32][]byte
	contentType string
	acl         types.ObjectCannedACL
}

func newFakeS3(bucket string) *fakeS3 {
	return &fakeS3{
		bucket:   bucket,
		pageSize: 1000,
		objects:  make(map[string]*fakeObject),
		uploads:  make(map[string]*fakeUpload),
	}
}

var _ API = (*fakeS3)(nil)

func (f *fakeS3) checkBucket(bucket *string) error {
	if aws.ToString(bucket) != f.bucket {
		return &types.NoSuchBucket{Message: aws.String("no such bucket")}
	}
	return nil
}

func (f *fakeS3) object(bucket, key *string) (*fakeObject, error) {
	if err := f.checkBucket(bucket); err != nil {
		return nil, err
	}
	obj, ok := f.objects[aws.ToString(key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("no such key")}
	}
	return obj, nil
}

func md5ETag(data []byte) string {
	sum := md5.Sum(data)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

func (f *fakeS3) HeadBucket(_ context.Context, params *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if aws.ToString(params.Bucket) != f.bucket {
		return nil, &types.NotFound{}
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	obj, err := f.object(params.Bucket, params.Key)
	if err != nil {
		return nil, &types.NotFound{}
	}

	ct := obj.contentType
	if ct == "" {
		ct = "binary/octet-stream"
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(obj.data))),
		ContentType:   aws.String(ct),
		ETag:          aws.String(obj.etag),
		LastModified:  aws.Time(obj.modified),
	}, nil
}

func (f *fakeS3) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	obj, err := f.object(params.Bucket, params.Key)
	if err != nil {
		return nil, err
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(bytes.Clone(obj.data))),
		ContentLength: aws.Int64(int64(len(obj.data))),
	}, nil
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if err := f.checkBucket(params.Bucket); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	obj := &fakeObject{
		data:        data,
		contentType: aws.ToString(params.ContentType),
		acl:         params.ACL,
		etag:        md5ETag(data),
		modified:    time.Now(),
	}
	f.objects[aws.ToString(params.Key)] = obj
	return &s3.PutObjectOutput{ETag: aws.String(obj.etag)}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if err := f.checkBucket(params.Bucket); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.objects, aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) DeleteObjects(_ context.Context, params *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	if err := f.checkBucket(params.Bucket); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, id := range params.Delete.Objects {
		delete(f.objects, aws.ToString(id.Key))
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func (f *fakeS3) CopyObject(_ context.Context, params *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	if err := f.checkBucket(params.Bucket); err != nil {
		return nil, err
	}

	source, err := url.PathUnescape(aws.ToString(params.CopySource))
	if err != nil {
		return nil, err
	}
	bucket, key, _ := strings.Cut(source, "/")

	f.mu.Lock()
	defer f.mu.Unlock()

	obj, err := f.object(aws.String(bucket), aws.String(key))
	if err != nil {
		return nil, err
	}

	copied := *obj
	copied.data = bytes.Clone(obj.data)
	copied.acl = params.ACL
	copied.modified = time.Now()
	f.objects[aws.ToString(params.Key)] = &copied
	return &s3.CopyObjectOutput{}, nil
}

func (f *fakeS3) GetObjectAcl(_ context.Context, params *s3.GetObjectAclInput, _ ...func(*s3.Options)) (*s3.GetObjectAclOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	obj, err := f.object(params.Bucket, params.Key)
	if err != nil {
		return nil, err
	}

	grants := []types.Grant{{
		Grantee:    &types.Grantee{Type: types.TypeCanonicalUser, ID: aws.String("owner")},
		Permission: types.PermissionFullControl,
	}}
	if obj.acl == types.ObjectCannedACLPublicRead {
		grants = append(grants, types.Grant{
			Grantee:    &types.Grantee{Type: types.TypeGroup, URI: aws.String(allUsersURI)},
			Permission: types.PermissionRead,
		})
	}
	return &s3.GetObjectAclOutput{Grants: grants}, nil
}

func (f *fakeS3) PutObjectAcl(_ context.Context, params *s3.PutObjectAclInput, _ ...func(*s3.Options)) (*s3.PutObjectAclOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	obj, err := f.object(params.Bucket, params.Key)
	if err != nil {
		return nil, err
	}
	obj.acl = params.ACL
	return &s3.PutObjectAclOutput{}, nil
}

// ListObjectsV2 pages through the sorted keys. The continuation token is
// the last key (or common prefix) of the previous page.
func (f *fakeS3) ListObjectsV2(_ context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if err := f.checkBucket(params.Bucket); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := aws.ToString(params.Prefix)
	delimiter := aws.ToString(params.Delimiter)

	keys := make([]string, 0, len(f.objects))
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)

	type entry struct {
		key      string
		isPrefix bool
	}
	var entries []entry
	for _, key := range keys {
		rest := key[len(prefix):]
		if delimiter != "" {
			if idx := strings.Index(rest, delimiter); idx >= 0 {
				common := prefix + rest[:idx+len(delimiter)]
				if len(entries) == 0 || entries[len(entries)-1].key != common {
					entries = append(entries, entry{key: common, isPrefix: true})
				}
				continue
			}
		}
		entries = append(entries, entry{key: key})
	}

	if token := aws.ToString(params.ContinuationToken); token != "" {
		start := len(entries)
		for i, e := range entries {
			if e.key > token {
				start = i
				break
			}
		}
		entries = entries[start:]
	}

	limit := f.pageSize
	if params.MaxKeys != nil && *params.MaxKeys < limit {
		limit = *params.MaxKeys
	}

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	if int32(len(entries)) > limit {
		entries = entries[:limit]
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(entries[len(entries)-1].key)
	}

	for _, e := range entries {
		if e.isPrefix {
			out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(e.key)})
			continue
		}
		obj := f.objects[e.key]
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(e.key),
			Size:         aws.Int64(int64(len(obj.data))),
			ETag:         aws.String(obj.etag),
			LastModified: aws.Time(obj.modified),
		})
	}
	out.KeyCount = aws.Int32(int32(len(out.Contents) + len(out.CommonPrefixes)))
	return out, nil
}

func (f *fakeS3) CreateMultipartUpload(_ context.Context, params *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	if err := f.checkBucket(params.Bucket); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	id := fmt.Sprintf("upload-%d", f.nextID)
	f.uploads[id] = &fakeUpload{
		parts:       make(map[int32][]byte),
		contentType: aws.ToString(params.ContentType),
		acl:         params.ACL,
	}
	return &s3.CreateMultipartUploadOutput{UploadId: aws.String(id)}, nil
}

func (f *fakeS3) UploadPart(_ context.Context, params *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	upload, ok := f.uploads[aws.ToString(params.UploadId)]
	if !ok {
		return nil, &types.NoSuchUpload{}
	}
	upload.parts[aws.ToInt32(params.PartNumber)] = data
	return &s3.UploadPartOutput{ETag: aws.String(md5ETag(data))}, nil
}

func (f *fakeS3) CompleteMultipartUpload(_ context.Context, params *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := aws.ToString(params.UploadId)
	upload, ok := f.uploads[id]
	if !ok {
		return nil, &types.NoSuchUpload{}
	}

	var data []byte
	for _, part := range params.MultipartUpload.Parts {
		data = append(data, upload.parts[aws.ToInt32(part.PartNumber)]...)
	}
	delete(f.uploads, id)
	f.multipartCompleted++

	f.objects[aws.ToString(params.Key)] = &fakeObject{
		data:        data,
		contentType: upload.contentType,
		acl:         upload.acl,
		etag:        fmt.Sprintf(`"%x-%d"`, md5.Sum(data), len(params.MultipartUpload.Parts)),
		modified:    time.Now(),
	}
	return &s3.CompleteMultipartUploadOutput{}, nil
}

func (f *fakeS3) AbortMultipartUpload(_ context.Context, params *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.uploads, aws.ToString(params.UploadId))
	return &s3.AbortMultipartUploadOutput{}, nil
}
