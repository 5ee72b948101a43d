// Package testutil provides S3 test doubles shared by the sync packages.
package testutil

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// MockS3Client mocks the S3 calls used for listing and fetching objects.
// Each operation can be overridden through its function field.
type MockS3Client struct {
	ListObjectsV2Func func(context.Context, *s3.ListObjectsV2Input, ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObjectFunc     func(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObjectFunc    func(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// ListObjectsV2 mocks the S3 ListObjectsV2 operation.
func (m *MockS3Client) ListObjectsV2(
	ctx context.Context,
	params *s3.ListObjectsV2Input,
	optFns ...func(*s3.Options),
) (*s3.ListObjectsV2Output, error) {
	if m.ListObjectsV2Func != nil {
		return m.ListObjectsV2Func(ctx, params, optFns...)
	}
	return &s3.ListObjectsV2Output{}, nil
}

// GetObject mocks the S3 GetObject operation.
func (m *MockS3Client) GetObject(
	ctx context.Context,
	params *s3.GetObjectInput,
	optFns ...func(*s3.Options),
) (*s3.GetObjectOutput, error) {
	if m.GetObjectFunc != nil {
		return m.GetObjectFunc(ctx, params, optFns...)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(""))}, nil
}

// HeadObject mocks the S3 HeadObject operation.
func (m *MockS3Client) HeadObject(
	ctx context.Context,
	params *s3.HeadObjectInput,
	optFns ...func(*s3.Options),
) (*s3.HeadObjectOutput, error) {
	if m.HeadObjectFunc != nil {
		return m.HeadObjectFunc(ctx, params, optFns...)
	}
	return &s3.HeadObjectOutput{}, nil
}

// Bucket is an in-memory bucket served through a MockS3Client.
// Listing returns keys in insertion order, PageSize keys per page.
type Bucket struct {
	PageSize int

	mu      sync.Mutex
	keys    []string
	objects map[string][]byte
	failGet map[string]error
	gets    map[string]int
	heads   map[string]int
}

// NewBucket returns an empty bucket with a page size of 1000.
func NewBucket() *Bucket {
	return &Bucket{
		PageSize: 1000,
		objects:  make(map[string][]byte),
		failGet:  make(map[string]error),
		gets:     make(map[string]int),
		heads:    make(map[string]int),
	}
}

// Put adds or replaces an object.
func (b *Bucket) Put(key, content string) *Bucket {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.objects[key]; !ok {
		b.keys = append(b.keys, key)
	}
	b.objects[key] = []byte(content)
	return b
}

// Delete removes an object, as if it vanished after being listed.
func (b *Bucket) Delete(key string) *Bucket {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	for i, k := range b.keys {
		if k == key {
			b.keys = append(b.keys[:i], b.keys[i+1:]...)
			break
		}
	}
	return b
}

// FailGet makes every GetObject call for key return err.
func (b *Bucket) FailGet(key string, err error) *Bucket {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failGet[key] = err
	return b
}

// Gets returns how many GetObject calls were made for key.
func (b *Bucket) Gets(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gets[key]
}

// Heads returns how many HeadObject calls were made for key.
func (b *Bucket) Heads(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.heads[key]
}

// Client returns a mock client backed by the bucket.
func (b *Bucket) Client() *MockS3Client {
	return &MockS3Client{
		ListObjectsV2Func: b.list,
		GetObjectFunc:     b.get,
		HeadObjectFunc:    b.head,
	}
}

func (b *Bucket) list(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	prefix := aws.ToString(in.Prefix)
	var matched []string
	for _, key := range b.keys {
		if strings.HasPrefix(key, prefix) {
			matched = append(matched, key)
		}
	}

	start := 0
	if token := aws.ToString(in.ContinuationToken); token != "" {
		if _, err := fmt.Sscanf(token, "%d", &start); err != nil {
			return nil, fmt.Errorf("bad continuation token %q", token)
		}
	}
	end := min(start+b.PageSize, len(matched))

	out := &s3.ListObjectsV2Output{
		KeyCount:    aws.Int32(int32(end - start)),
		IsTruncated: aws.Bool(end < len(matched)),
	}
	for _, key := range matched[start:end] {
		out.Contents = append(out.Contents, types.Object{
			Key:  aws.String(key),
			Size: aws.Int64(int64(len(b.objects[key]))),
			ETag: aws.String(fmt.Sprintf("%q", key)),
		})
	}
	if end < len(matched) {
		out.NextContinuationToken = aws.String(fmt.Sprintf("%d", end))
	}
	return out, nil
}

func (b *Bucket) get(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := aws.ToString(in.Key)
	b.gets[key]++
	if err, ok := b.failGet[key]; ok {
		return nil, err
	}
	content, ok := b.objects[key]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	}

	body, contentRange := rangeOf(content, aws.ToString(in.Range))
	out := &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(string(body))),
		ContentLength: aws.Int64(int64(len(body))),
		ETag:          aws.String(fmt.Sprintf("%q", key)),
	}
	if contentRange != "" {
		out.ContentRange = aws.String(contentRange)
	}
	return out, nil
}

func (b *Bucket) head(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := aws.ToString(in.Key)
	b.heads[key]++
	content, ok := b.objects[key]
	if !ok {
		return nil, &types.NotFound{Message: aws.String("Not Found")}
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(content))),
		ETag:          aws.String(fmt.Sprintf("%q", key)),
	}, nil
}

// rangeOf serves "bytes=start-end" requests the way S3 does.
func rangeOf(content []byte, spec string) ([]byte, string) {
	if spec == "" {
		return content, ""
	}
	if len(content) == 0 {
		return nil, "bytes */0"
	}
	var start, end int64
	if _, err := fmt.Sscanf(spec, "bytes=%d-%d", &start, &end); err != nil {
		return content, ""
	}
	size := int64(len(content))
	if end >= size {
		end = size - 1
	}
	if start > end {
		return nil, fmt.Sprintf("bytes */%d", size)
	}
	return content[start : end+1], fmt.Sprintf("bytes %d-%d/%d", start, end, size)
}
