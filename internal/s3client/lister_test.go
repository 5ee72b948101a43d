package s3client

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"s3sync/internal/pathspec"
	"s3sync/internal/testutil"
)

func TestLister_Collect(t *testing.T) {
	bucket := testutil.NewBucket()
	bucket.PageSize = 2
	bucket.Put("docs/a.txt", "aaaa").
		Put("docs/b.txt", "bb").
		Put("docs/sub/c.txt", "c").
		Put("docs-old/d.txt", "dddddd").
		Put("root.txt", "rrr")

	tests := []struct {
		name      string
		spec      pathspec.PathSpec
		wantKeys  []string
		wantBytes int64
	}{
		{
			name:      "whole container",
			spec:      pathspec.PathSpec{Container: "b"},
			wantKeys:  []string{"docs/a.txt", "docs/b.txt", "docs/sub/c.txt", "docs-old/d.txt", "root.txt"},
			wantBytes: 16,
		},
		{
			name:      "prefix is treated as a directory",
			spec:      pathspec.PathSpec{Container: "b", Prefix: "docs"},
			wantKeys:  []string{"docs/a.txt", "docs/b.txt", "docs/sub/c.txt"},
			wantBytes: 7,
		},
		{
			name:     "no match",
			spec:     pathspec.PathSpec{Container: "b", Prefix: "missing"},
			wantKeys: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			listing, err := NewLister(bucket.Client()).Collect(context.Background(), tt.spec)
			require.NoError(t, err)

			var keys []string
			for _, obj := range listing.Objects {
				keys = append(keys, obj.Key)
			}
			assert.Equal(t, tt.wantKeys, keys)
			assert.Equal(t, len(tt.wantKeys), listing.TotalObjects)
			assert.Equal(t, tt.wantBytes, listing.TotalBytes)
		})
	}
}

func TestLister_ObjectsIsLazy(t *testing.T) {
	bucket := testutil.NewBucket()
	for i := range 10 {
		bucket.Put(fmt.Sprintf("k%02d", i), "x")
	}

	calls := 0
	client := bucket.Client()
	list := client.ListObjectsV2Func
	client.ListObjectsV2Func = func(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
		calls++
		assert.Equal(t, int32(3), aws.ToInt32(in.MaxKeys))
		return list(ctx, in, opts...)
	}

	lister := NewLister(client).WithPageSize(3)
	seen := 0
	for _, err := range lister.Objects(context.Background(), pathspec.PathSpec{Container: "b"}) {
		require.NoError(t, err)
		seen++
		if seen == 4 {
			break
		}
	}

	assert.Equal(t, 4, seen)
	assert.Equal(t, 2, calls, "only the pages needed so far should be fetched")
}

func TestLister_PageError(t *testing.T) {
	bucket := testutil.NewBucket()
	bucket.PageSize = 1
	bucket.Put("a", "1").Put("b", "2")

	client := bucket.Client()
	list := client.ListObjectsV2Func
	client.ListObjectsV2Func = func(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
		if in.ContinuationToken != nil {
			return nil, errors.New("connection reset")
		}
		return list(ctx, in, opts...)
	}

	_, err := NewLister(client).Collect(context.Background(), pathspec.PathSpec{Container: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Contains(t, err.Error(), "s3://b")
}

func TestLister_APIErrors(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"AccessDenied", "access denied"},
		{"InvalidAccessKeyId", "access denied"},
		{"NoSuchBucket", "bucket does not exist"},
		{"SlowDown", "failed to list objects"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			apiErr := &smithy.GenericAPIError{Code: tt.code, Message: "nope"}
			client := &testutil.MockS3Client{
				ListObjectsV2Func: func(context.Context, *s3.ListObjectsV2Input, ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
					return nil, apiErr
				},
			}

			_, err := NewLister(client).Collect(context.Background(), pathspec.PathSpec{Container: "b"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)

			var got smithy.APIError
			require.ErrorAs(t, err, &got)
			assert.Equal(t, tt.code, got.ErrorCode())
		})
	}
}

func TestListingInfo(t *testing.T) {
	bucket := testutil.NewBucket()
	bucket.Put("logs/1", "12345").Put("logs/2", string(make([]byte, 2048)))

	info, err := ListingInfo(context.Background(), NewLister(bucket.Client()),
		pathspec.PathSpec{Container: "my-bucket", Prefix: "logs"}, "http://localhost:9000")
	require.NoError(t, err)

	assert.Equal(t, "my-bucket", info.BucketName)
	assert.Equal(t, "logs", info.Prefix)
	assert.Equal(t, 2, info.ObjectCount)
	assert.Equal(t, int64(2053), info.TotalSizeBytes)
	assert.Equal(t, "2.0 KB", info.TotalSizeHuman)
	assert.Equal(t, "http://localhost:9000", info.APIEndpoint)
}
