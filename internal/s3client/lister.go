package s3client

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"s3sync/internal/models"
	"s3sync/internal/pathspec"
)

// MaxPageSize is the largest page ListObjectsV2 returns.
const MaxPageSize = 1000

// Lister enumerates the objects under a container and prefix.
type Lister struct {
	client   s3.ListObjectsV2APIClient
	pageSize int32
}

// NewLister creates a Lister fetching MaxPageSize keys per page.
func NewLister(client s3.ListObjectsV2APIClient) *Lister {
	return &Lister{
		client:   client,
		pageSize: MaxPageSize,
	}
}

// WithPageSize overrides the page size. Values outside 1..MaxPageSize are ignored.
func (l *Lister) WithPageSize(size int32) *Lister {
	if size > 0 && size <= MaxPageSize {
		l.pageSize = size
	}
	return l
}

// Objects yields the objects under spec one page at a time, in store order.
// Iteration stops after the first error, which is yielded with a zero object.
func (l *Lister) Objects(ctx context.Context, spec pathspec.PathSpec) iter.Seq2[models.RemoteObject, error] {
	return func(yield func(models.RemoteObject, error) bool) {
		input := &s3.ListObjectsV2Input{
			Bucket:  aws.String(spec.Container),
			MaxKeys: aws.Int32(l.pageSize),
		}
		if prefix := spec.ListPrefix(); prefix != "" {
			input.Prefix = aws.String(prefix)
		}

		paginator := s3.NewListObjectsV2Paginator(l.client, input)
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				yield(models.RemoteObject{}, describeListError(spec, err))
				return
			}

			for _, obj := range page.Contents {
				remote := models.RemoteObject{
					Key:          aws.ToString(obj.Key),
					Size:         aws.ToInt64(obj.Size),
					ETag:         aws.ToString(obj.ETag),
					LastModified: aws.ToTime(obj.LastModified),
				}
				if !yield(remote, nil) {
					return
				}
			}
		}
	}
}

// Listing is the accumulated result of one listing pass.
type Listing struct {
	Objects      []models.RemoteObject
	TotalObjects int
	TotalBytes   int64
	LastModified time.Time
}

// Collect drains Objects so the run totals are known before any transfer starts.
func (l *Lister) Collect(ctx context.Context, spec pathspec.PathSpec) (*Listing, error) {
	listing := &Listing{}
	for obj, err := range l.Objects(ctx, spec) {
		if err != nil {
			return nil, err
		}
		listing.Objects = append(listing.Objects, obj)
		listing.TotalObjects++
		listing.TotalBytes += obj.Size
		if obj.LastModified.After(listing.LastModified) {
			listing.LastModified = obj.LastModified
		}
	}
	return listing, nil
}

func describeListError(spec pathspec.PathSpec, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return fmt.Errorf("failed to list objects in %s: access denied (%s): %w", spec, apiErr.ErrorCode(), err)
		case "NoSuchBucket":
			return fmt.Errorf("failed to list objects in %s: bucket does not exist: %w", spec, err)
		}
	}
	return fmt.Errorf("failed to list objects in %s: %w", spec, err)
}
