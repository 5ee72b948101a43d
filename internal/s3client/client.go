package s3client

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appConfig "s3sync/config"
	"s3sync/internal/models"
	"s3sync/internal/pathspec"
	"s3sync/pkg/utils"
)

type Client struct {
	s3Client *s3.Client
	config   *appConfig.Config
}

func New(cfg *appConfig.Config) (*Client, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.HasStaticCredentials() {
		opts = append(opts, config.WithCredentialsProvider(credentials.StaticCredentialsProvider{
			Value: aws.Credentials{
				AccessKeyID:     cfg.AccessKey,
				SecretAccessKey: cfg.SecretKey,
			},
		}))
	}

	awsConfig, err := config.LoadDefaultConfig(context.TODO(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Client *s3.Client
	if cfg.ApiURL != "" {
		s3Client = s3.NewFromConfig(awsConfig, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.ApiURL)
			o.UsePathStyle = true
		})
	} else {
		s3Client = s3.NewFromConfig(awsConfig)
	}

	return &Client{
		s3Client: s3Client,
		config:   cfg,
	}, nil
}

// API exposes the SDK client for listing and ranged downloads.
func (c *Client) API() *s3.Client {
	return c.s3Client
}

// Lister returns a lister over this client.
func (c *Client) Lister() *Lister {
	return NewLister(c.s3Client)
}

// GetListingInfo counts the objects and bytes under spec without downloading anything.
func (c *Client) GetListingInfo(ctx context.Context, spec pathspec.PathSpec) (*models.ListingInfo, error) {
	return ListingInfo(ctx, c.Lister(), spec, c.config.ApiURL)
}

// ListingInfo summarises a full listing pass.
func ListingInfo(ctx context.Context, lister *Lister, spec pathspec.PathSpec, endpoint string) (*models.ListingInfo, error) {
	listing, err := lister.Collect(ctx, spec)
	if err != nil {
		return nil, err
	}

	return &models.ListingInfo{
		BucketName:     spec.Container,
		Prefix:         spec.Prefix,
		ObjectCount:    listing.TotalObjects,
		TotalSizeBytes: listing.TotalBytes,
		TotalSizeHuman: utils.FormatBytes(listing.TotalBytes),
		LastModified:   listing.LastModified,
		APIEndpoint:    endpoint,
	}, nil
}
