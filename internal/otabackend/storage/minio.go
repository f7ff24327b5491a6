package storage

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/autopeer-io/ota-backend/pkg/options"
)

type minioProvider struct {
	client *minio.Client
}

// NewMinIOProvider creates a Provider for any S3 compatible endpoint.
func NewMinIOProvider(opts *options.S3Options) (Provider, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure: opts.UseSSL,
		// A fixed region lets presigning work without a bucket location lookup.
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &minioProvider{client: client}, nil
}

func (p *minioProvider) GeneratePresignedURL(ctx context.Context, bucket, objectKey string, expiry time.Duration) (string, error) {
	presignedURL, err := p.client.PresignedGetObject(ctx, bucket, objectKey, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned url: %w", err)
	}

	return presignedURL.String(), nil
}
