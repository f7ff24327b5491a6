// Package storage resolves object-store bundle URLs into plain HTTP URLs.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// SchemeS3 marks bundle URLs that must be presigned before download.
const SchemeS3 = "s3"

// Provider signs temporary download links for objects.
type Provider interface {
	GeneratePresignedURL(ctx context.Context, bucket, objectKey string, expiry time.Duration) (string, error)
}

// Resolver turns s3://bucket/key URLs into presigned HTTP URLs and passes
// every other URL through, unparseable ones included.
type Resolver struct {
	provider Provider
	expiry   time.Duration
}

func NewResolver(provider Provider, expiry time.Duration) *Resolver {
	return &Resolver{provider: provider, expiry: expiry}
}

func (r *Resolver) Resolve(ctx context.Context, rawURL string) (string, error) {
	bucket, key, ok, err := ParseS3URL(rawURL)
	if !ok {
		return rawURL, nil
	}
	if err != nil {
		return "", err
	}
	if r.provider == nil {
		return "", fmt.Errorf("cannot resolve %s: object storage is not configured", rawURL)
	}
	return r.provider.GeneratePresignedURL(ctx, bucket, key, r.expiry)
}

// ParseS3URL splits s3://bucket/key. ok is false for other schemes.
func ParseS3URL(rawURL string) (bucket, key string, ok bool, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", false, fmt.Errorf("invalid bundle url: %w", err)
	}
	if u.Scheme != SchemeS3 {
		return "", "", false, nil
	}

	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", true, fmt.Errorf("invalid bundle url %q: expected s3://bucket/key", rawURL)
	}
	return bucket, key, true, nil
}
