package objectstore

import (
	"context"
	"errors"
	"time"
)

// Store persists finished audio and hands out long-lived read URLs.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

var ErrBucketNotConfigured = errors.New("storage_bucket_not_configured")
