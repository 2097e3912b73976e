package objectstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/stillpoint/sona/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

type gcsStore struct {
	client *storage.Client
	log    *zap.Logger
	bucket string
}

type GCSParam struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Log       *zap.Logger
}

func NewGCSStore(p GCSParam) (Store, error) {
	bucket := strings.TrimSpace(p.Config.Storage.Bucket)
	if bucket == "" {
		return nil, ErrBucketNotConfigured
	}

	var opts []option.ClientOption
	if creds := strings.TrimSpace(p.Config.Storage.CredentialsFile); creds != "" {
		opts = append(opts, option.WithCredentialsFile(creds))
	}

	client, err := storage.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	return &gcsStore{
		client: client,
		log:    p.Log.Named("objectstore.gcs"),
		bucket: bucket,
	}, nil
}

func (s *gcsStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	writer := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	writer.ContentType = contentType
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("storage write %s: %w", key, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("storage flush %s: %w", key, err)
	}
	s.log.Debug("object stored", zap.String("key", key), zap.Int("bytes", len(data)))
	return nil
}

func (s *gcsStore) SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	// V4 signing caps expiry at seven days; V2 is required for the long-lived
	// playback URLs stored on meditation records.
	url, err := s.client.Bucket(s.bucket).SignedURL(key, &storage.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(expiry),
		Scheme:  storage.SigningSchemeV2,
	})
	if err != nil {
		return "", fmt.Errorf("storage sign %s: %w", key, err)
	}
	return url, nil
}
