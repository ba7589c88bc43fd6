package integration

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

type StorageClient interface {
	// ObjectKey maps a public attachment URL to an object key in the bucket.
	// It reports false for URLs that do not point into the bucket.
	ObjectKey(rawURL string) (string, bool)
	DeleteObject(ctx context.Context, key string) error
}

type minioStorageClient struct {
	client        *minio.Client
	bucket        string
	publicBaseURL string
	logger        zerolog.Logger
}

func NewMinIOStorageClient(endpoint, accessKey, secretKey, bucket, publicBaseURL string, useSSL bool, logger zerolog.Logger) (StorageClient, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	logger.Info().
		Str("endpoint", endpoint).
		Str("bucket", bucket).
		Bool("ssl", useSSL).
		Msg("MinIO client configured")

	return &minioStorageClient{
		client:        client,
		bucket:        bucket,
		publicBaseURL: publicBaseURL,
		logger:        logger,
	}, nil
}

func (c *minioStorageClient) ObjectKey(rawURL string) (string, bool) {
	return ObjectKeyFromURL(c.publicBaseURL, c.bucket, rawURL)
}

// DeleteObject treats a missing object as already deleted.
func (c *minioStorageClient) DeleteObject(ctx context.Context, key string) error {
	err := c.client.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			c.logger.Debug().Str("key", key).Msg("Object already gone")
			return nil
		}
		return fmt.Errorf("failed to remove object %s: %w", key, err)
	}

	c.logger.Info().Str("bucket", c.bucket).Str("key", key).Msg("Object removed")
	return nil
}

// ObjectKeyFromURL accepts either a URL under publicBaseURL or a path-style
// URL of the form scheme://host/<bucket>/<key>.
func ObjectKeyFromURL(publicBaseURL, bucket, rawURL string) (string, bool) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", false
	}

	if base := strings.TrimRight(publicBaseURL, "/"); base != "" && strings.HasPrefix(rawURL, base+"/") {
		return cleanKey(strings.TrimPrefix(rawURL, base+"/"))
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", false
	}

	prefix := "/" + bucket + "/"
	if !strings.HasPrefix(u.Path, prefix) {
		return "", false
	}
	return cleanKey(strings.TrimPrefix(u.Path, prefix))
}

func cleanKey(key string) (string, bool) {
	if i := strings.IndexAny(key, "?#"); i >= 0 {
		key = key[:i]
	}
	if unescaped, err := url.PathUnescape(key); err == nil {
		key = unescaped
	}
	key = strings.TrimLeft(key, "/")
	if key == "" || strings.Contains(key, "..") {
		return "", false
	}
	return key, true
}
