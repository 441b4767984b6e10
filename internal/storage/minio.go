package storage

import (
	"context"
	"fmt"
	"path"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/spec-kit/issue-service/internal/config"
)

// MinioStore stores issue images in a MinIO/S3 bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore connects to the configured object store. Returns nil when no
// endpoint is configured so callers can run without image support.
func NewMinioStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*MinioStore, error) {
	if cfg.Endpoint == "" {
		logger.Warn("STORAGE_ENDPOINT not provided; image uploads disabled")
		return nil, nil
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object store: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	logger.Info("connected to object store", zap.String("bucket", cfg.Bucket))
	return &MinioStore{client: client, bucket: cfg.Bucket}, nil
}

// Put uploads a blob and returns its stable object reference.
func (s *MinioStore) Put(ctx context.Context, upload ImageUpload) (string, error) {
	objectName := uuid.NewString() + path.Ext(upload.Name)
	_, err := s.client.PutObject(ctx, s.bucket, objectName, upload.Reader, upload.Size, minio.PutObjectOptions{
		ContentType: upload.ContentType,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s", s.bucket, objectName), nil
}
