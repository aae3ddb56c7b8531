package pkg

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/SAP-F-2025/exam-service/internal/config"
)

// ObjectStorage is an S3-compatible bucket used for generated report files.
type ObjectStorage struct {
	client    *minio.Client
	bucket    string
	urlExpiry time.Duration
}

// NewObjectStorage connects to MinIO and makes sure the report bucket exists.
func NewObjectStorage(ctx context.Context, cfg config.StorageConfig) (*ObjectStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &ObjectStorage{client: client, bucket: cfg.Bucket, urlExpiry: cfg.URLExpiry}, nil
}

// Upload stores the object and returns a presigned download URL.
func (s *ObjectStorage) Upload(ctx context.Context, objectName, contentType string, body io.Reader, size int64) (string, error) {
	if _, err := s.client.PutObject(ctx, s.bucket, objectName, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", objectName, err)
	}

	reqParams := make(url.Values)
	reqParams.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", objectName))
	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, s.urlExpiry, reqParams)
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", objectName, err)
	}
	return presigned.String(), nil
}
