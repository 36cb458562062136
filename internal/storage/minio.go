package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/onemove/marketplace/internal/config"
)

// Uploader is the image-storage collaborator: bytes in, public URL out.
type Uploader interface {
	Upload(ctx context.Context, filename, contentType string, reader io.Reader, size int64) (string, error)
}

type MinioUploader struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

func NewMinioUploader(ctx context.Context, cfg config.Config) (*MinioUploader, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})

	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	u := &MinioUploader{
		client:  client,
		bucket:  cfg.MinioBucket,
		baseURL: strings.TrimRight(cfg.ImageBaseURL, "/"),
	}

	err = u.ensureBucketExists(ctx)

	if err != nil {
		return nil, err
	}

	return u, nil
}

func (u *MinioUploader) ensureBucketExists(ctx context.Context) error {
	exists, err := u.client.BucketExists(ctx, u.bucket)

	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}

	if !exists {
		err = u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{})

		if err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
	}

	return nil
}

// Upload stores the object under a random key (original extension kept)
// and returns its public URL.
func (u *MinioUploader) Upload(ctx context.Context, filename, contentType string, reader io.Reader, size int64) (string, error) {
	key := uuid.NewString() + path.Ext(filename)

	_, err := u.client.PutObject(ctx, u.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})

	if err != nil {
		return "", fmt.Errorf("upload object: %w", err)
	}

	return u.baseURL + "/" + key, nil
}
