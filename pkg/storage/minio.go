package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"anoa.com/forumboard/pkg/apperror"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStorage stores attachments in a MinIO/S3 compatible bucket. Objects
// are addressed by publicBaseURL/bucket/key, so the bucket must be readable.
type MinioStorage struct {
	client        *minio.Client
	bucket        string
	folder        string
	publicBaseURL string
}

// NewMinioStorage connects to MinIO and ensures the bucket exists.
func NewMinioStorage(endpoint, accessKey, secretKey, bucket, folder, publicBaseURL string, useSSL bool) (*MinioStorage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	if publicBaseURL == "" {
		scheme := "http"
		if useSSL {
			scheme = "https"
		}
		publicBaseURL = scheme + "://" + endpoint
	}

	return &MinioStorage{
		client:        client,
		bucket:        bucket,
		folder:        folder,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

func (m *MinioStorage) Store(ctx context.Context, r io.Reader, size int64, fileName, mimeType string) (File, error) {
	key := objectName(m.folder, fileName)
	if size <= 0 {
		size = -1
	}

	_, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{ContentType: mimeType})
	if err != nil {
		return File{}, fmt.Errorf("put object: %v: %w", err, apperror.ErrUploadFailed)
	}

	return File{URL: m.objectURL(key), MimeType: mimeType}, nil
}

func (m *MinioStorage) Delete(ctx context.Context, fileURL string) error {
	key := m.keyFromURL(fileURL)
	if key == "" {
		return fmt.Errorf("url %s is not in bucket %s", fileURL, m.bucket)
	}
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (m *MinioStorage) objectURL(key string) string {
	return m.publicBaseURL + "/" + m.bucket + "/" + key
}

func (m *MinioStorage) keyFromURL(fileURL string) string {
	u, err := url.Parse(fileURL)
	if err != nil {
		return ""
	}
	prefix := "/" + m.bucket + "/"
	if !strings.HasPrefix(u.Path, prefix) {
		return ""
	}
	return strings.TrimPrefix(u.Path, prefix)
}
