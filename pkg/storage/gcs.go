package storage

import (
	"context"
	"errors"
	"fmt"
	"path"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSUploader stores objects in a Google Cloud Storage bucket.
type GCSUploader struct {
	client     *gcs.Client
	bucketName string
	prefix     string
}

// NewGCSUploader creates an uploader for the given bucket. When saKeyPath is
// empty, application default credentials are used.
func NewGCSUploader(ctx context.Context, bucketName, prefix, saKeyPath string) (*GCSUploader, error) {
	var opts []option.ClientOption
	if saKeyPath != "" {
		opts = append(opts, option.WithCredentialsFile(saKeyPath))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}

	return &GCSUploader{
		client:     client,
		bucketName: bucketName,
		prefix:     prefix,
	}, nil
}

func (u *GCSUploader) objectPath(key string) string {
	if u.prefix == "" {
		return key
	}
	return path.Join(u.prefix, key)
}

func (u *GCSUploader) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	objPath := u.objectPath(key)

	obj := u.client.Bucket(u.bucketName).Object(objPath)
	writer := obj.NewWriter(ctx)
	writer.ContentType = contentType
	writer.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return "", fmt.Errorf("failed to write GCS object %s: %w", objPath, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer for %s: %w", objPath, err)
	}

	return fmt.Sprintf("gs://%s/%s", u.bucketName, objPath), nil
}

func (u *GCSUploader) Delete(ctx context.Context, key string) error {
	objPath := u.objectPath(key)

	err := u.client.Bucket(u.bucketName).Object(objPath).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete GCS object %s: %w", objPath, err)
	}
	return nil
}

func (u *GCSUploader) Close() error {
	return u.client.Close()
}
