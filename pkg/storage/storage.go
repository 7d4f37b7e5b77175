package storage

import (
	"context"
	"errors"
)

// Uploader stores binary blobs and returns a stable reference for each. The
// import pipeline uses it for post-commit photo enrichment.
type Uploader interface {
	// Upload writes data under key and returns the reference to persist.
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// Delete removes the object at key. Missing objects are not an error.
	Delete(ctx context.Context, key string) error
}

// Disabled is the Uploader used when no storage backend is configured. Every
// upload fails, which the enrichment pass logs and counts without affecting
// import results.
type Disabled struct{}

func (Disabled) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	return "", errors.New("photo storage is not configured")
}

func (Disabled) Delete(ctx context.Context, key string) error {
	return nil
}
