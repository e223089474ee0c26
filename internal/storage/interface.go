package storage

import (
	"context"
	"io"
)

// ObjectStorage defines the interface for object storage operations.
type ObjectStorage interface {
	// Upload uploads an object to storage.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// GetURL returns the durable public URL for accessing an object.
	GetURL(key string) string

	// Delete deletes an object from storage.
	Delete(ctx context.Context, key string) error

	// EnsureBucket creates the bucket if it doesn't exist.
	EnsureBucket(ctx context.Context) error
}
