package storage

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrNotFound is returned by Download for unknown keys.
	ErrNotFound = errors.New("object not found")
	// ErrExists is returned by Upload when the key is already taken.
	ErrExists = errors.New("object already exists")
	// ErrInvalidKey is returned for keys that would escape the store.
	ErrInvalidKey = errors.New("invalid object key")
)

// ObjectStorage is the write-once store for generated memes. Objects are
// never overwritten or deleted through it; retention is managed outside
// the service. Every backend refuses to replace an existing key: the local
// store opens files exclusively, the S3 and MinIO stores send a conditional
// PUT (If-None-Match: *) and report ErrExists when the server rejects it.
type ObjectStorage interface {
	// EnsureBucket prepares the bucket or directory objects are written to
	EnsureBucket(ctx context.Context) error

	// Upload writes a new object; ErrExists if the key is taken
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Download opens an object for reading
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// GetURL returns the URL for accessing an object
	GetURL(key string) string

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)
}
