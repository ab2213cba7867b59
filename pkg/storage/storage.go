package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when no blob exists under the key.
var ErrNotFound = errors.New("storage: blob not found")

// BlobStore persists opaque named blobs on the device.
type BlobStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, blob []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
