package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"labourlaw-rag/internal/config"
)

// ErrNotFound is returned by Download when no object exists at the key.
var ErrNotFound = errors.New("object not found")

// Storage interface for object storage operations
type Storage interface {
	// Upload stores data at key, replacing any existing object
	Upload(ctx context.Context, key string, data io.Reader) error

	// Download retrieves the object at key
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object at key; a missing object is not an error
	Delete(ctx context.Context, key string) error
}

// StorageType represents the storage backend type
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeS3    StorageType = "s3"
)

// NewStorage creates a new storage instance based on configuration
func NewStorage(ctx context.Context, cfg *config.BlobConfig) (Storage, error) {
	switch StorageType(cfg.Type) {
	case StorageTypeLocal:
		return NewLocalStorage(cfg.LocalPath)
	case StorageTypeS3:
		return NewS3Storage(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// cleanKey normalises a slash-separated key and rejects keys that escape
// the storage root.
func cleanKey(key string) (string, error) {
	if key == "" {
		return "", errors.New("empty storage key")
	}
	cleaned := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	if cleaned == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid storage key: %q", key)
	}
	return strings.TrimPrefix(cleaned, "/"), nil
}
