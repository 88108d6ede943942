package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"reportd/internal/config"

	"github.com/sirupsen/logrus"
)

const (
	// Storage types
	StorageTypeLocal = "local"
	StorageTypeS3    = "s3"

	// Retry settings
	DefaultMaxRetries = 3
	DefaultRetryDelay = time.Second

	DefaultPresignExpiration = 1 * time.Hour
)

// Storage defines the interface for artifact storage operations
type Storage interface {
	// Save saves a file to storage
	Save(ctx context.Context, key string, reader io.Reader) error

	// Get retrieves a file from storage
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes a file from storage
	Delete(ctx context.Context, key string) error

	// Exists checks whether a file is present
	Exists(ctx context.Context, key string) (bool, error)

	// List returns files under a prefix
	List(ctx context.Context, prefix string) ([]FileInfo, error)

	// GetPresignedURL returns a time-limited download URL for the file
	GetPresignedURL(ctx context.Context, key string, expiration time.Duration) (string, error)

	// JoinPath joins path elements
	JoinPath(elem ...string) string
}

// FileInfo describes a stored file
type FileInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// NewStorageFromConfig builds the configured storage backend wrapped in the
// logging and retry middleware.
func NewStorageFromConfig(cfg config.Config, logger *logrus.Logger) (Storage, error) {
	var (
		store Storage
		err   error
	)

	switch cfg.Storage.Type {
	case StorageTypeS3:
		store, err = NewS3Storage(S3Config{
			Region:            cfg.Storage.S3.Region,
			Bucket:            cfg.Storage.S3.Bucket,
			Endpoint:          cfg.Storage.S3.Endpoint,
			AccessKey:         cfg.Storage.S3.AccessKey,
			SecretKey:         cfg.Storage.S3.SecretKey,
			ForcePathStyle:    true,
			PresignExpiration: DefaultPresignExpiration,
		}, logger)
	case StorageTypeLocal:
		store, err = NewLocalStorage(LocalConfig{
			BasePath:    cfg.Storage.BasePath,
			Permissions: 0755,
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s storage: %w", cfg.Storage.Type, err)
	}

	store = NewLoggingMiddleware(store, logger)
	store = NewRetryMiddleware(store, DefaultMaxRetries, DefaultRetryDelay, logger)
	return store, nil
}

// validateKey rejects keys the backends must never receive.
func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("file key cannot be empty")
	}
	if len(key) > 1024 {
		return fmt.Errorf("file key too long: %d", len(key))
	}
	return nil
}
