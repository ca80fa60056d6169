package storage

import (
	"fmt"
	"strings"
)

// Config selects and configures a storage backend.
type Config struct {
	Type     StorageType
	LocalDir string
	S3       S3Config
}

// NewStorage creates an ObjectStorage instance based on the configuration.
func NewStorage(cfg *Config) (ObjectStorage, error) {
	var (
		store ObjectStorage
		err   error
	)
	switch cfg.Type {
	case StorageTypeLocal:
		store, err = NewLocalStorage(cfg.LocalDir, cfg.S3.PublicURL)
	case StorageTypeMinIO:
		store, err = NewMinIOStorage(&MinIOConfig{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			UseSSL:    cfg.S3.UseSSL,
			Bucket:    cfg.S3.Bucket,
			PublicURL: cfg.S3.PublicURL,
		})
	case "", StorageTypeR2, StorageTypeS3, StorageTypeS3Compatible:
		s3cfg := cfg.S3
		s3cfg.Type = cfg.Type
		if s3cfg.Type == "" {
			s3cfg.Type = detectStorageType(s3cfg.Endpoint)
		}
		store, err = NewS3Storage(&s3cfg)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}

// detectStorageType attempts to detect the storage type from the endpoint
func detectStorageType(endpoint string) StorageType {
	endpoint = strings.ToLower(endpoint)

	switch {
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return StorageTypeR2
	case strings.Contains(endpoint, "amazonaws.com"):
		return StorageTypeS3
	default:
		return StorageTypeS3Compatible
	}
}
