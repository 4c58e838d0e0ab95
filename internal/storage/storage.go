// Package storage persists rendered report artifacts and issues the
// download descriptors jobs carry once completed.
package storage

import (
	"context"
	"fmt"
	"io"

	api "github.com/AttuneLearning/cadencelms-report-engine/api/v1alpha1"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/config"
)

// Provider is an artifact storage backend.
type Provider interface {
	// Put persists the artifact under key and returns its descriptor.
	Put(ctx context.Context, key string, data []byte, contentType string) (api.StorageDescriptor, error)
	// Open returns a reader over a previously stored artifact.
	Open(ctx context.Context, descriptor api.StorageDescriptor) (io.ReadCloser, error)
	Kind() string
}

// NewProvider builds the backend selected by configuration.
func NewProvider(cfg *config.Config) (Provider, error) {
	switch cfg.Storage.Backend {
	case "minio":
		return NewMinioProvider(
			WithEndpoint(cfg.Storage.Endpoint),
			WithBucket(cfg.Storage.Bucket),
			WithAccessKey(cfg.Storage.AccessKey),
			WithSecretKey(cfg.Storage.SecretKey),
			WithSSL(cfg.Storage.UseSSL),
		)
	case "local":
		return NewLocalProvider(cfg.Storage.LocalDir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
