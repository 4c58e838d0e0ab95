package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	api "github.com/AttuneLearning/cadencelms-report-engine/api/v1alpha1"
)

// localProvider stores artifacts on the local filesystem. Suited for
// single-node deployments and development; the URL is a file path the
// download handler streams from.
type localProvider struct {
	dir string
}

var _ Provider = (*localProvider)(nil)

func NewLocalProvider(dir string) (*localProvider, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating artifact directory: %w", err)
	}
	return &localProvider{dir: dir}, nil
}

func (s *localProvider) Put(ctx context.Context, key string, data []byte, contentType string) (api.StorageDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return api.StorageDescriptor{}, err
	}

	path, err := s.safePath(key)
	if err != nil {
		return api.StorageDescriptor{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return api.StorageDescriptor{}, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return api.StorageDescriptor{}, fmt.Errorf("writing artifact: %w", err)
	}

	return api.StorageDescriptor{
		Provider: s.Kind(),
		Key:      key,
		Url:      "file://" + path,
	}, nil
}

func (s *localProvider) Open(ctx context.Context, descriptor api.StorageDescriptor) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := s.safePath(descriptor.Key)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

func (s *localProvider) Kind() string {
	return "local"
}

// safePath rejects keys that would escape the artifact directory.
func (s *localProvider) safePath(key string) (string, error) {
	path := filepath.Join(s.dir, filepath.FromSlash(key))
	if !strings.HasPrefix(path, filepath.Clean(s.dir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid artifact key %q", key)
	}
	return path, nil
}
