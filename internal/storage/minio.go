package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	api "github.com/AttuneLearning/cadencelms-report-engine/api/v1alpha1"
)

const presignValidity = 24 * time.Hour

type MinioOpts func(c *minioConfig)

type minioConfig struct {
	endpoint        string
	bucket          string
	accessKey       string
	secretAccessKey string
	useSSL          bool
}

func newConfig(opts ...MinioOpts) *minioConfig {
	cfg := &minioConfig{
		useSSL: false,
	}

	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

type minioProvider struct {
	cfg    *minioConfig
	client *minio.Client
}

var _ Provider = (*minioProvider)(nil)

func NewMinioProvider(opts ...MinioOpts) (*minioProvider, error) {
	cfg := newConfig(opts...)

	// Initialize minio client object.
	minioClient, err := minio.New(cfg.endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.accessKey, cfg.secretAccessKey, ""),
		Secure: cfg.useSSL,
	})
	if err != nil {
		return nil, err
	}

	return &minioProvider{cfg: cfg, client: minioClient}, nil
}

func (s *minioProvider) Put(ctx context.Context, key string, data []byte, contentType string) (api.StorageDescriptor, error) {
	_, err := s.client.PutObject(ctx, s.cfg.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return api.StorageDescriptor{}, fmt.Errorf("uploading artifact: %w", err)
	}

	presigned, err := s.client.PresignedGetObject(ctx, s.cfg.bucket, key, presignValidity, url.Values{})
	if err != nil {
		return api.StorageDescriptor{}, fmt.Errorf("presigning artifact url: %w", err)
	}

	return api.StorageDescriptor{
		Provider: s.Kind(),
		Bucket:   s.cfg.bucket,
		Key:      key,
		Url:      presigned.String(),
	}, nil
}

func (s *minioProvider) Open(ctx context.Context, descriptor api.StorageDescriptor) (io.ReadCloser, error) {
	object, err := s.client.GetObject(ctx, descriptor.Bucket, descriptor.Key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}

	// Stat forces the first roundtrip so a missing object surfaces here.
	if _, err := object.Stat(); err != nil {
		object.Close()
		return nil, err
	}

	return object, nil
}

func (s *minioProvider) Kind() string {
	return "minio"
}

func WithEndpoint(endpoint string) MinioOpts {
	return func(c *minioConfig) {
		c.endpoint = endpoint
	}
}

func WithBucket(bucket string) MinioOpts {
	return func(c *minioConfig) {
		c.bucket = bucket
	}
}

func WithAccessKey(accessKey string) MinioOpts {
	return func(c *minioConfig) {
		c.accessKey = accessKey
	}
}

func WithSecretKey(secretKey string) MinioOpts {
	return func(c *minioConfig) {
		c.secretAccessKey = secretKey
	}
}

func WithSSL(useSSL bool) MinioOpts {
	return func(c *minioConfig) {
		c.useSSL = useSSL
	}
}
