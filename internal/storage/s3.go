package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	defaultPrefix     = "voice-notes"
	defaultPutTimeout = 15 * time.Second
)

// Compile-time assertion that S3Store satisfies the Store interface.
var _ Store = (*S3Store)(nil)

// S3Config describes the S3-compatible endpoint raw audio is written to.
type S3Config struct {
	// Endpoint is the S3 host (e.g., "s3.amazonaws.com" or a MinIO
	// address). Required.
	Endpoint string

	// Bucket is the target bucket. Required.
	Bucket string

	// Region is the bucket region. May be empty for region-less endpoints.
	Region string

	// Prefix is the key prefix under which objects are written.
	// Defaults to "voice-notes".
	Prefix string

	// AccessKey and SecretKey are the static credentials.
	AccessKey string
	SecretKey string

	// UseSSL selects https transport.
	UseSSL bool
}

// S3Store implements [Store] against any S3-compatible object store.
// Objects are written as <prefix>/<userID>/<uuid>.bin.
type S3Store struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewS3Store constructs an S3Store from cfg.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("storage: endpoint and bucket are required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: create s3 client: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &S3Store{client: client, bucket: cfg.Bucket, prefix: prefix}, nil
}

// Put implements [Store.Put].
func (s *S3Store) Put(ctx context.Context, userID int64, payload []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := fmt.Sprintf("%s/%d/%s.bin", s.prefix, userID, uuid.NewString())

	ctx, cancel := context.WithTimeout(ctx, defaultPutTimeout)
	defer cancel()

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("storage: put object: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}
