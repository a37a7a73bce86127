// Package photostore uploads captured sighting photos to S3-compatible object storage
// so reports can reference an object key instead of inlining the image.
package photostore

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/tphakala/wildwatch-go/internal/errors"
	"github.com/tphakala/wildwatch-go/internal/logger"
)

// Store persists a photo and returns the reference reports should carry.
type Store interface {
	Put(ctx context.Context, id string, data []byte, takenAt time.Time) (string, error)
}

// Config configures the MinIO backed store.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
	// PublicURL, when set, is prefixed to object keys to form the reference.
	PublicURL string
}

// MinioStore writes photos with minio-go.
type MinioStore struct {
	client    *minio.Client
	bucket    string
	prefix    string
	publicURL string
	log       logger.Logger
}

// GetLogger returns the photostore module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("photostore")
}

// NewMinioStore creates a store. No network traffic happens until the first Put.
func NewMinioStore(cfg Config) (*MinioStore, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.Newf("photo store endpoint and bucket are required").
			Component("photostore").
			Category(errors.CategoryConfiguration).
			Build()
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to create MinIO client: %w", err)).
			Component("photostore").
			Category(errors.CategoryConfiguration).
			Build()
	}

	return &MinioStore{
		client:    client,
		bucket:    cfg.Bucket,
		prefix:    strings.Trim(cfg.Prefix, "/"),
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		log:       GetLogger(),
	}, nil
}

// ObjectKey returns the key a photo is stored under: prefix/YYYY/MM/DD/<id>.jpg.
func ObjectKey(prefix, id string, takenAt time.Time) string {
	day := takenAt.UTC().Format("2006/01/02")
	return path.Join(strings.Trim(prefix, "/"), day, id+".jpg")
}

// Put uploads a JPEG photo and returns its reference: the public URL when configured,
// otherwise the object key.
func (s *MinioStore) Put(ctx context.Context, id string, data []byte, takenAt time.Time) (string, error) {
	key := ObjectKey(s.prefix, id, takenAt)

	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{
			ContentType:  "image/jpeg",
			UserMetadata: map[string]string{"taken-at": takenAt.UTC().Format(time.RFC3339)},
		})
	if err != nil {
		return "", errors.New(fmt.Errorf("failed to upload photo: %w", err)).
			Component("photostore").
			Category(errors.CategoryPhotoStore).
			Context("bucket", s.bucket).
			Context("size", len(data)).
			Build()
	}

	s.log.Debug("photo uploaded",
		logger.String("bucket", s.bucket),
		logger.String("key", key),
		logger.Int64("size", info.Size))

	if s.publicURL != "" {
		return s.publicURL + "/" + s.bucket + "/" + key, nil
	}
	return key, nil
}
