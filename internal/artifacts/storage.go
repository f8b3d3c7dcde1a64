// Package artifacts stores generated letter PDFs in S3-compatible storage.
package artifacts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"letterflow/internal/config"
)

var (
	ErrNotFound    = errors.New("artifact not found")
	ErrInvalidName = errors.New("invalid artifact name")
)

// Storage wraps MinIO/S3 interactions for letter artifacts.
type Storage struct {
	client     *minio.Client
	bucket     string
	region     string
	presignTTL time.Duration
}

// New creates a MinIO client from the Config.
func New(cfg config.Config) (*Storage, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Storage{
		client:     client,
		bucket:     cfg.S3Bucket,
		region:     cfg.S3Region,
		presignTTL: ttl,
	}, nil
}

// EnsureBucket makes sure the artifact bucket exists before use.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("make bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

// ValidName reports whether name is a flat object name safe to expose in URLs.
func ValidName(name string) bool {
	if name == "" || len(name) > 200 || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\?#") && !strings.Contains(name, "..")
}

// Put uploads data under name, replacing any previous object.
func (s *Storage) Put(ctx context.Context, name string, data []byte, contentType string) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)), opts); err != nil {
		return fmt.Errorf("upload artifact %s: %w", name, err)
	}
	return nil
}

// Exists reports whether an artifact with name is stored.
func (s *Storage) Exists(ctx context.Context, name string) (bool, error) {
	if !ValidName(name) {
		return false, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	_, err := s.client.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("stat artifact %s: %w", name, err)
	}
	return true, nil
}

// PresignedURL returns a signed GET URL. A non-empty downloadName makes the
// response an attachment with that filename; otherwise it opens inline.
func (s *Storage) PresignedURL(ctx context.Context, name, downloadName string) (string, error) {
	if !ValidName(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	params := url.Values{}
	params.Set("response-content-type", "application/pdf")
	if downloadName != "" {
		params.Set("response-content-disposition", contentDisposition(downloadName))
	} else {
		params.Set("response-content-disposition", "inline")
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, name, s.presignTTL, params)
	if err != nil {
		return "", fmt.Errorf("presign artifact %s: %w", name, err)
	}
	return u.String(), nil
}

func contentDisposition(downloadName string) string {
	safe := strings.Map(func(r rune) rune {
		if r == '"' || r == '\\' || r < 0x20 {
			return -1
		}
		return r
	}, downloadName)
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, safe, url.PathEscape(safe))
}
