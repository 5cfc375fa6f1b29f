package s3storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/gestionqr/gestionqr/internal/storage"
)

// Options configures the MinIO/S3 client.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Bucket    string
	// Public marks the bucket as anonymously readable; PublicBaseURL
	// overrides the endpoint-derived base (e.g. a CDN).
	Public        bool
	PublicBaseURL string
}

// Storage wraps MinIO/S3 interactions for a single bucket.
type Storage struct {
	client     *minio.Client
	bucket     string
	region     string
	publicBase string
}

// New creates a MinIO client.
func New(opts Options) (*Storage, error) {
	if opts.Bucket == "" {
		return nil, errors.New("s3 bucket required")
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	s := &Storage{client: client, bucket: opts.Bucket, region: opts.Region}
	if opts.Public {
		base := opts.PublicBaseURL
		if base == "" {
			base = client.EndpointURL().String() + "/" + opts.Bucket
		}
		s.publicBase = strings.TrimRight(base, "/")
	}
	return s, nil
}

func (s *Storage) Bucket() string { return s.bucket }

// EnsureBucket makes sure the bucket exists before use.
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

// Put uploads a new object. S3 has no create-only put, so the key is checked
// with StatObject first; a concurrent writer can still win the race.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64, opts storage.PutOptions) error {
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return fmt.Errorf("%s: %w", key, storage.ErrExists)
	}
	if !isNotFound(err) {
		return fmt.Errorf("stat object: %w", err)
	}
	_, err = s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: opts.ContentType})
	if err != nil {
		return fmt.Errorf("upload object: %w", err)
	}
	return nil
}

// Get streams an object.
func (s *Storage) Get(ctx context.Context, key string) (*storage.Object, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	// GetObject is lazy; Stat surfaces a missing key.
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		if isNotFound(err) {
			return nil, fmt.Errorf("%s: %w", key, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("stat object: %w", err)
	}
	return &storage.Object{Key: key, Size: info.Size, ContentType: info.ContentType, Body: obj}, nil
}

// PublicURL returns the anonymous URL when the bucket is public.
func (s *Storage) PublicURL(key string) (string, bool) {
	if s.publicBase == "" {
		return "", false
	}
	return s.publicBase + "/" + escapeKey(key), true
}

// PresignURL returns a signed GET URL.
func (s *Storage) PresignURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign object: %w", err)
	}
	return u.String(), nil
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}

// escapeKey escapes each path segment so '/' separators survive.
func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
