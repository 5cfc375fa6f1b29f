// Package storage defines the object store used for attachments and QR
// labels. Drivers live in s3storage (MinIO), awsstorage (AWS SDK) and this
// package (in-memory).
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// Driver names an object store implementation.
type Driver string

const (
	DriverMemory Driver = "memory"
	DriverMinio  Driver = "minio"
	DriverS3     Driver = "s3"
)

var (
	// ErrNotFound is returned by Get for unknown keys.
	ErrNotFound = errors.New("object not found")
	// ErrExists is returned by Put when the key is already taken.
	ErrExists = errors.New("object already exists")
)

// PutOptions carries optional object attributes.
type PutOptions struct {
	ContentType string
}

// Object is a stored blob being read. Callers close Body.
type Object struct {
	Key         string
	Size        int64
	ContentType string
	Body        io.ReadCloser
}

// Store is a single-bucket object store.
type Store interface {
	// Put writes a new object. Keys are create-only: an existing key yields
	// ErrExists. size may be -1 when unknown.
	Put(ctx context.Context, key string, r io.Reader, size int64, opts PutOptions) error
	Get(ctx context.Context, key string) (*Object, error)
	// PublicURL returns a permanent URL when the bucket is publicly readable.
	PublicURL(key string) (string, bool)
	// PresignURL returns a GET URL valid for ttl.
	PresignURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Bucket() string
}
