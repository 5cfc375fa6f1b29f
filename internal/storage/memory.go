package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gestionqr/gestionqr/internal/signing"
)

type memoryObject struct {
	data        []byte
	contentType string
	createdAt   time.Time
}

// MemoryStore keeps objects in a map guarded by an RWMutex. Presigned URLs
// point at the API's download route and are checked with the signer.
type MemoryStore struct {
	mu           sync.RWMutex
	bucket       string
	objects      map[string]*memoryObject
	signer       *signing.Signer
	downloadPath string
}

// NewMemoryStore constructs a MemoryStore. downloadPath is the route that
// serves presigned downloads, e.g. "/download".
func NewMemoryStore(bucket string, signer *signing.Signer, downloadPath string) *MemoryStore {
	return &MemoryStore{
		bucket:       bucket,
		objects:      make(map[string]*memoryObject),
		signer:       signer,
		downloadPath: downloadPath,
	}
}

func (m *MemoryStore) Bucket() string { return m.bucket }

// Put stores a copy of r's content under key.
func (m *MemoryStore) Put(ctx context.Context, key string, r io.Reader, _ int64, opts PutOptions) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read object body: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; ok {
		return fmt.Errorf("%s: %w", key, ErrExists)
	}
	m.objects[key] = &memoryObject{data: data, contentType: opts.ContentType, createdAt: time.Now().UTC()}
	return nil
}

// Get returns a reader over the stored bytes.
func (m *MemoryStore) Get(ctx context.Context, key string) (*Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return &Object{
		Key:         key,
		Size:        int64(len(obj.data)),
		ContentType: obj.contentType,
		Body:        io.NopCloser(bytes.NewReader(obj.data)),
	}, nil
}

// PublicURL is never available: the memory bucket is private.
func (m *MemoryStore) PublicURL(string) (string, bool) { return "", false }

// PresignURL builds a signed download link relative to the API root.
func (m *MemoryStore) PresignURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.RLock()
	_, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	exp := m.signer.Expiry(ttl)
	q := url.Values{}
	q.Set("key", key)
	q.Set("expires", strconv.FormatInt(exp, 10))
	q.Set("signature", m.signer.Sign(key, exp))
	return m.downloadPath + "?" + q.Encode(), nil
}

// Verify checks the query parameters of a presigned link.
func (m *MemoryStore) Verify(key, expires, signature string) bool {
	return m.signer.Validate(key, expires, signature)
}

// Len reports how many objects are stored.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
