package storage

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/bencyrus/safeupload/internal/apperr"
)

type memObject struct {
	data        []byte
	contentType string
}

// MemoryStore implements Store and BucketManager in process. It backs tests
// and local runs without cloud credentials.
type MemoryStore struct {
	bucket  string
	baseURL string

	mu      sync.RWMutex
	objects map[string]memObject
	buckets map[string]string
}

// NewMemoryStore constructs an empty store whose URLs start with baseURL.
func NewMemoryStore(bucket, baseURL string) *MemoryStore {
	return &MemoryStore{
		bucket:  bucket,
		baseURL: strings.TrimRight(baseURL, "/"),
		objects: make(map[string]memObject),
		buckets: map[string]string{bucket: ""},
	}
}

func (m *MemoryStore) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return apperr.E(apperr.KindStore, "put "+key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memObject{data: data, contentType: contentTypeOr(contentType)}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", key, ErrNotFound)
	}
	out := make([]byte, len(obj.data))
	copy(out, obj.data)
	return out, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *MemoryStore) URL(key string) string {
	return m.baseURL + "/" + key
}

func (m *MemoryStore) Ref(key string) Ref {
	return Ref{Backend: BackendMemory, Bucket: m.bucket, Key: key}
}

// Len reports the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

func (m *MemoryStore) CreateBucket(_ context.Context, name, region string) error {
	if err := ValidateBucketName(name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buckets[name]; ok {
		return apperr.E(apperr.KindStore, "create bucket "+name, fmt.Errorf("bucket already exists"))
	}
	m.buckets[name] = region
	return nil
}

func (m *MemoryStore) ListBuckets(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.buckets))
	for name := range m.buckets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

var (
	_ Store         = (*MemoryStore)(nil)
	_ BucketManager = (*MemoryStore)(nil)
)
