// Package storage is the object store gateway: put, get and delete objects
// by key, build their public URLs, and manage buckets.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Get when no object exists under the key.
var ErrNotFound = errors.New("storage: object not found")

// Backend names the kind of store a Ref points into.
type Backend string

const (
	BackendS3     Backend = "s3"
	BackendGCS    Backend = "gcs"
	BackendMemory Backend = "memory"
)

// Ref addresses a stored object. Oracles that read objects in place take a
// Ref instead of the bytes.
type Ref struct {
	Backend Backend
	Bucket  string
	Key     string
}

// URI renders the ref as scheme://bucket/key.
func (r Ref) URI() string {
	scheme := string(r.Backend)
	if r.Backend == BackendGCS {
		scheme = "gs"
	}
	return scheme + "://" + r.Bucket + "/" + r.Key
}

// Object is a successfully stored upload.
type Object struct {
	Key string
	Ref Ref
	URL string
}

// Store abstracts the object store so the moderation pipeline stays unit
// testable.
type Store interface {
	// Put writes body under key, overwriting any existing object.
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// URL is derived from the store identity and key without a network call.
	URL(key string) string
	Ref(key string) Ref
}

// BucketManager creates and lists buckets.
type BucketManager interface {
	CreateBucket(ctx context.Context, name, region string) error
	ListBuckets(ctx context.Context) ([]string, error)
}

// Stored builds the Object description for key in s.
func Stored(s Store, key string) Object {
	return Object{Key: key, Ref: s.Ref(key), URL: s.URL(key)}
}

const defaultContentType = "application/octet-stream"

func contentTypeOr(ct string) string {
	if ct == "" {
		return defaultContentType
	}
	return ct
}

// ErrBucketsUnsupported is returned when the configured store cannot manage
// buckets.
var ErrBucketsUnsupported = errors.New("storage: bucket management not supported")

type unsupportedBuckets struct{}

func (unsupportedBuckets) CreateBucket(context.Context, string, string) error {
	return ErrBucketsUnsupported
}

func (unsupportedBuckets) ListBuckets(context.Context) ([]string, error) {
	return nil, ErrBucketsUnsupported
}

func bucketManager(s Store) BucketManager {
	if bm, ok := s.(BucketManager); ok {
		return bm
	}
	return unsupportedBuckets{}
}
