package storage

import (
	"context"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
)

// RetryingStore wraps a store and retries deletes, which are idempotent.
// Writes and reads pass straight through.
type RetryingStore struct {
	Store
	buildBackoff func() backoff.BackOff
}

// NewRetryingStore creates a store that retries Delete with the backoff built
// by factory, or a short exponential backoff bounded by maxElapsed.
func NewRetryingStore(delegate Store, maxElapsed time.Duration, factory func() backoff.BackOff) *RetryingStore {
	if factory == nil {
		if maxElapsed <= 0 {
			maxElapsed = 3 * time.Second
		}
		factory = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxElapsedTime = maxElapsed
			return b
		}
	}
	return &RetryingStore{Store: delegate, buildBackoff: factory}
}

func (s *RetryingStore) Delete(ctx context.Context, key string) error {
	b := backoff.WithContext(s.buildBackoff(), ctx)
	return backoff.Retry(func() error { return s.Store.Delete(ctx, key) }, b)
}

// CreateBucket and ListBuckets are forwarded when the wrapped store manages
// buckets.
func (s *RetryingStore) CreateBucket(ctx context.Context, name, region string) error {
	return bucketManager(s.Store).CreateBucket(ctx, name, region)
}

func (s *RetryingStore) ListBuckets(ctx context.Context) ([]string, error) {
	return bucketManager(s.Store).ListBuckets(ctx)
}

func (s *RetryingStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return Signer(s.Store).SignedURL(ctx, key, ttl)
}

var (
	_ Store         = (*RetryingStore)(nil)
	_ BucketManager = (*RetryingStore)(nil)
	_ URLSigner     = (*RetryingStore)(nil)
)
