package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/bencyrus/safeupload/internal/apperr"
)

// GCSConfig identifies the bucket and project used by GCSStore.
type GCSConfig struct {
	Bucket    string
	ProjectID string
	// EndpointURL points the client at an emulator such as fake-gcs-server.
	EndpointURL string
	// SigningEmail and SigningPrivateKey enable V4 signed download URLs.
	SigningEmail      string
	SigningPrivateKey string
}

// NewGCSClient builds a storage client, unauthenticated against an emulator
// endpoint and with default credentials otherwise.
func NewGCSClient(ctx context.Context, cfg GCSConfig) (*gcs.Client, error) {
	var opts []option.ClientOption
	if cfg.EndpointURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.EndpointURL), option.WithoutAuthentication())
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcs client: %w", err)
	}
	return client, nil
}

// GCSStore stores objects in a single Google Cloud Storage bucket.
type GCSStore struct {
	client *gcs.Client
	cfg    GCSConfig
}

// NewGCSStore wraps client for cfg.Bucket.
func NewGCSStore(client *gcs.Client, cfg GCSConfig) (*GCSStore, error) {
	if client == nil {
		return nil, fmt.Errorf("gcs client can't be nil")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket name is required")
	}
	return &GCSStore{client: client, cfg: cfg}, nil
}

func (s *GCSStore) object(key string) *gcs.ObjectHandle {
	return s.client.Bucket(s.cfg.Bucket).Object(key)
}

func (s *GCSStore) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	w := s.object(key).NewWriter(ctx)
	w.ContentType = contentTypeOr(contentType)
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return apperr.E(apperr.KindStore, "put "+key, err)
	}
	if err := w.Close(); err != nil {
		return apperr.E(apperr.KindStore, "put "+key, err)
	}
	return nil
}

func (s *GCSStore) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := s.object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, fmt.Errorf("get %s: %w", key, ErrNotFound)
		}
		return nil, apperr.E(apperr.KindStore, "get "+key, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, apperr.E(apperr.KindStore, "read "+key, err)
	}
	return data, nil
}

func (s *GCSStore) Delete(ctx context.Context, key string) error {
	if err := s.object(key).Delete(ctx); err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return apperr.E(apperr.KindStore, "delete "+key, err)
	}
	return nil
}

func (s *GCSStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.object(key).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return false, nil
	}
	return false, apperr.E(apperr.KindStore, "attrs "+key, err)
}

func (s *GCSStore) URL(key string) string {
	if s.cfg.EndpointURL != "" {
		return strings.TrimRight(s.cfg.EndpointURL, "/") + "/" + s.cfg.Bucket + "/" + key
	}
	return "https://storage.googleapis.com/" + s.cfg.Bucket + "/" + key
}

func (s *GCSStore) Ref(key string) Ref {
	return Ref{Backend: BackendGCS, Bucket: s.cfg.Bucket, Key: key}
}

// SignedURL generates a V4 signed GET URL for key, valid for ttl.
func (s *GCSStore) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	if s.cfg.SigningEmail == "" || s.cfg.SigningPrivateKey == "" {
		return "", fmt.Errorf("gcs signing credentials are not configured: %w", ErrSigningUnsupported)
	}
	// Keys passed through env vars carry literal \n sequences.
	pk := strings.ReplaceAll(s.cfg.SigningPrivateKey, `\n`, "\n")

	return gcs.SignedURL(s.cfg.Bucket, key, &gcs.SignedURLOptions{
		Scheme:         gcs.SigningSchemeV4,
		Method:         "GET",
		Expires:        time.Now().Add(ttl),
		GoogleAccessID: s.cfg.SigningEmail,
		PrivateKey:     []byte(pk),
	})
}

func (s *GCSStore) CreateBucket(ctx context.Context, name, region string) error {
	if err := ValidateBucketName(name); err != nil {
		return err
	}
	attrs := &gcs.BucketAttrs{}
	if region != "" {
		attrs.Location = region
	}
	if err := s.client.Bucket(name).Create(ctx, s.cfg.ProjectID, attrs); err != nil {
		return apperr.E(apperr.KindStore, fmt.Sprintf("create bucket %s in region %s", name, region), err)
	}
	return nil
}

func (s *GCSStore) ListBuckets(ctx context.Context) ([]string, error) {
	var names []string
	it := s.client.Buckets(ctx, s.cfg.ProjectID)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, apperr.E(apperr.KindStore, "list buckets", err)
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}

var (
	_ Store         = (*GCSStore)(nil)
	_ BucketManager = (*GCSStore)(nil)
	_ URLSigner     = (*GCSStore)(nil)
)
