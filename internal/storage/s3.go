package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/bencyrus/safeupload/internal/apperr"
)

// Parts above this size are uploaded in multiple requests.
const multipartPartSize = 10 * 1024 * 1024

// S3API is the subset of *s3.Client the store uses.
type S3API interface {
	manager.UploadAPIClient
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, opts ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	ListBuckets(ctx context.Context, in *s3.ListBucketsInput, opts ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
}

// S3Presigner is satisfied by *s3.PresignClient.
type S3Presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Config identifies the bucket and, for S3-compatible servers such as
// minio, the endpoint to talk to.
type S3Config struct {
	Bucket string
	Region string
	// "http://127.0.0.1:9000"; empty means AWS.
	EndpointURL string
	AccessKey   string
	SecretKey   string
}

// NewS3Client builds an S3 client from the shared AWS config, pointing it at
// a custom endpoint with path-style addressing when one is configured.
func NewS3Client(awsCfg aws.Config, cfg S3Config) *s3.Client {
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.EndpointURL == "" {
			return
		}
		o.BaseEndpoint = aws.String(cfg.EndpointURL)
		o.UsePathStyle = true
		if cfg.AccessKey != "" {
			o.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		}
	})
}

// S3Store stores objects in a single S3 bucket.
type S3Store struct {
	client    S3API
	uploader  *manager.Uploader
	presigner S3Presigner
	cfg       S3Config
}

// NewS3Store wraps client for cfg.Bucket.
func NewS3Store(client S3API, cfg S3Config) (*S3Store, error) {
	if client == nil {
		return nil, fmt.Errorf("s3 client can't be nil")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket name is required")
	}
	return &S3Store{
		client: client,
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.PartSize = multipartPartSize
		}),
		cfg: cfg,
	}, nil
}

// WithPresigner enables SignedURL.
func (s *S3Store) WithPresigner(p S3Presigner) *S3Store {
	s.presigner = p
	return s
}

func (s *S3Store) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentTypeOr(contentType)),
	})
	if err != nil {
		return apperr.E(apperr.KindStore, "put "+key, err)
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("get %s: %w", key, ErrNotFound)
		}
		return nil, apperr.E(apperr.KindStore, "get "+key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, apperr.E(apperr.KindStore, "read "+key, err)
	}
	return data, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return apperr.E(apperr.KindStore, "delete "+key, err)
	}
	return nil
}

func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, apperr.E(apperr.KindStore, "head "+key, err)
}

// URL returns the virtual-hosted AWS URL, or a path-style URL under the
// custom endpoint.
func (s *S3Store) URL(key string) string {
	if s.cfg.EndpointURL != "" {
		return strings.TrimRight(s.cfg.EndpointURL, "/") + "/" + s.cfg.Bucket + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
}

func (s *S3Store) Ref(key string) Ref {
	return Ref{Backend: BackendS3, Bucket: s.cfg.Bucket, Key: key}
}

// SignedURL presigns a GET request for key, valid for ttl.
func (s *S3Store) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if s.presigner == nil {
		return "", fmt.Errorf("s3 presigner is not configured: %w", ErrSigningUnsupported)
	}
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", apperr.E(apperr.KindStore, "presign "+key, err)
	}
	return req.URL, nil
}

func (s *S3Store) CreateBucket(ctx context.Context, name, region string) error {
	if err := ValidateBucketName(name); err != nil {
		return err
	}
	if region == "" {
		region = s.cfg.Region
	}
	in := &s3.CreateBucketInput{Bucket: aws.String(name)}
	// us-east-1 is the default location and must not be sent as a constraint.
	if region != "" && region != "us-east-1" {
		in.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(region),
		}
	}
	if _, err := s.client.CreateBucket(ctx, in); err != nil {
		return apperr.E(apperr.KindStore, fmt.Sprintf("create bucket %s in region %s", name, region), err)
	}
	return nil
}

func (s *S3Store) ListBuckets(ctx context.Context) ([]string, error) {
	out, err := s.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, apperr.E(apperr.KindStore, "list buckets", err)
	}
	names := make([]string, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		names = append(names, aws.ToString(b.Name))
	}
	return names, nil
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

var (
	_ Store         = (*S3Store)(nil)
	_ BucketManager = (*S3Store)(nil)
	_ URLSigner     = (*S3Store)(nil)
)
