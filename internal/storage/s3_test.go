package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bencyrus/safeupload/internal/apperr"
)

// fakeS3 keeps single-part uploads in a map; multipart calls are unused for
// the payload sizes these tests send.
type fakeS3 struct {
	mu        sync.Mutex
	objects   map[string][]byte
	putErr    error
	deleteErr error
	created   []*s3.CreateBucketInput
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: map[string][]byte{}} }

func notFound() error { return &smithy.GenericAPIError{Code: "NotFound", Message: "not found"} }

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, errors.New("multipart not supported")
}

func (f *fakeS3) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, errors.New("multipart not supported")
}

func (f *fakeS3) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, errors.New("multipart not supported")
}

func (f *fakeS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return &s3.AbortMultipartUploadOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchKey"}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, notFound()
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) CreateBucket(_ context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.created = append(f.created, in)
	return &s3.CreateBucketOutput{}, nil
}

func (f *fakeS3) ListBuckets(context.Context, *s3.ListBucketsInput, ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	return &s3.ListBucketsOutput{Buckets: []s3types.Bucket{{Name: aws.String("media")}, {Name: aws.String("logs")}}}, nil
}

func newTestS3Store(t *testing.T, client S3API, endpoint string) *S3Store {
	t.Helper()
	s, err := NewS3Store(client, S3Config{Bucket: "media", Region: "us-east-2", EndpointURL: endpoint})
	require.NoError(t, err)
	return s
}

func TestS3StoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	s := newTestS3Store(t, fake, "")

	require.NoError(t, s.Put(ctx, "image/a.png", strings.NewReader("png"), "image/png"))
	ok, err := s.Exists(ctx, "image/a.png")
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := s.Get(ctx, "image/a.png")
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	require.NoError(t, s.Delete(ctx, "image/a.png"))
	ok, err = s.Exists(ctx, "image/a.png")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Get(ctx, "image/a.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3StorePutFailureIsStoreError(t *testing.T) {
	fake := newFakeS3()
	fake.putErr = errors.New("access denied")
	s := newTestS3Store(t, fake, "")

	err := s.Put(context.Background(), "image/a.png", strings.NewReader("png"), "")
	require.Error(t, err)
	assert.Equal(t, apperr.KindStore, apperr.KindOf(err))
}

func TestS3StoreURL(t *testing.T) {
	s := newTestS3Store(t, newFakeS3(), "")
	assert.Equal(t, "https://media.s3.us-east-2.amazonaws.com/video/x.mp4", s.URL("video/x.mp4"))
	assert.Equal(t, Ref{Backend: BackendS3, Bucket: "media", Key: "video/x.mp4"}, s.Ref("video/x.mp4"))
	assert.Equal(t, "s3://media/video/x.mp4", s.Ref("video/x.mp4").URI())

	minio := newTestS3Store(t, newFakeS3(), "http://127.0.0.1:9000/")
	assert.Equal(t, "http://127.0.0.1:9000/media/video/x.mp4", minio.URL("video/x.mp4"))
}

func TestS3StoreCreateBucket(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	s := newTestS3Store(t, fake, "")

	err := s.CreateBucket(ctx, "a..b", "")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Empty(t, fake.created)

	require.NoError(t, s.CreateBucket(ctx, "my-bucket.01", ""))
	require.NoError(t, s.CreateBucket(ctx, "east-bucket", "us-east-1"))
	require.Len(t, fake.created, 2)
	assert.Equal(t, s3types.BucketLocationConstraint("us-east-2"), fake.created[0].CreateBucketConfiguration.LocationConstraint)
	assert.Nil(t, fake.created[1].CreateBucketConfiguration)
}

func TestS3StoreListBuckets(t *testing.T) {
	s := newTestS3Store(t, newFakeS3(), "")
	names, err := s.ListBuckets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"media", "logs"}, names)
}

func TestNewS3StoreRequiresBucket(t *testing.T) {
	_, err := NewS3Store(newFakeS3(), S3Config{})
	assert.Error(t, err)
	_, err = NewS3Store(nil, S3Config{Bucket: "media"})
	assert.Error(t, err)
}

func TestS3StoreSignedURL(t *testing.T) {
	s := newTestS3Store(t, newFakeS3(), "")
	_, err := s.SignedURL(context.Background(), "image/a.png", time.Minute)
	require.ErrorIs(t, err, ErrSigningUnsupported)

	client := s3.New(s3.Options{
		Region:      "us-east-2",
		Credentials: credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", ""),
	})
	s.WithPresigner(s3.NewPresignClient(client))

	url, err := s.SignedURL(context.Background(), "image/a.png", 15*time.Minute)
	require.NoError(t, err)
	assert.Contains(t, url, "media.s3.us-east-2.amazonaws.com/image/a.png")
	assert.Contains(t, url, "X-Amz-Signature=")
	assert.Contains(t, url, "X-Amz-Expires=900")
}
