package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/comprehend"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/transcribe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bencyrus/safeupload/internal/config"
	"github.com/bencyrus/safeupload/internal/oracle"
	"github.com/bencyrus/safeupload/internal/storage"
)

// failingEndpoint answers every request with 500 and counts them.
func failingEndpoint(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var n atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	return srv, &n
}

func testAWSConfig(t *testing.T) aws.Config {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))

	awsCfg, err := loadAWSConfig(context.Background(), config.Config{
		AWSRegion:          "us-east-2",
		AWSAccessKeyID:     "AKIDEXAMPLE",
		AWSSecretAccessKey: "secret",
	})
	require.NoError(t, err)
	return awsCfg
}

func TestOracleCallsAreNotRetried(t *testing.T) {
	awsCfg := testAWSConfig(t)
	ref := storage.Ref{Backend: storage.BackendS3, Bucket: "media", Key: "video/a.mp4"}
	ctx := context.Background()

	t.Run("rekognition start job", func(t *testing.T) {
		srv, n := failingEndpoint(t)
		client := rekognition.NewFromConfig(awsCfg, func(o *rekognition.Options) { o.BaseEndpoint = aws.String(srv.URL) })

		_, err := oracle.NewRekognition(client, nil).StartJob(ctx, ref)
		require.Error(t, err)
		assert.EqualValues(t, 1, n.Load())
	})

	t.Run("comprehend analyze", func(t *testing.T) {
		srv, n := failingEndpoint(t)
		client := comprehend.NewFromConfig(awsCfg, func(o *comprehend.Options) { o.BaseEndpoint = aws.String(srv.URL) })

		_, err := oracle.NewComprehend(client).Analyze(ctx, "hello", "en-US")
		require.Error(t, err)
		assert.EqualValues(t, 1, n.Load())
	})

	t.Run("transcribe start job", func(t *testing.T) {
		srv, n := failingEndpoint(t)
		client := transcribe.NewFromConfig(awsCfg, func(o *transcribe.Options) { o.BaseEndpoint = aws.String(srv.URL) })

		audio := storage.Ref{Backend: storage.BackendS3, Bucket: "media", Key: "voice/a.mp3"}
		_, err := oracle.NewTranscribe(client, oracle.TranscribeOptions{}).Transcribe(ctx, audio, "en-US")
		require.Error(t, err)
		assert.EqualValues(t, 1, n.Load())
	})
}

func TestStorePutIsNotRetried(t *testing.T) {
	awsCfg := testAWSConfig(t)
	srv, n := failingEndpoint(t)

	s3Cfg := storage.S3Config{Bucket: "media", Region: "us-east-2", EndpointURL: srv.URL, AccessKey: "AKIDEXAMPLE", SecretKey: "secret"}
	st, err := storage.NewS3Store(storage.NewS3Client(awsCfg, s3Cfg), s3Cfg)
	require.NoError(t, err)

	err = st.Put(context.Background(), "image/a.jpg", strings.NewReader("jpeg"), "image/jpeg")
	require.Error(t, err)
	assert.EqualValues(t, 1, n.Load())
}
