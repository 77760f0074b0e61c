package oracle

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	rektypes "github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bencyrus/safeupload/internal/storage"
)

type fakeRekognition struct {
	detectIn *rekognition.DetectModerationLabelsInput
	labels   []rektypes.ModerationLabel
	pages    []*rekognition.GetContentModerationOutput
	gets     int
}

func (f *fakeRekognition) DetectModerationLabels(_ context.Context, in *rekognition.DetectModerationLabelsInput, _ ...func(*rekognition.Options)) (*rekognition.DetectModerationLabelsOutput, error) {
	f.detectIn = in
	return &rekognition.DetectModerationLabelsOutput{ModerationLabels: f.labels}, nil
}

func (f *fakeRekognition) StartContentModeration(_ context.Context, in *rekognition.StartContentModerationInput, _ ...func(*rekognition.Options)) (*rekognition.StartContentModerationOutput, error) {
	return &rekognition.StartContentModerationOutput{JobId: aws.String("job-" + aws.ToString(in.Video.S3Object.Name))}, nil
}

func (f *fakeRekognition) GetContentModeration(context.Context, *rekognition.GetContentModerationInput, ...func(*rekognition.Options)) (*rekognition.GetContentModerationOutput, error) {
	p := f.pages[f.gets]
	f.gets++
	return p, nil
}

type mapFetcher map[string][]byte

func (m mapFetcher) Get(_ context.Context, key string) ([]byte, error) {
	b, ok := m[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return b, nil
}

func TestRekognitionScanS3(t *testing.T) {
	f := &fakeRekognition{labels: []rektypes.ModerationLabel{
		{Name: aws.String("Explicit Nudity"), Confidence: aws.Float32(97.5)},
	}}
	ref := storage.Ref{Backend: storage.BackendS3, Bucket: "uploads", Key: "images/a.png"}

	labels, err := NewRekognition(f, nil).Scan(context.Background(), ref, 90)
	require.NoError(t, err)

	require.NotNil(t, f.detectIn.Image.S3Object)
	assert.Equal(t, "uploads", aws.ToString(f.detectIn.Image.S3Object.Bucket))
	assert.Equal(t, "images/a.png", aws.ToString(f.detectIn.Image.S3Object.Name))
	assert.InDelta(t, 90, aws.ToFloat32(f.detectIn.MinConfidence), 1e-6)
	require.Len(t, labels, 1)
	assert.Equal(t, "Explicit Nudity", labels[0].Name)
	assert.InDelta(t, 97.5, labels[0].Confidence, 1e-4)
}

func TestRekognitionScanInline(t *testing.T) {
	f := &fakeRekognition{}
	ref := storage.Ref{Backend: storage.BackendMemory, Bucket: "mem", Key: "images/a.png"}

	_, err := NewRekognition(f, mapFetcher{"images/a.png": []byte("png")}).Scan(context.Background(), ref, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), f.detectIn.Image.Bytes)
	assert.Nil(t, f.detectIn.MinConfidence)

	_, err = NewRekognition(f, nil).Scan(context.Background(), ref, 0)
	assert.ErrorIs(t, err, ErrUnsupportedRef)
}

func TestRekognitionStartJobRequiresS3(t *testing.T) {
	r := NewRekognition(&fakeRekognition{}, nil)

	id, err := r.StartJob(context.Background(), storage.Ref{Backend: storage.BackendS3, Bucket: "b", Key: "videos/v.mp4"})
	require.NoError(t, err)
	assert.Equal(t, "job-videos/v.mp4", id)

	_, err = r.StartJob(context.Background(), storage.Ref{Backend: storage.BackendGCS, Bucket: "b", Key: "videos/v.mp4"})
	assert.True(t, errors.Is(err, ErrUnsupportedRef))
}

func TestRekognitionPollPaginates(t *testing.T) {
	label := func(name string, c float32) rektypes.ContentModerationDetection {
		return rektypes.ContentModerationDetection{ModerationLabel: &rektypes.ModerationLabel{
			Name: aws.String(name), Confidence: aws.Float32(c),
		}}
	}
	f := &fakeRekognition{pages: []*rekognition.GetContentModerationOutput{
		{JobStatus: rektypes.VideoJobStatusInProgress},
		{
			JobStatus:        rektypes.VideoJobStatusSucceeded,
			ModerationLabels: []rektypes.ContentModerationDetection{label("Violence", 70)},
			NextToken:        aws.String("next"),
		},
		{
			JobStatus:        rektypes.VideoJobStatusSucceeded,
			ModerationLabels: []rektypes.ContentModerationDetection{label("Weapons", 85)},
		},
	}}
	r := NewRekognition(f, nil)

	res, err := r.Poll(context.Background(), "job")
	require.NoError(t, err)
	assert.Equal(t, JobInProgress, res.Status)

	res, err = r.Poll(context.Background(), "job")
	require.NoError(t, err)
	assert.Equal(t, JobSucceeded, res.Status)
	require.Len(t, res.Labels, 2)
	assert.Equal(t, "Weapons", res.Labels[1].Name)
	assert.Equal(t, 3, f.gets)
}

func TestRekognitionPollFailed(t *testing.T) {
	f := &fakeRekognition{pages: []*rekognition.GetContentModerationOutput{
		{JobStatus: rektypes.VideoJobStatusFailed, StatusMessage: aws.String("unsupported codec")},
	}}
	res, err := NewRekognition(f, nil).Poll(context.Background(), "job")
	require.NoError(t, err)
	assert.Equal(t, JobFailed, res.Status)
	assert.Equal(t, "unsupported codec", res.Message)
}
