package oracle

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	rektypes "github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/bencyrus/safeupload/internal/storage"
)

// RekognitionAPI is the subset of *rekognition.Client used for image and
// video moderation.
type RekognitionAPI interface {
	DetectModerationLabels(ctx context.Context, in *rekognition.DetectModerationLabelsInput, opts ...func(*rekognition.Options)) (*rekognition.DetectModerationLabelsOutput, error)
	StartContentModeration(ctx context.Context, in *rekognition.StartContentModerationInput, opts ...func(*rekognition.Options)) (*rekognition.StartContentModerationOutput, error)
	GetContentModeration(ctx context.Context, in *rekognition.GetContentModerationInput, opts ...func(*rekognition.Options)) (*rekognition.GetContentModerationOutput, error)
}

// Fetcher reads object bytes for refs Rekognition cannot address directly.
type Fetcher interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// Rekognition implements ImageScanner and VideoScanner with Amazon
// Rekognition. Images outside S3 are sent inline when a Fetcher is set;
// videos must live in S3.
type Rekognition struct {
	client  RekognitionAPI
	fetcher Fetcher
}

func NewRekognition(client RekognitionAPI, fetcher Fetcher) *Rekognition {
	return &Rekognition{client: client, fetcher: fetcher}
}

// Scan returns every moderation label Rekognition reports at or above
// minConfidence. A zero minConfidence uses the service default.
func (r *Rekognition) Scan(ctx context.Context, ref storage.Ref, minConfidence float64) ([]Label, error) {
	img, err := r.image(ctx, ref)
	if err != nil {
		return nil, err
	}
	in := &rekognition.DetectModerationLabelsInput{Image: img}
	if minConfidence > 0 {
		in.MinConfidence = aws.Float32(float32(minConfidence))
	}
	out, err := r.client.DetectModerationLabels(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("detect moderation labels for %s: %w", ref.URI(), err)
	}
	labels := make([]Label, 0, len(out.ModerationLabels))
	for _, l := range out.ModerationLabels {
		labels = append(labels, toLabel(l))
	}
	return labels, nil
}

func (r *Rekognition) image(ctx context.Context, ref storage.Ref) (*rektypes.Image, error) {
	if ref.Backend == storage.BackendS3 {
		return &rektypes.Image{S3Object: &rektypes.S3Object{
			Bucket: aws.String(ref.Bucket),
			Name:   aws.String(ref.Key),
		}}, nil
	}
	if r.fetcher == nil {
		return nil, fmt.Errorf("scan %s: %w", ref.URI(), ErrUnsupportedRef)
	}
	data, err := r.fetcher.Get(ctx, ref.Key)
	if err != nil {
		return nil, fmt.Errorf("fetch %s for inline scan: %w", ref.URI(), err)
	}
	return &rektypes.Image{Bytes: data}, nil
}

// StartJob starts an asynchronous content moderation job for a video in S3.
func (r *Rekognition) StartJob(ctx context.Context, ref storage.Ref) (string, error) {
	if ref.Backend != storage.BackendS3 {
		return "", fmt.Errorf("start video moderation for %s: %w", ref.URI(), ErrUnsupportedRef)
	}
	out, err := r.client.StartContentModeration(ctx, &rekognition.StartContentModerationInput{
		Video: &rektypes.Video{S3Object: &rektypes.S3Object{
			Bucket: aws.String(ref.Bucket),
			Name:   aws.String(ref.Key),
		}},
	})
	if err != nil {
		return "", fmt.Errorf("start video moderation for %s: %w", ref.URI(), err)
	}
	if aws.ToString(out.JobId) == "" {
		return "", fmt.Errorf("start video moderation for %s: response missing job id", ref.URI())
	}
	return aws.ToString(out.JobId), nil
}

// Poll reads the job status. Once the job has succeeded every result page is
// read so the returned labels are complete.
func (r *Rekognition) Poll(ctx context.Context, jobID string) (JobResult, error) {
	out, err := r.client.GetContentModeration(ctx, &rekognition.GetContentModerationInput{
		JobId: aws.String(jobID),
	})
	if err != nil {
		return JobResult{}, fmt.Errorf("get content moderation %s: %w", jobID, err)
	}
	res := JobResult{
		Status:  jobStatus(out.JobStatus),
		Message: aws.ToString(out.StatusMessage),
	}
	if res.Status != JobSucceeded {
		return res, nil
	}

	for {
		for _, d := range out.ModerationLabels {
			if d.ModerationLabel != nil {
				res.Labels = append(res.Labels, toLabel(*d.ModerationLabel))
			}
		}
		if aws.ToString(out.NextToken) == "" {
			return res, nil
		}
		out, err = r.client.GetContentModeration(ctx, &rekognition.GetContentModerationInput{
			JobId:     aws.String(jobID),
			NextToken: out.NextToken,
		})
		if err != nil {
			return JobResult{}, fmt.Errorf("get content moderation %s page: %w", jobID, err)
		}
	}
}

func jobStatus(s rektypes.VideoJobStatus) JobStatus {
	switch s {
	case rektypes.VideoJobStatusSucceeded:
		return JobSucceeded
	case rektypes.VideoJobStatusFailed:
		return JobFailed
	default:
		return JobInProgress
	}
}

func toLabel(l rektypes.ModerationLabel) Label {
	return Label{
		Name:       aws.ToString(l.Name),
		Parent:     aws.ToString(l.ParentName),
		Confidence: float64(aws.ToFloat32(l.Confidence)),
	}
}

var (
	_ ImageScanner = (*Rekognition)(nil)
	_ VideoScanner = (*Rekognition)(nil)
)
