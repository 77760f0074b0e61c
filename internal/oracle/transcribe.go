package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/transcribe"
	transcribetypes "github.com/aws/aws-sdk-go-v2/service/transcribe/types"
	"github.com/google/uuid"

	"github.com/bencyrus/safeupload/internal/storage"
	"github.com/bencyrus/safeupload/shared/logger"
)

// TranscribeAPI is the subset of *transcribe.Client used for speech to text.
type TranscribeAPI interface {
	StartTranscriptionJob(ctx context.Context, in *transcribe.StartTranscriptionJobInput, opts ...func(*transcribe.Options)) (*transcribe.StartTranscriptionJobOutput, error)
	GetTranscriptionJob(ctx context.Context, in *transcribe.GetTranscriptionJobInput, opts ...func(*transcribe.Options)) (*transcribe.GetTranscriptionJobOutput, error)
}

// TranscriptGetter reads transcripts written to a caller-owned bucket.
// *s3.Client satisfies it.
type TranscriptGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// TranscribeOptions tunes job polling and where results are written.
type TranscribeOptions struct {
	PollInterval time.Duration
	Timeout      time.Duration
	// OutputBucket stores transcripts in a caller-owned bucket instead of
	// the service-managed one. They are read back through OutputReader,
	// since the bucket is private.
	OutputBucket string
	OutputReader TranscriptGetter
	// HTTPClient downloads transcripts from the service-managed bucket.
	HTTPClient *http.Client
}

// Transcribe implements Transcriber with Amazon Transcribe.
type Transcribe struct {
	client TranscribeAPI
	opts   TranscribeOptions
}

func NewTranscribe(client TranscribeAPI, opts TranscribeOptions) *Transcribe {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Transcribe{client: client, opts: opts}
}

// Transcribe starts a transcription job for an S3 audio object, waits for it
// to finish and downloads the transcript text.
func (t *Transcribe) Transcribe(ctx context.Context, ref storage.Ref, language string) (string, error) {
	if ref.Backend != storage.BackendS3 {
		return "", fmt.Errorf("transcribe %s: %w: upload the file to S3 first", ref.URI(), ErrUnsupportedRef)
	}
	format, ok := mediaFormat(ref.Key)
	if !ok {
		return "", fmt.Errorf("transcribe %s: %w %q", ref.URI(), ErrUnsupportedFormat, format)
	}
	if t.opts.OutputBucket != "" && t.opts.OutputReader == nil {
		return "", fmt.Errorf("transcribe %s: output bucket %s set without a reader", ref.URI(), t.opts.OutputBucket)
	}
	if language == "" {
		language = "en-US"
	}
	jobName := "transcribe-job-" + uuid.NewString()

	logger.Info(ctx, "starting transcription job", logger.Fields{
		"job_name": jobName,
		"media":    ref.URI(),
	})

	in := &transcribe.StartTranscriptionJobInput{
		TranscriptionJobName: aws.String(jobName),
		Media:                &transcribetypes.Media{MediaFileUri: aws.String(ref.URI())},
		MediaFormat:          format,
		LanguageCode:         transcribetypes.LanguageCode(language),
	}
	if t.opts.OutputBucket != "" {
		in.OutputBucketName = aws.String(t.opts.OutputBucket)
	}
	if _, err := t.client.StartTranscriptionJob(ctx, in); err != nil {
		return "", fmt.Errorf("start transcription job %s: %w", jobName, err)
	}

	var job *transcribetypes.TranscriptionJob
	err := Wait(ctx, t.opts.PollInterval, t.opts.Timeout, func(ctx context.Context) (bool, error) {
		out, err := t.client.GetTranscriptionJob(ctx, &transcribe.GetTranscriptionJobInput{
			TranscriptionJobName: aws.String(jobName),
		})
		if err != nil {
			return false, fmt.Errorf("get transcription job %s: %w", jobName, err)
		}
		if out.TranscriptionJob == nil {
			return false, fmt.Errorf("get transcription job %s: response missing job", jobName)
		}
		job = out.TranscriptionJob
		switch job.TranscriptionJobStatus {
		case transcribetypes.TranscriptionJobStatusCompleted, transcribetypes.TranscriptionJobStatusFailed:
			return true, nil
		}
		logger.Debug(ctx, "transcription in progress", logger.Fields{"job_name": jobName})
		return false, nil
	})
	if err != nil {
		return "", err
	}

	if job.TranscriptionJobStatus == transcribetypes.TranscriptionJobStatusFailed {
		reason := aws.ToString(job.FailureReason)
		if reason == "" {
			reason = "Unknown error"
		}
		return "", fmt.Errorf("transcription job %s: %w: %s", jobName, ErrJobFailed, reason)
	}
	var text string
	if t.opts.OutputBucket != "" {
		text, err = t.readTranscript(ctx, jobName+".json")
	} else {
		if job.Transcript == nil || aws.ToString(job.Transcript.TranscriptFileUri) == "" {
			return "", fmt.Errorf("transcription job %s: completed without transcript uri", jobName)
		}
		text, err = t.fetchTranscript(ctx, aws.ToString(job.Transcript.TranscriptFileUri))
	}
	if err != nil {
		return "", fmt.Errorf("transcription job %s: %w", jobName, err)
	}
	logger.Info(ctx, "transcription completed", logger.Fields{"job_name": jobName, "media": ref.URI()})
	return text, nil
}

type transcriptDocument struct {
	Results struct {
		Transcripts []struct {
			Transcript string `json:"transcript"`
		} `json:"transcripts"`
	} `json:"results"`
}

func (t *Transcribe) fetchTranscript(ctx context.Context, uri string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create transcript request: %w", err)
	}
	resp, err := t.opts.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download transcript: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("transcript download returned %d: %s", resp.StatusCode, string(body))
	}

	return decodeTranscript(resp.Body)
}

// readTranscript reads the transcript the job wrote to the output bucket.
func (t *Transcribe) readTranscript(ctx context.Context, key string) (string, error) {
	out, err := t.opts.OutputReader.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(t.opts.OutputBucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("failed to read transcript s3://%s/%s: %w", t.opts.OutputBucket, key, err)
	}
	defer out.Body.Close()
	return decodeTranscript(out.Body)
}

func decodeTranscript(r io.Reader) (string, error) {
	var doc transcriptDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return "", fmt.Errorf("failed to parse transcript: %w", err)
	}
	if len(doc.Results.Transcripts) == 0 {
		return "", nil
	}
	return doc.Results.Transcripts[0].Transcript, nil
}

// mediaFormat derives the Transcribe media format from the key's extension
// and reports whether the service accepts it.
func mediaFormat(key string) (transcribetypes.MediaFormat, bool) {
	format := transcribetypes.MediaFormat(strings.ToLower(strings.TrimPrefix(path.Ext(key), ".")))
	for _, f := range format.Values() {
		if f == format {
			return format, true
		}
	}
	return format, false
}

var _ Transcriber = (*Transcribe)(nil)
