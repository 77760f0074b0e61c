// Package oracle defines the contracts of the external classification
// services the moderation pipeline consults, and AWS-backed implementations.
package oracle

import (
	"context"
	"errors"

	"github.com/bencyrus/safeupload/internal/storage"
)

var (
	// ErrTimeout means a polled job did not reach a terminal state in time.
	ErrTimeout = errors.New("oracle: timed out waiting for job")
	// ErrJobFailed means an asynchronous job ended in FAILED.
	ErrJobFailed = errors.New("oracle: job failed")
	// ErrUnsupportedRef means the service cannot read objects from the ref's backend.
	ErrUnsupportedRef = errors.New("oracle: object reference not readable by service")
	// ErrUnsupportedFormat means the service cannot process the file's media format.
	ErrUnsupportedFormat = errors.New("oracle: unsupported media format")
)

// Sentiment is the dominant sentiment of a text.
type Sentiment string

const (
	SentimentPositive Sentiment = "POSITIVE"
	SentimentNegative Sentiment = "NEGATIVE"
	SentimentNeutral  Sentiment = "NEUTRAL"
	SentimentMixed    Sentiment = "MIXED"
)

// ToxicLabel is one toxicity class with its score in [0,1].
type ToxicLabel struct {
	Name  string
	Score float64
}

// TextAnalysis is the combined result of PII, sentiment and toxicity checks.
type TextAnalysis struct {
	HasPII      bool
	Sentiment   Sentiment
	ToxicLabels []ToxicLabel
	// ToxicityAvailable is false when the toxicity check could not run, in
	// which case ToxicLabels is empty.
	ToxicityAvailable bool
}

// Label is a detected moderation label with confidence in [0,100].
type Label struct {
	Name       string
	Parent     string
	Confidence float64
}

// JobStatus is the state of an asynchronous video job.
type JobStatus string

const (
	JobInProgress JobStatus = "IN_PROGRESS"
	JobSucceeded  JobStatus = "SUCCEEDED"
	JobFailed     JobStatus = "FAILED"
)

// Terminal reports whether no further polling is needed.
func (s JobStatus) Terminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// JobResult is one poll of a video job. Labels are set once it succeeded.
type JobResult struct {
	Status  JobStatus
	Labels  []Label
	Message string
}

// TextAnalyzer checks text for PII, sentiment and toxicity.
type TextAnalyzer interface {
	Analyze(ctx context.Context, text, language string) (TextAnalysis, error)
}

// ImageScanner lists moderation labels on a stored image.
type ImageScanner interface {
	Scan(ctx context.Context, ref storage.Ref, minConfidence float64) ([]Label, error)
}

// VideoScanner runs asynchronous moderation jobs on stored videos.
type VideoScanner interface {
	StartJob(ctx context.Context, ref storage.Ref) (string, error)
	Poll(ctx context.Context, jobID string) (JobResult, error)
}

// Transcriber converts stored audio to text. It blocks until the
// transcription finishes.
type Transcriber interface {
	Transcribe(ctx context.Context, ref storage.Ref, language string) (string, error)
}
