package moderation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bencyrus/safeupload/internal/oracle"
	"github.com/bencyrus/safeupload/internal/storage"
	"github.com/bencyrus/safeupload/internal/types"
	"github.com/bencyrus/safeupload/shared/logger"
)

// Moderator checks stored objects of one category. It returns an approved,
// rejected or no_content verdict, or an error when the oracle could not
// decide. Deleting rejected objects is left to the pipeline.
type Moderator interface {
	Category() types.Category
	Moderate(ctx context.Context, obj storage.Object) (Verdict, error)
}

// Dispatcher routes objects to registered moderators by category.
type Dispatcher struct {
	moderators map[types.Category]Moderator
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{moderators: map[types.Category]Moderator{}}
}

func (d *Dispatcher) Register(m Moderator) {
	d.moderators[m.Category()] = m
}

func (d *Dispatcher) Get(c types.Category) (Moderator, error) {
	m, ok := d.moderators[c]
	if !ok {
		return nil, fmt.Errorf("no moderator registered for category: %s", c)
	}
	return m, nil
}

// VoiceModerator transcribes audio and applies the text policy to the
// transcript.
type VoiceModerator struct {
	transcriber oracle.Transcriber
	analyzer    oracle.TextAnalyzer
	policy      TextPolicy
	language    string
	allowPII    bool
}

func NewVoiceModerator(t oracle.Transcriber, a oracle.TextAnalyzer, policy TextPolicy, language string, allowPII bool) *VoiceModerator {
	return &VoiceModerator{transcriber: t, analyzer: a, policy: policy, language: language, allowPII: allowPII}
}

func (m *VoiceModerator) Category() types.Category { return types.CategoryVoice }

func (m *VoiceModerator) Moderate(ctx context.Context, obj storage.Object) (Verdict, error) {
	text, err := m.transcriber.Transcribe(ctx, obj.Ref, m.language)
	if err != nil {
		return Verdict{}, fmt.Errorf("transcribe: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return Verdict{Status: types.StatusNoContent, Category: types.CategoryVoice, Message: msgNoSpeech}, nil
	}

	analysis, err := m.analyzer.Analyze(ctx, text, m.language)
	if err != nil {
		return Verdict{}, fmt.Errorf("analyze transcript: %w", err)
	}
	if m.policy.IsBad(analysis, m.allowPII) {
		logger.Info(ctx, "voice transcript failed moderation", logger.Fields{
			"key":       obj.Key,
			"pii":       analysis.HasPII,
			"sentiment": analysis.Sentiment,
		})
		return rejected(types.CategoryVoice, "Unsafe voice content"), nil
	}
	v := approved(types.CategoryVoice, "Voice content safe")
	v.Transcript = text
	return v, nil
}

// ImageModerator scans images synchronously.
type ImageModerator struct {
	scanner oracle.ImageScanner
	policy  LabelPolicy
}

func NewImageModerator(s oracle.ImageScanner, policy LabelPolicy) *ImageModerator {
	return &ImageModerator{scanner: s, policy: policy}
}

func (m *ImageModerator) Category() types.Category { return types.CategoryImage }

func (m *ImageModerator) Moderate(ctx context.Context, obj storage.Object) (Verdict, error) {
	labels, err := m.scanner.Scan(ctx, obj.Ref, m.policy.MinConfidence())
	if err != nil {
		return Verdict{}, fmt.Errorf("scan image: %w", err)
	}
	logger.Debug(ctx, "image labels", logger.Fields{"key": obj.Key, "labels": len(labels)})
	if m.policy.IsBad(labels) {
		return rejected(types.CategoryImage, "Unsafe image content"), nil
	}
	return approved(types.CategoryImage, "Image content safe"), nil
}

// VideoModerator starts an asynchronous scan and polls it to completion.
type VideoModerator struct {
	scanner  oracle.VideoScanner
	policy   LabelPolicy
	interval time.Duration
	timeout  time.Duration
}

func NewVideoModerator(s oracle.VideoScanner, policy LabelPolicy, interval, timeout time.Duration) *VideoModerator {
	return &VideoModerator{scanner: s, policy: policy, interval: interval, timeout: timeout}
}

func (m *VideoModerator) Category() types.Category { return types.CategoryVideo }

func (m *VideoModerator) Moderate(ctx context.Context, obj storage.Object) (Verdict, error) {
	jobID, err := m.scanner.StartJob(ctx, obj.Ref)
	if err != nil {
		return Verdict{}, fmt.Errorf("start video scan: %w", err)
	}
	logger.Info(ctx, "video moderation job started", logger.Fields{"key": obj.Key, "job_id": jobID})

	res, err := oracle.AwaitVideo(ctx, m.scanner, jobID, m.interval, m.timeout)
	if err != nil {
		return Verdict{}, err
	}
	if m.policy.IsBad(res.Labels) {
		return rejected(types.CategoryVideo, "Unsafe video content"), nil
	}
	return approved(types.CategoryVideo, "Video content safe"), nil
}

var (
	_ Moderator = (*VoiceModerator)(nil)
	_ Moderator = (*ImageModerator)(nil)
	_ Moderator = (*VideoModerator)(nil)
)
