// Package moderation stores uploads, runs the category-specific safety
// checks and removes objects whose content was rejected.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bencyrus/safeupload/internal/apperr"
	"github.com/bencyrus/safeupload/internal/classify"
	"github.com/bencyrus/safeupload/internal/oracle"
	"github.com/bencyrus/safeupload/internal/spool"
	"github.com/bencyrus/safeupload/internal/storage"
	"github.com/bencyrus/safeupload/internal/types"
	"github.com/bencyrus/safeupload/shared/logger"
)

const (
	DefaultImageThreshold = 90
	DefaultVideoThreshold = 80
	DefaultLanguage       = "en-US"

	// deleteTimeout bounds the cleanup of a rejected object, which runs even
	// if the request context is already done.
	deleteTimeout = 30 * time.Second
)

// Oracles are the external classifiers the pipeline consults. A nil oracle
// leaves its category without a moderator.
type Oracles struct {
	Text        oracle.TextAnalyzer
	Image       oracle.ImageScanner
	Video       oracle.VideoScanner
	Transcriber oracle.Transcriber
}

// Config holds moderation thresholds and polling bounds. Zero values take
// the defaults.
type Config struct {
	Language          string
	AllowPII          bool
	ImageThreshold    float64
	VideoThreshold    float64
	ToxicityThreshold float64
	PollInterval      time.Duration
	VideoTimeout      time.Duration
	// ImagePolicy replaces the flat image threshold, e.g. with a
	// FilteredPolicy.
	ImagePolicy LabelPolicy
}

func (c Config) withDefaults() Config {
	if c.Language == "" {
		c.Language = DefaultLanguage
	}
	if c.ImageThreshold <= 0 {
		c.ImageThreshold = DefaultImageThreshold
	}
	if c.VideoThreshold <= 0 {
		c.VideoThreshold = DefaultVideoThreshold
	}
	if c.ToxicityThreshold <= 0 {
		c.ToxicityThreshold = DefaultToxicityThreshold
	}
	if c.PollInterval <= 0 {
		c.PollInterval = oracle.DefaultPollInterval
	}
	if c.ImagePolicy == nil {
		c.ImagePolicy = ThresholdPolicy{Threshold: c.ImageThreshold}
	}
	return c
}

// Pipeline moderates uploads against a single store.
type Pipeline struct {
	store      storage.Store
	analyzer   oracle.TextAnalyzer
	textPolicy TextPolicy
	language   string
	dispatcher *Dispatcher
	spool      *spool.Spool
	metrics    *Metrics
}

type Option func(*Pipeline)

// WithSpool buffers upload bodies in temporary files before storing them.
func WithSpool(s *spool.Spool) Option {
	return func(p *Pipeline) { p.spool = s }
}

func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithModerator registers m in place of the default moderator for its
// category.
func WithModerator(m Moderator) Option {
	return func(p *Pipeline) { p.dispatcher.Register(m) }
}

func NewPipeline(store storage.Store, oracles Oracles, cfg Config, opts ...Option) *Pipeline {
	cfg = cfg.withDefaults()
	textPolicy := TextPolicy{ToxicityThreshold: cfg.ToxicityThreshold}

	d := NewDispatcher()
	if oracles.Transcriber != nil && oracles.Text != nil {
		d.Register(NewVoiceModerator(oracles.Transcriber, oracles.Text, textPolicy, cfg.Language, cfg.AllowPII))
	}
	if oracles.Image != nil {
		d.Register(NewImageModerator(oracles.Image, cfg.ImagePolicy))
	}
	if oracles.Video != nil {
		d.Register(NewVideoModerator(oracles.Video, ThresholdPolicy{Threshold: cfg.VideoThreshold}, cfg.PollInterval, cfg.VideoTimeout))
	}

	p := &Pipeline{
		store:      store,
		analyzer:   oracles.Text,
		textPolicy: textPolicy,
		language:   cfg.Language,
		dispatcher: d,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ModerateMedia stores the upload, moderates it by category and deletes it
// if rejected. Oracle failures return an error and leave the object stored.
func (p *Pipeline) ModerateMedia(ctx context.Context, up Upload) (v Verdict, err error) {
	const op = "moderate media"
	start := time.Now()
	category := classify.Categorize(up.Filename)
	defer func() { p.metrics.observe(category, v.Status, err, time.Since(start)) }()

	obj, err := p.put(ctx, op, up)
	if err != nil {
		return Verdict{}, err
	}
	fields := logger.Fields{"key": obj.Key, "category": category, "filename": up.Filename}
	logger.Info(ctx, "upload stored", fields)

	if !category.Moderated() {
		return Verdict{
			Status:   types.StatusUploaded,
			Category: category,
			Message:  msgUploaded,
			FileURL:  obj.URL,
		}, nil
	}

	m, err := p.dispatcher.Get(category)
	if err != nil {
		return Verdict{}, apperr.E(apperr.KindUnexpected, op, err)
	}
	v, err = m.Moderate(ctx, obj)
	if err != nil {
		logger.Error(ctx, "moderation did not complete, object kept", err, fields)
		return Verdict{}, oracleError(op, err)
	}
	v.Category = category

	if v.Status == types.StatusRejected {
		p.discard(ctx, obj)
		v.Action = actionDeleted
		v.FileURL = ""
	} else {
		v.FileURL = obj.URL
	}
	logger.Info(ctx, "media moderated", logger.Fields{"key": obj.Key, "category": category, "status": v.Status})
	return v, nil
}

// ModerateText checks text before anything is written. Only approved text
// is stored, under txt/{uuid}.txt.
func (p *Pipeline) ModerateText(ctx context.Context, text string, allowPII bool) (v TextVerdict, err error) {
	const op = "moderate text"
	start := time.Now()
	defer func() { p.metrics.observe(types.CategoryDocument, v.Status, err, time.Since(start)) }()

	text = strings.TrimSpace(text)
	if text == "" {
		return TextVerdict{}, apperr.Validation(msgTextEmpty)
	}
	if p.analyzer == nil {
		return TextVerdict{}, apperr.E(apperr.KindUnexpected, op, errors.New("no text analyzer configured"))
	}

	analysis, err := p.analyzer.Analyze(ctx, text, p.language)
	if err != nil {
		logger.Error(ctx, "text analysis failed", err)
		return TextVerdict{}, oracleError(op, err)
	}
	if p.textPolicy.IsBad(analysis, allowPII) {
		logger.Info(ctx, "text failed moderation", logger.Fields{
			"pii":       analysis.HasPII,
			"allow_pii": allowPII,
			"sentiment": analysis.Sentiment,
		})
		return TextVerdict{
			Status:   types.StatusRejected,
			Reason:   reasonTextBad,
			Action:   actionNotUploaded,
			Uploaded: false,
		}, nil
	}

	key := classify.TextKey()
	if err := p.store.Put(ctx, key, strings.NewReader(text), "text/plain; charset=utf-8"); err != nil {
		return TextVerdict{}, storeError("put "+key, err)
	}
	logger.Info(ctx, "text approved and stored", logger.Fields{"key": key})
	return TextVerdict{
		Status:   types.StatusApproved,
		Message:  msgTextApproved,
		FileURL:  p.store.URL(key),
		Uploaded: true,
	}, nil
}

// Upload stores a file without moderation.
func (p *Pipeline) Upload(ctx context.Context, up Upload) (storage.Object, error) {
	obj, err := p.put(ctx, "upload", up)
	if err != nil {
		return storage.Object{}, err
	}
	logger.Info(ctx, "file uploaded without moderation", logger.Fields{"key": obj.Key, "filename": up.Filename})
	return obj, nil
}

// put spools the body when a spool is configured and writes it under a
// fresh key. The spool file is gone when put returns.
func (p *Pipeline) put(ctx context.Context, op string, up Upload) (storage.Object, error) {
	if strings.TrimSpace(up.Filename) == "" {
		return storage.Object{}, apperr.Validation("A file with a name is required")
	}
	if up.Body == nil {
		return storage.Object{}, apperr.Validation("File content is required")
	}

	body := up.Body
	if p.spool != nil {
		f, err := p.spool.Write(up.Body)
		if err != nil {
			return storage.Object{}, apperr.E(apperr.KindValidation, op, fmt.Errorf("failed to read upload: %w", err))
		}
		defer func() {
			if err := f.Close(); err != nil {
				logger.WarnErr(ctx, "failed to remove spool file", err, logger.Fields{"path": f.Name()})
			}
		}()
		logger.Debug(ctx, "upload spooled", logger.Fields{"path": f.Name(), "size_bytes": f.Size()})
		body = f
	}

	key := classify.NewKey(up.Filename)
	if err := p.store.Put(ctx, key, body, classify.ContentType(up.Filename)); err != nil {
		logger.Error(ctx, "failed to store upload", err, logger.Fields{"key": key})
		return storage.Object{}, storeError("put "+key, err)
	}
	return storage.Stored(p.store, key), nil
}

// discard deletes a rejected object. Failures are logged; the verdict stands.
func (p *Pipeline) discard(ctx context.Context, obj storage.Object) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deleteTimeout)
	defer cancel()
	if err := p.store.Delete(ctx, obj.Key); err != nil {
		logger.Error(ctx, "failed to delete rejected object", err, logger.Fields{"key": obj.Key})
		return
	}
	logger.Info(ctx, "rejected object deleted", logger.Fields{"key": obj.Key})
}

func storeError(op string, err error) error {
	if apperr.KindOf(err) != apperr.KindUnexpected {
		return err
	}
	return apperr.E(apperr.KindStore, op, err)
}

func oracleError(op string, err error) error {
	switch {
	case errors.Is(err, oracle.ErrTimeout):
		return apperr.E(apperr.KindTimeout, op, err)
	case apperr.KindOf(err) != apperr.KindUnexpected:
		return err
	default:
		return apperr.E(apperr.KindOracle, op, err)
	}
}
