package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/comprehend"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/transcribe"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bencyrus/safeupload/internal/config"
	"github.com/bencyrus/safeupload/internal/httpserver"
	"github.com/bencyrus/safeupload/internal/moderation"
	"github.com/bencyrus/safeupload/internal/oracle"
	"github.com/bencyrus/safeupload/internal/spool"
	"github.com/bencyrus/safeupload/internal/storage"
	"github.com/bencyrus/safeupload/shared/logger"
)

const (
	metricsNamespace   = "safeupload"
	gcsDefaultLocation = "US"
)

type app struct {
	server  *httpserver.Server
	janitor *spool.Janitor
	closers []func() error
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			logger.WarnErr(context.Background(), "failed to close client", err)
		}
	}
}

// build wires the store, oracles and moderation pipeline from cfg.
func build(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	base, err := newStore(ctx, cfg, awsCfg, a)
	if err != nil {
		return nil, err
	}
	observer, err := storage.NewPrometheusObserver(metricsNamespace+"_store", prometheus.DefaultRegisterer)
	if err != nil {
		return nil, err
	}
	store := storage.NewObservedStore(storage.NewRetryingStore(base, cfg.DeleteRetryMax, nil), observer)

	rek := oracle.NewRekognition(rekognition.NewFromConfig(awsCfg), store)
	oracles := moderation.Oracles{
		Text:  oracle.NewComprehend(comprehend.NewFromConfig(awsCfg)),
		Image: rek,
		Video: rek,
		Transcriber: oracle.NewTranscribe(transcribe.NewFromConfig(awsCfg), oracle.TranscribeOptions{
			PollInterval: cfg.PollInterval,
			Timeout:      cfg.TranscribeTimeout,
			OutputBucket: cfg.TranscribeOutputBucket,
			OutputReader: s3.NewFromConfig(awsCfg),
		}),
	}

	sp, err := spool.New(cfg.SpoolDir)
	if err != nil {
		return nil, err
	}
	a.janitor, err = spool.NewJanitor(sp, cfg.SpoolMaxAge, cfg.SpoolSweepSchedule)
	if err != nil {
		return nil, err
	}

	metrics, err := moderation.NewMetrics(metricsNamespace, prometheus.DefaultRegisterer)
	if err != nil {
		return nil, err
	}

	modCfg := moderation.Config{
		Language:          cfg.LanguageCode,
		AllowPII:          cfg.AllowPII,
		ImageThreshold:    cfg.ImageThreshold,
		VideoThreshold:    cfg.VideoThreshold,
		ToxicityThreshold: cfg.ToxicityThreshold,
		PollInterval:      cfg.PollInterval,
		VideoTimeout:      cfg.VideoTimeout,
	}
	if cfg.ImagePolicy == config.ImagePolicyFiltered {
		modCfg.ImagePolicy = moderation.NewFilteredPolicy(cfg.ImageThreshold)
	}
	pipeline := moderation.NewPipeline(store, oracles, modCfg,
		moderation.WithSpool(sp),
		moderation.WithMetrics(metrics),
	)

	region := cfg.AWSRegion
	if cfg.StorageBackend == config.BackendGCS {
		// GCS locations are not AWS regions.
		region = gcsDefaultLocation
	}
	a.server = httpserver.NewServer(pipeline, store, store, httpserver.Options{
		MaxUploadBytes: cfg.MaxUploadBytes,
		AllowPII:       cfg.AllowPII,
		DefaultRegion:  region,
		SignedURLTTL:   cfg.SignedURLTTL,
		CORSOrigins:    cfg.CORSOrigins,
	})
	return a, nil
}

func loadAWSConfig(ctx context.Context, cfg config.Config) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
		// Oracle job starts and puts must not be replayed by the SDK; deletes
		// are retried by storage.RetryingStore instead.
		awsconfig.WithRetryer(func() aws.Retryer { return aws.NopRetryer{} }),
	}
	if cfg.AWSAccessKeyID != "" && cfg.AWSSecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load aws config: %w", err)
	}
	return awsCfg, nil
}

func newStore(ctx context.Context, cfg config.Config, awsCfg aws.Config, a *app) (storage.Store, error) {
	switch cfg.StorageBackend {
	case config.BackendS3:
		s3Cfg := storage.S3Config{
			Bucket:      cfg.S3Bucket,
			Region:      cfg.AWSRegion,
			EndpointURL: cfg.S3EndpointURL,
			AccessKey:   cfg.AWSAccessKeyID,
			SecretKey:   cfg.AWSSecretAccessKey,
		}
		client := storage.NewS3Client(awsCfg, s3Cfg)
		st, err := storage.NewS3Store(client, s3Cfg)
		if err != nil {
			return nil, err
		}
		return st.WithPresigner(s3.NewPresignClient(client)), nil
	case config.BackendGCS:
		gcsCfg := storage.GCSConfig{
			Bucket:            cfg.GCSBucket,
			ProjectID:         cfg.GCSProjectID,
			EndpointURL:       cfg.GCSEndpointURL,
			SigningEmail:      cfg.GCSSigningEmail,
			SigningPrivateKey: cfg.GCSSigningPrivateKey,
		}
		client, err := storage.NewGCSClient(ctx, gcsCfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		st, err := storage.NewGCSStore(client, gcsCfg)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.BackendMemory:
		logger.Warn(ctx, "using in-memory object store; uploads are lost on restart")
		return storage.NewMemoryStore(cfg.S3Bucket, cfg.MemoryBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
