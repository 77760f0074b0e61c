package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port            string
	LogLevel        string
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	MaxUploadBytes  int64

	// Storage
	StorageBackend       string
	AWSRegion            string
	S3Bucket             string
	S3EndpointURL        string
	AWSAccessKeyID       string
	AWSSecretAccessKey   string
	GCSBucket            string
	GCSProjectID         string
	GCSEndpointURL       string
	GCSSigningEmail      string
	GCSSigningPrivateKey string
	MemoryBaseURL        string
	DeleteRetryMax       time.Duration
	SignedURLTTL         time.Duration

	// Moderation
	ImageThreshold         float64
	VideoThreshold         float64
	ToxicityThreshold      float64
	ImagePolicy            string
	AllowPII               bool
	LanguageCode           string
	PollInterval           time.Duration
	VideoTimeout           time.Duration
	TranscribeTimeout      time.Duration
	TranscribeOutputBucket string

	// Spool
	SpoolDir           string
	SpoolMaxAge        time.Duration
	SpoolSweepSchedule string
}

// Environment variable names
const (
	EnvConfigFile      = "CONFIG_FILE"
	EnvPort            = "PORT"
	EnvLogLevel        = "LOG_LEVEL"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT_SECONDS"
	EnvCORSOrigins     = "CORS_ALLOWED_ORIGINS"
	EnvMaxUploadBytes  = "MAX_UPLOAD_BYTES"
	// Storage
	EnvStorageBackend       = "STORAGE_BACKEND"
	EnvAWSRegion            = "AWS_REGION"
	EnvS3Bucket             = "S3_BUCKET"
	EnvS3EndpointURL        = "S3_ENDPOINT_URL"
	EnvAWSAccessKeyID       = "AWS_ACCESS_KEY_ID"
	EnvAWSSecretAccessKey   = "AWS_SECRET_ACCESS_KEY"
	EnvGCSBucket            = "GCS_BUCKET"
	EnvGCSProjectID         = "GCS_PROJECT_ID"
	EnvGCSEndpointURL       = "GCS_ENDPOINT_URL"
	EnvGCSSigningEmail      = "GCS_SIGNING_EMAIL"
	EnvGCSSigningPrivateKey = "GCS_SIGNING_PRIVATE_KEY"
	EnvMemoryBaseURL        = "MEMORY_BASE_URL"
	EnvDeleteRetryMax       = "DELETE_RETRY_MAX_SECONDS"
	EnvSignedURLTTL         = "SIGNED_URL_TTL_SECONDS"
	// Moderation
	EnvImageThreshold         = "IMAGE_CONFIDENCE_THRESHOLD"
	EnvVideoThreshold         = "VIDEO_CONFIDENCE_THRESHOLD"
	EnvToxicityThreshold      = "TOXICITY_THRESHOLD"
	EnvImagePolicy            = "IMAGE_POLICY"
	EnvAllowPII               = "ALLOW_PII"
	EnvLanguageCode           = "LANGUAGE_CODE"
	EnvPollInterval           = "POLL_INTERVAL_SECONDS"
	EnvVideoTimeout           = "VIDEO_TIMEOUT_SECONDS"
	EnvTranscribeTimeout      = "TRANSCRIBE_TIMEOUT_SECONDS"
	EnvTranscribeOutputBucket = "TRANSCRIBE_OUTPUT_BUCKET"
	// Spool
	EnvSpoolDir           = "SPOOL_DIR"
	EnvSpoolMaxAge        = "SPOOL_MAX_AGE_SECONDS"
	EnvSpoolSweepSchedule = "SPOOL_SWEEP_SCHEDULE"
)

const (
	BackendS3     = "s3"
	BackendGCS    = "gcs"
	BackendMemory = "memory"

	ImagePolicyFlat     = "flat"
	ImagePolicyFiltered = "filtered"
)

var defaults = map[string]any{
	EnvPort:               "8080",
	EnvLogLevel:           "info",
	EnvShutdownTimeout:    "10",
	EnvCORSOrigins:        "*",
	EnvMaxUploadBytes:     strconv.Itoa(100 << 20),
	EnvStorageBackend:     BackendS3,
	EnvAWSRegion:          "us-east-2",
	EnvMemoryBaseURL:      "http://localhost:8080/objects",
	EnvDeleteRetryMax:     "5",
	EnvSignedURLTTL:       "900",
	EnvImageThreshold:     "90",
	EnvVideoThreshold:     "80",
	EnvToxicityThreshold:  "0.7",
	EnvImagePolicy:        ImagePolicyFlat,
	EnvAllowPII:           "false",
	EnvLanguageCode:       "en-US",
	EnvPollInterval:       "5",
	EnvVideoTimeout:       "900",
	EnvTranscribeTimeout:  "600",
	EnvSpoolMaxAge:        "3600",
	EnvSpoolSweepSchedule: "@every 10m",
}

// Load reads configuration from the environment, optionally layered over the
// file named by CONFIG_FILE. Invalid or missing required values panic.
func Load() Config {
	v := viper.New()
	for k, def := range defaults {
		v.SetDefault(k, def)
	}
	v.AutomaticEnv()

	if file := strings.TrimSpace(v.GetString(EnvConfigFile)); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			panic(fmt.Sprintf("failed to read %s: %v", file, err))
		}
	}

	r := reader{v: v}
	cfg := Config{
		Port:            r.str(EnvPort),
		LogLevel:        strings.ToLower(r.str(EnvLogLevel)),
		ShutdownTimeout: r.seconds(EnvShutdownTimeout),
		CORSOrigins:     r.list(EnvCORSOrigins),
		MaxUploadBytes:  int64(r.positiveInt(EnvMaxUploadBytes)),

		StorageBackend:       strings.ToLower(r.str(EnvStorageBackend)),
		AWSRegion:            r.str(EnvAWSRegion),
		S3Bucket:             r.str(EnvS3Bucket),
		S3EndpointURL:        r.str(EnvS3EndpointURL),
		AWSAccessKeyID:       r.str(EnvAWSAccessKeyID),
		AWSSecretAccessKey:   r.str(EnvAWSSecretAccessKey),
		GCSBucket:            r.str(EnvGCSBucket),
		GCSProjectID:         r.str(EnvGCSProjectID),
		GCSEndpointURL:       r.str(EnvGCSEndpointURL),
		GCSSigningEmail:      r.str(EnvGCSSigningEmail),
		GCSSigningPrivateKey: r.str(EnvGCSSigningPrivateKey),
		MemoryBaseURL:        r.str(EnvMemoryBaseURL),
		DeleteRetryMax:       r.seconds(EnvDeleteRetryMax),
		SignedURLTTL:         r.seconds(EnvSignedURLTTL),

		ImageThreshold:         r.percent(EnvImageThreshold),
		VideoThreshold:         r.percent(EnvVideoThreshold),
		ToxicityThreshold:      r.fraction(EnvToxicityThreshold),
		ImagePolicy:            strings.ToLower(r.str(EnvImagePolicy)),
		AllowPII:               r.boolean(EnvAllowPII),
		LanguageCode:           r.str(EnvLanguageCode),
		PollInterval:           r.seconds(EnvPollInterval),
		VideoTimeout:           r.seconds(EnvVideoTimeout),
		TranscribeTimeout:      r.seconds(EnvTranscribeTimeout),
		TranscribeOutputBucket: r.str(EnvTranscribeOutputBucket),

		SpoolDir:           r.str(EnvSpoolDir),
		SpoolMaxAge:        r.seconds(EnvSpoolMaxAge),
		SpoolSweepSchedule: r.str(EnvSpoolSweepSchedule),
	}

	switch cfg.StorageBackend {
	case BackendS3:
		if cfg.S3Bucket == "" {
			panic("S3_BUCKET is required when STORAGE_BACKEND=s3")
		}
	case BackendGCS:
		if cfg.GCSBucket == "" {
			panic("GCS_BUCKET is required when STORAGE_BACKEND=gcs")
		}
	case BackendMemory:
		if cfg.S3Bucket == "" {
			cfg.S3Bucket = "local"
		}
	default:
		panic(fmt.Sprintf("invalid STORAGE_BACKEND %q: must be s3, gcs or memory", cfg.StorageBackend))
	}

	if cfg.ImagePolicy != ImagePolicyFlat && cfg.ImagePolicy != ImagePolicyFiltered {
		panic(fmt.Sprintf("invalid IMAGE_POLICY %q: must be flat or filtered", cfg.ImagePolicy))
	}
	if cfg.PollInterval <= 0 {
		panic("invalid POLL_INTERVAL_SECONDS: must be positive")
	}

	return cfg
}

type reader struct {
	v *viper.Viper
}

func (r reader) str(key string) string {
	return strings.TrimSpace(r.v.GetString(key))
}

func (r reader) list(key string) []string {
	parts := strings.Split(r.str(key), ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (r reader) positiveInt(key string) int {
	n, err := strconv.Atoi(r.str(key))
	if err != nil || n <= 0 {
		panic(fmt.Sprintf("invalid %s: must be a positive integer", key))
	}
	return n
}

func (r reader) seconds(key string) time.Duration {
	n, err := strconv.Atoi(r.str(key))
	if err != nil || n < 0 {
		panic(fmt.Sprintf("invalid %s: must be integer seconds", key))
	}
	return time.Duration(n) * time.Second
}

func (r reader) float(key string, max float64) float64 {
	f, err := strconv.ParseFloat(r.str(key), 64)
	if err != nil || f < 0 || f > max {
		panic(fmt.Sprintf("invalid %s: must be a number between 0 and %g", key, max))
	}
	return f
}

func (r reader) percent(key string) float64  { return r.float(key, 100) }
func (r reader) fraction(key string) float64 { return r.float(key, 1) }

func (r reader) boolean(key string) bool {
	b, err := strconv.ParseBool(r.str(key))
	if err != nil {
		panic(fmt.Sprintf("invalid %s: must be true or false", key))
	}
	return b
}
