package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bencyrus/safeupload/internal/moderation"
	"github.com/bencyrus/safeupload/internal/storage"
	"github.com/bencyrus/safeupload/shared/logger"
	"github.com/bencyrus/safeupload/shared/middleware"
)

// Moderator is the pipeline surface the handlers need.
type Moderator interface {
	ModerateMedia(ctx context.Context, up moderation.Upload) (moderation.Verdict, error)
	ModerateText(ctx context.Context, text string, allowPII bool) (moderation.TextVerdict, error)
	Upload(ctx context.Context, up moderation.Upload) (storage.Object, error)
}

// Options configures request handling. Zero values take defaults.
type Options struct {
	MaxUploadBytes int64
	AllowPII       bool
	DefaultRegion  string
	SignedURLTTL   time.Duration
	CORSOrigins    []string
	Gatherer       prometheus.Gatherer
}

const (
	defaultMaxUploadBytes = 100 << 20
	defaultRegion         = "us-east-2"
	defaultSignedURLTTL   = 15 * time.Minute
)

// Server holds dependencies for handling HTTP requests.
type Server struct {
	pipeline Moderator
	buckets  storage.BucketManager
	signer   storage.URLSigner
	opts     Options
}

// NewServer constructs a new HTTP server instance. buckets and signer may be
// nil when the store does not support them.
func NewServer(pipeline Moderator, buckets storage.BucketManager, signer storage.URLSigner, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if opts.DefaultRegion == "" {
		opts.DefaultRegion = defaultRegion
	}
	if opts.SignedURLTTL <= 0 {
		opts.SignedURLTTL = defaultSignedURLTTL
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	return &Server{pipeline: pipeline, buckets: buckets, signer: signer, opts: opts}
}

// Handler wires every endpoint, including the legacy path aliases, and wraps
// the mux with the shared middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	media := allow(http.MethodPost, s.MediaHandler)
	mux.Handle("/media", media)
	mux.Handle("/media-moderation/{$}", media)

	text := allow(http.MethodPost, s.TextHandler)
	mux.Handle("/text", text)
	mux.Handle("/text-moderation/{$}", text)

	bucket := allow(http.MethodPost, s.CreateBucketHandler)
	mux.Handle("/bucket", bucket)
	mux.Handle("/s3-router/{$}", bucket)

	buckets := allow(http.MethodGet, s.ListBucketsHandler)
	mux.Handle("/buckets", buckets)
	mux.Handle("/s3-router/get-all-buckets", buckets)

	upload := allow(http.MethodPost, s.UploadHandler)
	mux.Handle("/upload", upload)
	mux.Handle("/s3-router/upload-to-s3", upload)

	mux.Handle("/signed-urls", allow(http.MethodPost, s.SignedURLHandler))
	mux.Handle("/openapi.json", allow(http.MethodGet, s.OpenAPIHandler))
	mux.HandleFunc("/healthz", s.HealthzHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))

	return middleware.RequestIDMiddleware(middleware.CORS(s.opts.CORSOrigins)(mux))
}

// HealthzHandler responds to health checks.
func (s *Server) HealthzHandler(w http.ResponseWriter, r *http.Request) {
	logger.Debug(r.Context(), "health check requested")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func allow(method string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			logger.Warn(r.Context(), "method not allowed", logger.Fields{
				"method": r.Method,
				"path":   r.URL.Path,
			})
			w.Header().Set("Allow", method)
			writeDetail(w, r, http.StatusMethodNotAllowed, "Method Not Allowed")
			return
		}
		h(w, r)
	})
}
