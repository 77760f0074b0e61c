package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/bencyrus/safeupload/internal/apperr"
	"github.com/bencyrus/safeupload/internal/moderation"
	"github.com/bencyrus/safeupload/internal/storage"
	"github.com/bencyrus/safeupload/internal/types"
	"github.com/bencyrus/safeupload/shared/logger"
)

const fileField = "file"

// MediaHandler stores and moderates a multipart upload. Every verdict,
// including rejection, is a 200.
func (s *Server) MediaHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	part, err := s.filePart(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer part.Close()

	logger.Debug(ctx, "moderating media upload", logger.Fields{"filename": part.FileName()})

	verdict, err := s.pipeline.ModerateMedia(ctx, moderation.Upload{Filename: part.FileName(), Body: part})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, verdict.Response())
}

// TextHandler moderates a JSON text submission and stores it if approved.
func (s *Server) TextHandler(w http.ResponseWriter, r *http.Request) {
	var req types.TextRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	allowPII := s.opts.AllowPII
	if req.AllowPII != nil {
		allowPII = *req.AllowPII
	}

	verdict, err := s.pipeline.ModerateText(r.Context(), req.Text, allowPII)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, verdict.Response())
}

// CreateBucketHandler validates the name and creates the bucket. A store
// failure is reported as is_created=false rather than an error status.
func (s *Server) CreateBucketHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req types.BucketRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := storage.ValidateBucketName(req.Name); err != nil {
		writeError(w, r, err)
		return
	}
	if s.buckets == nil {
		writeError(w, r, storage.ErrBucketsUnsupported)
		return
	}
	region := strings.TrimSpace(req.Region)
	if region == "" {
		region = s.opts.DefaultRegion
	}

	err := s.buckets.CreateBucket(ctx, req.Name, region)
	switch {
	case err == nil:
		logger.Info(ctx, "bucket created", logger.Fields{"bucket": req.Name, "region": region})
	case errors.Is(err, storage.ErrBucketsUnsupported):
		writeError(w, r, err)
		return
	default:
		logger.Error(ctx, "failed to create bucket", err, logger.Fields{"bucket": req.Name, "region": region})
	}
	writeJSON(w, r, http.StatusOK, types.BucketResponse{IsCreated: err == nil})
}

// ListBucketsHandler returns the names of all visible buckets.
func (s *Server) ListBucketsHandler(w http.ResponseWriter, r *http.Request) {
	if s.buckets == nil {
		writeError(w, r, storage.ErrBucketsUnsupported)
		return
	}
	names, err := s.buckets.ListBuckets(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, r, http.StatusOK, types.BucketListResponse{Buckets: names})
}

// UploadHandler stores a multipart upload without moderation.
func (s *Server) UploadHandler(w http.ResponseWriter, r *http.Request) {
	part, err := s.filePart(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer part.Close()

	obj, err := s.pipeline.Upload(r.Context(), moderation.Upload{Filename: part.FileName(), Body: part})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, types.UploadResponse{Message: "File uploaded successfully", URL: obj.URL})
}

type signedURLRequest struct {
	Keys []any `json:"keys"`
}

type signedURL struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// SignedURLHandler issues time-limited download URLs for stored keys.
// Entries that are not non-empty strings, or that fail to sign, are skipped.
func (s *Server) SignedURLHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req signedURLRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Keys == nil {
		writeError(w, r, apperr.Validation("missing keys"))
		return
	}
	if s.signer == nil {
		writeError(w, r, storage.ErrSigningUnsupported)
		return
	}

	logger.Debug(ctx, "processing signed URL request", logger.Fields{"keys_count": len(req.Keys)})

	out := make([]signedURL, 0, len(req.Keys))
	for _, item := range req.Keys {
		key, ok := item.(string)
		if !ok || strings.TrimSpace(key) == "" {
			continue
		}
		url, err := s.signer.SignedURL(ctx, key, s.opts.SignedURLTTL)
		if errors.Is(err, storage.ErrSigningUnsupported) {
			writeError(w, r, err)
			return
		}
		if err != nil {
			logger.Error(ctx, "failed to generate signed URL", err, logger.Fields{"key": key})
			continue
		}
		out = append(out, signedURL{Key: key, URL: url})
	}

	logger.Info(ctx, "signed URLs generated", logger.Fields{"processed_keys": len(out)})
	writeJSON(w, r, http.StatusOK, out)
}

// filePart returns the multipart part named "file", streaming it instead of
// buffering the whole form. The body is capped at MaxUploadBytes.
func (s *Server) filePart(w http.ResponseWriter, r *http.Request) (*multipart.Part, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, apperr.Validation("Expected a multipart/form-data body with a file field")
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, apperr.Validation("Field 'file' is required")
		}
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, err
			}
			return nil, apperr.E(apperr.KindValidation, "read multipart body", err)
		}
		if part.FormName() == fileField && part.FileName() != "" {
			return part, nil
		}
		_ = part.Close()
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return apperr.Validation("invalid json")
	}
	return nil
}
