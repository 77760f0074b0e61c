package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bencyrus/safeupload/internal/apperr"
	"github.com/bencyrus/safeupload/internal/storage"
	"github.com/bencyrus/safeupload/internal/types"
	"github.com/bencyrus/safeupload/shared/logger"
)

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error(r.Context(), "failed to encode response", err)
	}
}

func writeDetail(w http.ResponseWriter, r *http.Request, status int, detail string) {
	writeJSON(w, r, status, types.ErrorResponse{Detail: detail})
}

// statusOf maps an error to its HTTP status by kind.
func statusOf(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, storage.ErrBucketsUnsupported), errors.Is(err, storage.ErrSigningUnsupported):
		return http.StatusNotImplemented
	}
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindOracle:
		return http.StatusBadGateway
	case apperr.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	detail := apperr.Message(err)
	if status == http.StatusRequestEntityTooLarge {
		detail = "File exceeds the maximum upload size"
	}

	fields := logger.Fields{"status": status, "kind": apperr.KindOf(err).String()}
	if status >= 500 {
		logger.Error(r.Context(), "request failed", err, fields)
	} else {
		logger.WarnErr(r.Context(), "request rejected", err, fields)
	}
	writeDetail(w, r, status, detail)
}
