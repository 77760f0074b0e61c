package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bencyrus/safeupload/internal/apperr"
	"github.com/bencyrus/safeupload/internal/oracle"
	"github.com/bencyrus/safeupload/internal/storage"
	"github.com/bencyrus/safeupload/internal/types"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		detail string
	}{
		{"validation", apperr.Validation("Text cannot be empty"), http.StatusBadRequest, "Text cannot be empty"},
		{"store", apperr.E(apperr.KindStore, "put image/a.jpg", errors.New("access denied")), http.StatusInternalServerError, "put image/a.jpg: access denied"},
		{"oracle", apperr.E(apperr.KindOracle, "moderate media", errors.New("throttled")), http.StatusBadGateway, "moderate media: throttled"},
		{"timeout", apperr.E(apperr.KindTimeout, "moderate media", oracle.ErrTimeout), http.StatusGatewayTimeout, "moderate media: " + oracle.ErrTimeout.Error()},
		{"unexpected", errors.New("nil pointer"), http.StatusInternalServerError, "nil pointer"},
		{"unexpected kind", apperr.E(apperr.KindUnexpected, "spool upload", errors.New("disk full")), http.StatusInternalServerError, "spool upload: disk full"},
		{"too large", fmt.Errorf("read: %w", &http.MaxBytesError{Limit: 10}), http.StatusRequestEntityTooLarge, "File exceeds the maximum upload size"},
		{"buckets unsupported", storage.ErrBucketsUnsupported, http.StatusNotImplemented, storage.ErrBucketsUnsupported.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			var body types.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.detail, body.Detail)
		})
	}
}
