package httpserver

import (
	_ "embed"
	"net/http"

	"github.com/bencyrus/safeupload/shared/logger"
)

//go:embed openapi.json
var openAPIDoc []byte

// OpenAPIHandler serves the gateway's OpenAPI schema.
func (s *Server) OpenAPIHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/openapi+json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(openAPIDoc); err != nil {
		logger.Error(r.Context(), "failed to write openapi response", err)
	}
}
