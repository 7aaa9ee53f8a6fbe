package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/solvista/facturador/internal/domain"
)

// maxRequestBody caps JSON request bodies at 1 MiB. Deliverable binaries
// travel through the storage layer, never through these handlers.
const maxRequestBody = 1 << 20

// respondJSON writes v as a JSON response with the given status.
func respondJSON(w http.ResponseWriter, logger *slog.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxRequestBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.Invalid("handler.decode", "invalid request body: "+err.Error())
	}
	return nil
}
