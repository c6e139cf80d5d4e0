package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/goldenpathdev/registry/pkg/authority"
	"github.com/goldenpathdev/registry/pkg/content"
	"github.com/goldenpathdev/registry/pkg/metadata"
	"github.com/goldenpathdev/registry/pkg/registry"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes the uniform {"detail": ...} error body.
func writeError(w http.ResponseWriter, status int, detail any) {
	writeJSON(w, status, map[string]any{"detail": detail})
}

// writeServiceError maps the core error taxonomy to HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var storeErr *content.StoreError
	switch {
	case errors.Is(err, authority.ErrInvalidCredential):
		writeError(w, http.StatusUnauthorized, "Invalid API key")
	case errors.Is(err, registry.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, registry.ErrNotFound), errors.Is(err, metadata.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, registry.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case registry.IsValidation(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, registry.ErrDataIntegrity):
		writeError(w, http.StatusInternalServerError, err.Error())
	case errors.As(err, &storeErr):
		writeError(w, http.StatusBadGateway, "content store unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
