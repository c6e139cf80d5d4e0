package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/goldenpathdev/registry/pkg/authority"
)

// API key lifecycle endpoints. All of them require an authenticated caller;
// a key can only see and manage keys belonging to its own user.

func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request) {
	principal := authority.PrincipalFromContext(r.Context())
	if principal.Anonymous {
		writeError(w, http.StatusUnauthorized, "API key required")
		return
	}

	keys, err := s.keys.ListKeys(r.Context(), principal.UserID)
	if err != nil {
		s.logger.Error("list api keys failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"api_keys": keys,
		"total":    len(keys),
	})
}

func (s *Server) handleCreateKey(w http.ResponseWriter, r *http.Request) {
	principal := authority.PrincipalFromContext(r.Context())
	if principal.Anonymous {
		writeError(w, http.StatusUnauthorized, "API key required")
		return
	}

	var req struct {
		Name   string   `json:"name"`
		Scopes []string `json:"scopes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusUnprocessableEntity, "name is required")
		return
	}

	plaintext, record, err := s.keys.CreateKey(r.Context(), principal.UserID, req.Name, req.Scopes)
	if err != nil {
		s.logger.Error("create api key failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	// The plaintext key appears in this response and nowhere else.
	writeJSON(w, http.StatusCreated, map[string]any{
		"key_id":     record.KeyID,
		"name":       record.Name,
		"api_key":    plaintext,
		"key_prefix": record.KeyPrefix,
		"scopes":     record.Scopes,
		"created_at": record.CreatedAt,
		"message":    "Save this API key securely. You won't be able to see it again.",
	})
}

func (s *Server) handleDeleteKey(w http.ResponseWriter, r *http.Request) {
	principal := authority.PrincipalFromContext(r.Context())
	if principal.Anonymous {
		writeError(w, http.StatusUnauthorized, "API key required")
		return
	}

	deleted, err := s.keys.DeleteKey(r.Context(), chi.URLParam(r, "keyID"), principal.UserID)
	if err != nil {
		s.logger.Error("delete api key failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "API key not found or already deleted")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
