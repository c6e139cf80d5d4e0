package server

import (
	"net/http"

	"github.com/goldenpathdev/registry/pkg/audit"
	"github.com/goldenpathdev/registry/pkg/authority"
)

// handleListAuditEvents returns the caller's own recorded mutations, newest
// first. Callers never see other users' events.
func (s *Server) handleListAuditEvents(w http.ResponseWriter, r *http.Request) {
	principal := authority.PrincipalFromContext(r.Context())
	if principal.Anonymous {
		writeError(w, http.StatusUnauthorized, "API key required")
		return
	}

	limit, err := positiveIntParam(r.URL.Query().Get("limit"), 100)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "limit must be a positive integer")
		return
	}

	events, err := s.trail.List(audit.Filter{
		Actor:  principal.UserID,
		Action: r.URL.Query().Get("action"),
	}, limit)
	if err != nil {
		s.logger.Error("list audit events failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"total":  len(events),
	})
}
