package server

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/goldenpathdev/registry/pkg/authority"
	"github.com/goldenpathdev/registry/pkg/metadata"
	"github.com/goldenpathdev/registry/pkg/registry"
)

// maxUploadBytes bounds a golden path document upload.
const maxUploadBytes = 10 << 20

// handleCreate publishes a new version. The write namespace always comes
// from the caller's credential, never from the request body.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	principal := authority.PrincipalFromContext(r.Context())
	if principal.Anonymous {
		writeError(w, http.StatusUnauthorized, "API key required")
		return
	}
	if len(principal.Namespaces) == 0 {
		writeError(w, http.StatusForbidden, "credential owns no namespace")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid multipart form")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "missing file field")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "could not read upload")
		return
	}
	if len(data) > maxUploadBytes {
		writeError(w, http.StatusUnprocessableEntity, "upload too large")
		return
	}

	version := r.FormValue("version")
	if version == "" {
		version = "0.0.1"
	}
	var tags []string
	if raw := r.FormValue("tags"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}

	result, err := s.svc.Create(r.Context(), principal, registry.CreateRequest{
		Namespace:   principal.Namespaces[0],
		Name:        r.FormValue("name"),
		Version:     version,
		Content:     data,
		Description: r.FormValue("description"),
		Tags:        tags,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	s.invalidatePages()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"namespace": result.Record.Namespace,
		"name":      result.Record.Name,
		"version":   result.Record.Version,
		"path":      result.Record.RegistryPath(),
		"location":  result.Location,
	})
}

// handleFetch resolves a version token (default "latest") and returns the
// document. Reads are public.
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	namespace := chi.URLParam(r, "namespace")
	name := chi.URLParam(r, "name")
	version := r.URL.Query().Get("version")

	result, err := s.svc.Fetch(r.Context(), namespace, name, version)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"namespace":     result.Record.Namespace,
		"name":          result.Record.Name,
		"version":       result.Record.Version,
		"content":       string(result.Content),
		"last_modified": result.Record.UpdatedAt.Format(time.RFC3339),
	})
}

// handleList returns a page of golden paths.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, err := positiveIntParam(q.Get("page"), 1)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "page must be a positive integer")
		return
	}
	perPage, err := positiveIntParam(q.Get("per_page"), metadata.DefaultPerPage)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "per_page must be a positive integer")
		return
	}

	sort := metadata.SortField(q.Get("sort_by"))
	if !metadata.ValidSortField(sort) {
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("unknown sort_by %q", q.Get("sort_by")))
		return
	}

	result, err := s.index.List(
		metadata.ListFilter{Namespace: q.Get("namespace"), Name: q.Get("name")},
		sort,
		metadata.PageRequest{Page: page, PerPage: perPage},
	)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleSearch returns ranked matches for a free-text query.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	limit, err := positiveIntParam(r.URL.Query().Get("limit"), metadata.DefaultPerPage)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "limit must be a positive integer")
		return
	}

	seq, err := s.index.Search(q, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	results := make([]metadata.PathRecord, 0, limit)
	for rec := range seq {
		results = append(results, rec)
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// handleDelete removes one version, or every version when no version token
// is given.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	principal := authority.PrincipalFromContext(r.Context())
	if principal.Anonymous {
		writeError(w, http.StatusUnauthorized, "API key required")
		return
	}

	namespace := chi.URLParam(r, "namespace")
	name := chi.URLParam(r, "name")
	version := r.URL.Query().Get("version")

	result, err := s.svc.Delete(r.Context(), principal, namespace, name, version)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if len(result.Deleted) > 0 {
		s.invalidatePages()
	}

	resp := map[string]any{
		"success": len(result.Failed) == 0,
		"deleted": result.Deleted,
	}
	switch {
	case result.Partial():
		resp["failed"] = result.Failed
		resp["message"] = fmt.Sprintf("partially deleted %s/%s: %d removed, %d failed",
			namespace, name, len(result.Deleted), len(result.Failed))
	case len(result.Failed) > 0:
		resp["failed"] = result.Failed
		resp["message"] = fmt.Sprintf("failed to delete %s/%s", namespace, name)
	case version != "":
		resp["message"] = fmt.Sprintf("Deleted %s/%s:%s", namespace, name, result.Deleted[0])
	default:
		resp["message"] = fmt.Sprintf("Deleted all versions of %s/%s", namespace, name)
	}
	writeJSON(w, http.StatusOK, resp)
}

// positiveIntParam parses an optional positive integer query parameter.
func positiveIntParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("not a positive integer: %q", raw)
	}
	return n, nil
}
