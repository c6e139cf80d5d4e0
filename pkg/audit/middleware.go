package audit

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/goldenpathdev/registry/pkg/authority"
)

// responseCapture wraps http.ResponseWriter to capture the status code.
type responseCapture struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rc *responseCapture) WriteHeader(code int) {
	if !rc.written {
		rc.statusCode = code
		rc.written = true
	}
	rc.ResponseWriter.WriteHeader(code)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	if !rc.written {
		rc.statusCode = http.StatusOK
		rc.written = true
	}
	return rc.ResponseWriter.Write(b)
}

// Middleware records an event for every mutating request. Reads pass
// through untouched. A failed event write is logged, never surfaced.
func Middleware(store *Store, cfg Config, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || store == nil {
				next.ServeHTTP(w, r)
				return
			}

			action := classify(r.Method, r.URL.Path)
			if action == "" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			capture := &responseCapture{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(capture, r)

			outcome := outcomeFromStatus(capture.statusCode)
			if outcome == "denied" && !cfg.LogDenied {
				return
			}

			actor := "anonymous"
			if principal := authority.PrincipalFromContext(r.Context()); !principal.Anonymous {
				actor = principal.UserID
			}

			event := &Event{
				ID:         uuid.New().String(),
				RequestID:  middleware.GetReqID(r.Context()),
				Actor:      actor,
				Namespace:  extractNamespace(r.URL.Path),
				Action:     action,
				Outcome:    outcome,
				StatusCode: capture.statusCode,
				Method:     r.Method,
				Path:       r.URL.Path,
				DurationMS: time.Since(start).Milliseconds(),
				CreatedAt:  start,
			}
			if err := store.Append(event); err != nil {
				logger.Error("failed to write audit event",
					"error", err, "requestID", event.RequestID)
			}
		})
	}
}

// classify maps a request to its logical operation. Empty means not audited.
func classify(method, path string) string {
	switch {
	case method == http.MethodPost && path == "/api/v1/golden-paths":
		return "publish"
	case method == http.MethodDelete && strings.HasPrefix(path, "/api/v1/golden-paths/"):
		return "delete"
	case method == http.MethodPost && strings.HasPrefix(path, "/api/v1/users/me/api-keys"):
		return "key.create"
	case method == http.MethodDelete && strings.HasPrefix(path, "/api/v1/users/me/api-keys"):
		return "key.delete"
	}
	return ""
}

// extractNamespace pulls the target namespace out of a golden path URL.
// Only delete carries it in the path; publish derives the namespace from the
// credential, so its events carry the actor instead.
func extractNamespace(path string) string {
	rest, ok := strings.CutPrefix(path, "/api/v1/golden-paths/")
	if !ok {
		return ""
	}
	if idx := strings.IndexByte(rest, '/'); idx > 0 {
		rest = rest[:idx]
	}
	if strings.HasPrefix(rest, "@") {
		return rest
	}
	return ""
}

func outcomeFromStatus(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "success"
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return "denied"
	default:
		return "failure"
	}
}
