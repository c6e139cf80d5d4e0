package authority

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

type contextKey int

const principalKey contextKey = iota

// PrincipalFromContext returns the principal resolved for a request, or the
// anonymous principal if resolution middleware did not run.
func PrincipalFromContext(ctx context.Context) *Principal {
	if p, ok := ctx.Value(principalKey).(*Principal); ok && p != nil {
		return p
	}
	return Anon()
}

// ContextWithPrincipal returns ctx carrying principal. Exposed for tests.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// Middleware resolves the Authorization bearer token and stores the
// principal in the request context. Requests without a credential proceed
// anonymously; requests with a bad credential fail 401 here so handlers
// never see an unresolved token.
func Middleware(authority Authority) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := authority.Resolve(r.Context(), BearerToken(r))
			if err != nil {
				status := http.StatusInternalServerError
				detail := "credential resolution failed"
				if errors.Is(err, ErrInvalidCredential) {
					status = http.StatusUnauthorized
					detail = "Invalid API key"
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(status)
				_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

// BearerToken extracts the opaque credential from the Authorization header.
// Returns "" when no bearer credential is present.
func BearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}
