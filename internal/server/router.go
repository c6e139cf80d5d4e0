// Package server wires the registry core to its REST surface. Transport is
// deliberately thin: handlers parse, call the core, and map the error
// taxonomy to status codes.
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/goldenpathdev/registry/pkg/audit"
	"github.com/goldenpathdev/registry/pkg/authority"
	"github.com/goldenpathdev/registry/pkg/cache"
	"github.com/goldenpathdev/registry/pkg/metadata"
	"github.com/goldenpathdev/registry/pkg/registry"
)

// Server holds the handler dependencies.
type Server struct {
	svc      *registry.Service
	index    *metadata.Store
	keys     *authority.DBAuthority
	auth     authority.Authority
	trail    *audit.Store
	auditCfg audit.Config
	pages    *cache.LRU
	logger   *slog.Logger
}

// New creates a Server. auth is the (possibly cached) credential resolver
// used by middleware; keys is the concrete store used for key lifecycle.
func New(svc *registry.Service, index *metadata.Store, keys *authority.DBAuthority, auth authority.Authority, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{svc: svc, index: index, keys: keys, auth: auth, logger: logger}
}

// WithAudit attaches the audit trail. Without it no events are recorded and
// the audit endpoint is absent.
func (s *Server) WithAudit(trail *audit.Store, cfg audit.Config) *Server {
	s.trail = trail
	s.auditCfg = cfg
	return s
}

// WithPageCache caches listing and search responses. Mutations clear it, so
// its TTL only bounds staleness across replicas.
func (s *Server) WithPageCache(pages *cache.LRU) *Server {
	s.pages = pages
	return s
}

// invalidatePages drops cached listing and search pages after a mutation.
func (s *Server) invalidatePages() {
	if s.pages != nil {
		s.pages.Clear()
	}
}

// Router builds the chi router for the full REST surface.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}))
	r.Use(authority.Middleware(s.auth))
	if s.trail != nil {
		r.Use(audit.Middleware(s.trail, s.auditCfg, s.logger))
	}

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		read := r
		if s.pages != nil {
			read = r.With(cache.Middleware(s.pages))
		}

		r.Post("/golden-paths", s.handleCreate)
		read.Get("/golden-paths", s.handleList)
		r.Get("/golden-paths/{namespace}/{name}", s.handleFetch)
		r.Delete("/golden-paths/{namespace}/{name}", s.handleDelete)
		read.Get("/search", s.handleSearch)

		r.Route("/users/me", func(r chi.Router) {
			r.Route("/api-keys", func(r chi.Router) {
				r.Get("/", s.handleListKeys)
				r.Post("/", s.handleCreateKey)
				r.Delete("/{keyID}", s.handleDeleteKey)
			})
			if s.trail != nil {
				r.Get("/audit-events", s.handleListAuditEvents)
			}
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
