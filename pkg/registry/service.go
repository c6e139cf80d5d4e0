package registry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"

	"github.com/goldenpathdev/registry/pkg/authority"
	"github.com/goldenpathdev/registry/pkg/content"
	"github.com/goldenpathdev/registry/pkg/metadata"
)

var frontmatterMarker = []byte("---")

// Index is the metadata surface the service depends on. *metadata.Store
// implements it.
type Index interface {
	Insert(record *metadata.PathRecord) error
	Get(namespace, name, version string) (*metadata.PathRecord, error)
	Versions(namespace, name string) ([]metadata.PathRecord, error)
	Delete(namespace, name, version string) error
	IncrementDownloads(namespace, name, version string) error
	Exists(namespace, name, version string) (bool, error)
}

// Service orchestrates create/fetch/delete across the content store, the
// metadata index and the namespace authority. It holds no state of its own
// and is safe for concurrent use; no in-process lock is held across store
// I/O.
type Service struct {
	index    Index
	blobs    content.Store
	auth     authority.Authority
	resolver *VersionResolver
	logger   *slog.Logger
}

// NewService creates a Service over the given stores.
func NewService(index Index, blobs content.Store, auth authority.Authority, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		index:    index,
		blobs:    blobs,
		auth:     auth,
		resolver: NewVersionResolver(index),
		logger:   logger,
	}
}

// Resolver exposes the service's version resolver for read paths.
func (s *Service) Resolver() *VersionResolver {
	return s.resolver
}

// CreateRequest carries one publish operation.
type CreateRequest struct {
	Namespace   string
	Name        string
	Version     string
	Content     []byte
	Description string
	Tags        []string
}

// CreateResult references both the content location and the metadata record
// of a successful publish.
type CreateResult struct {
	Record   *metadata.PathRecord
	Location string // display form, e.g. s3://bucket/@ns/name/1.0.0.md
}

// Create publishes a new version.
//
// Content is written before metadata: an orphaned blob is harmless and
// collectable, whereas a record pointing at absent content produces a
// confusing fetch failure. An already-indexed triple fails fast before any
// content is written; the unique index still decides the truly simultaneous
// race, and because each attempt writes to its own record-keyed blob the
// loser can never have overwritten the winner's content. Any failed insert
// compensates the blob write with a best-effort delete whose own failure is
// logged, never raised.
func (s *Service) Create(ctx context.Context, principal *authority.Principal, req CreateRequest) (*CreateResult, error) {
	if !s.auth.Authorize(principal, req.Namespace) {
		return nil, fmt.Errorf("publish to %s: %w", req.Namespace, ErrForbidden)
	}
	if err := validateCreate(&req); err != nil {
		return nil, err
	}

	exists, err := s.index.Exists(req.Namespace, req.Name, req.Version)
	if err != nil {
		return nil, fmt.Errorf("check %s/%s:%s: %w", req.Namespace, req.Name, req.Version, err)
	}
	if exists {
		return nil, fmt.Errorf("%s/%s:%s: %w", req.Namespace, req.Name, req.Version, ErrConflict)
	}

	record := &metadata.PathRecord{
		ID:          uuid.New().String(),
		Namespace:   req.Namespace,
		Name:        req.Name,
		Version:     req.Version,
		OwnerUserID: principal.UserID,
		Description: req.Description,
		Tags:        req.Tags,
	}

	key := content.Key(req.Namespace, req.Name, req.Version, record.ID)
	location, err := s.blobs.Put(ctx, key, req.Content)
	if err != nil {
		return nil, fmt.Errorf("write content for %s: %w", key, err)
	}
	record.Location = location

	if err := s.index.Insert(record); err != nil {
		// Compensate the blob write so the index failure does not leave an
		// orphan for the sweeper. A failed compensation is logged and the
		// original error surfaced.
		if derr := s.blobs.Delete(ctx, location); derr != nil {
			s.logger.Error("compensating content delete failed",
				"location", location, "error", derr)
		}
		if errors.Is(err, metadata.ErrConflict) {
			return nil, fmt.Errorf("%s/%s:%s: %w", req.Namespace, req.Name, req.Version, ErrConflict)
		}
		return nil, err
	}

	return &CreateResult{Record: record, Location: s.blobs.URI(location)}, nil
}

// FetchResult is a resolved version together with its content.
type FetchResult struct {
	Record  *metadata.PathRecord
	Content []byte
}

// Fetch resolves a version token and reads its content. Reads are public;
// no authorization is required. Content missing after metadata resolved is
// the store inconsistency the write ordering is designed to prevent, so it
// is reported as ErrDataIntegrity and logged loudly rather than folded into
// not-found.
func (s *Service) Fetch(ctx context.Context, namespace, name, token string) (*FetchResult, error) {
	record, err := s.resolver.Resolve(namespace, name, token)
	if err != nil {
		return nil, err
	}

	data, err := s.blobs.Get(ctx, record.Location)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			s.logger.Error("metadata references missing content",
				"path", record.RegistryPath(), "location", record.Location)
			return nil, fmt.Errorf("%s: %w", record.RegistryPath(), ErrDataIntegrity)
		}
		return nil, fmt.Errorf("read content for %s: %w", record.RegistryPath(), err)
	}

	// Download counting is best-effort and never fails a fetch.
	if err := s.index.IncrementDownloads(record.Namespace, record.Name, record.Version); err != nil {
		s.logger.Warn("failed to count download", "path", record.RegistryPath(), "error", err)
	}

	return &FetchResult{Record: record, Content: data}, nil
}

// DeleteResult enumerates the outcome of a delete. For a single version
// Deleted holds one entry; for all-versions deletes a partial failure lists
// both sides rather than reporting blanket success or failure.
type DeleteResult struct {
	Deleted []string          `json:"deleted"`
	Failed  map[string]string `json:"failed,omitempty"`
}

// Partial reports whether some versions were removed and others were not.
func (r *DeleteResult) Partial() bool {
	return len(r.Failed) > 0 && len(r.Deleted) > 0
}

// Delete removes one version (token given, "latest" resolved first) or every
// version of the golden path (empty token). The metadata row goes first —
// the inverse of Create's ordering — because once the row is gone the
// artifact is logically gone; a dangling blob is the harmless failure mode,
// logged for the sweeper and not raised.
func (s *Service) Delete(ctx context.Context, principal *authority.Principal, namespace, name, token string) (*DeleteResult, error) {
	if !s.auth.Authorize(principal, namespace) {
		return nil, fmt.Errorf("delete from %s: %w", namespace, ErrForbidden)
	}

	if token != "" {
		record, err := s.resolver.Resolve(namespace, name, token)
		if err != nil {
			return nil, err
		}
		if err := s.deleteVersion(ctx, record); err != nil {
			return nil, err
		}
		return &DeleteResult{Deleted: []string{record.Version}}, nil
	}

	records, err := s.index.Versions(namespace, name)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s/%s: %w", namespace, name, ErrNotFound)
	}

	result := &DeleteResult{}
	for i := range records {
		if err := s.deleteVersion(ctx, &records[i]); err != nil {
			if result.Failed == nil {
				result.Failed = make(map[string]string)
			}
			result.Failed[records[i].Version] = err.Error()
			continue
		}
		result.Deleted = append(result.Deleted, records[i].Version)
	}
	// The golden path record is implicit in having versions; once the last
	// row is gone the path disappears from listings on its own.
	return result, nil
}

// deleteVersion removes one version: metadata row first, then the blob.
// A blob that fails to delete is logged for asynchronous collection and the
// version is still reported deleted.
func (s *Service) deleteVersion(ctx context.Context, record *metadata.PathRecord) error {
	if err := s.index.Delete(record.Namespace, record.Name, record.Version); err != nil {
		if errors.Is(err, metadata.ErrNotFound) {
			// Raced with a concurrent delete; the row is gone either way.
			return nil
		}
		return err
	}
	if err := s.blobs.Delete(ctx, record.Location); err != nil {
		s.logger.Warn("content delete failed, blob left for sweeper",
			"location", record.Location, "error", err)
	}
	return nil
}

func validateCreate(req *CreateRequest) error {
	if !strings.HasPrefix(req.Namespace, "@") || len(req.Namespace) < 2 {
		return &ValidationError{Field: "namespace", Reason: "must be of the form @name"}
	}
	if req.Name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if strings.ContainsAny(req.Name, "/ ") {
		return &ValidationError{Field: "name", Reason: "must not contain slashes or spaces"}
	}
	if _, err := semver.StrictNewVersion(req.Version); err != nil {
		return &ValidationError{Field: "version", Reason: fmt.Sprintf("%q is not a semantic version", req.Version)}
	}
	if len(req.Content) == 0 {
		return &ValidationError{Field: "file", Reason: "must not be empty"}
	}
	if !bytes.HasPrefix(req.Content, frontmatterMarker) {
		return &ValidationError{Field: "file", Reason: "missing YAML frontmatter"}
	}
	return nil
}
