package metadata

import (
	"fmt"
	"strings"
)

// SortField names an ordering for List.
type SortField string

// Sort fields accepted by List.
const (
	SortDefault      SortField = ""              // namespace, name, version desc
	SortName         SortField = "name"          // name, then namespace
	SortNamespace    SortField = "namespace"     // namespace, then name
	SortVersion      SortField = "version"       // semantic order, newest first
	SortLastModified SortField = "last_modified" // most recently updated first
)

// ValidSortField reports whether f is an accepted sort field.
func ValidSortField(f SortField) bool {
	switch f {
	case SortDefault, SortName, SortNamespace, SortVersion, SortLastModified:
		return true
	}
	return false
}

// ListFilter narrows a listing. Namespace is an exact match; Name is a
// prefix match (the implementer's-choice the index contract leaves open).
type ListFilter struct {
	Namespace string
	Name      string
}

// PageRequest is an offset-based page selector. Zero values take the
// defaults of page 1, 20 per page.
type PageRequest struct {
	Page    int
	PerPage int
}

// DefaultPerPage is used when PerPage is unset; MaxPerPage is the clamp.
const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// PageResult is one page of records plus derived pagination metadata.
type PageResult struct {
	Records    []PathRecord `json:"paths"`
	TotalCount int64        `json:"total_count"`
	Page       int          `json:"page"`
	PerPage    int          `json:"per_page"`
	TotalPages int          `json:"total_pages"`
	HasNext    bool         `json:"has_next"`
	HasPrev    bool         `json:"has_prev"`
}

// versionOrder sorts newest release first using the denormalized numeric
// columns; prerelease ordering within a triple is approximated
// lexicographically here (exact semver ordering is only needed for "latest"
// resolution, which is computed in Go).
const versionOrder = "major DESC, minor DESC, patch DESC, prerelease = '' DESC, prerelease DESC"

// List returns one page of records matching filter, in the requested order,
// together with the total match count. An empty page is not an error.
func (s *Store) List(filter ListFilter, sort SortField, page PageRequest) (*PageResult, error) {
	if page.Page <= 0 {
		page.Page = 1
	}
	if page.PerPage <= 0 {
		page.PerPage = DefaultPerPage
	}
	if page.PerPage > MaxPerPage {
		page.PerPage = MaxPerPage
	}

	query := s.db.Model(&PathRecord{})
	if filter.Namespace != "" {
		query = query.Where("namespace = ?", filter.Namespace)
	}
	if filter.Name != "" {
		query = query.Where("name LIKE ? ESCAPE '\\'", escapeLike(filter.Name)+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count paths: %w", err)
	}

	var records []PathRecord
	err := query.Order(orderClause(sort)).
		Offset((page.Page - 1) * page.PerPage).
		Limit(page.PerPage).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list paths: %w", err)
	}

	totalPages := int((total + int64(page.PerPage) - 1) / int64(page.PerPage))
	return &PageResult{
		Records:    records,
		TotalCount: total,
		Page:       page.Page,
		PerPage:    page.PerPage,
		TotalPages: totalPages,
		HasNext:    page.Page < totalPages,
		HasPrev:    page.Page > 1,
	}, nil
}

func orderClause(sort SortField) string {
	switch sort {
	case SortName:
		return "name ASC, namespace ASC, " + versionOrder
	case SortNamespace:
		return "namespace ASC, name ASC, " + versionOrder
	case SortVersion:
		return versionOrder + ", namespace ASC, name ASC"
	case SortLastModified:
		return "updated_at DESC, namespace ASC, name ASC"
	default:
		return "namespace ASC, name ASC, " + versionOrder
	}
}

// escapeLike escapes LIKE metacharacters so a prefix filter matches
// literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}
