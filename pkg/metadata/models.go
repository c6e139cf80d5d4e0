// Package metadata is the authoritative index of which golden path versions
// exist and where their content lives. The unique index on
// (namespace, name, version) is the serialization point for concurrent
// publishes of the same version.
package metadata

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JSONStringSlice is a custom GORM type for []string stored as JSON.
type JSONStringSlice []string

// Scan implements the sql.Scanner interface for JSONStringSlice.
func (s *JSONStringSlice) Scan(value any) error {
	if value == nil {
		*s = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case string:
		bytes = []byte(v)
	case []byte:
		bytes = v
	default:
		return fmt.Errorf("unsupported type for JSONStringSlice: %T", value)
	}
	return json.Unmarshal(bytes, s)
}

// Value implements the driver.Valuer interface for JSONStringSlice.
func (s JSONStringSlice) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// PathRecord is one immutable published version of a golden path.
type PathRecord struct {
	ID          string          `gorm:"primaryKey;size:100" json:"path_id"`
	Namespace   string          `gorm:"size:100;not null;uniqueIndex:idx_paths_ns_name_version,priority:1;index:idx_paths_ns_name,priority:1" json:"namespace"`
	Name        string          `gorm:"size:100;not null;uniqueIndex:idx_paths_ns_name_version,priority:2;index:idx_paths_ns_name,priority:2" json:"name"`
	Version     string          `gorm:"size:20;not null;uniqueIndex:idx_paths_ns_name_version,priority:3" json:"version"`
	Location    string          `gorm:"size:512;not null" json:"-"`

	// Numeric components of Version, denormalized so SQL can order releases
	// without lexicographic surprises ("10.0.0" above "2.0.0"). Prerelease is
	// empty for releases; releases order above prereleases of the same triple.
	Major      uint64 `gorm:"not null;default:0" json:"-"`
	Minor      uint64 `gorm:"not null;default:0" json:"-"`
	Patch      uint64 `gorm:"not null;default:0" json:"-"`
	Prerelease string `gorm:"size:100;not null;default:''" json:"-"`

	OwnerUserID string          `gorm:"size:255;index" json:"-"`
	Description string          `gorm:"type:text" json:"description,omitempty"`
	Tags        JSONStringSlice `gorm:"type:text" json:"tags,omitempty"`
	Downloads   int64           `gorm:"not null;default:0" json:"download_count"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TableName maps PathRecord to the golden_paths table.
func (PathRecord) TableName() string { return "golden_paths" }

// RegistryPath renders the user-facing @namespace/name:version form.
func (r *PathRecord) RegistryPath() string {
	return fmt.Sprintf("%s/%s:%s", r.Namespace, r.Name, r.Version)
}
