package metadata

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrConflict is returned by Insert when the (namespace, name, version)
	// triple already exists. This is the durability point for immutability.
	ErrConflict = errors.New("version already exists")

	// ErrNotFound is returned when no record matches.
	ErrNotFound = errors.New("record not found")
)

// Store provides index operations over golden path records.
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store over db.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the golden_paths table.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&PathRecord{}); err != nil {
		return fmt.Errorf("auto-migrate golden_paths: %w", err)
	}
	return nil
}

// Insert adds a new immutable version record. The version string must be a
// valid semantic version; its numeric components are denormalized for
// ordering. Returns ErrConflict if the triple already exists — the database
// unique index enforces this atomically, so two concurrent identical inserts
// resolve to exactly one success.
func (s *Store) Insert(record *PathRecord) error {
	v, err := semver.StrictNewVersion(record.Version)
	if err != nil {
		return fmt.Errorf("parse version %q: %w", record.Version, err)
	}
	record.Major = v.Major()
	record.Minor = v.Minor()
	record.Patch = v.Patch()
	record.Prerelease = v.Prerelease()
	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	if err := s.db.Create(record).Error; err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("insert %s: %w", record.RegistryPath(), ErrConflict)
		}
		return fmt.Errorf("insert %s: %w", record.RegistryPath(), err)
	}
	return nil
}

// Get retrieves one exact (namespace, name, version) record.
func (s *Store) Get(namespace, name, version string) (*PathRecord, error) {
	var record PathRecord
	err := s.db.Where(
		"namespace = ? AND name = ? AND version = ?",
		namespace, name, version,
	).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("get %s/%s:%s: %w", namespace, name, version, ErrNotFound)
		}
		return nil, fmt.Errorf("get %s/%s:%s: %w", namespace, name, version, err)
	}
	return &record, nil
}

// Versions returns every version record of a golden path, newest release
// ordering first by the denormalized numeric columns.
func (s *Store) Versions(namespace, name string) ([]PathRecord, error) {
	var records []PathRecord
	err := s.db.Where("namespace = ? AND name = ?", namespace, name).
		Order("major DESC, minor DESC, patch DESC, prerelease = '' DESC, prerelease DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("versions %s/%s: %w", namespace, name, err)
	}
	return records, nil
}

// Delete removes one version record. Deleting an absent record returns
// ErrNotFound so callers can distinguish a no-op.
func (s *Store) Delete(namespace, name, version string) error {
	res := s.db.Where(
		"namespace = ? AND name = ? AND version = ?",
		namespace, name, version,
	).Delete(&PathRecord{})
	if res.Error != nil {
		return fmt.Errorf("delete %s/%s:%s: %w", namespace, name, version, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete %s/%s:%s: %w", namespace, name, version, ErrNotFound)
	}
	return nil
}

// IncrementDownloads bumps the download counter for a version. Best-effort;
// callers treat failures as non-fatal.
func (s *Store) IncrementDownloads(namespace, name, version string) error {
	return s.db.Model(&PathRecord{}).
		Where("namespace = ? AND name = ? AND version = ?", namespace, name, version).
		UpdateColumn("downloads", gorm.Expr("downloads + 1")).Error
}

// Exists reports whether any version of (namespace, name, version) is indexed.
// Used by the orphan sweeper.
func (s *Store) Exists(namespace, name, version string) (bool, error) {
	var count int64
	err := s.db.Model(&PathRecord{}).
		Where("namespace = ? AND name = ? AND version = ?", namespace, name, version).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("exists %s/%s:%s: %w", namespace, name, version, err)
	}
	return count > 0, nil
}

// isDuplicateKey reports whether err is a unique-constraint violation.
// gorm translates these to ErrDuplicatedKey for dialects that support it;
// the string checks cover drivers that do not.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // sqlite
		strings.Contains(msg, "Duplicate entry") || // mysql
		strings.Contains(msg, "duplicate key value") // postgres
}
