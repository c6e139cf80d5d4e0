// Package content provides durable blob storage for golden path documents.
// Blobs are keyed by namespace/name/version plus the owning record id;
// immutability is enforced one layer up by the metadata index, so Put is an
// idempotent overwrite at this layer.
package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned by Get when no blob exists at the location.
var ErrNotFound = errors.New("content not found")

// StoreError marks an I/O failure talking to the blob layer. Callers decide
// retry policy; the transport layer maps exhausted retries to 502.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("content %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Store is the blob storage contract. Implementations must be safe for
// concurrent use. Delete of an absent location is not an error.
type Store interface {
	// Put writes data under key and returns the location the blob can be
	// read back from. Retrying a Put with the same key is safe.
	Put(ctx context.Context, key string, data []byte) (location string, err error)

	// Get reads the blob at location. Returns ErrNotFound if absent.
	Get(ctx context.Context, location string) ([]byte, error)

	// Delete removes the blob at location. Absent blobs return nil.
	Delete(ctx context.Context, location string) error

	// Walk calls fn for every stored key with its last-modified time.
	// Used by the orphan sweeper. Returning an error from fn stops the walk.
	Walk(ctx context.Context, fn func(key string, modified time.Time) error) error

	// URI renders a display form of a location (e.g. s3://bucket/key).
	URI(location string) string
}

// Key derives the canonical storage key for a version record. The record id
// suffix gives every publish attempt its own blob, so a publish that loses
// the index insert race can never have overwritten the winner's content.
// Semantic versions cannot contain an underscore, which keeps the suffix
// unambiguous.
func Key(namespace, name, version, id string) string {
	return fmt.Sprintf("%s/%s/%s_%s.md", namespace, name, version, id)
}

// ParseKey splits a storage key back into namespace, name and version.
// Returns ok=false for keys that do not follow the canonical layout.
func ParseKey(key string) (namespace, name, version string, ok bool) {
	parts := strings.Split(key, "/")
	if len(parts) != 3 || !strings.HasSuffix(parts[2], ".md") {
		return "", "", "", false
	}
	base := strings.TrimSuffix(parts[2], ".md")
	sep := strings.LastIndexByte(base, '_')
	if sep <= 0 || sep == len(base)-1 {
		return "", "", "", false
	}
	version = base[:sep]
	if parts[0] == "" || parts[1] == "" {
		return "", "", "", false
	}
	return parts[0], parts[1], version, true
}
