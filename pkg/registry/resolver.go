package registry

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/goldenpathdev/registry/pkg/metadata"
)

// LatestToken is the floating version token that resolves to the greatest
// semantic version currently indexed.
const LatestToken = "latest"

// VersionResolver resolves a version token against the metadata index. The
// resolution is computed from the index at call time, never cached: a
// concurrent publish can change which version is latest.
type VersionResolver struct {
	index Index
}

// NewVersionResolver creates a resolver over index.
func NewVersionResolver(index Index) *VersionResolver {
	return &VersionResolver{index: index}
}

// Resolve maps (namespace, name, token) to a concrete version record.
// An empty token or "latest" selects the greatest semantic version;
// pre-releases order below the corresponding release. Any other token
// requires an exact match. Returns ErrNotFound if the golden path has no
// versions or the explicit version does not exist.
func (r *VersionResolver) Resolve(namespace, name, token string) (*metadata.PathRecord, error) {
	if token != "" && token != LatestToken {
		record, err := r.index.Get(namespace, name, token)
		if err != nil {
			if errors.Is(err, metadata.ErrNotFound) {
				return nil, fmt.Errorf("%s/%s:%s: %w", namespace, name, token, ErrNotFound)
			}
			return nil, err
		}
		return record, nil
	}

	records, err := r.index.Versions(namespace, name)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s/%s: %w", namespace, name, ErrNotFound)
	}

	// The index orders by the denormalized numeric columns, which
	// approximates prerelease ordering; compare precisely here. Ties are
	// impossible by the uniqueness invariant.
	best := 0
	bestVer, err := semver.StrictNewVersion(records[0].Version)
	if err != nil {
		return nil, fmt.Errorf("indexed version %q is malformed: %w", records[0].Version, err)
	}
	for i := 1; i < len(records); i++ {
		v, err := semver.StrictNewVersion(records[i].Version)
		if err != nil {
			return nil, fmt.Errorf("indexed version %q is malformed: %w", records[i].Version, err)
		}
		if v.GreaterThan(bestVer) {
			best, bestVer = i, v
		}
	}
	return &records[best], nil
}
