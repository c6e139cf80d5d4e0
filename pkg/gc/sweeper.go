// Package gc reconciles the content store against the metadata index. The
// write ordering in the registry core biases failures toward orphaned blobs
// (content with no metadata row), which are harmless but accumulate; the
// sweeper collects them. Metadata rows pointing at missing content are the
// inverse, should-never-happen condition and are only reported.
package gc

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/goldenpathdev/registry/pkg/content"
	"github.com/goldenpathdev/registry/pkg/metadata"
)

// Config controls the sweeper.
type Config struct {
	// Interval between sweeps.
	Interval time.Duration
	// Grace is the minimum blob age before it can be collected. A blob
	// younger than this may belong to a publish whose metadata insert is
	// still in flight.
	Grace time.Duration
}

// DefaultConfig returns conservative sweep settings.
func DefaultConfig() Config {
	return Config{
		Interval: 15 * time.Minute,
		Grace:    time.Hour,
	}
}

// Sweeper periodically removes orphaned blobs.
type Sweeper struct {
	index  *metadata.Store
	blobs  content.Store
	cfg    Config
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewSweeper creates a Sweeper.
func NewSweeper(index *metadata.Store, blobs content.Store, cfg Config, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.Grace <= 0 {
		cfg.Grace = DefaultConfig().Grace
	}
	return &Sweeper{index: index, blobs: blobs, cfg: cfg, logger: logger}
}

// Run sweeps on a ticker until the context is cancelled, then waits for the
// in-flight sweep to finish.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("orphan sweeper starting",
		"interval", s.cfg.Interval.String(), "grace", s.cfg.Grace.String())

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			s.logger.Info("orphan sweeper stopped")
			return
		case <-ticker.C:
			s.wg.Add(1)
			removed, err := s.SweepOnce(ctx)
			s.wg.Done()
			if err != nil {
				s.logger.Error("sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				s.logger.Info("sweep collected orphaned blobs", "removed", removed)
			}
		}
	}
}

// SweepOnce walks the content store once, deletes orphaned blobs older than
// the grace window, and reports metadata rows whose content is missing.
func (s *Sweeper) SweepOnce(ctx context.Context) (removed int, err error) {
	cutoff := time.Now().Add(-s.cfg.Grace)
	seen := make(map[string]struct{})

	err = s.blobs.Walk(ctx, func(key string, modified time.Time) error {
		seen[key] = struct{}{}

		namespace, name, version, ok := content.ParseKey(key)
		if !ok {
			s.logger.Warn("content store holds non-canonical key", "key", key)
			return nil
		}
		if modified.After(cutoff) {
			return nil
		}

		// A blob is live only if the indexed record for its triple points at
		// this exact location. A blob whose triple is indexed elsewhere was
		// written by a publish that lost the insert race.
		record, err := s.index.Get(namespace, name, version)
		if err != nil && !errors.Is(err, metadata.ErrNotFound) {
			return err
		}
		if err == nil && record.Location == key {
			return nil
		}

		if err := s.blobs.Delete(ctx, key); err != nil {
			s.logger.Warn("failed to collect orphaned blob", "key", key, "error", err)
			return nil
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, err
	}

	s.reportMissingContent(seen)
	return removed, nil
}

// reportMissingContent logs, loudly, every indexed record whose blob was not
// seen during the walk. This signals the orphan-bias invariant was violated.
func (s *Sweeper) reportMissingContent(seen map[string]struct{}) {
	page := metadata.PageRequest{Page: 1, PerPage: metadata.MaxPerPage}
	for {
		result, err := s.index.List(metadata.ListFilter{}, metadata.SortDefault, page)
		if err != nil {
			s.logger.Error("sweep could not list index", "error", err)
			return
		}
		for i := range result.Records {
			rec := &result.Records[i]
			if _, ok := seen[rec.Location]; !ok {
				s.logger.Error("metadata references missing content",
					"path", rec.RegistryPath(), "location", rec.Location)
			}
		}
		if !result.HasNext {
			return
		}
		page.Page++
	}
}
