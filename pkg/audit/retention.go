package audit

import (
	"context"
	"log/slog"
	"time"
)

// RetentionWorker prunes old audit events daily.
type RetentionWorker struct {
	store     *Store
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
}

// NewRetentionWorker keeps retentionDays of events.
func NewRetentionWorker(store *Store, retentionDays int, logger *slog.Logger) *RetentionWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetentionWorker{
		store:     store,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		interval:  24 * time.Hour,
		logger:    logger,
	}
}

// Run prunes on a daily ticker until the context is cancelled.
func (w *RetentionWorker) Run(ctx context.Context) {
	if w.store == nil || w.retention <= 0 {
		w.logger.Info("audit retention worker disabled")
		return
	}

	w.logger.Info("audit retention worker started",
		"retentionDays", int(w.retention.Hours()/24))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("audit retention worker stopped")
			return
		case <-ticker.C:
			w.prune()
		}
	}
}

func (w *RetentionWorker) prune() {
	cutoff := time.Now().Add(-w.retention)
	removed, err := w.store.DeleteOlderThan(cutoff)
	if err != nil {
		w.logger.Error("audit retention prune failed", "error", err)
		return
	}
	if removed > 0 {
		w.logger.Info("pruned audit events", "removed", removed, "cutoff", cutoff)
	}
}
