package jobs

import (
	"context"
	"log/slog"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// NIGHTLY CLEANUP JOB
// ══════════════════════════════════════════════════════════════════════════════

// EventPruner deletes behavior events older than a cutoff.
type EventPruner interface {
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// DefaultEventRetention is how long raw behavior events are kept. The
// difficulty heatmap aggregates over this window; older events only grow
// the table.
const DefaultEventRetention = 90 * 24 * time.Hour

// CleanupJob enforces the behavior event retention window. Runs nightly.
type CleanupJob struct {
	events    EventPruner
	retention time.Duration
	logger    *slog.Logger
}

// NewCleanupJob creates a cleanup job. A non-positive retention falls back
// to DefaultEventRetention.
func NewCleanupJob(events EventPruner, retention time.Duration, logger *slog.Logger) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	if retention <= 0 {
		retention = DefaultEventRetention
	}
	return &CleanupJob{events: events, retention: retention, logger: logger}
}

// Name returns the job name.
func (j *CleanupJob) Name() string { return "nightly_cleanup" }

// Description returns a human-readable description.
func (j *CleanupJob) Description() string {
	return "Deletes behavior events outside the retention window"
}

// Run deletes events older than the retention window.
func (j *CleanupJob) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-j.retention)

	deleted, err := j.events.DeleteEventsBefore(ctx, cutoff)
	if err != nil {
		return err
	}

	j.logger.Info("cleanup completed",
		"deleted_events", deleted,
		"cutoff", cutoff.Format(time.RFC3339),
	)
	return nil
}
