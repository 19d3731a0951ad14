package jobs

import (
	"context"
	"log/slog"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// AUTOSAVE FLUSH JOB
// ══════════════════════════════════════════════════════════════════════════════

// SessionFlusher writes the in-memory state of every open session to the
// local store and marks the snapshots dirty. Implemented by the session
// manager.
type SessionFlusher interface {
	// FlushAll flushes every open session and returns how many were written.
	FlushAll(ctx context.Context) (int, error)
}

// AutosaveJob periodically flushes open sessions so a crash loses at most
// one autosave interval of work.
type AutosaveJob struct {
	flusher SessionFlusher
	logger  *slog.Logger
}

// NewAutosaveJob creates an autosave job.
func NewAutosaveJob(flusher SessionFlusher, logger *slog.Logger) *AutosaveJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &AutosaveJob{flusher: flusher, logger: logger}
}

// Name returns the job name.
func (j *AutosaveJob) Name() string { return "autosave_flush" }

// Description returns a human-readable description.
func (j *AutosaveJob) Description() string {
	return "Flushes open session state to the local progress store"
}

// Run flushes all open sessions once.
func (j *AutosaveJob) Run(ctx context.Context) error {
	started := time.Now()

	flushed, err := j.flusher.FlushAll(ctx)
	if err != nil {
		return err
	}

	if flushed > 0 {
		j.logger.Debug("autosave flush completed",
			"sessions", flushed,
			"duration", time.Since(started).String(),
		)
	}
	return nil
}
