// Package jobs contains the engine's scheduled background jobs: the
// autosave flush, the remote progress sync, the leaderboard cache refresh
// and the nightly cleanup.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/labsim-hub/labsim-progression-engine/internal/domain/progress"
	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
	"github.com/labsim-hub/labsim-progression-engine/pkg/circuitbreaker"
	"github.com/labsim-hub/labsim-progression-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// REMOTE SYNC JOB
// ══════════════════════════════════════════════════════════════════════════════

// DirtyTracker lists snapshots awaiting a remote push and clears the flag
// after a successful one. ClearDirtyKey removes a raw set member whose
// shape is not a (user, workstation) pair.
type DirtyTracker interface {
	ListDirty(ctx context.Context) ([]string, error)
	ClearDirty(ctx context.Context, userID shared.UserID, workstationID shared.WorkstationID) error
	ClearDirtyKey(ctx context.Context, key string) error
}

// RemoteSyncJob pushes dirty local snapshots to the remote store. Pushes
// go through a retrier and a circuit breaker: a failed push leaves the
// dirty flag in place so the next tick picks it up again, and a tripped
// breaker skips the whole tick instead of hammering a dead remote.
type RemoteSyncJob struct {
	local     progress.LocalStore
	remote    progress.RemoteStore
	tracker   DirtyTracker
	publisher shared.EventPublisher
	retrier   *retry.Retrier
	breaker   *circuitbreaker.CircuitBreaker
	logger    *slog.Logger

	lastStats atomic.Value // *SyncStats
}

// SyncStats contains statistics from one sync run.
type SyncStats struct {
	StartedAt   time.Time
	Duration    time.Duration
	DirtyCount  int
	PushedCount int
	FailedCount int
}

// NewRemoteSyncJob creates a remote sync job.
func NewRemoteSyncJob(
	local progress.LocalStore,
	remote progress.RemoteStore,
	tracker DirtyTracker,
	publisher shared.EventPublisher,
	logger *slog.Logger,
) *RemoteSyncJob {
	if logger == nil {
		logger = slog.Default()
	}

	return &RemoteSyncJob{
		local:     local,
		remote:    remote,
		tracker:   tracker,
		publisher: publisher,
		retrier:   retry.RemoteSyncRetrier(),
		breaker:   circuitbreaker.RemoteStoreBreaker(),
		logger:    logger,
	}
}

// Name returns the job name.
func (j *RemoteSyncJob) Name() string { return "remote_sync" }

// Description returns a human-readable description.
func (j *RemoteSyncJob) Description() string {
	return "Pushes dirty progress snapshots to the remote store"
}

// Run pushes every dirty snapshot once.
func (j *RemoteSyncJob) Run(ctx context.Context) error {
	startedAt := time.Now()

	keys, err := j.tracker.ListDirty(ctx)
	if err != nil {
		return err
	}

	stats := &SyncStats{StartedAt: startedAt, DirtyCount: len(keys)}
	defer func() {
		stats.Duration = time.Since(startedAt)
		j.lastStats.Store(stats)
	}()

	for _, key := range keys {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// IDs reject ':' at validation, so the first separator is always
		// the key's own.
		userPart, wsPart, ok := strings.Cut(key, ":")
		if !ok || userPart == "" || wsPart == "" {
			j.logger.Warn("malformed dirty key, dropping", "key", key)
			_ = j.tracker.ClearDirtyKey(ctx, key)
			continue
		}
		userID := shared.UserID(userPart)
		workstationID := shared.WorkstationID(wsPart)

		if err := j.syncOne(ctx, userID, workstationID); err != nil {
			stats.FailedCount++
			if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
				j.logger.Warn("remote store breaker open, skipping rest of tick",
					"pushed", stats.PushedCount,
					"remaining", stats.DirtyCount-stats.PushedCount-stats.FailedCount,
				)
				return nil
			}
			j.logger.Error("remote push failed",
				"user_id", string(userID),
				"workstation_id", string(workstationID),
				"error", err,
			)
			continue
		}
		stats.PushedCount++
	}

	if stats.PushedCount > 0 {
		j.logger.Info("remote sync completed",
			"pushed", stats.PushedCount,
			"failed", stats.FailedCount,
			"duration", time.Since(startedAt).String(),
		)
	}
	return nil
}

// syncOne pushes a single snapshot and clears its dirty flag.
func (j *RemoteSyncJob) syncOne(ctx context.Context, userID shared.UserID, workstationID shared.WorkstationID) error {
	started := time.Now()

	snapshot, err := j.local.Load(ctx, userID, workstationID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// Snapshot was deleted after being marked; nothing to push.
			return j.tracker.ClearDirty(ctx, userID, workstationID)
		}
		return err
	}

	err = j.breaker.Execute(ctx, func(ctx context.Context) error {
		return j.retrier.Do(ctx, func(ctx context.Context) error {
			return j.remote.Save(ctx, snapshot)
		})
	})
	if err != nil {
		return err
	}

	if err := j.tracker.ClearDirty(ctx, userID, workstationID); err != nil {
		return err
	}

	if j.publisher != nil {
		event := shared.NewSyncCompletedEvent(string(userID), string(workstationID), 1, time.Since(started))
		if err := j.publisher.Publish(ctx, event); err != nil {
			j.logger.Warn("failed to publish sync event", "error", err)
		}
	}
	return nil
}

// LastStats returns statistics from the most recent run, or nil.
func (j *RemoteSyncJob) LastStats() *SyncStats {
	if v := j.lastStats.Load(); v != nil {
		return v.(*SyncStats)
	}
	return nil
}
