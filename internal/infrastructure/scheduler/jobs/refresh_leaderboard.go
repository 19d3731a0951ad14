package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/labsim-hub/labsim-progression-engine/internal/domain/leaderboard"
	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE REFRESH JOB
// ══════════════════════════════════════════════════════════════════════════════

// RefreshLeaderboardJob rebuilds the hot leaderboard cache from the durable
// store. Score submissions invalidate the cache immediately; this job is
// the fallback that repopulates it and catches rows written by other
// engine instances. When a rebuild moves positions, a leaderboard.updated
// event is published with the change count.
type RefreshLeaderboardJob struct {
	repo      leaderboard.Repository
	cache     leaderboard.CacheRepository
	publisher shared.EventPublisher
	logger    *slog.Logger
}

// NewRefreshLeaderboardJob creates a leaderboard refresh job. publisher may
// be nil, which disables update events.
func NewRefreshLeaderboardJob(
	repo leaderboard.Repository,
	cache leaderboard.CacheRepository,
	publisher shared.EventPublisher,
	logger *slog.Logger,
) *RefreshLeaderboardJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &RefreshLeaderboardJob{repo: repo, cache: cache, publisher: publisher, logger: logger}
}

// Name returns the job name.
func (j *RefreshLeaderboardJob) Name() string { return "refresh_leaderboard" }

// Description returns a human-readable description.
func (j *RefreshLeaderboardJob) Description() string {
	return "Rebuilds the leaderboard cache from the durable store"
}

// Run refreshes every competition's cached ranking.
func (j *RefreshLeaderboardJob) Run(ctx context.Context) error {
	started := time.Now()

	competitions, err := j.repo.ListCompetitions(ctx)
	if err != nil {
		return err
	}

	var refreshed, failed int
	for _, competitionID := range competitions {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		entries, err := j.repo.FindByCompetition(ctx, competitionID)
		if err != nil {
			failed++
			j.logger.Error("failed to load competition entries",
				"competition_id", string(competitionID),
				"error", err,
			)
			continue
		}

		previous, err := j.cache.GetCompetition(ctx, competitionID)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			previous = nil
		}

		sorted := leaderboard.SortEntries(entries)
		if err := j.cache.ReplaceCompetition(ctx, competitionID, sorted); err != nil {
			failed++
			j.logger.Error("failed to cache competition ranking",
				"competition_id", string(competitionID),
				"error", err,
			)
			continue
		}
		refreshed++

		j.publishIfChanged(ctx, competitionID, previous, sorted)
	}

	j.logger.Debug("leaderboard cache refreshed",
		"competitions", refreshed,
		"failed", failed,
		"duration", time.Since(started).String(),
	)
	return nil
}

// publishIfChanged emits leaderboard.updated when the rebuilt standing
// differs from the previously cached one.
func (j *RefreshLeaderboardJob) publishIfChanged(ctx context.Context, competitionID shared.CompetitionID, previous, current []leaderboard.Entry) {
	if j.publisher == nil || previous == nil {
		return
	}

	var changed int
	for _, c := range leaderboard.DiffRanks(previous, current) {
		if c.IsNew() || c.Delta != 0 {
			changed++
		}
	}
	if changed == 0 && len(previous) == len(current) {
		return
	}

	event := shared.NewLeaderboardUpdatedEvent(string(competitionID), len(current), changed)
	if err := j.publisher.Publish(ctx, event); err != nil {
		j.logger.Error("failed to publish leaderboard update",
			"competition_id", string(competitionID),
			"error", err,
		)
	}
}
