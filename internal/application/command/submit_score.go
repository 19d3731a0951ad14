package command

import (
	"context"
	"time"

	"github.com/labsim-hub/labsim-progression-engine/internal/domain/leaderboard"
	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT SCORE COMMAND
// Posts a competition score to the leaderboard. One entry per
// (competition, user): a second submission is rejected, not overwritten.
// ══════════════════════════════════════════════════════════════════════════════

// SubmitScoreCommand contains a competition score submission.
type SubmitScoreCommand struct {
	CompetitionID shared.CompetitionID
	UserID        shared.UserID
	UserName      string

	// Score is the final score (0-100).
	Score int

	// TimeSpentSeconds is the completion time, the first tie-break key.
	TimeSpentSeconds int

	// OperationPath is the learner's operation sequence, kept for review.
	OperationPath []string
}

// SubmitScoreResult contains the accepted entry and its rank.
type SubmitScoreResult struct {
	// Entry is the stored entry.
	Entry *leaderboard.Entry

	// Rank is the entry's position after re-ranking the competition.
	Rank leaderboard.Rank
}

// SubmitScoreHandler handles SubmitScoreCommand.
type SubmitScoreHandler struct {
	repo      leaderboard.Repository
	cache     leaderboard.CacheRepository
	publisher shared.EventPublisher
}

// NewSubmitScoreHandler creates a submit score handler.
func NewSubmitScoreHandler(repo leaderboard.Repository, cache leaderboard.CacheRepository, publisher shared.EventPublisher) *SubmitScoreHandler {
	return &SubmitScoreHandler{repo: repo, cache: cache, publisher: publisher}
}

// Handle validates and stores the entry, invalidates the competition
// cache, and returns the submitter's fresh rank.
func (h *SubmitScoreHandler) Handle(ctx context.Context, cmd SubmitScoreCommand) (*SubmitScoreResult, error) {
	entry := &leaderboard.Entry{
		CompetitionID:    cmd.CompetitionID,
		UserID:           cmd.UserID,
		UserName:         cmd.UserName,
		Score:            cmd.Score,
		TimeSpentSeconds: cmd.TimeSpentSeconds,
		OperationPath:    cmd.OperationPath,
		SubmittedAt:      time.Now().UTC(),
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	// Returns shared.ErrDuplicateSubmission for a repeated pair.
	if err := h.repo.Insert(ctx, entry); err != nil {
		return nil, err
	}

	// A failed invalidation is tolerated: the refresh job repopulates the
	// cache on its next tick.
	_ = h.cache.InvalidateCompetition(ctx, cmd.CompetitionID)

	entries, err := h.repo.FindByCompetition(ctx, cmd.CompetitionID)
	if err != nil {
		return nil, err
	}
	sorted := leaderboard.SortEntries(entries)
	rank := leaderboard.RankOf(sorted, cmd.UserID)

	if h.publisher != nil {
		event := shared.NewScoreSubmittedEvent(
			string(cmd.CompetitionID),
			string(cmd.UserID),
			cmd.Score,
			cmd.TimeSpentSeconds,
			int(rank),
		)
		if err := h.publisher.Publish(ctx, event); err != nil {
			return nil, err
		}
	}

	return &SubmitScoreResult{Entry: entry, Rank: rank}, nil
}
