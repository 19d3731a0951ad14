// Package query contains read operations (CQRS - Queries).
// Queries never mutate domain state; they may refresh caches.
package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/labsim-hub/labsim-progression-engine/config"
	"github.com/labsim-hub/labsim-progression-engine/internal/domain/leaderboard"
	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Cache-first read of a competition standing, with an optional score
// distribution report.
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardQuery identifies the competition to read.
type GetLeaderboardQuery struct {
	CompetitionID shared.CompetitionID

	// UserID - requesting user, used for feature gating and for the
	// caller's own rank in the result.
	UserID shared.UserID

	// Limit caps the returned entries. 0 means all.
	Limit int

	// IncludeReport requests the histogram/statistics report.
	IncludeReport bool
}

// Validate checks the query.
func (q GetLeaderboardQuery) Validate() error {
	if q.CompetitionID == "" {
		return errors.New("get_leaderboard: competition ID is required")
	}
	if q.Limit < 0 {
		return errors.New("get_leaderboard: limit must be >= 0")
	}
	return nil
}

// GetLeaderboardResult is the competition standing.
type GetLeaderboardResult struct {
	CompetitionID shared.CompetitionID `json:"competition_id"`
	Entries       []leaderboard.Entry  `json:"entries"`
	Total         int                  `json:"total"`

	// CallerRank - the requesting user's rank, 0 when absent.
	CallerRank leaderboard.Rank `json:"caller_rank,omitempty"`

	// FromCache - true when served from the cache.
	FromCache bool `json:"from_cache"`

	// Report - score distribution, present only when requested and the
	// reports feature is enabled.
	Report *leaderboard.Report `json:"report,omitempty"`
}

// GetLeaderboardHandler serves leaderboard reads cache-first.
type GetLeaderboardHandler struct {
	repo  leaderboard.Repository
	cache leaderboard.CacheRepository
	flags *config.FeatureFlags
}

// NewGetLeaderboardHandler creates the handler.
func NewGetLeaderboardHandler(
	repo leaderboard.Repository,
	cache leaderboard.CacheRepository,
	flags *config.FeatureFlags,
) *GetLeaderboardHandler {
	return &GetLeaderboardHandler{
		repo:  repo,
		cache: cache,
		flags: flags,
	}
}

// Handle executes the query. On a cache miss the sorted standing is read
// from the repository and written back to the cache.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, query GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	entries, fromCache, err := h.loadSorted(ctx, query.CompetitionID)
	if err != nil {
		return nil, fmt.Errorf("get_leaderboard: %w", err)
	}

	result := &GetLeaderboardResult{
		CompetitionID: query.CompetitionID,
		Total:         len(entries),
		FromCache:     fromCache,
	}
	if query.UserID != "" {
		result.CallerRank = leaderboard.RankOf(entries, query.UserID)
	}

	if query.IncludeReport && h.reportsEnabled(query.UserID) {
		report := leaderboard.BuildReport(string(query.CompetitionID), entries)
		if !h.histogramEnabled(query.UserID) {
			report.Histogram = nil
		}
		result.Report = report
	}

	if query.Limit > 0 && len(entries) > query.Limit {
		entries = entries[:query.Limit]
	}
	result.Entries = entries
	return result, nil
}

func (h *GetLeaderboardHandler) loadSorted(ctx context.Context, competitionID shared.CompetitionID) ([]leaderboard.Entry, bool, error) {
	if h.cache != nil {
		cached, err := h.cache.GetCompetition(ctx, competitionID)
		if err == nil {
			return cached, true, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, false, err
		}
	}

	entries, err := h.repo.FindByCompetition(ctx, competitionID)
	if err != nil {
		return nil, false, err
	}
	sorted := leaderboard.SortEntries(entries)

	if h.cache != nil {
		// A failed write-back only costs the next read a repository trip.
		_ = h.cache.ReplaceCompetition(ctx, competitionID, sorted)
	}
	return sorted, false, nil
}

func (h *GetLeaderboardHandler) reportsEnabled(userID shared.UserID) bool {
	if h.flags == nil {
		return true
	}
	return h.flags.IsEnabled(config.FeatureLeaderboardReports, &config.FeatureContext{UserID: string(userID)})
}

func (h *GetLeaderboardHandler) histogramEnabled(userID shared.UserID) bool {
	if h.flags == nil {
		return true
	}
	return h.flags.IsEnabled(config.FeatureLeaderboardHistogram, &config.FeatureContext{UserID: string(userID)})
}
