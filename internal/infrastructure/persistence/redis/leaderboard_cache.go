package redis

import (
	"context"
	"errors"

	"github.com/labsim-hub/labsim-progression-engine/internal/domain/leaderboard"
	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrLeaderboardEmpty is returned when a competition has no cached entries.
	ErrLeaderboardEmpty = errors.New("leaderboard_cache: leaderboard is empty")
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardCache implements leaderboard.CacheRepository. It caches the
// fully ranked standings per competition as a single JSON value; ranking
// with its tie-break rules is computed in the domain, never re-derived from
// Redis ordering. Misses fall through to the durable store.
type LeaderboardCache struct {
	cache *Cache
}

// NewLeaderboardCache creates a leaderboard cache.
func NewLeaderboardCache(cache *Cache) *LeaderboardCache {
	return &LeaderboardCache{cache: cache}
}

// ReplaceCompetition swaps the cached standings for the competition.
func (lc *LeaderboardCache) ReplaceCompetition(ctx context.Context, competitionID shared.CompetitionID, entries []leaderboard.Entry) error {
	key := LeaderboardKey(string(competitionID))
	if err := lc.cache.Set(ctx, key, entries, TTLLeaderboardCache); err != nil {
		return shared.WrapError("leaderboard", "cache_replace", shared.ErrServiceUnavailable,
			"failed to cache standings", err)
	}
	return nil
}

// GetCompetition returns cached standings, shared.ErrNotFound on a miss.
func (lc *LeaderboardCache) GetCompetition(ctx context.Context, competitionID shared.CompetitionID) ([]leaderboard.Entry, error) {
	key := LeaderboardKey(string(competitionID))

	var entries []leaderboard.Entry
	if err := lc.cache.Get(ctx, key, &entries); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, shared.ErrNotFound
		}
		return nil, shared.WrapError("leaderboard", "cache_get", shared.ErrServiceUnavailable,
			"failed to read cached standings", err)
	}
	if len(entries) == 0 {
		return nil, ErrLeaderboardEmpty
	}
	return entries, nil
}

// InvalidateCompetition drops the cached standings for the competition.
func (lc *LeaderboardCache) InvalidateCompetition(ctx context.Context, competitionID shared.CompetitionID) error {
	return lc.cache.Delete(ctx, LeaderboardKey(string(competitionID)))
}
