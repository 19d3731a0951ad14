package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/labsim-hub/labsim-progression-engine/internal/domain/achievement"
	"github.com/labsim-hub/labsim-progression-engine/internal/domain/progress"
	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET CAREER QUERY
// Assembles the learner's full progression view: level, XP, unlocks,
// achievements, certificates and streak.
// ══════════════════════════════════════════════════════════════════════════════

// GetCareerQuery identifies the learner.
type GetCareerQuery struct {
	UserID shared.UserID
}

// Validate checks the query.
func (q GetCareerQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("get_career: user ID is required")
	}
	return nil
}

// GetCareerResult is the assembled progression view. A learner with no
// recorded activity gets a fresh level-1 profile, not an error.
type GetCareerResult struct {
	Profile *achievement.CareerProfile `json:"profile"`

	// CurrentLevelXP / NextLevelThreshold describe progress inside the
	// current level. NextLevelThreshold is -1 at the level cap.
	CurrentLevelXP     int `json:"current_level_xp"`
	NextLevelThreshold int `json:"next_level_threshold"`

	// Unlocked - everything unlocked up to the current level.
	Unlocked achievement.UnlockSet `json:"unlocked"`

	Grants       []achievement.Grant       `json:"grants"`
	Certificates []achievement.Certificate `json:"certificates"`
	Streak       *progress.Streak          `json:"streak"`
}

// GetCareerHandler serves career reads.
type GetCareerHandler struct {
	profiles achievement.ProfileRepository
	grants   achievement.GrantRepository
	certs    achievement.CertificateRepository
	streaks  progress.StreakRepository
	levels   achievement.LevelTable
}

// NewGetCareerHandler creates the handler with the built-in level table.
func NewGetCareerHandler(
	profiles achievement.ProfileRepository,
	grants achievement.GrantRepository,
	certs achievement.CertificateRepository,
	streaks progress.StreakRepository,
) *GetCareerHandler {
	return &GetCareerHandler{
		profiles: profiles,
		grants:   grants,
		certs:    certs,
		streaks:  streaks,
		levels:   achievement.DefaultLevelTable(),
	}
}

// Handle executes the query.
func (h *GetCareerHandler) Handle(ctx context.Context, query GetCareerQuery) (*GetCareerResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	profile, err := h.profiles.FindProfile(ctx, query.UserID)
	if errors.Is(err, shared.ErrNotFound) {
		profile = achievement.NewCareerProfile(query.UserID)
	} else if err != nil {
		return nil, fmt.Errorf("get_career: %w", err)
	}

	grants, err := h.grants.FindGrants(ctx, query.UserID)
	if err != nil {
		return nil, fmt.Errorf("get_career: %w", err)
	}

	certs, err := h.certs.FindCertificates(ctx, query.UserID)
	if err != nil {
		return nil, fmt.Errorf("get_career: %w", err)
	}

	streak, err := h.streaks.GetStreak(ctx, query.UserID)
	if err != nil {
		return nil, fmt.Errorf("get_career: %w", err)
	}

	return &GetCareerResult{
		Profile:            profile,
		CurrentLevelXP:     profile.CurrentLevelXP(h.levels),
		NextLevelThreshold: h.levels.ThresholdFor(profile.Level + 1),
		Unlocked:           h.levels.UnlocksUpTo(profile.Level),
		Grants:             grants,
		Certificates:       certs,
		Streak:             streak,
	}, nil
}
