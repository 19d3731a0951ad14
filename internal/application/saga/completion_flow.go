// Package saga contains multi-step business processes that orchestrate
// several domain operations in order.
package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/labsim-hub/labsim-progression-engine/config"
	"github.com/labsim-hub/labsim-progression-engine/internal/domain/achievement"
	"github.com/labsim-hub/labsim-progression-engine/internal/domain/progress"
	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETION FLOW SAGA
// Runs strictly after a submission has been scored.
// Flow: Build Facts → Check Achievements → Grant Achievements →
//
//	Award XP → Level Up → Issue Certificate → Publish Events
//
// Ordering is the invariant: achievement evaluation and XP accrual never
// see a submission without its final score.
// ══════════════════════════════════════════════════════════════════════════════

// CompletionInput carries the scored submission and the session facts the
// engine cannot derive from its own stores.
type CompletionInput struct {
	// UserID - the learner.
	UserID shared.UserID

	// WorkstationID - the workstation the task belongs to.
	WorkstationID shared.WorkstationID

	// TaskID - the scored task.
	TaskID shared.TaskID

	// TotalScore - the final weighted score (0-100).
	TotalScore int

	// FirstTry - true when this was the first attempt for the task.
	FirstTry bool

	// Difficulty drives the XP multiplier.
	Difficulty achievement.Difficulty

	// BaseXP is the task's base XP reward.
	BaseXP int

	// CompletedTasks / TotalTasks - workstation task completion after this
	// submission, for certificate eligibility and the task count conditions
	// when the caller has no task ID set.
	CompletedTasks int
	TotalTasks     int

	// SessionFacts - accumulated facts from the host needed for condition
	// checks: task sets, total minutes, first-try run length.
	CompletedTaskIDs        map[shared.TaskID]bool
	CompletedWorkstations   map[shared.WorkstationID]bool
	TotalMinutes            int
	ConsecutiveFirstTry     int
	BestScore               int
	AllPerfect              bool
	AllWorkstationsComplete bool
}

// Validate checks the input.
func (i CompletionInput) Validate() error {
	if i.UserID == "" {
		return errors.New("completion_flow: user ID is required")
	}
	if i.WorkstationID == "" {
		return errors.New("completion_flow: workstation ID is required")
	}
	if i.TotalScore < 0 || i.TotalScore > 100 {
		return errors.New("completion_flow: total score must be within [0, 100]")
	}
	return nil
}

// CompletionResult contains everything the flow granted.
type CompletionResult struct {
	// UserID - the learner.
	UserID shared.UserID

	// NewGrants - achievements unlocked by this submission.
	NewGrants []achievement.Grant

	// XPAwarded - task XP plus achievement bonuses.
	XPAwarded int

	// XPGrant - the level-up outcome.
	XPGrant achievement.XPGrantResult

	// Certificate - issued certificate, nil when not due or already held.
	Certificate *achievement.Certificate

	// ProcessedAt - when the flow completed.
	ProcessedAt time.Time
}

// CompletionStep identifies a flow step for error reporting.
type CompletionStep string

const (
	StepBuildFacts        CompletionStep = "build_facts"
	StepCheckAchievements CompletionStep = "check_achievements"
	StepGrantAchievements CompletionStep = "grant_achievements"
	StepAwardXP           CompletionStep = "award_xp"
	StepIssueCertificate  CompletionStep = "issue_certificate"
	StepPublishEvents     CompletionStep = "publish_events"
)

// completionState tracks the flow between steps.
type completionState struct {
	input    CompletionInput
	facts    achievement.Facts
	granted  map[string]bool
	unlocked []achievement.Definition
	profile  *achievement.CareerProfile
	result   *CompletionResult
}

// CompletionFlow orchestrates post-scoring progression.
type CompletionFlow struct {
	grants    achievement.GrantRepository
	certs     achievement.CertificateRepository
	profiles  achievement.ProfileRepository
	streaks   progress.StreakRepository
	checker   *achievement.Checker
	levels    achievement.LevelTable
	publisher shared.EventPublisher
	flags     *config.FeatureFlags
}

// NewCompletionFlow creates a completion flow with the built-in
// achievement catalog and level table. flags may be nil, which enables
// everything.
func NewCompletionFlow(
	grants achievement.GrantRepository,
	certs achievement.CertificateRepository,
	profiles achievement.ProfileRepository,
	streaks progress.StreakRepository,
	publisher shared.EventPublisher,
	flags *config.FeatureFlags,
) *CompletionFlow {
	return &CompletionFlow{
		grants:    grants,
		certs:     certs,
		profiles:  profiles,
		streaks:   streaks,
		checker:   achievement.NewChecker(achievement.DefaultDefinitions()),
		levels:    achievement.DefaultLevelTable(),
		publisher: publisher,
		flags:     flags,
	}
}

func (f *CompletionFlow) featureEnabled(feature string, userID shared.UserID) bool {
	if f.flags == nil {
		return true
	}
	return f.flags.IsEnabled(feature, &config.FeatureContext{UserID: string(userID)})
}

// Execute runs the flow for one scored submission.
func (f *CompletionFlow) Execute(ctx context.Context, input CompletionInput) (*CompletionResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	state := &completionState{
		input: input,
		result: &CompletionResult{
			UserID: input.UserID,
		},
	}

	steps := []struct {
		name CompletionStep
		run  func(context.Context, *completionState) error
	}{
		{StepBuildFacts, f.stepBuildFacts},
		{StepCheckAchievements, f.stepCheckAchievements},
		{StepGrantAchievements, f.stepGrantAchievements},
		{StepAwardXP, f.stepAwardXP},
		{StepIssueCertificate, f.stepIssueCertificate},
		{StepPublishEvents, f.stepPublishEvents},
	}
	for _, step := range steps {
		if err := step.run(ctx, state); err != nil {
			return nil, fmt.Errorf("completion_flow: step %s: %w", step.name, err)
		}
	}

	state.result.ProcessedAt = time.Now().UTC()
	return state.result, nil
}

// stepBuildFacts loads the profile, streak and existing grants, then
// assembles the condition-check facts.
func (f *CompletionFlow) stepBuildFacts(ctx context.Context, state *completionState) error {
	profile, err := f.profiles.FindProfile(ctx, state.input.UserID)
	if errors.Is(err, shared.ErrNotFound) {
		profile = achievement.NewCareerProfile(state.input.UserID)
	} else if err != nil {
		return err
	}
	state.profile = profile

	streak, err := f.streaks.GetStreak(ctx, state.input.UserID)
	if err != nil {
		return err
	}

	existing, err := f.grants.FindGrants(ctx, state.input.UserID)
	if err != nil {
		return err
	}
	state.granted = make(map[string]bool, len(existing))
	for _, g := range existing {
		state.granted[g.AchievementID] = true
	}

	certs, err := f.certs.FindCertificates(ctx, state.input.UserID)
	if err != nil {
		return err
	}

	bestScore := state.input.BestScore
	if state.input.TotalScore > bestScore {
		bestScore = state.input.TotalScore
	}

	// The event-driven path carries the count from the progress snapshot
	// rather than the task ID set; take whichever source knows more.
	completedCount := len(state.input.CompletedTaskIDs)
	if state.input.CompletedTasks > completedCount {
		completedCount = state.input.CompletedTasks
	}

	completedWorkstations := state.input.CompletedWorkstations
	if completedWorkstations == nil {
		completedWorkstations = make(map[shared.WorkstationID]bool)
	}
	if achievement.CertificateDue(state.input.CompletedTasks, state.input.TotalTasks) {
		completedWorkstations[state.input.WorkstationID] = true
	}

	state.facts = achievement.Facts{
		UserID:                  state.input.UserID,
		CompletedTaskIDs:        state.input.CompletedTaskIDs,
		CompletedTaskCount:      completedCount,
		CompletedWorkstations:   completedWorkstations,
		StreakDays:              streak.CurrentStreak,
		BestScore:               bestScore,
		TotalMinutes:            state.input.TotalMinutes,
		Level:                   profile.Level,
		ConsecutiveFirstTry:     state.input.ConsecutiveFirstTry,
		AllPerfect:              state.input.AllPerfect,
		AllWorkstationsComplete: state.input.AllWorkstationsComplete,
		AllCertificates:         len(certs) > 0 && len(certs) >= len(completedWorkstations),
	}
	return nil
}

// stepCheckAchievements finds definitions newly satisfied by the facts.
func (f *CompletionFlow) stepCheckAchievements(_ context.Context, state *completionState) error {
	if !f.featureEnabled(config.FeatureGamificationAchievements, state.input.UserID) {
		return nil
	}
	unlocked, err := f.checker.CheckNew(state.facts, state.granted)
	if err != nil {
		return err
	}
	state.unlocked = unlocked
	return nil
}

// stepGrantAchievements persists the unlocked achievements. Grants are
// idempotent, so a concurrent flow granting the same achievement is
// harmless.
func (f *CompletionFlow) stepGrantAchievements(ctx context.Context, state *completionState) error {
	for _, def := range state.unlocked {
		grant := &achievement.Grant{
			ID:            uuid.NewString(),
			UserID:        state.input.UserID,
			AchievementID: def.ID,
			GrantedAt:     time.Now().UTC(),
		}
		stored, err := f.grants.SaveGrant(ctx, grant)
		if err != nil {
			return err
		}
		state.result.NewGrants = append(state.result.NewGrants, *stored)
	}
	return nil
}

// stepAwardXP accrues task XP plus achievement bonuses and applies level
// progression.
func (f *CompletionFlow) stepAwardXP(ctx context.Context, state *completionState) error {
	xp := achievement.XPReward(state.input.BaseXP, state.input.Difficulty, state.input.TotalScore)
	for _, def := range state.unlocked {
		xp += def.XPReward
	}
	state.result.XPAwarded = xp

	state.result.XPGrant = state.profile.GrantXP(xp, f.levels)
	return f.profiles.SaveProfile(ctx, state.profile)
}

// stepIssueCertificate issues the workstation certificate when every task
// is complete. Issuance is idempotent on (user, workstation).
func (f *CompletionFlow) stepIssueCertificate(ctx context.Context, state *completionState) error {
	if !f.featureEnabled(config.FeatureGamificationCertificates, state.input.UserID) {
		return nil
	}
	if !achievement.CertificateDue(state.input.CompletedTasks, state.input.TotalTasks) {
		return nil
	}

	cert := &achievement.Certificate{
		ID:            uuid.NewString(),
		UserID:        state.input.UserID,
		WorkstationID: state.input.WorkstationID,
		IssuedAt:      time.Now().UTC(),
	}
	stored, err := f.certs.SaveCertificate(ctx, cert)
	if err != nil {
		return err
	}
	// Only report a certificate issued by this run, not a re-read of an
	// old one.
	if stored.ID == cert.ID {
		state.result.Certificate = stored
	}
	return nil
}

// stepPublishEvents announces the grants, level-ups and certificate.
func (f *CompletionFlow) stepPublishEvents(ctx context.Context, state *completionState) error {
	if f.publisher == nil {
		return nil
	}

	for i, grant := range state.result.NewGrants {
		def := state.unlocked[i]
		event := shared.NewAchievementUnlockedEvent(
			string(grant.UserID),
			grant.AchievementID,
			string(def.Rarity),
			def.XPReward,
		)
		if err := f.publisher.Publish(ctx, event); err != nil {
			return err
		}
	}

	if state.result.XPGrant.LeveledUp() {
		event := shared.NewLevelUpEvent(
			string(state.input.UserID),
			state.result.XPGrant.OldLevel,
			state.result.XPGrant.NewLevel,
			state.result.XPGrant.CrossedLevels,
			state.profile.TotalXP,
		)
		if err := f.publisher.Publish(ctx, event); err != nil {
			return err
		}
	}

	if state.result.Certificate != nil {
		event := shared.NewCertificateIssuedEvent(
			string(state.input.UserID),
			string(state.input.WorkstationID),
			state.result.Certificate.ID,
		)
		if err := f.publisher.Publish(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
