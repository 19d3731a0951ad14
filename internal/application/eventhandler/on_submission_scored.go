// Package eventhandler contains subscribers that react to domain events.
package eventhandler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/labsim-hub/labsim-progression-engine/internal/application/saga"
	"github.com/labsim-hub/labsim-progression-engine/internal/domain/achievement"
	"github.com/labsim-hub/labsim-progression-engine/internal/domain/progress"
	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ON SUBMISSION SCORED
// Subscribes to scoring.submission_scored and drives the completion flow:
// achievements, XP, level progression and certificates. Progression never
// runs before the final score exists because it only ever starts here.
// ══════════════════════════════════════════════════════════════════════════════

// TaskCatalog resolves task metadata the scoring pipeline does not carry.
type TaskCatalog interface {
	// TaskInfo returns the difficulty and base XP reward for a task.
	TaskInfo(ctx context.Context, taskID shared.TaskID) (achievement.Difficulty, int, error)
}

// OnSubmissionScored runs the completion flow for every scored submission.
type OnSubmissionScored struct {
	flow    *saga.CompletionFlow
	local   progress.LocalStore
	catalog TaskCatalog
	logger  *slog.Logger
}

// NewOnSubmissionScored creates the subscriber.
func NewOnSubmissionScored(
	flow *saga.CompletionFlow,
	local progress.LocalStore,
	catalog TaskCatalog,
	logger *slog.Logger,
) *OnSubmissionScored {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnSubmissionScored{
		flow:    flow,
		local:   local,
		catalog: catalog,
		logger:  logger,
	}
}

// Name implements shared.EventHandler.
func (h *OnSubmissionScored) Name() string {
	return "on_submission_scored"
}

// Handle implements shared.EventHandler.
func (h *OnSubmissionScored) Handle(ctx context.Context, event shared.Event) error {
	if event.EventType() != shared.EventSubmissionScored {
		return nil
	}

	scored, err := decodeScoredEvent(event)
	if err != nil {
		return fmt.Errorf("on_submission_scored: %w", err)
	}

	input, err := h.buildInput(ctx, scored)
	if err != nil {
		return fmt.Errorf("on_submission_scored: %w", err)
	}

	result, err := h.flow.Execute(ctx, input)
	if err != nil {
		return fmt.Errorf("on_submission_scored: %w", err)
	}

	if len(result.NewGrants) > 0 || result.XPGrant.LeveledUp() || result.Certificate != nil {
		h.logger.Info("completion flow applied",
			"user_id", scored.UserID,
			"task_id", scored.TaskID,
			"new_achievements", len(result.NewGrants),
			"xp_awarded", result.XPAwarded,
			"leveled_up", result.XPGrant.LeveledUp(),
			"certificate", result.Certificate != nil,
		)
	}
	return nil
}

// buildInput assembles the flow input from the event, the local progress
// snapshot and the task catalog. Facts the engine has no source for
// (session-scoped counters) stay at their zero values and the matching
// achievement conditions simply do not fire through this path.
func (h *OnSubmissionScored) buildInput(ctx context.Context, scored scoredFields) (saga.CompletionInput, error) {
	input := saga.CompletionInput{
		UserID:        shared.UserID(scored.UserID),
		WorkstationID: shared.WorkstationID(scored.WorkstationID),
		TaskID:        shared.TaskID(scored.TaskID),
		TotalScore:    scored.TotalScore,
		FirstTry:      scored.FirstTry,
		Difficulty:    achievement.DifficultyIntermediate,
	}

	if h.catalog != nil {
		difficulty, baseXP, err := h.catalog.TaskInfo(ctx, input.TaskID)
		if err != nil {
			h.logger.Warn("task catalog lookup failed, using defaults",
				"task_id", scored.TaskID, "error", err)
		} else {
			input.Difficulty = difficulty
			input.BaseXP = baseXP
		}
	}

	snapshot, err := h.local.Load(ctx, input.UserID, input.WorkstationID)
	if errors.Is(err, shared.ErrNotFound) {
		return input, nil
	}
	if err != nil {
		return saga.CompletionInput{}, err
	}
	input.CompletedTasks = snapshot.CompletedTasks
	input.TotalTasks = snapshot.TotalTasks
	return input, nil
}

// scoredFields is the subset of the scored event the handler consumes.
type scoredFields struct {
	UserID        string
	WorkstationID string
	TaskID        string
	TotalScore    int
	FirstTry      bool
}

// decodeScoredEvent reads the event either as the concrete local type or,
// for events replayed from another instance, from the payload map.
func decodeScoredEvent(event shared.Event) (scoredFields, error) {
	if e, ok := event.(shared.SubmissionScoredEvent); ok {
		return scoredFields{
			UserID:        e.UserID,
			WorkstationID: e.WorkstationID,
			TaskID:        e.TaskID,
			TotalScore:    e.TotalScore,
			FirstTry:      e.FirstTry,
		}, nil
	}

	payload := event.Payload()
	fields := scoredFields{
		UserID:        payloadString(payload, "user_id"),
		WorkstationID: payloadString(payload, "workstation_id"),
		TaskID:        payloadString(payload, "task_id"),
		TotalScore:    payloadInt(payload, "total_score"),
		FirstTry:      payloadBool(payload, "first_try"),
	}
	if fields.UserID == "" || fields.TaskID == "" {
		return scoredFields{}, errors.New("malformed submission_scored payload")
	}
	return fields, nil
}

func payloadString(payload map[string]interface{}, key string) string {
	s, _ := payload[key].(string)
	return s
}

// payloadInt tolerates float64, which is what JSON decoding produces for
// events mirrored over Redis.
func payloadInt(payload map[string]interface{}, key string) int {
	switch v := payload[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func payloadBool(payload map[string]interface{}, key string) bool {
	b, _ := payload[key].(bool)
	return b
}
