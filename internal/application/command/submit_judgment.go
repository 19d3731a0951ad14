// Package command contains write operations (CQRS - Commands).
// Commands are responsible for changing the state of the system.
package command

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/labsim-hub/labsim-progression-engine/internal/domain/scoring"
	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT JUDGMENT COMMAND
// Scores a learner's hazard judgment: four sub-scores, weighted total,
// grade, and a persisted submission record.
// ══════════════════════════════════════════════════════════════════════════════

// SubmitJudgmentCommand contains a judgment submission and the task's
// reference data needed to score it.
type SubmitJudgmentCommand struct {
	SessionID     shared.SessionID
	UserID        shared.UserID
	WorkstationID shared.WorkstationID
	TaskID        shared.TaskID

	// Judgment is the learner's verdict.
	Judgment scoring.Judgment

	// CorrectAnswer is the reference answer from the task definition.
	CorrectAnswer scoring.CorrectAnswer

	// Budget figures for the budget efficiency sub-score.
	SpentBudget float64
	TotalBudget float64
	OptimalCost float64

	// Operation paths for the path rationality sub-score.
	UserPath    []string
	OptimalPath []string

	// Timing for the time sub-score. TimeLimitSeconds of 0 means no limit.
	ElapsedSeconds   float64
	TimeLimitSeconds float64
}

// Validate checks the command's identifiers.
func (c SubmitJudgmentCommand) Validate() error {
	if c.SessionID == "" {
		return errors.New("submit_judgment: session ID is required")
	}
	if c.UserID == "" {
		return errors.New("submit_judgment: user ID is required")
	}
	if c.WorkstationID == "" {
		return errors.New("submit_judgment: workstation ID is required")
	}
	if c.TaskID == "" {
		return errors.New("submit_judgment: task ID is required")
	}
	return nil
}

// SubmitJudgmentResult contains the scored submission.
type SubmitJudgmentResult struct {
	// SubmissionID identifies the stored submission.
	SubmissionID string

	// Attempt is the 1-based attempt number within the session.
	Attempt int

	// FirstTry is true when this was the first attempt for the task.
	FirstTry bool

	// Score is the full scoring result.
	Score *scoring.Result
}

// SubmitJudgmentHandler handles SubmitJudgmentCommand.
type SubmitJudgmentHandler struct {
	engine      *scoring.Engine
	submissions scoring.Repository
	publisher   shared.EventPublisher
}

// NewSubmitJudgmentHandler creates a submit judgment handler.
func NewSubmitJudgmentHandler(submissions scoring.Repository, publisher shared.EventPublisher) *SubmitJudgmentHandler {
	return &SubmitJudgmentHandler{
		engine:      scoring.NewEngine(),
		submissions: submissions,
		publisher:   publisher,
	}
}

// Handle scores the judgment, persists the submission, and publishes the
// scored event. Achievement evaluation subscribes to that event, which
// guarantees it runs strictly after score computation.
func (h *SubmitJudgmentHandler) Handle(ctx context.Context, cmd SubmitJudgmentCommand) (*SubmitJudgmentResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	attempts, err := h.submissions.CountAttempts(ctx, cmd.SessionID, cmd.TaskID)
	if err != nil {
		return nil, err
	}
	attempt := attempts + 1

	record := &scoring.SubmissionRecord{
		ID:          uuid.NewString(),
		SessionID:   cmd.SessionID,
		UserID:      cmd.UserID,
		TaskID:      cmd.TaskID,
		Judgment:    cmd.Judgment,
		Attempt:     attempt,
		SubmittedAt: time.Now().UTC(),
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}

	result, err := h.engine.Evaluate(record.ID, scoring.Input{
		Judgment:         cmd.Judgment,
		CorrectAnswer:    cmd.CorrectAnswer,
		SpentBudget:      cmd.SpentBudget,
		TotalBudget:      cmd.TotalBudget,
		OptimalCost:      cmd.OptimalCost,
		UserPath:         cmd.UserPath,
		OptimalPath:      cmd.OptimalPath,
		ElapsedSeconds:   cmd.ElapsedSeconds,
		TimeLimitSeconds: cmd.TimeLimitSeconds,
	})
	if err != nil {
		return nil, err
	}

	if err := h.submissions.SaveSubmission(ctx, cmd.WorkstationID, record, result); err != nil {
		return nil, err
	}

	if h.publisher != nil {
		event := shared.NewSubmissionScoredEvent(
			string(cmd.UserID),
			string(cmd.WorkstationID),
			string(cmd.TaskID),
			record.ID,
			result.Total,
			string(result.Grade),
			attempt == 1,
		)
		if err := h.publisher.Publish(ctx, event); err != nil {
			return nil, err
		}
	}

	return &SubmitJudgmentResult{
		SubmissionID: record.ID,
		Attempt:      attempt,
		FirstTry:     attempt == 1,
		Score:        result,
	}, nil
}
