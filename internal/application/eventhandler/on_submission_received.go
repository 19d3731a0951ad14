package eventhandler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/labsim-hub/labsim-progression-engine/internal/application/command"
	"github.com/labsim-hub/labsim-progression-engine/internal/domain/scoring"
	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ON SUBMISSION RECEIVED
// Subscribes to scoring.submission_received, which is how the simulation
// host hands judgments to the engine, and runs the submit judgment command.
// ══════════════════════════════════════════════════════════════════════════════

// Submitter scores a judgment submission. Implemented by the submit
// judgment command handler.
type Submitter interface {
	Handle(ctx context.Context, cmd command.SubmitJudgmentCommand) (*command.SubmitJudgmentResult, error)
}

// OnSubmissionReceived scores every submission arriving over the bus.
type OnSubmissionReceived struct {
	submitter Submitter
	logger    *slog.Logger
}

// NewOnSubmissionReceived creates the subscriber.
func NewOnSubmissionReceived(submitter Submitter, logger *slog.Logger) *OnSubmissionReceived {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnSubmissionReceived{submitter: submitter, logger: logger}
}

// Name implements shared.EventHandler.
func (h *OnSubmissionReceived) Name() string {
	return "on_submission_received"
}

// Handle implements shared.EventHandler.
func (h *OnSubmissionReceived) Handle(ctx context.Context, event shared.Event) error {
	if event.EventType() != shared.EventSubmissionReceived {
		return nil
	}

	cmd, err := decodeReceivedEvent(event)
	if err != nil {
		return fmt.Errorf("on_submission_received: %w", err)
	}

	result, err := h.submitter.Handle(ctx, cmd)
	if err != nil {
		return fmt.Errorf("on_submission_received: %w", err)
	}

	h.logger.Info("submission scored",
		"user_id", string(cmd.UserID),
		"task_id", string(cmd.TaskID),
		"submission_id", result.SubmissionID,
		"total", result.Score.Total,
		"grade", string(result.Score.Grade),
		"attempt", result.Attempt,
	)
	return nil
}

// decodeReceivedEvent reads the event either as the concrete local type or,
// for events published by another process, from the payload map.
func decodeReceivedEvent(event shared.Event) (command.SubmitJudgmentCommand, error) {
	if e, ok := event.(shared.SubmissionReceivedEvent); ok {
		return commandFromReceived(e), nil
	}

	payload := event.Payload()
	e := shared.SubmissionReceivedEvent{
		SessionID:               payloadString(payload, "session_id"),
		UserID:                  payloadString(payload, "user_id"),
		WorkstationID:           payloadString(payload, "workstation_id"),
		TaskID:                  payloadString(payload, "task_id"),
		JudgmentResult:          payloadString(payload, "judgment_result"),
		JudgmentCharacteristics: payloadStrings(payload, "judgment_characteristics"),
		JudgmentEvidence:        payloadStrings(payload, "judgment_evidence"),
		JudgmentRationale:       payloadString(payload, "judgment_rationale"),
		CorrectResult:           payloadString(payload, "correct_result"),
		CorrectCharacteristics:  payloadStrings(payload, "correct_characteristics"),
		SpentBudget:             payloadFloat(payload, "spent_budget"),
		TotalBudget:             payloadFloat(payload, "total_budget"),
		OptimalCost:             payloadFloat(payload, "optimal_cost"),
		UserPath:                payloadStrings(payload, "user_path"),
		OptimalPath:             payloadStrings(payload, "optimal_path"),
		ElapsedSeconds:          payloadFloat(payload, "elapsed_seconds"),
		TimeLimitSeconds:        payloadFloat(payload, "time_limit_seconds"),
	}
	if e.SessionID == "" || e.UserID == "" || e.TaskID == "" {
		return command.SubmitJudgmentCommand{}, errors.New("malformed submission_received payload")
	}
	return commandFromReceived(e), nil
}

func commandFromReceived(e shared.SubmissionReceivedEvent) command.SubmitJudgmentCommand {
	return command.SubmitJudgmentCommand{
		SessionID:     shared.SessionID(e.SessionID),
		UserID:        shared.UserID(e.UserID),
		WorkstationID: shared.WorkstationID(e.WorkstationID),
		TaskID:        shared.TaskID(e.TaskID),
		Judgment: scoring.Judgment{
			Result:          scoring.JudgmentResult(e.JudgmentResult),
			Characteristics: e.JudgmentCharacteristics,
			EvidenceBasis:   e.JudgmentEvidence,
			Rationale:       e.JudgmentRationale,
		},
		CorrectAnswer: scoring.CorrectAnswer{
			Result:          scoring.JudgmentResult(e.CorrectResult),
			Characteristics: e.CorrectCharacteristics,
		},
		SpentBudget:      e.SpentBudget,
		TotalBudget:      e.TotalBudget,
		OptimalCost:      e.OptimalCost,
		UserPath:         e.UserPath,
		OptimalPath:      e.OptimalPath,
		ElapsedSeconds:   e.ElapsedSeconds,
		TimeLimitSeconds: e.TimeLimitSeconds,
	}
}

// payloadFloat tolerates int, which a locally delivered payload may carry.
func payloadFloat(payload map[string]interface{}, key string) float64 {
	switch v := payload[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

// payloadStrings tolerates []interface{}, which is what JSON decoding
// produces for events mirrored over Redis.
func payloadStrings(payload map[string]interface{}, key string) []string {
	switch v := payload[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
