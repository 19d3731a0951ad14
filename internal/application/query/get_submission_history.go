package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/labsim-hub/labsim-progression-engine/internal/domain/scoring"
	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET SUBMISSION HISTORY QUERY
// Returns a learner's most recent scored submissions.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultHistoryLimit bounds the history when no limit is given.
const DefaultHistoryLimit = 20

// GetSubmissionHistoryQuery identifies the learner.
type GetSubmissionHistoryQuery struct {
	UserID shared.UserID

	// Limit caps the returned results. 0 means DefaultHistoryLimit.
	Limit int
}

// Validate checks the query.
func (q GetSubmissionHistoryQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("get_submission_history: user ID is required")
	}
	if q.Limit < 0 {
		return errors.New("get_submission_history: limit must be >= 0")
	}
	return nil
}

// GetSubmissionHistoryResult is the recent scoring history.
type GetSubmissionHistoryResult struct {
	UserID  shared.UserID    `json:"user_id"`
	Results []scoring.Result `json:"results"`
}

// GetSubmissionHistoryHandler serves scoring history reads.
type GetSubmissionHistoryHandler struct {
	submissions scoring.Repository
}

// NewGetSubmissionHistoryHandler creates the handler.
func NewGetSubmissionHistoryHandler(submissions scoring.Repository) *GetSubmissionHistoryHandler {
	return &GetSubmissionHistoryHandler{submissions: submissions}
}

// Handle executes the query.
func (h *GetSubmissionHistoryHandler) Handle(ctx context.Context, query GetSubmissionHistoryQuery) (*GetSubmissionHistoryResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	limit := query.Limit
	if limit == 0 {
		limit = DefaultHistoryLimit
	}

	results, err := h.submissions.FindResults(ctx, query.UserID, limit)
	if err != nil {
		return nil, fmt.Errorf("get_submission_history: %w", err)
	}
	return &GetSubmissionHistoryResult{
		UserID:  query.UserID,
		Results: results,
	}, nil
}
