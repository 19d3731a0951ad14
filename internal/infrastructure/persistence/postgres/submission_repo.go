package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/labsim-hub/labsim-progression-engine/internal/domain/scoring"
	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCORED SUBMISSIONS
// ══════════════════════════════════════════════════════════════════════════════

// SubmissionRepository implements scoring.Repository. Every scored
// submission is kept for audit, with the judgment as JSONB and the four
// sub-scores in dedicated columns for reporting queries.
type SubmissionRepository struct {
	conn *Connection
}

// NewSubmissionRepository creates a submission repository.
func NewSubmissionRepository(conn *Connection) *SubmissionRepository {
	return &SubmissionRepository{conn: conn}
}

// SaveSubmission persists a submission together with its score.
func (r *SubmissionRepository) SaveSubmission(ctx context.Context, workstationID shared.WorkstationID, record *scoring.SubmissionRecord, result *scoring.Result) error {
	judgment, err := json.Marshal(record.Judgment)
	if err != nil {
		return fmt.Errorf("failed to marshal judgment: %w", err)
	}

	query := `
		INSERT INTO submissions
			(id, user_id, session_id, task_id, workstation_id, judgment,
			 accuracy_score, budget_score, path_score, time_score,
			 total_score, grade, scored_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = r.conn.Exec(ctx, query,
		record.ID,
		string(record.UserID),
		string(record.SessionID),
		string(record.TaskID),
		string(workstationID),
		judgment,
		result.SubScores.Accuracy,
		result.SubScores.BudgetEfficiency,
		result.SubScores.PathRationality,
		result.SubScores.Time,
		result.Total,
		string(result.Grade),
		result.ScoredAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrDuplicateSubmission
		}
		return fmt.Errorf("failed to save submission: %w", err)
	}
	return nil
}

// CountAttempts returns how many submissions the session already made for
// a task.
func (r *SubmissionRepository) CountAttempts(ctx context.Context, sessionID shared.SessionID, taskID shared.TaskID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM submissions
		WHERE session_id = $1 AND task_id = $2
	`

	var count int
	err := r.conn.QueryRow(ctx, query, string(sessionID), string(taskID)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count attempts: %w", err)
	}
	return count, nil
}

// FindResults returns the user's stored scores, newest first. A limit of
// zero or less means no limit.
func (r *SubmissionRepository) FindResults(ctx context.Context, userID shared.UserID, limit int) ([]scoring.Result, error) {
	query := `
		SELECT id, accuracy_score, budget_score, path_score, time_score,
			   total_score, grade, scored_at
		FROM submissions
		WHERE user_id = $1
		ORDER BY scored_at DESC
	`
	args := []interface{}{string(userID)}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find results: %w", err)
	}
	defer rows.Close()

	var results []scoring.Result
	for rows.Next() {
		var (
			res   scoring.Result
			grade string
		)
		if err := rows.Scan(
			&res.SubmissionID,
			&res.SubScores.Accuracy,
			&res.SubScores.BudgetEfficiency,
			&res.SubScores.PathRationality,
			&res.SubScores.Time,
			&res.Total,
			&grade,
			&res.ScoredAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		res.Grade = scoring.Grade(grade)
		results = append(results, res)
	}
	return results, rows.Err()
}
