package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/labsim-hub/labsim-progression-engine/internal/domain/leaderboard"
	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardRepository implements leaderboard.Repository. The unique
// (competition, user) constraint in the schema is the authority on the
// single-submission rule; the repository translates its violation into the
// domain error.
type LeaderboardRepository struct {
	conn *Connection
}

// NewLeaderboardRepository creates a leaderboard repository.
func NewLeaderboardRepository(conn *Connection) *LeaderboardRepository {
	return &LeaderboardRepository{conn: conn}
}

// Insert saves a new entry. A second submission for the same
// (competition, user) pair returns shared.ErrDuplicateSubmission.
func (r *LeaderboardRepository) Insert(ctx context.Context, entry *leaderboard.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	path, err := json.Marshal(entry.OperationPath)
	if err != nil {
		return fmt.Errorf("failed to marshal operation path: %w", err)
	}

	query := `
		INSERT INTO leaderboard_entries
			(competition_id, user_id, user_name, score, time_spent_seconds, operation_path, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.conn.Exec(ctx, query,
		string(entry.CompetitionID),
		string(entry.UserID),
		entry.UserName,
		entry.Score,
		entry.TimeSpentSeconds,
		path,
		entry.SubmittedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrDuplicateSubmission
		}
		return fmt.Errorf("failed to insert leaderboard entry: %w", err)
	}
	return nil
}

// FindByCompetition returns all entries for a competition. Ordering and
// rank assignment belong to leaderboard.SortEntries, not to the query.
func (r *LeaderboardRepository) FindByCompetition(ctx context.Context, competitionID shared.CompetitionID) ([]leaderboard.Entry, error) {
	query := `
		SELECT competition_id, user_id, user_name, score, time_spent_seconds, operation_path, submitted_at
		FROM leaderboard_entries
		WHERE competition_id = $1
	`

	rows, err := r.conn.Query(ctx, query, string(competitionID))
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard entries: %w", err)
	}
	defer rows.Close()

	var entries []leaderboard.Entry
	for rows.Next() {
		var e leaderboard.Entry
		var path []byte

		if err := rows.Scan(
			&e.CompetitionID,
			&e.UserID,
			&e.UserName,
			&e.Score,
			&e.TimeSpentSeconds,
			&path,
			&e.SubmittedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}

		if len(path) > 0 {
			if err := json.Unmarshal(path, &e.OperationPath); err != nil {
				return nil, fmt.Errorf("failed to unmarshal operation path: %w", err)
			}
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Exists checks for an entry for the (competition, user) pair.
func (r *LeaderboardRepository) Exists(ctx context.Context, competitionID shared.CompetitionID, userID shared.UserID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM leaderboard_entries
			WHERE competition_id = $1 AND user_id = $2
		)
	`

	var exists bool
	if err := r.conn.QueryRow(ctx, query, string(competitionID), string(userID)).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check leaderboard entry: %w", err)
	}
	return exists, nil
}

// ListCompetitions returns every competition with at least one entry.
func (r *LeaderboardRepository) ListCompetitions(ctx context.Context) ([]shared.CompetitionID, error) {
	query := `SELECT DISTINCT competition_id FROM leaderboard_entries ORDER BY competition_id`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list competitions: %w", err)
	}
	defer rows.Close()

	var ids []shared.CompetitionID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan competition id: %w", err)
		}
		ids = append(ids, shared.CompetitionID(id))
	}
	return ids, rows.Err()
}
