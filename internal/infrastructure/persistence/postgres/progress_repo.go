package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/labsim-hub/labsim-progression-engine/internal/domain/progress"
	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REMOTE PROGRESS STORE
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements progress.RemoteStore and
// progress.StreakRepository. The upsert carries the last-writer-wins guard
// in SQL: a stale snapshot never overwrites a newer row, even when two
// engine instances push concurrently.
type ProgressRepository struct {
	conn *Connection
}

// NewProgressRepository creates a remote progress repository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

// Save upserts the snapshot, keeping the newer row on timestamp conflict.
func (r *ProgressRepository) Save(ctx context.Context, snapshot *progress.Snapshot) error {
	if err := snapshot.Validate(); err != nil {
		return err
	}

	savedData, err := json.Marshal(snapshot.SavedData)
	if err != nil {
		return fmt.Errorf("failed to marshal saved data: %w", err)
	}

	query := `
		INSERT INTO progress_snapshots
			(user_id, workstation_id, progress_percent, completed_tasks, total_tasks,
			 last_task_id, last_stage_id, saved_data, updated_at_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, workstation_id) DO UPDATE SET
			progress_percent = EXCLUDED.progress_percent,
			completed_tasks = EXCLUDED.completed_tasks,
			total_tasks = EXCLUDED.total_tasks,
			last_task_id = EXCLUDED.last_task_id,
			last_stage_id = EXCLUDED.last_stage_id,
			saved_data = EXCLUDED.saved_data,
			updated_at_ms = EXCLUDED.updated_at_ms
		WHERE progress_snapshots.updated_at_ms <= EXCLUDED.updated_at_ms
	`

	_, err = r.conn.Exec(ctx, query,
		string(snapshot.UserID),
		string(snapshot.WorkstationID),
		snapshot.ProgressPercent,
		snapshot.CompletedTasks,
		snapshot.TotalTasks,
		nullIfEmpty(snapshot.LastTaskID),
		nullIfEmpty(snapshot.LastStageID),
		savedData,
		int64(snapshot.UpdatedAt),
	)
	if err != nil {
		return shared.WrapError("progress", "remote_save", shared.ErrSyncFailure,
			"failed to save remote snapshot", err)
	}
	return nil
}

// Load returns the snapshot or shared.ErrNotFound.
func (r *ProgressRepository) Load(ctx context.Context, userID shared.UserID, workstationID shared.WorkstationID) (*progress.Snapshot, error) {
	query := `
		SELECT user_id, workstation_id, progress_percent, completed_tasks, total_tasks,
			   last_task_id, last_stage_id, saved_data, updated_at_ms
		FROM progress_snapshots
		WHERE user_id = $1 AND workstation_id = $2
	`

	snapshot, err := scanSnapshot(r.conn.QueryRow(ctx, query, string(userID), string(workstationID)))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrNotFound
		}
		return nil, shared.WrapError("progress", "remote_load", shared.ErrSyncFailure,
			"failed to load remote snapshot", err)
	}
	return snapshot, nil
}

// LoadAllForUser returns every workstation snapshot the user has.
func (r *ProgressRepository) LoadAllForUser(ctx context.Context, userID shared.UserID) ([]*progress.Snapshot, error) {
	query := `
		SELECT user_id, workstation_id, progress_percent, completed_tasks, total_tasks,
			   last_task_id, last_stage_id, saved_data, updated_at_ms
		FROM progress_snapshots
		WHERE user_id = $1
		ORDER BY updated_at_ms DESC
	`

	rows, err := r.conn.Query(ctx, query, string(userID))
	if err != nil {
		return nil, shared.WrapError("progress", "remote_load_all", shared.ErrSyncFailure,
			"failed to load user snapshots", err)
	}
	defer rows.Close()

	var snapshots []*progress.Snapshot
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, rows.Err()
}

// rowScanner abstracts pgx.Row and pgx.Rows for scanSnapshot.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(row rowScanner) (*progress.Snapshot, error) {
	var (
		s          progress.Snapshot
		lastTask   *string
		lastStage  *string
		savedData  []byte
		updatedAt  int64
	)

	if err := row.Scan(
		&s.UserID,
		&s.WorkstationID,
		&s.ProgressPercent,
		&s.CompletedTasks,
		&s.TotalTasks,
		&lastTask,
		&lastStage,
		&savedData,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	if lastTask != nil {
		s.LastTaskID = *lastTask
	}
	if lastStage != nil {
		s.LastStageID = *lastStage
	}
	if len(savedData) > 0 {
		if err := json.Unmarshal(savedData, &s.SavedData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal saved data: %w", err)
		}
	}
	s.UpdatedAt = shared.Timestamp(updatedAt)

	return &s, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ══════════════════════════════════════════════════════════════════════════════
// STREAKS
// ══════════════════════════════════════════════════════════════════════════════

// SaveStreak saves or updates a streak.
func (r *ProgressRepository) SaveStreak(ctx context.Context, streak *progress.Streak) error {
	query := `
		INSERT INTO streaks (user_id, current_streak, best_streak, last_active_date, streak_start_date)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			current_streak = EXCLUDED.current_streak,
			best_streak = GREATEST(streaks.best_streak, EXCLUDED.best_streak),
			last_active_date = EXCLUDED.last_active_date,
			streak_start_date = EXCLUDED.streak_start_date
	`

	var lastActive, streakStart *time.Time
	if !streak.LastActiveDate.IsZero() {
		lastActive = &streak.LastActiveDate
	}
	if !streak.StreakStartDate.IsZero() {
		streakStart = &streak.StreakStartDate
	}

	_, err := r.conn.Exec(ctx, query,
		string(streak.UserID),
		streak.CurrentStreak,
		streak.BestStreak,
		lastActive,
		streakStart,
	)
	if err != nil {
		return fmt.Errorf("failed to save streak: %w", err)
	}
	return nil
}

// GetStreak returns the current streak for a user. A user with no recorded
// activity gets a fresh empty streak, not an error.
func (r *ProgressRepository) GetStreak(ctx context.Context, userID shared.UserID) (*progress.Streak, error) {
	query := `
		SELECT user_id, current_streak, best_streak, last_active_date, streak_start_date
		FROM streaks
		WHERE user_id = $1
	`

	var (
		streak      progress.Streak
		lastActive  *time.Time
		streakStart *time.Time
	)

	err := r.conn.QueryRow(ctx, query, string(userID)).Scan(
		&streak.UserID,
		&streak.CurrentStreak,
		&streak.BestStreak,
		&lastActive,
		&streakStart,
	)
	if IsNoRows(err) {
		return progress.NewStreak(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get streak: %w", err)
	}

	if lastActive != nil {
		streak.LastActiveDate = *lastActive
	}
	if streakStart != nil {
		streak.StreakStartDate = *streakStart
	}
	return &streak, nil
}
