package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/labsim-hub/labsim-progression-engine/internal/domain/behavior"
	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BEHAVIOR EVENTS
// ══════════════════════════════════════════════════════════════════════════════

// BehaviorRepository implements behavior.Repository. Events arrive in
// flushed batches from the session buffer, so AppendBatch uses a single
// pgx batch round-trip instead of per-event inserts.
type BehaviorRepository struct {
	conn *Connection
}

// NewBehaviorRepository creates a behavior event repository.
func NewBehaviorRepository(conn *Connection) *BehaviorRepository {
	return &BehaviorRepository{conn: conn}
}

// AppendBatch persists a batch of events in one round-trip.
func (r *BehaviorRepository) AppendBatch(ctx context.Context, events []behavior.Event) error {
	if len(events) == 0 {
		return nil
	}

	query := `
		INSERT INTO behavior_events
			(id, session_id, user_id, workstation_id, kind, stage_id, detail, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`

	batch := &pgx.Batch{}
	for i := range events {
		ev := &events[i]

		detail := []byte("{}")
		if ev.Detail != nil {
			var err error
			detail, err = json.Marshal(ev.Detail)
			if err != nil {
				return fmt.Errorf("failed to marshal event detail: %w", err)
			}
		}

		batch.Queue(query,
			ev.ID,
			string(ev.SessionID),
			string(ev.UserID),
			string(ev.WorkstationID),
			string(ev.Kind),
			nullIfEmpty(ev.StageID),
			detail,
			ev.Timestamp,
		)
	}

	results := r.conn.Pool().SendBatch(ctx, batch)
	defer results.Close()

	for range events {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to append event batch: %w", err)
		}
	}
	return nil
}

// CountErrorsByStep aggregates error events per step for a workstation.
func (r *BehaviorRepository) CountErrorsByStep(ctx context.Context, workstationID shared.WorkstationID) ([]behavior.StepErrorStat, error) {
	query := `
		SELECT stage_id, COUNT(*), COUNT(DISTINCT user_id)
		FROM behavior_events
		WHERE workstation_id = $1 AND kind = 'error' AND stage_id IS NOT NULL
		GROUP BY stage_id
		ORDER BY COUNT(*) DESC
	`

	rows, err := r.conn.Query(ctx, query, string(workstationID))
	if err != nil {
		return nil, fmt.Errorf("failed to count errors by step: %w", err)
	}
	defer rows.Close()

	var stats []behavior.StepErrorStat
	for rows.Next() {
		var stat behavior.StepErrorStat
		if err := rows.Scan(&stat.StepID, &stat.ErrorCount, &stat.AffectedStudents); err != nil {
			return nil, fmt.Errorf("failed to scan step stat: %w", err)
		}
		stats = append(stats, stat)
	}
	return stats, rows.Err()
}

// DeleteEventsBefore removes events older than the cutoff, returning how
// many rows were deleted. Used by the nightly cleanup job to enforce the
// retention window.
func (r *BehaviorRepository) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.conn.Exec(ctx, `DELETE FROM behavior_events WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old events: %w", err)
	}
	return tag.RowsAffected(), nil
}
