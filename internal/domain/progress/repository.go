package progress

import (
	"context"

	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
)

// LocalStore is the fast, always-available progress store (Redis). It is
// written on every autosave and read first when restoring a session. The
// local store also holds the rotated backup history.
type LocalStore interface {
	// Save upserts the snapshot under its (user, workstation) key.
	Save(ctx context.Context, snapshot *Snapshot) error

	// Load returns the snapshot or shared.ErrNotFound.
	Load(ctx context.Context, userID shared.UserID, workstationID shared.WorkstationID) (*Snapshot, error)

	// Delete removes the snapshot. Missing keys are not an error.
	Delete(ctx context.Context, userID shared.UserID, workstationID shared.WorkstationID) error

	// SaveBackup appends a backup and applies rotation so at most maxBackups
	// newest entries survive.
	SaveBackup(ctx context.Context, backup Backup, maxBackups int) error

	// ListBackups returns backups newest-first.
	ListBackups(ctx context.Context, userID shared.UserID, workstationID shared.WorkstationID) ([]Backup, error)
}

// RemoteStore is the durable progress store (Postgres). Remote writes may
// fail transiently; callers retry them through the sync scheduler instead
// of surfacing the failure to the learner.
type RemoteStore interface {
	Save(ctx context.Context, snapshot *Snapshot) error
	Load(ctx context.Context, userID shared.UserID, workstationID shared.WorkstationID) (*Snapshot, error)

	// LoadAllForUser returns every workstation snapshot the user has, used
	// for unfinished-progress detection at login.
	LoadAllForUser(ctx context.Context, userID shared.UserID) ([]*Snapshot, error)
}

// StreakRepository persists daily activity streaks.
type StreakRepository interface {
	SaveStreak(ctx context.Context, streak *Streak) error
	GetStreak(ctx context.Context, userID shared.UserID) (*Streak, error)
}
