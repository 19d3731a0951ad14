package progress

import (
	"sort"

	"github.com/google/uuid"

	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
)

// DefaultMaxBackups is the rotation cap applied when the configuration
// does not override it.
const DefaultMaxBackups = 5

// Backup is an immutable copy of a snapshot taken before a destructive
// write (remote overwrite after reconciliation, session replacement).
type Backup struct {
	// ID uniquely identifies the backup.
	ID string `json:"id"`

	// Snapshot is the preserved copy.
	Snapshot Snapshot `json:"snapshot"`

	// CreatedAt is when the backup was taken.
	CreatedAt shared.Timestamp `json:"created_at"`
}

// NewBackup wraps a snapshot copy into a backup record.
func NewBackup(s Snapshot) Backup {
	return Backup{
		ID:        uuid.NewString(),
		Snapshot:  s,
		CreatedAt: shared.NewTimestamp(),
	}
}

// Rotate sorts backups newest-first and splits them into the kept prefix
// and the evicted tail. max <= 0 falls back to DefaultMaxBackups. The
// input slice is not modified.
func Rotate(backups []Backup, max int) (keep, evict []Backup) {
	if max <= 0 {
		max = DefaultMaxBackups
	}
	sorted := make([]Backup, len(backups))
	copy(sorted, backups)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CreatedAt != sorted[j].CreatedAt {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})
	if len(sorted) <= max {
		return sorted, nil
	}
	return sorted[:max], sorted[max:]
}
