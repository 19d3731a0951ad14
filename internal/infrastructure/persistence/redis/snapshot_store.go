package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/labsim-hub/labsim-progression-engine/internal/domain/progress"
	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
)

// SnapshotStore implements progress.LocalStore on top of Redis. Snapshots
// are stored as JSON values, backups as a capped list with the newest entry
// at the head.
type SnapshotStore struct {
	cache *Cache
}

// NewSnapshotStore creates a local snapshot store.
func NewSnapshotStore(cache *Cache) *SnapshotStore {
	return &SnapshotStore{cache: cache}
}

// Save upserts the snapshot under its (user, workstation) key.
func (s *SnapshotStore) Save(ctx context.Context, snapshot *progress.Snapshot) error {
	if err := snapshot.Validate(); err != nil {
		return err
	}

	key := SnapshotKey(string(snapshot.UserID), string(snapshot.WorkstationID))
	if err := s.cache.Set(ctx, key, snapshot, TTLProgressSnapshot); err != nil {
		return shared.WrapError("progress", "local_save", shared.ErrServiceUnavailable,
			"failed to save local snapshot", err)
	}
	return nil
}

// Load returns the snapshot or shared.ErrNotFound.
func (s *SnapshotStore) Load(ctx context.Context, userID shared.UserID, workstationID shared.WorkstationID) (*progress.Snapshot, error) {
	key := SnapshotKey(string(userID), string(workstationID))

	var snapshot progress.Snapshot
	if err := s.cache.Get(ctx, key, &snapshot); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, shared.ErrNotFound
		}
		return nil, shared.WrapError("progress", "local_load", shared.ErrServiceUnavailable,
			"failed to load local snapshot", err)
	}
	return &snapshot, nil
}

// Delete removes the snapshot. Missing keys are not an error.
func (s *SnapshotStore) Delete(ctx context.Context, userID shared.UserID, workstationID shared.WorkstationID) error {
	return s.cache.Delete(ctx, SnapshotKey(string(userID), string(workstationID)))
}

// SaveBackup pushes a backup onto the history list and trims it to the cap.
func (s *SnapshotStore) SaveBackup(ctx context.Context, backup progress.Backup, maxBackups int) error {
	if maxBackups <= 0 {
		maxBackups = progress.DefaultMaxBackups
	}

	data, err := json.Marshal(backup)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}

	key := BackupKey(string(backup.Snapshot.UserID), string(backup.Snapshot.WorkstationID))
	client := s.cache.Client()

	pipe := client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, int64(maxBackups-1))
	pipe.Expire(ctx, key, TTLBackupHistory)
	if _, err := pipe.Exec(ctx); err != nil {
		return shared.WrapError("progress", "save_backup", shared.ErrServiceUnavailable,
			"failed to save backup", err)
	}
	return nil
}

// ListBackups returns backups newest-first.
func (s *SnapshotStore) ListBackups(ctx context.Context, userID shared.UserID, workstationID shared.WorkstationID) ([]progress.Backup, error) {
	key := BackupKey(string(userID), string(workstationID))

	raw, err := s.cache.Client().LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, shared.WrapError("progress", "list_backups", shared.ErrServiceUnavailable,
			"failed to list backups", err)
	}

	backups := make([]progress.Backup, 0, len(raw))
	for _, item := range raw {
		var b progress.Backup
		if err := json.Unmarshal([]byte(item), &b); err != nil {
			// A corrupt entry should not hide the rest of the history.
			continue
		}
		backups = append(backups, b)
	}
	return backups, nil
}
