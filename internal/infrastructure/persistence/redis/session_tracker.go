package redis

import (
	"context"
	"errors"
	"time"

	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION TRACKER ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrSessionIDEmpty is returned when the session ID is empty.
	ErrSessionIDEmpty = errors.New("session_tracker: session ID cannot be empty")
)

// activeSessionsKey is the set of session IDs currently being autosaved.
const activeSessionsKey = PrefixSession + "active"

// dirtySnapshotsKey is the set of user:workstation keys awaiting remote push.
const dirtySnapshotsKey = PrefixProgress + "dirty"

// ══════════════════════════════════════════════════════════════════════════════
// SESSION TRACKER
// ══════════════════════════════════════════════════════════════════════════════

// SessionInfo describes one tracked training session.
type SessionInfo struct {
	SessionID     shared.SessionID     `json:"session_id"`
	UserID        shared.UserID        `json:"user_id"`
	WorkstationID shared.WorkstationID `json:"workstation_id"`
	StartedAt     time.Time            `json:"started_at"`
	LastActiveAt  time.Time            `json:"last_active_at"`
}

// SessionTracker keeps the set of active sessions and the set of snapshots
// pending a remote push. Both sets live in Redis so the scheduler jobs see
// a consistent view even after an engine restart.
type SessionTracker struct {
	cache *Cache
}

// NewSessionTracker creates a session tracker.
func NewSessionTracker(cache *Cache) *SessionTracker {
	return &SessionTracker{cache: cache}
}

// RegisterSession records a session as active. A session started for the
// same (user, workstation) replaces the previous registration.
func (t *SessionTracker) RegisterSession(ctx context.Context, info SessionInfo) error {
	if info.SessionID == "" {
		return ErrSessionIDEmpty
	}

	if err := t.cache.Set(ctx, SessionKey(string(info.SessionID)), info, TTLSessionData); err != nil {
		return err
	}
	return t.cache.SAdd(ctx, activeSessionsKey, string(info.SessionID))
}

// TouchSession refreshes the session's last-active timestamp.
func (t *SessionTracker) TouchSession(ctx context.Context, sessionID shared.SessionID) error {
	if sessionID == "" {
		return ErrSessionIDEmpty
	}

	var info SessionInfo
	if err := t.cache.Get(ctx, SessionKey(string(sessionID)), &info); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return shared.ErrSessionEnded
		}
		return err
	}
	info.LastActiveAt = time.Now().UTC()
	return t.cache.Set(ctx, SessionKey(string(sessionID)), info, TTLSessionData)
}

// EndSession removes a session from the active set.
func (t *SessionTracker) EndSession(ctx context.Context, sessionID shared.SessionID) error {
	if sessionID == "" {
		return ErrSessionIDEmpty
	}

	if err := t.cache.SRem(ctx, activeSessionsKey, string(sessionID)); err != nil {
		return err
	}
	return t.cache.Delete(ctx, SessionKey(string(sessionID)))
}

// ListActiveSessions returns every tracked session. Sessions whose detail
// record expired are skipped and removed from the set.
func (t *SessionTracker) ListActiveSessions(ctx context.Context) ([]SessionInfo, error) {
	ids, err := t.cache.SMembers(ctx, activeSessionsKey)
	if err != nil {
		return nil, err
	}

	sessions := make([]SessionInfo, 0, len(ids))
	for _, id := range ids {
		var info SessionInfo
		if err := t.cache.Get(ctx, SessionKey(id), &info); err != nil {
			if errors.Is(err, ErrCacheMiss) {
				_ = t.cache.SRem(ctx, activeSessionsKey, id)
				continue
			}
			return nil, err
		}
		sessions = append(sessions, info)
	}
	return sessions, nil
}

// CountActive returns the number of tracked sessions.
func (t *SessionTracker) CountActive(ctx context.Context) (int64, error) {
	return t.cache.SCard(ctx, activeSessionsKey)
}

// ══════════════════════════════════════════════════════════════════════════════
// DIRTY SNAPSHOT SET
// ══════════════════════════════════════════════════════════════════════════════

// MarkDirty flags a snapshot as needing a remote push.
func (t *SessionTracker) MarkDirty(ctx context.Context, userID shared.UserID, workstationID shared.WorkstationID) error {
	return t.cache.SAdd(ctx, dirtySnapshotsKey, string(userID)+":"+string(workstationID))
}

// ClearDirty removes the flag after a successful remote push.
func (t *SessionTracker) ClearDirty(ctx context.Context, userID shared.UserID, workstationID shared.WorkstationID) error {
	return t.cache.SRem(ctx, dirtySnapshotsKey, string(userID)+":"+string(workstationID))
}

// ClearDirtyKey removes a raw set member. The sync job uses it to drop
// malformed keys that cannot be split into a (user, workstation) pair.
func (t *SessionTracker) ClearDirtyKey(ctx context.Context, key string) error {
	return t.cache.SRem(ctx, dirtySnapshotsKey, key)
}

// ListDirty returns the keys of snapshots awaiting remote push. Keys are
// "userID:workstationID"; a failed push leaves the key in place so the next
// tick retries it.
func (t *SessionTracker) ListDirty(ctx context.Context) ([]string, error) {
	return t.cache.SMembers(ctx, dirtySnapshotsKey)
}
