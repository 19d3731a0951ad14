// Package session manages the lifecycle of training sessions: start with
// local/remote reconciliation, periodic autosave, and terminal save at
// session end. The manager is the engine's single writer to the local
// progress store.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/labsim-hub/labsim-progression-engine/internal/domain/progress"
	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
	redisstore "github.com/labsim-hub/labsim-progression-engine/internal/infrastructure/persistence/redis"
	"github.com/labsim-hub/labsim-progression-engine/pkg/circuitbreaker"
	"github.com/labsim-hub/labsim-progression-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION MANAGER
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrSessionNotFound is returned for operations on an unknown session.
	ErrSessionNotFound = errors.New("session: not found")
)

// EventFlusher drains a session's buffered behavior events into the
// durable store. Implemented by the record behavior handler.
type EventFlusher interface {
	Flush(ctx context.Context, sessionID shared.SessionID) (int, error)
}

// Tracker is the session registry and dirty-snapshot index. Implemented
// by the Redis session tracker.
type Tracker interface {
	RegisterSession(ctx context.Context, info redisstore.SessionInfo) error
	TouchSession(ctx context.Context, sessionID shared.SessionID) error
	EndSession(ctx context.Context, sessionID shared.SessionID) error
	MarkDirty(ctx context.Context, userID shared.UserID, workstationID shared.WorkstationID) error
	ClearDirty(ctx context.Context, userID shared.UserID, workstationID shared.WorkstationID) error
}

// openSession is one in-memory session with its latest snapshot.
type openSession struct {
	info     redisstore.SessionInfo
	snapshot *progress.Snapshot
}

// Config contains session manager settings.
type Config struct {
	// MaxBackups caps the backup history per (user, workstation).
	MaxBackups int

	// RemoteTimeout bounds the remote store calls made during start and
	// end; the session must not hang on a dead remote.
	RemoteTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxBackups:    progress.DefaultMaxBackups,
		RemoteTimeout: 10 * time.Second,
	}
}

// Manager owns the open sessions of this engine instance.
type Manager struct {
	mu       sync.RWMutex
	sessions map[shared.SessionID]*openSession

	local     progress.LocalStore
	remote    progress.RemoteStore
	tracker   Tracker
	streaks   progress.StreakRepository
	flusher   EventFlusher
	publisher shared.EventPublisher
	retrier   *retry.Retrier
	breaker   *circuitbreaker.CircuitBreaker
	logger    *slog.Logger
	config    Config
}

// NewManager creates a session manager.
func NewManager(
	local progress.LocalStore,
	remote progress.RemoteStore,
	tracker Tracker,
	streaks progress.StreakRepository,
	flusher EventFlusher,
	publisher shared.EventPublisher,
	logger *slog.Logger,
	config Config,
) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if config.MaxBackups <= 0 {
		config.MaxBackups = progress.DefaultMaxBackups
	}
	if config.RemoteTimeout <= 0 {
		config.RemoteTimeout = 10 * time.Second
	}

	return &Manager{
		sessions:  make(map[shared.SessionID]*openSession),
		local:     local,
		remote:    remote,
		tracker:   tracker,
		streaks:   streaks,
		flusher:   flusher,
		publisher: publisher,
		retrier:   retry.RemoteSyncRetrier(),
		breaker:   circuitbreaker.RemoteStoreBreaker(),
		logger:    logger,
		config:    config,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// START / RESTORE
// ══════════════════════════════════════════════════════════════════════════════

// StartResult describes a started session.
type StartResult struct {
	// SessionID identifies the new session.
	SessionID shared.SessionID

	// Snapshot is the reconciled progress the session resumes from; nil
	// for a fresh start.
	Snapshot *progress.Snapshot

	// RestoredFrom names the store the winning snapshot came from.
	RestoredFrom progress.MergeSource

	// HasUnfinished is true when the snapshot contains an execution worth
	// offering to resume.
	HasUnfinished bool
}

// Start opens a session for the (user, workstation) pair, reconciling the
// local and remote snapshots by last-writer-wins. A session already open
// for the same pair on this instance is replaced: its state is flushed
// first, then the new session takes over.
func (m *Manager) Start(ctx context.Context, userID shared.UserID, workstationID shared.WorkstationID) (*StartResult, error) {
	if err := m.replaceExisting(ctx, userID, workstationID); err != nil {
		return nil, err
	}

	local, err := m.local.Load(ctx, userID, workstationID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	remote := m.loadRemote(ctx, userID, workstationID)

	merged, source := progress.Merge(local, remote)

	// The remote overriding a present local snapshot is the one transition
	// that discards learner-visible state, so the loser is backed up first.
	if source == progress.SourceRemote && local != nil {
		backup := progress.NewBackup(*local)
		if err := m.local.SaveBackup(ctx, backup, m.config.MaxBackups); err != nil {
			m.logger.Warn("failed to back up local snapshot",
				"user_id", string(userID),
				"workstation_id", string(workstationID),
				"error", err,
			)
		}
		if err := m.local.Save(ctx, merged); err != nil {
			return nil, err
		}
	}

	sessionID := shared.SessionID(uuid.NewString())
	now := time.Now().UTC()
	info := redisstore.SessionInfo{
		SessionID:     sessionID,
		UserID:        userID,
		WorkstationID: workstationID,
		StartedAt:     now,
		LastActiveAt:  now,
	}
	if err := m.tracker.RegisterSession(ctx, info); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[sessionID] = &openSession{info: info, snapshot: merged}
	m.mu.Unlock()

	m.recordStreak(ctx, userID, now)

	return &StartResult{
		SessionID:     sessionID,
		Snapshot:      merged,
		RestoredFrom:  source,
		HasUnfinished: merged.HasUnfinishedProgress(),
	}, nil
}

// replaceExisting ends any open session for the pair on this instance.
func (m *Manager) replaceExisting(ctx context.Context, userID shared.UserID, workstationID shared.WorkstationID) error {
	m.mu.RLock()
	var stale shared.SessionID
	for id, s := range m.sessions {
		if s.info.UserID == userID && s.info.WorkstationID == workstationID {
			stale = id
			break
		}
	}
	m.mu.RUnlock()

	if stale == "" {
		return nil
	}

	m.logger.Info("replacing open session",
		"session_id", string(stale),
		"user_id", string(userID),
		"workstation_id", string(workstationID),
	)
	return m.End(ctx, stale, false)
}

// loadRemote fetches the remote snapshot, tolerating remote failure: a
// session always starts, at worst from local-only state.
func (m *Manager) loadRemote(ctx context.Context, userID shared.UserID, workstationID shared.WorkstationID) *progress.Snapshot {
	ctx, cancel := context.WithTimeout(ctx, m.config.RemoteTimeout)
	defer cancel()

	var remote *progress.Snapshot
	err := m.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		remote, err = m.remote.Load(ctx, userID, workstationID)
		if errors.Is(err, shared.ErrNotFound) {
			remote = nil
			return nil
		}
		return err
	})
	if err != nil {
		m.logger.Warn("remote snapshot unavailable, starting from local state",
			"user_id", string(userID),
			"workstation_id", string(workstationID),
			"error", err,
		)
		return nil
	}
	return remote
}

// recordStreak updates the user's daily streak for this activity.
func (m *Manager) recordStreak(ctx context.Context, userID shared.UserID, now time.Time) {
	streak, err := m.streaks.GetStreak(ctx, userID)
	if err != nil {
		m.logger.Warn("failed to load streak", "user_id", string(userID), "error", err)
		return
	}
	streak.RecordActivity(now)
	if err := m.streaks.SaveStreak(ctx, streak); err != nil {
		m.logger.Warn("failed to save streak", "user_id", string(userID), "error", err)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// AUTOSAVE
// ══════════════════════════════════════════════════════════════════════════════

// Autosave records the session's current snapshot: the in-memory copy is
// replaced, the local store is written, and the snapshot is marked dirty
// for the remote sync job. The snapshot's timestamp is advanced
// monotonically before the write.
func (m *Manager) Autosave(ctx context.Context, sessionID shared.SessionID, snapshot *progress.Snapshot) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return ErrSessionNotFound
	}
	snapshot.Touch()
	s.snapshot = snapshot
	m.mu.Unlock()

	if err := m.local.Save(ctx, snapshot); err != nil {
		return err
	}
	if err := m.tracker.MarkDirty(ctx, snapshot.UserID, snapshot.WorkstationID); err != nil {
		return err
	}
	return m.tracker.TouchSession(ctx, sessionID)
}

// FlushAll writes every open session's snapshot to the local store and
// marks it dirty. Called by the autosave scheduler job.
func (m *Manager) FlushAll(ctx context.Context) (int, error) {
	m.mu.Lock()
	snapshots := make([]*progress.Snapshot, 0, len(m.sessions))
	for _, s := range m.sessions {
		if s.snapshot != nil {
			s.snapshot.Touch()
			snapshots = append(snapshots, s.snapshot)
		}
	}
	m.mu.Unlock()

	var flushed int
	for _, snapshot := range snapshots {
		if err := m.local.Save(ctx, snapshot); err != nil {
			return flushed, err
		}
		if err := m.tracker.MarkDirty(ctx, snapshot.UserID, snapshot.WorkstationID); err != nil {
			return flushed, err
		}
		flushed++
	}
	return flushed, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// END
// ══════════════════════════════════════════════════════════════════════════════

// End closes a session: terminal local save, best-effort remote push,
// event buffer drain, tracker cleanup, and the session-ended event.
// hostSignaled records whether the simulation host requested the shutdown.
func (m *Manager) End(ctx context.Context, sessionID shared.SessionID, hostSignaled bool) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}

	if s.snapshot != nil {
		s.snapshot.Touch()
		if err := m.local.Save(ctx, s.snapshot); err != nil {
			return err
		}

		if err := m.pushRemote(ctx, s.snapshot); err != nil {
			// Leave the dirty flag for the sync job instead of failing
			// the shutdown path.
			m.logger.Warn("terminal remote push failed, deferring to sync job",
				"session_id", string(sessionID),
				"error", err,
			)
			if err := m.tracker.MarkDirty(ctx, s.snapshot.UserID, s.snapshot.WorkstationID); err != nil {
				return err
			}
		} else {
			_ = m.tracker.ClearDirty(ctx, s.snapshot.UserID, s.snapshot.WorkstationID)
		}
	}

	if m.flusher != nil {
		if _, err := m.flusher.Flush(ctx, sessionID); err != nil {
			m.logger.Warn("failed to drain event buffer",
				"session_id", string(sessionID),
				"error", err,
			)
		}
	}

	if err := m.tracker.EndSession(ctx, sessionID); err != nil {
		return err
	}

	if m.publisher != nil {
		event := shared.NewSessionEndedEvent(
			string(s.info.UserID),
			string(s.info.WorkstationID),
			string(sessionID),
			hostSignaled,
		)
		if err := m.publisher.Publish(ctx, event); err != nil {
			m.logger.Warn("failed to publish session ended event", "error", err)
		}
	}
	return nil
}

// EndAll closes every open session. Called on engine shutdown.
func (m *Manager) EndAll(ctx context.Context) error {
	m.mu.RLock()
	ids := make([]shared.SessionID, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	var firstErr error
	for _, id := range ids {
		if err := m.End(ctx, id, true); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// pushRemote pushes one snapshot through the retrier and breaker.
func (m *Manager) pushRemote(ctx context.Context, snapshot *progress.Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, m.config.RemoteTimeout)
	defer cancel()

	return m.breaker.Execute(ctx, func(ctx context.Context) error {
		return m.retrier.Do(ctx, func(ctx context.Context) error {
			return m.remote.Save(ctx, snapshot)
		})
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// OpenCount returns the number of sessions open on this instance.
func (m *Manager) OpenCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CurrentSnapshot returns the in-memory snapshot of an open session.
func (m *Manager) CurrentSnapshot(sessionID shared.SessionID) (*progress.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.snapshot, nil
}

// UnfinishedProgress returns the user's snapshots that contain an
// execution worth resuming, across all workstations. Remote is consulted
// first; local snapshots newer than their remote counterpart win.
func (m *Manager) UnfinishedProgress(ctx context.Context, userID shared.UserID) ([]*progress.Snapshot, error) {
	remotes, err := m.remote.LoadAllForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var unfinished []*progress.Snapshot
	for _, remote := range remotes {
		local, err := m.local.Load(ctx, userID, remote.WorkstationID)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
		merged, _ := progress.Merge(local, remote)
		if merged.HasUnfinishedProgress() {
			unfinished = append(unfinished, merged)
		}
	}
	return unfinished, nil
}
