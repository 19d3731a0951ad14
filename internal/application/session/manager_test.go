package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labsim-hub/labsim-progression-engine/internal/domain/progress"
	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
	redisstore "github.com/labsim-hub/labsim-progression-engine/internal/infrastructure/persistence/redis"
	"github.com/labsim-hub/labsim-progression-engine/pkg/retry"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

func snapKey(userID shared.UserID, workstationID shared.WorkstationID) string {
	return string(userID) + "/" + string(workstationID)
}

type fakeLocalStore struct {
	snapshots map[string]*progress.Snapshot
	backups   map[string][]progress.Backup
}

func newFakeLocalStore() *fakeLocalStore {
	return &fakeLocalStore{
		snapshots: make(map[string]*progress.Snapshot),
		backups:   make(map[string][]progress.Backup),
	}
}

func (s *fakeLocalStore) Save(_ context.Context, snapshot *progress.Snapshot) error {
	cp := *snapshot
	s.snapshots[snapKey(snapshot.UserID, snapshot.WorkstationID)] = &cp
	return nil
}

func (s *fakeLocalStore) Load(_ context.Context, userID shared.UserID, workstationID shared.WorkstationID) (*progress.Snapshot, error) {
	snap, ok := s.snapshots[snapKey(userID, workstationID)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *snap
	return &cp, nil
}

func (s *fakeLocalStore) Delete(_ context.Context, userID shared.UserID, workstationID shared.WorkstationID) error {
	delete(s.snapshots, snapKey(userID, workstationID))
	return nil
}

func (s *fakeLocalStore) SaveBackup(_ context.Context, backup progress.Backup, maxBackups int) error {
	key := snapKey(backup.Snapshot.UserID, backup.Snapshot.WorkstationID)
	s.backups[key] = append([]progress.Backup{backup}, s.backups[key]...)
	if len(s.backups[key]) > maxBackups {
		s.backups[key] = s.backups[key][:maxBackups]
	}
	return nil
}

func (s *fakeLocalStore) ListBackups(_ context.Context, userID shared.UserID, workstationID shared.WorkstationID) ([]progress.Backup, error) {
	return s.backups[snapKey(userID, workstationID)], nil
}

type fakeRemoteStore struct {
	snapshots map[string]*progress.Snapshot
	saveErr   error
	saves     int
}

func newFakeRemoteStore() *fakeRemoteStore {
	return &fakeRemoteStore{snapshots: make(map[string]*progress.Snapshot)}
}

func (s *fakeRemoteStore) Save(_ context.Context, snapshot *progress.Snapshot) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	cp := *snapshot
	s.snapshots[snapKey(snapshot.UserID, snapshot.WorkstationID)] = &cp
	s.saves++
	return nil
}

func (s *fakeRemoteStore) Load(_ context.Context, userID shared.UserID, workstationID shared.WorkstationID) (*progress.Snapshot, error) {
	snap, ok := s.snapshots[snapKey(userID, workstationID)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *snap
	return &cp, nil
}

func (s *fakeRemoteStore) LoadAllForUser(_ context.Context, userID shared.UserID) ([]*progress.Snapshot, error) {
	var out []*progress.Snapshot
	for _, snap := range s.snapshots {
		if snap.UserID == userID {
			cp := *snap
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeTracker struct {
	active map[shared.SessionID]redisstore.SessionInfo
	dirty  map[string]bool
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{
		active: make(map[shared.SessionID]redisstore.SessionInfo),
		dirty:  make(map[string]bool),
	}
}

func (t *fakeTracker) RegisterSession(_ context.Context, info redisstore.SessionInfo) error {
	t.active[info.SessionID] = info
	return nil
}

func (t *fakeTracker) TouchSession(_ context.Context, sessionID shared.SessionID) error {
	if _, ok := t.active[sessionID]; !ok {
		return shared.ErrSessionEnded
	}
	return nil
}

func (t *fakeTracker) EndSession(_ context.Context, sessionID shared.SessionID) error {
	delete(t.active, sessionID)
	return nil
}

func (t *fakeTracker) MarkDirty(_ context.Context, userID shared.UserID, workstationID shared.WorkstationID) error {
	t.dirty[snapKey(userID, workstationID)] = true
	return nil
}

func (t *fakeTracker) ClearDirty(_ context.Context, userID shared.UserID, workstationID shared.WorkstationID) error {
	delete(t.dirty, snapKey(userID, workstationID))
	return nil
}

type fakeSessionStreaks struct{}

func (fakeSessionStreaks) SaveStreak(context.Context, *progress.Streak) error { return nil }
func (fakeSessionStreaks) GetStreak(_ context.Context, userID shared.UserID) (*progress.Streak, error) {
	return progress.NewStreak(userID), nil
}

type countingPublisher struct {
	events []shared.Event
}

func (p *countingPublisher) Publish(_ context.Context, event shared.Event) error {
	p.events = append(p.events, event)
	return nil
}

type testEnv struct {
	local   *fakeLocalStore
	remote  *fakeRemoteStore
	tracker *fakeTracker
	pub     *countingPublisher
	manager *Manager
}

func newTestEnv() *testEnv {
	env := &testEnv{
		local:   newFakeLocalStore(),
		remote:  newFakeRemoteStore(),
		tracker: newFakeTracker(),
		pub:     &countingPublisher{},
	}
	env.manager = NewManager(
		env.local,
		env.remote,
		env.tracker,
		fakeSessionStreaks{},
		nil,
		env.pub,
		nil,
		DefaultConfig(),
	)
	return env
}

func testSnapshot(userID shared.UserID, workstationID shared.WorkstationID, updatedAt shared.Timestamp) *progress.Snapshot {
	return &progress.Snapshot{
		UserID:          userID,
		WorkstationID:   workstationID,
		ProgressPercent: 40,
		CompletedTasks:  2,
		TotalTasks:      5,
		UpdatedAt:       updatedAt,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestManager_StartFresh(t *testing.T) {
	env := newTestEnv()

	result, err := env.manager.Start(context.Background(), "user-1", "acid-bay")
	require.NoError(t, err)

	assert.NotEmpty(t, result.SessionID)
	assert.Nil(t, result.Snapshot)
	assert.Equal(t, progress.SourceNone, result.RestoredFrom)
	assert.False(t, result.HasUnfinished)
	assert.Len(t, env.tracker.active, 1)
	assert.Equal(t, 1, env.manager.OpenCount())
}

func TestManager_StartRemoteWinsBacksUpLocal(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	local := testSnapshot("user-1", "acid-bay", 1000)
	require.NoError(t, env.local.Save(ctx, local))

	newer := testSnapshot("user-1", "acid-bay", 2000)
	newer.ProgressPercent = 60
	env.remote.snapshots[snapKey("user-1", "acid-bay")] = newer

	result, err := env.manager.Start(ctx, "user-1", "acid-bay")
	require.NoError(t, err)

	assert.Equal(t, progress.SourceRemote, result.RestoredFrom)
	assert.Equal(t, float64(60), result.Snapshot.ProgressPercent)

	// The losing local snapshot must be preserved as a backup.
	backups, err := env.local.ListBackups(ctx, "user-1", "acid-bay")
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Equal(t, shared.Timestamp(1000), backups[0].Snapshot.UpdatedAt)

	// And the local store now holds the remote winner.
	stored, err := env.local.Load(ctx, "user-1", "acid-bay")
	require.NoError(t, err)
	assert.Equal(t, shared.Timestamp(2000), stored.UpdatedAt)
}

func TestManager_StartLocalWinsNoBackup(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	require.NoError(t, env.local.Save(ctx, testSnapshot("user-1", "acid-bay", 3000)))
	env.remote.snapshots[snapKey("user-1", "acid-bay")] = testSnapshot("user-1", "acid-bay", 2000)

	result, err := env.manager.Start(ctx, "user-1", "acid-bay")
	require.NoError(t, err)

	assert.Equal(t, progress.SourceLocal, result.RestoredFrom)
	backups, _ := env.local.ListBackups(ctx, "user-1", "acid-bay")
	assert.Empty(t, backups)
}

func TestManager_StartEqualTimestampsLocalWins(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	require.NoError(t, env.local.Save(ctx, testSnapshot("user-1", "acid-bay", 2000)))
	env.remote.snapshots[snapKey("user-1", "acid-bay")] = testSnapshot("user-1", "acid-bay", 2000)

	result, err := env.manager.Start(ctx, "user-1", "acid-bay")
	require.NoError(t, err)
	assert.Equal(t, progress.SourceLocal, result.RestoredFrom)
}

func TestManager_StartReplacesOpenSessionForSamePair(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	first, err := env.manager.Start(ctx, "user-1", "acid-bay")
	require.NoError(t, err)

	second, err := env.manager.Start(ctx, "user-1", "acid-bay")
	require.NoError(t, err)

	assert.NotEqual(t, first.SessionID, second.SessionID)
	assert.Equal(t, 1, env.manager.OpenCount())
	_, stillActive := env.tracker.active[first.SessionID]
	assert.False(t, stillActive)
}

func TestManager_AutosaveMarksDirty(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	result, err := env.manager.Start(ctx, "user-1", "acid-bay")
	require.NoError(t, err)

	snap := testSnapshot("user-1", "acid-bay", 0)
	require.NoError(t, env.manager.Autosave(ctx, result.SessionID, snap))

	stored, err := env.local.Load(ctx, "user-1", "acid-bay")
	require.NoError(t, err)
	assert.True(t, stored.UpdatedAt > 0, "autosave must stamp the snapshot")
	assert.True(t, env.tracker.dirty[snapKey("user-1", "acid-bay")])
}

func TestManager_AutosaveUnknownSession(t *testing.T) {
	env := newTestEnv()

	err := env.manager.Autosave(context.Background(), "no-such-session", testSnapshot("u", "w", 0))
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManager_EndPushesRemoteAndClearsDirty(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	result, err := env.manager.Start(ctx, "user-1", "acid-bay")
	require.NoError(t, err)
	require.NoError(t, env.manager.Autosave(ctx, result.SessionID, testSnapshot("user-1", "acid-bay", 0)))

	require.NoError(t, env.manager.End(ctx, result.SessionID, true))

	assert.Equal(t, 1, env.remote.saves)
	assert.False(t, env.tracker.dirty[snapKey("user-1", "acid-bay")])
	assert.Equal(t, 0, env.manager.OpenCount())
	assert.Empty(t, env.tracker.active)

	require.NotEmpty(t, env.pub.events)
	last := env.pub.events[len(env.pub.events)-1]
	assert.Equal(t, shared.EventSessionEnded, last.EventType())
}

func TestManager_EndWithDeadRemoteLeavesDirtyFlag(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	result, err := env.manager.Start(ctx, "user-1", "acid-bay")
	require.NoError(t, err)
	require.NoError(t, env.manager.Autosave(ctx, result.SessionID, testSnapshot("user-1", "acid-bay", 0)))

	env.remote.saveErr = retry.Permanent(errors.New("connection refused"))

	// Shutdown must not fail on a dead remote.
	require.NoError(t, env.manager.End(ctx, result.SessionID, true))

	assert.True(t, env.tracker.dirty[snapKey("user-1", "acid-bay")],
		"unsynced progress must stay flagged for the sync job")
	assert.Equal(t, 0, env.manager.OpenCount())
}

func TestManager_EndUnknownSession(t *testing.T) {
	env := newTestEnv()
	err := env.manager.End(context.Background(), "ghost", false)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManager_FlushAllSavesEveryOpenSession(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	a, err := env.manager.Start(ctx, "user-1", "acid-bay")
	require.NoError(t, err)
	b, err := env.manager.Start(ctx, "user-2", "storage-yard")
	require.NoError(t, err)

	require.NoError(t, env.manager.Autosave(ctx, a.SessionID, testSnapshot("user-1", "acid-bay", 0)))
	require.NoError(t, env.manager.Autosave(ctx, b.SessionID, testSnapshot("user-2", "storage-yard", 0)))

	flushed, err := env.manager.FlushAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, flushed)
}

func TestManager_UnfinishedProgress(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	unfinished := testSnapshot("user-1", "acid-bay", 2000)
	unfinished.SavedData.Execution.Status = progress.StatusInProgress
	unfinished.SavedData.Execution.CurrentStageIndex = 3
	env.remote.snapshots[snapKey("user-1", "acid-bay")] = unfinished

	finished := testSnapshot("user-1", "storage-yard", 2000)
	env.remote.snapshots[snapKey("user-1", "storage-yard")] = finished

	snaps, err := env.manager.UnfinishedProgress(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, shared.WorkstationID("acid-bay"), snaps[0].WorkstationID)
}
