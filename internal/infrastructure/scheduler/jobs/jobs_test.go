package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labsim-hub/labsim-progression-engine/internal/domain/leaderboard"
	"github.com/labsim-hub/labsim-progression-engine/internal/domain/progress"
	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
	"github.com/labsim-hub/labsim-progression-engine/pkg/retry"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fakes
// ──────────────────────────────────────────────────────────────────────────────

func snapKey(userID shared.UserID, workstationID shared.WorkstationID) string {
	return string(userID) + ":" + string(workstationID)
}

type fakeLocal struct {
	snapshots map[string]*progress.Snapshot
}

func newFakeLocal() *fakeLocal {
	return &fakeLocal{snapshots: make(map[string]*progress.Snapshot)}
}

func (f *fakeLocal) Save(_ context.Context, snapshot *progress.Snapshot) error {
	f.snapshots[snapKey(snapshot.UserID, snapshot.WorkstationID)] = snapshot
	return nil
}

func (f *fakeLocal) Load(_ context.Context, userID shared.UserID, workstationID shared.WorkstationID) (*progress.Snapshot, error) {
	s, ok := f.snapshots[snapKey(userID, workstationID)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return s, nil
}

func (f *fakeLocal) Delete(_ context.Context, userID shared.UserID, workstationID shared.WorkstationID) error {
	delete(f.snapshots, snapKey(userID, workstationID))
	return nil
}

func (f *fakeLocal) SaveBackup(context.Context, progress.Backup, int) error { return nil }

func (f *fakeLocal) ListBackups(context.Context, shared.UserID, shared.WorkstationID) ([]progress.Backup, error) {
	return nil, nil
}

type fakeRemote struct {
	saves   []*progress.Snapshot
	saveErr error
}

func (f *fakeRemote) Save(_ context.Context, snapshot *progress.Snapshot) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves = append(f.saves, snapshot)
	return nil
}

func (f *fakeRemote) Load(context.Context, shared.UserID, shared.WorkstationID) (*progress.Snapshot, error) {
	return nil, shared.ErrNotFound
}

func (f *fakeRemote) LoadAllForUser(context.Context, shared.UserID) ([]*progress.Snapshot, error) {
	return nil, nil
}

type fakeTracker struct {
	dirty map[string]bool
}

func newFakeTracker(keys ...string) *fakeTracker {
	t := &fakeTracker{dirty: make(map[string]bool)}
	for _, k := range keys {
		t.dirty[k] = true
	}
	return t
}

func (f *fakeTracker) ListDirty(context.Context) ([]string, error) {
	keys := make([]string, 0, len(f.dirty))
	for k := range f.dirty {
		keys = append(keys, k)
	}
	return keys, nil
}

func (f *fakeTracker) ClearDirty(_ context.Context, userID shared.UserID, workstationID shared.WorkstationID) error {
	delete(f.dirty, snapKey(userID, workstationID))
	return nil
}

func (f *fakeTracker) ClearDirtyKey(_ context.Context, key string) error {
	delete(f.dirty, key)
	return nil
}

type recordPublisher struct {
	events []shared.Event
}

func (p *recordPublisher) Publish(_ context.Context, event shared.Event) error {
	p.events = append(p.events, event)
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// RemoteSyncJob
// ──────────────────────────────────────────────────────────────────────────────

func testSnapshot(userID shared.UserID, workstationID shared.WorkstationID) *progress.Snapshot {
	return &progress.Snapshot{
		UserID:        userID,
		WorkstationID: workstationID,
		UpdatedAt:     shared.NewTimestamp(),
	}
}

func TestRemoteSyncJob_PushesDirtySnapshots(t *testing.T) {
	local := newFakeLocal()
	remote := &fakeRemote{}
	tracker := newFakeTracker("user-1:acid-bay", "user-2:acid-bay")
	publisher := &recordPublisher{}

	require.NoError(t, local.Save(context.Background(), testSnapshot("user-1", "acid-bay")))
	require.NoError(t, local.Save(context.Background(), testSnapshot("user-2", "acid-bay")))

	job := NewRemoteSyncJob(local, remote, tracker, publisher, nil)
	require.NoError(t, job.Run(context.Background()))

	assert.Len(t, remote.saves, 2)
	assert.Empty(t, tracker.dirty)
	assert.Len(t, publisher.events, 2)
	for _, e := range publisher.events {
		assert.Equal(t, shared.EventSyncCompleted, e.EventType())
	}

	stats := job.LastStats()
	require.NotNil(t, stats)
	assert.Equal(t, 2, stats.DirtyCount)
	assert.Equal(t, 2, stats.PushedCount)
	assert.Equal(t, 0, stats.FailedCount)
}

func TestRemoteSyncJob_MissingSnapshotClearsFlag(t *testing.T) {
	local := newFakeLocal()
	remote := &fakeRemote{}
	tracker := newFakeTracker("user-1:acid-bay")

	job := NewRemoteSyncJob(local, remote, tracker, nil, nil)
	require.NoError(t, job.Run(context.Background()))

	assert.Empty(t, remote.saves)
	assert.Empty(t, tracker.dirty)
}

func TestRemoteSyncJob_FailedPushLeavesFlag(t *testing.T) {
	local := newFakeLocal()
	remote := &fakeRemote{saveErr: retry.Permanent(errors.New("connection refused"))}
	tracker := newFakeTracker("user-1:acid-bay")

	require.NoError(t, local.Save(context.Background(), testSnapshot("user-1", "acid-bay")))

	job := NewRemoteSyncJob(local, remote, tracker, nil, nil)
	require.NoError(t, job.Run(context.Background()))

	assert.True(t, tracker.dirty["user-1:acid-bay"])
	stats := job.LastStats()
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.FailedCount)
}

func TestRemoteSyncJob_DropsMalformedKey(t *testing.T) {
	local := newFakeLocal()
	// The raw member itself must be removed from the set: a mis-parsed
	// ClearDirty would leave it to be re-listed on every tick.
	tracker := newFakeTracker("no-separator", ":ws-only", "user-only:")
	remote := &fakeRemote{}

	job := NewRemoteSyncJob(local, remote, tracker, nil, nil)
	require.NoError(t, job.Run(context.Background()))

	assert.Empty(t, tracker.dirty)
	assert.Empty(t, remote.saves)
}

// ──────────────────────────────────────────────────────────────────────────────
// AutosaveJob
// ──────────────────────────────────────────────────────────────────────────────

type fakeFlusher struct {
	flushed int
	err     error
}

func (f *fakeFlusher) FlushAll(context.Context) (int, error) { return f.flushed, f.err }

func TestAutosaveJob_DelegatesToFlusher(t *testing.T) {
	job := NewAutosaveJob(&fakeFlusher{flushed: 3}, nil)
	assert.NoError(t, job.Run(context.Background()))

	failing := NewAutosaveJob(&fakeFlusher{err: errors.New("store down")}, nil)
	assert.Error(t, failing.Run(context.Background()))
}

// ──────────────────────────────────────────────────────────────────────────────
// RefreshLeaderboardJob
// ──────────────────────────────────────────────────────────────────────────────

type fakeLeaderboardRepo struct {
	entries map[shared.CompetitionID][]leaderboard.Entry
}

func (f *fakeLeaderboardRepo) Insert(context.Context, *leaderboard.Entry) error { return nil }

func (f *fakeLeaderboardRepo) FindByCompetition(_ context.Context, competitionID shared.CompetitionID) ([]leaderboard.Entry, error) {
	return f.entries[competitionID], nil
}

func (f *fakeLeaderboardRepo) Exists(context.Context, shared.CompetitionID, shared.UserID) (bool, error) {
	return false, nil
}

func (f *fakeLeaderboardRepo) ListCompetitions(context.Context) ([]shared.CompetitionID, error) {
	ids := make([]shared.CompetitionID, 0, len(f.entries))
	for id := range f.entries {
		ids = append(ids, id)
	}
	return ids, nil
}

type fakeLeaderboardCache struct {
	cached map[shared.CompetitionID][]leaderboard.Entry
}

func (f *fakeLeaderboardCache) ReplaceCompetition(_ context.Context, competitionID shared.CompetitionID, entries []leaderboard.Entry) error {
	if f.cached == nil {
		f.cached = make(map[shared.CompetitionID][]leaderboard.Entry)
	}
	f.cached[competitionID] = entries
	return nil
}

func (f *fakeLeaderboardCache) GetCompetition(_ context.Context, competitionID shared.CompetitionID) ([]leaderboard.Entry, error) {
	entries, ok := f.cached[competitionID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return entries, nil
}

func (f *fakeLeaderboardCache) InvalidateCompetition(_ context.Context, competitionID shared.CompetitionID) error {
	delete(f.cached, competitionID)
	return nil
}

func TestRefreshLeaderboardJob_RebuildsCache(t *testing.T) {
	repo := &fakeLeaderboardRepo{
		entries: map[shared.CompetitionID][]leaderboard.Entry{
			"spring-cup": {
				{CompetitionID: "spring-cup", UserID: "user-1", Score: 70, TimeSpentSeconds: 300},
				{CompetitionID: "spring-cup", UserID: "user-2", Score: 95, TimeSpentSeconds: 280},
			},
		},
	}
	cache := &fakeLeaderboardCache{}

	job := NewRefreshLeaderboardJob(repo, cache, nil, nil)
	require.NoError(t, job.Run(context.Background()))

	cached, err := cache.GetCompetition(context.Background(), "spring-cup")
	require.NoError(t, err)
	require.Len(t, cached, 2)
	assert.Equal(t, shared.UserID("user-2"), cached[0].UserID)
	assert.Equal(t, leaderboard.Rank(1), cached[0].Rank)
}

func TestRefreshLeaderboardJob_PublishesOnRankChange(t *testing.T) {
	repo := &fakeLeaderboardRepo{
		entries: map[shared.CompetitionID][]leaderboard.Entry{
			"spring-cup": {
				{CompetitionID: "spring-cup", UserID: "user-1", Score: 70, TimeSpentSeconds: 300},
				{CompetitionID: "spring-cup", UserID: "user-2", Score: 95, TimeSpentSeconds: 280},
			},
		},
	}
	cache := &fakeLeaderboardCache{}
	publisher := &recordPublisher{}
	job := NewRefreshLeaderboardJob(repo, cache, publisher, nil)

	// Первый прогон заполняет пустой кэш: предыдущего среза нет,
	// событие не публикуется.
	require.NoError(t, job.Run(context.Background()))
	assert.Empty(t, publisher.events)

	// Второй прогон с теми же данными: позиции не изменились.
	require.NoError(t, job.Run(context.Background()))
	assert.Empty(t, publisher.events)

	// Новый лидер в хранилище: позиции меняются, событие публикуется.
	repo.entries["spring-cup"] = append(repo.entries["spring-cup"],
		leaderboard.Entry{CompetitionID: "spring-cup", UserID: "user-3", Score: 99, TimeSpentSeconds: 200},
	)
	require.NoError(t, job.Run(context.Background()))
	require.Len(t, publisher.events, 1)
	assert.Equal(t, shared.EventLeaderboardUpdated, publisher.events[0].EventType())
}

// ──────────────────────────────────────────────────────────────────────────────
// CleanupJob
// ──────────────────────────────────────────────────────────────────────────────

type fakePruner struct {
	cutoff  time.Time
	deleted int64
	err     error
}

func (f *fakePruner) DeleteEventsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.deleted, f.err
}

func TestCleanupJob_UsesRetentionWindow(t *testing.T) {
	pruner := &fakePruner{deleted: 42}
	job := NewCleanupJob(pruner, 30*24*time.Hour, nil)

	require.NoError(t, job.Run(context.Background()))

	expected := time.Now().UTC().Add(-30 * 24 * time.Hour)
	assert.WithinDuration(t, expected, pruner.cutoff, time.Minute)
}

func TestCleanupJob_DefaultsRetention(t *testing.T) {
	pruner := &fakePruner{}
	job := NewCleanupJob(pruner, 0, nil)

	require.NoError(t, job.Run(context.Background()))

	expected := time.Now().UTC().Add(-DefaultEventRetention)
	assert.WithinDuration(t, expected, pruner.cutoff, time.Minute)
}

func TestCleanupJob_PropagatesError(t *testing.T) {
	pruner := &fakePruner{err: errors.New("db down")}
	job := NewCleanupJob(pruner, 0, nil)
	assert.Error(t, job.Run(context.Background()))
}
