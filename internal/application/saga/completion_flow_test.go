package saga

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labsim-hub/labsim-progression-engine/internal/domain/achievement"
	"github.com/labsim-hub/labsim-progression-engine/internal/domain/progress"
	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type fakeAchievementStore struct {
	grants   map[string]*achievement.Grant
	certs    map[string]*achievement.Certificate
	profiles map[shared.UserID]*achievement.CareerProfile
}

func newFakeAchievementStore() *fakeAchievementStore {
	return &fakeAchievementStore{
		grants:   make(map[string]*achievement.Grant),
		certs:    make(map[string]*achievement.Certificate),
		profiles: make(map[shared.UserID]*achievement.CareerProfile),
	}
}

func (s *fakeAchievementStore) SaveGrant(_ context.Context, grant *achievement.Grant) (*achievement.Grant, error) {
	key := string(grant.UserID) + "/" + grant.AchievementID
	if existing, ok := s.grants[key]; ok {
		return existing, nil
	}
	s.grants[key] = grant
	return grant, nil
}

func (s *fakeAchievementStore) FindGrants(_ context.Context, userID shared.UserID) ([]achievement.Grant, error) {
	var out []achievement.Grant
	for _, g := range s.grants {
		if g.UserID == userID {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (s *fakeAchievementStore) SaveCertificate(_ context.Context, cert *achievement.Certificate) (*achievement.Certificate, error) {
	key := string(cert.UserID) + "/" + string(cert.WorkstationID)
	if existing, ok := s.certs[key]; ok {
		return existing, nil
	}
	s.certs[key] = cert
	return cert, nil
}

func (s *fakeAchievementStore) FindCertificates(_ context.Context, userID shared.UserID) ([]achievement.Certificate, error) {
	var out []achievement.Certificate
	for _, c := range s.certs {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *fakeAchievementStore) FindProfile(_ context.Context, userID shared.UserID) (*achievement.CareerProfile, error) {
	p, ok := s.profiles[userID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return p, nil
}

func (s *fakeAchievementStore) SaveProfile(_ context.Context, profile *achievement.CareerProfile) error {
	s.profiles[profile.UserID] = profile
	return nil
}

type fakeStreakRepo struct {
	streaks map[shared.UserID]*progress.Streak
}

func (s *fakeStreakRepo) SaveStreak(_ context.Context, streak *progress.Streak) error {
	s.streaks[streak.UserID] = streak
	return nil
}

func (s *fakeStreakRepo) GetStreak(_ context.Context, userID shared.UserID) (*progress.Streak, error) {
	if st, ok := s.streaks[userID]; ok {
		return st, nil
	}
	return progress.NewStreak(userID), nil
}

type capturingPublisher struct {
	events []shared.Event
}

func (p *capturingPublisher) Publish(_ context.Context, event shared.Event) error {
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) typesSeen() []shared.EventType {
	var out []shared.EventType
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

func newFlow(store *fakeAchievementStore, pub *capturingPublisher) *CompletionFlow {
	streaks := &fakeStreakRepo{streaks: make(map[shared.UserID]*progress.Streak)}
	return NewCompletionFlow(store, store, store, streaks, pub, nil)
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestCompletionFlow_FirstTaskGrantsAchievementAndXP(t *testing.T) {
	store := newFakeAchievementStore()
	pub := &capturingPublisher{}
	flow := newFlow(store, pub)

	result, err := flow.Execute(context.Background(), CompletionInput{
		UserID:        "user-1",
		WorkstationID: "acid-bay",
		TaskID:        "task-1",
		TotalScore:    80,
		FirstTry:      true,
		Difficulty:    achievement.DifficultyBeginner,
		BaseXP:        100,
		CompletedTaskIDs: map[shared.TaskID]bool{
			"task-1": true,
		},
		CompletedTasks: 1,
		TotalTasks:     5,
	})
	require.NoError(t, err)

	// "Первое заключение" (first-task) fires at one completed task.
	require.Len(t, result.NewGrants, 1)
	assert.Equal(t, "first-task", result.NewGrants[0].AchievementID)

	// Task XP: 100 * 1.0 * 0.8 = 80, plus the 50 XP achievement bonus.
	assert.Equal(t, 130, result.XPAwarded)

	profile := store.profiles["user-1"]
	require.NotNil(t, profile)
	assert.Equal(t, 130, profile.TotalXP)
	assert.Equal(t, 2, profile.Level) // level 2 threshold is 100 XP

	assert.Contains(t, pub.typesSeen(), shared.EventAchievementUnlocked)
	assert.Contains(t, pub.typesSeen(), shared.EventLevelUp)
	assert.Nil(t, result.Certificate)
}

func TestCompletionFlow_TaskCountConditionsFireWithoutTaskIDSet(t *testing.T) {
	store := newFakeAchievementStore()
	pub := &capturingPublisher{}
	flow := newFlow(store, pub)

	// The scored-event subscriber only knows the snapshot's completed-task
	// count, never the task ID set.
	result, err := flow.Execute(context.Background(), CompletionInput{
		UserID:         "user-1",
		WorkstationID:  "acid-bay",
		TaskID:         "task-1",
		TotalScore:     80,
		Difficulty:     achievement.DifficultyBeginner,
		BaseXP:         100,
		CompletedTasks: 1,
		TotalTasks:     3,
	})
	require.NoError(t, err)

	var ids []string
	for _, g := range result.NewGrants {
		ids = append(ids, g.AchievementID)
	}
	assert.Contains(t, ids, "first-task")
}

func TestCompletionFlow_AchievementIsNotRegranted(t *testing.T) {
	store := newFakeAchievementStore()
	pub := &capturingPublisher{}
	flow := newFlow(store, pub)

	input := CompletionInput{
		UserID:           "user-1",
		WorkstationID:    "acid-bay",
		TaskID:           "task-1",
		TotalScore:       50,
		Difficulty:       achievement.DifficultyBeginner,
		BaseXP:           10,
		CompletedTaskIDs: map[shared.TaskID]bool{"task-1": true},
		CompletedTasks:   1,
		TotalTasks:       5,
	}

	first, err := flow.Execute(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, first.NewGrants, 1)

	second, err := flow.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Empty(t, second.NewGrants, "already granted achievements must not unlock again")
}

func TestCompletionFlow_CertificateOnWorkstationCompletion(t *testing.T) {
	store := newFakeAchievementStore()
	pub := &capturingPublisher{}
	flow := newFlow(store, pub)

	result, err := flow.Execute(context.Background(), CompletionInput{
		UserID:         "user-1",
		WorkstationID:  "acid-bay",
		TaskID:         "task-5",
		TotalScore:     70,
		Difficulty:     achievement.DifficultyBeginner,
		BaseXP:         10,
		CompletedTasks: 5,
		TotalTasks:     5,
	})
	require.NoError(t, err)

	require.NotNil(t, result.Certificate)
	assert.Equal(t, shared.WorkstationID("acid-bay"), result.Certificate.WorkstationID)
	assert.Contains(t, pub.typesSeen(), shared.EventCertificateIssued)

	// Re-running the flow must not report the certificate a second time.
	again, err := flow.Execute(context.Background(), CompletionInput{
		UserID:         "user-1",
		WorkstationID:  "acid-bay",
		TaskID:         "task-5",
		TotalScore:     90,
		Difficulty:     achievement.DifficultyBeginner,
		BaseXP:         10,
		CompletedTasks: 5,
		TotalTasks:     5,
	})
	require.NoError(t, err)
	assert.Nil(t, again.Certificate)
}

func TestCompletionFlow_NoCertificateWhenWorkstationIncomplete(t *testing.T) {
	store := newFakeAchievementStore()
	flow := newFlow(store, &capturingPublisher{})

	result, err := flow.Execute(context.Background(), CompletionInput{
		UserID:         "user-1",
		WorkstationID:  "acid-bay",
		TaskID:         "task-2",
		TotalScore:     100,
		Difficulty:     achievement.DifficultyAdvanced,
		BaseXP:         100,
		CompletedTasks: 2,
		TotalTasks:     5,
	})
	require.NoError(t, err)
	assert.Nil(t, result.Certificate)
	assert.Empty(t, store.certs)
}

func TestCompletionFlow_ValidatesInput(t *testing.T) {
	flow := newFlow(newFakeAchievementStore(), &capturingPublisher{})

	_, err := flow.Execute(context.Background(), CompletionInput{
		WorkstationID: "acid-bay",
		TotalScore:    50,
	})
	assert.Error(t, err)

	_, err = flow.Execute(context.Background(), CompletionInput{
		UserID:        "user-1",
		WorkstationID: "acid-bay",
		TotalScore:    101,
	})
	assert.Error(t, err)
}
