package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labsim-hub/labsim-progression-engine/internal/domain/behavior"
	"github.com/labsim-hub/labsim-progression-engine/internal/domain/leaderboard"
	"github.com/labsim-hub/labsim-progression-engine/internal/domain/scoring"
	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type fakeSubmissionRepo struct {
	saved   []*scoring.SubmissionRecord
	results []*scoring.Result
	saveErr error
}

func (r *fakeSubmissionRepo) SaveSubmission(_ context.Context, _ shared.WorkstationID, record *scoring.SubmissionRecord, result *scoring.Result) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saved = append(r.saved, record)
	r.results = append(r.results, result)
	return nil
}

func (r *fakeSubmissionRepo) CountAttempts(_ context.Context, sessionID shared.SessionID, taskID shared.TaskID) (int, error) {
	n := 0
	for _, rec := range r.saved {
		if rec.SessionID == sessionID && rec.TaskID == taskID {
			n++
		}
	}
	return n, nil
}

func (r *fakeSubmissionRepo) FindResults(_ context.Context, _ shared.UserID, _ int) ([]scoring.Result, error) {
	var out []scoring.Result
	for _, res := range r.results {
		out = append(out, *res)
	}
	return out, nil
}

type eventRecorder struct {
	events []shared.Event
}

func (p *eventRecorder) Publish(_ context.Context, event shared.Event) error {
	p.events = append(p.events, event)
	return nil
}

type fakeEventBuffer struct {
	buffers map[shared.SessionID][]behavior.Event
}

func newFakeEventBuffer() *fakeEventBuffer {
	return &fakeEventBuffer{buffers: make(map[shared.SessionID][]behavior.Event)}
}

func (b *fakeEventBuffer) Append(_ context.Context, event behavior.Event) (int, error) {
	b.buffers[event.SessionID] = append(b.buffers[event.SessionID], event)
	return len(b.buffers[event.SessionID]), nil
}

func (b *fakeEventBuffer) Drain(_ context.Context, sessionID shared.SessionID) ([]behavior.Event, error) {
	events := b.buffers[sessionID]
	delete(b.buffers, sessionID)
	return events, nil
}

type fakeBehaviorRepo struct {
	batches [][]behavior.Event
}

func (r *fakeBehaviorRepo) AppendBatch(_ context.Context, events []behavior.Event) error {
	r.batches = append(r.batches, events)
	return nil
}

func (r *fakeBehaviorRepo) CountErrorsByStep(context.Context, shared.WorkstationID) ([]behavior.StepErrorStat, error) {
	return nil, nil
}

type fakeLeaderboardRepo struct {
	entries []leaderboard.Entry
}

func (r *fakeLeaderboardRepo) Insert(_ context.Context, entry *leaderboard.Entry) error {
	for _, e := range r.entries {
		if e.CompetitionID == entry.CompetitionID && e.UserID == entry.UserID {
			return shared.ErrDuplicateSubmission
		}
	}
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeLeaderboardRepo) FindByCompetition(_ context.Context, competitionID shared.CompetitionID) ([]leaderboard.Entry, error) {
	var out []leaderboard.Entry
	for _, e := range r.entries {
		if e.CompetitionID == competitionID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeLeaderboardRepo) Exists(_ context.Context, competitionID shared.CompetitionID, userID shared.UserID) (bool, error) {
	for _, e := range r.entries {
		if e.CompetitionID == competitionID && e.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeLeaderboardRepo) ListCompetitions(context.Context) ([]shared.CompetitionID, error) {
	seen := make(map[shared.CompetitionID]bool)
	var out []shared.CompetitionID
	for _, e := range r.entries {
		if !seen[e.CompetitionID] {
			seen[e.CompetitionID] = true
			out = append(out, e.CompetitionID)
		}
	}
	return out, nil
}

type fakeLeaderboardCache struct {
	replaced    map[shared.CompetitionID][]leaderboard.Entry
	invalidated int
}

func newFakeLeaderboardCache() *fakeLeaderboardCache {
	return &fakeLeaderboardCache{replaced: make(map[shared.CompetitionID][]leaderboard.Entry)}
}

func (c *fakeLeaderboardCache) ReplaceCompetition(_ context.Context, competitionID shared.CompetitionID, entries []leaderboard.Entry) error {
	c.replaced[competitionID] = entries
	return nil
}

func (c *fakeLeaderboardCache) GetCompetition(_ context.Context, competitionID shared.CompetitionID) ([]leaderboard.Entry, error) {
	entries, ok := c.replaced[competitionID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return entries, nil
}

func (c *fakeLeaderboardCache) InvalidateCompetition(_ context.Context, competitionID shared.CompetitionID) error {
	delete(c.replaced, competitionID)
	c.invalidated++
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Submit judgment
// ─────────────────────────────────────────────────────────────────────────────

func judgmentCommand() SubmitJudgmentCommand {
	return SubmitJudgmentCommand{
		SessionID:     "session-1",
		UserID:        "user-1",
		WorkstationID: "acid-bay",
		TaskID:        "task-1",
		Judgment: scoring.Judgment{
			Result:          scoring.JudgmentHazardous,
			Characteristics: []string{"toxicity", "corrosivity"},
		},
		CorrectAnswer: scoring.CorrectAnswer{
			Result:          scoring.JudgmentHazardous,
			Characteristics: []string{"toxicity", "corrosivity"},
		},
		SpentBudget:      100,
		TotalBudget:      1000,
		OptimalCost:      100,
		UserPath:         []string{"a", "b"},
		OptimalPath:      []string{"a", "b"},
		ElapsedSeconds:   60,
		TimeLimitSeconds: 300,
	}
}

func TestSubmitJudgment_ScoresAndPublishes(t *testing.T) {
	repo := &fakeSubmissionRepo{}
	pub := &eventRecorder{}
	h := NewSubmitJudgmentHandler(repo, pub)

	result, err := h.Handle(context.Background(), judgmentCommand())
	require.NoError(t, err)

	assert.NotEmpty(t, result.SubmissionID)
	assert.Equal(t, 1, result.Attempt)
	assert.True(t, result.FirstTry)
	require.NotNil(t, result.Score)
	assert.Equal(t, 100, result.Score.Total)
	assert.Equal(t, scoring.GradeGold, result.Score.Grade)

	require.Len(t, repo.saved, 1)
	require.Len(t, pub.events, 1)
	assert.Equal(t, shared.EventSubmissionScored, pub.events[0].EventType())

	scored, ok := pub.events[0].(shared.SubmissionScoredEvent)
	require.True(t, ok)
	assert.True(t, scored.FirstTry)
	assert.Equal(t, 100, scored.TotalScore)
}

func TestSubmitJudgment_SecondAttemptIsNotFirstTry(t *testing.T) {
	repo := &fakeSubmissionRepo{}
	h := NewSubmitJudgmentHandler(repo, &eventRecorder{})

	_, err := h.Handle(context.Background(), judgmentCommand())
	require.NoError(t, err)

	second, err := h.Handle(context.Background(), judgmentCommand())
	require.NoError(t, err)
	assert.Equal(t, 2, second.Attempt)
	assert.False(t, second.FirstTry)
}

func TestSubmitJudgment_RejectsInvalidCommand(t *testing.T) {
	h := NewSubmitJudgmentHandler(&fakeSubmissionRepo{}, &eventRecorder{})

	cmd := judgmentCommand()
	cmd.UserID = ""
	_, err := h.Handle(context.Background(), cmd)
	assert.Error(t, err)

	cmd = judgmentCommand()
	cmd.Judgment.Result = "definitely"
	_, err = h.Handle(context.Background(), cmd)
	assert.Error(t, err)
}

// ─────────────────────────────────────────────────────────────────────────────
// Record behavior
// ─────────────────────────────────────────────────────────────────────────────

func behaviorEvent(kind behavior.EventKind) behavior.Event {
	return behavior.Event{
		SessionID:     "session-1",
		UserID:        "user-1",
		WorkstationID: "acid-bay",
		Kind:          kind,
		StageID:       "stage-2",
		Timestamp:     time.Now().UTC(),
	}
}

func TestRecordBehavior_BuffersUntilThreshold(t *testing.T) {
	buffer := newFakeEventBuffer()
	repo := &fakeBehaviorRepo{}
	h := NewRecordBehaviorHandler(buffer, repo, 3)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		result, err := h.Handle(ctx, RecordBehaviorCommand{Event: behaviorEvent(behavior.EventPageView)})
		require.NoError(t, err)
		assert.False(t, result.Flushed)
	}
	assert.Empty(t, repo.batches)

	// Third event hits the threshold and flushes the batch.
	result, err := h.Handle(ctx, RecordBehaviorCommand{Event: behaviorEvent(behavior.EventPageView)})
	require.NoError(t, err)
	assert.True(t, result.Flushed)
	assert.Equal(t, 3, result.FlushedCount)
	require.Len(t, repo.batches, 1)
	assert.Len(t, repo.batches[0], 3)
	assert.Empty(t, buffer.buffers["session-1"])
}

func TestRecordBehavior_ClassifiesErrorEvents(t *testing.T) {
	h := NewRecordBehaviorHandler(newFakeEventBuffer(), &fakeBehaviorRepo{}, 0)

	event := behaviorEvent(behavior.EventError)
	event.Detail = map[string]interface{}{
		"message": "value out of range",
		"field":   "threshold_ppm",
	}

	result, err := h.Handle(context.Background(), RecordBehaviorCommand{Event: event})
	require.NoError(t, err)
	require.NotNil(t, result.Classification)
	assert.NotEmpty(t, result.Classification.Category)
}

func TestRecordBehavior_AssignsIDAndTimestamp(t *testing.T) {
	buffer := newFakeEventBuffer()
	h := NewRecordBehaviorHandler(buffer, &fakeBehaviorRepo{}, 0)

	event := behaviorEvent(behavior.EventPageView)
	event.Timestamp = time.Time{}

	result, err := h.Handle(context.Background(), RecordBehaviorCommand{Event: event})
	require.NoError(t, err)
	assert.NotEmpty(t, result.EventID)

	buffered := buffer.buffers["session-1"]
	require.Len(t, buffered, 1)
	assert.False(t, buffered[0].Timestamp.IsZero())
}

func TestRecordBehavior_RejectsUnknownKind(t *testing.T) {
	h := NewRecordBehaviorHandler(newFakeEventBuffer(), &fakeBehaviorRepo{}, 0)

	_, err := h.Handle(context.Background(), RecordBehaviorCommand{Event: behaviorEvent("telepathy")})
	assert.Error(t, err)
}

// ─────────────────────────────────────────────────────────────────────────────
// Submit score
// ─────────────────────────────────────────────────────────────────────────────

func TestSubmitScore_InsertsRanksAndPublishes(t *testing.T) {
	repo := &fakeLeaderboardRepo{}
	cache := newFakeLeaderboardCache()
	pub := &eventRecorder{}
	h := NewSubmitScoreHandler(repo, cache, pub)
	ctx := context.Background()

	_, err := h.Handle(ctx, SubmitScoreCommand{
		CompetitionID:    "comp-1",
		UserID:           "user-1",
		UserName:         "Aidos",
		Score:            80,
		TimeSpentSeconds: 300,
	})
	require.NoError(t, err)

	result, err := h.Handle(ctx, SubmitScoreCommand{
		CompetitionID:    "comp-1",
		UserID:           "user-2",
		UserName:         "Dana",
		Score:            95,
		TimeSpentSeconds: 280,
	})
	require.NoError(t, err)

	assert.Equal(t, leaderboard.Rank(1), result.Rank, "higher score must rank first")
	assert.Equal(t, 1, cache.invalidated)
	require.Len(t, pub.events, 2)
	assert.Equal(t, shared.EventScoreSubmitted, pub.events[1].EventType())
}

func TestSubmitScore_DuplicateRejected(t *testing.T) {
	h := NewSubmitScoreHandler(&fakeLeaderboardRepo{}, newFakeLeaderboardCache(), &eventRecorder{})
	ctx := context.Background()

	cmd := SubmitScoreCommand{
		CompetitionID:    "comp-1",
		UserID:           "user-1",
		UserName:         "Aidos",
		Score:            80,
		TimeSpentSeconds: 300,
	}
	_, err := h.Handle(ctx, cmd)
	require.NoError(t, err)

	_, err = h.Handle(ctx, cmd)
	assert.ErrorIs(t, err, shared.ErrDuplicateSubmission)
}
