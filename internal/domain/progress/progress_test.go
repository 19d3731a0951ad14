package progress

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
)

func snapshotAt(ts shared.Timestamp, pct float64) *Snapshot {
	return &Snapshot{
		UserID:          "550e8400-e29b-41d4-a716-446655440000",
		WorkstationID:   "acid-bay",
		ProgressPercent: pct,
		CompletedTasks:  int(pct / 10),
		TotalTasks:      10,
		SavedData: SavedData{
			Execution: ExecutionState{Status: StatusInProgress, CurrentStageIndex: 2},
		},
		UpdatedAt: ts,
	}
}

func TestMerge_NewerTimestampWins(t *testing.T) {
	local := snapshotAt(1000, 40)
	remote := snapshotAt(2000, 70)

	winner, source := Merge(local, remote)
	require.NotNil(t, winner)
	assert.Equal(t, SourceRemote, source)
	assert.Equal(t, 70.0, winner.ProgressPercent)

	winner, source = Merge(remote, local)
	assert.Equal(t, remote, winner)
	assert.Equal(t, SourceLocal, source)
}

func TestMerge_NilSides(t *testing.T) {
	s := snapshotAt(1000, 40)

	winner, source := Merge(nil, s)
	assert.Equal(t, s, winner)
	assert.Equal(t, SourceRemote, source)

	winner, source = Merge(s, nil)
	assert.Equal(t, s, winner)
	assert.Equal(t, SourceLocal, source)

	winner, source = Merge(nil, nil)
	assert.Nil(t, winner)
	assert.Equal(t, SourceNone, source)
}

func TestMerge_TieKeepsLocal(t *testing.T) {
	local := snapshotAt(5000, 40)
	remote := snapshotAt(5000, 40)

	winner, source := Merge(local, remote)
	assert.Same(t, local, winner)
	assert.Equal(t, SourceLocal, source)
}

// For distinct timestamps the winning data is the same regardless of which
// store holds which snapshot.
func TestMerge_CommutativeOnTimestamp(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		t1 := shared.Timestamp(rng.Intn(100000))
		t2 := shared.Timestamp(rng.Intn(100000))
		if t1 == t2 {
			continue
		}
		a := snapshotAt(t1, 10)
		b := snapshotAt(t2, 90)

		w1, _ := Merge(a, b)
		w2, _ := Merge(b, a)
		require.Equal(t, w1.UpdatedAt, w2.UpdatedAt, "t1=%d t2=%d", t1, t2)

		want := a
		if t2 > t1 {
			want = b
		}
		assert.Equal(t, want.ProgressPercent, w1.ProgressPercent)
	}
}

func TestSnapshot_HasUnfinishedProgress(t *testing.T) {
	cases := []struct {
		name string
		exec ExecutionState
		want bool
	}{
		{"fresh untouched session", ExecutionState{Status: StatusInProgress, CurrentStageIndex: 0}, false},
		{"stage advanced", ExecutionState{Status: StatusInProgress, CurrentStageIndex: 1}, true},
		{
			"stage data on first stage",
			ExecutionState{
				Status:            StatusInProgress,
				CurrentStageIndex: 0,
				StageData:         map[string]json.RawMessage{"stage-1": json.RawMessage(`{"field":"x"}`)},
			},
			true,
		},
		{"completed execution", ExecutionState{Status: StatusCompleted, CurrentStageIndex: 5}, false},
		{"aborted execution", ExecutionState{Status: StatusAborted, CurrentStageIndex: 3}, false},
		{"not started", ExecutionState{Status: StatusNotStarted}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := snapshotAt(1000, 30)
			s.SavedData.Execution = tc.exec
			assert.Equal(t, tc.want, s.HasUnfinishedProgress())
		})
	}

	var nilSnap *Snapshot
	assert.False(t, nilSnap.HasUnfinishedProgress())
}

func TestSnapshot_TouchIsMonotonic(t *testing.T) {
	s := snapshotAt(0, 10)
	var prev shared.Timestamp
	for i := 0; i < 50; i++ {
		s.Touch()
		require.Greater(t, int64(s.UpdatedAt), int64(prev))
		prev = s.UpdatedAt
	}
}

func TestSnapshot_Validate(t *testing.T) {
	s := snapshotAt(1000, 40)
	require.NoError(t, s.Validate())

	s.ProgressPercent = 120
	err := s.Validate()
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))

	s = snapshotAt(1000, 40)
	s.UserID = ""
	assert.Error(t, s.Validate())

	// ':' is the key separator and cannot appear inside either ID.
	s = snapshotAt(1000, 40)
	s.UserID = "user:1"
	assert.Error(t, s.Validate())

	s = snapshotAt(1000, 40)
	s.WorkstationID = "acid:bay"
	assert.Error(t, s.Validate())
}

func TestRotate_KeepsNewestUpToCap(t *testing.T) {
	var backups []Backup
	for i := 0; i < 8; i++ {
		b := NewBackup(*snapshotAt(shared.Timestamp(i*100), float64(i*10)))
		b.CreatedAt = shared.Timestamp(i * 100)
		b.ID = fmt.Sprintf("b-%d", i)
		backups = append(backups, b)
	}

	keep, evict := Rotate(backups, 5)
	require.Len(t, keep, 5)
	require.Len(t, evict, 3)

	// Newest first.
	assert.Equal(t, "b-7", keep[0].ID)
	assert.Equal(t, "b-3", keep[4].ID)
	assert.Equal(t, "b-2", evict[0].ID)
	assert.Equal(t, "b-0", evict[2].ID)

	// Input untouched.
	assert.Equal(t, "b-0", backups[0].ID)
}

func TestRotate_DefaultCapAndUnderflow(t *testing.T) {
	backups := []Backup{NewBackup(*snapshotAt(100, 10)), NewBackup(*snapshotAt(200, 20))}

	keep, evict := Rotate(backups, 0)
	assert.Len(t, keep, 2)
	assert.Empty(t, evict)
}

func TestStreak_ExtendAndReset(t *testing.T) {
	s := NewStreak("550e8400-e29b-41d4-a716-446655440000")
	day := func(d int) time.Time { return time.Date(2026, 8, d, 14, 0, 0, 0, time.UTC) }

	s.RecordActivity(day(1))
	assert.Equal(t, 1, s.CurrentStreak)

	s.RecordActivity(day(2))
	s.RecordActivity(day(3))
	assert.Equal(t, 3, s.CurrentStreak)
	assert.Equal(t, 3, s.BestStreak)

	// Same day is a no-op.
	s.RecordActivity(day(3))
	assert.Equal(t, 3, s.CurrentStreak)

	// Gap resets current but keeps best.
	s.RecordActivity(day(6))
	assert.Equal(t, 1, s.CurrentStreak)
	assert.Equal(t, 3, s.BestStreak)

	assert.False(t, s.IsBroken(day(7)))
	assert.True(t, s.IsBroken(day(9)))
}
