package achievement

import (
	"testing"

	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecker_SatisfiedAllKinds(t *testing.T) {
	c := NewChecker(nil)

	cases := []struct {
		name  string
		cond  Condition
		facts Facts
		want  bool
	}{
		{
			"task by id satisfied",
			Condition{Kind: ConditionTaskComplete, TaskID: "task-9"},
			Facts{CompletedTaskIDs: map[shared.TaskID]bool{"task-9": true}},
			true,
		},
		{
			"task by count not yet",
			Condition{Kind: ConditionTaskComplete, Count: 10},
			Facts{CompletedTaskCount: 9},
			false,
		},
		{
			"workstation complete",
			Condition{Kind: ConditionWorkstationComplete, WorkstationID: "acid-bay"},
			Facts{CompletedWorkstations: map[shared.WorkstationID]bool{"acid-bay": true}},
			true,
		},
		{
			"streak",
			Condition{Kind: ConditionStreak, Days: 7},
			Facts{StreakDays: 7},
			true,
		},
		{
			"score threshold",
			Condition{Kind: ConditionScore, ScoreThreshold: 90},
			Facts{BestScore: 89},
			false,
		},
		{
			"time minutes",
			Condition{Kind: ConditionTime, Minutes: 600},
			Facts{TotalMinutes: 601},
			true,
		},
		{
			"level",
			Condition{Kind: ConditionLevel, Level: 10},
			Facts{Level: 10},
			true,
		},
		{
			"first try pass",
			Condition{Kind: ConditionFirstTryPass, Consecutive: 5},
			Facts{ConsecutiveFirstTry: 4},
			false,
		},
		{
			"special first login",
			Condition{Kind: ConditionSpecial, Special: SpecialFirstLogin},
			Facts{FirstLogin: true},
			true,
		},
		{
			"special all perfect",
			Condition{Kind: ConditionSpecial, Special: SpecialAllPerfect},
			Facts{AllPerfect: true},
			true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := c.Satisfied(tc.cond, tc.facts)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestChecker_UnknownConditionKind(t *testing.T) {
	c := NewChecker(nil)

	_, err := c.Satisfied(Condition{Kind: "mystery"}, Facts{})
	assert.Error(t, err)

	_, err = c.Satisfied(Condition{Kind: ConditionSpecial, Special: "mystery"}, Facts{})
	assert.Error(t, err)
}

func TestChecker_CheckNew_IdempotentAcrossCalls(t *testing.T) {
	c := NewChecker(DefaultDefinitions())

	facts := Facts{
		UserID:             "user-1",
		CompletedTaskCount: 1,
	}
	granted := map[string]bool{}

	// First check: the first-task achievement fires.
	newly, err := c.CheckNew(facts, granted)
	require.NoError(t, err)

	found := 0
	for _, def := range newly {
		if def.ID == "first-task" {
			found++
		}
		granted[def.ID] = true
	}
	assert.Equal(t, 1, found)

	// Second identical check: first-task must not fire again.
	newly, err = c.CheckNew(facts, granted)
	require.NoError(t, err)
	for _, def := range newly {
		assert.NotEqual(t, "first-task", def.ID)
	}
}

func TestChecker_CheckNew_MultipleAtOnce(t *testing.T) {
	c := NewChecker(DefaultDefinitions())

	facts := Facts{
		UserID:                "user-1",
		CompletedTaskCount:    10,
		CompletedWorkstations: map[shared.WorkstationID]bool{"acid-bay": true},
		StreakDays:            7,
		BestScore:             95,
	}

	newly, err := c.CheckNew(facts, map[string]bool{})
	require.NoError(t, err)

	ids := make(map[string]bool)
	for _, def := range newly {
		ids[def.ID] = true
	}
	assert.True(t, ids["first-task"])
	assert.True(t, ids["ten-tasks"])
	assert.True(t, ids["acid-bay-cleared"])
	assert.True(t, ids["streak-7"])
	assert.True(t, ids["gold-standard"])
	assert.False(t, ids["level-10"])
}
