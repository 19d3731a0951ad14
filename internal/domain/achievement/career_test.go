package achievement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXPReward(t *testing.T) {
	cases := []struct {
		name       string
		baseXP     int
		difficulty Difficulty
		score      int
		want       int
	}{
		{"beginner perfect", 100, DifficultyBeginner, 100, 110},   // 100*1.0*1.0*1.1
		{"beginner gold", 100, DifficultyBeginner, 90, 95},        // 100*1.0*0.9*1.05 = 94.5 -> 95
		{"beginner plain", 100, DifficultyBeginner, 80, 80},       // 100*1.0*0.8*1.0
		{"intermediate plain", 100, DifficultyIntermediate, 80, 120}, // 100*1.5*0.8
		{"advanced perfect", 100, DifficultyAdvanced, 100, 220},   // 100*2.0*1.0*1.1
		{"zero score", 100, DifficultyAdvanced, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, XPReward(tc.baseXP, tc.difficulty, tc.score))
		})
	}
}

func TestGrantXP_SingleLevelUp(t *testing.T) {
	table := DefaultLevelTable()
	require.NoError(t, table.Validate())

	profile := NewCareerProfile("user-1")
	result := profile.GrantXP(150, table)

	assert.Equal(t, 1, result.OldLevel)
	assert.Equal(t, 2, result.NewLevel)
	assert.Equal(t, []int{2}, result.CrossedLevels)
	assert.True(t, result.LeveledUp())
	assert.Equal(t, 150, profile.TotalXP)
	assert.Equal(t, 50, profile.CurrentLevelXP(table))
}

func TestGrantXP_MultiLevelJump(t *testing.T) {
	// Thresholds: L6:2000, L7:2700. Start at 0, grant 2500 in one call:
	// resulting level is 6 (2500 < 2700), not 7 - and not truncated to 2.
	table := DefaultLevelTable()
	profile := NewCareerProfile("user-1")

	result := profile.GrantXP(2500, table)

	assert.Equal(t, 1, result.OldLevel)
	assert.Equal(t, 6, result.NewLevel)
	assert.Equal(t, []int{2, 3, 4, 5, 6}, result.CrossedLevels)
	assert.Equal(t, 6, profile.Level)
}

func TestGrantXP_UnlocksAreUnionAcrossCrossedLevels(t *testing.T) {
	table := DefaultLevelTable()
	profile := NewCareerProfile("user-1")

	result := profile.GrantXP(2500, table)

	// Levels 2..6 unlock hints, acid-bay, evidence_market, storage-yard, competitions.
	assert.Contains(t, result.Unlocked.Features, "hints")
	assert.Contains(t, result.Unlocked.Features, "evidence_market")
	assert.Contains(t, result.Unlocked.Features, "competitions")
	assert.Contains(t, result.Unlocked.Workstations, "acid-bay")
	assert.Contains(t, result.Unlocked.Workstations, "storage-yard")
	// Level 7 not crossed: incinerator-unit stays locked.
	assert.NotContains(t, result.Unlocked.Workstations, "incinerator-unit")
}

func TestGrantXP_NoLevelUp(t *testing.T) {
	table := DefaultLevelTable()
	profile := NewCareerProfile("user-1")

	result := profile.GrantXP(50, table)

	assert.False(t, result.LeveledUp())
	assert.Empty(t, result.CrossedLevels)
	assert.Empty(t, result.Unlocked.Features)
}

func TestGrantXP_NegativeAmountIgnored(t *testing.T) {
	table := DefaultLevelTable()
	profile := NewCareerProfile("user-1")
	profile.GrantXP(500, table)

	before := profile.TotalXP
	result := profile.GrantXP(-100, table)

	assert.Equal(t, 0, result.XPGranted)
	assert.Equal(t, before, profile.TotalXP)
}

func TestGrantXP_CapsAtMaxLevel(t *testing.T) {
	table := DefaultLevelTable()
	profile := NewCareerProfile("user-1")

	result := profile.GrantXP(1_000_000, table)

	assert.Equal(t, MaxLevel, result.NewLevel)
	assert.Equal(t, MaxLevel, profile.Level)
}

func TestLevelTable_LevelFor(t *testing.T) {
	table := DefaultLevelTable()

	assert.Equal(t, 1, table.LevelFor(0))
	assert.Equal(t, 1, table.LevelFor(99))
	assert.Equal(t, 2, table.LevelFor(100))
	assert.Equal(t, 6, table.LevelFor(2500))
	assert.Equal(t, 15, table.LevelFor(999_999))
}

func TestUnlocksUpTo_Cumulative(t *testing.T) {
	table := DefaultLevelTable()

	set := table.UnlocksUpTo(3)
	assert.Contains(t, set.Features, "basic_tasks")
	assert.Contains(t, set.Features, "hints")
	assert.Contains(t, set.Workstations, "intro-lab")
	assert.Contains(t, set.Workstations, "acid-bay")
	assert.NotContains(t, set.Features, "evidence_market")
}

func TestCertificateDue(t *testing.T) {
	assert.True(t, CertificateDue(5, 5))
	assert.True(t, CertificateDue(6, 5))
	assert.False(t, CertificateDue(4, 5))
	// A workstation with zero tasks never certifies.
	assert.False(t, CertificateDue(0, 0))
	assert.False(t, CertificateDue(3, 0))
}
