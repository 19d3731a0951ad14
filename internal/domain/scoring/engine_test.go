package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreAccuracy_ResultMismatch(t *testing.T) {
	e := NewEngine()

	judged := Judgment{Result: JudgmentNonHazardous, Characteristics: []string{"toxicity"}}
	correct := CorrectAnswer{Result: JudgmentHazardous, Characteristics: []string{"toxicity"}}

	assert.Equal(t, 0.0, e.ScoreAccuracy(judged, correct))
}

func TestScoreAccuracy_ExactMatch(t *testing.T) {
	e := NewEngine()

	judged := Judgment{Result: JudgmentHazardous, Characteristics: []string{"toxicity", "corrosivity"}}
	correct := CorrectAnswer{Result: JudgmentHazardous, Characteristics: []string{"corrosivity", "toxicity"}}

	assert.Equal(t, 100.0, e.ScoreAccuracy(judged, correct))
}

func TestScoreAccuracy_PartialMatch(t *testing.T) {
	e := NewEngine()

	// judged={hazardous,{toxicity}}, correct={hazardous,{toxicity,corrosivity}}
	// score = 50 + 50*(1/2) - 0 = 75
	judged := Judgment{Result: JudgmentHazardous, Characteristics: []string{"toxicity"}}
	correct := CorrectAnswer{Result: JudgmentHazardous, Characteristics: []string{"toxicity", "corrosivity"}}

	assert.Equal(t, 75.0, e.ScoreAccuracy(judged, correct))
}

func TestScoreAccuracy_ExtraPenalty(t *testing.T) {
	e := NewEngine()

	judged := Judgment{Result: JudgmentHazardous, Characteristics: []string{"toxicity", "flammability", "reactivity"}}
	correct := CorrectAnswer{Result: JudgmentHazardous, Characteristics: []string{"toxicity", "corrosivity"}}

	// matched=1, extra=2: 50 + 50*(1/2) - 10*2 = 55
	assert.Equal(t, 55.0, e.ScoreAccuracy(judged, correct))
}

func TestScoreBudgetEfficiency(t *testing.T) {
	e := NewEngine()

	t.Run("no evidence gathered is the 50 baseline", func(t *testing.T) {
		assert.Equal(t, 50.0, e.ScoreBudgetEfficiency(0, 5000, 1100))
	})

	t.Run("at or under optimal is 100", func(t *testing.T) {
		assert.Equal(t, 100.0, e.ScoreBudgetEfficiency(1100, 5000, 1100))
		assert.Equal(t, 100.0, e.ScoreBudgetEfficiency(300, 5000, 1100))
	})

	t.Run("overspend decays linearly", func(t *testing.T) {
		// total=5000, optimal=1100, spent=2200: 100 - (1100/3900)*100 ≈ 71.79
		got := e.ScoreBudgetEfficiency(2200, 5000, 1100)
		assert.InDelta(t, 71.79, got, 0.01)
	})

	t.Run("full spend is 0", func(t *testing.T) {
		assert.Equal(t, 0.0, e.ScoreBudgetEfficiency(5000, 5000, 1100))
	})

	t.Run("degenerate total==optimal", func(t *testing.T) {
		assert.Equal(t, 100.0, e.ScoreBudgetEfficiency(900, 1000, 1000))
		assert.Equal(t, 0.0, e.ScoreBudgetEfficiency(1500, 1000, 1000))
	})
}

func TestScorePathRationality(t *testing.T) {
	e := NewEngine()

	t.Run("empty optimal path is 100", func(t *testing.T) {
		assert.Equal(t, 100.0, e.ScorePathRationality([]string{"a", "b"}, nil))
	})

	t.Run("empty user path is 0", func(t *testing.T) {
		assert.Equal(t, 0.0, e.ScorePathRationality(nil, []string{"a", "b"}))
	})

	t.Run("full coverage no extras is 100", func(t *testing.T) {
		assert.Equal(t, 100.0, e.ScorePathRationality([]string{"a", "b"}, []string{"a", "b"}))
	})

	t.Run("extras are penalized 5 points each capped at 30", func(t *testing.T) {
		optimal := []string{"a", "b"}
		assert.Equal(t, 95.0, e.ScorePathRationality([]string{"a", "b", "x"}, optimal))
		// 8 extras would be -40, capped at -30.
		user := []string{"a", "b", "x1", "x2", "x3", "x4", "x5", "x6", "x7", "x8"}
		assert.Equal(t, 70.0, e.ScorePathRationality(user, optimal))
	})

	t.Run("non-increasing as unnecessary steps are added", func(t *testing.T) {
		optimal := []string{"a", "b", "c"}
		user := []string{"a", "b"}

		prev := e.ScorePathRationality(user, optimal)
		extras := []string{"x1", "x2", "x3", "x4", "x5", "x6", "x7", "x8", "x9"}
		for _, extra := range extras {
			user = append(user, extra)
			got := e.ScorePathRationality(user, optimal)
			assert.LessOrEqual(t, got, prev, "adding %s must not raise the score", extra)
			prev = got
		}
	})
}

func TestScoreTime(t *testing.T) {
	e := NewEngine()

	t.Run("no limit is 100", func(t *testing.T) {
		assert.Equal(t, 100.0, e.ScoreTime(9999, 0))
	})

	t.Run("under half the limit is 100", func(t *testing.T) {
		assert.Equal(t, 100.0, e.ScoreTime(300, 600))
	})

	t.Run("between half and full limit decays to 80", func(t *testing.T) {
		// elapsed/limit = 0.75: round(100 - 0.25*40) = 90
		assert.Equal(t, 90.0, e.ScoreTime(450, 600))
		assert.Equal(t, 80.0, e.ScoreTime(600, 600))
	})

	t.Run("over limit decays from 80 to 0", func(t *testing.T) {
		// 50% overrun: 80 - 0.5*80 = 40
		assert.Equal(t, 40.0, e.ScoreTime(900, 600))
		// 100%+ overrun clamps to 0
		assert.Equal(t, 0.0, e.ScoreTime(1300, 600))
	})
}

func TestCalculateTotalScore(t *testing.T) {
	e := NewEngine()

	t.Run("weighted formula", func(t *testing.T) {
		sub := SubScores{Accuracy: 75, BudgetEfficiency: 71.79, PathRationality: 95, Time: 90}
		// 0.4*75 + 0.3*71.79 + 0.2*95 + 0.1*90 = 30 + 21.537 + 19 + 9 = 79.537 -> 80
		assert.Equal(t, 80, e.CalculateTotalScore(sub))
	})

	t.Run("stays within 0..100 for boundary inputs", func(t *testing.T) {
		cases := []SubScores{
			{0, 0, 0, 0},
			{100, 100, 100, 100},
			{100, 0, 100, 0},
			{33.3, 66.6, 12.5, 99.9},
		}
		for _, sub := range cases {
			total := e.CalculateTotalScore(sub)
			assert.GreaterOrEqual(t, total, 0)
			assert.LessOrEqual(t, total, 100)
		}
	})
}

func TestGradeFor(t *testing.T) {
	assert.Equal(t, GradeGold, GradeFor(90))
	assert.Equal(t, GradeGold, GradeFor(100))
	assert.Equal(t, GradeSilver, GradeFor(89))
	assert.Equal(t, GradeSilver, GradeFor(70))
	assert.Equal(t, GradeBronze, GradeFor(69))
	assert.Equal(t, GradeBronze, GradeFor(60))
	assert.Equal(t, GradeTrainee, GradeFor(59))
	assert.Equal(t, GradeTrainee, GradeFor(0))
}

func TestEngine_Evaluate(t *testing.T) {
	e := NewEngine()

	in := Input{
		Judgment:         Judgment{Result: JudgmentHazardous, Characteristics: []string{"toxicity"}},
		CorrectAnswer:    CorrectAnswer{Result: JudgmentHazardous, Characteristics: []string{"toxicity", "corrosivity"}},
		SpentBudget:      2200,
		TotalBudget:      5000,
		OptimalCost:      1100,
		UserPath:         []string{"inspect", "sample", "lab-test", "x-ray"},
		OptimalPath:      []string{"inspect", "sample", "lab-test"},
		ElapsedSeconds:   450,
		TimeLimitSeconds: 600,
	}

	result, err := e.Evaluate("sub-1", in)
	require.NoError(t, err)

	assert.Equal(t, 75.0, result.SubScores.Accuracy)
	assert.InDelta(t, 71.79, result.SubScores.BudgetEfficiency, 0.01)
	assert.Equal(t, 95.0, result.SubScores.PathRationality)
	assert.Equal(t, 90.0, result.SubScores.Time)
	assert.Equal(t, 80, result.Total)
	assert.Equal(t, GradeSilver, result.Grade)

	assert.Equal(t, []string{"inspect", "sample", "lab-test"}, result.PathComparison.Covered)
	assert.Empty(t, result.PathComparison.Missed)
	assert.Equal(t, []string{"x-ray"}, result.PathComparison.Extra)
	assert.InDelta(t, 1.0, result.PathComparison.CoverageRatio, 0.0001)
}

func TestEngine_Evaluate_Validation(t *testing.T) {
	e := NewEngine()

	_, err := e.Evaluate("sub-1", Input{})
	assert.Error(t, err)

	in := Input{
		Judgment:    Judgment{Result: JudgmentHazardous},
		SpentBudget: -1,
	}
	_, err = e.Evaluate("sub-2", in)
	assert.Error(t, err)
}

func TestSubmissionRecord_Validate(t *testing.T) {
	rec := &SubmissionRecord{}
	err := rec.Validate()
	require.Error(t, err)

	rec = &SubmissionRecord{
		UserID:   "8ad99bd0-87b2-4dbb-a97b-596c3f29c49b",
		TaskID:   "task-1",
		Judgment: Judgment{Result: JudgmentHazardous},
	}
	assert.NoError(t, rec.Validate())
}
