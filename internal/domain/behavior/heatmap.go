package behavior

import (
	"sort"
)

// HeatLevel buckets the normalized heat value of a task step.
type HeatLevel string

const (
	HeatCritical HeatLevel = "critical" // >= 0.8
	HeatHigh     HeatLevel = "high"     // >= 0.6
	HeatMedium   HeatLevel = "medium"   // >= 0.4
	HeatLow      HeatLevel = "low"      // >= 0.2
	HeatMinimal  HeatLevel = "minimal"  // < 0.2
)

// HeatLevelFor buckets a heat value.
func HeatLevelFor(heat float64) HeatLevel {
	switch {
	case heat >= 0.8:
		return HeatCritical
	case heat >= 0.6:
		return HeatHigh
	case heat >= 0.4:
		return HeatMedium
	case heat >= 0.2:
		return HeatLow
	default:
		return HeatMinimal
	}
}

// highFrequencyHeat is the heat value at or above which a step counts as
// high-frequency regardless of how many learners it affected.
const highFrequencyHeat = 0.5

// StepErrorStat is the raw per-step error aggregate coming from the event log.
type StepErrorStat struct {
	// StepID identifies the task step.
	StepID string `json:"step_id"`

	// ErrorCount is the total number of errors recorded on the step.
	ErrorCount int `json:"error_count"`

	// AffectedStudents is the number of distinct learners who erred here.
	AffectedStudents int `json:"affected_students"`
}

// StepHeat is one heatmap cell: the step with its normalized difficulty.
type StepHeat struct {
	StepID           string    `json:"step_id"`
	ErrorCount       int       `json:"error_count"`
	AffectedStudents int       `json:"affected_students"`

	// HeatValue is ErrorCount normalized by the worst step observed (0-1).
	HeatValue float64 `json:"heat_value"`

	// Level is the bucketed heat value.
	Level HeatLevel `json:"level"`

	// HighFrequency marks a class-wide problem step: heat >= 0.5 OR the
	// affected share of learners reaches the common-error threshold.
	HighFrequency bool `json:"high_frequency"`
}

// Heatmap is the per-step difficulty aggregation for a workstation.
type Heatmap struct {
	Steps []StepHeat `json:"steps"`

	// TotalStudents is the cohort size the affected shares are computed against.
	TotalStudents int `json:"total_students"`

	// CommonErrorThreshold is the minimum affected share for a class-wide error.
	CommonErrorThreshold float64 `json:"common_error_threshold"`
}

// DefaultCommonErrorThreshold is the default minimum fraction of affected
// learners for a recurring error to count as class-wide.
const DefaultCommonErrorThreshold = 0.2

// BuildHeatmap aggregates raw step error stats into a heatmap.
// Heat value = stepErrorCount / max(stepErrorCount over all steps); steps are
// returned hottest first, ties ordered by StepID for determinism.
func BuildHeatmap(stats []StepErrorStat, totalStudents int, commonErrorThreshold float64) *Heatmap {
	if commonErrorThreshold <= 0 {
		commonErrorThreshold = DefaultCommonErrorThreshold
	}

	hm := &Heatmap{
		TotalStudents:        totalStudents,
		CommonErrorThreshold: commonErrorThreshold,
	}

	maxErrors := 0
	for _, s := range stats {
		if s.ErrorCount > maxErrors {
			maxErrors = s.ErrorCount
		}
	}
	if maxErrors == 0 {
		return hm
	}

	for _, s := range stats {
		heat := float64(s.ErrorCount) / float64(maxErrors)

		affectedShare := 0.0
		if totalStudents > 0 {
			affectedShare = float64(s.AffectedStudents) / float64(totalStudents)
		}

		hm.Steps = append(hm.Steps, StepHeat{
			StepID:           s.StepID,
			ErrorCount:       s.ErrorCount,
			AffectedStudents: s.AffectedStudents,
			HeatValue:        heat,
			Level:            HeatLevelFor(heat),
			HighFrequency:    heat >= highFrequencyHeat || affectedShare >= commonErrorThreshold,
		})
	}

	sort.SliceStable(hm.Steps, func(i, j int) bool {
		if hm.Steps[i].HeatValue != hm.Steps[j].HeatValue {
			return hm.Steps[i].HeatValue > hm.Steps[j].HeatValue
		}
		return hm.Steps[i].StepID < hm.Steps[j].StepID
	})

	return hm
}

// HighFrequencySteps returns only the class-wide problem steps.
func (h *Heatmap) HighFrequencySteps() []StepHeat {
	var out []StepHeat
	for _, s := range h.Steps {
		if s.HighFrequency {
			out = append(out, s)
		}
	}
	return out
}
