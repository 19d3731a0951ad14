package content

import "fmt"

// ══════════════════════════════════════════════════════════════════════════════
// API RESPONSE WRAPPER
// ══════════════════════════════════════════════════════════════════════════════

// APIResponse is the standard envelope every content service endpoint uses.
type APIResponse[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error,omitempty"`
	Meta    *Meta  `json:"meta,omitempty"`
}

// Meta contains pagination metadata.
type Meta struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// APIErrorDTO is a structured error response.
type APIErrorDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIErrorDTO) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ══════════════════════════════════════════════════════════════════════════════
// TASK DTOs
// ══════════════════════════════════════════════════════════════════════════════

// TaskDTO is a scenario task as the content service describes it.
type TaskDTO struct {
	ID            string `json:"id"`
	WorkstationID string `json:"workstation_id"`
	Title         string `json:"title"`

	// Difficulty is "beginner", "intermediate" or "advanced".
	Difficulty string `json:"difficulty"`

	// BaseXP is the XP reward before difficulty and score multipliers.
	BaseXP int `json:"base_xp"`

	// TimeLimitSeconds is 0 for untimed tasks.
	TimeLimitSeconds int `json:"time_limit_seconds"`

	// OptimalCost is the reference resource spend for budget scoring.
	OptimalCost float64 `json:"optimal_cost"`
}

// WorkstationDTO is a training workstation as the content service
// describes it.
type WorkstationDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	TaskCount int    `json:"task_count"`
}

// ══════════════════════════════════════════════════════════════════════════════
// RESOURCE DTOs
// ══════════════════════════════════════════════════════════════════════════════

// ResourceDTO is a remedial learning resource.
type ResourceDTO struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	URL           string `json:"url,omitempty"`
	Category      string `json:"category"`
	WorkstationID string `json:"workstation_id,omitempty"`
	StageID       string `json:"stage_id,omitempty"`
}
