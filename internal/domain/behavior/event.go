// Package behavior contains the learner behavior model: the append-only
// event log, the weighted-vote error classifier, per-step difficulty
// aggregation and resource recommendation.
package behavior

import (
	"context"
	"time"

	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
)

// EventKind represents the kind of a learner action.
type EventKind string

const (
	// EventPageView - learner opened a page or panel.
	EventPageView EventKind = "page_view"
	// EventFieldModify - learner edited a form field.
	EventFieldModify EventKind = "field_modify"
	// EventHintView - learner opened a hint.
	EventHintView EventKind = "hint_view"
	// EventError - learner action produced an error.
	EventError EventKind = "error"
	// EventStageEnter - learner entered a task stage.
	EventStageEnter EventKind = "stage_enter"
	// EventStageComplete - learner completed a task stage.
	EventStageComplete EventKind = "stage_complete"
	// EventEvidencePurchase - learner purchased an evidence item.
	EventEvidencePurchase EventKind = "evidence_purchase"
	// EventSubmit - learner submitted a judgment.
	EventSubmit EventKind = "submit"
)

// IsValid checks if the event kind is known.
func (k EventKind) IsValid() bool {
	switch k {
	case EventPageView, EventFieldModify, EventHintView, EventError,
		EventStageEnter, EventStageComplete, EventEvidencePurchase, EventSubmit:
		return true
	}
	return false
}

// Event represents one recorded learner action.
// Events are append-only: once recorded they are never mutated.
type Event struct {
	// ID is the unique event identifier.
	ID string `json:"id"`

	// SessionID is the owning training session.
	SessionID shared.SessionID `json:"session_id"`

	// UserID is the learner who produced the event.
	UserID shared.UserID `json:"user_id"`

	// WorkstationID is the workstation the session runs on.
	WorkstationID shared.WorkstationID `json:"workstation_id"`

	// Kind is the event kind.
	Kind EventKind `json:"kind"`

	// StageID is the task stage the event occurred in (optional).
	StageID string `json:"stage_id,omitempty"`

	// Detail is the free-form payload (field name, value, error message...).
	Detail map[string]interface{} `json:"detail,omitempty"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`
}

// Validate checks the event before recording.
func (e *Event) Validate() error {
	if !e.Kind.IsValid() {
		return shared.ErrUnknownEvent
	}
	if e.SessionID == "" {
		return &shared.ValidationFieldError{Field: "session_id", Message: "session ID is required"}
	}
	return nil
}

// DetailString returns a string value from the detail payload.
func (e *Event) DetailString(key string) string {
	if e.Detail == nil {
		return ""
	}
	if v, ok := e.Detail[key].(string); ok {
		return v
	}
	return ""
}

// FlushThreshold is the number of buffered events that triggers an eager
// flush. Batching bounds worst-case memory and network-call volume without
// requiring a queue depth limit elsewhere.
const FlushThreshold = 10

// Repository defines the persistence port for behavior events.
type Repository interface {
	// AppendBatch persists a batch of events in one call.
	AppendBatch(ctx context.Context, events []Event) error

	// CountErrorsByStep returns per-step error counts and affected learner
	// counts for a workstation, feeding the difficulty heatmap.
	CountErrorsByStep(ctx context.Context, workstationID shared.WorkstationID) ([]StepErrorStat, error)
}
