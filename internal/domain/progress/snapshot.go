// Package progress contains the durable progress model: timestamped
// snapshots kept in two stores (local cache, remote store), a pure
// last-writer-wins merge, backup rotation and unfinished-progress
// detection. Which snapshot wins is a total order over UpdatedAt,
// never an ad-hoc flag.
package progress

import (
	"encoding/json"
	"strings"

	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
)

// ExecutionStatus is the lifecycle state of a scenario execution.
type ExecutionStatus string

const (
	StatusNotStarted ExecutionStatus = "not_started"
	StatusInProgress ExecutionStatus = "in_progress"
	StatusCompleted  ExecutionStatus = "completed"
	StatusAborted    ExecutionStatus = "aborted"
)

// ExecutionState is the saved state of one scenario execution.
type ExecutionState struct {
	// Status is the execution lifecycle state.
	Status ExecutionStatus `json:"status"`

	// CurrentStageIndex is the 0-based index of the active stage.
	CurrentStageIndex int `json:"current_stage_index"`

	// StageData holds per-stage saved payloads keyed by stage ID.
	// Payloads are opaque to the engine.
	StageData map[string]json.RawMessage `json:"stage_data,omitempty"`
}

// SessionState is the saved state of the surrounding training session.
type SessionState struct {
	// SessionID identifies the session the execution ran in.
	SessionID shared.SessionID `json:"session_id"`

	// StartedAtMs is the session start (unix milliseconds).
	StartedAtMs int64 `json:"started_at_ms"`

	// LastActiveAtMs is the last recorded activity (unix milliseconds).
	LastActiveAtMs int64 `json:"last_active_at_ms"`
}

// SavedData bundles the opaque execution and session payloads.
type SavedData struct {
	Execution ExecutionState `json:"execution"`
	Session   SessionState   `json:"session"`
}

// Snapshot is the persisted progress record for one (user, workstation)
// pair. Its shape is stable across the local and remote stores: the same
// record round-trips through both.
type Snapshot struct {
	// UserID is the learner.
	UserID shared.UserID `json:"user_id"`

	// WorkstationID is the workstation the progress belongs to.
	WorkstationID shared.WorkstationID `json:"workstation_id"`

	// ProgressPercent is the completion percentage (0-100).
	ProgressPercent float64 `json:"progress_percent"`

	// CompletedTasks / TotalTasks track task completion on the workstation.
	CompletedTasks int `json:"completed_tasks"`
	TotalTasks     int `json:"total_tasks"`

	// LastTaskID / LastStageID locate where the learner stopped.
	LastTaskID  string `json:"last_task_id,omitempty"`
	LastStageID string `json:"last_stage_id,omitempty"`

	// SavedData is the opaque execution/session payload.
	SavedData SavedData `json:"saved_data"`

	// UpdatedAt is the monotonically increasing logical timestamp used for
	// last-writer-wins reconciliation.
	UpdatedAt shared.Timestamp `json:"updated_at"`
}

// Validate checks snapshot identity fields. The ':' separator is reserved:
// Key joins the pair with it and the dirty-snapshot index splits on it.
func (s *Snapshot) Validate() error {
	if s.UserID == "" {
		return &shared.ValidationFieldError{Field: "user_id", Message: "user ID is required"}
	}
	if strings.ContainsRune(string(s.UserID), ':') {
		return &shared.ValidationFieldError{Field: "user_id", Rule: "charset", Message: "user ID cannot contain ':'"}
	}
	if s.WorkstationID == "" {
		return &shared.ValidationFieldError{Field: "workstation_id", Message: "workstation ID is required"}
	}
	if strings.ContainsRune(string(s.WorkstationID), ':') {
		return &shared.ValidationFieldError{Field: "workstation_id", Rule: "charset", Message: "workstation ID cannot contain ':'"}
	}
	if s.ProgressPercent < 0 || s.ProgressPercent > 100 {
		return &shared.ValidationFieldError{Field: "progress_percent", Rule: "range", Message: "progress must be within 0..100"}
	}
	return nil
}

// Key returns the identity key of the snapshot.
func (s *Snapshot) Key() string {
	return string(s.UserID) + ":" + string(s.WorkstationID)
}

// Touch stamps the snapshot with a fresh logical timestamp, guaranteed to
// be strictly greater than the previous one even within the same
// millisecond.
func (s *Snapshot) Touch() {
	now := shared.NewTimestamp()
	if now <= s.UpdatedAt {
		now = s.UpdatedAt + 1
	}
	s.UpdatedAt = now
}

// HasUnfinishedProgress reports whether the snapshot should trigger a
// resume prompt. Only an in-progress execution that has actually advanced a
// stage or produced stage data counts: a fresh, untouched session never
// prompts.
func (s *Snapshot) HasUnfinishedProgress() bool {
	if s == nil {
		return false
	}
	exec := s.SavedData.Execution
	if exec.Status != StatusInProgress {
		return false
	}
	return exec.CurrentStageIndex > 0 || len(exec.StageData) > 0
}
