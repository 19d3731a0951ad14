package command

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/labsim-hub/labsim-progression-engine/internal/domain/behavior"
	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD BEHAVIOR COMMAND
// Appends a learner action to the session's event buffer, flushing it to
// the durable store every behavior.FlushThreshold events.
// ══════════════════════════════════════════════════════════════════════════════

// EventBuffer is the session-scoped staging buffer for behavior events.
type EventBuffer interface {
	// Append adds the event and returns the buffer length after the append.
	Append(ctx context.Context, event behavior.Event) (int, error)

	// Drain removes and returns all buffered events in append order.
	Drain(ctx context.Context, sessionID shared.SessionID) ([]behavior.Event, error)
}

// RecordBehaviorCommand wraps one learner action.
type RecordBehaviorCommand struct {
	Event behavior.Event
}

// RecordBehaviorResult reports what happened to the event.
type RecordBehaviorResult struct {
	// EventID is the recorded event's identifier (assigned when absent).
	EventID string

	// Classification is set for error events.
	Classification *behavior.Classification

	// Flushed is true when this append triggered a flush to the durable
	// store.
	Flushed bool

	// FlushedCount is how many events the flush wrote.
	FlushedCount int
}

// RecordBehaviorHandler handles RecordBehaviorCommand.
type RecordBehaviorHandler struct {
	buffer     EventBuffer
	repo       behavior.Repository
	classifier *behavior.Classifier

	flushThreshold int
}

// NewRecordBehaviorHandler creates a record behavior handler. A
// non-positive flushThreshold falls back to behavior.FlushThreshold.
func NewRecordBehaviorHandler(buffer EventBuffer, repo behavior.Repository, flushThreshold int) *RecordBehaviorHandler {
	if flushThreshold <= 0 {
		flushThreshold = behavior.FlushThreshold
	}
	return &RecordBehaviorHandler{
		buffer:         buffer,
		repo:           repo,
		classifier:     behavior.NewClassifier(),
		flushThreshold: flushThreshold,
	}
}

// Handle buffers the event and flushes the batch when the threshold is
// reached. Error events are classified before buffering so the category
// travels with the event into the durable store.
func (h *RecordBehaviorHandler) Handle(ctx context.Context, cmd RecordBehaviorCommand) (*RecordBehaviorResult, error) {
	event := cmd.Event
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}

	result := &RecordBehaviorResult{EventID: event.ID}

	if event.Kind == behavior.EventError {
		classification := h.classifier.Classify(behavior.ClassifyInput{
			Message:        event.DetailString("message"),
			Field:          event.DetailString("field"),
			FieldType:      event.DetailString("field_type"),
			Value:          event.DetailString("value"),
			ValidationRule: event.DetailString("validation_rule"),
		})
		if event.Detail == nil {
			event.Detail = make(map[string]interface{}, 1)
		}
		event.Detail["error_category"] = string(classification.Category)
		result.Classification = &classification
	}

	count, err := h.buffer.Append(ctx, event)
	if err != nil {
		return nil, err
	}
	if count < h.flushThreshold {
		return result, nil
	}

	flushed, err := h.Flush(ctx, event.SessionID)
	if err != nil {
		return nil, err
	}
	result.Flushed = true
	result.FlushedCount = flushed
	return result, nil
}

// Flush drains the session buffer into the durable store. Called on the
// threshold and at session end.
func (h *RecordBehaviorHandler) Flush(ctx context.Context, sessionID shared.SessionID) (int, error) {
	events, err := h.buffer.Drain(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}
	if err := h.repo.AppendBatch(ctx, events); err != nil {
		return 0, err
	}
	return len(events), nil
}
