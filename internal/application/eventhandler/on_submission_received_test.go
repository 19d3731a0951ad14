package eventhandler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labsim-hub/labsim-progression-engine/internal/domain/scoring"
	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
)

func receivedFixture() shared.SubmissionReceivedEvent {
	return shared.NewSubmissionReceivedEvent(shared.SubmissionReceivedEvent{
		SessionID:               "sess-1",
		UserID:                  "user-1",
		WorkstationID:           "acid-bay",
		TaskID:                  "task-3",
		JudgmentResult:          "hazardous",
		JudgmentCharacteristics: []string{"toxicity", "corrosivity"},
		CorrectResult:           "hazardous",
		CorrectCharacteristics:  []string{"toxicity", "corrosivity"},
		SpentBudget:             40,
		TotalBudget:             100,
		OptimalCost:             35,
		UserPath:                []string{"inspect", "test_ph"},
		OptimalPath:             []string{"inspect", "test_ph"},
		ElapsedSeconds:          120,
		TimeLimitSeconds:        300,
	})
}

func TestDecodeReceivedEvent_TypedEvent(t *testing.T) {
	cmd, err := decodeReceivedEvent(receivedFixture())
	require.NoError(t, err)

	assert.Equal(t, shared.SessionID("sess-1"), cmd.SessionID)
	assert.Equal(t, shared.UserID("user-1"), cmd.UserID)
	assert.Equal(t, shared.TaskID("task-3"), cmd.TaskID)
	assert.Equal(t, scoring.JudgmentResult("hazardous"), cmd.Judgment.Result)
	assert.Equal(t, []string{"toxicity", "corrosivity"}, cmd.Judgment.Characteristics)
	assert.Equal(t, 100.0, cmd.TotalBudget)
	assert.Equal(t, []string{"inspect", "test_ph"}, cmd.OptimalPath)
}

// receivedPayloadEvent mimics a submission published by the host process:
// only the payload map survives the wire.
type receivedPayloadEvent struct {
	payload map[string]interface{}
}

func (e receivedPayloadEvent) EventType() shared.EventType     { return shared.EventSubmissionReceived }
func (e receivedPayloadEvent) AggregateID() string             { return "sess-1" }
func (e receivedPayloadEvent) OccurredAt() time.Time           { return time.Now() }
func (e receivedPayloadEvent) Payload() map[string]interface{} { return e.payload }

func TestDecodeReceivedEvent_PayloadMap(t *testing.T) {
	event := receivedPayloadEvent{payload: map[string]interface{}{
		"session_id":      "sess-1",
		"user_id":         "user-1",
		"workstation_id":  "acid-bay",
		"task_id":         "task-3",
		"judgment_result": "hazardous",
		// JSON decoding turns string slices into []interface{}.
		"judgment_characteristics": []interface{}{"toxicity"},
		"correct_result":           "hazardous",
		"correct_characteristics":  []interface{}{"toxicity"},
		"total_budget":             float64(100),
		"spent_budget":             float64(40),
		"elapsed_seconds":          float64(90),
	}}

	cmd, err := decodeReceivedEvent(event)
	require.NoError(t, err)
	assert.Equal(t, []string{"toxicity"}, cmd.Judgment.Characteristics)
	assert.Equal(t, 40.0, cmd.SpentBudget)
	assert.Equal(t, 90.0, cmd.ElapsedSeconds)
}

func TestDecodeReceivedEvent_MalformedPayload(t *testing.T) {
	event := receivedPayloadEvent{payload: map[string]interface{}{
		"user_id": "user-1",
	}}

	_, err := decodeReceivedEvent(event)
	assert.Error(t, err)
}
