package messaging

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
)

type testEvent struct {
	eventType shared.EventType
	aggregate string
}

func (e testEvent) EventType() shared.EventType { return e.eventType }
func (e testEvent) AggregateID() string         { return e.aggregate }
func (e testEvent) OccurredAt() time.Time       { return time.Now() }

func (e testEvent) Payload() map[string]interface{} {
	return map[string]interface{}{"aggregate_id": e.aggregate}
}

type recordingHandler struct {
	name  string
	calls atomic.Int64
	last  atomic.Value
	err   error
	panic bool
}

func (h *recordingHandler) Name() string { return h.name }

func (h *recordingHandler) Handle(_ context.Context, event shared.Event) error {
	if h.panic {
		panic("handler exploded")
	}
	h.calls.Add(1)
	h.last.Store(event.EventType())
	return h.err
}

func syncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(Config{AsyncMode: false})
}

func TestInMemoryEventBus_DeliversToMatchingHandlers(t *testing.T) {
	bus := syncBus()
	scored := &recordingHandler{name: "scored"}
	ended := &recordingHandler{name: "ended"}

	require.NoError(t, bus.Subscribe(shared.EventSubmissionScored, scored))
	require.NoError(t, bus.Subscribe(shared.EventSessionEnded, ended))

	err := bus.Publish(context.Background(), testEvent{eventType: shared.EventSubmissionScored, aggregate: "user-1"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), scored.calls.Load())
	assert.Equal(t, int64(0), ended.calls.Load())
}

func TestInMemoryEventBus_SubscribeAllSeesEverything(t *testing.T) {
	bus := syncBus()
	audit := &recordingHandler{name: "audit"}
	require.NoError(t, bus.SubscribeAll(audit))

	require.NoError(t, bus.Publish(context.Background(), testEvent{eventType: shared.EventSubmissionScored}))
	require.NoError(t, bus.Publish(context.Background(), testEvent{eventType: shared.EventSessionEnded}))

	assert.Equal(t, int64(2), audit.calls.Load())
}

func TestInMemoryEventBus_NilArguments(t *testing.T) {
	bus := syncBus()

	assert.ErrorIs(t, bus.Subscribe(shared.EventSubmissionScored, nil), ErrNilHandler)
	assert.ErrorIs(t, bus.SubscribeAll(nil), ErrNilHandler)
	assert.ErrorIs(t, bus.Publish(context.Background(), nil), ErrNilEvent)
}

func TestInMemoryEventBus_ClosedBusRejectsOperations(t *testing.T) {
	bus := syncBus()
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Subscribe(shared.EventSubmissionScored, &recordingHandler{name: "h"}), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Publish(context.Background(), testEvent{eventType: shared.EventSessionEnded}), ErrEventBusClosed)

	// Close is idempotent.
	assert.NoError(t, bus.Close())
}

func TestInMemoryEventBus_HandlerPanicDoesNotPropagate(t *testing.T) {
	bus := syncBus()
	bad := &recordingHandler{name: "bad", panic: true}
	good := &recordingHandler{name: "good"}

	require.NoError(t, bus.Subscribe(shared.EventSubmissionScored, bad))
	require.NoError(t, bus.Subscribe(shared.EventSubmissionScored, good))

	assert.NotPanics(t, func() {
		_ = bus.Publish(context.Background(), testEvent{eventType: shared.EventSubmissionScored})
	})
	assert.Equal(t, int64(1), good.calls.Load())

	snapshot := bus.GetMetrics().Snapshot()
	assert.Equal(t, int64(2), snapshot.TotalHandlerExecs)
	assert.Less(t, snapshot.HandlerSuccessRate, 1.0)
}

func TestInMemoryEventBus_AsyncDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(Config{AsyncMode: true, WorkerPoolSize: 2})
	h := &recordingHandler{name: "h"}
	require.NoError(t, bus.Subscribe(shared.EventSubmissionScored, h))

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(context.Background(), testEvent{eventType: shared.EventSubmissionScored}))
	}

	require.Eventually(t, func() bool {
		return h.calls.Load() == 5
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, bus.Close())
}

func TestInMemoryEventBus_MetricsCountPublishes(t *testing.T) {
	bus := syncBus()
	require.NoError(t, bus.Publish(context.Background(), testEvent{eventType: shared.EventSubmissionScored}))
	require.NoError(t, bus.Publish(context.Background(), testEvent{eventType: shared.EventSubmissionScored}))
	require.NoError(t, bus.Publish(context.Background(), testEvent{eventType: shared.EventSessionEnded}))

	snapshot := bus.GetMetrics().Snapshot()
	assert.Equal(t, int64(3), snapshot.TotalPublished)
}
