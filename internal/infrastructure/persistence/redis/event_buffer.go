package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/labsim-hub/labsim-progression-engine/internal/domain/behavior"
	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
)

// EventBuffer holds behavior events in a per-session Redis list until the
// batch threshold is reached or the session ends, then hands them to the
// durable store in one write. Buffering survives an engine restart, unlike
// an in-memory slice.
type EventBuffer struct {
	cache *Cache
}

// NewEventBuffer creates an event buffer backed by the given cache.
func NewEventBuffer(cache *Cache) *EventBuffer {
	return &EventBuffer{cache: cache}
}

// Append adds an event to the session buffer and returns the buffered count.
func (b *EventBuffer) Append(ctx context.Context, event behavior.Event) (int, error) {
	if err := event.Validate(); err != nil {
		return 0, err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}

	key := EventBufferKey(string(event.SessionID))
	client := b.cache.Client()

	pipe := client.TxPipeline()
	push := pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, TTLEventBuffer)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, shared.WrapError("behavior", "buffer_append", shared.ErrServiceUnavailable,
			"failed to buffer event", err)
	}
	return int(push.Val()), nil
}

// Drain atomically takes all buffered events for the session, leaving the
// buffer empty. Order of insertion is preserved.
func (b *EventBuffer) Drain(ctx context.Context, sessionID shared.SessionID) ([]behavior.Event, error) {
	key := EventBufferKey(string(sessionID))
	client := b.cache.Client()

	pipe := client.TxPipeline()
	items := pipe.LRange(ctx, key, 0, -1)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, shared.WrapError("behavior", "buffer_drain", shared.ErrServiceUnavailable,
			"failed to drain event buffer", err)
	}

	raw := items.Val()
	events := make([]behavior.Event, 0, len(raw))
	for _, item := range raw {
		var ev behavior.Event
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// Len returns the number of buffered events for the session.
func (b *EventBuffer) Len(ctx context.Context, sessionID shared.SessionID) (int, error) {
	n, err := b.cache.Client().LLen(ctx, EventBufferKey(string(sessionID))).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
