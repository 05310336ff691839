package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitSyncDeliversToAllHandlers(t *testing.T) {
	bus := NewEventBus()

	var calls atomic.Int64
	bus.Subscribe(EventChatMessage, "first", func(ctx context.Context, e Event) error {
		calls.Add(1)
		return nil
	})
	bus.Subscribe(EventChatMessage, "second", func(ctx context.Context, e Event) error {
		calls.Add(1)
		return nil
	})

	err := bus.EmitSync(context.Background(), Event{Type: EventChatMessage, Source: "test"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())
}

func TestEmitSyncReturnsHandlerError(t *testing.T) {
	bus := NewEventBus()

	wantErr := errors.New("handler failed")
	bus.Subscribe(EventSessionClosed, "failing", func(ctx context.Context, e Event) error {
		return wantErr
	})

	err := bus.EmitSync(context.Background(), Event{Type: EventSessionClosed})
	assert.ErrorIs(t, err, wantErr)
}

func TestEmitSyncRecoversFromPanic(t *testing.T) {
	bus := NewEventBus()

	bus.Subscribe(EventStatusUpdate, "panicking", func(ctx context.Context, e Event) error {
		panic("boom")
	})

	assert.NotPanics(t, func() {
		bus.EmitSync(context.Background(), Event{Type: EventStatusUpdate})
	})
}

func TestEmitAsync(t *testing.T) {
	bus := NewEventBus()

	done := make(chan struct{})
	bus.Subscribe(EventSessionAuthenticated, "async", func(ctx context.Context, e Event) error {
		close(done)
		return nil
	})

	bus.Emit(context.Background(), Event{Type: EventSessionAuthenticated})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler never ran")
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := NewEventBus()

	bus.Subscribe(EventChatMessage, "keep", func(ctx context.Context, e Event) error { return nil })
	bus.Subscribe(EventChatMessage, "drop", func(ctx context.Context, e Event) error { return nil })
	assert.Equal(t, 2, bus.HandlerCount(EventChatMessage))

	bus.Unsubscribe(EventChatMessage, "drop")
	assert.Equal(t, 1, bus.HandlerCount(EventChatMessage))

	// Unsubscribing an unknown type is harmless.
	bus.Unsubscribe(EventShutdown, "nobody")
}

func TestStoppedBusDropsEvents(t *testing.T) {
	bus := NewEventBus()

	var calls atomic.Int64
	bus.Subscribe(EventChatMessage, "counter", func(ctx context.Context, e Event) error {
		calls.Add(1)
		return nil
	})

	bus.Stop()

	bus.Emit(context.Background(), Event{Type: EventChatMessage})
	require.NoError(t, bus.EmitSync(context.Background(), Event{Type: EventChatMessage}))
	assert.Equal(t, int64(0), calls.Load())

	select {
	case <-bus.StopCh():
	default:
		t.Fatal("stop channel not closed")
	}
}
