package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convflow/convflow/pkg/events"
)

func newChannelBus(t *testing.T) EventBus {
	t.Helper()

	ch := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	bus := NewWatermillEventBus(ch, ch)

	t.Cleanup(func() {
		_ = bus.Close()
	})

	return bus
}

func TestWatermillEventBus_PublishReachesHandler(t *testing.T) {
	bus := newChannelBus(t)
	ctx := context.Background()

	received := make(chan any, 1)
	require.NoError(t, bus.Handle(events.ExecutionCompletedEvent, func(_ context.Context, event any) error {
		received <- event

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	require.NoError(t, bus.Publish(ctx, "session-1", events.ExecutionCompleted{
		BaseEvent: events.BaseEvent{
			Type:       events.ExecutionCompletedEvent,
			WorkflowID: "wf-1",
			SessionID:  "session-1",
		},
		Reply: "All set.",
	}))

	select {
	case event := <-received:
		completed, ok := event.(*events.ExecutionCompleted)
		require.True(t, ok)
		assert.Equal(t, "All set.", completed.Reply)
		assert.Equal(t, "wf-1", completed.WorkflowID)
		assert.Equal(t, "session-1", completed.SessionID)
	case <-time.After(2 * time.Second):
		t.Fatal("published event never reached the handler")
	}
}

func TestWatermillEventBus_SkipsTypesWithoutHandler(t *testing.T) {
	bus := newChannelBus(t)
	ctx := context.Background()

	received := make(chan any, 1)
	require.NoError(t, bus.Handle(events.WorkflowSavedEvent, func(_ context.Context, event any) error {
		received <- event

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	// No handler is registered for failures; the message is acked and
	// dropped without blocking the stream.
	require.NoError(t, bus.Publish(ctx, "session-1", events.ExecutionFailed{
		BaseEvent: events.BaseEvent{Type: events.ExecutionFailedEvent, WorkflowID: "wf-1"},
		Error:     "boom",
	}))
	require.NoError(t, bus.Publish(ctx, "wf-1", events.WorkflowSaved{
		BaseEvent: events.BaseEvent{Type: events.WorkflowSavedEvent, WorkflowID: "wf-1"},
		Name:      "Support flow",
		Version:   2,
	}))

	select {
	case event := <-received:
		saved, ok := event.(*events.WorkflowSaved)
		require.True(t, ok)
		assert.Equal(t, "Support flow", saved.Name)
		assert.Equal(t, 2, saved.Version)
	case <-time.After(2 * time.Second):
		t.Fatal("published event never reached the handler")
	}
}
