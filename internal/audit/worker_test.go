package audit

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestEmitStampsTimestamp(t *testing.T) {
	pub := NewPublisher(4, discard())

	pub.Emit(context.Background(), Event{Action: ActionScan, Target: "scan"})

	event := <-pub.Inbox()
	assert.False(t, event.Timestamp.IsZero())
}

func TestEmitKeepsExplicitTimestamp(t *testing.T) {
	pub := NewPublisher(4, discard())
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	pub.Emit(context.Background(), Event{Action: ActionScan, Target: "scan", Timestamp: at})

	event := <-pub.Inbox()
	assert.Equal(t, at, event.Timestamp)
}

// TestEmitDropsWhenFull verifies a stalled worker never blocks the scan path.
func TestEmitDropsWhenFull(t *testing.T) {
	pub := NewPublisher(1, discard())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			pub.Emit(context.Background(), Event{Action: ActionScan, Target: "scan"})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full buffer")
	}
	assert.Len(t, pub.Inbox(), 1)
}

// TestWorkerDrainsOnShutdown verifies buffered events are persisted before
// the worker exits.
func TestWorkerDrainsOnShutdown(t *testing.T) {
	pub := NewPublisher(8, discard())
	store := NewInMemory()
	worker := NewWorker(store, pub.Inbox(), discard())

	ctx := context.Background()
	pub.Emit(ctx, Event{Actor: "kiosk-1", Action: ActionScan, Target: "scan", Details: "first"})
	pub.Emit(ctx, Event{Actor: "kiosk-1", Action: ActionScanFailed, Target: "scan", Details: "second"})
	pub.Emit(ctx, Event{Actor: "kiosk-2", Action: ActionScan, Target: "scan", Details: "third"})

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	err := worker.Run(canceled)
	require.ErrorIs(t, err, context.Canceled)

	events, err := store.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestWorkerAppendsWhileRunning(t *testing.T) {
	pub := NewPublisher(8, discard())
	store := NewInMemory()
	worker := NewWorker(store, pub.Inbox(), discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	pub.Emit(ctx, Event{Actor: "kiosk-1", Action: ActionScan, Target: "scan"})

	require.Eventually(t, func() bool {
		events, err := store.List(context.Background(), 10)
		return err == nil && len(events) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestInMemoryListNewestFirst(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, Event{Details: "first"}))
	require.NoError(t, store.Append(ctx, Event{Details: "second"}))

	events, err := store.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "second", events[0].Details)

	events, err = store.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
