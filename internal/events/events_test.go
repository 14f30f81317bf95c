package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/store"
)

func receiveEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()

	timer := time.NewTimer(500 * time.Millisecond)
	defer timer.Stop()

	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("channel closed before receive")
		}
		return ev
	case <-timer.C:
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func waitForClosed(t *testing.T, ch <-chan Event) {
	t.Helper()

	timer := time.NewTimer(500 * time.Millisecond)
	defer timer.Stop()

	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-timer.C:
			t.Fatal("timed out waiting for channel close")
		}
	}
}

func TestFromStore(t *testing.T) {
	event := FromStore(store.RunEvent{RunID: "run-1", Seq: 3, Type: "RUN_PROGRESS", Timestamp: "2026-03-01T12:00:00Z"})
	require.Equal(t, store.EventRunProgress, event.Type)
	require.NotNil(t, event.Payload)
	require.False(t, event.Terminal())

	require.True(t, Event{Type: store.EventRunCompleted}.Terminal())
	require.True(t, Event{Type: store.EventRunFailed}.Terminal())
	require.False(t, Event{Type: store.EventRunStarted}.Terminal())
}

func TestSubscribe_RemovedOnCancel(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())

	ch := b.Subscribe(ctx, "run-1")
	require.Equal(t, 1, b.Subscribers("run-1"))

	cancel()
	waitForClosed(t, ch)
	require.Equal(t, 0, b.Subscribers("run-1"))

	b.mu.RLock()
	_, exists := b.subscribers["run-1"]
	b.mu.RUnlock()
	require.False(t, exists)
}

func TestPublish_RoutesByRun(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := b.Subscribe(ctx, "run-1")
	second := b.Subscribe(ctx, "run-1")
	other := b.Subscribe(ctx, "run-2")

	require.Equal(t, 2, b.Publish(Event{RunID: "run-1", Seq: 1, Type: store.EventRunStarted}))
	require.Equal(t, int64(1), receiveEvent(t, first).Seq)
	require.Equal(t, int64(1), receiveEvent(t, second).Seq)

	select {
	case <-other:
		t.Fatal("unexpected event for different run")
	default:
	}

	require.Equal(t, 0, b.Publish(Event{RunID: "run-3"}))
}

func TestPublish_DropsWhenBufferFull(t *testing.T) {
	b := NewBrokerWithBuffer(2)
	ctx, cancel := context.WithCancel(context.Background())

	ch := b.Subscribe(ctx, "run-1")
	require.Equal(t, 1, b.Publish(Event{RunID: "run-1", Seq: 1}))
	require.Equal(t, 1, b.Publish(Event{RunID: "run-1", Seq: 2}))
	require.Equal(t, 0, b.Publish(Event{RunID: "run-1", Seq: 3}))
	require.Len(t, ch, 2)

	require.Equal(t, int64(1), receiveEvent(t, ch).Seq)
	require.Equal(t, int64(2), receiveEvent(t, ch).Seq)

	cancel()
	waitForClosed(t, ch)
}

func TestPublish_TerminalEvictsOldest(t *testing.T) {
	b := NewBrokerWithBuffer(2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := b.Subscribe(ctx, "run-1")
	require.Equal(t, 1, b.Publish(Event{RunID: "run-1", Seq: 1, Type: store.EventRunProgress}))
	require.Equal(t, 1, b.Publish(Event{RunID: "run-1", Seq: 2, Type: store.EventRunProgress}))
	require.Equal(t, 1, b.Publish(Event{RunID: "run-1", Seq: 3, Type: store.EventRunCompleted}))
	require.Len(t, ch, 2)

	require.Equal(t, int64(2), receiveEvent(t, ch).Seq)
	last := receiveEvent(t, ch)
	require.Equal(t, int64(3), last.Seq)
	require.True(t, last.Terminal())
}

func TestNewBrokerWithBuffer_Default(t *testing.T) {
	require.Equal(t, defaultBuffer, NewBrokerWithBuffer(0).buffer)
}

func TestConcurrent_SubscribePublish(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	var mu sync.Mutex
	chans := make([]<-chan Event, 0, 32)

	for i := 0; i < 32; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			ch := b.Subscribe(ctx, "run-1")
			mu.Lock()
			chans = append(chans, ch)
			mu.Unlock()
		}()
		go func(seq int) {
			defer wg.Done()
			b.Publish(Event{RunID: "run-1", Seq: int64(seq)})
		}(i)
	}

	wg.Wait()
	cancel()
	for _, ch := range chans {
		waitForClosed(t, ch)
	}
	require.Equal(t, 0, b.Subscribers("run-1"))
}
