// Package events fans run progress events out to live stream subscribers.
package events

import (
	"context"
	"sync"

	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/metrics"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/store"
)

const defaultBuffer = 16

// Event is the stream form of a stored run event.
type Event struct {
	RunID     string         `json:"runId"`
	Seq       int64          `json:"seq"`
	Type      string         `json:"type"`
	Timestamp string         `json:"timestamp"`
	Source    string         `json:"source,omitempty"`
	Payload   map[string]any `json:"payload"`
}

func FromStore(event store.RunEvent) Event {
	payload := event.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	return Event{
		RunID:     event.RunID,
		Seq:       event.Seq,
		Type:      store.NormalizeEventType(event.Type),
		Timestamp: event.Timestamp,
		Source:    event.Source,
		Payload:   payload,
	}
}

// Terminal reports whether no further events follow this one for the run.
func (e Event) Terminal() bool {
	status, ok := store.StatusForEvent(e.Type)
	return ok && store.IsTerminalStatus(status)
}

type Broker struct {
	mu          sync.RWMutex
	buffer      int
	subscribers map[string]map[chan Event]struct{}
}

func NewBroker() *Broker {
	return NewBrokerWithBuffer(defaultBuffer)
}

func NewBrokerWithBuffer(buffer int) *Broker {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Broker{
		buffer:      buffer,
		subscribers: map[string]map[chan Event]struct{}{},
	}
}

// Subscribe registers a channel for runID. The channel is closed once ctx is
// done.
func (b *Broker) Subscribe(ctx context.Context, runID string) <-chan Event {
	ch := make(chan Event, b.buffer)

	b.mu.Lock()
	if b.subscribers[runID] == nil {
		b.subscribers[runID] = map[chan Event]struct{}{}
	}
	b.subscribers[runID][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		if subs := b.subscribers[runID]; subs != nil {
			delete(subs, ch)
			if len(subs) == 0 {
				delete(b.subscribers, runID)
			}
		}
		close(ch)
		b.mu.Unlock()
	}()

	return ch
}

func (b *Broker) Subscribers(runID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[runID])
}

// Publish delivers event to every subscriber of its run without blocking.
// Subscribers with a full buffer miss non-terminal events. A terminal event
// evicts the oldest buffered event instead, so every stream sees its end.
// It returns the number of subscribers that received it.
func (b *Broker) Publish(event Event) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	terminal := event.Terminal()
	delivered := 0
	for ch := range b.subscribers[event.RunID] {
		if send(ch, event, terminal) {
			delivered++
		}
	}
	return delivered
}

func send(ch chan Event, event Event, evict bool) bool {
	for {
		select {
		case ch <- event:
			return true
		default:
		}
		if !evict {
			metrics.EventsDroppedTotal.Inc()
			return false
		}
		select {
		case <-ch:
			metrics.EventsDroppedTotal.Inc()
		default:
		}
	}
}
