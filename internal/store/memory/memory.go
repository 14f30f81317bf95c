package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/store"
)

type MemoryStore struct {
	mu     sync.RWMutex
	runs   map[string]store.Run
	events map[string][]store.RunEvent
	seq    map[string]int64
}

func New() *MemoryStore {
	return &MemoryStore{
		runs:   map[string]store.Run{},
		events: map[string][]store.RunEvent{},
		seq:    map[string]int64{},
	}
}

func (m *MemoryStore) CreateRun(ctx context.Context, run store.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run.Status == "" {
		run.Status = store.StatusRunning
	}
	m.runs[run.ID] = cloneRun(run)
	return nil
}

func (m *MemoryStore) CompleteRun(ctx context.Context, runID string, result json.RawMessage, updatedAt string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil
	}
	run.Status = store.StatusCompleted
	run.Result = append(json.RawMessage(nil), result...)
	run.Error = ""
	run.UpdatedAt = updatedAt
	m.runs[runID] = run
	return nil
}

func (m *MemoryStore) FailRun(ctx context.Context, runID string, message string, updatedAt string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil
	}
	run.Status = store.StatusFailed
	run.Error = message
	run.UpdatedAt = updatedAt
	m.runs[runID] = run
	return nil
}

func (m *MemoryStore) GetRun(ctx context.Context, runID string) (*store.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil, nil
	}
	cloned := cloneRun(run)
	return &cloned, nil
}

// ListRuns returns runs most recently updated first.
func (m *MemoryStore) ListRuns(ctx context.Context) ([]store.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := make([]store.Run, 0, len(m.runs))
	for _, run := range m.runs {
		results = append(results, cloneRun(run))
	}
	sort.Slice(results, func(i, j int) bool {
		left, right := parseTime(results[i].UpdatedAt), parseTime(results[j].UpdatedAt)
		if left.Equal(right) {
			return results[i].ID < results[j].ID
		}
		return left.After(right)
	})
	return results, nil
}

func (m *MemoryStore) DeleteRun(ctx context.Context, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.runs, runID)
	delete(m.events, runID)
	delete(m.seq, runID)
	return nil
}

func (m *MemoryStore) NextSeq(ctx context.Context, runID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq[runID]++
	return m.seq[runID], nil
}

// AppendEvent stores the event; started, completed and failed events also
// move the run to the matching status.
func (m *MemoryStore) AppendEvent(ctx context.Context, event store.RunEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	event.Type = store.NormalizeEventType(event.Type)
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if event.Payload == nil {
		event.Payload = map[string]any{}
	}
	if event.Seq > m.seq[event.RunID] {
		m.seq[event.RunID] = event.Seq
	}
	m.events[event.RunID] = append(m.events[event.RunID], event)

	if status, ok := store.StatusForEvent(event.Type); ok {
		if run, exists := m.runs[event.RunID]; exists && !store.IsTerminalStatus(run.Status) {
			run.Status = status
			run.UpdatedAt = event.Timestamp
			if status == store.StatusFailed {
				if message, ok := event.Payload["error"].(string); ok {
					run.Error = message
				}
			}
			m.runs[event.RunID] = run
		}
	}
	return nil
}

func (m *MemoryStore) ListEvents(ctx context.Context, runID string, afterSeq int64) ([]store.RunEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := []store.RunEvent{}
	for _, event := range m.events[runID] {
		if event.Seq > afterSeq {
			results = append(results, event)
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Seq < results[j].Seq
	})
	return results, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func cloneRun(run store.Run) store.Run {
	cloned := run
	cloned.SeedKeywords = append([]string{}, run.SeedKeywords...)
	cloned.Competitors = append([]string{}, run.Competitors...)
	cloned.Config = append(json.RawMessage(nil), run.Config...)
	cloned.Result = append(json.RawMessage(nil), run.Result...)
	return cloned
}

func parseTime(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
