package store

import (
	"context"
	"encoding/json"
	"strings"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

const (
	EventRunStarted   = "run.started"
	EventRunProgress  = "run.progress"
	EventRunCompleted = "run.completed"
	EventRunFailed    = "run.failed"
)

// Run is one asynchronous keyword research request. Config and Result hold
// the JSON encoded pipeline config and pipeline result.
type Run struct {
	ID           string
	Status       string
	Country      string
	SeedKeywords []string
	Competitors  []string
	Config       json.RawMessage
	Result       json.RawMessage
	Error        string
	CreatedAt    string
	UpdatedAt    string
}

type RunEvent struct {
	RunID     string
	Seq       int64
	Type      string
	Timestamp string
	Source    string
	Payload   map[string]any
}

// Store persists research runs and their progress events. Getters return
// (nil, nil) for unknown IDs.
type Store interface {
	CreateRun(ctx context.Context, run Run) error
	CompleteRun(ctx context.Context, runID string, result json.RawMessage, updatedAt string) error
	FailRun(ctx context.Context, runID string, message string, updatedAt string) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context) ([]Run, error)
	DeleteRun(ctx context.Context, runID string) error
	NextSeq(ctx context.Context, runID string) (int64, error)
	AppendEvent(ctx context.Context, event RunEvent) error
	ListEvents(ctx context.Context, runID string, afterSeq int64) ([]RunEvent, error)
	Ping(ctx context.Context) error
}

// NormalizeEventType lowercases an event type and turns underscores into dots.
func NormalizeEventType(eventType string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(eventType)), "_", ".")
}

// StatusForEvent maps terminal event types to the run status they imply.
func StatusForEvent(eventType string) (string, bool) {
	switch NormalizeEventType(eventType) {
	case EventRunStarted:
		return StatusRunning, true
	case EventRunCompleted:
		return StatusCompleted, true
	case EventRunFailed:
		return StatusFailed, true
	}
	return "", false
}

func IsTerminalStatus(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}
