package store

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// ResultPayloadKey carries the encoded pipeline result on run.completed
// events. RecordEvent moves it onto the run record.
const ResultPayloadKey = "result"

// RecordEvent assigns the next sequence number when event.Seq is zero,
// finishes the run on a completed or failed event, and appends the event.
// A run that is already completed or failed keeps its status and result.
// It returns the event as stored.
func RecordEvent(ctx context.Context, s Store, event RunEvent) (RunEvent, error) {
	event.Type = NormalizeEventType(event.Type)
	if strings.TrimSpace(event.Timestamp) == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	payload := make(map[string]any, len(event.Payload))
	for key, value := range event.Payload {
		payload[key] = value
	}
	event.Payload = payload

	result, hasResult := payload[ResultPayloadKey]
	if event.Type == EventRunCompleted {
		delete(payload, ResultPayloadKey)
	}
	if event.Type == EventRunCompleted || event.Type == EventRunFailed {
		run, err := s.GetRun(ctx, event.RunID)
		if err != nil {
			return RunEvent{}, err
		}
		if run != nil && !IsTerminalStatus(run.Status) {
			if err := finishRun(ctx, s, event, result, hasResult); err != nil {
				return RunEvent{}, err
			}
		}
	}

	if event.Seq <= 0 {
		seq, err := s.NextSeq(ctx, event.RunID)
		if err != nil {
			return RunEvent{}, err
		}
		event.Seq = seq
	}
	if err := s.AppendEvent(ctx, event); err != nil {
		return RunEvent{}, err
	}
	return event, nil
}

func finishRun(ctx context.Context, s Store, event RunEvent, result any, hasResult bool) error {
	if event.Type == EventRunFailed {
		message, _ := event.Payload["error"].(string)
		return s.FailRun(ctx, event.RunID, message, event.Timestamp)
	}
	if !hasResult {
		return nil
	}
	encoded, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return s.CompleteRun(ctx, event.RunID, encoded, event.Timestamp)
}
