package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/store"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/store/memory"
)

func TestRecordEvent_CompletedStoresResult(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.CreateRun(ctx, store.Run{ID: "run-1", Status: store.StatusRunning, Country: "US"}))

	payload := map[string]any{
		"keywords":             3,
		store.ResultPayloadKey: map[string]any{"summary": map[string]any{"totalKeywords": 3}},
	}
	stored, err := store.RecordEvent(ctx, s, store.RunEvent{RunID: "run-1", Type: "RUN_COMPLETED", Source: "worker", Payload: payload})
	require.NoError(t, err)
	require.Equal(t, int64(1), stored.Seq)
	require.Equal(t, store.EventRunCompleted, stored.Type)
	require.NotContains(t, stored.Payload, store.ResultPayloadKey)
	require.Contains(t, payload, store.ResultPayloadKey)

	run, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, store.StatusCompleted, run.Status)
	require.JSONEq(t, `{"summary":{"totalKeywords":3}}`, string(run.Result))

	events, err := s.ListEvents(ctx, "run-1", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NotContains(t, events[0].Payload, store.ResultPayloadKey)
}

func TestRecordEvent_AssignsSequence(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.CreateRun(ctx, store.Run{ID: "run-1", Status: store.StatusRunning}))

	first, err := store.RecordEvent(ctx, s, store.RunEvent{RunID: "run-1", Type: store.EventRunStarted})
	require.NoError(t, err)
	second, err := store.RecordEvent(ctx, s, store.RunEvent{RunID: "run-1", Type: store.EventRunProgress})
	require.NoError(t, err)
	require.Equal(t, int64(1), first.Seq)
	require.Equal(t, int64(2), second.Seq)
	require.NotEmpty(t, second.Timestamp)
	require.NotNil(t, second.Payload)
}

func TestRecordEvent_FailedSetsError(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.CreateRun(ctx, store.Run{ID: "run-1", Status: store.StatusRunning}))

	_, err := store.RecordEvent(ctx, s, store.RunEvent{RunID: "run-1", Type: store.EventRunFailed, Payload: map[string]any{"error": "boom"}})
	require.NoError(t, err)

	run, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, store.StatusFailed, run.Status)
	require.Equal(t, "boom", run.Error)
}

func TestRecordEvent_TerminalRunKeepsStatus(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.CreateRun(ctx, store.Run{ID: "cancelled", Status: store.StatusRunning}))
	require.NoError(t, s.CreateRun(ctx, store.Run{ID: "done", Status: store.StatusRunning}))

	_, err := store.RecordEvent(ctx, s, store.RunEvent{RunID: "cancelled", Type: store.EventRunFailed, Payload: map[string]any{"error": "cancelled by user"}})
	require.NoError(t, err)
	late, err := store.RecordEvent(ctx, s, store.RunEvent{
		RunID:   "cancelled",
		Type:    store.EventRunCompleted,
		Payload: map[string]any{store.ResultPayloadKey: map[string]any{"keywords": []any{}}},
	})
	require.NoError(t, err)
	require.NotContains(t, late.Payload, store.ResultPayloadKey)

	run, err := s.GetRun(ctx, "cancelled")
	require.NoError(t, err)
	require.Equal(t, store.StatusFailed, run.Status)
	require.Equal(t, "cancelled by user", run.Error)
	require.Empty(t, run.Result)

	_, err = store.RecordEvent(ctx, s, store.RunEvent{
		RunID:   "done",
		Type:    store.EventRunCompleted,
		Payload: map[string]any{store.ResultPayloadKey: map[string]any{"keywords": []any{}}},
	})
	require.NoError(t, err)
	_, err = store.RecordEvent(ctx, s, store.RunEvent{RunID: "done", Type: store.EventRunFailed, Payload: map[string]any{"error": "cancelled by user"}})
	require.NoError(t, err)

	run, err = s.GetRun(ctx, "done")
	require.NoError(t, err)
	require.Equal(t, store.StatusCompleted, run.Status)
	require.Empty(t, run.Error)
	require.JSONEq(t, `{"keywords":[]}`, string(run.Result))
}

func TestRecordEvent_UnknownRunStillAppends(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	stored, err := store.RecordEvent(ctx, s, store.RunEvent{RunID: "ghost", Type: store.EventRunFailed, Payload: map[string]any{"error": "boom"}})
	require.NoError(t, err)
	require.Equal(t, int64(1), stored.Seq)

	run, err := s.GetRun(ctx, "ghost")
	require.NoError(t, err)
	require.Nil(t, run)
}
