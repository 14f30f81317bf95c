package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/events"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/research"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/store"
)

const controlPlaneSource = "control_plane"

type runResponse struct {
	ID           string          `json:"id"`
	Status       string          `json:"status"`
	Country      string          `json:"country"`
	SeedKeywords []string        `json:"seedKeywords"`
	Competitors  []string        `json:"competitors"`
	Error        string          `json:"error,omitempty"`
	CreatedAt    string          `json:"createdAt"`
	UpdatedAt    string          `json:"updatedAt"`
	Config       json.RawMessage `json:"config,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
}

func toRunResponse(run store.Run, detail bool) runResponse {
	resp := runResponse{
		ID:           run.ID,
		Status:       run.Status,
		Country:      run.Country,
		SeedKeywords: nonNilStrings(run.SeedKeywords),
		Competitors:  nonNilStrings(run.Competitors),
		Error:        run.Error,
		CreatedAt:    run.CreatedAt,
		UpdatedAt:    run.UpdatedAt,
	}
	if detail {
		resp.Config = run.Config
		resp.Result = run.Result
	}
	return resp
}

// createRun validates the config, records a running run and hands it to the
// workflow service or to an in-process goroutine.
func (s *Server) createRun(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.decodeConfig(w, r)
	if !ok {
		return
	}
	if err := cfg.Validate(); err != nil {
		writePipelineError(w, err)
		return
	}
	cfg = cfg.Normalize()
	encoded, err := json.Marshal(cfg)
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	id := uuid.New().String()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	run := store.Run{
		ID:           id,
		Status:       store.StatusRunning,
		Country:      cfg.CountryCode,
		SeedKeywords: cfg.SeedKeywords,
		Competitors:  cfg.Competitors,
		Config:       encoded,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateRun(r.Context(), run); err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_, _ = s.recordEvent(r.Context(), store.RunEvent{
		RunID:     id,
		Type:      store.EventRunStarted,
		Timestamp: now,
		Source:    controlPlaneSource,
		Payload: map[string]any{
			"country":      cfg.CountryCode,
			"seedKeywords": cfg.SeedKeywords,
			"competitors":  cfg.Competitors,
		},
	})

	if s.workflows != nil {
		if err := s.workflows.StartResearch(r.Context(), id, cfg); err != nil {
			s.logger.Error("failed to start research workflow", "run_id", id, "error", err)
			_, _ = s.recordEvent(r.Context(), store.RunEvent{
				RunID:   id,
				Type:    store.EventRunFailed,
				Source:  controlPlaneSource,
				Payload: map[string]any{"error": "start workflow: " + err.Error()},
			})
			writeError(w, err.Error(), http.StatusBadGateway)
			return
		}
	} else {
		s.local.Add(1)
		go func() {
			defer s.local.Done()
			s.runLocal(context.Background(), id, cfg)
		}()
	}

	writeJSONStatus(w, map[string]string{"id": id, "status": store.StatusRunning}, http.StatusAccepted)
}

// runLocal executes a run in-process and records its events the way a
// worker would.
func (s *Server) runLocal(ctx context.Context, runID string, cfg research.PipelineConfig) {
	logger := s.logger.With("run_id", runID)
	reporter := research.ReporterFunc(func(ctx context.Context, event research.ProgressEvent) {
		_, _ = s.recordEvent(ctx, store.RunEvent{
			RunID:  runID,
			Type:   store.EventRunProgress,
			Source: controlPlaneSource,
			Payload: map[string]any{
				"step":    event.Step,
				"total":   event.Total,
				"message": event.Message,
				"line":    event.Line(),
			},
		})
	})

	result, err := s.pipelines(reporter).Run(ctx, cfg)
	if err != nil {
		logger.Warn("in-process research run failed", "error", err)
		_, _ = s.recordEvent(ctx, store.RunEvent{
			RunID:   runID,
			Type:    store.EventRunFailed,
			Source:  controlPlaneSource,
			Payload: map[string]any{"error": err.Error()},
		})
		return
	}

	var decoded any
	encoded, err := json.Marshal(result)
	if err == nil {
		err = json.Unmarshal(encoded, &decoded)
	}
	if err != nil {
		logger.Error("failed to encode research result", "error", err)
		_, _ = s.recordEvent(ctx, store.RunEvent{
			RunID:   runID,
			Type:    store.EventRunFailed,
			Source:  controlPlaneSource,
			Payload: map[string]any{"error": "encode result: " + err.Error()},
		})
		return
	}
	if _, err := s.recordEvent(ctx, store.RunEvent{
		RunID:  runID,
		Type:   store.EventRunCompleted,
		Source: controlPlaneSource,
		Payload: map[string]any{
			"totalKeywords":        result.Summary.TotalKeywords,
			"gapCount":             result.Summary.GapCount,
			"topKeyword":           result.Summary.TopKeyword,
			"durationMs":           result.Metadata.DurationMs,
			store.ResultPayloadKey: decoded,
		},
	}); err != nil {
		logger.Error("failed to record research result", "error", err)
	}
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRuns(r.Context())
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	resp := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		resp = append(resp, toRunResponse(run, false))
	}
	writeJSONStatus(w, resp, http.StatusOK)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.findRun(w, r)
	if !ok {
		return
	}
	writeJSONStatus(w, toRunResponse(*run, true), http.StatusOK)
}

func (s *Server) deleteRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.findRun(w, r)
	if !ok {
		return
	}
	if s.workflows != nil && run.Status == store.StatusRunning {
		_ = s.workflows.CancelResearch(r.Context(), run.ID)
	}
	if err := s.store.DeleteRun(r.Context(), run.ID); err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) cancelRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.findRun(w, r)
	if !ok {
		return
	}
	if store.IsTerminalStatus(run.Status) {
		writeError(w, "run already "+run.Status, http.StatusConflict)
		return
	}
	if s.workflows == nil {
		writeError(w, "cancellation requires the workflow service", http.StatusNotImplemented)
		return
	}
	if err := s.workflows.CancelResearch(r.Context(), run.ID); err != nil {
		writeError(w, err.Error(), http.StatusBadGateway)
		return
	}
	_, _ = s.recordEvent(r.Context(), store.RunEvent{
		RunID:   run.ID,
		Type:    store.EventRunFailed,
		Source:  controlPlaneSource,
		Payload: map[string]any{"error": "cancelled by user"},
	})
	w.WriteHeader(http.StatusAccepted)
}

// findRun writes 404 for unknown runs.
func (s *Server) findRun(w http.ResponseWriter, r *http.Request) (*store.Run, bool) {
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	if run == nil {
		writeError(w, "run not found", http.StatusNotFound)
		return nil, false
	}
	return run, true
}

// recordEvent persists the event and publishes the stored form to live
// subscribers.
func (s *Server) recordEvent(ctx context.Context, event store.RunEvent) (store.RunEvent, error) {
	stored, err := store.RecordEvent(ctx, s.store, event)
	if err != nil {
		s.logger.Error("failed to record run event", "run_id", event.RunID, "type", event.Type, "error", err)
		return store.RunEvent{}, err
	}
	if s.broker != nil {
		s.broker.Publish(events.FromStore(stored))
	}
	return stored, nil
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
