package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/events"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/store"
)

var heartbeatInterval = 15 * time.Second

type ingestEventRequest struct {
	Type      string         `json:"type"`
	Source    string         `json:"source"`
	Timestamp string         `json:"timestamp"`
	Payload   map[string]any `json:"payload"`
}

// ingestEvent accepts run events from workers.
func (s *Server) ingestEvent(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	var req ingestEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Type) == "" {
		writeError(w, "event type required", http.StatusBadRequest)
		return
	}
	if strings.Contains(req.Type, "_") {
		writeError(w, "event type must use dot notation", http.StatusBadRequest)
		return
	}
	if _, ok := s.findRun(w, r); !ok {
		return
	}
	if _, err := s.recordEvent(r.Context(), store.RunEvent{
		RunID:     runID,
		Type:      req.Type,
		Timestamp: strings.TrimSpace(req.Timestamp),
		Source:    req.Source,
		Payload:   req.Payload,
	}); err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// streamEvents replays stored events after the requested sequence, then
// follows live events until the run reaches a terminal event or the client
// goes away.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	live := s.broker.Subscribe(ctx, runID)
	lastSeq := parseAfterSeq(runID, r)
	stored, err := s.store.ListEvents(ctx, runID, lastSeq)
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for _, record := range stored {
		event := events.FromStore(record)
		sendSSE(w, event)
		lastSeq = event.Seq
		if event.Terminal() {
			flusher.Flush()
			return
		}
	}
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case event, ok := <-live:
			if !ok {
				return
			}
			if event.Seq <= lastSeq {
				continue
			}
			sendSSE(w, event)
			flusher.Flush()
			lastSeq = event.Seq
			if event.Terminal() {
				return
			}
		case <-heartbeat.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}

func sendSSE(w http.ResponseWriter, event events.Event) {
	payload, _ := json.Marshal(event)
	fmt.Fprintf(w, "id: %s:%d\n", event.RunID, event.Seq)
	fmt.Fprintf(w, "event: %s\n", event.Type)
	fmt.Fprintf(w, "data: %s\n\n", payload)
}

// parseAfterSeq reads ?after_seq=N, falling back to a "runID:seq"
// Last-Event-ID header.
func parseAfterSeq(runID string, r *http.Request) int64 {
	afterParam := strings.TrimSpace(r.URL.Query().Get("after_seq"))
	if afterParam != "" {
		if parsed, err := strconv.ParseInt(afterParam, 10, 64); err == nil {
			return parsed
		}
	}
	lastEventID := r.Header.Get("Last-Event-ID")
	if lastEventID == "" {
		return 0
	}
	prefix, seqText, found := strings.Cut(lastEventID, ":")
	if !found || prefix != runID {
		return 0
	}
	seq, err := strconv.ParseInt(seqText, 10, 64)
	if err != nil {
		return 0
	}
	return seq
}
