package workflows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/research"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/store"
)

const eventSource = "worker"

// ResearchActivities runs the agent stages of a research run and reports
// run events to the control plane. Events fall back to the local store when
// the control plane cannot be reached.
type ResearchActivities struct {
	store        store.Store
	pipeline     *research.Pipeline
	controlPlane string
	http         *resty.Client
	logger       *slog.Logger
}

type ResearchActivitiesOption func(*ResearchActivities)

func WithActivityLogger(logger *slog.Logger) ResearchActivitiesOption {
	return func(a *ResearchActivities) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func WithRequestTimeout(timeout time.Duration) ResearchActivitiesOption {
	return func(a *ResearchActivities) {
		if timeout > 0 {
			a.http.SetTimeout(timeout)
		}
	}
}

func NewResearchActivities(st store.Store, pipeline *research.Pipeline, controlPlaneURL string, opts ...ResearchActivitiesOption) *ResearchActivities {
	activities := &ResearchActivities{
		store:        st,
		pipeline:     pipeline,
		controlPlane: strings.TrimRight(strings.TrimSpace(controlPlaneURL), "/"),
		http: resty.New().
			SetTimeout(10*time.Second).
			SetHeader("Content-Type", "application/json"),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(activities)
		}
	}
	return activities
}

func (a *ResearchActivities) ReportProgress(ctx context.Context, input ProgressInput) error {
	payload := map[string]any{
		"step":    input.Event.Step,
		"total":   input.Event.Total,
		"message": input.Event.Message,
		"line":    input.Event.Line(),
	}
	return a.emitEvent(ctx, input.RunID, store.EventRunProgress, payload)
}

func (a *ResearchActivities) ExpandKeywords(ctx context.Context, input StageInput) (research.ExpansionOutput, error) {
	if err := requireRunID(input.RunID); err != nil {
		return research.ExpansionOutput{}, err
	}
	return a.pipeline.Expand(ctx, input.Config)
}

func (a *ResearchActivities) AnalyzeCompetitors(ctx context.Context, input StageInput) (research.CompetitorOutput, error) {
	if err := requireRunID(input.RunID); err != nil {
		return research.CompetitorOutput{}, err
	}
	return a.pipeline.AnalyzeCompetitors(ctx, input.Config)
}

func (a *ResearchActivities) BuildStrategy(ctx context.Context, input StrategyInput) (research.StrategyOutput, error) {
	if err := requireRunID(input.RunID); err != nil {
		return research.StrategyOutput{}, err
	}
	return a.pipeline.Strategize(ctx, input.Config, input.Keywords, input.Gaps)
}

// RecordRunResult sends the assembled result on a run.completed event.
func (a *ResearchActivities) RecordRunResult(ctx context.Context, input RecordResultInput) error {
	if err := requireRunID(input.RunID); err != nil {
		return err
	}
	encoded, err := json.Marshal(input.Result)
	if err != nil {
		return err
	}
	var result any
	if err := json.Unmarshal(encoded, &result); err != nil {
		return err
	}
	payload := map[string]any{
		"totalKeywords": input.Result.Summary.TotalKeywords,
		"gapCount":      input.Result.Summary.GapCount,
		"topKeyword":    input.Result.Summary.TopKeyword,
		"durationMs":    input.Result.Metadata.DurationMs,
	}
	payload[store.ResultPayloadKey] = result
	return a.emitEvent(ctx, input.RunID, store.EventRunCompleted, payload)
}

func (a *ResearchActivities) HandleRunFailure(ctx context.Context, input RunFailureInput) error {
	if err := requireRunID(input.RunID); err != nil {
		return err
	}
	detail := strings.TrimSpace(input.Error)
	if detail == "" {
		detail = "unknown workflow activity error"
	}
	return a.emitEvent(ctx, input.RunID, store.EventRunFailed, map[string]any{"error": detail})
}

func (a *ResearchActivities) emitEvent(ctx context.Context, runID string, eventType string, payload map[string]any) error {
	err := a.postEvent(ctx, runID, eventType, payload)
	if err == nil {
		return nil
	}
	a.logger.Warn("control plane event post failed, using local store", "run_id", runID, "type", eventType, "error", err)
	return a.appendLocalEvent(ctx, runID, eventType, payload)
}

func (a *ResearchActivities) appendLocalEvent(ctx context.Context, runID string, eventType string, payload map[string]any) error {
	if a.store == nil {
		return errors.New("no local store configured for run events")
	}
	_, err := store.RecordEvent(ctx, a.store, store.RunEvent{
		RunID:     runID,
		Type:      eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Source:    eventSource,
		Payload:   payload,
	})
	return err
}

func (a *ResearchActivities) postEvent(ctx context.Context, runID string, eventType string, payload map[string]any) error {
	if a.controlPlane == "" {
		return errors.New("control plane URL not configured")
	}
	resp, err := a.http.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"type":      eventType,
			"source":    eventSource,
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
			"payload":   payload,
		}).
		Post(fmt.Sprintf("%s/runs/%s/events", a.controlPlane, runID))
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("control plane event failed: %s", resp.Status())
	}
	return nil
}

func requireRunID(runID string) error {
	if strings.TrimSpace(runID) == "" {
		return errors.New("run_id required")
	}
	return nil
}
