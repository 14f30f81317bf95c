package research

import (
	"context"
	"fmt"
	"time"
)

const TotalSteps = 4

type ProgressEvent struct {
	Step    int       `json:"step"`
	Total   int       `json:"total"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Line renders the event as "[RFC3339] step N/4: message".
func (e ProgressEvent) Line() string {
	return fmt.Sprintf("[%s] step %d/%d: %s", e.Time.UTC().Format(time.RFC3339), e.Step, e.Total, e.Message)
}

type Reporter interface {
	Report(ctx context.Context, event ProgressEvent)
}

type ReporterFunc func(ctx context.Context, event ProgressEvent)

func (f ReporterFunc) Report(ctx context.Context, event ProgressEvent) {
	f(ctx, event)
}

// ExpandMessage and the functions below produce the progress text for each
// of the four steps.
func ExpandMessage(cfg PipelineConfig) string {
	return fmt.Sprintf("expanding %d seed keywords for %s", len(cfg.SeedKeywords), cfg.CountryCode)
}

func CompetitorMessage(cfg PipelineConfig) string {
	return fmt.Sprintf("analyzing %d competitor domains for %s", len(cfg.Competitors), cfg.CountryCode)
}

func RankMessage(expansion ExpansionOutput, competitors CompetitorOutput) string {
	return fmt.Sprintf("merging and scoring %d expansion keywords and %d gaps", len(expansion.AllKeywords), len(competitors.Gaps))
}

func StrategyMessage(ranked int, gaps int) string {
	return fmt.Sprintf("building strategy from top %d keywords and top %d gaps", min(ranked, strategyKeywordRows), min(gaps, strategyGapRows))
}
