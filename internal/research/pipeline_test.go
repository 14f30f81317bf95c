package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/agent"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/keywords"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/llm"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/tools"
)

type runnerCall struct {
	Spec   agent.Spec
	Prompt string
}

type fakeRunner struct {
	mu      sync.Mutex
	outputs map[string]any
	errs    map[string]error
	calls   []runnerCall
}

func (f *fakeRunner) Run(ctx context.Context, spec agent.Spec, prompt string, executor agent.ToolExecutor) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, runnerCall{Spec: spec, Prompt: prompt})
	f.mu.Unlock()
	if err := f.errs[spec.Name]; err != nil {
		return nil, err
	}
	out, ok := f.outputs[spec.Name]
	if !ok {
		return nil, errors.New("no output scripted for " + spec.Name)
	}
	if raw, ok := out.(string); ok {
		return json.RawMessage(raw), nil
	}
	return json.Marshal(out)
}

func (f *fakeRunner) agents() []string {
	names := make([]string, 0, len(f.calls))
	for _, call := range f.calls {
		names = append(names, call.Spec.Name)
	}
	return names
}

func fixedClock() func() time.Time {
	current := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		current = current.Add(250 * time.Millisecond)
		return current
	}
}

func scriptedOutputs() map[string]any {
	return map[string]any{
		ExpanderAgent: ExpansionOutput{
			AllKeywords: []keywords.RawKeyword{
				{Keyword: "invoice matching software", Volume: 300, CPC: 4.5, Competition: 0.1, Intent: keywords.IntentTransactional, Source: "google"},
				{Keyword: "ap automation", Volume: 200, CPC: 5, Competition: 0.5, Intent: keywords.IntentCommercial, Source: "labs"},
				{Keyword: "what is accounts payable", Volume: 5000, CPC: 0.8, Competition: 0.05, Intent: keywords.IntentInformational, Source: "related"},
			},
			Summary: "found three",
		},
		CompetitorAgent: CompetitorOutput{
			Gaps: []keywords.KeywordGap{{
				RawKeyword:       keywords.RawKeyword{Keyword: "AP automation", Volume: 500, CPC: 6, Competition: 0.2, Intent: keywords.IntentCommercial},
				CompetitorDomain: "bill.com",
				CompetitorRank:   4,
				CompetitorEtv:    88,
				GapType:          keywords.GapLowCompetition,
			}},
			Summary: "one gap",
		},
		StrategistAgent: StrategyOutput{
			TopPicks:                 []KeywordPick{{Keyword: "invoice matching software", Justification: "300 searches at $4.50 with 0.10 competition."}},
			RecommendedMonthlyBudget: 2500,
			BudgetRationale:          "Covers projected clicks.",
			MarketOpportunity:        "Mid-market AP teams are underserved.",
			NextSteps:                []string{"Launch", "Measure", "Expand"},
		},
	}
}

func TestRun_Success(t *testing.T) {
	runner := &fakeRunner{outputs: scriptedOutputs()}
	var events []ProgressEvent
	pipeline := NewPipeline(runner,
		WithClock(fixedClock()),
		WithReporter(ReporterFunc(func(ctx context.Context, event ProgressEvent) {
			events = append(events, event)
		})),
	)

	cfg := validConfig()
	cfg.CountryCode = "us"
	cfg.Product = &Product{Name: "Matchly", TargetBuyer: "AP managers", Integrations: []string{"NetSuite", "QuickBooks"}}
	result, err := pipeline.Run(context.Background(), cfg)
	require.NoError(t, err)

	require.Equal(t, []string{ExpanderAgent, CompetitorAgent, StrategistAgent}, runner.agents())
	require.Contains(t, runner.calls[0].Prompt, "1. invoice matching software")
	require.Contains(t, runner.calls[0].Prompt, "Country: US")
	require.Contains(t, runner.calls[1].Prompt, "- bill.com")
	require.Contains(t, runner.calls[1].Prompt, "bill.com and tipalti.com")
	strategyPrompt := runner.calls[2].Prompt
	require.Contains(t, strategyPrompt, "Target buyer: AP managers")
	require.Contains(t, strategyPrompt, "Integrations: NetSuite, QuickBooks")
	require.Contains(t, strategyPrompt, "| 1 | invoice matching software |")
	require.Contains(t, strategyPrompt, "| 1 | AP automation | bill.com | 4 |")

	require.Len(t, result.Keywords, 3)
	require.Equal(t, "invoice matching software", result.Keywords[0].Keyword)
	require.Equal(t, keywords.TierSweetSpot, result.Keywords[0].Tier)
	for i := 1; i < len(result.Keywords); i++ {
		require.GreaterOrEqual(t, result.Keywords[i-1].Score, result.Keywords[i].Score)
	}
	var ap keywords.ScoredKeyword
	for _, item := range result.Keywords {
		if item.Keyword == "AP automation" {
			ap = item
		}
	}
	require.Equal(t, 500, ap.Volume)
	require.Equal(t, "gap:bill.com", ap.Source)

	require.Len(t, result.Gaps, 1)
	require.Equal(t, 3, result.Summary.TotalKeywords)
	require.Equal(t, 1, result.Summary.GapCount)
	require.Equal(t, "invoice matching software", result.Summary.TopKeyword)
	require.Equal(t, "Mid-market AP teams are underserved.", result.Summary.MarketOpportunity)
	require.Equal(t, 2500.0, result.Strategy.RecommendedMonthlyBudget)
	require.Equal(t, "US", result.Metadata.Country)
	require.Positive(t, result.Metadata.DurationMs)

	require.Len(t, events, TotalSteps)
	require.Len(t, result.Trace, TotalSteps)
	for i, event := range events {
		require.Equal(t, i+1, event.Step)
		require.Equal(t, event.Line(), result.Trace[i])
		require.True(t, strings.HasPrefix(result.Trace[i], "[2026-05-04T09:00:"))
	}
	require.Contains(t, result.Trace[3], "step 4/4: building strategy from top 3 keywords and top 1 gaps")
}

func TestRun_ConfigErrorBeforeAnyStage(t *testing.T) {
	runner := &fakeRunner{outputs: scriptedOutputs()}
	cfg := validConfig()
	cfg.CPCRange = keywords.CPCRange{Min: 10, Max: 2}

	_, err := NewPipeline(runner).Run(context.Background(), cfg)
	var configErr ConfigError
	require.ErrorAs(t, err, &configErr)
	require.Empty(t, runner.calls)
}

func TestRun_ExpanderBudgetIsFatal(t *testing.T) {
	budgetErr := agent.TurnBudgetError{Agent: ExpanderAgent, MaxTurns: 15}
	runner := &fakeRunner{outputs: scriptedOutputs(), errs: map[string]error{ExpanderAgent: budgetErr}}

	result, err := NewPipeline(runner).Run(context.Background(), validConfig())
	require.Nil(t, result)
	require.Equal(t, budgetErr, err)
	require.Equal(t, []string{ExpanderAgent}, runner.agents())
}

func TestRun_StrategistValidationIsFatal(t *testing.T) {
	validationErr := agent.SchemaValidationError{Agent: StrategistAgent, Detail: "/nextSteps minItems"}
	runner := &fakeRunner{outputs: scriptedOutputs(), errs: map[string]error{StrategistAgent: validationErr}}

	result, err := NewPipeline(runner).Run(context.Background(), validConfig())
	require.Nil(t, result)
	require.Equal(t, validationErr, err)
	require.Len(t, runner.calls, 3)
}

func TestRun_UndecodableOutput(t *testing.T) {
	outputs := scriptedOutputs()
	outputs[CompetitorAgent] = `{"gaps":"nope","summary":""}`
	runner := &fakeRunner{outputs: outputs}

	_, err := NewPipeline(runner).Run(context.Background(), validConfig())
	var validationErr agent.SchemaValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, CompetitorAgent, validationErr.Agent)
}

func TestAgentSpecs(t *testing.T) {
	require.Equal(t, 15, ExpanderSpec.MaxTurns)
	require.Equal(t, 20, CompetitorSpec.MaxTurns)
	require.Equal(t, 8, StrategistSpec.MaxTurns)
	require.Equal(t, []string{tools.ToolTrafficProjection}, StrategistSpec.Tools)
	require.Contains(t, ExpanderSpec.Tools, tools.ToolExpandKeywords)
	require.Contains(t, ExpanderSpec.Tools, tools.ToolLabsSuggestions)
	require.Contains(t, ExpanderSpec.Tools, tools.ToolLabsRelated)
	require.Contains(t, CompetitorSpec.Tools, tools.ToolDomainIntersection)

	for _, spec := range []agent.Spec{ExpanderSpec, CompetitorSpec, StrategistSpec} {
		_, err := spec.Output.Compile()
		require.NoError(t, err, spec.Name)
	}
}

func TestStrategySchemaRejectsTooFewSteps(t *testing.T) {
	validator, err := strategySchema.Compile()
	require.NoError(t, err)
	err = validator.ValidateJSON([]byte(`{"topPicks":[{"keyword":"a","justification":"b"}],"recommendedMonthlyBudget":10,"budgetRationale":"","marketOpportunity":"","nextSteps":["one","two"]}`))
	require.Error(t, err)
}

func TestStrategySchemaTopPicksBounds(t *testing.T) {
	validator, err := strategySchema.Compile()
	require.NoError(t, err)
	report := func(picks int) []byte {
		list := make([]string, picks)
		for i := range list {
			list[i] = fmt.Sprintf(`{"keyword":"kw %d","justification":"j"}`, i)
		}
		return []byte(`{"topPicks":[` + strings.Join(list, ",") + `],"recommendedMonthlyBudget":10,"budgetRationale":"","marketOpportunity":"","nextSteps":["one","two","three"]}`)
	}
	require.NoError(t, validator.ValidateJSON(report(1)))
	require.NoError(t, validator.ValidateJSON(report(20)))
	require.Error(t, validator.ValidateJSON(report(0)))
	require.Error(t, validator.ValidateJSON(report(21)))
}

func TestGapSchemaRejectsUnknownGapType(t *testing.T) {
	validator, err := competitorSchema.Compile()
	require.NoError(t, err)
	gap := `{"keyword":"a","volume":1,"cpc":1,"competition":0.1,"difficulty":1,"intent":"commercial","source":"x","competitorDomain":"b.com","competitorRank":1,"competitorEtv":0,"gapType":%q}`
	require.NoError(t, validator.ValidateJSON([]byte(`{"summary":"","gaps":[`+strings.Replace(gap, "%q", `"untapped"`, 1)+`]}`)))
	require.Error(t, validator.ValidateJSON([]byte(`{"summary":"","gaps":[`+strings.Replace(gap, "%q", `"maybe"`, 1)+`]}`)))
}

type turnProvider struct {
	mu    sync.Mutex
	turns int
}

func (p *turnProvider) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.turns++
	return llm.Response{ToolCalls: []llm.ToolCall{{ID: "call", Name: tools.ToolExpandKeywords, Arguments: json.RawMessage(`{"keywords":["crm"]}`)}}}, nil
}

func TestRun_ExpanderBudgetStopsBeforeCompetitorTools(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer backend.Close()

	provider := &turnProvider{}
	cfg := validConfig()
	cfg.BaseURL = backend.URL

	_, err := NewPipeline(agent.NewLLMRunner(provider, nil)).Run(context.Background(), cfg)
	var budgetErr agent.TurnBudgetError
	require.ErrorAs(t, err, &budgetErr)
	require.Equal(t, ExpanderAgent, budgetErr.Agent)
	require.Equal(t, expanderMaxTurns, provider.turns)

	require.Len(t, paths, expanderMaxTurns)
	for _, path := range paths {
		require.Equal(t, "/keywords/expand", path)
		require.False(t, strings.HasPrefix(path, "/competitors/"))
	}
}
