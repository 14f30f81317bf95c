package research

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/agent"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/keywords"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/metrics"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/tools"
)

type Pipeline struct {
	runner        agent.Runner
	logger        *slog.Logger
	reporter      Reporter
	now           func() time.Time
	clientOptions tools.Options
}

type Option func(*Pipeline)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithReporter(reporter Reporter) Option {
	return func(p *Pipeline) {
		p.reporter = reporter
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// WithClientOptions sets the data backend client template. BaseURL and
// DefaultCountry are always taken from the run's PipelineConfig.
func WithClientOptions(opts tools.Options) Option {
	return func(p *Pipeline) {
		p.clientOptions = opts
	}
}

func NewPipeline(runner agent.Runner, opts ...Option) *Pipeline {
	p := &Pipeline{
		runner: runner,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the four steps in order. Configuration errors are returned
// before any agent is invoked; stage errors are returned unchanged.
func (p *Pipeline) Run(ctx context.Context, cfg PipelineConfig) (result *PipelineResult, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.Normalize()
	started := p.now()
	defer func() {
		metrics.RecordPipeline(started, err)
	}()
	logger := p.logger.With("country", cfg.CountryCode)
	var trace []string

	trace = append(trace, p.progress(ctx, 1, ExpandMessage(cfg)))
	expansion, err := p.Expand(ctx, cfg)
	if err != nil {
		logger.Error("keyword expansion failed", "error", err)
		return nil, err
	}

	trace = append(trace, p.progress(ctx, 2, CompetitorMessage(cfg)))
	competitors, err := p.AnalyzeCompetitors(ctx, cfg)
	if err != nil {
		logger.Error("competitor analysis failed", "error", err)
		return nil, err
	}

	trace = append(trace, p.progress(ctx, 3, RankMessage(expansion, competitors)))
	ranked := Rank(expansion, competitors, cfg.CPCRange)
	for tier, count := range keywords.CountTiers(ranked) {
		metrics.ScoredKeywordsTotal.WithLabelValues(string(tier)).Add(float64(count))
	}

	trace = append(trace, p.progress(ctx, 4, StrategyMessage(len(ranked), len(competitors.Gaps))))
	strategy, err := p.Strategize(ctx, cfg, ranked, competitors.Gaps)
	if err != nil {
		logger.Error("strategy failed", "error", err)
		return nil, err
	}

	assembled := Assemble(cfg, ranked, competitors.Gaps, strategy, started, p.now(), trace)
	logger.Info("keyword research completed",
		"keywords", assembled.Summary.TotalKeywords,
		"gaps", assembled.Summary.GapCount,
		"sweet_spot", assembled.Summary.SweetSpotCount,
		"duration_ms", assembled.Metadata.DurationMs,
	)
	return &assembled, nil
}

func (p *Pipeline) Expand(ctx context.Context, cfg PipelineConfig) (ExpansionOutput, error) {
	var out ExpansionOutput
	if err := p.runAgent(ctx, ExpanderSpec, expansionPrompt(cfg), cfg, &out); err != nil {
		return ExpansionOutput{}, err
	}
	return out, nil
}

func (p *Pipeline) AnalyzeCompetitors(ctx context.Context, cfg PipelineConfig) (CompetitorOutput, error) {
	var out CompetitorOutput
	if err := p.runAgent(ctx, CompetitorSpec, competitorPrompt(cfg), cfg, &out); err != nil {
		return CompetitorOutput{}, err
	}
	return out, nil
}

// Strategize hands the strategist the top keywords and gaps in its prompt.
func (p *Pipeline) Strategize(ctx context.Context, cfg PipelineConfig, ranked []keywords.ScoredKeyword, gaps []keywords.KeywordGap) (StrategyOutput, error) {
	var out StrategyOutput
	if err := p.runAgent(ctx, StrategistSpec, strategyPrompt(cfg, ranked, gaps), cfg, &out); err != nil {
		return StrategyOutput{}, err
	}
	return out, nil
}

func (p *Pipeline) runAgent(ctx context.Context, spec agent.Spec, prompt string, cfg PipelineConfig, out any) error {
	raw, err := p.runner.Run(ctx, spec, prompt, p.toolbox(cfg))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return agent.SchemaValidationError{Agent: spec.Name, Detail: fmt.Sprintf("decode output: %v", err)}
	}
	return nil
}

func (p *Pipeline) toolbox(cfg PipelineConfig) *tools.Toolbox {
	opts := p.clientOptions
	opts.BaseURL = cfg.BaseURL
	opts.DefaultCountry = cfg.CountryCode
	if opts.Logger == nil {
		opts.Logger = p.logger
	}
	return tools.NewToolbox(tools.NewClient(opts), cfg.CountryCode, p.logger)
}

func (p *Pipeline) progress(ctx context.Context, step int, message string) string {
	event := ProgressEvent{Step: step, Total: TotalSteps, Message: message, Time: p.now()}
	line := event.Line()
	p.logger.Info(line)
	if p.reporter != nil {
		p.reporter.Report(ctx, event)
	}
	return line
}
