package workflows

import (
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/research"
)

// ResearchWorkflow runs the four research steps for one run. Agent stages
// run as activities without retries; merge and scoring run inline.
func ResearchWorkflow(ctx workflow.Context, input ResearchInput) (ResearchOutput, error) {
	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 20 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)
	logger := workflow.GetLogger(ctx)

	fail := func(stage string, err error) (ResearchOutput, error) {
		logger.Error("research stage failed", "stage", stage, "error", err)
		failureInput := RunFailureInput{RunID: input.RunID, Error: failureMessage(err)}
		if failureErr := workflow.ExecuteActivity(ctx, ActivityHandleRunFailure, failureInput).Get(ctx, nil); failureErr != nil {
			logger.Error("failed to persist run failure event", "error", failureErr)
		}
		return ResearchOutput{RunID: input.RunID, Status: "failed"}, err
	}

	cfg := input.Config
	if err := cfg.Validate(); err != nil {
		return fail("validate", temporal.NewNonRetryableApplicationError(err.Error(), "ConfigError", nil))
	}
	cfg = cfg.Normalize()
	started := workflow.Now(ctx)
	var trace []string

	report := func(step int, message string) {
		event := research.ProgressEvent{Step: step, Total: research.TotalSteps, Message: message, Time: workflow.Now(ctx)}
		trace = append(trace, event.Line())
		if err := workflow.ExecuteActivity(ctx, ActivityReportProgress, ProgressInput{RunID: input.RunID, Event: event}).Get(ctx, nil); err != nil {
			logger.Warn("failed to report progress", "step", step, "error", err)
		}
	}

	stage := StageInput{RunID: input.RunID, Config: cfg}

	report(1, research.ExpandMessage(cfg))
	var expansion research.ExpansionOutput
	if err := workflow.ExecuteActivity(ctx, ActivityExpandKeywords, stage).Get(ctx, &expansion); err != nil {
		return fail("expand", err)
	}

	report(2, research.CompetitorMessage(cfg))
	var competitors research.CompetitorOutput
	if err := workflow.ExecuteActivity(ctx, ActivityAnalyzeCompetitors, stage).Get(ctx, &competitors); err != nil {
		return fail("competitors", err)
	}

	report(3, research.RankMessage(expansion, competitors))
	ranked := research.Rank(expansion, competitors, cfg.CPCRange)

	report(4, research.StrategyMessage(len(ranked), len(competitors.Gaps)))
	var strategy research.StrategyOutput
	strategyInput := StrategyInput{RunID: input.RunID, Config: cfg, Keywords: ranked, Gaps: competitors.Gaps}
	if err := workflow.ExecuteActivity(ctx, ActivityBuildStrategy, strategyInput).Get(ctx, &strategy); err != nil {
		return fail("strategy", err)
	}

	result := research.Assemble(cfg, ranked, competitors.Gaps, strategy, started, workflow.Now(ctx), trace)
	if err := workflow.ExecuteActivity(ctx, ActivityRecordRunResult, RecordResultInput{RunID: input.RunID, Result: result}).Get(ctx, nil); err != nil {
		return fail("record", err)
	}

	logger.Info("research run completed", "run_id", input.RunID, "keywords", result.Summary.TotalKeywords)
	return ResearchOutput{
		RunID:         input.RunID,
		Status:        "completed",
		TotalKeywords: result.Summary.TotalKeywords,
		GapCount:      result.Summary.GapCount,
		TopKeyword:    result.Summary.TopKeyword,
	}, nil
}

// failureMessage unwraps the activity error envelope so the run record keeps
// the message the stage produced.
func failureMessage(err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Error()
	}
	return err.Error()
}
