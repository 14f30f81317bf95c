package workflows

import (
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/keywords"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/research"
)

const (
	ActivityReportProgress     = "ReportProgress"
	ActivityExpandKeywords     = "ExpandKeywords"
	ActivityAnalyzeCompetitors = "AnalyzeCompetitors"
	ActivityBuildStrategy      = "BuildStrategy"
	ActivityRecordRunResult    = "RecordRunResult"
	ActivityHandleRunFailure   = "HandleRunFailure"
)

type ResearchInput struct {
	RunID  string
	Config research.PipelineConfig
}

type ResearchOutput struct {
	RunID         string
	Status        string
	TotalKeywords int
	GapCount      int
	TopKeyword    string
}

type ProgressInput struct {
	RunID string
	Event research.ProgressEvent
}

type StageInput struct {
	RunID  string
	Config research.PipelineConfig
}

type StrategyInput struct {
	RunID    string
	Config   research.PipelineConfig
	Keywords []keywords.ScoredKeyword
	Gaps     []keywords.KeywordGap
}

type RecordResultInput struct {
	RunID  string
	Result research.PipelineResult
}

type RunFailureInput struct {
	RunID string
	Error string
}
