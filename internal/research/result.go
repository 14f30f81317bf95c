package research

import (
	"time"

	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/keywords"
)

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

type Summary struct {
	TotalKeywords     int                   `json:"totalKeywords"`
	SweetSpotCount    int                   `json:"sweetSpotCount"`
	HighValueCount    int                   `json:"highValueCount"`
	TierCounts        map[keywords.Tier]int `json:"tierCounts"`
	AverageCPC        float64               `json:"averageCpc"`
	TopKeyword        string                `json:"topKeyword"`
	GapCount          int                   `json:"gapCount"`
	MarketOpportunity string                `json:"marketOpportunity"`
}

type Metadata struct {
	Country      string   `json:"country"`
	SeedKeywords []string `json:"seedKeywords"`
	Competitors  []string `json:"competitors"`
	Timestamp    string   `json:"timestamp"`
	DurationMs   int64    `json:"durationMs"`
}

type PipelineResult struct {
	Keywords []keywords.ScoredKeyword `json:"keywords"`
	Gaps     []keywords.KeywordGap    `json:"gaps"`
	Summary  Summary                  `json:"summary"`
	Strategy StrategyOutput           `json:"strategy"`
	Metadata Metadata                 `json:"metadata"`
	Trace    []string                 `json:"trace"`
}

// Rank merges expansion keywords with gaps projected to RawKeyword, scores
// every unique keyword, and sorts by score descending.
func Rank(expansion ExpansionOutput, competitors CompetitorOutput, cpcRange keywords.CPCRange) []keywords.ScoredKeyword {
	projected := make([]keywords.RawKeyword, 0, len(competitors.Gaps))
	for _, gap := range competitors.Gaps {
		projected = append(projected, gap.AsRawKeyword())
	}
	return keywords.Rank(keywords.Merge(expansion.AllKeywords, projected), cpcRange)
}

// Assemble builds the final result. finished is also the result timestamp.
func Assemble(cfg PipelineConfig, ranked []keywords.ScoredKeyword, gaps []keywords.KeywordGap, strategy StrategyOutput, started time.Time, finished time.Time, trace []string) PipelineResult {
	if ranked == nil {
		ranked = []keywords.ScoredKeyword{}
	}
	if gaps == nil {
		gaps = []keywords.KeywordGap{}
	}
	tiers := keywords.CountTiers(ranked)
	summary := Summary{
		TotalKeywords:     len(ranked),
		SweetSpotCount:    tiers[keywords.TierSweetSpot],
		HighValueCount:    tiers[keywords.TierHighValue],
		TierCounts:        tiers,
		AverageCPC:        keywords.MeanCPC(ranked),
		GapCount:          len(gaps),
		MarketOpportunity: strategy.MarketOpportunity,
	}
	if len(ranked) > 0 {
		summary.TopKeyword = ranked[0].Keyword
	}
	return PipelineResult{
		Keywords: ranked,
		Gaps:     gaps,
		Summary:  summary,
		Strategy: strategy,
		Metadata: Metadata{
			Country:      cfg.CountryCode,
			SeedKeywords: append([]string{}, cfg.SeedKeywords...),
			Competitors:  append([]string{}, cfg.Competitors...),
			Timestamp:    finished.UTC().Format(timestampLayout),
			DurationMs:   finished.Sub(started).Milliseconds(),
		},
		Trace: append([]string{}, trace...),
	}
}
