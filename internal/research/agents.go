package research

import (
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/agent"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/keywords"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/schema"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/tools"
)

const (
	ExpanderAgent   = "keyword-expander"
	CompetitorAgent = "competitor-analyst"
	StrategistAgent = "strategist"
)

const (
	expanderMaxTurns   = 15
	competitorMaxTurns = 20
	strategistMaxTurns = 8
)

type ExpansionOutput struct {
	AllKeywords []keywords.RawKeyword `json:"allKeywords"`
	Summary     string                `json:"summary"`
}

type CompetitorOutput struct {
	Gaps    []keywords.KeywordGap `json:"gaps"`
	Summary string                `json:"summary"`
}

type KeywordPick struct {
	Keyword       string `json:"keyword" jsonschema:"minLength=1"`
	Justification string `json:"justification" jsonschema:"minLength=1"`
}

type StrategyOutput struct {
	TopPicks                 []KeywordPick `json:"topPicks" jsonschema:"minItems=1,maxItems=20"`
	RecommendedMonthlyBudget float64       `json:"recommendedMonthlyBudget" jsonschema:"minimum=0"`
	BudgetRationale          string        `json:"budgetRationale"`
	MarketOpportunity        string        `json:"marketOpportunity"`
	NextSteps                []string      `json:"nextSteps" jsonschema:"minItems=3,maxItems=5"`
}

var (
	expansionSchema  = schema.MustReflect(&ExpansionOutput{})
	competitorSchema = schema.MustReflect(&CompetitorOutput{})
	strategySchema   = schema.MustReflect(&StrategyOutput{})
)

var ExpanderSpec = agent.Spec{
	Name: ExpanderAgent,
	Instructions: `You are a PPC keyword researcher. Expand the seed keywords into a broad candidate list.
You must call all three expansion tools:
- expand_keywords once with every seed together.
- labs_keyword_suggestions once per seed (labs_suggestions_for_seeds does this for all seeds in one call).
- labs_related_keywords once per seed.
Use get_search_volume to fill in metrics for keywords returned without volume or cpc.
Deduplicate your findings before answering. Set source to the tool family that produced each keyword: "google" for expand_keywords, "labs" for suggestions, "related" for related queries.
Intent must be one of transactional, commercial, informational or navigational.
Finish with a one-paragraph summary of what you found.`,
	Tools: []string{
		tools.ToolExpandKeywords,
		tools.ToolLabsSuggestions,
		tools.ToolLabsSuggestionsBatch,
		tools.ToolLabsRelated,
		tools.ToolSearchVolume,
	},
	Output:   expansionSchema,
	MaxTurns: expanderMaxTurns,
}

var CompetitorSpec = agent.Spec{
	Name: CompetitorAgent,
	Instructions: `You are a competitive PPC analyst. For every competitor domain, fetch its organic keywords and its paid keywords, then keep the organic keywords it is not bidding on. These are gaps.
find_competitor_gaps computes this for all domains in parallel; get_competitor_keywords and get_competitor_paid_keywords give you the raw lists.
Also call get_domain_intersection on the first two competitor domains to find keywords several competitors rank for while competition stays moderate.
Classify every gap as exactly one gapType:
- organic-only: the competitor ranks organically and does not bid.
- low-competition-high-intent: competition below 0.3 with transactional or commercial intent.
- untapped: no competitor bids and competition is minimal.
Sort gaps by opportunity: high volume, low competition and buyer intent first.
Finish with a one-paragraph summary.`,
	Tools: []string{
		tools.ToolFindCompetitorGaps,
		tools.ToolCompetitorKeywords,
		tools.ToolCompetitorPaid,
		tools.ToolDomainIntersection,
	},
	Output:   competitorSchema,
	MaxTurns: competitorMaxTurns,
}

var StrategistSpec = agent.Spec{
	Name: StrategistAgent,
	Instructions: `You are a PPC strategist. You receive already-scored keywords and competitor gaps as tables.
Pick up to 20 keywords to launch with. Each justification is one sentence that cites the keyword's numbers (volume, cpc, competition, score or tier).
You may call get_ad_traffic_projection to size the budget.
Recommend a monthly budget in the campaign currency and explain it.
Write a market-opportunity paragraph and 3 to 5 concrete next steps.`,
	Tools:    []string{tools.ToolTrafficProjection},
	Output:   strategySchema,
	MaxTurns: strategistMaxTurns,
}
