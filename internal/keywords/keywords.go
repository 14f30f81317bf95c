// Package keywords holds the keyword data model together with the scoring
// and merge engines. Nothing in this package performs I/O.
package keywords

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Intent string

const (
	IntentTransactional Intent = "transactional"
	IntentCommercial    Intent = "commercial"
	IntentInformational Intent = "informational"
	IntentNavigational  Intent = "navigational"
)

// NormalizeIntent lowercases and trims an intent label. Unknown labels are
// kept as-is; scoring treats them with the informational weight.
func NormalizeIntent(raw string) Intent {
	return Intent(strings.ToLower(strings.TrimSpace(raw)))
}

func (i Intent) buyer() bool {
	switch NormalizeIntent(string(i)) {
	case IntentTransactional, IntentCommercial:
		return true
	}
	return false
}

type Tier string

const (
	TierSweetSpot   Tier = "sweet-spot"
	TierHighValue   Tier = "high-value"
	TierMonitor     Tier = "monitor"
	TierLowPriority Tier = "low-priority"
)

// Tiers lists every tier in classification priority order.
var Tiers = []Tier{TierSweetSpot, TierHighValue, TierMonitor, TierLowPriority}

type GapType string

const (
	GapOrganicOnly    GapType = "organic-only"
	GapLowCompetition GapType = "low-competition-high-intent"
	GapUntapped       GapType = "untapped"
)

const (
	gapSourcePrefix  = "gap:"
	defaultGapSource = "gap:unknown"
)

// RawKeyword is one keyword's metrics as reported by a single data source.
type RawKeyword struct {
	Keyword     string  `json:"keyword" jsonschema:"minLength=1"`
	Volume      int     `json:"volume" jsonschema:"minimum=0"`
	CPC         float64 `json:"cpc" jsonschema:"minimum=0"`
	Competition float64 `json:"competition"`
	Difficulty  int     `json:"difficulty"`
	Intent      Intent  `json:"intent"`
	Source      string  `json:"source"`
}

// KeywordGap is a keyword a competitor ranks for organically, annotated with
// that competitor's position and traffic value.
type KeywordGap struct {
	RawKeyword
	CompetitorDomain string  `json:"competitorDomain" jsonschema:"minLength=1"`
	CompetitorRank   int     `json:"competitorRank" jsonschema:"minimum=1"`
	CompetitorEtv    float64 `json:"competitorEtv" jsonschema:"minimum=0"`
	GapType          GapType `json:"gapType" jsonschema:"enum=organic-only,enum=low-competition-high-intent,enum=untapped"`
}

// AsRawKeyword projects a gap into the RawKeyword shape used by Merge. The
// source is always tagged with the competitor domain.
func (g KeywordGap) AsRawKeyword() RawKeyword {
	raw := g.RawKeyword
	domain := strings.TrimSpace(g.CompetitorDomain)
	if domain == "" {
		raw.Source = defaultGapSource
	} else {
		raw.Source = gapSourcePrefix + domain
	}
	return raw
}

type ScoreBreakdown struct {
	Volume           float64 `json:"volumeScore"`
	Intent           float64 `json:"intentScore"`
	Competition      float64 `json:"competitionScore"`
	CPCAffordability float64 `json:"cpcAffordabilityScore"`
}

type ScoredKeyword struct {
	RawKeyword
	Score          float64        `json:"score"`
	ScoreBreakdown ScoreBreakdown `json:"scoreBreakdown"`
	Tier           Tier           `json:"tier"`
	// Sources lists every provenance tag that reported this keyword, survivor first.
	Sources []string `json:"sources,omitempty"`
}

// CPCRange is the inclusive cost-per-click band considered affordable.
type CPCRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (r CPCRange) Contains(cpc float64) bool {
	return cpc >= r.Min && cpc <= r.Max
}

// Round2 rounds half away from zero to two decimal places.
func Round2(value float64) float64 {
	return decimal.NewFromFloat(value).Round(2).InexactFloat64()
}

// MeanCPC returns the arithmetic mean CPC rounded to two decimals, or zero
// for an empty list.
func MeanCPC(items []ScoredKeyword) float64 {
	if len(items) == 0 {
		return 0
	}
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(decimal.NewFromFloat(item.CPC))
	}
	return total.Div(decimal.NewFromInt(int64(len(items)))).Round(2).InexactFloat64()
}
