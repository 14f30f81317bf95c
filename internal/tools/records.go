package tools

import "github.com/Keyring-Network/keyring-keywords/control-plane/internal/keywords"

// ResultVersion is bumped whenever a record shape below changes.
const ResultVersion = 1

// Result is the envelope every adapter returns. Count is the number of
// records in Results; Total is what the backend sent before capping.
type Result[T any] struct {
	Version   int      `json:"version"`
	Tool      string   `json:"tool"`
	Count     int      `json:"count"`
	Total     int      `json:"total"`
	Truncated bool     `json:"truncated"`
	Degraded  []string `json:"degraded,omitempty"`
	Results   []T      `json:"results"`
}

func newResult[T any](tool string, records []T, limit int) Result[T] {
	total := len(records)
	truncated := false
	if limit > 0 && total > limit {
		records = records[:limit]
		truncated = true
	}
	if records == nil {
		records = []T{}
	}
	return Result[T]{
		Version:   ResultVersion,
		Tool:      tool,
		Count:     len(records),
		Total:     total,
		Truncated: truncated,
		Results:   records,
	}
}

// KeywordMetrics is the metric block shared by every keyword-bearing record.
type KeywordMetrics struct {
	Keyword     string          `json:"keyword"`
	Volume      int             `json:"volume"`
	CPC         float64         `json:"cpc"`
	Competition float64         `json:"competition"`
	Difficulty  int             `json:"difficulty"`
	Intent      keywords.Intent `json:"intent,omitempty"`
}

// Raw converts the metrics into a RawKeyword tagged with source.
func (m KeywordMetrics) Raw(source string) keywords.RawKeyword {
	return keywords.RawKeyword{
		Keyword:     m.Keyword,
		Volume:      m.Volume,
		CPC:         m.CPC,
		Competition: m.Competition,
		Difficulty:  m.Difficulty,
		Intent:      m.Intent,
		Source:      source,
	}
}

type SuggestionRecord struct {
	KeywordMetrics
}

type LabsKeywordRecord struct {
	KeywordMetrics
	Seed string `json:"seed,omitempty"`
}

type RelatedKeywordRecord struct {
	KeywordMetrics
	Seed  string `json:"seed,omitempty"`
	Depth int    `json:"depth,omitempty"`
}

type VolumeRecord struct {
	KeywordMetrics
	LowTopOfPageBid  float64 `json:"lowTopOfPageBid,omitempty"`
	HighTopOfPageBid float64 `json:"highTopOfPageBid,omitempty"`
}

type RankedKeywordRecord struct {
	KeywordMetrics
	Position int     `json:"position"`
	Etv      float64 `json:"etv"`
	URL      string  `json:"url,omitempty"`
}

type IntersectionRecord struct {
	KeywordMetrics
	Target1Position int `json:"target1Position,omitempty"`
	Target2Position int `json:"target2Position,omitempty"`
}

type PaidKeywordRecord struct {
	KeywordMetrics
	Position int     `json:"position,omitempty"`
	Etv      float64 `json:"etv,omitempty"`
}

type TrafficProjectionRecord struct {
	Keyword     string  `json:"keyword"`
	Impressions float64 `json:"impressions"`
	Clicks      float64 `json:"clicks"`
	Cost        float64 `json:"cost"`
	CTR         float64 `json:"ctr"`
	AverageCPC  float64 `json:"averageCpc"`
}

// GapCandidate is an organic keyword of a competitor that the competitor is
// not bidding on.
type GapCandidate struct {
	KeywordMetrics
	CompetitorDomain string  `json:"competitorDomain"`
	CompetitorRank   int     `json:"competitorRank"`
	CompetitorEtv    float64 `json:"competitorEtv"`
}
