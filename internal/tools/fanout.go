package tools

import (
	"context"

	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/keywords"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/metrics"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/taskgroup"
)

const (
	defaultFanoutLimit = 4
	fanoutResultCap    = 200
)

// LabsSuggestionsForSeeds runs one labs suggestion call per seed in parallel.
// A seed whose call fails contributes no records and is listed in Degraded.
func (c *Client) LabsSuggestionsForSeeds(ctx context.Context, seeds []string, country string, limit int) (Result[LabsKeywordRecord], error) {
	seeds = cleanKeywords(seeds, maxExpandKeywords)
	if len(seeds) == 0 {
		return Result[LabsKeywordRecord]{}, &InputError{Tool: ToolLabsSuggestionsBatch, Message: "at least one keyword is required"}
	}
	outcomes := taskgroup.Collect(ctx, seeds, c.fanoutLimit, func(ctx context.Context, seed string) ([]LabsKeywordRecord, error) {
		result, err := c.LabsKeywordSuggestions(ctx, seed, country, limit)
		if err != nil {
			return nil, err
		}
		return result.Results, nil
	})

	var records []LabsKeywordRecord
	var degraded []string
	for _, outcome := range outcomes {
		if outcome.Recovered() {
			degraded = append(degraded, seeds[outcome.Index])
			c.degrade(ToolLabsSuggestionsBatch, seeds[outcome.Index], outcome.Err)
			continue
		}
		records = append(records, outcome.Value...)
	}
	result := newResult(ToolLabsSuggestionsBatch, records, fanoutResultCap)
	result.Degraded = degraded
	return result, nil
}

type gapUnit struct {
	domain string
	paid   bool
}

type gapUnitResult struct {
	organic []RankedKeywordRecord
	paid    []PaidKeywordRecord
}

// FindCompetitorGaps fetches organic and paid keywords for every domain in
// parallel and keeps the organic keywords each domain does not bid on. If
// either call for a domain fails, that domain contributes no gaps.
func (c *Client) FindCompetitorGaps(ctx context.Context, domains []string, country string, limit int) (Result[GapCandidate], error) {
	cleaned := make([]string, 0, len(domains))
	seen := map[string]struct{}{}
	for _, domain := range domains {
		domain = normalizeDomain(domain)
		if domain == "" {
			continue
		}
		if _, ok := seen[domain]; ok {
			continue
		}
		seen[domain] = struct{}{}
		cleaned = append(cleaned, domain)
	}
	if len(cleaned) == 0 {
		return Result[GapCandidate]{}, &InputError{Tool: ToolFindCompetitorGaps, Message: "at least one domain is required"}
	}

	units := make([]gapUnit, 0, len(cleaned)*2)
	for _, domain := range cleaned {
		units = append(units, gapUnit{domain: domain}, gapUnit{domain: domain, paid: true})
	}
	outcomes := taskgroup.Collect(ctx, units, c.fanoutLimit, func(ctx context.Context, unit gapUnit) (gapUnitResult, error) {
		if unit.paid {
			result, err := c.CompetitorPaidKeywords(ctx, unit.domain, country)
			return gapUnitResult{paid: result.Results}, err
		}
		result, err := c.CompetitorKeywords(ctx, unit.domain, country, limit)
		return gapUnitResult{organic: result.Results}, err
	})

	var gaps []GapCandidate
	var degraded []string
	for i, domain := range cleaned {
		organic, paid := outcomes[2*i], outcomes[2*i+1]
		if organic.Recovered() || paid.Recovered() {
			degraded = append(degraded, domain)
			for _, outcome := range []taskgroup.Outcome[gapUnitResult]{organic, paid} {
				if outcome.Recovered() {
					c.degrade(ToolFindCompetitorGaps, domain, outcome.Err)
				}
			}
			continue
		}
		gaps = append(gaps, domainGaps(domain, organic.Value.organic, paid.Value.paid)...)
	}
	result := newResult(ToolFindCompetitorGaps, gaps, fanoutResultCap)
	result.Degraded = degraded
	return result, nil
}

// domainGaps is organic minus paid by normalized keyword, in organic order.
func domainGaps(domain string, organic []RankedKeywordRecord, paid []PaidKeywordRecord) []GapCandidate {
	bidding := make(map[string]struct{}, len(paid))
	for _, record := range paid {
		bidding[keywords.NormalizeKeyword(record.Keyword)] = struct{}{}
	}
	emitted := map[string]struct{}{}
	gaps := make([]GapCandidate, 0, len(organic))
	for _, record := range organic {
		key := keywords.NormalizeKeyword(record.Keyword)
		if key == "" {
			continue
		}
		if _, ok := bidding[key]; ok {
			continue
		}
		if _, ok := emitted[key]; ok {
			continue
		}
		emitted[key] = struct{}{}
		gaps = append(gaps, GapCandidate{
			KeywordMetrics:   record.KeywordMetrics,
			CompetitorDomain: domain,
			CompetitorRank:   record.Position,
			CompetitorEtv:    record.Etv,
		})
	}
	return gaps
}

func (c *Client) degrade(tool string, item string, err error) {
	metrics.FanoutDegraded.WithLabelValues(tool).Inc()
	c.logger.Warn("fan-out unit degraded to empty result", "tool", tool, "item", item, "error", err)
}
