package tools

import (
	"context"
	"strings"
)

// ExpandKeywords returns paid-search suggestions for up to 20 seeds at once.
func (c *Client) ExpandKeywords(ctx context.Context, seeds []string, country string) (Result[SuggestionRecord], error) {
	seeds = cleanKeywords(seeds, maxExpandKeywords)
	if len(seeds) == 0 {
		return Result[SuggestionRecord]{}, &InputError{Tool: ToolExpandKeywords, Message: "at least one keyword is required"}
	}
	return post[SuggestionRecord](ctx, c, ToolExpandKeywords, "/keywords/expand", backendRequest{
		Keywords:    seeds,
		CountryCode: country,
	}, expandResultCap)
}

func (c *Client) LabsKeywordSuggestions(ctx context.Context, seed string, country string, limit int) (Result[LabsKeywordRecord], error) {
	seed = strings.TrimSpace(seed)
	if seed == "" {
		return Result[LabsKeywordRecord]{}, &InputError{Tool: ToolLabsSuggestions, Message: "keyword is required"}
	}
	result, err := post[LabsKeywordRecord](ctx, c, ToolLabsSuggestions, "/labs/keyword-suggestions", backendRequest{
		Keyword:     seed,
		CountryCode: country,
		Options:     map[string]any{"limit": clampLimit(limit, labsResultCap)},
	}, labsResultCap)
	if err != nil {
		return result, err
	}
	for i := range result.Results {
		if result.Results[i].Seed == "" {
			result.Results[i].Seed = seed
		}
	}
	return result, nil
}

func (c *Client) LabsRelatedKeywords(ctx context.Context, seed string, country string, depth int, limit int) (Result[RelatedKeywordRecord], error) {
	seed = strings.TrimSpace(seed)
	if seed == "" {
		return Result[RelatedKeywordRecord]{}, &InputError{Tool: ToolLabsRelated, Message: "keyword is required"}
	}
	result, err := post[RelatedKeywordRecord](ctx, c, ToolLabsRelated, "/labs/related-keywords", backendRequest{
		Keyword:     seed,
		CountryCode: country,
		Options: map[string]any{
			"depth": clampDepth(depth),
			"limit": clampLimit(limit, relatedResultCap),
		},
	}, relatedResultCap)
	if err != nil {
		return result, err
	}
	for i := range result.Results {
		if result.Results[i].Seed == "" {
			result.Results[i].Seed = seed
		}
	}
	return result, nil
}

// SearchVolume enriches an explicit keyword list with metrics. At most 1000
// keywords are sent; the rest are dropped in call order.
func (c *Client) SearchVolume(ctx context.Context, items []string, country string) (Result[VolumeRecord], error) {
	items = cleanKeywords(items, maxVolumeKeywords)
	if len(items) == 0 {
		return Result[VolumeRecord]{}, &InputError{Tool: ToolSearchVolume, Message: "at least one keyword is required"}
	}
	return post[VolumeRecord](ctx, c, ToolSearchVolume, "/keywords/search-volume", backendRequest{
		Keywords:    items,
		CountryCode: country,
	}, volumeResultCap)
}

func (c *Client) CompetitorKeywords(ctx context.Context, domain string, country string, limit int) (Result[RankedKeywordRecord], error) {
	domain = normalizeDomain(domain)
	if domain == "" {
		return Result[RankedKeywordRecord]{}, &InputError{Tool: ToolCompetitorKeywords, Message: "domain is required"}
	}
	return post[RankedKeywordRecord](ctx, c, ToolCompetitorKeywords, "/competitors/ranked-keywords", backendRequest{
		Target:      domain,
		CountryCode: country,
		Options:     map[string]any{"limit": clampLimit(limit, competitorResultCap)},
	}, competitorResultCap)
}

// DomainIntersection returns keywords both domains rank for, or with
// findUnique the keywords only domainA ranks for.
func (c *Client) DomainIntersection(ctx context.Context, domainA string, domainB string, country string, findUnique bool) (Result[IntersectionRecord], error) {
	domainA = normalizeDomain(domainA)
	domainB = normalizeDomain(domainB)
	if domainA == "" || domainB == "" {
		return Result[IntersectionRecord]{}, &InputError{Tool: ToolDomainIntersection, Message: "two domains are required"}
	}
	return post[IntersectionRecord](ctx, c, ToolDomainIntersection, "/competitors/intersection", backendRequest{
		Target1:     domainA,
		Target2:     domainB,
		CountryCode: country,
		Options:     map[string]any{"findUnique": findUnique},
	}, intersectionResultCap)
}

func (c *Client) CompetitorPaidKeywords(ctx context.Context, domain string, country string) (Result[PaidKeywordRecord], error) {
	domain = normalizeDomain(domain)
	if domain == "" {
		return Result[PaidKeywordRecord]{}, &InputError{Tool: ToolCompetitorPaid, Message: "domain is required"}
	}
	return post[PaidKeywordRecord](ctx, c, ToolCompetitorPaid, "/competitors/paid-keywords", backendRequest{
		Target:      domain,
		CountryCode: country,
	}, paidResultCap)
}

// TrafficProjection estimates impressions, clicks and cost at a bid. A
// non-positive bid uses the default of 200 cents.
func (c *Client) TrafficProjection(ctx context.Context, items []string, country string, bidCents int) (Result[TrafficProjectionRecord], error) {
	items = cleanKeywords(items, maxProjectionKeywords)
	if len(items) == 0 {
		return Result[TrafficProjectionRecord]{}, &InputError{Tool: ToolTrafficProjection, Message: "at least one keyword is required"}
	}
	if bidCents <= 0 {
		bidCents = defaultBidCents
	}
	return post[TrafficProjectionRecord](ctx, c, ToolTrafficProjection, "/traffic/projection", backendRequest{
		Keywords:    items,
		CountryCode: country,
		Options:     map[string]any{"bidCents": bidCents},
	}, projectionResultCap)
}

func normalizeDomain(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	domain = strings.TrimPrefix(domain, "www.")
	return strings.TrimRight(domain, "/")
}
