package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/llm"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/schema"
)

type keywordListArgs struct {
	Keywords    []string `json:"keywords" jsonschema:"minItems=1,description=Keywords to look up"`
	CountryCode string   `json:"countryCode,omitempty" jsonschema:"description=ISO 3166 country code. Defaults to the research market"`
}

type seedArgs struct {
	Keyword     string `json:"keyword" jsonschema:"minLength=1"`
	CountryCode string `json:"countryCode,omitempty"`
	Limit       int    `json:"limit,omitempty" jsonschema:"minimum=1,maximum=1000"`
}

type relatedArgs struct {
	Keyword     string `json:"keyword" jsonschema:"minLength=1"`
	CountryCode string `json:"countryCode,omitempty"`
	Depth       int    `json:"depth,omitempty" jsonschema:"minimum=1,maximum=4"`
	Limit       int    `json:"limit,omitempty" jsonschema:"minimum=1,maximum=1000"`
}

type domainArgs struct {
	Domain      string `json:"domain" jsonschema:"minLength=1"`
	CountryCode string `json:"countryCode,omitempty"`
	Limit       int    `json:"limit,omitempty" jsonschema:"minimum=1,maximum=1000"`
}

type paidArgs struct {
	Domain      string `json:"domain" jsonschema:"minLength=1"`
	CountryCode string `json:"countryCode,omitempty"`
}

type intersectionArgs struct {
	DomainA     string `json:"domainA" jsonschema:"minLength=1"`
	DomainB     string `json:"domainB" jsonschema:"minLength=1"`
	CountryCode string `json:"countryCode,omitempty"`
	FindUnique  bool   `json:"findUnique,omitempty" jsonschema:"description=Return keywords only domainA ranks for instead of shared ones"`
}

type projectionArgs struct {
	Keywords    []string `json:"keywords" jsonschema:"minItems=1"`
	CountryCode string   `json:"countryCode,omitempty"`
	BidCents    int      `json:"bidCents,omitempty" jsonschema:"minimum=1,description=Max CPC bid in cents. Defaults to 200"`
}

type seedsArgs struct {
	Keywords    []string `json:"keywords" jsonschema:"minItems=1"`
	CountryCode string   `json:"countryCode,omitempty"`
	Limit       int      `json:"limit,omitempty" jsonschema:"minimum=1,maximum=1000"`
}

type domainsArgs struct {
	Domains     []string `json:"domains" jsonschema:"minItems=1"`
	CountryCode string   `json:"countryCode,omitempty"`
	Limit       int      `json:"limit,omitempty" jsonschema:"minimum=1,maximum=1000"`
}

type tool struct {
	definition llm.ToolDefinition
	handle     func(ctx context.Context, args json.RawMessage) (any, error)
}

// Toolbox exposes the adapters as LLM tools bound to one research market.
type Toolbox struct {
	client  *Client
	country string
	logger  *slog.Logger
	tools   map[string]tool
}

func NewToolbox(client *Client, country string, logger *slog.Logger) *Toolbox {
	if logger == nil {
		logger = slog.Default()
	}
	box := &Toolbox{
		client:  client,
		country: strings.ToUpper(strings.TrimSpace(country)),
		logger:  logger,
		tools:   map[string]tool{},
	}

	register(box, ToolExpandKeywords,
		"Paid-search keyword suggestions for up to 20 seed keywords in one call. Extra keywords are dropped.",
		func(ctx context.Context, args keywordListArgs) (any, error) {
			return client.ExpandKeywords(ctx, args.Keywords, box.countryFor(args.CountryCode))
		})
	register(box, ToolLabsSuggestions,
		"SERP-derived suggestions for a single seed keyword.",
		func(ctx context.Context, args seedArgs) (any, error) {
			return client.LabsKeywordSuggestions(ctx, args.Keyword, box.countryFor(args.CountryCode), args.Limit)
		})
	register(box, ToolLabsRelated,
		"Laterally related search queries for a single seed keyword. Depth ranges from 1 to 4.",
		func(ctx context.Context, args relatedArgs) (any, error) {
			return client.LabsRelatedKeywords(ctx, args.Keyword, box.countryFor(args.CountryCode), args.Depth, args.Limit)
		})
	register(box, ToolSearchVolume,
		"Volume, CPC and competition for an explicit list of up to 1000 keywords.",
		func(ctx context.Context, args keywordListArgs) (any, error) {
			return client.SearchVolume(ctx, args.Keywords, box.countryFor(args.CountryCode))
		})
	register(box, ToolCompetitorKeywords,
		"Organic keywords a domain ranks for, with position and estimated traffic value.",
		func(ctx context.Context, args domainArgs) (any, error) {
			return client.CompetitorKeywords(ctx, args.Domain, box.countryFor(args.CountryCode), args.Limit)
		})
	register(box, ToolDomainIntersection,
		"Keywords two domains both rank for, or with findUnique the keywords only domainA ranks for.",
		func(ctx context.Context, args intersectionArgs) (any, error) {
			return client.DomainIntersection(ctx, args.DomainA, args.DomainB, box.countryFor(args.CountryCode), args.FindUnique)
		})
	register(box, ToolCompetitorPaid,
		"Keywords a domain is bidding on in paid search.",
		func(ctx context.Context, args paidArgs) (any, error) {
			return client.CompetitorPaidKeywords(ctx, args.Domain, box.countryFor(args.CountryCode))
		})
	register(box, ToolTrafficProjection,
		"Projected impressions, clicks and cost for up to 1000 keywords at a bid.",
		func(ctx context.Context, args projectionArgs) (any, error) {
			return client.TrafficProjection(ctx, args.Keywords, box.countryFor(args.CountryCode), args.BidCents)
		})
	register(box, ToolLabsSuggestionsBatch,
		"Runs labs_keyword_suggestions for every seed in parallel. Seeds that fail are listed under degraded.",
		func(ctx context.Context, args seedsArgs) (any, error) {
			return client.LabsSuggestionsForSeeds(ctx, args.Keywords, box.countryFor(args.CountryCode), args.Limit)
		})
	register(box, ToolFindCompetitorGaps,
		"For every domain fetches organic and paid keywords in parallel and returns organic keywords the domain does not bid on. Domains that fail are listed under degraded.",
		func(ctx context.Context, args domainsArgs) (any, error) {
			return client.FindCompetitorGaps(ctx, args.Domains, box.countryFor(args.CountryCode), args.Limit)
		})
	return box
}

func register[A any](box *Toolbox, name string, description string, fn func(ctx context.Context, args A) (any, error)) {
	box.tools[name] = tool{
		definition: llm.ToolDefinition{
			Name:        name,
			Description: description,
			Parameters:  schema.MustReflect(new(A)),
		},
		handle: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var args A
			trimmed := strings.TrimSpace(string(raw))
			if trimmed != "" && trimmed != "null" {
				if err := json.Unmarshal(raw, &args); err != nil {
					return nil, fmt.Errorf("invalid arguments for %s: %w", name, err)
				}
			}
			return fn(ctx, args)
		},
	}
}

func (t *Toolbox) countryFor(country string) string {
	if strings.TrimSpace(country) != "" {
		return country
	}
	return t.country
}

// Names lists every registered tool, sorted.
func (t *Toolbox) Names() []string {
	names := make([]string, 0, len(t.tools))
	for name := range t.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the definitions for the named tools in the given
// order. Unknown names are skipped.
func (t *Toolbox) Definitions(names ...string) []llm.ToolDefinition {
	definitions := make([]llm.ToolDefinition, 0, len(names))
	for _, name := range names {
		if registered, ok := t.tools[name]; ok {
			definitions = append(definitions, registered.definition)
		}
	}
	return definitions
}

// Execute runs one tool and returns its result envelope as JSON text.
func (t *Toolbox) Execute(ctx context.Context, name string, args json.RawMessage) (string, error) {
	registered, ok := t.tools[name]
	if !ok {
		return "", fmt.Errorf("unknown tool %q", name)
	}
	result, err := registered.handle(ctx, args)
	if err != nil {
		t.logger.Debug("tool call failed", "tool", name, "error", err)
		return "", err
	}
	encoded, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s result: %w", name, err)
	}
	return string(encoded), nil
}
