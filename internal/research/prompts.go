package research

import (
	"fmt"
	"strings"

	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/keywords"
)

const (
	strategyKeywordRows = 30
	strategyGapRows     = 20
)

func expansionPrompt(cfg PipelineConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Country: %s\n", cfg.CountryCode)
	b.WriteString("Seed keywords (in priority order):\n")
	for i, seed := range cfg.SeedKeywords {
		fmt.Fprintf(&b, "%d. %s\n", i+1, seed)
	}
	b.WriteString("\nExpand these seeds and return every candidate keyword with its metrics.")
	return b.String()
}

func competitorPrompt(cfg PipelineConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Country: %s\n", cfg.CountryCode)
	b.WriteString("Competitor domains:\n")
	for _, domain := range cfg.Competitors {
		fmt.Fprintf(&b, "- %s\n", domain)
	}
	if len(cfg.Competitors) < 2 {
		b.WriteString("\nOnly one competitor was given, so skip the domain intersection.")
	} else {
		fmt.Fprintf(&b, "\nRun the domain intersection for %s and %s.", cfg.Competitors[0], cfg.Competitors[1])
	}
	b.WriteString("\nFind the keyword gaps and classify each one.")
	return b.String()
}

func strategyPrompt(cfg PipelineConfig, ranked []keywords.ScoredKeyword, gaps []keywords.KeywordGap) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Country: %s\n", cfg.CountryCode)
	fmt.Fprintf(&b, "Target CPC range: %.2f to %.2f\n", cfg.CPCRange.Min, cfg.CPCRange.Max)
	if !cfg.Product.empty() {
		b.WriteString("\nProduct:\n")
		writeField(&b, "Name", cfg.Product.Name)
		writeField(&b, "Description", cfg.Product.Description)
		writeField(&b, "Target buyer", cfg.Product.TargetBuyer)
		writeField(&b, "Integrations", strings.Join(cfg.Product.Integrations, ", "))
	}

	fmt.Fprintf(&b, "\nTop %d scored keywords:\n", min(len(ranked), strategyKeywordRows))
	b.WriteString(KeywordTable(ranked, strategyKeywordRows))
	fmt.Fprintf(&b, "\nTop %d competitor gaps:\n", min(len(gaps), strategyGapRows))
	b.WriteString(GapTable(gaps, strategyGapRows))
	return b.String()
}

func writeField(b *strings.Builder, label string, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, value)
}

// KeywordTable renders the first limit keywords as a plain text table.
func KeywordTable(items []keywords.ScoredKeyword, limit int) string {
	var b strings.Builder
	b.WriteString("| # | keyword | volume | cpc | competition | intent | score | tier |\n")
	b.WriteString("|---|---|---|---|---|---|---|---|\n")
	for i, item := range items {
		if i == limit {
			break
		}
		fmt.Fprintf(&b, "| %d | %s | %d | %.2f | %.2f | %s | %.2f | %s |\n",
			i+1, cell(item.Keyword), item.Volume, item.CPC, item.Competition, intentLabel(item.Intent), item.Score, item.Tier)
	}
	return b.String()
}

// GapTable renders the first limit gaps as a plain text table.
func GapTable(items []keywords.KeywordGap, limit int) string {
	var b strings.Builder
	b.WriteString("| # | keyword | competitor | rank | volume | cpc | competition | gap type |\n")
	b.WriteString("|---|---|---|---|---|---|---|---|\n")
	for i, item := range items {
		if i == limit {
			break
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %d | %d | %.2f | %.2f | %s |\n",
			i+1, cell(item.Keyword), cell(item.CompetitorDomain), item.CompetitorRank, item.Volume, item.CPC, item.Competition, item.GapType)
	}
	return b.String()
}

func cell(value string) string {
	return strings.ReplaceAll(strings.TrimSpace(value), "|", "/")
}

func intentLabel(intent keywords.Intent) string {
	if intent == "" {
		return "unknown"
	}
	return string(intent)
}
