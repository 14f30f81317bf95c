// Package research runs the keyword research pipeline: expansion, competitor
// analysis, merge and scoring, then strategy.
package research

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/keywords"
)

type ConfigError struct {
	Field   string
	Message string
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("invalid pipeline config: %s %s", e.Field, e.Message)
}

// Product only shapes the strategist's narrative. It never affects scores.
type Product struct {
	Name         string   `json:"name,omitempty"`
	Description  string   `json:"description,omitempty"`
	TargetBuyer  string   `json:"targetBuyer,omitempty"`
	Integrations []string `json:"integrations,omitempty"`
}

func (p *Product) empty() bool {
	return p == nil || (strings.TrimSpace(p.Name) == "" &&
		strings.TrimSpace(p.Description) == "" &&
		strings.TrimSpace(p.TargetBuyer) == "" &&
		len(p.Integrations) == 0)
}

// PipelineConfig is read-only once a run starts.
type PipelineConfig struct {
	SeedKeywords []string          `json:"seedKeywords"`
	CountryCode  string            `json:"countryCode"`
	Competitors  []string          `json:"competitors"`
	Product      *Product          `json:"product,omitempty"`
	CPCRange     keywords.CPCRange `json:"cpcRange"`
	BaseURL      string            `json:"baseUrl,omitempty"`
}

// Normalize trims list entries, drops blanks, and uppercases the country.
func (c PipelineConfig) Normalize() PipelineConfig {
	out := c
	out.SeedKeywords = trimList(c.SeedKeywords)
	out.Competitors = trimList(c.Competitors)
	out.CountryCode = strings.ToUpper(strings.TrimSpace(c.CountryCode))
	out.BaseURL = strings.TrimSpace(c.BaseURL)
	return out
}

func (c PipelineConfig) Validate() error {
	if len(trimList(c.SeedKeywords)) == 0 {
		return ConfigError{Field: "seedKeywords", Message: "must contain at least one keyword"}
	}
	country := strings.TrimSpace(c.CountryCode)
	if len(country) != 2 || !isLetters(country) {
		return ConfigError{Field: "countryCode", Message: fmt.Sprintf("must be a two-letter country code, got %q", c.CountryCode)}
	}
	if len(trimList(c.Competitors)) == 0 {
		return ConfigError{Field: "competitors", Message: "must contain at least one domain"}
	}
	if c.CPCRange.Min <= 0 {
		return ConfigError{Field: "cpcRange.min", Message: "must be greater than 0"}
	}
	if c.CPCRange.Max <= 0 {
		return ConfigError{Field: "cpcRange.max", Message: "must be greater than 0"}
	}
	if c.CPCRange.Min > c.CPCRange.Max {
		return ConfigError{Field: "cpcRange.min", Message: fmt.Sprintf("must not exceed cpcRange.max (%g > %g)", c.CPCRange.Min, c.CPCRange.Max)}
	}
	base := strings.TrimSpace(c.BaseURL)
	if base == "" {
		return ConfigError{Field: "baseUrl", Message: "is required"}
	}
	parsed, err := url.Parse(base)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return ConfigError{Field: "baseUrl", Message: fmt.Sprintf("must be an absolute http(s) URL, got %q", c.BaseURL)}
	}
	return nil
}

func trimList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func isLetters(value string) bool {
	for _, r := range value {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}
