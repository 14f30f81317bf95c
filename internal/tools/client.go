// Package tools wraps the data-access backend. Every adapter sends one
// request, caps its inputs and outputs, and returns a versioned Result.
package tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/metrics"
)

const (
	ToolExpandKeywords       = "expand_keywords"
	ToolLabsSuggestions      = "labs_keyword_suggestions"
	ToolLabsRelated          = "labs_related_keywords"
	ToolSearchVolume         = "get_search_volume"
	ToolCompetitorKeywords   = "get_competitor_keywords"
	ToolDomainIntersection   = "get_domain_intersection"
	ToolCompetitorPaid       = "get_competitor_paid_keywords"
	ToolTrafficProjection    = "get_ad_traffic_projection"
	ToolLabsSuggestionsBatch = "labs_suggestions_for_seeds"
	ToolFindCompetitorGaps   = "find_competitor_gaps"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultCountry   = "US"
	defaultBidCents  = 200
	maxUpstreamLimit = 1000

	defaultRelatedDepth = 2
	maxRelatedDepth     = 4

	maxExpandKeywords     = 20
	maxVolumeKeywords     = 1000
	maxProjectionKeywords = 1000

	expandResultCap       = 100
	labsResultCap         = 50
	relatedResultCap      = 50
	volumeResultCap       = 100
	competitorResultCap   = 100
	intersectionResultCap = 50
	paidResultCap         = 100
	projectionResultCap   = 50

	errorBodyMaxBytes = 512
)

type Options struct {
	BaseURL           string
	DefaultCountry    string
	Timeout           time.Duration
	RequestsPerSecond float64
	FanoutLimit       int
	HTTPClient        *http.Client
	Logger            *slog.Logger
}

type Client struct {
	http        *resty.Client
	limiter     *rate.Limiter
	country     string
	fanoutLimit int
	logger      *slog.Logger
}

func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	var httpClient *resty.Client
	if opts.HTTPClient != nil {
		httpClient = resty.NewWithClient(opts.HTTPClient)
	} else {
		httpClient = resty.New()
	}
	httpClient.
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetRetryCount(0)

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	country := strings.ToUpper(strings.TrimSpace(opts.DefaultCountry))
	if country == "" {
		country = defaultCountry
	}
	fanoutLimit := opts.FanoutLimit
	if fanoutLimit <= 0 {
		fanoutLimit = defaultFanoutLimit
	}
	return &Client{
		http:        httpClient,
		limiter:     limiter,
		country:     country,
		fanoutLimit: fanoutLimit,
		logger:      logger,
	}
}

type backendRequest struct {
	Keywords    []string       `json:"keywords,omitempty"`
	Keyword     string         `json:"keyword,omitempty"`
	Target      string         `json:"target,omitempty"`
	Target1     string         `json:"target1,omitempty"`
	Target2     string         `json:"target2,omitempty"`
	CountryCode string         `json:"countryCode"`
	Options     map[string]any `json:"options,omitempty"`
}

func (c *Client) countryOrDefault(country string) string {
	country = strings.ToUpper(strings.TrimSpace(country))
	if country == "" {
		return c.country
	}
	return country
}

// post issues one request and decodes {results: [...]}. It never retries.
func post[T any](ctx context.Context, c *Client, tool string, path string, body backendRequest, resultCap int) (result Result[T], err error) {
	started := time.Now()
	defer func() {
		metrics.RecordToolCall(tool, started, err)
		if err == nil && result.Truncated {
			metrics.ToolResultsTruncated.WithLabelValues(tool).Inc()
		}
	}()
	body.CountryCode = c.countryOrDefault(body.CountryCode)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Result[T]{}, &TransportError{Tool: tool, Message: err.Error()}
		}
	}
	resp, err := c.http.R().SetContext(ctx).SetBody(body).Post(path)
	if err != nil {
		return Result[T]{}, &TransportError{Tool: tool, Message: err.Error()}
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return Result[T]{}, &TransportError{
			Tool:       tool,
			StatusCode: resp.StatusCode(),
			Message:    backendErrorMessage(resp),
		}
	}
	var decoded struct {
		Results []T `json:"results"`
	}
	if err := json.Unmarshal(resp.Body(), &decoded); err != nil {
		return Result[T]{}, &TransportError{
			Tool:       tool,
			StatusCode: resp.StatusCode(),
			Message:    "invalid response body: " + err.Error(),
		}
	}
	result = newResult(tool, decoded.Results, resultCap)
	c.logger.Debug("data backend call",
		"tool", tool,
		"count", result.Count,
		"total", result.Total,
		"truncated", result.Truncated,
		"duration", time.Since(started),
	)
	return result, nil
}

func backendErrorMessage(resp *resty.Response) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(resp.Body(), &payload); err == nil && strings.TrimSpace(payload.Error) != "" {
		return strings.TrimSpace(payload.Error)
	}
	text := strings.TrimSpace(string(resp.Body()))
	if text == "" {
		return resp.Status()
	}
	if len(text) > errorBodyMaxBytes {
		text = text[:errorBodyMaxBytes]
	}
	return text
}

// cleanKeywords trims entries, drops blanks, and keeps the first max in call order.
func cleanKeywords(items []string, max int) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}

func clampLimit(limit int, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > maxUpstreamLimit {
		return maxUpstreamLimit
	}
	return limit
}

func clampDepth(depth int) int {
	if depth <= 0 {
		return defaultRelatedDepth
	}
	if depth > maxRelatedDepth {
		return maxRelatedDepth
	}
	return depth
}
