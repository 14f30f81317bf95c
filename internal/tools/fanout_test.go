package tools

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFindCompetitorGaps_OrganicMinusPaid(t *testing.T) {
	backend, client := newFakeBackend(t, func(path string, body backendRequest) (int, any) {
		switch {
		case path == "/competitors/ranked-keywords" && body.Target == "bill.com":
			return http.StatusOK, map[string]any{"results": []map[string]any{
				{"keyword": "AP Automation", "volume": 500, "position": 2, "etv": 120.5},
				{"keyword": "invoice approval", "volume": 300, "position": 5, "etv": 40},
				{"keyword": "ap  automation", "volume": 10, "position": 9, "etv": 1},
			}}
		case path == "/competitors/paid-keywords" && body.Target == "bill.com":
			return http.StatusOK, map[string]any{"results": []map[string]any{
				{"keyword": "invoice approval"},
			}}
		case path == "/competitors/ranked-keywords" && body.Target == "tipalti.com":
			return http.StatusOK, map[string]any{"results": []map[string]any{
				{"keyword": "supplier payments", "volume": 800, "position": 1, "etv": 300},
			}}
		case path == "/competitors/paid-keywords" && body.Target == "tipalti.com":
			return http.StatusOK, map[string]any{"results": []any{}}
		}
		return http.StatusNotFound, map[string]any{"error": "unexpected"}
	})

	result, err := client.FindCompetitorGaps(context.Background(), []string{"bill.com", "tipalti.com", "BILL.com"}, "US", 50)
	require.NoError(t, err)
	require.Empty(t, result.Degraded)
	require.Equal(t, ToolFindCompetitorGaps, result.Tool)
	require.Len(t, result.Results, 2)

	require.Equal(t, "AP Automation", result.Results[0].Keyword)
	require.Equal(t, "bill.com", result.Results[0].CompetitorDomain)
	require.Equal(t, 2, result.Results[0].CompetitorRank)
	require.Equal(t, 120.5, result.Results[0].CompetitorEtv)
	require.Equal(t, "supplier payments", result.Results[1].Keyword)
	require.Equal(t, "tipalti.com", result.Results[1].CompetitorDomain)

	require.Len(t, backend.calls(), 4)
}

func TestFindCompetitorGaps_DegradesFailingDomain(t *testing.T) {
	_, client := newFakeBackend(t, func(path string, body backendRequest) (int, any) {
		if path == "/competitors/paid-keywords" {
			if body.Target == "broken.com" {
				return http.StatusInternalServerError, map[string]any{"error": "boom"}
			}
			return http.StatusOK, map[string]any{"results": []any{}}
		}
		return http.StatusOK, map[string]any{"results": []map[string]any{
			{"keyword": "kw for " + body.Target, "volume": 10, "position": 3},
		}}
	})

	result, err := client.FindCompetitorGaps(context.Background(), []string{"broken.com", "ok.com"}, "US", 0)
	require.NoError(t, err)
	require.Equal(t, []string{"broken.com"}, result.Degraded)
	require.Len(t, result.Results, 1)
	require.Equal(t, "ok.com", result.Results[0].CompetitorDomain)
}

func TestFindCompetitorGaps_RequiresDomain(t *testing.T) {
	client := NewClient(Options{BaseURL: "http://127.0.0.1:1"})
	_, err := client.FindCompetitorGaps(context.Background(), []string{" ", ""}, "US", 0)
	var inputErr *InputError
	require.ErrorAs(t, err, &inputErr)
}

func TestLabsSuggestionsForSeeds_DegradesFailingSeed(t *testing.T) {
	backend, client := newFakeBackend(t, func(path string, body backendRequest) (int, any) {
		if body.Keyword == "bad seed" {
			return http.StatusBadRequest, map[string]any{"error": "unsupported keyword"}
		}
		return http.StatusOK, map[string]any{"results": []map[string]any{
			{"keyword": body.Keyword + " software", "volume": 120},
		}}
	})

	result, err := client.LabsSuggestionsForSeeds(context.Background(), []string{"invoice matching", "bad seed", "ap automation"}, "US", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"bad seed"}, result.Degraded)
	require.Len(t, result.Results, 2)
	require.Equal(t, "invoice matching software", result.Results[0].Keyword)
	require.Equal(t, "invoice matching", result.Results[0].Seed)
	require.Equal(t, "ap automation software", result.Results[1].Keyword)
	require.Len(t, backend.calls(), 3)
}

func TestDomainGaps(t *testing.T) {
	organic := []RankedKeywordRecord{
		{KeywordMetrics: KeywordMetrics{Keyword: "a"}, Position: 1},
		{KeywordMetrics: KeywordMetrics{Keyword: " "}, Position: 2},
		{KeywordMetrics: KeywordMetrics{Keyword: "B"}, Position: 3},
	}
	paid := []PaidKeywordRecord{{KeywordMetrics: KeywordMetrics{Keyword: "b"}}}

	gaps := domainGaps("x.com", organic, paid)
	require.Len(t, gaps, 1)
	require.Equal(t, "a", gaps[0].Keyword)
	require.Equal(t, 1, gaps[0].CompetitorRank)
}
