package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToolbox_Definitions(t *testing.T) {
	box := NewToolbox(NewClient(Options{BaseURL: "http://127.0.0.1:1"}), "US", nil)

	require.Len(t, box.Names(), 10)
	definitions := box.Definitions(ToolTrafficProjection, "missing", ToolExpandKeywords)
	require.Len(t, definitions, 2)
	require.Equal(t, ToolTrafficProjection, definitions[0].Name)
	require.Equal(t, ToolExpandKeywords, definitions[1].Name)

	params := definitions[1].Parameters
	require.Equal(t, "object", params["type"])
	require.Equal(t, []any{"keywords"}, params["required"])
	require.Contains(t, params["properties"], "countryCode")
}

func TestToolbox_ExecuteUsesMarketCountry(t *testing.T) {
	backend, client := newFakeBackend(t, func(path string, body backendRequest) (int, any) {
		return http.StatusOK, map[string]any{"results": metricsRecords(2, "crm")}
	})
	box := NewToolbox(client, "de", nil)

	out, err := box.Execute(context.Background(), ToolExpandKeywords, json.RawMessage(`{"keywords":["crm"]}`))
	require.NoError(t, err)
	require.Equal(t, "DE", backend.calls()[0].Body.CountryCode)

	var envelope struct {
		Version int              `json:"version"`
		Tool    string           `json:"tool"`
		Count   int              `json:"count"`
		Results []map[string]any `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &envelope))
	require.Equal(t, ResultVersion, envelope.Version)
	require.Equal(t, ToolExpandKeywords, envelope.Tool)
	require.Equal(t, 2, envelope.Count)

	_, err = box.Execute(context.Background(), ToolExpandKeywords, json.RawMessage(`{"keywords":["crm"],"countryCode":"fr"}`))
	require.NoError(t, err)
	require.Equal(t, "FR", backend.calls()[1].Body.CountryCode)
}

func TestToolbox_ExecuteErrors(t *testing.T) {
	box := NewToolbox(NewClient(Options{BaseURL: "http://127.0.0.1:1"}), "US", nil)

	_, err := box.Execute(context.Background(), "delete_everything", nil)
	require.EqualError(t, err, `unknown tool "delete_everything"`)

	_, err = box.Execute(context.Background(), ToolSearchVolume, json.RawMessage(`{"keywords":"crm"}`))
	require.ErrorContains(t, err, "invalid arguments for get_search_volume")

	_, err = box.Execute(context.Background(), ToolSearchVolume, nil)
	var inputErr *InputError
	require.ErrorAs(t, err, &inputErr)
}
