package client

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serverFlagCmd(value string) *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("server", "", "")
	if value != "" {
		cmd.Flags().Set("server", value)
	}
	return cmd
}

func TestNewAPIClient_FlagWins(t *testing.T) {
	t.Setenv(envServer, "http://from-env:8108")

	api := NewAPIClient(serverFlagCmd("http://from-flag:9999"))
	assert.Equal(t, "http://from-flag:9999", api.baseURL)
}

func TestNewAPIClient_EnvFallback(t *testing.T) {
	t.Setenv(envServer, "http://from-env:8108")

	api := NewAPIClient(serverFlagCmd(""))
	assert.Equal(t, "http://from-env:8108", api.baseURL)
}

func TestNewAPIClient_Default(t *testing.T) {
	t.Setenv(envServer, "")

	api := NewAPIClient(nil)
	assert.Equal(t, defaultServer, api.baseURL)
}

func TestAPIClient_Post_DecodesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/v1/route", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"mode":"RAG"}}`))
	}))
	defer srv.Close()

	api := &APIClient{baseURL: srv.URL, httpClient: srv.Client()}

	resp, err := api.Post("/v1/route", RouteRequest{Query: "luật đất đai"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"mode":"RAG"}`, string(resp.Data))
}

func TestAPIClient_Post_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"query text is empty"}`))
	}))
	defer srv.Close()

	api := &APIClient{baseURL: srv.URL, httpClient: srv.Client()}

	_, err := api.Post("/v1/route", RouteRequest{})
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "query text is empty", apiErr.Message)
}

func TestAPIClient_Post_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream exploded"))
	}))
	defer srv.Close()

	api := &APIClient{baseURL: srv.URL, httpClient: srv.Client()}

	_, err := api.Get("/health")
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "upstream exploded")
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		n        int
		expected string
	}{
		{"short stays whole", "Hà Nội", 10, "Hà Nội"},
		{"exact length stays whole", "Hà Nội", 6, "Hà Nội"},
		{"long gets ellipsis", "Sông Mê Kông chảy qua sáu quốc gia", 12, "Sông Mê K..."},
		{"counts runes not bytes", "ĐĐĐĐĐ", 5, "ĐĐĐĐĐ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, truncate(tt.input, tt.n))
		})
	}
}
