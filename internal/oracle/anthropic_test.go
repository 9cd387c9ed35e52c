package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicGenerate(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		_, _ = w.Write([]byte(`{
			"content": [{"type": "text", "text": "NO"}]
		}`))
	}))
	defer server.Close()

	client, err := newAnthropicClient(Config{APIKey: "test-key"})
	require.NoError(t, err)
	anthropic := client.(*anthropicClient)
	anthropic.baseURL = server.URL

	resp, err := anthropic.Generate(context.Background(), "is this itemized?", "analyzer", false)
	require.NoError(t, err)
	assert.Equal(t, "NO", resp)

	assert.Equal(t, "claude-3-5-sonnet-20241022", gotBody["model"])
	assert.Equal(t, "analyzer", gotBody["system"])
}

func TestAnthropicGenerateAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "invalid key"}}`))
	}))
	defer server.Close()

	client, err := newAnthropicClient(Config{APIKey: "bad-key"})
	require.NoError(t, err)
	anthropic := client.(*anthropicClient)
	anthropic.baseURL = server.URL

	_, err = anthropic.Generate(context.Background(), "prompt", "", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestNewClientProviders(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		wantErr  bool
	}{
		{"gemini", "gemini", false},
		{"anthropic", "anthropic", false},
		{"case insensitive", "Gemini", false},
		{"unknown", "openai", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(Config{Provider: tt.provider, APIKey: "key"})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
