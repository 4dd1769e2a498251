package llmreview

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Complete_ParsesJSONFromMarkdownFence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{
			"id": "test-1",
			"model": "claude-sonnet-4-20250514",
			"choices": [{"message": {"role": "assistant", "content": "Here is my answer:\n\n` + "```json\\n{\\\"decision\\\": \\\"buy\\\", \\\"confidence\\\": 0.8}\\n```" + `"}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{Endpoint: server.URL, Timeout: 2 * time.Second})
	result, err := client.Complete(context.Background(), "system", "user", nil)

	require.NoError(t, err)
	assert.Equal(t, "buy", result["decision"])
	assert.InDelta(t, 0.8, result["confidence"], 0.0001)
}

func TestClient_Chat_RetryableErrorIsClassified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "slow down", "type": "rate_limit_error"}}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{Endpoint: server.URL, Timeout: 2 * time.Second})
	_, err := client.chat(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}}, nil)

	require.Error(t, err)
	llmErr, ok := err.(*LLMError)
	require.True(t, ok)
	assert.True(t, llmErr.IsRetryable())
}

func TestClient_Chat_BadRequestIsNotRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "malformed", "type": "invalid_request_error"}}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{Endpoint: server.URL, Timeout: 2 * time.Second})
	_, err := client.chat(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}}, nil)

	require.Error(t, err)
	llmErr, ok := err.(*LLMError)
	require.True(t, ok)
	assert.False(t, llmErr.IsRetryable())
}

func TestExtractFirstJSONObject_FindsBalancedBraces(t *testing.T) {
	got := extractFirstJSONObject(`noise before {"a": {"b": 1}} noise after`)
	assert.Equal(t, `{"a": {"b": 1}}`, got)
}

func TestParseJSONResponse_FallsBackToRawContent(t *testing.T) {
	var out map[string]interface{}
	err := parseJSONResponse(`{"decision": "hold"}`, &out)
	require.NoError(t, err)
	assert.Equal(t, "hold", out["decision"])
}
