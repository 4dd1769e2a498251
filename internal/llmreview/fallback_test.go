package llmreview

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/cryptobreakout/internal/risk"
)

func TestFallbackClient_SuccessOnPrimary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "{\"decision\": \"buy\"}"}}], "usage": {"total_tokens": 10}}`))
	}))
	defer server.Close()

	fc := NewFallbackClient(FallbackConfig{
		PrimaryConfig: ClientConfig{Endpoint: server.URL, Timeout: 2 * time.Second},
		PrimaryName:   "primary",
	}, risk.NewPassthroughCircuitBreakerManager())

	result, err := fc.Complete(context.Background(), "system", "user", nil)

	require.NoError(t, err)
	assert.Equal(t, "buy", result["decision"])
}

func TestFallbackClient_FallsBackOnPrimaryFailure(t *testing.T) {
	primaryServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error": {"message": "unavailable"}}`))
	}))
	defer primaryServer.Close()

	var fallbackCalled atomic.Bool
	fallbackServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fallbackCalled.Store(true)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "{\"decision\": \"hold\"}"}}], "usage": {"total_tokens": 10}}`))
	}))
	defer fallbackServer.Close()

	fc := NewFallbackClient(FallbackConfig{
		PrimaryConfig:   ClientConfig{Endpoint: primaryServer.URL, Timeout: 2 * time.Second},
		PrimaryName:     "primary",
		FallbackConfigs: []ClientConfig{{Endpoint: fallbackServer.URL, Timeout: 2 * time.Second}},
		FallbackNames:   []string{"fallback"},
	}, risk.NewPassthroughCircuitBreakerManager())

	result, err := fc.Complete(context.Background(), "system", "user", nil)

	require.NoError(t, err)
	assert.Equal(t, "hold", result["decision"])
	assert.True(t, fallbackCalled.Load())
}

func TestFallbackClient_AllModelsFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error": {"message": "unavailable"}}`))
	}))
	defer server.Close()

	fc := NewFallbackClient(FallbackConfig{
		PrimaryConfig:   ClientConfig{Endpoint: server.URL, Timeout: 2 * time.Second},
		PrimaryName:     "primary",
		FallbackConfigs: []ClientConfig{{Endpoint: server.URL, Timeout: 2 * time.Second}},
		FallbackNames:   []string{"fallback"},
	}, risk.NewPassthroughCircuitBreakerManager())

	_, err := fc.Complete(context.Background(), "system", "user", nil)

	require.Error(t, err)
}
