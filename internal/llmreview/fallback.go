package llmreview

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/cryptobreakout/internal/risk"
)

// FallbackClient tries a priority-ordered list of models, moving to the next
// one on error. Grounded on internal/llm/fallback.go's FallbackClient, with
// one change: model-level circuit breaking is no longer hand-rolled here.
// Every attempt, across every model, runs through the shared
// risk.CircuitBreakerManager.LLM() breaker instead of a private per-model
// CircuitBreaker/modelCircuit pair, so the one circuit-breaking concept this
// system has (risk.CircuitBreakerManager, otherwise built but never called)
// also governs AI review calls. The tradeoff: the breaker trips on the LLM
// call surface as a whole rather than isolating a single bad model, which is
// an acceptable loss here since a Bifrost-style gateway already multiplexes
// model names behind one endpoint.
type FallbackClient struct {
	clients    []*Client
	modelNames []string
	breakers   *risk.CircuitBreakerManager
}

// FallbackConfig configures the fallback client.
type FallbackConfig struct {
	PrimaryConfig ClientConfig
	PrimaryName   string

	FallbackConfigs []ClientConfig
	FallbackNames   []string
}

// NewFallbackClient builds a client with automatic model fallback, backed by
// the supplied circuit breaker manager (pass risk.NewPassthroughCircuitBreakerManager()
// in tests to disable tripping).
func NewFallbackClient(config FallbackConfig, breakers *risk.CircuitBreakerManager) *FallbackClient {
	clients := []*Client{NewClient(config.PrimaryConfig)}
	modelNames := []string{config.PrimaryName}

	for i, fbConfig := range config.FallbackConfigs {
		clients = append(clients, NewClient(fbConfig))
		if i < len(config.FallbackNames) {
			modelNames = append(modelNames, config.FallbackNames[i])
		} else {
			modelNames = append(modelNames, fmt.Sprintf("fallback-%d", i+1))
		}
	}

	return &FallbackClient{
		clients:    clients,
		modelNames: modelNames,
		breakers:   breakers,
	}
}

// Complete tries each model in priority order, through the shared LLM
// circuit breaker, until one succeeds.
func (fc *FallbackClient) Complete(ctx context.Context, systemPrompt, userPrompt string, jsonSchema map[string]interface{}) (map[string]interface{}, error) {
	var lastErr error

	for i, client := range fc.clients {
		modelName := fc.modelNames[i]

		start := time.Now()
		result, err := fc.breakers.LLM().Execute(func() (interface{}, error) {
			return client.Complete(ctx, systemPrompt, userPrompt, jsonSchema)
		})
		duration := time.Since(start)

		if err == nil {
			log.Info().
				Str("model", modelName).
				Int("attempt", i+1).
				Dur("duration", duration).
				Msg("llm review completion succeeded")
			return result.(map[string]interface{}), nil
		}

		lastErr = err
		log.Warn().
			Err(err).
			Str("model", modelName).
			Int("attempt", i+1).
			Dur("duration", duration).
			Msg("llm review completion failed, trying fallback")

		if llmErr, ok := err.(*LLMError); ok && !llmErr.IsRetryable() {
			continue
		}
	}

	return nil, fmt.Errorf("all models failed, last error: %w", lastErr)
}
