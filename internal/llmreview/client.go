package llmreview

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/cryptobreakout/internal/metrics"
)

// Client talks to an OpenAI-compatible chat-completion gateway (Bifrost,
// LiteLLM, or the provider's own endpoint). Grounded on internal/llm/client.go.
type Client struct {
	endpoint    string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

// ClientConfig configures a Client.
type ClientConfig struct {
	Endpoint    string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// NewClient builds a Client, filling in the teacher's defaults for anything
// left zero.
func NewClient(config ClientConfig) *Client {
	if config.Endpoint == "" {
		config.Endpoint = "http://localhost:8080/v1/chat/completions"
	}
	if config.Model == "" {
		config.Model = "claude-sonnet-4-20250514"
	}
	if config.Temperature == 0 {
		config.Temperature = 0.2 // strict-JSON review calls favor determinism over creativity
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 1000
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &Client{
		endpoint:    config.Endpoint,
		apiKey:      config.APIKey,
		model:       config.Model,
		temperature: config.Temperature,
		maxTokens:   config.MaxTokens,
		httpClient:  &http.Client{Timeout: config.Timeout},
	}
}

// chat sends a raw chat-completion request. jsonSchema is optional; when set
// it is attached as a strict response_format so the gateway constrains its
// output instead of relying purely on prompt instructions.
func (c *Client) chat(ctx context.Context, messages []ChatMessage, jsonSchema map[string]interface{}) (*ChatResponse, error) {
	request := ChatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	if jsonSchema != nil {
		request.ResponseFormat = &ResponseFormat{
			Type: "json_schema",
			JSONSchema: JSONSchemaSpec{
				Name:   "review_decision",
				Strict: true,
				Schema: jsonSchema,
			},
		}
	}

	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	log.Debug().
		Str("endpoint", c.endpoint).
		Str("model", c.model).
		Int("message_count", len(messages)).
		Msg("sending llm review request")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(start)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		if err := json.Unmarshal(body, &errResp); err != nil {
			return nil, classifyHTTPError(resp.StatusCode, string(body))
		}
		return nil, classifyHTTPError(resp.StatusCode, errResp.Error.Message)
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	log.Debug().
		Str("model", chatResp.Model).
		Int("prompt_tokens", chatResp.Usage.PromptTokens).
		Int("completion_tokens", chatResp.Usage.CompletionTokens).
		Dur("duration", duration).
		Msg("llm review request completed")

	return &chatResp, nil
}

// completeWithRetry retries chat on retryable errors with exponential backoff.
func (c *Client) completeWithRetry(ctx context.Context, messages []ChatMessage, jsonSchema map[string]interface{}, maxRetries int) (*ChatResponse, error) {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * time.Second
			log.Warn().Err(lastErr).Int("attempt", attempt).Dur("backoff", backoff).Msg("retrying llm review request")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := c.chat(ctx, messages, jsonSchema)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if llmErr, ok := err.(*LLMError); ok && !llmErr.IsRetryable() {
			return nil, fmt.Errorf("llm review request failed with non-retryable error: %w", err)
		}
	}

	return nil, fmt.Errorf("llm review request failed after %d attempts: %w", maxRetries+1, lastErr)
}

// Complete satisfies domain.AIPort: a system/user prompt pair in, a parsed
// JSON object out, constrained by jsonSchema when the gateway honors
// response_format and falling back to the markdown/brace-matching extraction
// chain otherwise.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string, jsonSchema map[string]interface{}) (map[string]interface{}, error) {
	messages := []ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}

	start := time.Now()
	resp, err := c.completeWithRetry(ctx, messages, jsonSchema, 2)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in llm review response")
	}

	var out map[string]interface{}
	if err := parseJSONResponse(resp.Choices[0].Message.Content, &out); err != nil {
		return nil, err
	}
	if decision, ok := out["decision"].(string); ok {
		metrics.RecordLLMDecision(c.model, decision, float64(time.Since(start).Milliseconds()))
	}
	return out, nil
}

// parseJSONResponse extracts and parses JSON out of an LLM's raw content,
// trying a markdown code fence, then the first balanced JSON object, then the
// raw trimmed content. Grounded on internal/llm/client.go's ParseJSONResponse.
func parseJSONResponse(content string, target interface{}) error {
	candidates := []string{
		extractJSONFromMarkdown(content),
		extractFirstJSONObject(content),
		strings.TrimSpace(content),
	}

	var lastErr error
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if err := json.Unmarshal([]byte(candidate), target); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return fmt.Errorf("failed to parse JSON response after multiple attempts: %w", lastErr)
}

func extractJSONFromMarkdown(content string) string {
	contentBytes := []byte(content)

	patterns := []struct {
		prefix []byte
		offset int
	}{
		{[]byte("```json\n"), 8},
		{[]byte("```json"), 7},
		{[]byte("```\n"), 4},
		{[]byte("```"), 3},
	}

	for _, pattern := range patterns {
		if idx := bytes.Index(contentBytes, pattern.prefix); idx >= 0 {
			start := idx + pattern.offset
			if endIdx := bytes.Index(contentBytes[start:], []byte("```")); endIdx >= 0 {
				end := start + endIdx
				extracted := string(bytes.TrimSpace(contentBytes[start:end]))
				if len(extracted) > 0 && (extracted[0] == '{' || extracted[0] == '[') {
					return extracted
				}
			}
		}
	}
	return ""
}

func extractFirstJSONObject(content string) string {
	content = strings.TrimSpace(content)
	if len(content) == 0 {
		return ""
	}

	startIdx := -1
	isArray := false
	for i, ch := range content {
		if ch == '{' {
			startIdx = i
			break
		} else if ch == '[' {
			startIdx = i
			isArray = true
			break
		}
	}
	if startIdx == -1 {
		return ""
	}

	depth := 0
	openChar, closeChar := byte('{'), byte('}')
	if isArray {
		openChar, closeChar = '[', ']'
	}

	for i := startIdx; i < len(content); i++ {
		switch content[i] {
		case openChar:
			depth++
		case closeChar:
			depth--
			if depth == 0 {
				return content[startIdx : i+1]
			}
		}
	}
	return ""
}

// LLMError carries retry semantics alongside an HTTP-derived error.
type LLMError struct {
	StatusCode int
	Message    string
	Retryable  bool
}

func (e *LLMError) Error() string {
	return fmt.Sprintf("llm review API error (status %d): %s", e.StatusCode, e.Message)
}

func (e *LLMError) IsRetryable() bool { return e.Retryable }

func classifyHTTPError(statusCode int, message string) error {
	retryable := false
	switch {
	case statusCode == http.StatusTooManyRequests:
		retryable = true
	case statusCode >= 500 && statusCode < 600:
		retryable = true
	default:
		retryable = false
	}
	return &LLMError{StatusCode: statusCode, Message: message, Retryable: retryable}
}
