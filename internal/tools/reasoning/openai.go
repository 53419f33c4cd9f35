// Package reasoning provides ReasoningService implementations for
// OpenAI-compatible chat APIs and Google Gemini. Both return raw JSON; the
// typed boundary in internal/tools owns decoding, validation and retries.
package reasoning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"leadscout/internal/tools"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o-mini"
	defaultMaxTokens     = 4096
	defaultMinInterval   = 500 * time.Millisecond
)

// OpenAI talks to any OpenAI-compatible chat completions endpoint (OpenAI,
// OpenRouter, vLLM and similar gateways) with structured output enforced via
// response_format json_schema.
type OpenAI struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	MinInterval time.Duration

	client      *http.Client
	mu          sync.Mutex
	lastRequest time.Time
}

// NewOpenAI constructs a client. Empty baseURL and model fall back to the
// OpenAI defaults.
func NewOpenAI(apiKey, baseURL, model string) *OpenAI {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAI{
		APIKey:      apiKey,
		BaseURL:     strings.TrimRight(baseURL, "/"),
		Model:       model,
		MaxTokens:   defaultMaxTokens,
		MinInterval: defaultMinInterval,
		client:      &http.Client{Timeout: 2 * time.Minute},
	}
}

// SetTimeout overrides the per-call HTTP timeout.
func (c *OpenAI) SetTimeout(d time.Duration) {
	if d > 0 {
		c.client.Timeout = d
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type jsonSchemaSpec struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

type responseFormat struct {
	Type       string         `json:"type"`
	JSONSchema jsonSchemaSpec `json:"json_schema"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete issues one schema-bound completion. Retry policy lives in the
// CompleteJSON boundary, not here.
func (c *OpenAI) Complete(ctx context.Context, req tools.CompletionRequest) (json.RawMessage, error) {
	if c.APIKey == "" {
		return nil, errors.New("API key not configured")
	}
	// Centralized timeout handling when the caller brought no deadline.
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.client.Timeout)
		defer cancel()
	}
	c.throttle()

	messages := make([]chatMessage, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	maxTokens := c.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	body := chatRequest{
		Model:       c.Model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: 0,
		ResponseFormat: &responseFormat{
			Type: "json_schema",
			JSONSchema: jsonSchemaSpec{
				Name:   req.Schema.Name,
				Strict: true,
				Schema: req.Schema.JSONSchema(),
			},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("API error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return nil, errors.New("no completion returned")
	}

	content := stripFences(parsed.Choices[0].Message.Content)
	if content == "" {
		return nil, errors.New("empty completion")
	}
	return json.RawMessage(content), nil
}

// throttle enforces the minimum interval between requests across goroutines.
func (c *OpenAI) throttle() {
	interval := c.MinInterval
	if interval <= 0 {
		return
	}
	c.mu.Lock()
	if elapsed := time.Since(c.lastRequest); elapsed < interval {
		time.Sleep(interval - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()
}

// stripFences removes a markdown code fence some gateways wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
