package reasoning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"leadscout/internal/tools"
)

const defaultGeminiModel = "gemini-2.0-flash"

// Gemini completes through the Google GenAI SDK with a response schema, so
// the model returns JSON matching the request schema directly.
type Gemini struct {
	Model       string
	MinInterval time.Duration

	client      *genai.Client
	mu          sync.Mutex
	lastRequest time.Time
}

// NewGemini constructs a Gemini reasoning client.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("Gemini API key is required")
	}
	if model == "" {
		model = defaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create GenAI client: %w", err)
	}
	return &Gemini{
		Model:       model,
		MinInterval: defaultMinInterval,
		client:      client,
	}, nil
}

// Complete issues one schema-bound generation.
func (g *Gemini) Complete(ctx context.Context, req tools.CompletionRequest) (json.RawMessage, error) {
	g.throttle()

	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0),
		ResponseMIMEType: "application/json",
		ResponseSchema:   toGenAISchema(req.Schema),
	}
	if strings.TrimSpace(req.System) != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	contents := []*genai.Content{
		genai.NewContentFromText(req.Prompt, genai.RoleUser),
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.Model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("GenAI generate failed: %w", err)
	}

	text := stripFences(resp.Text())
	if text == "" {
		return nil, errors.New("no completion returned")
	}
	return json.RawMessage(text), nil
}

func (g *Gemini) throttle() {
	interval := g.MinInterval
	if interval <= 0 {
		return
	}
	g.mu.Lock()
	if elapsed := time.Since(g.lastRequest); elapsed < interval {
		time.Sleep(interval - elapsed)
	}
	g.lastRequest = time.Now()
	g.mu.Unlock()
}
