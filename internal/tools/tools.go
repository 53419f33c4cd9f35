// Package tools defines the capability interfaces the research core consumes
// (web search, page fetch, structured reasoning), the shared error taxonomy
// for them, and the page cache the fetch adapters sit behind. Concrete
// transports live in the websearch, webfetch and reasoning subpackages.
package tools

import (
	"context"
	"encoding/json"
)

// SearchTool turns a query into an ordered list of candidate URLs.
type SearchTool interface {
	Search(ctx context.Context, query string) ([]string, error)
}

// Page is raw fetched content after extraction, before budget truncation.
type Page struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
	// Truncated marks content cut at the fetcher's byte cap, not the
	// research budget; budget truncation happens in the research loop.
	Truncated bool `json:"truncated,omitempty"`
}

// PageFetcher retrieves one page as readable text.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// CompletionRequest is one structured reasoning call: prompts plus the schema
// the output must satisfy.
type CompletionRequest struct {
	System string
	Prompt string
	Schema Schema
}

// ReasoningService produces a completion conforming to the request's schema.
// Implementations return raw JSON; CompleteJSON is the boundary that turns it
// into validated typed values.
type ReasoningService interface {
	Complete(ctx context.Context, req CompletionRequest) (json.RawMessage, error)
}
