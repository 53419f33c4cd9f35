// Package websearch provides SearchTool implementations: the Serper API
// client and a DuckDuckGo HTML scraper that needs no API key.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"leadscout/internal/tools"
)

const (
	serperEndpoint    = "https://google.serper.dev/search"
	defaultMaxResults = 10
)

// Serper queries the Serper.dev Google search API.
type Serper struct {
	APIKey string
	// Endpoint overrides the production API URL, for tests.
	Endpoint   string
	MaxResults int
	client     *http.Client
}

// NewSerper constructs a Serper search tool with a modest timeout.
func NewSerper(apiKey string) *Serper {
	return NewSerperWithClient(apiKey, &http.Client{Timeout: 15 * time.Second})
}

// NewSerperWithClient constructs a Serper search tool using the supplied
// HTTP client.
func NewSerperWithClient(apiKey string, client *http.Client) *Serper {
	return &Serper{
		APIKey:     apiKey,
		Endpoint:   serperEndpoint,
		MaxResults: defaultMaxResults,
		client:     client,
	}
}

// Search issues one query and returns the organic result URLs in rank order.
// Any transport or API failure comes back as a SearchUnavailableError; the
// caller decides whether to retry.
func (s *Serper) Search(ctx context.Context, query string) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &tools.SearchUnavailableError{Query: query, Err: errors.New("empty query")}
	}
	if strings.TrimSpace(s.APIKey) == "" {
		return nil, &tools.SearchUnavailableError{Query: query, Err: errors.New("serper API key is missing")}
	}

	max := s.MaxResults
	if max <= 0 {
		max = defaultMaxResults
	}

	payload, err := json.Marshal(map[string]any{"q": query, "num": max})
	if err != nil {
		return nil, &tools.SearchUnavailableError{Query: query, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &tools.SearchUnavailableError{Query: query, Err: err}
	}
	req.Header.Set("X-API-KEY", s.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &tools.SearchUnavailableError{Query: query, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &tools.SearchUnavailableError{
			Query: query,
			Err:   fmt.Errorf("serper http %d", resp.StatusCode),
		}
	}

	var body struct {
		Organic []struct {
			Title string `json:"title"`
			Link  string `json:"link"`
		} `json:"organic"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &tools.SearchUnavailableError{Query: query, Err: fmt.Errorf("decode response: %w", err)}
	}

	urls := make([]string, 0, len(body.Organic))
	seen := make(map[string]bool)
	for _, r := range body.Organic {
		link := strings.TrimSpace(r.Link)
		if !isHTTPURL(link) || seen[link] {
			continue
		}
		seen[link] = true
		urls = append(urls, link)
		if len(urls) >= max {
			break
		}
	}
	return urls, nil
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
