package websearch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"leadscout/internal/tools"
)

const ddgUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ddgResultRegex matches result anchors on the html.duckduckgo.com page.
var ddgResultRegex = regexp.MustCompile(`<a[^>]*class="result__a"[^>]*href="([^"]+)"[^>]*>([^<]+)</a>`)

// ddgGate enforces a global 1 query per second limit across all DuckDuckGo
// instances and goroutines. Scraping faster than that gets the IP throttled.
var ddgGate struct {
	mu   sync.Mutex
	last time.Time
}

// DuckDuckGo scrapes the HTML search endpoint. No API key required, which
// makes it the fallback when no Serper key is configured.
type DuckDuckGo struct {
	// Endpoint overrides the production search URL, for tests.
	Endpoint   string
	MaxResults int
	client     *http.Client
}

// NewDuckDuckGo constructs a DuckDuckGo search tool with a modest timeout.
func NewDuckDuckGo() *DuckDuckGo {
	return NewDuckDuckGoWithClient(&http.Client{Timeout: 15 * time.Second})
}

// NewDuckDuckGoWithClient constructs a DuckDuckGo search tool using the
// supplied HTTP client.
func NewDuckDuckGoWithClient(client *http.Client) *DuckDuckGo {
	return &DuckDuckGo{
		Endpoint:   "https://html.duckduckgo.com/html/",
		MaxResults: defaultMaxResults,
		client:     client,
	}
}

// Search scrapes one results page and returns the result URLs in page order.
// DuckDuckGo wraps targets in a redirect; the uddg parameter carries the real
// URL and is decoded here. A single 429 is retried once after a short wait.
func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &tools.SearchUnavailableError{Query: query, Err: errors.New("empty query")}
	}

	searchURL := fmt.Sprintf("%s?q=%s", strings.TrimRight(d.Endpoint, "/")+"/", url.QueryEscape(query))

	var resp *http.Response
	for attempt := 0; ; attempt++ {
		if err := ddgWait(ctx); err != nil {
			return nil, &tools.SearchUnavailableError{Query: query, Err: err}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
		if err != nil {
			return nil, &tools.SearchUnavailableError{Query: query, Err: err}
		}
		req.Header.Set("User-Agent", ddgUserAgent)

		resp, err = d.client.Do(req)
		if err != nil {
			return nil, &tools.SearchUnavailableError{Query: query, Err: err}
		}
		if resp.StatusCode != http.StatusTooManyRequests || attempt >= 1 {
			break
		}
		resp.Body.Close()

		// Throttled. Back off once, then give up on the next 429.
		select {
		case <-ctx.Done():
			return nil, &tools.SearchUnavailableError{Query: query, Err: ctx.Err()}
		case <-time.After(2 * time.Second):
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &tools.SearchUnavailableError{
			Query: query,
			Err:   fmt.Errorf("duckduckgo http %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 500*1024))
	if err != nil {
		return nil, &tools.SearchUnavailableError{Query: query, Err: fmt.Errorf("read response: %w", err)}
	}

	max := d.MaxResults
	if max <= 0 {
		max = defaultMaxResults
	}
	return parseDDGResults(string(body), max), nil
}

// ddgWait blocks until the shared 1 QPS gate allows the next request.
func ddgWait(ctx context.Context) error {
	ddgGate.mu.Lock()
	if wait := time.Until(ddgGate.last.Add(time.Second)); wait > 0 {
		ddgGate.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		ddgGate.mu.Lock()
	}
	ddgGate.last = time.Now()
	ddgGate.mu.Unlock()
	return nil
}

func parseDDGResults(html string, max int) []string {
	matches := ddgResultRegex.FindAllStringSubmatch(html, -1)
	urls := make([]string, 0, len(matches))
	seen := make(map[string]bool)
	for _, m := range matches {
		href := strings.ReplaceAll(strings.TrimSpace(m[1]), "&amp;", "&")
		href = resolveDDGRedirect(href)
		if !isHTTPURL(href) || seen[href] {
			continue
		}
		seen[href] = true
		urls = append(urls, href)
		if len(urls) >= max {
			break
		}
	}
	return urls
}

// resolveDDGRedirect unwraps duckduckgo.com/l/?uddg=... redirect links.
func resolveDDGRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := parsed.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}
