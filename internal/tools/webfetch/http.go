// Package webfetch provides PageFetcher implementations: a plain HTTP
// fetcher that reduces pages to markdown, and a rod-driven browser fetcher
// for JS-rendered sites.
package webfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"

	"leadscout/internal/tools"
)

const (
	defaultUserAgent    = "Mozilla/5.0 (compatible; leadscout/1.0)"
	defaultMaxBodyBytes = 2 * 1024 * 1024
	maxRedirects        = 5
)

// HTTPFetcher retrieves pages over plain HTTP and converts HTML to markdown
// so link targets stay visible to the reasoning step.
type HTTPFetcher struct {
	UserAgent    string
	MaxBodyBytes int64
	// BlockedHosts are hostnames (and their subdomains) never fetched.
	BlockedHosts []string

	client *http.Client
	conv   *converter.Converter
}

// NewHTTPFetcher constructs a fetcher with the given per-request timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	client := &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
	return NewHTTPFetcherWithClient(client)
}

// NewHTTPFetcherWithClient constructs a fetcher using the supplied HTTP
// client.
func NewHTTPFetcherWithClient(client *http.Client) *HTTPFetcher {
	return &HTTPFetcher{
		UserAgent:    defaultUserAgent,
		MaxBodyBytes: defaultMaxBodyBytes,
		client:       client,
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Fetch retrieves one page. Every failure comes back as a *tools.FetchError
// classified as timeout, http_error or unreachable.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (*tools.Page, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, &tools.FetchError{URL: pageURL, Reason: tools.FetchUnreachable, Err: errors.New("not an absolute http(s) URL")}
	}
	if f.hostBlocked(parsed.Hostname()) {
		return nil, &tools.FetchError{URL: pageURL, Reason: tools.FetchUnreachable, Err: fmt.Errorf("host %s is blocked", parsed.Hostname())}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, &tools.FetchError{URL: pageURL, Reason: tools.FetchUnreachable, Err: err}
	}
	ua := f.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &tools.FetchError{
			URL:    pageURL,
			Reason: tools.FetchHTTPError,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("http %d", resp.StatusCode),
		}
	}

	mediaType := mediaTypeOf(resp.Header.Get("Content-Type"))
	if !textContentType(mediaType) {
		return nil, &tools.FetchError{
			URL:    pageURL,
			Reason: tools.FetchHTTPError,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("unsupported content type %q", mediaType),
		}
	}

	max := f.MaxBodyBytes
	if max <= 0 {
		max = defaultMaxBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, max+1))
	if err != nil {
		return nil, classifyTransportError(pageURL, err)
	}
	truncated := int64(len(body)) > max
	if truncated {
		body = body[:max]
	}

	page := &tools.Page{URL: pageURL, Truncated: truncated}
	if mediaType != "" && mediaType != "text/html" && mediaType != "application/xhtml+xml" {
		page.Content = strings.TrimSpace(string(body))
		return page, nil
	}
	page.Title, page.Content = f.extract(string(body), pageURL)
	return page, nil
}

func (f *HTTPFetcher) hostBlocked(host string) bool {
	host = strings.ToLower(host)
	for _, blocked := range f.BlockedHosts {
		blocked = strings.ToLower(strings.TrimSpace(blocked))
		if blocked == "" {
			continue
		}
		if host == blocked || strings.HasSuffix(host, "."+blocked) {
			return true
		}
	}
	return false
}

// classifyTransportError maps client-side failures onto the fetch taxonomy:
// deadline or net timeout -> timeout, everything else -> unreachable.
func classifyTransportError(pageURL string, err error) *tools.FetchError {
	reason := tools.FetchUnreachable
	var nerr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
		reason = tools.FetchTimeout
	}
	return &tools.FetchError{URL: pageURL, Reason: reason, Err: err}
}

func mediaTypeOf(contentType string) string {
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

// textContentType reports whether the body is worth reading as text. Servers
// that omit the header get the benefit of the doubt.
func textContentType(mediaType string) bool {
	if mediaType == "" {
		return true
	}
	return strings.HasPrefix(mediaType, "text/") || mediaType == "application/xhtml+xml"
}
