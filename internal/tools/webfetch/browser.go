package webfetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"leadscout/internal/tools"
)

// BrowserFetcher renders pages in headless Chrome via rod, for sites that
// serve nothing useful without JavaScript. The browser is launched lazily on
// first fetch and reused until Shutdown.
type BrowserFetcher struct {
	Headless        bool
	NavTimeout      time.Duration
	StableWait      time.Duration
	MaxContentBytes int

	mu      sync.Mutex
	browser *rod.Browser
}

// NewBrowserFetcher constructs a headless browser fetcher with defaults.
func NewBrowserFetcher() *BrowserFetcher {
	return &BrowserFetcher{
		Headless:        true,
		NavTimeout:      30 * time.Second,
		StableWait:      2 * time.Second,
		MaxContentBytes: defaultMaxBodyBytes,
	}
}

func (b *BrowserFetcher) ensureStarted() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil {
		if _, err := b.browser.Version(); err == nil {
			return nil
		}
		// Stale connection, relaunch.
		_ = b.browser.Close()
		b.browser = nil
	}

	controlURL, err := launcher.New().Headless(b.Headless).Launch()
	if err != nil {
		return fmt.Errorf("launch chrome: %w", err)
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}
	b.browser = browser
	return nil
}

// Shutdown closes the browser if one was started.
func (b *BrowserFetcher) Shutdown() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser == nil {
		return nil
	}
	err := b.browser.Close()
	b.browser = nil
	return err
}

// Fetch renders one page and returns its visible text. Same error contract
// as HTTPFetcher.
func (b *BrowserFetcher) Fetch(ctx context.Context, pageURL string) (*tools.Page, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, &tools.FetchError{URL: pageURL, Reason: tools.FetchUnreachable, Err: errors.New("not an absolute http(s) URL")}
	}
	if err := b.ensureStarted(); err != nil {
		return nil, &tools.FetchError{URL: pageURL, Reason: tools.FetchUnreachable, Err: err}
	}

	page, err := b.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, &tools.FetchError{URL: pageURL, Reason: tools.FetchUnreachable, Err: fmt.Errorf("create page: %w", err)}
	}
	defer page.Close()
	page = page.Context(ctx)

	if err := page.Timeout(b.NavTimeout).Navigate(pageURL); err != nil {
		return nil, classifyBrowserError(pageURL, err)
	}
	if err := page.Timeout(b.NavTimeout).WaitLoad(); err != nil {
		return nil, classifyBrowserError(pageURL, err)
	}
	// Give dynamic content a moment to settle; failure here is not fatal.
	_ = page.WaitStable(b.StableWait)

	title := ""
	if res, err := page.Eval(`() => document.title`); err == nil && res != nil {
		title = strings.Join(strings.Fields(res.Value.String()), " ")
	}
	res, err := page.Eval(`() => document.body.innerText`)
	if err != nil || res == nil {
		return nil, classifyBrowserError(pageURL, fmt.Errorf("extract text: %w", err))
	}
	content := strings.TrimSpace(res.Value.String())

	truncated := false
	if max := b.MaxContentBytes; max > 0 && len(content) > max {
		content = content[:max]
		truncated = true
	}
	return &tools.Page{URL: pageURL, Title: title, Content: content, Truncated: truncated}, nil
}

func classifyBrowserError(pageURL string, err error) *tools.FetchError {
	reason := tools.FetchUnreachable
	if errors.Is(err, context.DeadlineExceeded) {
		reason = tools.FetchTimeout
	}
	return &tools.FetchError{URL: pageURL, Reason: reason, Err: err}
}
