package tools

import (
	"context"
	"errors"
	"testing"
	"time"
)

// countingFetcher counts real fetches and fails for URLs in failWith.
type countingFetcher struct {
	fetches  int
	failWith map[string]*FetchError
}

func (f *countingFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	f.fetches++
	if fe, ok := f.failWith[url]; ok {
		return nil, fe
	}
	return &Page{URL: url, Content: "content of " + url}, nil
}

func TestCachedFetcherServesFromCache(t *testing.T) {
	inner := &countingFetcher{}
	cf := NewCachedFetcher(inner, NewCache(t.TempDir(), time.Hour, time.Hour))
	ctx := context.Background()

	p1, err := cf.Fetch(ctx, "https://example.com/a")
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	p2, err := cf.Fetch(ctx, "https://example.com/a")
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if inner.fetches != 1 {
		t.Errorf("inner fetches = %d, want 1", inner.fetches)
	}
	if p1.Content != p2.Content {
		t.Errorf("cached content differs: %q vs %q", p1.Content, p2.Content)
	}
}

func TestCachedFetcherReplaysFailures(t *testing.T) {
	inner := &countingFetcher{failWith: map[string]*FetchError{
		"https://example.com/down": {URL: "https://example.com/down", Reason: FetchUnreachable, Err: errors.New("no route")},
	}}
	cf := NewCachedFetcher(inner, NewCache("", time.Hour, time.Hour))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := cf.Fetch(ctx, "https://example.com/down")
		var fe *FetchError
		if !errors.As(err, &fe) {
			t.Fatalf("fetch %d error = %v, want FetchError", i, err)
		}
		if fe.Reason != FetchUnreachable {
			t.Errorf("fetch %d reason = %s, want unreachable", i, fe.Reason)
		}
	}
	if inner.fetches != 1 {
		t.Errorf("inner fetches = %d, want 1 (failures must be cached)", inner.fetches)
	}
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache("", time.Hour, time.Hour)
	c.PutPage("https://example.com/old", &Page{URL: "https://example.com/old"})

	// Backdate the entry past its TTL.
	key := CacheKey("https://example.com/old")
	c.mu.Lock()
	c.entries[key].CachedAt = time.Now().Add(-2 * time.Hour)
	c.mu.Unlock()

	if _, ok := c.Get("https://example.com/old"); ok {
		t.Error("expired entry served from cache")
	}
}

func TestCacheDiskPersistence(t *testing.T) {
	dir := t.TempDir()

	first := NewCache(dir, time.Hour, time.Hour)
	first.PutPage("https://example.com/persist", &Page{URL: "https://example.com/persist", Title: "kept"})

	// A fresh cache over the same directory sees the entry.
	second := NewCache(dir, time.Hour, time.Hour)
	entry, ok := second.Get("https://example.com/persist")
	if !ok {
		t.Fatal("entry not found after reopen")
	}
	if entry.Page == nil || entry.Page.Title != "kept" {
		t.Errorf("entry = %+v, want page with title kept", entry)
	}
}

func TestCachedFetcherSkipsCachingOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	inner := &countingFetcher{failWith: map[string]*FetchError{
		"https://example.com/slow": {URL: "https://example.com/slow", Reason: FetchTimeout, Err: context.Canceled},
	}}
	cache := NewCache("", time.Hour, time.Hour)
	cf := NewCachedFetcher(inner, cache)

	cancel()
	_, err := cf.Fetch(ctx, "https://example.com/slow")
	if err == nil {
		t.Fatal("fetch succeeded, want error")
	}
	if cache.Size() != 0 {
		t.Errorf("cache size = %d after canceled fetch, want 0", cache.Size())
	}
}
