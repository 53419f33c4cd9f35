package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// CacheEntry is one cached fetch outcome. Failures are cached too, under the
// shorter failure TTL.
type CacheEntry struct {
	URL        string      `json:"url"`
	Page       *Page       `json:"page,omitempty"`
	FailReason FetchReason `json:"fail_reason,omitempty"`
	Failure    string      `json:"failure,omitempty"`
	CachedAt   time.Time   `json:"cached_at"`
}

// Failed reports whether this is a negative entry.
func (e *CacheEntry) Failed() bool { return e.Failure != "" }

// Cache is a memory-plus-disk page cache keyed by sha256 of the URL. The disk
// layer survives process restarts; dir == "" keeps it memory-only. Successful
// entries live for ttl, failures for failTTL.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*CacheEntry
	dir     string
	ttl     time.Duration
	failTTL time.Duration
}

// NewCache creates a cache rooted at dir (created on demand). Non-positive
// TTLs fall back to 24h for pages and 1h for failures.
func NewCache(dir string, ttl, failTTL time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if failTTL <= 0 {
		failTTL = time.Hour
	}
	return &Cache{
		entries: make(map[string]*CacheEntry),
		dir:     dir,
		ttl:     ttl,
		failTTL: failTTL,
	}
}

// CacheKey returns the stable key for a URL.
func CacheKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

// Get returns a live entry for the URL, consulting memory first, then disk.
func (c *Cache) Get(url string) (*CacheEntry, bool) {
	key := CacheKey(url)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok && c.dir != "" {
		entry = c.readDisk(key)
		if entry != nil {
			c.mu.Lock()
			c.entries[key] = entry
			c.mu.Unlock()
			ok = true
		}
	}
	if !ok || c.expired(entry) {
		return nil, false
	}
	return entry, true
}

// PutPage caches a successful fetch.
func (c *Cache) PutPage(url string, p *Page) {
	c.put(&CacheEntry{URL: url, Page: p, CachedAt: time.Now()})
}

// PutFailure caches a failed fetch under the failure TTL.
func (c *Cache) PutFailure(url string, reason FetchReason, err error) {
	c.put(&CacheEntry{
		URL:        url,
		FailReason: reason,
		Failure:    err.Error(),
		CachedAt:   time.Now(),
	})
}

// Size returns the number of in-memory entries.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) put(entry *CacheEntry) {
	key := CacheKey(entry.URL)
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
	c.writeDisk(key, entry)
}

func (c *Cache) expired(e *CacheEntry) bool {
	ttl := c.ttl
	if e.Failed() {
		ttl = c.failTTL
	}
	return time.Since(e.CachedAt) > ttl
}

func (c *Cache) readDisk(key string) *CacheEntry {
	data, err := os.ReadFile(filepath.Join(c.dir, key+".json"))
	if err != nil {
		return nil
	}
	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil
	}
	return &entry
}

func (c *Cache) writeDisk(key string, entry *CacheEntry) {
	if c.dir == "" {
		return
	}
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(c.dir, key+".json"), data, 0644)
}

// CachedFetcher wraps a PageFetcher with the cache. Cached failures replay as
// the original FetchError kind.
type CachedFetcher struct {
	inner PageFetcher
	cache *Cache
}

// NewCachedFetcher wraps fetcher with cache.
func NewCachedFetcher(fetcher PageFetcher, cache *Cache) *CachedFetcher {
	return &CachedFetcher{inner: fetcher, cache: cache}
}

// Fetch serves from cache when possible and records both outcomes on miss.
func (f *CachedFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	if entry, ok := f.cache.Get(url); ok {
		if entry.Failed() {
			return nil, &FetchError{
				URL:    url,
				Reason: entry.FailReason,
				Err:    fmt.Errorf("cached failure: %s", entry.Failure),
			}
		}
		return entry.Page, nil
	}

	page, err := f.inner.Fetch(ctx, url)
	if err != nil {
		// Cache only classified fetch failures; a canceled context is not a
		// property of the page.
		var fe *FetchError
		if errors.As(err, &fe) && ctx.Err() == nil {
			f.cache.PutFailure(url, fe.Reason, fe)
		}
		return nil, err
	}
	f.cache.PutPage(url, page)
	return page, nil
}
