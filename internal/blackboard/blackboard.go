// Package blackboard implements the per-lead shared research memory: an
// append-only sequence of page findings plus the frontier of discovered but
// unvisited links, guarded by the page and character budgets.
//
// One Blackboard instance is owned by one lead's processing run and shared by
// reference across research rounds, so later rounds inherit everything earlier
// rounds discovered. It is safe for concurrent use; link reservation and
// finding appends are the only synchronization points concurrent fetches need.
package blackboard

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultPageBudget caps how many pages may be recorded per lead.
	DefaultPageBudget = 20
	// DefaultPageCharLimit caps how many characters of one page are processed.
	DefaultPageCharLimit = 10000
)

// FrontierLink is one discovered, not-yet-visited URL with the reason it
// looked interesting.
type FrontierLink struct {
	URL    string `json:"url"`
	Reason string `json:"reason,omitempty"`
}

// PageFinding is one unit of evidence: what one fetched page contributed.
// Immutable after Record.
type PageFinding struct {
	URL       string         `json:"url"`
	Title     string         `json:"title,omitempty"`
	Summary   string         `json:"summary"`
	Links     []FrontierLink `json:"links,omitempty"`
	Goal      string         `json:"goal,omitempty"`
	FetchedAt time.Time      `json:"fetched_at"`
	Chars     int            `json:"chars"`
}

// DuplicateFindingError reports a second finding for an already-recorded URL.
// It means the visited-set discipline was bypassed and is fatal for the lead.
type DuplicateFindingError struct {
	URL string
}

func (e *DuplicateFindingError) Error() string {
	return fmt.Sprintf("duplicate finding for %s", e.URL)
}

// ErrPageBudgetExhausted rejects a Record call that would push the board past
// its page cap. The research loop never triggers it (it reserves budget before
// fetching); it guards callers that bypass reservation.
var ErrPageBudgetExhausted = fmt.Errorf("page budget exhausted")

// Blackboard holds all research state for one lead.
type Blackboard struct {
	mu        sync.Mutex
	findings  []PageFinding
	frontier  []FrontierLink
	inFront   map[string]struct{}
	visited   map[string]struct{}
	recorded  map[string]struct{}
	reserved  map[string]struct{}
	chars     int64
	pageCap   int
	charLimit int
}

// New returns an empty Blackboard with the default budgets.
func New() *Blackboard {
	return NewWithBudget(DefaultPageBudget, DefaultPageCharLimit)
}

// NewWithBudget returns an empty Blackboard with explicit budgets. Values
// below one fall back to the defaults.
func NewWithBudget(pages, charLimit int) *Blackboard {
	if pages < 1 {
		pages = DefaultPageBudget
	}
	if charLimit < 1 {
		charLimit = DefaultPageCharLimit
	}
	return &Blackboard{
		inFront:   make(map[string]struct{}),
		visited:   make(map[string]struct{}),
		recorded:  make(map[string]struct{}),
		reserved:  make(map[string]struct{}),
		pageCap:   pages,
		charLimit: charLimit,
	}
}

// NormalizeURL canonicalizes a URL for visited-set membership: scheme and
// host lowercased, default port and fragment stripped, trailing slash trimmed.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q in %s", u.Scheme, raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host in %s", raw)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if (u.Scheme == "http" && strings.HasSuffix(u.Host, ":80")) ||
		(u.Scheme == "https" && strings.HasSuffix(u.Host, ":443")) {
		u.Host = u.Host[:strings.LastIndex(u.Host, ":")]
	}
	u.Fragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	return u.String(), nil
}

// Record appends a finding, merges its links into the frontier and converts
// the page reservation (if any) into a recorded page. Fails with
// *DuplicateFindingError when the URL already has a finding.
func (b *Blackboard) Record(f PageFinding) error {
	key, err := NormalizeURL(f.URL)
	if err != nil {
		return fmt.Errorf("record: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, dup := b.recorded[key]; dup {
		return &DuplicateFindingError{URL: f.URL}
	}
	if _, held := b.reserved[key]; !held && b.remainingLocked() <= 0 {
		return ErrPageBudgetExhausted
	}
	b.recorded[key] = struct{}{}
	b.visited[key] = struct{}{}
	delete(b.reserved, key)

	if f.FetchedAt.IsZero() {
		f.FetchedAt = time.Now()
	}
	b.findings = append(b.findings, f)
	b.chars += int64(f.Chars)
	b.mergeLocked(f.Links)
	return nil
}

// MergeLinks adds discovered links to the frontier, skipping anything
// visited, already queued, or unparseable. First discovery wins; later
// duplicates are dropped. Costs no page budget. Returns how many links were
// actually added.
func (b *Blackboard) MergeLinks(links []FrontierLink) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mergeLocked(links)
}

func (b *Blackboard) mergeLocked(links []FrontierLink) int {
	added := 0
	for _, l := range links {
		key, err := NormalizeURL(l.URL)
		if err != nil {
			continue
		}
		if _, seen := b.visited[key]; seen {
			continue
		}
		if _, queued := b.inFront[key]; queued {
			continue
		}
		b.inFront[key] = struct{}{}
		b.frontier = append(b.frontier, FrontierLink{URL: key, Reason: l.Reason})
		added++
	}
	return added
}

// NextFrontierLinks dequeues up to limit links in discovery order, marking
// each visited and reserving one page of budget per link, atomically. A
// returned URL will never be returned again for the lifetime of the board.
func (b *Blackboard) NextFrontierLinks(limit int) []FrontierLink {
	b.mu.Lock()
	defer b.mu.Unlock()

	if remaining := b.remainingLocked(); limit > remaining {
		limit = remaining
	}
	if limit <= 0 || len(b.frontier) == 0 {
		return nil
	}
	if limit > len(b.frontier) {
		limit = len(b.frontier)
	}

	out := make([]FrontierLink, limit)
	copy(out, b.frontier[:limit])
	b.frontier = b.frontier[limit:]
	for _, l := range out {
		delete(b.inFront, l.URL)
		b.visited[l.URL] = struct{}{}
		b.reserved[l.URL] = struct{}{}
	}
	return out
}

// ClaimFrontierURL atomically takes one specific URL out of the frontier,
// marking it visited and reserving a page of budget. False when the URL is
// not on the frontier or no budget remains.
func (b *Blackboard) ClaimFrontierURL(raw string) bool {
	key, err := NormalizeURL(raw)
	if err != nil {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, queued := b.inFront[key]; !queued {
		return false
	}
	if b.remainingLocked() <= 0 {
		return false
	}
	for i, l := range b.frontier {
		if l.URL == key {
			b.frontier = append(b.frontier[:i], b.frontier[i+1:]...)
			break
		}
	}
	delete(b.inFront, key)
	b.visited[key] = struct{}{}
	b.reserved[key] = struct{}{}
	return true
}

// Release returns the page reservation for a URL whose fetch failed. The URL
// stays visited; a failed fetch consumes no budget but is not retried through
// the frontier.
func (b *Blackboard) Release(raw string) {
	key, err := NormalizeURL(raw)
	if err != nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.reserved, key)
}

// RemainingBudget returns the pages still available (recorded plus reserved
// count against the cap) and the per-page character limit.
func (b *Blackboard) RemainingBudget() (pages, pageCharLimit int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remainingLocked(), b.charLimit
}

func (b *Blackboard) remainingLocked() int {
	r := b.pageCap - len(b.findings) - len(b.reserved)
	if r < 0 {
		r = 0
	}
	return r
}

// PageCharLimit returns the per-page processing cap.
func (b *Blackboard) PageCharLimit() int {
	return b.charLimit
}

// AllFindings returns a copy of the append-only findings sequence in
// insertion order.
func (b *Blackboard) AllFindings() []PageFinding {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]PageFinding, len(b.findings))
	copy(out, b.findings)
	return out
}

// Frontier returns a copy of the current frontier in discovery order, for
// prompt rendering. It does not reserve anything.
func (b *Blackboard) Frontier() []FrontierLink {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]FrontierLink, len(b.frontier))
	copy(out, b.frontier)
	return out
}

// Stats describes the board for logging and archival.
type Stats struct {
	Pages        int   `json:"pages"`
	FrontierSize int   `json:"frontier_size"`
	VisitedSize  int   `json:"visited_size"`
	Chars        int64 `json:"chars"`
}

// Stats returns current counters.
func (b *Blackboard) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Pages:        len(b.findings),
		FrontierSize: len(b.frontier),
		VisitedSize:  len(b.visited),
		Chars:        b.chars,
	}
}

type snapshot struct {
	Findings  []PageFinding  `json:"findings"`
	Frontier  []FrontierLink `json:"frontier"`
	Visited   []string       `json:"visited"`
	Chars     int64          `json:"chars"`
	PageCap   int            `json:"page_budget"`
	CharLimit int            `json:"page_char_limit"`
}

// Snapshot serializes the board. Only meaningful between research steps;
// in-flight reservations are not part of a snapshot.
func (b *Blackboard) Snapshot() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := snapshot{
		Findings:  b.findings,
		Frontier:  b.frontier,
		Chars:     b.chars,
		PageCap:   b.pageCap,
		CharLimit: b.charLimit,
	}
	for v := range b.visited {
		s.Visited = append(s.Visited, v)
	}
	return json.MarshalIndent(s, "", "  ")
}

// Restore rebuilds a board from Snapshot output.
func Restore(data []byte) (*Blackboard, error) {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("restore blackboard: %w", err)
	}
	b := NewWithBudget(s.PageCap, s.CharLimit)
	b.findings = s.Findings
	b.frontier = s.Frontier
	b.chars = s.Chars
	for _, v := range s.Visited {
		b.visited[v] = struct{}{}
	}
	for _, l := range s.Frontier {
		b.inFront[l.URL] = struct{}{}
	}
	for _, f := range s.Findings {
		if key, err := NormalizeURL(f.URL); err == nil {
			b.recorded[key] = struct{}{}
			b.visited[key] = struct{}{}
		}
	}
	return b, nil
}
