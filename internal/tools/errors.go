package tools

import "fmt"

// SearchUnavailableError reports a search transport failure. One failed query
// is recovered locally by the research loop; it never aborts a run by itself.
type SearchUnavailableError struct {
	Query string
	Err   error
}

func (e *SearchUnavailableError) Error() string {
	return fmt.Sprintf("search unavailable for %q: %v", e.Query, e.Err)
}

func (e *SearchUnavailableError) Unwrap() error { return e.Err }

// FetchReason classifies why a page fetch failed.
type FetchReason string

const (
	FetchTimeout     FetchReason = "timeout"
	FetchHTTPError   FetchReason = "http_error"
	FetchUnreachable FetchReason = "unreachable"
)

// FetchError reports a failed page fetch. Status is set for http_error.
type FetchError struct {
	URL    string
	Reason FetchReason
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: %s (status %d): %v", e.URL, e.Reason, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Reason, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ReasoningError reports a reasoning call that failed after its retry: a
// transport error, malformed output, or output that failed validation.
// Terminal for the enclosing research or classification round.
type ReasoningError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *ReasoningError) Error() string {
	return fmt.Sprintf("reasoning op %s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *ReasoningError) Unwrap() error { return e.Err }
