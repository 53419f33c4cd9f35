// Package trace records research run events as JSON lines, so a lead's run
// can be replayed and debugged after the fact.
package trace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType labels one step of a run.
type EventType string

const (
	EventRunStarted      EventType = "run_started"
	EventActionDecided   EventType = "action_decided"
	EventSearchIssued    EventType = "search_issued"
	EventPageFetched     EventType = "page_fetched"
	EventFindingRecorded EventType = "finding_recorded"
	EventRoundEvaluated  EventType = "round_evaluated"
	EventVerdictIssued   EventType = "verdict_issued"
	EventRunFinished     EventType = "run_finished"
)

// Event is one JSON line in the trace file.
type Event struct {
	Timestamp int64          `json:"ts"` // unix milliseconds
	Type      EventType      `json:"event"`
	RunID     string         `json:"run,omitempty"`
	Lead      string         `json:"lead,omitempty"`
	Target    string         `json:"target,omitempty"` // URL or query
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Recorder appends events to a shared file. All methods are safe on a nil
// receiver, so callers can thread an optional recorder without guards.
type Recorder struct {
	runID string
	lead  string

	mu   *sync.Mutex
	file *os.File
}

// NewRecorder opens (or creates) the trace file in append mode.
func NewRecorder(path string) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create trace dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	return &Recorder{mu: &sync.Mutex{}, file: file}, nil
}

// WithRun returns a recorder scoped to one run; events it writes carry the
// run ID and lead name. The underlying file is shared.
func (r *Recorder) WithRun(runID, lead string) *Recorder {
	if r == nil {
		return nil
	}
	return &Recorder{runID: runID, lead: lead, mu: r.mu, file: r.file}
}

// Close closes the trace file.
func (r *Recorder) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.file.Close()
	r.file = nil
	return err
}

// Record writes one event, filling in timestamp and run scope.
func (r *Recorder) Record(ev Event) {
	if r == nil || r.file == nil {
		return
	}
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}
	if ev.RunID == "" {
		ev.RunID = r.runID
	}
	if ev.Lead == "" {
		ev.Lead = r.lead
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return
	}
	r.file.Write(append(data, '\n'))
}

func (r *Recorder) RunStarted(goal string) {
	r.Record(Event{Type: EventRunStarted, Target: goal, Success: true})
}

func (r *Recorder) ActionDecided(action, target string, fields map[string]any) {
	ev := Event{Type: EventActionDecided, Target: target, Success: true, Fields: fields}
	if ev.Fields == nil {
		ev.Fields = map[string]any{}
	}
	ev.Fields["action"] = action
	r.Record(ev)
}

func (r *Recorder) SearchIssued(query string, results int, err error) {
	r.Record(Event{
		Type:    EventSearchIssued,
		Target:  query,
		Success: err == nil,
		Error:   errString(err),
		Fields:  map[string]any{"results": results},
	})
}

func (r *Recorder) PageFetched(url string, chars int, err error) {
	r.Record(Event{
		Type:    EventPageFetched,
		Target:  url,
		Success: err == nil,
		Error:   errString(err),
		Fields:  map[string]any{"chars": chars},
	})
}

func (r *Recorder) FindingRecorded(url string, links, pagesUsed int) {
	r.Record(Event{
		Type:    EventFindingRecorded,
		Target:  url,
		Success: true,
		Fields:  map[string]any{"links": links, "pages_used": pagesUsed},
	})
}

func (r *Recorder) RoundEvaluated(round int, label string, needsMore bool) {
	r.Record(Event{
		Type:    EventRoundEvaluated,
		Success: true,
		Fields:  map[string]any{"round": round, "label": label, "needs_more_research": needsMore},
	})
}

func (r *Recorder) VerdictIssued(label, rationale string, rounds int) {
	r.Record(Event{
		Type:    EventVerdictIssued,
		Success: true,
		Fields:  map[string]any{"label": label, "rationale": rationale, "rounds": rounds},
	})
}

func (r *Recorder) RunFinished(outcome string, pages, steps int, err error) {
	r.Record(Event{
		Type:    EventRunFinished,
		Success: err == nil,
		Error:   errString(err),
		Fields:  map[string]any{"outcome": outcome, "pages": pages, "steps": steps},
	})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
