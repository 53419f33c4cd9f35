package store

import (
	"path/filepath"
	"testing"
	"time"

	"leadscout/internal/blackboard"
	"leadscout/internal/lead"
)

func testRun(id string, finished time.Time) Run {
	return Run{
		ID:         id,
		Lead:       lead.Lead{Username: "octocat", Name: "Octo Cat", URL: "https://github.com/octocat"},
		Label:      lead.LabelStrongFit,
		Rationale:  "maintains a DSPy agent framework",
		Rounds:     2,
		Pages:      7,
		Chars:      41250,
		Outcome:    "satisfied",
		StartedAt:  finished.Add(-90 * time.Second),
		FinishedAt: finished,
	}
}

func TestOpenCreatesSchema(t *testing.T) {
	a, err := Open(filepath.Join(t.TempDir(), "sub", "runs.db"))
	if err != nil {
		t.Fatalf("Failed to open archive: %v", err)
	}
	defer a.Close()

	runs, err := a.RecentRuns(10)
	if err != nil {
		t.Fatalf("RecentRuns on empty archive: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("Expected empty archive, got %d runs", len(runs))
	}
}

func TestArchiveRunRoundTrip(t *testing.T) {
	a, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open archive: %v", err)
	}
	defer a.Close()

	finished := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	findings := []blackboard.PageFinding{
		{
			URL:     "https://github.com/octocat",
			Title:   "octocat",
			Summary: "Profile lists LLM tooling projects.",
			Goal:    "initial profile research",
			Links: []blackboard.FrontierLink{
				{URL: "https://github.com/octocat/agentkit", Reason: "pinned repo"},
			},
			FetchedAt: finished.Add(-time.Minute),
		},
		{
			URL:     "https://github.com/octocat/agentkit",
			Summary: "agentkit depends on dspy-ai.",
			Goal:    "check DSPy usage",
		},
	}

	id, err := a.ArchiveRun(testRun("", finished), findings)
	if err != nil {
		t.Fatalf("ArchiveRun failed: %v", err)
	}
	if id == "" {
		t.Fatal("ArchiveRun returned empty id")
	}

	runs, err := a.RecentRuns(10)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("Expected 1 run, got %d", len(runs))
	}
	got := runs[0]
	if got.ID != id {
		t.Errorf("Run ID = %q, want %q", got.ID, id)
	}
	if got.Label != lead.LabelStrongFit {
		t.Errorf("Label = %q, want %q", got.Label, lead.LabelStrongFit)
	}
	if got.Lead.Username != "octocat" || got.Lead.URL != "https://github.com/octocat" {
		t.Errorf("Lead identity mismatch: %+v", got.Lead)
	}
	if got.Rounds != 2 || got.Pages != 7 || got.Chars != 41250 {
		t.Errorf("Budget counters mismatch: %+v", got)
	}

	back, err := a.RunFindings(id)
	if err != nil {
		t.Fatalf("RunFindings failed: %v", err)
	}
	if len(back) != 2 {
		t.Fatalf("Expected 2 findings, got %d", len(back))
	}
	if back[0].URL != "https://github.com/octocat" {
		t.Errorf("Findings out of order: first is %s", back[0].URL)
	}
	if len(back[0].Links) != 1 || back[0].Links[0].URL != "https://github.com/octocat/agentkit" {
		t.Errorf("Links did not survive round trip: %+v", back[0].Links)
	}
	if back[1].Summary != "agentkit depends on dspy-ai." {
		t.Errorf("Summary mismatch: %q", back[1].Summary)
	}
}

func TestRecentRunsOrdersByFinishTime(t *testing.T) {
	a, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open archive: %v", err)
	}
	defer a.Close()

	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-old", "run-mid", "run-new"} {
		if _, err := a.ArchiveRun(testRun(id, base.Add(time.Duration(i)*time.Hour)), nil); err != nil {
			t.Fatalf("ArchiveRun %s failed: %v", id, err)
		}
	}

	runs, err := a.RecentRuns(2)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs with limit, got %d", len(runs))
	}
	if runs[0].ID != "run-new" || runs[1].ID != "run-mid" {
		t.Errorf("Wrong order: got %s, %s", runs[0].ID, runs[1].ID)
	}
}

func TestArchiveRunRejectsDuplicateID(t *testing.T) {
	a, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open archive: %v", err)
	}
	defer a.Close()

	run := testRun("fixed-id", time.Now().UTC())
	if _, err := a.ArchiveRun(run, nil); err != nil {
		t.Fatalf("First ArchiveRun failed: %v", err)
	}
	if _, err := a.ArchiveRun(run, nil); err == nil {
		t.Error("Expected duplicate run ID to fail")
	}
}

func TestArchiveSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	a, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to open archive: %v", err)
	}
	id, err := a.ArchiveRun(testRun("", time.Now().UTC()), []blackboard.PageFinding{
		{URL: "https://acme.example/about", Summary: "s"},
	})
	if err != nil {
		t.Fatalf("ArchiveRun failed: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	b, err := Open(path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer b.Close()

	runs, err := b.RecentRuns(10)
	if err != nil {
		t.Fatalf("RecentRuns after reopen failed: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != id {
		t.Fatalf("Archived run missing after reopen: %+v", runs)
	}
	findings, err := b.RunFindings(id)
	if err != nil {
		t.Fatalf("RunFindings after reopen failed: %v", err)
	}
	if len(findings) != 1 {
		t.Errorf("Expected 1 finding after reopen, got %d", len(findings))
	}
}
