package main

import (
	"strings"
	"testing"
	"time"

	"leadscout/internal/blackboard"
	"leadscout/internal/lead"
	"leadscout/internal/pipeline"
	"leadscout/internal/store"
)

func TestRenderResults(t *testing.T) {
	results := []pipeline.LeadResult{
		{
			Lead:     lead.Lead{Username: "octocat", URL: "https://github.com/octocat"},
			Verdict:  &lead.Verdict{Label: lead.LabelStrongFit, Rationale: "active org", Round: 2},
			Stats:    blackboard.Stats{Pages: 4},
			Duration: 3200 * time.Millisecond,
		},
		{
			Lead:    lead.Lead{Username: "ghost", URL: "https://github.com/ghost"},
			Verdict: lead.DefaultVerdict(),
			Err:     errTest,
		},
	}

	out := renderResults(results)
	for _, want := range []string{"LEAD", "LABEL", "octocat", "strong_fit", "ghost", "not_a_fit", "error"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

var errTest = &testError{}

type testError struct{}

func (*testError) Error() string { return "boom" }

func TestRenderVerdictIncludesRationale(t *testing.T) {
	res := pipeline.LeadResult{
		Lead:    lead.Lead{Username: "acme", URL: "https://github.com/acme"},
		Verdict: &lead.Verdict{Label: lead.LabelWeakFit, Rationale: "small but growing team", Round: 1},
		RunID:   "run-123",
	}
	out := renderVerdict(res)
	if !strings.Contains(out, "small but growing team") {
		t.Errorf("rationale missing:\n%s", out)
	}
	if !strings.Contains(out, "run-123") {
		t.Errorf("run id missing:\n%s", out)
	}
}

func TestRenderRuns(t *testing.T) {
	if out := renderRuns(nil); !strings.Contains(out, "no archived runs") {
		t.Errorf("empty case wrong:\n%s", out)
	}

	runs := []store.Run{{
		ID:         "0123456789abcdef",
		Lead:       lead.Lead{Username: "acme", URL: "https://github.com/acme"},
		Label:      lead.LabelNotAFit,
		Rounds:     1,
		Pages:      2,
		FinishedAt: time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC),
	}}
	out := renderRuns(runs)
	if !strings.Contains(out, "01234567") {
		t.Errorf("expected truncated run id:\n%s", out)
	}
	if strings.Contains(out, "0123456789abcdef") {
		t.Errorf("expected id truncated to 8 chars:\n%s", out)
	}
	if !strings.Contains(out, "not_a_fit") {
		t.Errorf("label missing:\n%s", out)
	}
}

func TestRenderFindings(t *testing.T) {
	if out := renderFindings(nil); !strings.Contains(out, "no findings") {
		t.Errorf("empty case wrong:\n%s", out)
	}

	findings := []blackboard.PageFinding{
		{URL: "https://acme.dev", Title: "Acme", Summary: "Ships a robotics SDK.", Goal: "initial research"},
		{URL: "https://acme.dev/pricing", Summary: "Team and enterprise tiers."},
	}
	out := renderFindings(findings)
	for _, want := range []string{"1. https://acme.dev", "2. https://acme.dev/pricing", "Ships a robotics SDK.", "goal: initial research"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
