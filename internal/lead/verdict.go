package lead

import (
	"fmt"
	"strings"
)

// Label is the closed set of classification outcomes.
type Label string

const (
	LabelStrongFit Label = "strong_fit"
	LabelWeakFit   Label = "weak_fit"
	LabelNotAFit   Label = "not_a_fit"
)

// Labels lists the valid classification labels in rubric order.
var Labels = []Label{LabelStrongFit, LabelWeakFit, LabelNotAFit}

// ParseLabel maps a model-produced label string onto the closed set.
// Tolerates spaces, hyphens and case differences but nothing else.
func ParseLabel(s string) (Label, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	switch Label(norm) {
	case LabelStrongFit, LabelWeakFit, LabelNotAFit:
		return Label(norm), nil
	}
	return "", fmt.Errorf("unknown classification label %q", s)
}

// Verdict is one classification round's output. The last verdict produced for
// a lead is the final one.
type Verdict struct {
	Label             Label  `json:"lead_quality"`
	Rationale         string `json:"rationale"`
	NeedsMoreResearch bool   `json:"needs_more_research"`
	FollowUp          string `json:"further_investigation,omitempty"`
	Round             int    `json:"round,omitempty"`
}

// DefaultVerdict is returned when classification fails before any verdict
// exists.
func DefaultVerdict() *Verdict {
	return &Verdict{
		Label:     LabelNotAFit,
		Rationale: "insufficient evidence: classification did not complete",
	}
}

// Validate normalizes the label onto the closed set and rejects anything
// outside it. Called at the reasoning boundary before a verdict is trusted.
func (v *Verdict) Validate() error {
	label, err := ParseLabel(string(v.Label))
	if err != nil {
		return err
	}
	v.Label = label
	if v.Rationale == "" {
		return fmt.Errorf("verdict has no rationale")
	}
	return nil
}

// Final reports whether this verdict ends the classification loop on its own:
// either no more research is requested or there is no follow-up objective to
// pursue.
func (v *Verdict) Final() bool {
	return !v.NeedsMoreResearch || strings.TrimSpace(v.FollowUp) == ""
}
