// Package lead defines the domain types shared across the research and
// classification loop: the lead under investigation, the research goals that
// drive the researcher, and the classification verdicts it produces.
package lead

import "fmt"

// Lead identifies one person or organization under research. Immutable once
// created; the ingestion layer builds it and everything downstream passes it
// by value.
type Lead struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	URL      string `json:"url"`
}

// String returns a compact identity for logs.
func (l Lead) String() string {
	if l.Username != "" {
		return l.Username
	}
	if l.Name != "" {
		return l.Name
	}
	return l.URL
}

// Validate checks the minimum identity needed to research a lead.
func (l Lead) Validate() error {
	if l.URL == "" {
		return fmt.Errorf("lead %q has no URL", l.String())
	}
	if l.Username == "" && l.Name == "" {
		return fmt.Errorf("lead with URL %s has neither username nor name", l.URL)
	}
	return nil
}

// ResearchGoal is a natural-language objective for one researcher invocation.
// ParentRound is the verdict round that spawned it; 0 marks the initial goal.
type ResearchGoal struct {
	Objective   string `json:"objective"`
	ParentRound int    `json:"parent_round,omitempty"`
}

// InitialGoal builds the first research goal for a lead: gather fit evidence
// starting from the lead's own page.
func InitialGoal(l Lead) ResearchGoal {
	return ResearchGoal{
		Objective: fmt.Sprintf(
			"Find information related to whether they might be an ideal customer, starting from the initial URL (profile page).\nLead: %s\nName: %s\nInitial URL: %s",
			l.Username, l.Name, l.URL),
	}
}
