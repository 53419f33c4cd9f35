package research

import (
	"errors"
	"fmt"
	"strings"

	"leadscout/internal/tools"
)

// nextAction is the reasoning component's choice for one loop step.
type nextAction struct {
	Action string `json:"action"`
	Query  string `json:"query,omitempty"`
	URL    string `json:"url,omitempty"`
	Reason string `json:"reason,omitempty"`
}

const (
	actionSearch = "search"
	actionFetch  = "fetch"
	actionFinish = "finish"
)

func (a *nextAction) Validate() error {
	a.Action = strings.ToLower(strings.TrimSpace(a.Action))
	switch a.Action {
	case actionSearch:
		if strings.TrimSpace(a.Query) == "" {
			return errors.New("search action requires a query")
		}
	case actionFetch:
		if strings.TrimSpace(a.URL) == "" {
			return errors.New("fetch action requires a url")
		}
	case actionFinish:
	default:
		return fmt.Errorf("unknown action %q", a.Action)
	}
	return nil
}

var actionSchema = tools.Schema{
	Name:        "next_action",
	Description: "The single next research step to take",
	Properties: map[string]tools.Property{
		"action": {
			Type:        "string",
			Enum:        []string{actionSearch, actionFetch, actionFinish},
			Description: "search the web, fetch one frontier URL, or finish because the goal is answered",
		},
		"query": {
			Type:        "string",
			Description: "search query, required when action is search",
		},
		"url": {
			Type:        "string",
			Description: "frontier URL to fetch, required when action is fetch",
		},
		"reason": {
			Type:        "string",
			Description: "one sentence on why this step moves the goal forward",
		},
	},
	Required: []string{"action"},
}

// pageAnalysis is the reasoning component's digest of one fetched page.
type pageAnalysis struct {
	Summary string `json:"summary"`
	Links   []struct {
		URL    string `json:"url"`
		Reason string `json:"reason,omitempty"`
	} `json:"links"`
}

func (p *pageAnalysis) Validate() error {
	if strings.TrimSpace(p.Summary) == "" {
		return errors.New("summary must not be empty")
	}
	return nil
}

var analysisSchema = tools.Schema{
	Name:        "page_finding",
	Description: "Evidence distilled from one fetched page",
	Properties: map[string]tools.Property{
		"summary": {
			Type:        "string",
			Description: "evidence from this page relevant to the research goal, a few sentences",
		},
		"links": {
			Type:        "array",
			Description: "absolute URLs on this page worth visiting next, most promising first",
			Items: &tools.Property{
				Type: "object",
				Properties: map[string]tools.Property{
					"url":    {Type: "string", Description: "absolute http(s) URL"},
					"reason": {Type: "string", Description: "why this link looks promising"},
				},
				Required: []string{"url"},
			},
		},
	},
	Required: []string{"summary", "links"},
}
