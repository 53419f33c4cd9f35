package research

import (
	"fmt"
	"strings"

	"leadscout/internal/blackboard"
	"leadscout/internal/lead"
	"leadscout/internal/tools"
)

const (
	maxFindingsInPrompt = 20
	maxFrontierInPrompt = 15
	summaryExcerptChars = 280
)

const researchSystemPrompt = `You are a web research assistant qualifying sales leads.
You work step by step: at each step you either search the web, fetch one of the
discovered URLs, or finish when the research goal is answered. Fetching spends
page budget; searching does not. Only URLs listed in the frontier can be
fetched. Prefer finishing as soon as the collected findings answer the goal.`

func actionPrompt(goal lead.ResearchGoal, board *blackboard.Blackboard) string {
	var sb strings.Builder
	pages, _ := board.RemainingBudget()

	fmt.Fprintf(&sb, "Research goal:\n%s\n\n", goal.Objective)

	findings := board.AllFindings()
	if len(findings) == 0 {
		sb.WriteString("Findings so far: none.\n\n")
	} else {
		fmt.Fprintf(&sb, "Findings so far (%d pages):\n", len(findings))
		start := 0
		if len(findings) > maxFindingsInPrompt {
			start = len(findings) - maxFindingsInPrompt
		}
		for _, f := range findings[start:] {
			fmt.Fprintf(&sb, "- %s (%s): %s\n", f.URL, orUntitled(f.Title), excerpt(f.Summary, summaryExcerptChars))
		}
		sb.WriteString("\n")
	}

	frontier := board.Frontier()
	if len(frontier) == 0 {
		sb.WriteString("Frontier: empty. Search to discover URLs.\n\n")
	} else {
		fmt.Fprintf(&sb, "Frontier (%d unvisited URLs, fetch targets must come from here):\n", len(frontier))
		for i, link := range frontier {
			if i >= maxFrontierInPrompt {
				fmt.Fprintf(&sb, "- ... and %d more\n", len(frontier)-maxFrontierInPrompt)
				break
			}
			fmt.Fprintf(&sb, "- %s (%s)\n", link.URL, link.Reason)
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "Page budget remaining: %d fetches.\n", pages)
	sb.WriteString("Choose the single next action.")
	return sb.String()
}

const analysisSystemPrompt = `You distill fetched web pages into research findings.
Summarize only what is relevant to the research goal, and list the absolute
URLs on the page worth visiting next. Do not invent URLs.`

func analysisPrompt(goal lead.ResearchGoal, page *tools.Page, content string, truncated bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Research goal:\n%s\n\n", goal.Objective)
	fmt.Fprintf(&sb, "Page URL: %s\n", page.URL)
	if page.Title != "" {
		fmt.Fprintf(&sb, "Page title: %s\n", page.Title)
	}
	if truncated {
		sb.WriteString("Note: the page content below was cut at the per-page budget; the page continues beyond it.\n")
	}
	fmt.Fprintf(&sb, "\nPage content:\n%s\n", content)
	return sb.String()
}

func excerpt(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

func orUntitled(title string) string {
	if strings.TrimSpace(title) == "" {
		return "untitled"
	}
	return title
}
