package classify

import (
	"fmt"
	"strings"

	"leadscout/internal/blackboard"
	"leadscout/internal/lead"
)

const classifySystemPrompt = `You classify sales leads against an ideal customer profile.

Judge only from the evidence provided. Lead quality is one of exactly three
classes: strong_fit, weak_fit, or not_a_fit.

Either commit to a verdict now, or set needs_more_research to true with one
concrete further_investigation goal for the researcher. More research has a
real cost: request it only when the verdict genuinely hinges on missing
information, never for leads already shaping up as weak_fit or not_a_fit.`

const forceFinalNote = `No further research is possible. Commit to a final lead quality now and set needs_more_research to false.`

func verdictPrompt(l lead.Lead, icp ICP, board *blackboard.Blackboard, forceFinal bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Lead: %s\nName: %s\nURL: %s\n\n", l.Username, l.Name, l.URL)
	if offering := strings.TrimSpace(icp.Offering); offering != "" {
		fmt.Fprintf(&sb, "Offering:\n%s\n\n", offering)
	}
	if profile := strings.TrimSpace(icp.Profile); profile != "" {
		fmt.Fprintf(&sb, "Ideal customer profile:\n%s\n\n", profile)
	}
	sb.WriteString(leadContext(board))
	if forceFinal {
		sb.WriteString("\n" + forceFinalNote + "\n")
	}
	return sb.String()
}

// leadContext renders every finding in full; unlike the research loop's
// action prompt, the verdict should weigh the complete evidence.
func leadContext(board *blackboard.Blackboard) string {
	findings := board.AllFindings()
	if len(findings) == 0 {
		return "Research evidence: none gathered.\n"
	}
	var sb strings.Builder
	sb.WriteString("Research evidence:\n\n")
	for _, f := range findings {
		fmt.Fprintf(&sb, "URL: %s\n", f.URL)
		if f.Title != "" {
			fmt.Fprintf(&sb, "Title: %s\n", f.Title)
		}
		fmt.Fprintf(&sb, "Summary: %s\n", f.Summary)
		if f.Goal != "" {
			fmt.Fprintf(&sb, "Research goal: %s\n", f.Goal)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
