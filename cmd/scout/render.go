package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"leadscout/internal/blackboard"
	"leadscout/internal/lead"
	"leadscout/internal/pipeline"
	"leadscout/internal/store"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	strongStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A")).Bold(true)
	weakStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC107"))
	noFitStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935")).Bold(true)
)

func labelStyle(l lead.Label) lipgloss.Style {
	switch l {
	case lead.LabelStrongFit:
		return strongStyle
	case lead.LabelWeakFit:
		return weakStyle
	default:
		return noFitStyle
	}
}

// table renders aligned columns with a styled header row. Cells carry their
// own styling; widths are computed on the unstyled text.
type table struct {
	headers []string
	rows    [][]string
	styles  [][]lipgloss.Style
}

func newTable(headers ...string) *table {
	return &table{headers: headers}
}

func (t *table) addRow(cells ...string) {
	t.rows = append(t.rows, cells)
	t.styles = append(t.styles, nil)
}

func (t *table) styleCell(row, col int, s lipgloss.Style) {
	for len(t.styles[row]) <= col {
		t.styles[row] = append(t.styles[row], cellStyle)
	}
	t.styles[row][col] = s.Padding(0, 1)
}

func (t *table) render() string {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}
	for i := range widths {
		widths[i] += 2
	}

	var sb strings.Builder
	for i, h := range t.headers {
		sb.WriteString(headerStyle.Width(widths[i]).Render(h))
	}
	sb.WriteString("\n")

	total := 0
	for _, w := range widths {
		total += w
	}
	sb.WriteString(mutedStyle.Render(strings.Repeat("-", total)))
	sb.WriteString("\n")

	for r, row := range t.rows {
		for c, cell := range row {
			if c >= len(widths) {
				continue
			}
			style := cellStyle
			if r < len(t.styles) && c < len(t.styles[r]) && t.styles[r] != nil {
				style = t.styles[r][c]
			}
			sb.WriteString(style.Width(widths[c]).Render(cell))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func shortDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}

// renderResults renders one row per lead with the verdict summary.
func renderResults(results []pipeline.LeadResult) string {
	t := newTable("LEAD", "LABEL", "ROUNDS", "PAGES", "TIME", "STATUS")
	for i, res := range results {
		label, rounds := "-", "-"
		if res.Verdict != nil {
			label = string(res.Verdict.Label)
			rounds = fmt.Sprintf("%d", res.Verdict.Round)
		}
		status := "ok"
		if res.Err != nil {
			status = "error"
		}
		t.addRow(res.Lead.String(), label, rounds,
			fmt.Sprintf("%d", res.Stats.Pages), shortDuration(res.Duration), status)
		if res.Verdict != nil {
			t.styleCell(i, 1, labelStyle(res.Verdict.Label))
		}
		if res.Err != nil {
			t.styleCell(i, 5, errStyle)
		}
	}
	return t.render()
}

// renderVerdict renders the full single-lead verdict with its rationale.
func renderVerdict(res pipeline.LeadResult) string {
	var sb strings.Builder
	sb.WriteString(renderResults([]pipeline.LeadResult{res}))
	if res.Verdict != nil {
		sb.WriteString("\n")
		sb.WriteString(titleStyle.Render("Rationale"))
		sb.WriteString("\n" + res.Verdict.Rationale + "\n")
	}
	if res.RunID != "" {
		sb.WriteString(mutedStyle.Render("run " + res.RunID))
		sb.WriteString("\n")
	}
	return sb.String()
}

// renderRuns renders archived runs, most recent first.
func renderRuns(runs []store.Run) string {
	if len(runs) == 0 {
		return mutedStyle.Render("no archived runs") + "\n"
	}
	t := newTable("RUN", "LEAD", "LABEL", "ROUNDS", "PAGES", "FINISHED")
	for i, run := range runs {
		id := run.ID
		if len(id) > 8 {
			id = id[:8]
		}
		t.addRow(id, run.Lead.String(), string(run.Label),
			fmt.Sprintf("%d", run.Rounds), fmt.Sprintf("%d", run.Pages),
			run.FinishedAt.Local().Format("2006-01-02 15:04"))
		t.styleCell(i, 2, labelStyle(run.Label))
	}
	return t.render()
}

// renderFindings renders the evidence board as a numbered list.
func renderFindings(findings []blackboard.PageFinding) string {
	if len(findings) == 0 {
		return mutedStyle.Render("no findings") + "\n"
	}
	var sb strings.Builder
	for i, f := range findings {
		sb.WriteString(titleStyle.Render(fmt.Sprintf("%d. %s", i+1, f.URL)))
		sb.WriteString("\n")
		if f.Title != "" {
			sb.WriteString(mutedStyle.Render(f.Title))
			sb.WriteString("\n")
		}
		sb.WriteString(f.Summary)
		sb.WriteString("\n")
		if f.Goal != "" {
			sb.WriteString(mutedStyle.Render("goal: " + f.Goal))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
