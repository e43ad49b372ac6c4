package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ShayCichocki/forge/pkg/models"
)

var (
	infoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("34"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	timeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	actorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
)

// printStatus prints a status message with a colored symbol.
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}

func printSuccess(message string) { printStatus("✓", message, color.FgGreen) }
func printWarning(message string) { printStatus("!", message, color.FgYellow) }

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// statusStyle picks the color for an event status.
func statusStyle(s models.EventStatus) lipgloss.Style {
	switch s {
	case models.EventWarning:
		return warnStyle
	case models.EventError, models.EventCritical:
		return errorStyle
	default:
		return infoStyle
	}
}

// formatMoney renders a value with two decimals and thousands separators.
func formatMoney(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	whole, frac, _ := strings.Cut(s, ".")
	neg := strings.HasPrefix(whole, "-")
	whole = strings.TrimPrefix(whole, "-")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func renderProposals(w io.Writer, proposals []models.Proposal) {
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Title", "Status", "Value", "Review", "Submitted"})
	for _, p := range proposals {
		review := ""
		if p.NeedsReview {
			review = "yes"
		}
		t.AppendRow(table.Row{p.ID, truncate(p.Title, 40), p.Status, formatMoney(p.EstimatedValue), review, formatTime(p.SubmittedAt)})
	}
	t.Render()
}

func renderProposal(w io.Writer, p *models.Proposal) {
	fmt.Fprintln(w, headingStyle.Render(p.Title))
	fmt.Fprintf(w, "%s  %s  value %s\n", dimStyle.Render(p.ID), p.Status, formatMoney(p.EstimatedValue))
	if p.NeedsReview {
		fmt.Fprintln(w, warnStyle.Render("needs review: "+p.ReviewReason))
	}
	if p.ProjectID != "" {
		fmt.Fprintf(w, "project %s\n", p.ProjectID)
	}

	sections := []models.Field{
		{Label: "Description", Value: p.Description},
		{Label: "Problem understanding", Value: p.ProblemUnderstanding},
		{Label: "Solution", Value: p.SolutionProposal},
		{Label: "Scope", Value: p.Scope},
		{Label: "Technologies", Value: p.TechnologiesSuggested},
		{Label: "Estimated time", Value: p.EstimatedTime},
		{Label: "Terms and conditions", Value: p.TermsConditions},
	}
	var b strings.Builder
	for i, s := range sections {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(headingStyle.Render(s.Label))
		b.WriteString("\n")
		b.WriteString(s.Value)
	}
	fmt.Fprintln(w, panelStyle.Render(b.String()))
}

func renderProjects(w io.Writer, projects []models.Project) {
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Name", "Client", "Status", "Progress", "Updated"})
	for _, p := range projects {
		t.AppendRow(table.Row{p.ID, truncate(p.Name, 40), p.ClientName, p.Status, fmt.Sprintf("%d%%", p.Progress), formatTime(p.UpdatedAt)})
	}
	t.Render()
}

func renderEvents(w io.Writer, events []models.Event) {
	for _, e := range events {
		fmt.Fprintf(w, "%s %s %s %s %s %s\n",
			timeStyle.Render(e.Timestamp.Local().Format("15:04:05")),
			statusStyle(e.Status).Render(fmt.Sprintf("%-8s", e.Status)),
			fmt.Sprintf("%-22s", e.Type),
			actorStyle.Render(fmt.Sprintf("%-10s", e.Actor)),
			dimStyle.Render(e.SubjectID),
			e.Detail,
		)
	}
}
