// Package report renders a persisted Report and its findings to a
// terminal, grounded on the teacher corpus's go-pretty/lipgloss
// reporting style.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/iasik/orchestrator/internal/models"
)

const (
	colorCritical  = "196"
	colorHigh      = "208"
	colorMedium    = "220"
	colorLow       = "245"
	colorInfo      = "245"
	colorHeader    = "255"
	colorHealthOK  = "154"
	colorHealthBad = "196"
)

// Styles holds the lipgloss styles used when rendering to a color
// terminal. Use NoColorStyles for plain output (e.g. piped to a file).
type Styles struct {
	Header   lipgloss.Style
	Healthy  lipgloss.Style
	Unhealthy lipgloss.Style
	Dim      lipgloss.Style
}

// DefaultStyles returns the color palette used for terminal rendering.
func DefaultStyles() Styles {
	return Styles{
		Header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorHeader)),
		Healthy:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorHealthOK)),
		Unhealthy: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorHealthBad)),
		Dim:       lipgloss.NewStyle().Foreground(lipgloss.Color(colorInfo)),
	}
}

// NoColorStyles returns unstyled components for plain output.
func NoColorStyles() Styles {
	return Styles{
		Header:    lipgloss.NewStyle(),
		Healthy:   lipgloss.NewStyle(),
		Unhealthy: lipgloss.NewStyle(),
		Dim:       lipgloss.NewStyle(),
	}
}

func severityColor(s models.Severity) string {
	switch s {
	case models.SeverityCritical:
		return colorCritical
	case models.SeverityHigh:
		return colorHigh
	case models.SeverityMedium:
		return colorMedium
	case models.SeverityLow:
		return colorLow
	default:
		return colorInfo
	}
}

// Render writes a full human-readable rendering of report and its
// findings to w: a header, a severity-count table, a findings table,
// and a fix diff for every finding carrying a SuggestedFix.
func Render(w io.Writer, report *models.Report, findings []models.ReviewFinding, styles Styles) {
	fmt.Fprintln(w, styles.Header.Render(fmt.Sprintf("Report %s — project %s", report.ID, report.ProjectID)))
	fmt.Fprintln(w, healthLine(report.HealthScore, styles))
	fmt.Fprintln(w)

	fmt.Fprintln(w, renderCountsTable(report.Counts))
	fmt.Fprintln(w)

	if len(findings) > 0 {
		fmt.Fprintln(w, renderFindingsTable(findings))
		fmt.Fprintln(w)
	}

	if len(report.Recommendations) > 0 {
		fmt.Fprintln(w, styles.Header.Render("Recommendations"))
		for _, r := range report.Recommendations {
			fmt.Fprintln(w, "  - "+r)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, styles.Dim.Render(report.Summary))

	for _, f := range findings {
		if f.SuggestedFix == "" && f.OriginalSnippet == "" {
			continue
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, styles.Header.Render(fmt.Sprintf("Fix: %s (%s)", f.Symbol, f.FilePath)))
		if f.SuggestedFix != "" {
			fmt.Fprintln(w, f.SuggestedFix)
		}
		if diff := RenderSnippetDiff(f.OriginalSnippet, f.FixedSnippet); diff != "" {
			fmt.Fprintln(w, diff)
		}
	}
}

func healthLine(score int, styles Styles) string {
	style := styles.Healthy
	if score < 70 {
		style = styles.Unhealthy
	}
	return style.Render(fmt.Sprintf("Health score: %d/100", score))
}

func renderCountsTable(counts models.SeverityCounts) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Critical", "High", "Medium", "Low", "Info"})
	tbl.AppendRow(table.Row{counts.Critical, counts.High, counts.Medium, counts.Low, counts.Info})
	return tbl.Render()
}

func renderFindingsTable(findings []models.ReviewFinding) string {
	sorted := make([]models.ReviewFinding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool { return severityRank(sorted[i].Severity) > severityRank(sorted[j].Severity) })

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Severity", "File", "Symbol", "Description", "Confidence"})
	for _, f := range sorted {
		location := f.FilePath
		if f.LineRange != nil {
			location = fmt.Sprintf("%s:%d-%d", f.FilePath, f.LineRange.Start, f.LineRange.End)
		}
		tbl.AppendRow(table.Row{string(f.Severity), location, f.Symbol, f.Description, fmt.Sprintf("%.2f", f.Confidence)})
	}
	tbl.AppendFooter(table.Row{"", "", "", "Total", len(sorted)})
	return tbl.Render()
}

func severityRank(s models.Severity) int {
	switch s {
	case models.SeverityCritical:
		return 4
	case models.SeverityHigh:
		return 3
	case models.SeverityMedium:
		return 2
	case models.SeverityLow:
		return 1
	default:
		return 0
	}
}

// RenderSnippetDiff renders a unified-looking +/- diff between original
// and fixed using a character-level diff with semantic cleanup, suitable
// for terminal display.
func RenderSnippetDiff(original, fixed string) string {
	if original == "" && fixed == "" {
		return ""
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(original, fixed, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var b strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(colorCritical)).Render("-" + d.Text))
		case diffmatchpatch.DiffInsert:
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(colorHealthOK)).Render("+" + d.Text))
		default:
			b.WriteString(d.Text)
		}
	}
	return b.String()
}
