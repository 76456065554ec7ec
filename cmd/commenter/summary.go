package main

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Hekzory/CommentLLM/internal/commenter"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("197"))
	faintStyle   = lipgloss.NewStyle().Faint(true)
)

// printSummary writes a short report of what the run changed.
func printSummary(w io.Writer, report *commenter.Report, elapsed time.Duration) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Commented %d of %d file(s) in %s", len(report.Written)+len(report.Previewed), len(report.Sent), elapsed.Round(time.Millisecond))))

	for _, path := range report.Written {
		line := "  ✓ " + path
		if m, ok := report.Metrics[path]; ok {
			line += faintStyle.Render(fmt.Sprintf(" (+%d comment lines, %.0f%% comments)", m.After.CommentLines-m.Before.CommentLines, m.After.CommentRatio()))
		}
		fmt.Fprintln(w, successStyle.Render(line))
	}
	for _, path := range report.Previewed {
		fmt.Fprintln(w, successStyle.Render("  ~ "+path+" (dry run)"))
	}
	for _, path := range report.Unchanged {
		fmt.Fprintln(w, faintStyle.Render("  = "+path+" (unchanged)"))
	}
	for _, path := range report.Missing {
		fmt.Fprintln(w, warnStyle.Render("  ? "+path+" (missing from reply)"))
	}
	for _, err := range report.Skipped {
		fmt.Fprintln(w, warnStyle.Render("  - skipped: "+err.Error()))
	}
	for _, err := range report.Failed {
		fmt.Fprintln(w, errorStyle.Render("  ✗ "+err.Error()))
	}
}
