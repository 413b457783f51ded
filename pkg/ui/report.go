// Package ui renders the operator-facing run report on the terminal.
package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"prodfetch/pkg/batch"
)

const (
	barFilled = "█"
	barEmpty  = "░"
)

// ProgressBar renders done/total as a bar of the given width
func ProgressBar(done, total, width int) string {
	if width <= 0 {
		return ""
	}
	filled := 0
	if total > 0 {
		filled = done * width / total
	}
	if filled > width {
		filled = width
	}
	return barFilledStyle.Render(strings.Repeat(barFilled, filled)) +
		barEmptyStyle.Render(strings.Repeat(barEmpty, width-filled))
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

func row(label string, value interface{}) string {
	return labelStyle.Render(label) + valueStyle.Render(fmt.Sprint(value))
}

// RenderSummary formats a finished run
func RenderSummary(s *batch.Summary) string {
	if s == nil {
		return ""
	}

	var status string
	switch {
	case s.Interrupted:
		status = warnStyle.Render(fmt.Sprintf("Interrupted after %d of %d items", s.Processed+s.Failed, s.Pending))
	case !s.WorkDone:
		status = dimStyle.Render("No work remaining")
	case s.Failed > 0:
		status = errorStyle.Render(fmt.Sprintf("Completed with %d failed items", s.Failed))
	default:
		status = successStyle.Render("Completed")
	}

	done := s.Processed + s.Failed
	lines := []string{
		titleStyle.Render("prodfetch run"),
		"",
		row("Input rows", s.Total),
		row("Already processed", s.AlreadyProcessed),
		row("Pending", s.Pending),
		row("Processed", s.Processed),
		row("Failed", s.Failed),
		row("Skipped", s.Skipped),
		row("Images saved", s.ImagesSaved),
		row("Pauses", fmt.Sprintf("%d (%s)", s.Pauses, FormatDuration(s.PauseTime))),
		row("Duration", FormatDuration(s.Duration)),
		"",
		ProgressBar(done, s.Pending, 30) + " " + dimStyle.Render(fmt.Sprintf("%d/%d", done, s.Pending)),
		status,
	}

	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// PrintSummary writes the rendered summary to w
func PrintSummary(w io.Writer, s *batch.Summary) {
	fmt.Fprintln(w, RenderSummary(s))
}

// PrintPending lists the item codes a dry run would process
func PrintPending(w io.Writer, codes []string) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%d items pending", len(codes))))
	for _, code := range codes {
		fmt.Fprintln(w, "  "+valueStyle.Render(code))
	}
}

// PrintError writes an error message in red
func PrintError(w io.Writer, msg string, err error) {
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	fmt.Fprintln(w, errorStyle.Render(msg))
}

// PrintSuccess writes a success message in green
func PrintSuccess(w io.Writer, msg string) {
	fmt.Fprintln(w, successStyle.Render(msg))
}
