package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/thesavant42/dragos-portal/internal/portalsync"
)

var (
	// Color palette
	purple = lipgloss.Color("99")  // for borders
	pink   = lipgloss.Color("205") // for header text
	white  = lipgloss.Color("255")
	green  = lipgloss.Color("82")
	yellow = lipgloss.Color("220")
	red    = lipgloss.Color("196")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(pink)

	rowStyle = lipgloss.NewStyle().
			Foreground(white)

	warnRowStyle = lipgloss.NewStyle().
			Foreground(yellow).
			Bold(true)

	borderStyle = lipgloss.NewStyle().
			Foreground(purple)
)

// PrintProgress prints a progress line during a paginated fetch
func PrintProgress(resource string, page, totalPages, fetched int) {
	progressStyle := lipgloss.NewStyle().Foreground(yellow)
	fmt.Printf("\r%s", progressStyle.Render(fmt.Sprintf("Fetching %s... Page %d/%d (%d records)", resource, page, totalPages, fetched)))
	if page >= totalPages {
		fmt.Println()
	}
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	successStyle := lipgloss.NewStyle().
		Foreground(green).
		Bold(true)
	fmt.Println(successStyle.Render(message))
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	warningStyle := lipgloss.NewStyle().
		Foreground(yellow).
		Bold(true)
	fmt.Println(warningStyle.Render("Warning: " + message))
}

// PrintError prints an error message
func PrintError(message string) {
	errorStyle := lipgloss.NewStyle().
		Foreground(red).
		Bold(true)
	fmt.Println(errorStyle.Render("Error: " + message))
}

// PrintSummary prints the result of a sync run
func PrintSummary(result *portalsync.Result, includeReports bool) {
	fmt.Println()
	fmt.Println(titleStyle.Render("Dragos Portal Sync"))
	fmt.Println(FormatSummary(result, includeReports))
	fmt.Println()
}

// FormatSummary renders a sync result as a bordered two-column table.
//
// Lipgloss only styles the text; the table structure is plain string formatting.
func FormatSummary(result *portalsync.Result, includeReports bool) string {
	type row struct {
		label string
		value string
		warn  bool
	}

	since := result.Since
	if since == "" {
		since = "full fetch"
	}

	rows := []row{
		{label: "Run", value: result.RunID},
		{label: "Updated after", value: since},
		{label: "Indicators", value: fmt.Sprintf("%d", result.Indicators)},
	}
	if includeReports {
		rows = append(rows,
			row{label: "Reports", value: fmt.Sprintf("%d", result.Reports)},
			row{label: "Documents saved", value: fmt.Sprintf("%d", result.AssetsSaved)},
			row{label: "Documents failed", value: fmt.Sprintf("%d", result.AssetsFailed), warn: result.AssetsFailed > 0},
		)
	}
	if result.DumpPath != "" {
		rows = append(rows, row{label: "Payload", value: result.DumpPath})
	}
	rows = append(rows, row{label: "Elapsed", value: result.Elapsed.Round(time.Millisecond).String()})

	colWidths := []int{18, 0}
	for _, r := range rows {
		if len(r.value) > colWidths[1] {
			colWidths[1] = len(r.value)
		}
	}
	totalWidth := colWidths[0] + colWidths[1] + 7 // borders + " │ " separators
	separator := strings.Repeat("─", totalWidth-2)

	var b strings.Builder
	b.WriteString(borderStyle.Render("┌" + separator + "┐"))
	b.WriteString("\n")
	for _, r := range rows {
		rowText := fmt.Sprintf("│ %-*s │ %-*s │", colWidths[0], r.label, colWidths[1], r.value)
		if r.warn {
			b.WriteString(warnRowStyle.Render(rowText))
		} else {
			b.WriteString(rowStyle.Render(rowText))
		}
		b.WriteString("\n")
	}
	b.WriteString(borderStyle.Render("└" + separator + "┘"))

	return b.String()
}
