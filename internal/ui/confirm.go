package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Confirm draws a warning box listing what is about to happen and asks the
// user to type phrase. It returns true only for an exact match.
func Confirm(in io.Reader, out io.Writer, title string, items []string, phrase string) bool {
	width := GetTerminalWidth()

	lines := []string{"", WarningTitleStyle.Render(fmt.Sprintf("   %s  WARNING  ─  %s", WarningMarker, title)), ""}
	for _, item := range items {
		lines = append(lines, lipgloss.NewStyle().Foreground(TextColor).Render("   • "+item))
	}
	lines = append(lines, "")

	_, _ = fmt.Fprintln(out, resultBoxStyle(width, WarningColor).Render(strings.Join(lines, "\n")))
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprint(out, WarningTitleStyle.Render(fmt.Sprintf("To proceed, type %q and press Enter: ", phrase)))

	input, err := bufio.NewReader(in).ReadString('\n')
	_, _ = fmt.Fprintln(out)
	if err != nil && input == "" {
		return false
	}
	if strings.TrimSpace(input) == phrase {
		return true
	}

	_, _ = fmt.Fprintln(out, lipgloss.NewStyle().Foreground(MutedColor).Render("  Operation cancelled."))
	return false
}

// ConfirmBulkStatusChange asks before changing the status of several
// devices at once.
func ConfirmBulkStatusChange(in io.Reader, out io.Writer, count int, status string) bool {
	return Confirm(in, out,
		"BULK STATUS CHANGE",
		[]string{
			fmt.Sprintf("%d devices will be set to %s", count, status),
			"Each device is written and verified separately",
			"Devices that fail keep their current status",
		},
		"yes",
	)
}
