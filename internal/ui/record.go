package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muurk/fleetsync/internal/fleetapi"
)

// RenderRecord draws a device record in a muted box for verbose output.
func RenderRecord(dev fleetapi.Device, width int) string {
	width = clampWidth(width)
	content := lipgloss.JoinVertical(lipgloss.Left,
		RecordTitleStyle.Render("Device record"),
		dev.FormatDetail(),
	)
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(MutedColor).
		Width(width-4).
		Padding(0, 1).
		Render(content)
}
