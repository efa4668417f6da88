package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muurk/fleetsync/internal/fleetapi"
)

// Printer writes UI components to a writer. Commands that do not run a
// cycle use it for their output.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a new Printer that writes to the given writer.
// If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{out: w, width: GetTerminalWidth()}
}

// Width returns the width used by this printer
func (p *Printer) Width() int {
	return p.width
}

// SetWidth overrides the detected terminal width
func (p *Printer) SetWidth(width int) *Printer {
	p.width = width
	return p
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// Newline prints an empty line
func (p *Printer) Newline() {
	_, _ = fmt.Fprintln(p.out)
}

// PrintHeader prints a command header box
func (p *Printer) PrintHeader(title, command string, params map[string]string) {
	p.Println(NewHeader(title, command, params).SetWidth(p.width).Render())
	p.Newline()
}

// PrintResult prints a result box
func (p *Printer) PrintResult(r *Result) {
	p.Println(r.SetWidth(p.width).Render())
}

// PrintSuccess prints a success result box
func (p *Printer) PrintSuccess(title string, details map[string]string) {
	p.PrintResult(NewSuccessResult(title, details))
}

// PrintFailure prints a failure box with troubleshooting tips
func (p *Printer) PrintFailure(title string, err error, troubleshooting []string) {
	p.PrintResult(NewFailureResult(title, err, troubleshooting))
}

// PrintWarning prints a warning box
func (p *Printer) PrintWarning(title string, details map[string]string) {
	p.PrintResult(NewWarningResult(title, details))
}

// PrintDevices prints the device table. Rows the caller marks as
// unconfirmed get a trailing "?" on their status.
func (p *Printer) PrintDevices(devices []fleetapi.Device, unconfirmed func(fleetapi.Device) bool) {
	table := fleetapi.FormatTable(devices)
	lines := strings.Split(strings.TrimRight(table, "\n"), "\n")
	for i, line := range lines {
		if i == 0 {
			p.Println(lipgloss.NewStyle().Bold(true).Render(line))
			continue
		}
		dev := devices[i-1]
		if unconfirmed != nil && unconfirmed(dev) {
			line += " " + StepStaleStyle.Render("?")
		}
		p.Println(colorStatus(line, dev.Status))
	}
}

// PrintRecord prints a device record box
func (p *Printer) PrintRecord(dev fleetapi.Device) {
	p.Println(RenderRecord(dev, p.width))
}

// PrintPleaseWait prints a short notice for operations that take a while,
// e.g. "Scanning for gateways" with hint "3s".
func (p *Printer) PrintPleaseWait(message, hint string) {
	style := lipgloss.NewStyle().Foreground(PrimaryColor).Bold(true).PaddingLeft(2)
	line := style.Render("⏳ " + message)
	if hint != "" {
		line += " " + StepNoteStyle.Render("("+hint+")")
	}
	p.Println(line + style.Render("..."))
	p.Newline()
}

// colorStatus paints the first occurrence of the status name in line.
func colorStatus(line string, s fleetapi.Status) string {
	name := s.String()
	i := strings.Index(line, name)
	if i < 0 {
		return line
	}
	return line[:i] + StatusStyle(s).Render(name) + line[i+len(name):]
}
