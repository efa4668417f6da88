package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// StepStatus represents the current state of a step
type StepStatus int

const (
	StepPending  StepStatus = iota // Not yet started
	StepRunning                    // In flight
	StepComplete                   // Done
	StepStale                      // Read back the old value
	StepFailed                     // Failed
	StepSkipped                    // Never needed
)

// Done reports whether the step will not change again.
func (s StepStatus) Done() bool {
	return s == StepComplete || s == StepStale || s == StepFailed || s == StepSkipped
}

// Step is one line of a multi-step operation
type Step struct {
	Number  int
	Name    string
	Status  StepStatus
	Message string // e.g. "after 2s", "still offline"
}

// Progress is a bar plus step list. A status change uses one step for the
// write and one per read-back.
type Progress struct {
	Label   string
	Steps   []Step
	Current int
	Percent float64
	Width   int
	ShowBar bool
	bar     progress.Model
}

// NewProgress creates a progress display with the given step names
func NewProgress(label string, names ...string) *Progress {
	steps := make([]Step, len(names))
	for i, name := range names {
		steps[i] = Step{Number: i + 1, Name: name}
	}
	p := &Progress{
		Label:   label,
		Steps:   steps,
		ShowBar: true,
	}
	p.SetWidth(GetTerminalWidth())
	return p
}

// SetWidth sets the terminal width and resizes the bar to fit
func (p *Progress) SetWidth(width int) *Progress {
	p.Width = width
	barWidth := width - 20
	if barWidth < 20 {
		barWidth = 20
	}
	if barWidth > 50 {
		barWidth = 50
	}
	p.bar = progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(barWidth),
	)
	return p
}

// Total returns the number of steps
func (p *Progress) Total() int {
	return len(p.Steps)
}

// UpdateStep updates a step's status and note. Out of range numbers are ignored.
func (p *Progress) UpdateStep(number int, status StepStatus, message string) {
	if number < 1 || number > len(p.Steps) {
		return
	}
	p.Steps[number-1].Status = status
	p.Steps[number-1].Message = message

	if status == StepRunning {
		p.Current = number
	}
	done := 0
	for _, s := range p.Steps {
		if s.Status.Done() {
			done++
		}
	}
	p.Percent = float64(done) / float64(len(p.Steps))
}

// SkipRemaining marks every step that has not started as skipped.
func (p *Progress) SkipRemaining() {
	for i := range p.Steps {
		if p.Steps[i].Status == StepPending {
			p.UpdateStep(i+1, StepSkipped, "")
		}
	}
}

// Render returns the label, bar and step list
func (p *Progress) Render() string {
	var b strings.Builder

	if p.Label != "" {
		b.WriteString(lipgloss.NewStyle().PaddingLeft(2).Render(p.Label))
		b.WriteString("\n\n")
	}
	if p.ShowBar {
		b.WriteString(p.renderBar())
		b.WriteString("\n\n")
	}

	lines := make([]string, 0, len(p.Steps))
	for _, step := range p.Steps {
		lines = append(lines, p.RenderStep(step))
	}
	b.WriteString(strings.Join(lines, "\n"))
	return b.String()
}

func (p *Progress) renderBar() string {
	return lipgloss.NewStyle().
		PaddingLeft(2).
		Render(fmt.Sprintf("%s  %3.0f%%  [%d/%d]", p.bar.ViewAs(p.Percent), p.Percent*100, p.Current, len(p.Steps)))
}

// RenderStep renders a single step line: "[2/4] Read back #1   ↻  (still online)"
func (p *Progress) RenderStep(step Step) string {
	var marker string
	var style lipgloss.Style

	switch step.Status {
	case StepComplete:
		marker, style = StepMarkerComplete, StepCompleteStyle
	case StepRunning:
		marker, style = StepMarkerRunning, StepRunningStyle
	case StepStale:
		marker, style = StepMarkerStale, StepStaleStyle
	case StepFailed:
		marker, style = FailureMarker, ErrorTitleStyle
	case StepSkipped:
		marker, style = StepMarkerSkipped, StepPendingStyle
	default:
		marker, style = StepMarkerPending, StepPendingStyle
	}

	var b strings.Builder
	fmt.Fprintf(&b, "  [%d/%d] ", step.Number, len(p.Steps))
	b.WriteString(style.Render(step.Name))

	// markers line up in one column
	padding := 32 - lipgloss.Width(step.Name)
	if padding < 1 {
		padding = 1
	}
	b.WriteString(strings.Repeat(" ", padding))
	b.WriteString(style.Render(marker))

	if step.Message != "" {
		b.WriteString("  ")
		b.WriteString(StepNoteStyle.Render("(" + step.Message + ")"))
	}
	return b.String()
}

// String implements fmt.Stringer
func (p *Progress) String() string {
	return p.Render()
}
