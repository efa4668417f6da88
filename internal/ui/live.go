package ui

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muurk/fleetsync/internal/reconcile"
)

type cycleEventMsg reconcile.Event

type cycleClosedMsg struct{}

// LiveCycle is a Bubble Tea model that redraws a cycle in place as its
// events arrive and exits when the cycle ends. Pressing q or ctrl+c
// detaches the view; the cycle itself keeps running in the engine.
type LiveCycle struct {
	header   *Header
	view     *CycleView
	events   <-chan reconcile.Event
	width    int
	detached bool
}

// NewLiveCycle creates the model for sub.
func NewLiveCycle(header *Header, view *CycleView, sub *reconcile.Subscription) LiveCycle {
	width := GetTerminalWidth()
	return LiveCycle{
		header: header.SetWidth(width),
		view:   view,
		events: sub.Events(),
		width:  width,
	}
}

func (m LiveCycle) next() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return cycleClosedMsg{}
		}
		return cycleEventMsg(ev)
	}
}

// Init implements tea.Model
func (m LiveCycle) Init() tea.Cmd {
	return m.next()
}

// Update implements tea.Model
func (m LiveCycle) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case cycleEventMsg:
		m.view.Apply(reconcile.Event(msg))
		if m.view.Done() {
			return m, tea.Quit
		}
		return m, m.next()
	case cycleClosedMsg:
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.detached = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = clampWidth(msg.Width)
		if m.width > MaxContentWidth {
			m.width = MaxContentWidth
		}
		m.header.SetWidth(m.width)
		m.view.Progress.SetWidth(m.width)
	}
	return m, nil
}

// View implements tea.Model
func (m LiveCycle) View() string {
	var b strings.Builder
	b.WriteString(m.header.Render())
	b.WriteString("\n\n")
	b.WriteString(m.view.Progress.Render())
	b.WriteString("\n")
	if r := m.view.Result(m.width); r != nil {
		b.WriteString("\n")
		b.WriteString(r.Render())
		b.WriteString("\n")
	} else if m.detached {
		b.WriteString("\n")
		b.WriteString(StepNoteStyle.Render("  detached; the change is still being verified"))
		b.WriteString("\n")
	}
	return b.String()
}

// Detached reports whether the user left before the cycle ended.
func (m LiveCycle) Detached() bool {
	return m.detached
}

// RunLiveCycle runs the model until the cycle ends, the user detaches or
// ctx is done. It returns the final model state.
func RunLiveCycle(ctx context.Context, model LiveCycle) (LiveCycle, error) {
	p := tea.NewProgram(model, tea.WithContext(ctx))
	final, err := p.Run()
	if m, ok := final.(LiveCycle); ok {
		return m, err
	}
	return model, err
}
