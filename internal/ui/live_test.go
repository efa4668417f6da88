package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muurk/fleetsync/internal/fleetapi"
	"github.com/muurk/fleetsync/internal/reconcile"
)

func newTestLive() LiveCycle {
	view := NewCycleView(testDevice, fleetapi.StatusAbnormal, 3)
	return LiveCycle{
		header: CycleHeader("fleetctl set-status", testDevice, fleetapi.StatusAbnormal).SetWidth(80),
		view:   view,
		width:  80,
	}
}

func TestLiveCycleQuitsOnTerminalEvent(t *testing.T) {
	var m tea.Model = newTestLive()

	m, cmd := m.Update(cycleEventMsg(ev(reconcile.EventApplying, 0)))
	if cmd == nil {
		t.Fatal("expected a command to wait for the next event")
	}

	m, cmd = m.Update(cycleEventMsg(ev(reconcile.EventConverged, 1)))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Errorf("cmd() = %T, want tea.QuitMsg", cmd())
	}
	if !strings.Contains(m.View(), "SUCCESS") {
		t.Errorf("View() missing result box:\n%s", m.View())
	}
}

func TestLiveCycleDetach(t *testing.T) {
	var m tea.Model = newTestLive()

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	live := m.(LiveCycle)
	if !live.Detached() {
		t.Error("Detached() = false, want true")
	}
	if !strings.Contains(live.View(), "detached") {
		t.Errorf("View() = %q, want detached note", live.View())
	}
}

func TestLiveCycleResizes(t *testing.T) {
	var m tea.Model = newTestLive()
	m, _ = m.Update(tea.WindowSizeMsg{Width: 200, Height: 40})
	if got := m.(LiveCycle).width; got != MaxContentWidth {
		t.Errorf("width = %d, want %d", got, MaxContentWidth)
	}
}
