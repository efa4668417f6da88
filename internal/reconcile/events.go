package reconcile

import (
	"context"
	"time"

	"github.com/muurk/fleetsync/internal/codec"
	"github.com/muurk/fleetsync/internal/fleetapi"
)

// Phase is where a cycle was when something happened.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseApplying  Phase = "applying"
	PhaseVerifying Phase = "verifying"
)

// EventType names a cycle transition.
type EventType string

const (
	EventApplying   EventType = "applying"
	EventVerifying  EventType = "verifying"
	EventConverged  EventType = "converged"
	EventWarning    EventType = "warning"
	EventRolledBack EventType = "rolled_back"
	EventSuperseded EventType = "superseded"
)

// Terminal reports whether no further events follow for the cycle.
func (t EventType) Terminal() bool {
	switch t {
	case EventConverged, EventWarning, EventRolledBack, EventSuperseded:
		return true
	}
	return false
}

// Event is one step of a status change cycle.
type Event struct {
	Type     EventType        `json:"type"`
	CycleID  string           `json:"cycle_id"`
	DeviceID codec.ID         `json:"dev_id"`
	Previous fleetapi.Status  `json:"previous_status"`
	Desired  fleetapi.Status  `json:"desired_status"`
	Attempt  int              `json:"attempt,omitempty"`
	Device   *fleetapi.Device `json:"device,omitempty"`
	Err      *Error           `json:"-"`
	Message  string           `json:"message,omitempty"`
	Time     time.Time        `json:"time"`
}

// Subscription delivers the events of one cycle. The channel is buffered
// for the whole cycle, so a caller that never reads does not stall the
// engine; it is closed after the terminal event.
type Subscription struct {
	CycleID  string
	DeviceID codec.ID

	events chan Event
	done   chan struct{}
	final  Event
}

func newSubscription(cycleID string, id codec.ID, buffer int) *Subscription {
	return &Subscription{
		CycleID:  cycleID,
		DeviceID: id,
		events:   make(chan Event, buffer),
		done:     make(chan struct{}),
	}
}

// Events returns the cycle's event channel.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Done is closed once the cycle has finished.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the cycle finishes and returns its terminal event.
func (s *Subscription) Wait(ctx context.Context) (Event, error) {
	select {
	case <-s.done:
		return s.final, nil
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// deliver is only called with the engine lock held.
func (s *Subscription) deliver(ev Event) {
	select {
	case s.events <- ev:
	default:
	}
	if ev.Type.Terminal() {
		s.final = ev
		close(s.events)
		close(s.done)
	}
}
