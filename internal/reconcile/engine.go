package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/muurk/fleetsync/internal/codec"
	"github.com/muurk/fleetsync/internal/fleetapi"
	"github.com/muurk/fleetsync/internal/logging"
	"go.uber.org/zap"
)

// Backend is the part of the fleet API the engine uses. *fleetapi.Client
// implements it.
type Backend interface {
	ListDevices(ctx context.Context, params fleetapi.ListParams) (*fleetapi.DevicePage, error)
	GetDevice(ctx context.Context, id codec.ID) (*fleetapi.Device, error)
	UpdateDevice(ctx context.Context, update fleetapi.DeviceUpdate) (*fleetapi.Device, error)
}

// Options controls verification timing.
type Options struct {
	// InitialDelay is the wait between a successful update and the first read.
	InitialDelay time.Duration
	// DelayIncrement is added to the wait after each unconfirmed read.
	DelayIncrement time.Duration
	// MaxAttempts is how many reads are made before giving up.
	MaxAttempts int
}

// DefaultOptions reads after 1s, 2s and 3s.
func DefaultOptions() Options {
	return Options{
		InitialDelay:   time.Second,
		DelayIncrement: time.Second,
		MaxAttempts:    3,
	}
}

// PendingUpdate is a status change that has not yet been confirmed or
// abandoned. At most one is live per device.
type PendingUpdate struct {
	CycleID  string
	DeviceID codec.ID
	Previous fleetapi.Status
	Desired  fleetapi.Status
	IssuedAt time.Time
	Retry    int
	Phase    Phase

	cancel context.CancelFunc
	sub    *Subscription
}

type entry struct {
	device      fleetapi.Device
	unconfirmed bool
}

// Engine owns a cache of device records and reconciles optimistic status
// changes against an eventually consistent backend.
type Engine struct {
	backend Backend
	opts    Options

	mu        sync.Mutex
	devices   map[codec.ID]*entry
	order     []codec.ID
	pending   map[codec.ID]*PendingUpdate
	listeners map[int]chan Event
	nextID    int
	closed    bool

	wg sync.WaitGroup
}

// NewEngine creates an engine with an empty cache.
func NewEngine(backend Backend, opts Options) *Engine {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Engine{
		backend:   backend,
		opts:      opts,
		devices:   make(map[codec.ID]*entry),
		pending:   make(map[codec.ID]*PendingUpdate),
		listeners: make(map[int]chan Event),
	}
}

// Load puts records into the cache as if a refresh had returned them.
func (e *Engine) Load(devices ...fleetapi.Device) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mergeLocked(devices)
}

// Refresh fetches a page of the device list and merges it into the cache.
// Records are replaced wholesale except that a live PendingUpdate's desired
// status wins over the server's. The returned page reflects the merge.
func (e *Engine) Refresh(ctx context.Context, params fleetapi.ListParams) (*fleetapi.DevicePage, error) {
	// Fetched unlocked: a cycle that converges before the merge below is
	// overwritten by this older page until the next refresh.
	page, err := e.backend.ListDevices(ctx, params)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	merged := e.mergeLocked(page.Items)
	return &fleetapi.DevicePage{Items: merged, Pagination: page.Pagination}, nil
}

func (e *Engine) mergeLocked(items []fleetapi.Device) []fleetapi.Device {
	merged := make([]fleetapi.Device, 0, len(items))
	for _, d := range items {
		if p, ok := e.pending[d.ID]; ok {
			d.Status = p.Desired
		}

		if ent, ok := e.devices[d.ID]; ok {
			if ent.unconfirmed && ent.device.Status != d.Status {
				logging.Warn("Server disagrees with unconfirmed status; taking server value",
					zap.String("dev_id", d.ID.String()),
					zap.Stringer("local", ent.device.Status),
					zap.Stringer("server", d.Status),
				)
			}
		} else {
			e.order = append(e.order, d.ID)
		}

		e.devices[d.ID] = &entry{device: d}
		merged = append(merged, d)
	}
	return merged
}

// Snapshot returns cached records in the order they were first seen.
func (e *Engine) Snapshot() []fleetapi.Device {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]fleetapi.Device, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.devices[id].device)
	}
	return out
}

// Device returns the cached record for id.
func (e *Engine) Device(id codec.ID) (fleetapi.Device, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.devices[id]
	if !ok {
		return fleetapi.Device{}, false
	}
	return ent.device, true
}

// Unconfirmed reports whether id holds a status the backend never confirmed.
func (e *Engine) Unconfirmed(id codec.ID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.devices[id]
	return ok && ent.unconfirmed
}

// Pending returns a copy of the live PendingUpdate for id.
func (e *Engine) Pending(id codec.ID) (PendingUpdate, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.pending[id]
	if !ok {
		return PendingUpdate{}, false
	}
	cp := *p
	cp.cancel, cp.sub = nil, nil
	return cp, true
}

// PendingCount returns how many cycles are live.
func (e *Engine) PendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// Subscribe returns a feed of every event from every cycle. Events are
// dropped for a subscriber whose buffer is full. Call the returned function
// to unsubscribe.
func (e *Engine) Subscribe(buffer int) (<-chan Event, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextID
	e.nextID++
	ch := make(chan Event, buffer)
	e.listeners[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			if _, ok := e.listeners[id]; ok {
				delete(e.listeners, id)
				close(ch)
			}
		})
	}
}

// RequestStatusChange optimistically sets id's cached status to desired and
// starts a cycle that writes it to the backend and waits for it to show up.
//
// It fails without changing anything if the device is unknown, if desired
// is not a valid status, or if an earlier update for the device is still
// being sent. An earlier update that is only being verified is superseded.
// A KindConflict error leaves the cache at the earlier value; callers that
// want the later value should retry once the earlier cycle emits verifying.
func (e *Engine) RequestStatusChange(id codec.ID, desired fleetapi.Status) (*Subscription, error) {
	if !desired.Valid() {
		return nil, &Error{
			Kind: KindValidation, DeviceID: id, Status: desired, Phase: PhaseIdle,
			Err: fleetapi.ValidateStatus(desired),
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, &Error{Kind: KindServer, DeviceID: id, Status: desired, Phase: PhaseIdle, Err: ErrClosed}
	}

	ent, ok := e.devices[id]
	if !ok {
		return nil, &Error{Kind: KindNotFound, DeviceID: id, Status: desired, Phase: PhaseIdle, Err: ErrDeviceNotFound}
	}

	if old, ok := e.pending[id]; ok {
		if old.Phase == PhaseApplying {
			return nil, &Error{
				Kind: KindConflict, DeviceID: id, Status: desired, Phase: PhaseApplying,
				Err: fmt.Errorf("%w (cycle %s)", ErrConflict, old.CycleID),
			}
		}
		old.cancel()
		delete(e.pending, id)
		e.emitLocked(old, Event{Type: EventSuperseded, Attempt: old.Retry})
	}

	p := &PendingUpdate{
		CycleID:  uuid.NewString(),
		DeviceID: id,
		Previous: ent.device.Status,
		Desired:  desired,
		IssuedAt: time.Now(),
		Phase:    PhaseApplying,
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.sub = newSubscription(p.CycleID, id, e.opts.MaxAttempts+2)

	ent.device.Status = desired
	ent.unconfirmed = false
	e.pending[id] = p
	record := ent.device

	e.emitLocked(p, Event{Type: EventApplying})

	e.wg.Add(1)
	go e.run(ctx, p, record)

	return p.sub, nil
}

// liveLocked reports whether p is still the authoritative cycle for its device.
func (e *Engine) liveLocked(p *PendingUpdate) bool {
	return e.pending[p.DeviceID] == p
}

func (e *Engine) run(ctx context.Context, p *PendingUpdate, record fleetapi.Device) {
	defer e.wg.Done()
	defer p.cancel()

	// The write is not abandoned once started, even if the cycle is
	// superseded or the engine closes.
	_, err := e.backend.UpdateDevice(context.WithoutCancel(ctx), fleetapi.UpdateFrom(record, p.Desired))

	e.mu.Lock()
	if !e.liveLocked(p) {
		e.mu.Unlock()
		return
	}
	if err != nil {
		e.rollbackLocked(p, err)
		e.mu.Unlock()
		return
	}
	p.Phase = PhaseVerifying
	e.mu.Unlock()

	e.verify(ctx, p)
}

func (e *Engine) rollbackLocked(p *PendingUpdate, cause error) {
	if ent, ok := e.devices[p.DeviceID]; ok {
		ent.device.Status = p.Previous
	}
	delete(e.pending, p.DeviceID)

	rerr := &Error{Kind: classify(cause), DeviceID: p.DeviceID, Status: p.Desired, Phase: PhaseApplying, Err: cause}
	e.emitLocked(p, Event{Type: EventRolledBack, Err: rerr, Message: fleetapi.GetShortErrorMessage(cause)})
}

func (e *Engine) verify(ctx context.Context, p *PendingUpdate) {
	delay := e.opts.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= e.opts.MaxAttempts; attempt++ {
		if !sleep(ctx, delay) {
			e.mu.Lock()
			if e.liveLocked(p) {
				// cancelled by Close rather than by a newer request
				e.giveUpLocked(p, ctx.Err())
			}
			e.mu.Unlock()
			return
		}

		e.mu.Lock()
		if !e.liveLocked(p) {
			e.mu.Unlock()
			return
		}
		e.emitLocked(p, Event{Type: EventVerifying, Attempt: attempt})
		e.mu.Unlock()

		dev, err := e.backend.GetDevice(ctx, p.DeviceID)

		e.mu.Lock()
		if !e.liveLocked(p) {
			e.mu.Unlock()
			return
		}
		if err == nil && dev.Status == p.Desired {
			e.convergeLocked(p, *dev, attempt)
			e.mu.Unlock()
			return
		}
		p.Retry = attempt
		if err != nil {
			lastErr = err
			logging.Debug("Verification read failed",
				zap.String("dev_id", p.DeviceID.String()),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
		e.mu.Unlock()

		delay += e.opts.DelayIncrement
	}

	e.mu.Lock()
	if e.liveLocked(p) {
		e.giveUpLocked(p, lastErr)
	}
	e.mu.Unlock()
}

func (e *Engine) convergeLocked(p *PendingUpdate, dev fleetapi.Device, attempt int) {
	if ent, ok := e.devices[p.DeviceID]; ok {
		ent.device = dev
		ent.unconfirmed = false
	}
	delete(e.pending, p.DeviceID)
	e.emitLocked(p, Event{Type: EventConverged, Attempt: attempt, Device: &dev})
}

// giveUpLocked keeps the optimistic value and flags it unconfirmed.
func (e *Engine) giveUpLocked(p *PendingUpdate, cause error) {
	if ent, ok := e.devices[p.DeviceID]; ok {
		ent.unconfirmed = true
	}
	delete(e.pending, p.DeviceID)

	err := ErrConvergenceTimeout
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrConvergenceTimeout, cause)
	}
	werr := &Error{Kind: KindConvergenceTimeout, DeviceID: p.DeviceID, Status: p.Desired, Phase: PhaseVerifying, Err: err}
	e.emitLocked(p, Event{
		Type:    EventWarning,
		Attempt: p.Retry,
		Err:     werr,
		Message: fmt.Sprintf("status change sent but not confirmed after %d checks", p.Retry),
	})
}

func (e *Engine) emitLocked(p *PendingUpdate, ev Event) {
	ev.CycleID = p.CycleID
	ev.DeviceID = p.DeviceID
	ev.Previous = p.Previous
	ev.Desired = p.Desired
	ev.Time = time.Now()
	if ev.Message == "" && ev.Err != nil {
		ev.Message = ev.Err.Error()
	}

	fields := []zap.Field{zap.Int("attempt", ev.Attempt), zap.Stringer("desired", ev.Desired)}
	if ev.Err != nil {
		fields = append(fields, zap.Error(ev.Err))
	}
	logging.LogCycleEvent(p.DeviceID.String(), p.CycleID, string(ev.Type), fields...)

	p.sub.deliver(ev)
	for id, ch := range e.listeners {
		select {
		case ch <- ev:
		default:
			logging.Warn("Dropping event for slow subscriber", zap.Int("subscriber", id))
		}
	}
}

// Close abandons verification of every live cycle and waits for their
// goroutines. Writes already sent are left to complete.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	for _, p := range e.pending {
		p.cancel()
	}
	e.mu.Unlock()

	e.wg.Wait()

	e.mu.Lock()
	for id, ch := range e.listeners {
		delete(e.listeners, id)
		close(ch)
	}
	e.mu.Unlock()
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
