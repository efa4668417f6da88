package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/muurk/fleetsync/internal/codec"
	"github.com/muurk/fleetsync/internal/fleetapi"
	"github.com/muurk/fleetsync/internal/reconcile"
)

// CycleView folds the events of one status change into a step list and,
// once the cycle ends, a result box. Step 1 is the write; each read-back
// gets its own step after that.
type CycleView struct {
	Device   fleetapi.Device
	Desired  fleetapi.Status
	Progress *Progress
	Final    *reconcile.Event

	started time.Time
}

// NewCycleView prepares a view for a cycle with up to maxAttempts reads.
func NewCycleView(dev fleetapi.Device, desired fleetapi.Status, maxAttempts int) *CycleView {
	names := []string{"Write full record"}
	for i := 1; i <= maxAttempts; i++ {
		names = append(names, fmt.Sprintf("Read back #%d", i))
	}
	return &CycleView{
		Device:   dev,
		Desired:  desired,
		Progress: NewProgress("", names...),
		started:  time.Now(),
	}
}

// Apply records ev and returns the numbers of the steps it touched.
func (v *CycleView) Apply(ev reconcile.Event) []int {
	p := v.Progress
	var touched []int
	set := func(n int, s StepStatus, msg string) {
		if n < 1 || n > p.Total() {
			return
		}
		p.UpdateStep(n, s, msg)
		touched = append(touched, n)
	}

	switch ev.Type {
	case reconcile.EventApplying:
		set(1, StepRunning, fmt.Sprintf("%s → %s", ev.Previous, ev.Desired))

	case reconcile.EventVerifying:
		if p.Steps[0].Status != StepComplete {
			set(1, StepComplete, "accepted")
		}
		if ev.Attempt > 1 {
			set(ev.Attempt, StepStale, "still "+ev.Previous.String())
		}
		set(ev.Attempt+1, StepRunning, "")

	case reconcile.EventConverged:
		set(ev.Attempt+1, StepComplete, "reads "+ev.Desired.String())
		p.SkipRemaining()

	case reconcile.EventWarning:
		if p.Current > 1 && p.Steps[p.Current-1].Status == StepRunning {
			set(p.Current, StepStale, "still "+ev.Previous.String())
		}
		p.SkipRemaining()

	case reconcile.EventRolledBack:
		msg := "rejected"
		if ev.Err != nil {
			msg = ev.Err.Kind.String()
		}
		set(1, StepFailed, msg)
		p.SkipRemaining()

	case reconcile.EventSuperseded:
		if p.Current > 0 && p.Steps[p.Current-1].Status == StepRunning {
			set(p.Current, StepSkipped, "superseded")
		}
		p.SkipRemaining()
	}

	if ev.Type.Terminal() {
		final := ev
		v.Final = &final
	}
	return touched
}

// Done reports whether the cycle has ended.
func (v *CycleView) Done() bool {
	return v.Final != nil
}

// Result builds the closing box. It returns nil while the cycle is running.
func (v *CycleView) Result(width int) *Result {
	if v.Final == nil {
		return nil
	}
	ev := v.Final
	elapsed := time.Since(v.started).Round(time.Millisecond).String()

	var r *Result
	switch ev.Type {
	case reconcile.EventConverged:
		r = NewSuccessResult(fmt.Sprintf("%s is %s", v.Device.Name, ev.Desired), map[string]string{
			"Device":    string(ev.DeviceID),
			"Status":    ev.Desired.String(),
			"Confirmed": fmt.Sprintf("read %d", ev.Attempt),
			"Duration":  elapsed,
		})
	case reconcile.EventWarning:
		r = NewWarningResult("Update not confirmed", map[string]string{
			"Device":    string(ev.DeviceID),
			"Requested": ev.Desired.String(),
			"Reads":     fmt.Sprintf("%d", ev.Attempt),
			"Note":      "shown as requested until the next refresh",
		})
	case reconcile.EventSuperseded:
		r = NewWarningResult("Superseded by a newer request", map[string]string{
			"Device":    string(ev.DeviceID),
			"Requested": ev.Desired.String(),
		})
	default:
		var err error
		kind := reconcile.KindServer
		if ev.Err != nil {
			err = ev.Err
			kind = ev.Err.Kind
		}
		r = NewFailureResult(fmt.Sprintf("Restored %s to %s", v.Device.Name, ev.Previous), err, Troubleshooting(kind, ev.DeviceID))
	}
	return r.SetWidth(width)
}

// Troubleshooting returns hints for a failed change of the given kind.
func Troubleshooting(kind reconcile.Kind, id codec.ID) []string {
	switch kind {
	case reconcile.KindAuth:
		return []string{"Your session has expired", "Run: fleetctl login"}
	case reconcile.KindNetwork:
		return []string{"Check the API address (--api)", "Try: fleetctl discover"}
	case reconcile.KindValidation:
		return []string{
			"The server rejected the record",
			fmt.Sprintf("Inspect it with: fleetctl devices show %s", id),
		}
	case reconcile.KindConflict:
		return []string{"Another change for this device is still being written", "Wait for it to finish and retry"}
	default:
		return []string{"The server failed to apply the change", "Retry in a moment"}
	}
}

// CycleRunnerConfig holds what the runner prints around a cycle
type CycleRunnerConfig struct {
	Command     string
	Device      fleetapi.Device
	Desired     fleetapi.Status
	MaxAttempts int
	Verbose     bool      // print the final record
	Output      io.Writer // default: os.Stdout
}

// CycleRunner prints a cycle as plain lines: header, one line per
// finished step, then the result box. It is used when stdout is not a
// terminal; LiveCycle is the interactive counterpart.
type CycleRunner struct {
	config CycleRunnerConfig
	header *Header
	view   *CycleView
	output io.Writer
	width  int
}

// NewCycleRunner creates a runner for one status change
func NewCycleRunner(config CycleRunnerConfig) *CycleRunner {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	width := GetTerminalWidth()
	return &CycleRunner{
		config: config,
		header: CycleHeader(config.Command, config.Device, config.Desired).SetWidth(width),
		view:   NewCycleView(config.Device, config.Desired, config.MaxAttempts),
		output: config.Output,
		width:  width,
	}
}

// SetWidth overrides the detected terminal width
func (r *CycleRunner) SetWidth(width int) *CycleRunner {
	r.width = width
	r.header.SetWidth(width)
	return r
}

// View exposes the underlying state
func (r *CycleRunner) View() *CycleView {
	return r.view
}

// Run prints the cycle until it ends or ctx is done and returns the
// terminal event.
func (r *CycleRunner) Run(ctx context.Context, sub *reconcile.Subscription) (reconcile.Event, error) {
	_, _ = fmt.Fprintln(r.output, r.header.Render())
	_, _ = fmt.Fprintln(r.output)

	events := sub.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return r.finish(ctx, sub)
			}
			for _, n := range r.view.Apply(ev) {
				step := r.view.Progress.Steps[n-1]
				if step.Status.Done() {
					_, _ = fmt.Fprintln(r.output, r.view.Progress.RenderStep(step))
				}
			}
		case <-ctx.Done():
			return reconcile.Event{}, ctx.Err()
		}
	}
}

func (r *CycleRunner) finish(ctx context.Context, sub *reconcile.Subscription) (reconcile.Event, error) {
	final, err := sub.Wait(ctx)
	if err != nil {
		return final, err
	}
	if !r.view.Done() {
		r.view.Apply(final)
	}

	_, _ = fmt.Fprintln(r.output)
	_, _ = fmt.Fprintln(r.output, r.view.Result(r.width).Render())

	if r.config.Verbose && final.Device != nil {
		_, _ = fmt.Fprintln(r.output)
		_, _ = fmt.Fprintln(r.output, RenderRecord(*final.Device, r.width))
	}
	return final, nil
}

// CycleHeader is the banner shown before a status change.
func CycleHeader(command string, dev fleetapi.Device, desired fleetapi.Status) *Header {
	return NewHeader("Status change", command, map[string]string{
		"Device": fmt.Sprintf("%s (%s)", dev.Name, dev.ID),
		"From":   dev.Status.String(),
		"To":     desired.String(),
	})
}
