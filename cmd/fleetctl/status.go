package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/fleetsync/internal/codec"
	"github.com/muurk/fleetsync/internal/fleetapi"
	"github.com/muurk/fleetsync/internal/logging"
	"github.com/muurk/fleetsync/internal/reconcile"
	"github.com/muurk/fleetsync/internal/ui"
)

var (
	assumeYes bool
	plainOut  bool
	verbose   bool
)

func init() {
	rootCmd.AddCommand(setStatusCmd)

	setStatusCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask before changing several devices")
	setStatusCmd.Flags().BoolVar(&plainOut, "plain", false, "Print finished steps line by line instead of the live view")
	setStatusCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print the confirmed device record")
}

var setStatusCmd = &cobra.Command{
	Use:   "set-status <offline|online|abnormal> <dev_id>...",
	Short: "Change device status and wait for the backend to confirm it",
	Long: `Change the status of one or more devices.

Each device is shown with its new status at once, then its full record is
written to the backend and read back until the new status is visible:
first after reconcile.initial_delay, then with reconcile.delay_increment
added per read, up to reconcile.max_attempts reads.

If the write is rejected the previous status is restored. If the write is
accepted but never shows up in reads, the new status is kept and reported
as unconfirmed; the next listing shows what the backend really holds.`,
	Example: `  # Mark a device abnormal
  fleetctl set-status abnormal 653421142357639201

  # Take three devices offline without the confirmation prompt
  fleetctl set-status offline 653421142357639201 653421142357639202 653421142357639203 --yes`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := fleetapi.ParseStatus(args[0])
		if err != nil {
			return err
		}
		ids := make([]codec.ID, 0, len(args)-1)
		for _, arg := range args[1:] {
			id, err := codec.ParseID(arg)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}

		if len(ids) > 1 && !assumeYes && !ui.ConfirmBulkStatusChange(os.Stdin, current.stdout, len(ids), status.String()) {
			return nil
		}

		live := !plainOut && ui.IsTerminal()
		return current.setStatus(cmd.Context(), cmd.CommandPath(), status, ids, live)
	},
}

// outcome counts how a batch of cycles ended.
type outcome struct {
	converged, unconfirmed, rolledBack, superseded int
}

func (o *outcome) add(t reconcile.EventType) {
	switch t {
	case reconcile.EventConverged:
		o.converged++
	case reconcile.EventWarning:
		o.unconfirmed++
	case reconcile.EventRolledBack:
		o.rolledBack++
	case reconcile.EventSuperseded:
		o.superseded++
	}
}

// setStatus runs one cycle per device, one after another. A rollback makes
// the command fail; an unconfirmed change does not.
func (a *app) setStatus(ctx context.Context, command string, status fleetapi.Status, ids []codec.ID, live bool) error {
	if err := a.requireSession(); err != nil {
		return err
	}

	engine := a.engine()
	defer engine.Close()

	opts := a.reconcileOptions()
	var result outcome

	for _, id := range ids {
		dev, err := a.client.GetDevice(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to load device %s: %w", id, err)
		}
		engine.Load(*dev)

		sub, err := engine.RequestStatusChange(id, status)
		if err != nil {
			return err
		}
		logging.Debug("Status change started",
			zap.String("dev_id", id.String()),
			zap.String("cycle_id", sub.CycleID),
		)

		var final reconcile.Event
		if live {
			view := ui.NewCycleView(*dev, status, opts.MaxAttempts)
			model, err := ui.RunLiveCycle(ctx, ui.NewLiveCycle(ui.CycleHeader(command, *dev, status), view, sub))
			if err != nil {
				return err
			}
			if model.Detached() {
				return fmt.Errorf("stopped waiting for %s; the change is unconfirmed", id)
			}
			if view.Final == nil {
				if final, err = sub.Wait(ctx); err != nil {
					return err
				}
			} else {
				final = *view.Final
			}
		} else {
			runner := ui.NewCycleRunner(ui.CycleRunnerConfig{
				Command:     command,
				Device:      *dev,
				Desired:     status,
				MaxAttempts: opts.MaxAttempts,
				Verbose:     verbose,
				Output:      a.stdout,
			})
			final, err = runner.Run(ctx, sub)
			if err != nil {
				return err
			}
		}
		result.add(final.Type)
		fmt.Fprintln(a.stdout)
	}

	if len(ids) > 1 {
		summary := ui.NewSuccessResult(fmt.Sprintf("%d devices set to %s", len(ids), status), nil)
		if result.converged < len(ids) {
			summary = ui.NewWarningResult(fmt.Sprintf("%d of %d devices confirmed", result.converged, len(ids)), nil)
		}
		summary.AddDetail("Confirmed", strconv.Itoa(result.converged)).
			AddDetail("Unconfirmed", strconv.Itoa(result.unconfirmed)).
			AddDetail("Restored", strconv.Itoa(result.rolledBack))
		if result.superseded > 0 {
			summary.AddDetail("Superseded", strconv.Itoa(result.superseded))
		}
		ui.NewPrinter(a.stdout).PrintResult(summary)
	}
	if result.rolledBack > 0 {
		return fmt.Errorf("%d of %d status changes were rejected", result.rolledBack, len(ids))
	}
	return nil
}
