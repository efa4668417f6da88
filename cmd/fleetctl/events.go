package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/fleetsync/internal/eventstream"
	"github.com/muurk/fleetsync/internal/fleetapi"
	"github.com/muurk/fleetsync/internal/logging"
	"github.com/muurk/fleetsync/internal/reconcile"
	"github.com/muurk/fleetsync/internal/ui"
	"github.com/muurk/fleetsync/internal/urls"
)

var (
	serveAddr       string
	serveCaptureDir string
	refreshEvery    time.Duration
	watchURL        string
)

func init() {
	rootCmd.AddCommand(serveEventsCmd)
	rootCmd.AddCommand(watchCmd)

	serveEventsCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides events.addr)")
	serveEventsCmd.Flags().StringVar(&serveCaptureDir, "capture-dir", "", "Append every sent message to a JSONL file in this directory")
	serveEventsCmd.Flags().DurationVar(&refreshEvery, "refresh", 30*time.Second, "How often to reload the device list from the API")

	watchCmd.Flags().StringVar(&watchURL, "url", "", "Event stream URL (default: derived from events.addr)")
}

var serveEventsCmd = &cobra.Command{
	Use:   "serve-events",
	Short: "Serve live status changes to browser consoles over websocket",
	Long: `Run a reconciliation engine and stream its events over websocket.

Clients connect to /events and receive the current device list followed by
every status change event. POST /status with {"dev_id":..., "dev_status":...}
starts a change; its progress is streamed to every client.

The device list is reloaded from the API every --refresh interval. Devices
with a change in flight keep showing the requested status.`,
	Example: `  fleetctl serve-events
  fleetctl serve-events --addr 0.0.0.0:8090 --capture-dir ./captures`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := current.cfg.Events
		if serveAddr != "" {
			cfg.Addr = serveAddr
		}
		if serveCaptureDir != "" {
			cfg.CaptureDir = serveCaptureDir
		}
		return current.serveEvents(cmd.Context(), &eventstream.Config{
			Addr:       cfg.Addr,
			CertPath:   cfg.CertPath,
			KeyPath:    cfg.KeyPath,
			CaptureDir: cfg.CaptureDir,
		}, refreshEvery)
	},
}

func (a *app) serveEvents(ctx context.Context, cfg *eventstream.Config, every time.Duration) error {
	if err := a.requireSession(); err != nil {
		return err
	}

	engine := a.engine()
	defer engine.Close()

	n, err := refreshAll(ctx, engine)
	if err != nil {
		return fmt.Errorf("failed to load devices: %w", err)
	}

	srv, err := eventstream.New(cfg, engine)
	if err != nil {
		return err
	}

	go refreshLoop(ctx, engine, every)

	scheme := "ws"
	if cfg.CertPath != "" {
		scheme = "wss"
	}
	fmt.Fprintf(a.stdout, "Streaming %d devices on %s://%s%s (Ctrl+C to stop)\n", n, scheme, cfg.Addr, urls.Events)
	return srv.Start(ctx)
}

// refreshAll loads every page into engine and returns the device count.
func refreshAll(ctx context.Context, engine *reconcile.Engine) (int, error) {
	const pageSize = 100
	total := 0
	for page := 1; ; page++ {
		res, err := engine.Refresh(ctx, fleetapi.ListParams{Page: page, PageSize: pageSize})
		if err != nil {
			return total, err
		}
		total += len(res.Items)
		if page >= res.Pagination.TotalPages || len(res.Items) == 0 {
			return total, nil
		}
	}
}

func refreshLoop(ctx context.Context, engine *reconcile.Engine, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := refreshAll(ctx, engine)
			if err != nil {
				logging.Warn("Device refresh failed", zap.Error(err))
				if fleetapi.IsAuthError(err) {
					return
				}
				continue
			}
			logging.Debug("Devices refreshed", zap.Int("count", n), zap.Int("pending", engine.PendingCount()))
		}
	}
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow status changes from a serve-events stream",
	Example: `  fleetctl watch
  fleetctl watch --url ws://10.0.0.5:8090/events`,
	RunE: func(cmd *cobra.Command, args []string) error {
		url := watchURL
		if url == "" {
			scheme := "ws"
			if current.cfg.Events.CertPath != "" {
				scheme = "wss"
			}
			url = scheme + "://" + current.cfg.Events.Addr + urls.Events
		}
		return current.watch(cmd.Context(), url)
	},
}

func (a *app) watch(ctx context.Context, url string) error {
	p := ui.NewPrinter(a.stdout)
	p.PrintHeader("Watching status changes", "fleetctl watch", map[string]string{"Stream": url})
	return eventstream.Watch(ctx, url, func(msg eventstream.Message) error {
		switch msg.Type {
		case eventstream.TypeSnapshot:
			devices, err := msg.Snapshot()
			if err != nil {
				return err
			}
			p.PrintDevices(devices, nil)
			p.Newline()
		case eventstream.TypeEvent:
			ev, err := msg.Event()
			if err != nil {
				return err
			}
			p.Println(formatEvent(ev))
		}
		return nil
	})
}

// formatEvent renders one event as a log-style line.
func formatEvent(ev eventstream.EventPayload) string {
	line := fmt.Sprintf("%s  %-11s %s  %s → %s",
		ev.Time.Local().Format("15:04:05"), ev.Type, ev.DeviceID, ev.Previous, ev.Desired)
	if ev.Attempt > 0 {
		line += fmt.Sprintf("  read %d", ev.Attempt)
	}
	if ev.Kind != "" {
		line += "  [" + ev.Kind + "]"
	}
	if ev.Message != "" && ev.Type != reconcile.EventConverged {
		line += "  " + ev.Message
	}
	return line
}
