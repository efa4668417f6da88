// Fleetctl is the operator console for a sensor fleet.
//
// It signs in to the fleet API, lists devices, and changes device status
// with optimistic local updates that are verified against the backend
// before being reported as done. A websocket bridge (serve-events) lets a
// browser console follow the same status changes live.
//
// Usage:
//
//	fleetctl [command] [flags]
//
// See 'fleetctl --help' for available commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/muurk/fleetsync/internal/logging"
	"github.com/muurk/fleetsync/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Persistent flags
var (
	configPath string
	apiURL     string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "fleetctl",
	Short: "Sensor fleet console",
	Long: `Operator console for a sensor fleet.

Signs in to the fleet API, lists devices and changes their status. Status
changes show up immediately and are then checked against the backend, which
may take a few seconds to reflect a write.

Configuration is read from config.yaml in the fleetsync config directory
and can be overridden with FLEETSYNC_* environment variables.`,
	Version:           version.Version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		teardown()
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: <config dir>/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "Fleet API base URL (overrides api.base_url)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error; default silent)")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Annotations: map[string]string{
		skipSetup: "true",
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fleetctl %s\n", version.Full())
	},
}
