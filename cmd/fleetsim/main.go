// Fleetsim is a simulated fleet API backend.
//
// It serves login, device listing and full-record device updates like the
// real backend, but holds each update back from reads for a configurable
// lag, so clients can be exercised against eventual consistency.
//
// Usage:
//
//	fleetsim serve [flags]
//
// See 'fleetsim serve --help' for available options.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/fleetsync/internal/fleetsim"
	"github.com/muurk/fleetsync/internal/logging"
	"github.com/muurk/fleetsync/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fleetsim",
	Short: "Simulated fleet API backend",
	Long: `A fleet API backend for development and demos.

Reads lag behind writes by --lag, the way a replicated backend does, so
status changes made by fleetctl go through the same verification they would
against production.

For the operator console, use the separate 'fleetctl' utility.`,
	Version:      version.Version,
	SilenceUsage: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// Serve command and flags
var (
	addr      string
	secret    string
	tokenTTL  time.Duration
	lag       time.Duration
	seed      int
	advertise bool
	instance  string
	logLevel  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the simulated backend",
	Long: `Start the simulated fleet API.

A default account (operator@fleet.local / fleetsim) is created. Tokens are
signed with --secret, or with FLEETSIM_SECRET when the flag is not given.

With --advertise the simulator registers itself on mDNS so that
'fleetctl discover' can find it.`,
	Example: `  # Defaults: :8080, 2s lag, 12 devices
  fleetsim serve

  # Reads never lag (every change confirms on the first read)
  fleetsim serve --lag 0

  # Lag longer than the verification budget (changes end unconfirmed)
  fleetsim serve --lag 10s --advertise`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	serveCmd.Flags().StringVar(&secret, "secret", "", "Token signing secret (default: $FLEETSIM_SECRET, or a development secret)")
	serveCmd.Flags().DurationVar(&tokenTTL, "token-ttl", 12*time.Hour, "Lifetime of issued tokens")
	serveCmd.Flags().DurationVar(&lag, "lag", 2*time.Second, "How long updates stay invisible to reads")
	serveCmd.Flags().IntVar(&seed, "devices", 12, "Number of demo devices")
	serveCmd.Flags().BoolVar(&advertise, "advertise", false, "Advertise on mDNS as "+fleetsim.DefaultInstance)
	serveCmd.Flags().StringVar(&instance, "instance", fleetsim.DefaultInstance, "mDNS instance name")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(logLevel); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Sync()

	if secret == "" {
		secret = os.Getenv("FLEETSIM_SECRET")
	}
	if secret == "" {
		secret = "fleetsim-development-secret"
		fmt.Fprintln(os.Stderr, "Warning: using the development signing secret; set --secret outside local testing")
	}
	if lag < 0 {
		return fmt.Errorf("--lag must not be negative")
	}
	if seed < 0 {
		return fmt.Errorf("--devices must not be negative")
	}

	srv, err := fleetsim.New(&fleetsim.Config{
		Addr:      addr,
		Secret:    secret,
		TokenTTL:  tokenTTL,
		Lag:       lag,
		Seed:      seed,
		Advertise: advertise,
		Instance:  instance,
	})
	if err != nil {
		return fmt.Errorf("failed to create simulator: %w", err)
	}

	fmt.Printf("fleetsim listening on %s (lag %s, %d devices)\n", addr, lag, seed)
	fmt.Printf("Sign in with: fleetctl --api http://localhost%s login --email %s\n", portOf(addr), fleetsim.DefaultUser.Email)
	return srv.Start(cmd.Context())
}

// portOf returns ":port" from a listen address.
func portOf(addr string) string {
	if _, port, err := net.SplitHostPort(addr); err == nil {
		return ":" + port
	}
	return addr
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fleetsim %s\n", version.Full())
	},
}
