package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/fleetsync/internal/discovery"
	"github.com/muurk/fleetsync/internal/fleetapi"
	"github.com/muurk/fleetsync/internal/ui"
)

var (
	scanTimeout  time.Duration
	probe        bool
	instanceName string
)

func init() {
	rootCmd.AddCommand(discoverCmd)

	discoverCmd.Flags().DurationVar(&scanTimeout, "timeout", 3*time.Second, "How long to listen for answers")
	discoverCmd.Flags().BoolVar(&probe, "probe", true, "Check each gateway's health endpoint")
	discoverCmd.Flags().StringVar(&instanceName, "name", "", "Stop at the first answer from this instance")
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find fleet API gateways on the local network",
	Long: `Browse mDNS for fleet API gateways (service _fleetapi._tcp).

Gateways and the fleetsim simulator (with --advertise) answer with their
address and API version. Pass a listed URL to --api, or set api.base_url.`,
	Example: `  fleetctl discover
  fleetctl discover --timeout 10s
  fleetctl discover --name "ward-3 gateway"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if instanceName != "" {
			return current.findGateway(cmd.Context(), instanceName, scanTimeout, probe)
		}
		return current.discover(cmd.Context(), scanTimeout, probe)
	},
}

func (a *app) discover(ctx context.Context, timeout time.Duration, probe bool) error {
	p := ui.NewPrinter(a.stdout)
	p.PrintPleaseWait("Scanning for fleet API gateways", timeout.String())

	gateways, err := discovery.ScanForGateways(ctx, timeout)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(gateways) == 0 {
		p.PrintWarning("No gateways found", nil)
		p.Println("Troubleshooting:")
		p.Println("  - Check that the gateway is on this network segment")
		p.Println("  - Allow mDNS (UDP 5353) through your firewall")
		p.Println("  - Try a longer --timeout")
		return nil
	}

	p.Println(fmt.Sprintf("Found %d gateway(s):", len(gateways)))
	p.Newline()
	for i, gw := range gateways {
		printGateway(ctx, p, fmt.Sprintf("%d. %s", i+1, gw.Instance), gw, probe)
	}
	p.Println("Use 'fleetctl --api <URL> login' to connect.")
	return nil
}

func (a *app) findGateway(ctx context.Context, name string, timeout time.Duration, probe bool) error {
	p := ui.NewPrinter(a.stdout)
	p.PrintPleaseWait(fmt.Sprintf("Looking for %q", name), timeout.String())

	gw, err := discovery.FindGateway(ctx, name, timeout)
	if err != nil {
		p.PrintFailure("Gateway not found", err, []string{
			"Check the instance name with 'fleetctl discover'",
			"Try a longer --timeout",
		})
		return err
	}

	printGateway(ctx, p, gw.Instance, gw, probe)
	p.Println(fmt.Sprintf("Use 'fleetctl --api %s login' to connect.", gw.BaseURL()))
	return nil
}

func printGateway(ctx context.Context, p *ui.Printer, title string, gw *discovery.Gateway, probe bool) {
	p.Println(title)
	p.Println(fmt.Sprintf("   URL:     %s", gw.BaseURL()))
	if v := gw.GetMetadata("version"); v != "" {
		p.Println(fmt.Sprintf("   Version: %s", v))
	}
	if gw.IsSimulator() {
		p.Println("   Kind:    simulator")
	}
	if probe {
		status := "reachable"
		if err := fleetapi.NewClient(gw.BaseURL(), nil).Ping(ctx); err != nil {
			status = fleetapi.GetShortErrorMessage(err)
		}
		p.Println(fmt.Sprintf("   Health:  %s", status))
	}
	p.Newline()
}
