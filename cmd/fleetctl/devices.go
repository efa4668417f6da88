package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/muurk/fleetsync/internal/codec"
	"github.com/muurk/fleetsync/internal/fleetapi"
	"github.com/muurk/fleetsync/internal/ui"
)

var (
	outputFormat string
	listPage     int
	listPageSize int
	listKeyword  string
	listStatus   string
	listDevID    string
)

func init() {
	rootCmd.AddCommand(devicesCmd)
	devicesCmd.AddCommand(devicesListCmd)
	devicesCmd.AddCommand(devicesShowCmd)

	devicesCmd.PersistentFlags().StringVar(&outputFormat, "format", "table", "Output format (table, json)")

	devicesListCmd.Flags().IntVar(&listPage, "page", 1, "Page number")
	devicesListCmd.Flags().IntVar(&listPageSize, "page-size", 20, "Devices per page")
	devicesListCmd.Flags().StringVar(&listKeyword, "keyword", "", "Match name or type")
	devicesListCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status (offline, online, abnormal)")
	devicesListCmd.Flags().StringVar(&listDevID, "dev-id", "", "Filter by device id")
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List and inspect devices",
}

var devicesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List devices",
	Example: `  fleetctl devices list
  fleetctl devices list --status abnormal
  fleetctl devices list --keyword ecg --page 2 --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		params := fleetapi.ListParams{
			Page:     listPage,
			PageSize: listPageSize,
			Keyword:  listKeyword,
		}
		if listStatus != "" {
			s, err := fleetapi.ParseStatus(listStatus)
			if err != nil {
				return err
			}
			params.Status = &s
		}
		if listDevID != "" {
			id, err := codec.ParseID(listDevID)
			if err != nil {
				return err
			}
			params.DevID = id
		}
		return current.listDevices(cmd.Context(), params, outputFormat)
	},
}

func (a *app) listDevices(ctx context.Context, params fleetapi.ListParams, format string) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	page, err := a.client.ListDevices(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}

	if format == "json" {
		return a.printJSON(page)
	}
	p := ui.NewPrinter(a.stdout)
	if len(page.Items) == 0 {
		p.Println("No devices match.")
		return nil
	}
	p.PrintDevices(page.Items, nil)
	p.Newline()
	p.Println(fleetapi.FormatPagination(page.Pagination))
	return nil
}

var devicesShowCmd = &cobra.Command{
	Use:   "show <dev_id>",
	Short: "Show one device record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := codec.ParseID(args[0])
		if err != nil {
			return err
		}
		return current.showDevice(cmd.Context(), id, outputFormat)
	},
}

func (a *app) showDevice(ctx context.Context, id codec.ID, format string) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	dev, err := a.client.GetDevice(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get device %s: %w", id, err)
	}
	if format == "json" {
		return a.printJSON(dev)
	}
	p := ui.NewPrinter(a.stdout)
	p.PrintHeader("Device", "fleetctl devices show", map[string]string{"Device": dev.Summary()})
	p.PrintRecord(*dev)
	return nil
}

// printJSON writes v with identifiers as bare integers, indented.
func (a *app) printJSON(v any) error {
	data, err := codec.Default.Encode(v)
	if err != nil {
		return err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return err
	}
	out.WriteByte('\n')
	_, err = a.stdout.Write(out.Bytes())
	return err
}
