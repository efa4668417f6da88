package fleetapi

import (
	"fmt"
	"strings"
)

// Summary returns a one-line summary of the device
func (d *Device) Summary() string {
	return fmt.Sprintf("%s %s (%s) [%s]", d.ID, d.Name, d.Type, d.Status)
}

// FormatDetail returns a multi-line description suitable for terminal display
func (d *Device) FormatDetail() string {
	var b strings.Builder

	fmt.Fprintf(&b, "=== Device %s ===\n", d.ID)
	fmt.Fprintf(&b, "Name:            %s\n", d.Name)
	fmt.Fprintf(&b, "Type:            %s\n", d.Type)
	fmt.Fprintf(&b, "Status:          %s\n", d.Status)
	fmt.Fprintf(&b, "Battery:         %d%%\n", d.Power)
	fmt.Fprintf(&b, "Model:           %s (v%s)\n", d.Model, d.Version)
	fmt.Fprintf(&b, "Sampling rate:   %d\n", d.SamplingRate)
	fmt.Fprintf(&b, "Upload interval: %ds\n", d.UploadInterval)
	if d.UpdateAt != "" {
		fmt.Fprintf(&b, "Updated:         %s\n", d.UpdateAt)
	}

	return b.String()
}

// FormatTable renders devices as aligned columns with a header row.
func FormatTable(devices []Device) string {
	headers := []string{"DEV_ID", "NAME", "TYPE", "STATUS", "POWER", "MODEL"}
	rows := make([][]string, 0, len(devices))
	for _, d := range devices {
		rows = append(rows, []string{
			d.ID.String(),
			d.Name,
			d.Type,
			d.Status.String(),
			fmt.Sprintf("%d%%", d.Power),
			d.Model,
		})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		for i, cell := range cells {
			if i > 0 {
				b.WriteString("  ")
			}
			if i == len(cells)-1 {
				b.WriteString(cell)
			} else {
				fmt.Fprintf(&b, "%-*s", widths[i], cell)
			}
		}
		b.WriteString("\n")
	}

	writeRow(headers)
	for _, row := range rows {
		writeRow(row)
	}
	return b.String()
}

// FormatPagination returns "page 2/5 (47 devices)".
func FormatPagination(p Pagination) string {
	return fmt.Sprintf("page %d/%d (%d devices)", p.Page, p.TotalPages, p.Total)
}
