package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/trashcan/internal/keys"
	"github.com/dwsmith1983/trashcan/internal/present"
	"github.com/dwsmith1983/trashcan/internal/provider"
	"github.com/dwsmith1983/trashcan/pkg/types"
)

const statusHistoryRows = 10

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [device-id]",
		Short: "Show fill levels for all devices, or one device's recent readings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, prov, err := setup(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			if len(args) > 0 {
				return showDeviceStatus(ctx, cmd.OutOrStdout(), prov, args[0])
			}
			return showAllDevices(ctx, cmd.OutOrStdout(), prov)
		},
	}
	addConfigFlag(cmd)
	return cmd
}

func showAllDevices(ctx context.Context, w io.Writer, prov provider.Provider) error {
	recs, err := prov.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("listing devices: %w", err)
	}
	devices, err := present.Devices(recs)
	if err != nil {
		return fmt.Errorf("listing devices: %w", err)
	}

	if len(devices) == 0 {
		_, _ = fmt.Fprintln(w, "No devices registered.")
		return nil
	}

	bold := color.New(color.Bold)
	_, _ = bold.Fprintln(w, "Devices:")
	_, _ = fmt.Fprintln(w)
	for _, d := range devices {
		id, _ := d.String("id")
		updated, _ := d.String(keys.AttrUpdatedTimestamp)
		if updated == "" {
			updated = "never"
		}
		_, _ = fmt.Fprintf(w, "  %-30s %-20s updated=%s\n", id, fillString(d), updated)
	}
	_, _ = fmt.Fprintln(w)
	return nil
}

func showDeviceStatus(ctx context.Context, w io.Writer, prov provider.Provider, deviceID string) error {
	details, history, err := prov.GetDevice(ctx, deviceID)
	if err != nil {
		if types.CodeOf(err, "") == types.CodeDeviceNotFound {
			return fmt.Errorf("device %q not found", deviceID)
		}
		return fmt.Errorf("reading device: %w", err)
	}
	device, err := present.DeviceDetails(details)
	if err != nil {
		return fmt.Errorf("reading device: %w", err)
	}
	entries, err := present.History(history)
	if err != nil {
		return fmt.Errorf("reading device history: %w", err)
	}

	bold := color.New(color.Bold)
	_, _ = bold.Fprintf(w, "Device: %s\n", deviceID)
	if total, ok := device.Int(keys.AttrTotalLevels); ok {
		_, _ = fmt.Fprintf(w, "  Levels:     %d\n", total)
	}
	if created, ok := device.String(keys.AttrCreationTimestamp); ok {
		_, _ = fmt.Fprintf(w, "  Registered: %s\n", created)
	}

	if len(entries) == 0 {
		_, _ = fmt.Fprintln(w, "\n  No readings reported.")
		return nil
	}

	_, _ = fmt.Fprintln(w)
	_, _ = bold.Fprintln(w, "  Recent Readings:")
	total, _ := device.Int(keys.AttrTotalLevels)
	for i, e := range entries {
		if i == statusHistoryRows {
			_, _ = fmt.Fprintf(w, "    ... %d older\n", len(entries)-statusHistoryRows)
			break
		}
		at, _ := e.String(keys.AttrCreationTimestamp)
		e[keys.AttrTotalLevels] = total
		_, _ = fmt.Fprintf(w, "    %s  %s\n", at, fillString(e))
	}
	_, _ = fmt.Fprintln(w)
	return nil
}

// fillString renders fill_level/total_levels, coloured by how full the can is.
func fillString(rec types.Record) string {
	fill, ok := rec.Int(keys.AttrFillLevel)
	if !ok {
		return color.YellowString("no reading")
	}
	total, ok := rec.Int(keys.AttrTotalLevels)
	if !ok || total <= 0 {
		return color.YellowString("%d/?", fill)
	}
	s := fmt.Sprintf("%d/%d", fill, total)
	switch {
	case fill >= total:
		return color.RedString(s)
	case fill*4 >= total*3:
		return color.YellowString(s)
	default:
		return color.GreenString(s)
	}
}
