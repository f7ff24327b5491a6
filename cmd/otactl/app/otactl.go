package app

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/autopeer-io/ota-backend/internal/otabackend/ota"
	"github.com/autopeer-io/ota-backend/pkg/options"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

func NewOtactlCommand() *cobra.Command {
	opts := options.NewHttpOptions()
	opts.Addr = "127.0.0.1:8080"

	cmd := &cobra.Command{
		Use:           "otactl",
		Short:         "Inspect and drive a local ota-backend",
		SilenceUsage:  true,
	}
	opts.AddFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newStatusCommand(opts),
		newStartCommand(opts),
		newRebootCommand(opts),
	)
	return cmd
}

func newStatusCommand(opts *options.HttpOptions) *cobra.Command {
	output := outputTable
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current run and slot status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := NewClient(opts).Status(cmd.Context())
			if err != nil {
				return err
			}
			switch output {
			case outputJSON:
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(status)
			case outputTable:
				printStatus(cmd.OutOrStdout(), status)
				return nil
			default:
				return fmt.Errorf("unknown output format %q", output)
			}
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", output, "Output format, 'table' or 'json'.")
	return cmd
}

func newStartCommand(opts *options.HttpOptions) *cobra.Command {
	var req ota.StartRequest
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start an update run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := req.Validate(); err != nil {
				return err
			}
			req.Complete()

			resp, err := NewClient(opts).Start(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "started %s\n", resp.OTAID)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.URL, "url", "", "Bundle URL (http, https or s3).")
	cmd.Flags().StringVar(&req.TargetVersion, "version", "", "Firmware version the bundle installs.")
	cmd.Flags().StringVar(&req.OTAID, "id", "", "Run ID, generated when empty.")
	return cmd
}

func newRebootCommand(opts *options.HttpOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reboot",
		Short: "Reboot the device into the active slot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := NewClient(opts).Reboot(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "reboot requested")
			return nil
		},
	}
}

func printStatus(w io.Writer, s *ota.StatusResponse) {
	table := uitable.New()
	table.MaxColWidth = 80
	table.Wrap = true
	table.AddRow("PHASE:", orDash(s.Phase))
	table.AddRow("EVENT:", orDash(s.Event))
	table.AddRow("ACTIVE OTA:", orDash(s.ActiveOTAID))
	table.AddRow("CURRENT VERSION:", orDash(s.CurrentVersion))
	table.AddRow("TARGET VERSION:", orDash(s.TargetVersion))
	table.AddRow("LAST ERROR:", orDash(s.LastError))
	table.AddRow("COMPATIBLE:", orDash(s.Compatible))
	table.AddRow("BOOTED SLOT:", orDash(s.CurrentSlot))
	fmt.Fprintln(w, table)

	if len(s.Slots) == 0 {
		return
	}
	slots := uitable.New()
	slots.AddRow("SLOT", "STATE", "BOOTNAME", "DEVICE", "BOOT STATUS")
	for _, slot := range s.Slots {
		slots.AddRow(slot.Name, slot.State, orDash(&slot.BootName), orDash(&slot.Device), orDash(&slot.BootStatus))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, slots)
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
