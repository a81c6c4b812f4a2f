package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coreforge/vmcp/api/v1alpha1"
)

var migrationCmd = &cobra.Command{
	Use:   "migration",
	Short: "Manage live migrations",
}

func init() {
	migrationCmd.AddCommand(migrationListCmd)
	migrationCmd.AddCommand(migrationCreateCmd)
	migrationCmd.AddCommand(migrationStatusCmd)
	migrationCmd.AddCommand(migrationCancelCmd)
}

var migrationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Items []*v1alpha1.Migration `json:"items"`
		}
		if err := client().Get(cmd.Context(), "/api/migrations", &resp); err != nil {
			return err
		}
		f, err := formatter()
		if err != nil {
			return err
		}
		out, err := f.FormatMigrationList(resp.Items)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

var (
	migrationBandwidthCap int64
	migrationMaxDowntime  int
	migrationCompressed   bool
)

type createMigrationRequest struct {
	VM                      string `json:"vm"`
	DestinationHostID       string `json:"destination_host_id"`
	BandwidthCapBytesPerSec int64  `json:"bandwidth_cap_bytes_per_sec,omitempty"`
	MaxDowntimeMS           int    `json:"max_downtime_ms,omitempty"`
	Compressed              bool   `json:"compressed,omitempty"`
}

var migrationCreateCmd = &cobra.Command{
	Use:   "create <vm-name> <destination-host>",
	Short: "Live-migrate a virtual machine to another host",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := createMigrationRequest{
			VM:                      args[0],
			DestinationHostID:       args[1],
			BandwidthCapBytesPerSec: migrationBandwidthCap,
			MaxDowntimeMS:           migrationMaxDowntime,
			Compressed:              migrationCompressed,
		}
		var mig v1alpha1.Migration
		if err := client().Post(cmd.Context(), "/api/migrations", req, &mig); err != nil {
			return err
		}
		fmt.Printf("migration %s started: %s -> %s\n", mig.Name, mig.Spec.SourceHostID, mig.Spec.DestinationHostID)
		return nil
	},
}

func init() {
	migrationCreateCmd.Flags().Int64Var(&migrationBandwidthCap, "bandwidth-cap", 0, "bandwidth cap in bytes/sec (0 = unlimited)")
	migrationCreateCmd.Flags().IntVar(&migrationMaxDowntime, "max-downtime-ms", 0, "max downtime in milliseconds (0 = driver default)")
	migrationCreateCmd.Flags().BoolVar(&migrationCompressed, "compressed", false, "enable page compression during precopy")
}

var migrationStatusCmd = &cobra.Command{
	Use:   "status <vm-name>",
	Short: "Show an in-flight migration's status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var mig v1alpha1.Migration
		if err := client().Get(cmd.Context(), "/api/migrations/"+args[0]+"/status", &mig); err != nil {
			return err
		}
		f, err := formatter()
		if err != nil {
			return err
		}
		out, err := f.FormatMigration(&mig)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

var migrationCancelCmd = &cobra.Command{
	Use:   "cancel <vm-name>",
	Short: "Cancel an in-flight migration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return client().Delete(cmd.Context(), "/api/migrations/"+args[0], nil)
	},
}
