package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coreforge/vmcp/api/v1alpha1"
)

var ipCmd = &cobra.Command{
	Use:   "ip",
	Short: "Manage the floating IP pool",
}

func init() {
	ipCmd.AddCommand(ipListCmd)
	ipCmd.AddCommand(ipCreateCmd)
	ipCmd.AddCommand(ipDeleteCmd)
}

var ipListCmd = &cobra.Command{
	Use:   "list",
	Short: "List floating IPs",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Items []*v1alpha1.FloatingIP `json:"items"`
		}
		if err := client().Get(cmd.Context(), "/api/ips", &resp); err != nil {
			return err
		}
		f, err := formatter()
		if err != nil {
			return err
		}
		out, err := f.FormatFloatingIPList(resp.Items)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

var ipCreateCmd = &cobra.Command{
	Use:   "create <address>",
	Short: "Add an address to the floating IP pool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := floatingIPRequest{Address: args[0]}
		var fip v1alpha1.FloatingIP
		if err := client().Post(cmd.Context(), "/api/ips", req, &fip); err != nil {
			return err
		}
		f, err := formatter()
		if err != nil {
			return err
		}
		out, err := f.FormatFloatingIP(&fip)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

var ipDeleteCmd = &cobra.Command{
	Use:   "delete <address>",
	Short: "Remove an address from the floating IP pool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return client().Delete(cmd.Context(), "/api/ips/"+args[0], nil)
	},
}
