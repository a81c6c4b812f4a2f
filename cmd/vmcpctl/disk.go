package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coreforge/vmcp/api/v1alpha1"
)

var diskCmd = &cobra.Command{
	Use:   "disk",
	Short: "Manage standalone disks",
}

func init() {
	diskCmd.AddCommand(diskListCmd)
	diskCmd.AddCommand(diskCreateCmd)
	diskCmd.AddCommand(diskDeleteCmd)
	diskCmd.AddCommand(diskResizeCmd)
}

var diskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List disks",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Items []*v1alpha1.Disk `json:"items"`
		}
		if err := client().Get(cmd.Context(), "/api/disks", &resp); err != nil {
			return err
		}
		f, err := formatter()
		if err != nil {
			return err
		}
		out, err := f.FormatDiskList(resp.Items)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

type createDiskRequest struct {
	Name   string `json:"name"`
	SizeGB int    `json:"size_gb"`
}

var diskCreateCmd = &cobra.Command{
	Use:   "create <name> <size-gb>",
	Short: "Create a standalone disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sizeGB, err := parseInt(args[1])
		if err != nil {
			return fmt.Errorf("invalid size_gb %q: %w", args[1], err)
		}
		req := createDiskRequest{Name: args[0], SizeGB: sizeGB}
		var disk v1alpha1.Disk
		if err := client().Post(cmd.Context(), "/api/disks", req, &disk); err != nil {
			return err
		}
		f, err := formatter()
		if err != nil {
			return err
		}
		out, err := f.FormatDisk(&disk)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

var diskDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a disk",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return client().Delete(cmd.Context(), "/api/disks/"+args[0], nil)
	},
}

type resizeDiskRequest struct {
	SizeGB int `json:"size_gb"`
}

var diskResizeCmd = &cobra.Command{
	Use:   "resize <name> <size-gb>",
	Short: "Grow a disk (grow-only)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sizeGB, err := parseInt(args[1])
		if err != nil {
			return fmt.Errorf("invalid size_gb %q: %w", args[1], err)
		}
		req := resizeDiskRequest{SizeGB: sizeGB}
		return client().Post(cmd.Context(), "/api/disks/"+args[0]+"/resize", req, nil)
	},
}
