package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coreforge/vmcp/api/v1alpha1"
)

var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "Inspect base images",
}

func init() {
	imageCmd.AddCommand(imageListCmd)
}

var imageListCmd = &cobra.Command{
	Use:   "list",
	Short: "List base images staged on hosts",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Items []*v1alpha1.Image `json:"items"`
		}
		if err := client().Get(cmd.Context(), "/api/images", &resp); err != nil {
			return err
		}
		f, err := formatter()
		if err != nil {
			return err
		}
		out, err := f.FormatImageList(resp.Items)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}
