package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/coreforge/vmcp/internal/apiclient"
	"github.com/coreforge/vmcp/internal/output"
)

var (
	version = "dev"
	commit  = "unknown"
)

var (
	serverURL    string
	outputFormat string
	noHeaders    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vmcpctl",
	Short: "vmcpctl - control plane client for vmcpd",
	Long: `vmcpctl talks to a running vmcpd instance over its HTTP API to manage
VPCs, virtual machines, disks, floating IPs, and live migrations.`,
	Version: fmt.Sprintf("%s (commit: %s)", version, commit),
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://127.0.0.1:8080", "vmcpd API base URL")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, yaml, json")
	rootCmd.PersistentFlags().BoolVar(&noHeaders, "no-headers", false, "omit table headers")

	rootCmd.AddCommand(vmCmd)
	rootCmd.AddCommand(vpcCmd)
	rootCmd.AddCommand(diskCmd)
	rootCmd.AddCommand(ipCmd)
	rootCmd.AddCommand(migrationCmd)
	rootCmd.AddCommand(imageCmd)
}

func client() *apiclient.Client {
	return apiclient.New(serverURL)
}

func formatter() (output.Formatter, error) {
	if err := output.ValidateFormat(outputFormat); err != nil {
		return nil, err
	}
	return output.NewFormatter(output.Options{
		Format:    output.Format(outputFormat),
		NoHeaders: noHeaders,
	})
}
