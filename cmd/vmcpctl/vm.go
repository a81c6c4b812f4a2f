package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coreforge/vmcp/api/v1alpha1"
	"github.com/coreforge/vmcp/internal/loader"
)

var vmCmd = &cobra.Command{
	Use:   "vm",
	Short: "Manage virtual machines",
}

func init() {
	vmCmd.AddCommand(vmListCmd)
	vmCmd.AddCommand(vmGetCmd)
	vmCmd.AddCommand(vmCreateCmd)
	vmCmd.AddCommand(vmDeleteCmd)
	vmCmd.AddCommand(vmStartCmd)
	vmCmd.AddCommand(vmStopCmd)
	vmCmd.AddCommand(vmRestartCmd)
	vmCmd.AddCommand(vmResizeCmd)
	vmCmd.AddCommand(vmTerminateCmd)
	vmCmd.AddCommand(vmStatusCmd)
	vmCmd.AddCommand(vmConsoleCmd)
	vmCmd.AddCommand(vmAttachDiskCmd)
	vmCmd.AddCommand(vmDetachDiskCmd)
	vmCmd.AddCommand(vmAttachIPCmd)
	vmCmd.AddCommand(vmDetachIPCmd)
}

var vmListCmd = &cobra.Command{
	Use:   "list",
	Short: "List virtual machines",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Items []*v1alpha1.VirtualMachine `json:"items"`
		}
		if err := client().Get(cmd.Context(), "/api/vms", &resp); err != nil {
			return err
		}
		f, err := formatter()
		if err != nil {
			return err
		}
		out, err := f.FormatVMList(resp.Items)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

var vmGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Get a virtual machine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var vm v1alpha1.VirtualMachine
		if err := client().Get(cmd.Context(), "/api/vms/"+args[0], &vm); err != nil {
			return err
		}
		f, err := formatter()
		if err != nil {
			return err
		}
		out, err := f.FormatVM(&vm)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

var (
	vmCreateVPC          string
	vmCreateCPUCores     int
	vmCreateMemoryMB     int
	vmCreateDiskSizeGB   int
	vmCreateImageID      string
	vmCreateArch         string
	vmCreateAntiAffinity string
	vmCreateClientToken  string
	vmCreateFromFile     string
)

type createVMRequest struct {
	Name         string `json:"name"`
	VPC          string `json:"vpc"`
	CPUCores     int    `json:"cpu_cores"`
	MemoryMB     int    `json:"memory_mb"`
	DiskSizeGB   int    `json:"disk_size_gb"`
	ImageID      string `json:"image_id"`
	Arch         string `json:"arch,omitempty"`
	AntiAffinity string `json:"anti_affinity_tag,omitempty"`
	ClientToken  string `json:"client_token,omitempty"`
}

var vmCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a virtual machine, from flags or a YAML manifest (-f)",
	Long: `Create a virtual machine either from flags (name required as the
positional argument) or from a YAML manifest in the same
apiVersion/kind/metadata/spec shape the API itself returns:

  vmcpctl vm create web-1 --vpc vpc-a --image fedora-43 --cpus 2 --memory-mb 2048 --disk-gb 20
  vmcpctl vm create -f web-1.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var req createVMRequest
		if vmCreateFromFile != "" {
			manifest, err := loader.LoadFromFile(vmCreateFromFile)
			if err != nil {
				return fmt.Errorf("load manifest: %w", err)
			}
			req = createVMRequest{
				Name:         manifest.Name,
				VPC:          manifest.Spec.VPCID,
				CPUCores:     manifest.Spec.VCPUs,
				MemoryMB:     manifest.Spec.MemoryMiB,
				DiskSizeGB:   manifest.Spec.RootDiskSizeGB,
				ImageID:      manifest.Spec.ImageID,
				Arch:         string(manifest.Spec.Arch),
				AntiAffinity: manifest.Spec.AntiAffinityTag,
				ClientToken:  manifest.Spec.ClientToken,
			}
		} else {
			if len(args) != 1 {
				return fmt.Errorf("name is required unless -f is given")
			}
			req = createVMRequest{
				Name:         args[0],
				VPC:          vmCreateVPC,
				CPUCores:     vmCreateCPUCores,
				MemoryMB:     vmCreateMemoryMB,
				DiskSizeGB:   vmCreateDiskSizeGB,
				ImageID:      vmCreateImageID,
				Arch:         vmCreateArch,
				AntiAffinity: vmCreateAntiAffinity,
				ClientToken:  vmCreateClientToken,
			}
		}

		var vm v1alpha1.VirtualMachine
		if err := client().Post(cmd.Context(), "/api/vms", req, &vm); err != nil {
			return err
		}
		f, err := formatter()
		if err != nil {
			return err
		}
		out, err := f.FormatVM(&vm)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

func init() {
	vmCreateCmd.Flags().StringVar(&vmCreateVPC, "vpc", "", "VPC to place the VM in")
	vmCreateCmd.Flags().IntVar(&vmCreateCPUCores, "cpus", 1, "number of vCPUs")
	vmCreateCmd.Flags().IntVar(&vmCreateMemoryMB, "memory-mb", 1024, "memory in MiB, a multiple of 512")
	vmCreateCmd.Flags().IntVar(&vmCreateDiskSizeGB, "disk-gb", 10, "root disk size in GB")
	vmCreateCmd.Flags().StringVar(&vmCreateImageID, "image", "", "base image ID")
	vmCreateCmd.Flags().StringVar(&vmCreateArch, "arch", "", "x86_64 or aarch64 (default x86_64)")
	vmCreateCmd.Flags().StringVar(&vmCreateAntiAffinity, "anti-affinity-tag", "", "anti-affinity tag")
	vmCreateCmd.Flags().StringVar(&vmCreateClientToken, "client-token", "", "idempotency token")
	vmCreateCmd.Flags().StringVarP(&vmCreateFromFile, "from-file", "f", "", "create from a YAML VirtualMachine manifest instead of flags")
}

var vmDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Terminate a virtual machine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return client().Delete(cmd.Context(), "/api/vms/"+args[0], nil)
	},
}

var vmTerminateCmd = &cobra.Command{
	Use:   "terminate <name>",
	Short: "Terminate a virtual machine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return client().Post(cmd.Context(), "/api/vms/"+args[0]+"/terminate", nil, nil)
	},
}

var vmStartCmd = &cobra.Command{
	Use:   "start <name>",
	Short: "Start a stopped virtual machine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return client().Post(cmd.Context(), "/api/vms/"+args[0]+"/start", nil, nil)
	},
}

var vmStopCmd = &cobra.Command{
	Use:   "stop <name>",
	Short: "Stop a running virtual machine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return client().Post(cmd.Context(), "/api/vms/"+args[0]+"/stop", nil, nil)
	},
}

var vmRestartCmd = &cobra.Command{
	Use:   "restart <name>",
	Short: "Restart a running virtual machine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return client().Post(cmd.Context(), "/api/vms/"+args[0]+"/restart", nil, nil)
	},
}

var (
	vmResizeCPUCores int
	vmResizeMemoryMB int
)

type resizeVMRequest struct {
	CPUCores int `json:"cpu_cores,omitempty"`
	MemoryMB int `json:"memory_mb,omitempty"`
}

var vmResizeCmd = &cobra.Command{
	Use:   "resize <name>",
	Short: "Resize a stopped virtual machine's CPU/memory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := resizeVMRequest{CPUCores: vmResizeCPUCores, MemoryMB: vmResizeMemoryMB}
		return client().Post(cmd.Context(), "/api/vms/"+args[0]+"/resize", req, nil)
	},
}

func init() {
	vmResizeCmd.Flags().IntVar(&vmResizeCPUCores, "cpus", 0, "new vCPU count (0 = unchanged)")
	vmResizeCmd.Flags().IntVar(&vmResizeMemoryMB, "memory-mb", 0, "new memory in MiB (0 = unchanged)")
}

var vmStatusCmd = &cobra.Command{
	Use:   "status <name>",
	Short: "Show a virtual machine's merged store/driver status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp map[string]any
		if err := client().Get(cmd.Context(), "/api/vms/"+args[0]+"/status", &resp); err != nil {
			return err
		}
		fmt.Printf("%+v\n", resp)
		return nil
	},
}

var vmConsoleCmd = &cobra.Command{
	Use:   "console <name>",
	Short: "Print a signed serial console WebSocket URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			URL string `json:"url"`
		}
		if err := client().Get(cmd.Context(), "/api/vms/"+args[0]+"/serial-console", &resp); err != nil {
			return err
		}
		fmt.Println(serverURL + resp.URL)
		return nil
	},
}

type attachDiskRequest struct {
	DiskID string `json:"disk_id"`
	Device string `json:"device"`
}

var vmAttachDiskCmd = &cobra.Command{
	Use:   "attach-disk <vm-name> <disk-id> <device>",
	Short: "Attach a disk to a virtual machine",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := attachDiskRequest{DiskID: args[1], Device: args[2]}
		return client().Post(cmd.Context(), "/api/vms/"+args[0]+"/disks/attach", req, nil)
	},
}

type detachDiskRequest struct {
	DiskID string `json:"disk_id"`
}

var vmDetachDiskCmd = &cobra.Command{
	Use:   "detach-disk <vm-name> <disk-id>",
	Short: "Detach a disk from a virtual machine",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := detachDiskRequest{DiskID: args[1]}
		return client().Post(cmd.Context(), "/api/vms/"+args[0]+"/disks/detach", req, nil)
	},
}

type floatingIPRequest struct {
	Address string `json:"address"`
}

var vmAttachIPCmd = &cobra.Command{
	Use:   "attach-ip <vm-name> <address>",
	Short: "Bind a reserved floating IP to a virtual machine",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := floatingIPRequest{Address: args[1]}
		return client().Post(cmd.Context(), "/api/vms/"+args[0]+"/ips/attach", req, nil)
	},
}

var vmDetachIPCmd = &cobra.Command{
	Use:   "detach-ip <vm-name> <address>",
	Short: "Unbind a floating IP from a virtual machine",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := floatingIPRequest{Address: args[1]}
		return client().Post(cmd.Context(), "/api/vms/"+args[0]+"/ips/detach", req, nil)
	},
}
