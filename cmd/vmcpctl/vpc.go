package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coreforge/vmcp/api/v1alpha1"
)

var vpcCmd = &cobra.Command{
	Use:   "vpc",
	Short: "Manage VPCs, subnets, and firewall rules",
}

func init() {
	vpcCmd.AddCommand(vpcListCmd)
	vpcCmd.AddCommand(vpcGetCmd)
	vpcCmd.AddCommand(vpcCreateCmd)
	vpcCmd.AddCommand(vpcDeleteCmd)
	vpcCmd.AddCommand(subnetCreateCmd)
	vpcCmd.AddCommand(subnetDeleteCmd)
	vpcCmd.AddCommand(firewallRuleListCmd)
	vpcCmd.AddCommand(firewallRuleCreateCmd)
	vpcCmd.AddCommand(firewallRuleDeleteCmd)
}

var vpcListCmd = &cobra.Command{
	Use:   "list",
	Short: "List VPCs",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Items []*v1alpha1.VPC `json:"items"`
		}
		if err := client().Get(cmd.Context(), "/api/vpcs", &resp); err != nil {
			return err
		}
		f, err := formatter()
		if err != nil {
			return err
		}
		out, err := f.FormatVPCList(resp.Items)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

var vpcGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Get a VPC",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var vpc v1alpha1.VPC
		if err := client().Get(cmd.Context(), "/api/vpcs/"+args[0], &vpc); err != nil {
			return err
		}
		f, err := formatter()
		if err != nil {
			return err
		}
		out, err := f.FormatVPC(&vpc)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

var (
	vpcCreateGateway string
	vpcCreateMTU     int
)

type createVPCRequest struct {
	Name           string `json:"name"`
	CIDR           string `json:"cidr"`
	DefaultGateway string `json:"defaultGateway,omitempty"`
	MTU            int    `json:"mtu,omitempty"`
}

var vpcCreateCmd = &cobra.Command{
	Use:   "create <name> <cidr>",
	Short: "Create a VPC",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := createVPCRequest{Name: args[0], CIDR: args[1], DefaultGateway: vpcCreateGateway, MTU: vpcCreateMTU}
		var vpc v1alpha1.VPC
		if err := client().Post(cmd.Context(), "/api/vpcs", req, &vpc); err != nil {
			return err
		}
		f, err := formatter()
		if err != nil {
			return err
		}
		out, err := f.FormatVPC(&vpc)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

func init() {
	vpcCreateCmd.Flags().StringVar(&vpcCreateGateway, "gateway", "", "default gateway address")
	vpcCreateCmd.Flags().IntVar(&vpcCreateMTU, "mtu", 0, "bridge MTU (0 = driver default)")
}

var vpcDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a VPC",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return client().Delete(cmd.Context(), "/api/vpcs/"+args[0], nil)
	},
}

var subnetCreateReserved []string

type createSubnetRequest struct {
	Name              string   `json:"name"`
	CIDR              string   `json:"cidr"`
	ReservedAddresses []string `json:"reservedAddresses,omitempty"`
}

var subnetCreateCmd = &cobra.Command{
	Use:   "subnet-create <vpc-name> <subnet-name> <cidr>",
	Short: "Create a subnet within a VPC",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := createSubnetRequest{Name: args[1], CIDR: args[2], ReservedAddresses: subnetCreateReserved}
		var subnet v1alpha1.Subnet
		return client().Post(cmd.Context(), "/api/vpcs/"+args[0]+"/subnets", req, &subnet)
	},
}

func init() {
	subnetCreateCmd.Flags().StringSliceVar(&subnetCreateReserved, "reserve", nil, "addresses to reserve out of the subnet")
}

var subnetDeleteCmd = &cobra.Command{
	Use:   "subnet-delete <vpc-name> <subnet-name>",
	Short: "Delete a subnet",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return client().Delete(cmd.Context(), "/api/vpcs/"+args[0]+"/subnets/"+args[1], nil)
	},
}

var firewallRuleListCmd = &cobra.Command{
	Use:   "firewall-rules <vpc-name>",
	Short: "List firewall rules for a VPC",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Items []*v1alpha1.FirewallRule `json:"items"`
		}
		if err := client().Get(cmd.Context(), "/api/vpcs/"+args[0]+"/firewall-rules", &resp); err != nil {
			return err
		}
		if len(resp.Items) == 0 {
			fmt.Println("No firewall rules found")
			return nil
		}
		for _, r := range resp.Items {
			fmt.Printf("%s\t%s\t%s\tports %d-%d\t%s -> %s\tprio %d\n",
				r.Name, r.Spec.Direction, r.Spec.Protocol, r.Spec.PortMin, r.Spec.PortMax,
				r.Spec.SourceCIDR, r.Spec.DestCIDR, r.Spec.Priority)
		}
		return nil
	},
}

var (
	fwPortMin     int
	fwPortMax     int
	fwSourceCIDR  string
	fwDestCIDR    string
	fwDescription string
	fwPriority    int
)

type createFirewallRuleRequest struct {
	Direction   string `json:"direction"`
	Protocol    string `json:"protocol"`
	PortMin     int    `json:"portMin,omitempty"`
	PortMax     int    `json:"portMax,omitempty"`
	SourceCIDR  string `json:"sourceCIDR,omitempty"`
	DestCIDR    string `json:"destCIDR,omitempty"`
	Description string `json:"description,omitempty"`
	Priority    int    `json:"priority,omitempty"`
}

var firewallRuleCreateCmd = &cobra.Command{
	Use:   "firewall-rule-create <vpc-name> <direction> <protocol>",
	Short: "Create a firewall rule on a VPC (direction: inbound|outbound, protocol: tcp|udp|icmp)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := createFirewallRuleRequest{
			Direction:   args[1],
			Protocol:    args[2],
			PortMin:     fwPortMin,
			PortMax:     fwPortMax,
			SourceCIDR:  fwSourceCIDR,
			DestCIDR:    fwDestCIDR,
			Description: fwDescription,
			Priority:    fwPriority,
		}
		var rule v1alpha1.FirewallRule
		if err := client().Post(cmd.Context(), "/api/vpcs/"+args[0]+"/firewall-rules", req, &rule); err != nil {
			return err
		}
		fmt.Printf("firewall rule %s created\n", rule.Name)
		return nil
	},
}

func init() {
	firewallRuleCreateCmd.Flags().IntVar(&fwPortMin, "port-min", 0, "minimum port")
	firewallRuleCreateCmd.Flags().IntVar(&fwPortMax, "port-max", 0, "maximum port")
	firewallRuleCreateCmd.Flags().StringVar(&fwSourceCIDR, "source", "", "source CIDR")
	firewallRuleCreateCmd.Flags().StringVar(&fwDestCIDR, "dest", "", "destination CIDR")
	firewallRuleCreateCmd.Flags().StringVar(&fwDescription, "description", "", "rule description")
	firewallRuleCreateCmd.Flags().IntVar(&fwPriority, "priority", 0, "rule priority, lower evaluates first")
}

var firewallRuleDeleteCmd = &cobra.Command{
	Use:   "firewall-rule-delete <vpc-name> <rule-id>",
	Short: "Delete a firewall rule",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return client().Delete(cmd.Context(), "/api/vpcs/"+args[0]+"/firewall-rules/"+args[1], nil)
	},
}
