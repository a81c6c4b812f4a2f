package v1alpha1

// VPC is a named, CIDR-scoped private network. Every VM NIC belongs to
// exactly one VPC and is placed on that VPC's per-host Linux bridge.
//
// +kubebuilder:object:root=true
type VPC struct {
	TypeMeta   `json:",inline" yaml:",inline"`
	ObjectMeta `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	Spec   VPCSpec   `json:"spec" yaml:"spec"`
	Status VPCStatus `json:"status,omitempty" yaml:"status,omitempty"`
}

// VPCSpec defines the desired state of a VPC.
type VPCSpec struct {
	// CIDR is the address range owned by this VPC.
	CIDR string `json:"cidr" yaml:"cidr"`

	// DefaultGateway is the gateway address handed to VMs that don't
	// override it at the subnet level.
	// +optional
	DefaultGateway string `json:"defaultGateway,omitempty" yaml:"defaultGateway,omitempty"`

	// MTU is applied to the VPC bridge on every host carrying a VM in
	// this VPC. Defaults to 1500.
	// +optional
	MTU int `json:"mtu,omitempty" yaml:"mtu,omitempty"`
}

// VPCStatus defines the observed state of a VPC.
type VPCStatus struct {
	// SubnetIDs lists the subnets carved out of this VPC's CIDR.
	// +optional
	SubnetIDs []string `json:"subnetIDs,omitempty" yaml:"subnetIDs,omitempty"`

	// ChainName is the deterministic iptables chain name compiled for
	// this VPC's firewall rules, e.g. "vpc-<id>-in".
	// +optional
	ChainName string `json:"chainName,omitempty" yaml:"chainName,omitempty"`

	// BridgeName is the deterministic per-host bridge name derived from
	// the VPC id.
	// +optional
	BridgeName string `json:"bridgeName,omitempty" yaml:"bridgeName,omitempty"`
}

// Subnet carves a CIDR out of a VPC for private-IP allocation purposes.
// Reserved addresses (network, gateway, broadcast) are never handed out by
// the IPAM allocator.
type Subnet struct {
	TypeMeta   `json:",inline" yaml:",inline"`
	ObjectMeta `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	Spec SubnetSpec `json:"spec" yaml:"spec"`
}

// SubnetSpec defines a subnet carved from a VPC's CIDR.
type SubnetSpec struct {
	VPCID string `json:"vpcID" yaml:"vpcID"`
	CIDR  string `json:"cidr" yaml:"cidr"`

	// ReservedAddresses are excluded from IPAM allocation: by convention
	// the network address, the gateway, and the broadcast address.
	// +optional
	ReservedAddresses []string `json:"reservedAddresses,omitempty" yaml:"reservedAddresses,omitempty"`
}

// FirewallDirection is the traffic direction a FirewallRule applies to.
type FirewallDirection string

const (
	FirewallDirectionInbound  FirewallDirection = "inbound"
	FirewallDirectionOutbound FirewallDirection = "outbound"
)

// FirewallProtocol is the transport protocol a FirewallRule matches.
type FirewallProtocol string

const (
	FirewallProtocolTCP  FirewallProtocol = "tcp"
	FirewallProtocolUDP  FirewallProtocol = "udp"
	FirewallProtocolICMP FirewallProtocol = "icmp"
)

// FirewallRule is scoped to a VPC and applies to every VM NIC on that VPC.
type FirewallRule struct {
	TypeMeta   `json:",inline" yaml:",inline"`
	ObjectMeta `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	Spec FirewallRuleSpec `json:"spec" yaml:"spec"`
}

// FirewallRuleSpec defines one rule within a VPC's compiled chain.
type FirewallRuleSpec struct {
	VPCID       string            `json:"vpcID" yaml:"vpcID"`
	Direction   FirewallDirection `json:"direction" yaml:"direction"`
	Protocol    FirewallProtocol  `json:"protocol" yaml:"protocol"`
	PortMin     int               `json:"portMin,omitempty" yaml:"portMin,omitempty"`
	PortMax     int               `json:"portMax,omitempty" yaml:"portMax,omitempty"`
	SourceCIDR  string            `json:"sourceCIDR,omitempty" yaml:"sourceCIDR,omitempty"`
	DestCIDR    string            `json:"destCIDR,omitempty" yaml:"destCIDR,omitempty"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`

	// Priority orders rules within the compiled chain: ascending priority,
	// then id lexicographic, for deterministic output.
	Priority int `json:"priority" yaml:"priority"`
}

// DeepCopy creates a deep copy of VPC.
func (in *VPC) DeepCopy() *VPC {
	if in == nil {
		return nil
	}
	out := new(VPC)
	out.TypeMeta = *in.TypeMeta.DeepCopy()
	out.ObjectMeta = *in.ObjectMeta.DeepCopy()
	out.Spec = in.Spec
	out.Status = *in.Status.DeepCopy()
	return out
}

// DeepCopy creates a deep copy of VPCStatus.
func (in *VPCStatus) DeepCopy() *VPCStatus {
	if in == nil {
		return nil
	}
	out := new(VPCStatus)
	*out = *in
	if in.SubnetIDs != nil {
		out.SubnetIDs = make([]string, len(in.SubnetIDs))
		copy(out.SubnetIDs, in.SubnetIDs)
	}
	return out
}

// DeepCopy creates a deep copy of Subnet.
func (in *Subnet) DeepCopy() *Subnet {
	if in == nil {
		return nil
	}
	out := new(Subnet)
	out.TypeMeta = *in.TypeMeta.DeepCopy()
	out.ObjectMeta = *in.ObjectMeta.DeepCopy()
	out.Spec = in.Spec
	if in.Spec.ReservedAddresses != nil {
		out.Spec.ReservedAddresses = make([]string, len(in.Spec.ReservedAddresses))
		copy(out.Spec.ReservedAddresses, in.Spec.ReservedAddresses)
	}
	return out
}

// DeepCopy creates a deep copy of FirewallRule.
func (in *FirewallRule) DeepCopy() *FirewallRule {
	if in == nil {
		return nil
	}
	out := new(FirewallRule)
	out.TypeMeta = *in.TypeMeta.DeepCopy()
	out.ObjectMeta = *in.ObjectMeta.DeepCopy()
	out.Spec = in.Spec
	return out
}
