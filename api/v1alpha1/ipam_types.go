package v1alpha1

// IPAllocationScope distinguishes VPC-private addressing from the shared
// public floating-IP pool.
type IPAllocationScope string

const (
	IPAllocationScopeVPC    IPAllocationScope = "vpc"
	IPAllocationScopePublic IPAllocationScope = "public-pool"
)

// IPAllocationStatus is the lifecycle state of a reserved address.
type IPAllocationStatus string

const (
	IPAllocationReserved IPAllocationStatus = "reserved"
	IPAllocationBound    IPAllocationStatus = "bound"
	IPAllocationReleased IPAllocationStatus = "released"
)

// IPAllocation records ownership of one address within one scope. The Store
// key is the pair (scope, address); no two non-released rows may share it.
type IPAllocation struct {
	TypeMeta   `json:",inline" yaml:",inline"`
	ObjectMeta `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	Spec IPAllocationSpec `json:"spec" yaml:"spec"`
}

// IPAllocationSpec defines one address reservation.
type IPAllocationSpec struct {
	Scope   IPAllocationScope  `json:"scope" yaml:"scope"`
	ScopeID string             `json:"scopeID,omitempty" yaml:"scopeID,omitempty"`
	Address string             `json:"address" yaml:"address"`
	Owner   string             `json:"owner,omitempty" yaml:"owner,omitempty"`
	Status  IPAllocationStatus `json:"status" yaml:"status"`

	// ReservedAt records when the allocation was first reserved, used by
	// the grace-period sweeper to reap abandoned reservations.
	ReservedAt Time `json:"reservedAt,omitempty" yaml:"reservedAt,omitempty"`
}

// FloatingIP is a publicly routable address exposed via DNAT to a VM's
// private IP. Added to the public pool by an administrator.
type FloatingIP struct {
	TypeMeta   `json:",inline" yaml:",inline"`
	ObjectMeta `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	Spec   FloatingIPSpec   `json:"spec" yaml:"spec"`
	Status FloatingIPStatus `json:"status,omitempty" yaml:"status,omitempty"`
}

// FloatingIPSpec defines a publicly routable address.
type FloatingIPSpec struct {
	Address string `json:"address" yaml:"address"`
}

// FloatingIPStatus defines the observed binding state of a FloatingIP.
type FloatingIPStatus struct {
	// BoundVMID is the VM currently holding this address, empty if free.
	// +optional
	BoundVMID string `json:"boundVMID,omitempty" yaml:"boundVMID,omitempty"`

	// LastRebindTime is when BoundVMID last changed.
	// +optional
	LastRebindTime Time `json:"lastRebindTime,omitempty" yaml:"lastRebindTime,omitempty"`
}

// DeepCopy creates a deep copy of IPAllocation.
func (in *IPAllocation) DeepCopy() *IPAllocation {
	if in == nil {
		return nil
	}
	out := new(IPAllocation)
	out.TypeMeta = *in.TypeMeta.DeepCopy()
	out.ObjectMeta = *in.ObjectMeta.DeepCopy()
	out.Spec = in.Spec
	return out
}

// DeepCopy creates a deep copy of FloatingIP.
func (in *FloatingIP) DeepCopy() *FloatingIP {
	if in == nil {
		return nil
	}
	out := new(FloatingIP)
	out.TypeMeta = *in.TypeMeta.DeepCopy()
	out.ObjectMeta = *in.ObjectMeta.DeepCopy()
	out.Spec = in.Spec
	out.Status = in.Status
	return out
}
