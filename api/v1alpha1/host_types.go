package v1alpha1

// HostHealth is the observed health of a hypervisor host.
type HostHealth string

const (
	HostHealthReady    HostHealth = "ready"
	HostHealthDegraded HostHealth = "degraded"
	HostHealthUnreachable HostHealth = "unreachable"
)

// Host is a hypervisor host registered with the control plane, reachable
// either locally (qemu:///system, the control plane runs on it) or over
// SSH. Registered and deregistered out of band by an administrator.
type Host struct {
	TypeMeta   `json:",inline" yaml:",inline"`
	ObjectMeta `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	Spec   HostSpec   `json:"spec" yaml:"spec"`
	Status HostStatus `json:"status,omitempty" yaml:"status,omitempty"`
}

// HostSpec defines how the control plane reaches and sizes a Host.
type HostSpec struct {
	// Address is a libvirt connection URI (qemu:///system for local) or
	// an SSH-reachable hostname/IP when Transport is "ssh".
	Address   string `json:"address" yaml:"address"`
	Transport string `json:"transport" yaml:"transport"` // "local" | "ssh"
	Arch      Arch   `json:"arch" yaml:"arch"`

	// SSHUser and SSHIdentityFile are only used when Transport == "ssh".
	// +optional
	SSHUser string `json:"sshUser,omitempty" yaml:"sshUser,omitempty"`
	// +optional
	SSHIdentityFile string `json:"sshIdentityFile,omitempty" yaml:"sshIdentityFile,omitempty"`

	CapacityVCPUs   int   `json:"capacityVCPUs" yaml:"capacityVCPUs"`
	CapacityMemMiB  int64 `json:"capacityMemMiB" yaml:"capacityMemMiB"`
	CapacityDiskBytes int64 `json:"capacityDiskBytes" yaml:"capacityDiskBytes"`
}

// HostStatus defines the observed health and allocation of a Host.
type HostStatus struct {
	Health          HostHealth `json:"health,omitempty" yaml:"health,omitempty"`
	LastHeartbeat   Time       `json:"lastHeartbeat,omitempty" yaml:"lastHeartbeat,omitempty"`
	AllocatedVCPUs  int        `json:"allocatedVCPUs,omitempty" yaml:"allocatedVCPUs,omitempty"`
	AllocatedMemMiB int64      `json:"allocatedMemMiB,omitempty" yaml:"allocatedMemMiB,omitempty"`
	ActiveVMCount   int        `json:"activeVMCount,omitempty" yaml:"activeVMCount,omitempty"`

	// LibvirtVersion and BridgeNames are not filled in by any component;
	// the Driver keeps no host facts cache.
	// +optional
	LibvirtVersion string   `json:"libvirtVersion,omitempty" yaml:"libvirtVersion,omitempty"`
	// +optional
	BridgeNames []string `json:"bridgeNames,omitempty" yaml:"bridgeNames,omitempty"`
}

// DeepCopy creates a deep copy of Host.
func (in *Host) DeepCopy() *Host {
	if in == nil {
		return nil
	}
	out := new(Host)
	out.TypeMeta = *in.TypeMeta.DeepCopy()
	out.ObjectMeta = *in.ObjectMeta.DeepCopy()
	out.Spec = in.Spec
	out.Status = *in.Status.DeepCopy()
	return out
}

// DeepCopy creates a deep copy of HostStatus.
func (in *HostStatus) DeepCopy() *HostStatus {
	if in == nil {
		return nil
	}
	out := new(HostStatus)
	*out = *in
	if in.BridgeNames != nil {
		out.BridgeNames = make([]string, len(in.BridgeNames))
		copy(out.BridgeNames, in.BridgeNames)
	}
	return out
}
