package v1alpha1

// VirtualMachine is a libvirt-backed VM managed by the control plane.
//
// This resource separates desired state (Spec) from observed state
// (Status), following Kubernetes API conventions.
//
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:shortName=vm;vms
// +kubebuilder:printcolumn:name="Phase",type=string,JSONPath=`.status.phase`
// +kubebuilder:printcolumn:name="Host",type=string,JSONPath=`.status.ownerHostID`
// +kubebuilder:printcolumn:name="Age",type=date,JSONPath=`.metadata.creationTimestamp`
type VirtualMachine struct {
	TypeMeta   `json:",inline" yaml:",inline"`
	ObjectMeta `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	Spec   VirtualMachineSpec   `json:"spec" yaml:"spec"`
	Status VirtualMachineStatus `json:"status,omitempty" yaml:"status,omitempty"`
}

// VirtualMachineSpec defines the desired state of a VirtualMachine.
//
// +k8s:deepcopy-gen=true
type VirtualMachineSpec struct {
	VPCID string `json:"vpcID" yaml:"vpcID"`
	ImageID string `json:"imageID" yaml:"imageID"`

	// An empty Arch is set to x86_64 by the manifest loader and by the
	// API's CreateVM; the host's native architecture is not consulted.
	// +optional
	Arch Arch `json:"arch,omitempty" yaml:"arch,omitempty"`

	// +kubebuilder:validation:Minimum=1
	VCPUs int `json:"vcpus" yaml:"vcpus"`

	// +kubebuilder:validation:Minimum=512
	MemoryMiB int `json:"memoryMiB" yaml:"memoryMiB"`

	// +kubebuilder:validation:Minimum=10
	RootDiskSizeGB int `json:"rootDiskSizeGB" yaml:"rootDiskSizeGB"`

	// CPUMode defines the CPU model exposure mode.
	// Valid values: "host-model" (default), "host-passthrough".
	// +optional
	CPUMode string `json:"cpuMode,omitempty" yaml:"cpuMode,omitempty"`

	// DiskAttachments references Disk entities attached at creation time
	// or via a later attach call.
	// +optional
	DiskAttachments []VMDiskAttachment `json:"diskAttachments,omitempty" yaml:"diskAttachments,omitempty"`

	// NICs defines the network interfaces; exactly one private address
	// per NIC, resolved through IPAM against Spec.VPCID.
	// +kubebuilder:validation:MinItems=1
	NICs []VMNICSpec `json:"nics" yaml:"nics"`

	// AntiAffinityTag, when set, keeps VMs sharing the same tag off the
	// same host whenever the Scheduler can satisfy it.
	// +optional
	AntiAffinityTag string `json:"antiAffinityTag,omitempty" yaml:"antiAffinityTag,omitempty"`

	CloudInit *CloudInitSpec `json:"cloudInit,omitempty" yaml:"cloudInit,omitempty"`

	// DesiredPower is the user's intent: "on" or "off".
	// +kubebuilder:validation:Enum=on;off
	DesiredPower string `json:"desiredPower" yaml:"desiredPower"`

	// ClientToken de-duplicates retried create requests: re-issuing the
	// same create with the same token returns the existing VM id.
	// +optional
	ClientToken string `json:"clientToken,omitempty" yaml:"clientToken,omitempty"`
}

// VMDiskAttachment references a Disk entity and the device slot it should
// occupy on this VM.
type VMDiskAttachment struct {
	DiskID string `json:"diskID" yaml:"diskID"`
	Device string `json:"device" yaml:"device"`
}

// VMNICSpec defines one network interface's desired configuration. The
// private IP is filled in by IPAM at reconcile time if left empty.
//
// +k8s:deepcopy-gen=true
type VMNICSpec struct {
	// PrivateIP, if set, pins a specific address instead of letting IPAM
	// pick the next free one.
	// +optional
	PrivateIP string `json:"privateIP,omitempty" yaml:"privateIP,omitempty"`

	DNSServers   []string `json:"dnsServers,omitempty" yaml:"dnsServers,omitempty"`
	DefaultRoute bool     `json:"defaultRoute,omitempty" yaml:"defaultRoute,omitempty"`

	// FloatingIP, if set, requests a NAT-mapped public address for this
	// NIC (bound through the Driver's per-host DNAT rule).
	// +optional
	FloatingIP string `json:"floatingIP,omitempty" yaml:"floatingIP,omitempty"`
}

// CloudInitSpec defines the recognized cloud-init option set. Unknown keys
// are rejected at the API boundary rather than silently ignored.
//
// +k8s:deepcopy-gen=true
type CloudInitSpec struct {
	Hostname string              `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	Users    []CloudInitUser     `json:"users,omitempty" yaml:"users,omitempty"`
	Packages []string            `json:"packages,omitempty" yaml:"packages,omitempty"`
	RunCmd   []string            `json:"runcmd,omitempty" yaml:"runcmd,omitempty"`
	WriteFiles []CloudInitFile   `json:"writeFiles,omitempty" yaml:"writeFiles,omitempty"`
	Timezone string              `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	AptSources map[string]AptSource `json:"aptSources,omitempty" yaml:"aptSources,omitempty"`
}

// CloudInitUser defines one guest user account to provision.
type CloudInitUser struct {
	Name              string   `json:"name" yaml:"name"`
	Sudo              string   `json:"sudo,omitempty" yaml:"sudo,omitempty"`
	Shell             string   `json:"shell,omitempty" yaml:"shell,omitempty"`
	SSHAuthorizedKeys []string `json:"sshAuthorizedKeys,omitempty" yaml:"sshAuthorizedKeys,omitempty"`
}

// CloudInitFile defines one file to write on first boot.
type CloudInitFile struct {
	Path        string `json:"path" yaml:"path"`
	Content     string `json:"content" yaml:"content"`
	Permissions string `json:"permissions,omitempty" yaml:"permissions,omitempty"`
	Owner       string `json:"owner,omitempty" yaml:"owner,omitempty"`
}

// AptSource defines one additional apt repository.
type AptSource struct {
	Source string `json:"source" yaml:"source"`
	KeyID  string `json:"keyid,omitempty" yaml:"keyid,omitempty"`
}

// VMPhase is the observed lifecycle phase of a VirtualMachine, matching the
// state machine the Reconciler drives.
type VMPhase string

const (
	VMPhaseCreating   VMPhase = "creating"
	VMPhaseStarting   VMPhase = "starting"
	VMPhaseRunning    VMPhase = "running"
	VMPhaseStopping   VMPhase = "stopping"
	VMPhaseStopped    VMPhase = "stopped"
	VMPhaseMigrating  VMPhase = "migrating"
	VMPhaseResizing   VMPhase = "resizing"
	VMPhaseError      VMPhase = "error"
	VMPhaseTerminating VMPhase = "terminating"
	VMPhaseTerminated VMPhase = "terminated"
)

// VirtualMachineStatus defines the observed state of a VirtualMachine.
//
// +k8s:deepcopy-gen=true
type VirtualMachineStatus struct {
	Phase       VMPhase `json:"phase,omitempty" yaml:"phase,omitempty"`
	Conditions  []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`

	// OwnerHostID is non-empty once the Scheduler has placed the VM.
	// +optional
	OwnerHostID string `json:"ownerHostID,omitempty" yaml:"ownerHostID,omitempty"`

	ObservedPower string `json:"observedPower,omitempty" yaml:"observedPower,omitempty"`

	NICs []VMNICStatus `json:"nics,omitempty" yaml:"nics,omitempty"`

	// +optional
	DomainUUID string `json:"domainUUID,omitempty" yaml:"domainUUID,omitempty"`
	// +optional
	SSHHostPort int `json:"sshHostPort,omitempty" yaml:"sshHostPort,omitempty"`
	// +optional
	VNCPort int `json:"vncPort,omitempty" yaml:"vncPort,omitempty"`
	// +optional
	SerialConsolePath string `json:"serialConsolePath,omitempty" yaml:"serialConsolePath,omitempty"`

	// LastError records the most recent terminal or transient error seen
	// by the Reconciler; cleared explicitly on user-initiated retry.
	// +optional
	LastError *VMError `json:"lastError,omitempty" yaml:"lastError,omitempty"`

	// DriftDigest is a sha256 of the last-applied domain XML, stamped by
	// the Driver into domain metadata so status queries can report
	// drift without re-generating XML.
	// +optional
	DriftDigest string `json:"driftDigest,omitempty" yaml:"driftDigest,omitempty"`

	// Generation increases on every observed-state transition; API
	// responses echo it for optimistic-concurrency checks.
	Generation int64 `json:"generation,omitempty" yaml:"generation,omitempty"`

	ObservedGeneration int64 `json:"observedGeneration,omitempty" yaml:"observedGeneration,omitempty"`
}

// VMNICStatus is the observed configuration of one network interface.
type VMNICStatus struct {
	PrivateIP     string `json:"privateIP,omitempty" yaml:"privateIP,omitempty"`
	MACAddress    string `json:"macAddress,omitempty" yaml:"macAddress,omitempty"`
	InterfaceName string `json:"interfaceName,omitempty" yaml:"interfaceName,omitempty"`
	FloatingIP    string `json:"floatingIP,omitempty" yaml:"floatingIP,omitempty"`
}

// VMError records a single error observed by the Reconciler, matching the
// error envelope in use across the API (§7).
type VMError struct {
	Code      string `json:"code" yaml:"code"`
	Message   string `json:"message" yaml:"message"`
	Timestamp Time   `json:"timestamp" yaml:"timestamp"`
	Step      string `json:"step,omitempty" yaml:"step,omitempty"`
}

// Standard condition types for VirtualMachine resources.
const (
	ConditionReady               = "Ready"
	ConditionStorageProvisioned  = "StorageProvisioned"
	ConditionNetworkConfigured   = "NetworkConfigured"
	ConditionCloudInitReady      = "CloudInitReady"
)

// DeepCopy creates a deep copy of VirtualMachine.
func (in *VirtualMachine) DeepCopy() *VirtualMachine {
	if in == nil {
		return nil
	}
	out := new(VirtualMachine)
	out.TypeMeta = *in.TypeMeta.DeepCopy()
	out.ObjectMeta = *in.ObjectMeta.DeepCopy()
	out.Spec = *in.Spec.DeepCopy()
	out.Status = *in.Status.DeepCopy()
	return out
}

// DeepCopy creates a deep copy of VirtualMachineSpec.
func (in *VirtualMachineSpec) DeepCopy() *VirtualMachineSpec {
	if in == nil {
		return nil
	}
	out := new(VirtualMachineSpec)
	*out = *in

	if in.DiskAttachments != nil {
		out.DiskAttachments = make([]VMDiskAttachment, len(in.DiskAttachments))
		copy(out.DiskAttachments, in.DiskAttachments)
	}
	if in.NICs != nil {
		out.NICs = make([]VMNICSpec, len(in.NICs))
		for i := range in.NICs {
			out.NICs[i] = *in.NICs[i].DeepCopy()
		}
	}
	if in.CloudInit != nil {
		out.CloudInit = in.CloudInit.DeepCopy()
	}
	return out
}

// DeepCopy creates a deep copy of VMNICSpec.
func (in *VMNICSpec) DeepCopy() *VMNICSpec {
	if in == nil {
		return nil
	}
	out := new(VMNICSpec)
	*out = *in
	if in.DNSServers != nil {
		out.DNSServers = make([]string, len(in.DNSServers))
		copy(out.DNSServers, in.DNSServers)
	}
	return out
}

// DeepCopy creates a deep copy of CloudInitSpec.
func (in *CloudInitSpec) DeepCopy() *CloudInitSpec {
	if in == nil {
		return nil
	}
	out := new(CloudInitSpec)
	*out = *in
	if in.Users != nil {
		out.Users = make([]CloudInitUser, len(in.Users))
		copy(out.Users, in.Users)
	}
	if in.Packages != nil {
		out.Packages = append([]string(nil), in.Packages...)
	}
	if in.RunCmd != nil {
		out.RunCmd = append([]string(nil), in.RunCmd...)
	}
	if in.WriteFiles != nil {
		out.WriteFiles = append([]CloudInitFile(nil), in.WriteFiles...)
	}
	if in.AptSources != nil {
		out.AptSources = make(map[string]AptSource, len(in.AptSources))
		for k, v := range in.AptSources {
			out.AptSources[k] = v
		}
	}
	return out
}

// DeepCopy creates a deep copy of VirtualMachineStatus.
func (in *VirtualMachineStatus) DeepCopy() *VirtualMachineStatus {
	if in == nil {
		return nil
	}
	out := new(VirtualMachineStatus)
	*out = *in

	if in.Conditions != nil {
		out.Conditions = make([]Condition, len(in.Conditions))
		for i := range in.Conditions {
			out.Conditions[i] = *in.Conditions[i].DeepCopy()
		}
	}
	if in.NICs != nil {
		out.NICs = make([]VMNICStatus, len(in.NICs))
		copy(out.NICs, in.NICs)
	}
	if in.LastError != nil {
		e := *in.LastError
		out.LastError = &e
	}
	return out
}
