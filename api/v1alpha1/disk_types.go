package v1alpha1

// DiskStatusPhase is the lifecycle state of a Disk.
type DiskStatusPhase string

const (
	DiskAvailable DiskStatusPhase = "available"
	DiskInUse     DiskStatusPhase = "in-use"
	DiskResizing  DiskStatusPhase = "resizing"
	DiskError     DiskStatusPhase = "error"
)

// Disk is a detachable block volume. Disks outlive the VM they're attached
// to: terminating a VM returns its data disks to "available" rather than
// deleting them.
type Disk struct {
	TypeMeta   `json:",inline" yaml:",inline"`
	ObjectMeta `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	Spec   DiskSpec   `json:"spec" yaml:"spec"`
	Status DiskStatus `json:"status,omitempty" yaml:"status,omitempty"`
}

// DiskSpec defines the desired size of a Disk.
type DiskSpec struct {
	SizeGB int `json:"sizeGB" yaml:"sizeGB"`
}

// DiskAttachment pins a Disk to one VM device slot. A Disk may have at most
// one attachment at a time.
type DiskAttachment struct {
	VMID   string `json:"vmID" yaml:"vmID"`
	Device string `json:"device" yaml:"device"`
}

// DiskStatus defines the observed state of a Disk.
type DiskStatus struct {
	Phase DiskStatusPhase `json:"phase,omitempty" yaml:"phase,omitempty"`

	// HostID is the host currently holding the backing file.
	// +optional
	HostID string `json:"hostID,omitempty" yaml:"hostID,omitempty"`

	// BackingPath is the host-local path of the qcow2 backing file.
	// +optional
	BackingPath string `json:"backingPath,omitempty" yaml:"backingPath,omitempty"`

	// Attachment is non-nil while the disk is in-use.
	// +optional
	Attachment *DiskAttachment `json:"attachment,omitempty" yaml:"attachment,omitempty"`
}

// DeepCopy creates a deep copy of Disk.
func (in *Disk) DeepCopy() *Disk {
	if in == nil {
		return nil
	}
	out := new(Disk)
	out.TypeMeta = *in.TypeMeta.DeepCopy()
	out.ObjectMeta = *in.ObjectMeta.DeepCopy()
	out.Spec = in.Spec
	out.Status = *in.Status.DeepCopy()
	return out
}

// DeepCopy creates a deep copy of DiskStatus.
func (in *DiskStatus) DeepCopy() *DiskStatus {
	if in == nil {
		return nil
	}
	out := new(DiskStatus)
	*out = *in
	if in.Attachment != nil {
		a := *in.Attachment
		out.Attachment = &a
	}
	return out
}
