package v1alpha1

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// GroupName is the API group for control-plane resources.
	GroupName = "vmcp.coreforge.io"

	// Version is the API version.
	Version = "v1alpha1"

	VirtualMachineKind = "VirtualMachine"
	VPCKind            = "VPC"
	SubnetKind         = "Subnet"
	DiskKind           = "Disk"
	ImageKind          = "Image"
	HostKind           = "Host"
	FirewallRuleKind   = "FirewallRule"
	MigrationKind      = "Migration"
	IPAllocationKind   = "IPAllocation"
	FloatingIPKind     = "FloatingIP"
)

// NewVirtualMachine creates a new VirtualMachine with TypeMeta/ObjectMeta
// defaults and desired-power left to the caller.
func NewVirtualMachine(name string) *VirtualMachine {
	now := Time{Time: time.Now()}

	return &VirtualMachine{
		TypeMeta: TypeMeta{
			APIVersion: GroupName + "/" + Version,
			Kind:       VirtualMachineKind,
		},
		ObjectMeta: ObjectMeta{
			Name:              name,
			UID:               uuid.New().String(),
			CreationTimestamp: now,
			Generation:        1,
		},
		Spec: VirtualMachineSpec{
			CPUMode:      "host-model",
			DesiredPower: "on",
		},
		Status: VirtualMachineStatus{
			Phase: VMPhaseCreating,
		},
	}
}

// SetDefaultAPIVersion ensures the VM has the correct apiVersion and kind.
// Useful when loading from files that might be missing these fields.
func SetDefaultAPIVersion(vm *VirtualMachine) {
	if vm.APIVersion == "" {
		vm.APIVersion = GroupName + "/" + Version
	}
	if vm.Kind == "" {
		vm.Kind = VirtualMachineKind
	}
}

// GetCPUMode returns the CPU mode with default fallback.
func (vm *VirtualMachine) GetCPUMode() string {
	if vm.Spec.CPUMode == "" {
		return "host-model"
	}
	return vm.Spec.CPUMode
}

// GetName returns the VM name from metadata.
func (vm *VirtualMachine) GetName() string {
	return vm.Name
}

// SetPhase sets the VM phase in status.
func (vm *VirtualMachine) SetPhase(phase VMPhase) {
	vm.Status.Phase = phase
}

// GetPhase returns the current VM phase.
func (vm *VirtualMachine) GetPhase() VMPhase {
	return vm.Status.Phase
}

// SetDomainUUID sets the libvirt domain UUID in status.
func (vm *VirtualMachine) SetDomainUUID(id string) {
	vm.Status.DomainUUID = id
}

// GetDomainUUID returns the libvirt domain UUID.
func (vm *VirtualMachine) GetDomainUUID() string {
	return vm.Status.DomainUUID
}

// UpdateObservedGeneration updates status.observedGeneration to match
// metadata.generation.
func (vm *VirtualMachine) UpdateObservedGeneration() {
	vm.Status.ObservedGeneration = vm.Generation
}

// Normalize sanitizes user input to consistent formats. Called
// automatically before validation.
func (vm *VirtualMachine) Normalize() {
	vm.Name = strings.ToLower(strings.TrimSpace(vm.Name))
	if vm.Spec.CloudInit != nil {
		vm.Spec.CloudInit.Hostname = strings.ToLower(strings.TrimSpace(vm.Spec.CloudInit.Hostname))
	}
	if vm.Spec.CPUMode == "" {
		vm.Spec.CPUMode = "host-model"
	}
	if vm.Spec.DesiredPower == "" {
		vm.Spec.DesiredPower = "on"
	}
}
