// Package driver defines the capability surface every hypervisor host
// offers the reconciler, regardless of how the host is reached: in-process
// for a "local" host (the daemon runs next to libvirtd) or tunneled over
// SSH for a remote host. Both variants implement the same Capability
// interface so the reconciler never branches on transport.
package driver

import (
	"context"
	"io"
	"time"

	"github.com/coreforge/vmcp/api/v1alpha1"
)

// DomainState mirrors the subset of libvirt domain states the control
// plane cares about.
type DomainState string

const (
	DomainStateRunning    DomainState = "running"
	DomainStateShutoff    DomainState = "shutoff"
	DomainStatePaused     DomainState = "paused"
	DomainStateCrashed    DomainState = "crashed"
	DomainStateNoState    DomainState = "nostate"
	DomainStateNotDefined DomainState = "not-defined"
)

// DomainStatus is a point-in-time read of one domain on one host.
type DomainStatus struct {
	State       DomainState
	DomainUUID  string
	VCPUs       int32
	MemoryMiB   int32
	CPUTimeNS   uint64
	DriftDigest string
}

// VolumeSpec describes one disk or cloud-init volume to create, grounded on
// internal/storage.VolumeSpec from the teacher's storage manager.
type VolumeSpec struct {
	Name          string
	SizeGB        int32
	Format        string // "qcow2" | "raw"
	BackingPath   string
	ReadOnly      bool
}

// NetworkAttachment is one NIC to wire into a domain definition.
type NetworkAttachment struct {
	Bridge        string
	MACAddress    string
	InterfaceName string
}

// MigrationParams configures a live migration invocation.
type MigrationParams struct {
	DestinationURI    string
	BandwidthCapMiBps int64
	MaxDowntimeMS     int64
	Compressed        bool
}

// MigrationStatus reports progress of an in-flight migration.
type MigrationStatus struct {
	Phase        v1alpha1.MigrationPhase
	ProgressPct  int32
	Done         bool
	FailureError string
}

// ConsoleStream is a bidirectional byte stream attached to a domain's
// serial console, handed to the console hub for WebSocket fan-out.
type ConsoleStream interface {
	io.ReadWriteCloser
}

// Capability is the full verb set a host driver exposes. Every method
// takes the Host it targets so a single driver instance can be shared
// across hosts that use the same transport.
type Capability interface {
	// Domain lifecycle.
	DefineDomain(ctx context.Context, host *v1alpha1.Host, vm *v1alpha1.VirtualMachine, nics []NetworkAttachment) (domainUUID string, err error)
	UndefineDomain(ctx context.Context, host *v1alpha1.Host, vmName string) error
	Start(ctx context.Context, host *v1alpha1.Host, vmName string) error
	Stop(ctx context.Context, host *v1alpha1.Host, vmName string, graceful bool) error
	Reboot(ctx context.Context, host *v1alpha1.Host, vmName string) error
	Status(ctx context.Context, host *v1alpha1.Host, vmName string) (*DomainStatus, error)
	Metrics(ctx context.Context, host *v1alpha1.Host, vmName string) (*DomainStatus, error)

	// Live reconfiguration.
	AttachVolume(ctx context.Context, host *v1alpha1.Host, vmName string, vol VolumeSpec, device string) error
	DetachVolume(ctx context.Context, host *v1alpha1.Host, vmName, device string) error
	ResizeCPUMem(ctx context.Context, host *v1alpha1.Host, vmName string, vcpus, memoryMiB int32) error

	// Volume lifecycle, independent of any attached domain.
	CreateVolume(ctx context.Context, host *v1alpha1.Host, pool string, vol VolumeSpec) error
	WriteVolumeData(ctx context.Context, host *v1alpha1.Host, pool, volumeName string, data []byte) error
	ResizeVolume(ctx context.Context, host *v1alpha1.Host, pool, volumeName string, newSizeGB int32) error
	DeleteVolume(ctx context.Context, host *v1alpha1.Host, pool, volumeName string) error
	EnsureImage(ctx context.Context, host *v1alpha1.Host, image *v1alpha1.Image) (path string, err error)

	// Networking and firewalling.
	DefineNetwork(ctx context.Context, host *v1alpha1.Host, bridge, cidr string) error
	DestroyNetwork(ctx context.Context, host *v1alpha1.Host, bridge string) error
	ApplyIPTables(ctx context.Context, host *v1alpha1.Host, chain string, rules []string) error

	// Console.
	OpenSerialConsole(ctx context.Context, host *v1alpha1.Host, vmName string) (ConsoleStream, error)

	// Live migration.
	BeginMigration(ctx context.Context, sourceHost, destHost *v1alpha1.Host, vmName string, params MigrationParams) error
	QueryMigration(ctx context.Context, sourceHost *v1alpha1.Host, vmName string) (*MigrationStatus, error)
	CancelMigration(ctx context.Context, sourceHost *v1alpha1.Host, vmName string) error
}

// DialTimeout bounds how long a driver spends establishing a connection
// (local UNIX socket or SSH) to a host before giving up.
const DialTimeout = 10 * time.Second
