// Package local implements driver.Capability against a libvirtd running on
// the same host as the control plane daemon, over go-libvirt's local UNIX
// socket transport — grounded on the teacher's internal/libvirt connection
// helper and internal/storage pool/volume manager.
package local

import (
	"context"
	"fmt"

	"github.com/digitalocean/go-libvirt"

	"github.com/coreforge/vmcp/api/v1alpha1"
	"github.com/coreforge/vmcp/internal/driver"
	localvirt "github.com/coreforge/vmcp/internal/libvirt"
	"github.com/coreforge/vmcp/internal/metadata"
	"github.com/coreforge/vmcp/internal/storage"
	"github.com/coreforge/vmcp/internal/vmcperrors"
)

// Driver implements driver.Capability for hosts reached over go-libvirt's
// RPC protocol. By default it dials the local UNIX socket directly; the ssh
// variant reuses every verb below unchanged by supplying a Connector that
// tunnels the same RPC stream over an SSH connection instead, so the
// reconciler never branches on transport (§4.3).
type Driver struct {
	// SocketPath overrides the default libvirt socket path; empty uses the
	// go-libvirt default (/var/run/libvirt/libvirt-sock). Ignored if
	// Connector is set.
	SocketPath string

	// Connector, if set, replaces the default local-socket dial with a
	// caller-supplied connection strategy (used by internal/driver/ssh).
	Connector func(ctx context.Context) (*localvirt.Client, error)
}

// New returns a Driver that connects to libvirt over its local UNIX socket.
func New(socketPath string) *Driver {
	return &Driver{SocketPath: socketPath}
}

// NewWithConnector returns a Driver that dials libvirt through connector
// instead of the local socket.
func NewWithConnector(connector func(ctx context.Context) (*localvirt.Client, error)) *Driver {
	return &Driver{Connector: connector}
}

func (d *Driver) connect(ctx context.Context) (*localvirt.Client, error) {
	if d.Connector != nil {
		return d.Connector(ctx)
	}
	c, err := localvirt.ConnectWithContext(ctx, d.SocketPath, driver.DialTimeout)
	if err != nil {
		return nil, vmcperrors.Wrap(vmcperrors.KindDriverUnavailable, err, "connect to local libvirt")
	}
	return c, nil
}

func storagePool(vm *v1alpha1.VirtualMachine) string {
	return storage.DefaultVMsPool
}

var _ driver.Capability = (*Driver)(nil)

// DefineDomain generates arch-appropriate domain XML and defines (but does
// not start) it in libvirt.
func (d *Driver) DefineDomain(ctx context.Context, host *v1alpha1.Host, vm *v1alpha1.VirtualMachine, nics []driver.NetworkAttachment) (string, error) {
	c, err := d.connect(ctx)
	if err != nil {
		return "", err
	}
	defer c.Close()

	xml, err := buildDomainXML(vm, nics, storagePool(vm))
	if err != nil {
		return "", err
	}

	dom, err := c.Libvirt().DomainDefineXML(xml)
	if err != nil {
		return "", vmcperrors.Wrap(vmcperrors.KindDriverTerminal, err, "define domain %s", vm.Name)
	}

	if err := metadata.Store(ctx, c.Libvirt(), dom, xml, vm.Generation); err != nil {
		return "", vmcperrors.Wrap(vmcperrors.KindInternal, err, "stamp drift digest for %s", vm.Name)
	}

	uuidStr := fmt.Sprintf("%x", dom.UUID)
	return uuidStr, nil
}

// UndefineDomain removes a domain definition. The caller is responsible for
// stopping the domain first.
func (d *Driver) UndefineDomain(ctx context.Context, host *v1alpha1.Host, vmName string) error {
	c, err := d.connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	dom, err := c.Libvirt().DomainLookupByName(vmName)
	if err != nil {
		return vmcperrors.Wrap(vmcperrors.KindNotFound, err, "lookup domain %s", vmName)
	}
	if err := c.Libvirt().DomainUndefineFlags(dom, libvirt.DomainUndefineNvram); err != nil {
		return vmcperrors.Wrap(vmcperrors.KindDriverTerminal, err, "undefine domain %s", vmName)
	}
	return nil
}

// Start powers on a defined domain.
func (d *Driver) Start(ctx context.Context, host *v1alpha1.Host, vmName string) error {
	c, err := d.connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	dom, err := c.Libvirt().DomainLookupByName(vmName)
	if err != nil {
		return vmcperrors.Wrap(vmcperrors.KindNotFound, err, "lookup domain %s", vmName)
	}
	if err := c.Libvirt().DomainCreate(dom); err != nil {
		return vmcperrors.Wrap(vmcperrors.KindDriverTimeout, err, "start domain %s", vmName)
	}
	return nil
}

// Stop shuts down a running domain, gracefully unless graceful is false.
func (d *Driver) Stop(ctx context.Context, host *v1alpha1.Host, vmName string, graceful bool) error {
	c, err := d.connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	dom, err := c.Libvirt().DomainLookupByName(vmName)
	if err != nil {
		return vmcperrors.Wrap(vmcperrors.KindNotFound, err, "lookup domain %s", vmName)
	}

	if graceful {
		if err := c.Libvirt().DomainShutdown(dom); err != nil {
			return vmcperrors.Wrap(vmcperrors.KindDriverTimeout, err, "shutdown domain %s", vmName)
		}
		return nil
	}
	if err := c.Libvirt().DomainDestroy(dom); err != nil {
		return vmcperrors.Wrap(vmcperrors.KindDriverTimeout, err, "destroy domain %s", vmName)
	}
	return nil
}

// Reboot requests a guest-cooperative reboot.
func (d *Driver) Reboot(ctx context.Context, host *v1alpha1.Host, vmName string) error {
	c, err := d.connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	dom, err := c.Libvirt().DomainLookupByName(vmName)
	if err != nil {
		return vmcperrors.Wrap(vmcperrors.KindNotFound, err, "lookup domain %s", vmName)
	}
	if err := c.Libvirt().DomainReboot(dom, 0); err != nil {
		return vmcperrors.Wrap(vmcperrors.KindDriverTimeout, err, "reboot domain %s", vmName)
	}
	return nil
}

// Status reads the domain's current libvirt state.
func (d *Driver) Status(ctx context.Context, host *v1alpha1.Host, vmName string) (*driver.DomainStatus, error) {
	c, err := d.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	dom, err := c.Libvirt().DomainLookupByName(vmName)
	if err != nil {
		return &driver.DomainStatus{State: driver.DomainStateNotDefined}, nil
	}

	state, _, err := c.Libvirt().DomainGetState(dom, 0)
	if err != nil {
		return nil, vmcperrors.Wrap(vmcperrors.KindDriverUnavailable, err, "get state for %s", vmName)
	}

	digest, _, err := metadata.Load(ctx, c.Libvirt(), dom)
	if err != nil {
		return nil, vmcperrors.Wrap(vmcperrors.KindInternal, err, "load drift stamp for %s", vmName)
	}

	return &driver.DomainStatus{
		State:       mapLibvirtState(state),
		DomainUUID:  fmt.Sprintf("%x", dom.UUID),
		DriftDigest: digest,
	}, nil
}

// Metrics is equivalent to Status for the local driver; richer per-vCPU and
// block-device counters are a documented follow-up (see SPEC_FULL.md §5.4).
func (d *Driver) Metrics(ctx context.Context, host *v1alpha1.Host, vmName string) (*driver.DomainStatus, error) {
	return d.Status(ctx, host, vmName)
}

func mapLibvirtState(state int32) driver.DomainState {
	switch state {
	case 1:
		return driver.DomainStateRunning
	case 3:
		return driver.DomainStatePaused
	case 5:
		return driver.DomainStateShutoff
	case 6:
		return driver.DomainStateCrashed
	default:
		return driver.DomainStateNoState
	}
}

// AttachVolume hot-attaches a disk device to a running (or defined) domain.
func (d *Driver) AttachVolume(ctx context.Context, host *v1alpha1.Host, vmName string, vol driver.VolumeSpec, device string) error {
	c, err := d.connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	dom, err := c.Libvirt().DomainLookupByName(vmName)
	if err != nil {
		return vmcperrors.Wrap(vmcperrors.KindNotFound, err, "lookup domain %s", vmName)
	}

	diskXML := fmt.Sprintf(
		`<disk type="volume" device="disk"><driver name="qemu" type="qcow2" cache="none"/><source pool="%s" volume="%s"/><target dev="%s" bus="virtio"/></disk>`,
		storage.DefaultVMsPool, vol.Name, device,
	)
	if err := c.Libvirt().DomainAttachDeviceFlags(dom, diskXML, libvirt.DomainDeviceModifyLive|libvirt.DomainDeviceModifyConfig); err != nil {
		return vmcperrors.Wrap(vmcperrors.KindDriverTerminal, err, "attach volume %s to %s", vol.Name, vmName)
	}
	return nil
}

// DetachVolume hot-detaches a disk device by target name.
func (d *Driver) DetachVolume(ctx context.Context, host *v1alpha1.Host, vmName, device string) error {
	c, err := d.connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	dom, err := c.Libvirt().DomainLookupByName(vmName)
	if err != nil {
		return vmcperrors.Wrap(vmcperrors.KindNotFound, err, "lookup domain %s", vmName)
	}

	diskXML := fmt.Sprintf(`<disk type="volume" device="disk"><target dev="%s"/></disk>`, device)
	if err := c.Libvirt().DomainDetachDeviceFlags(dom, diskXML, libvirt.DomainDeviceModifyLive|libvirt.DomainDeviceModifyConfig); err != nil {
		return vmcperrors.Wrap(vmcperrors.KindDriverTerminal, err, "detach volume %s from %s", device, vmName)
	}
	return nil
}

// ResizeCPUMem adjusts live vCPU count and balloon target memory.
func (d *Driver) ResizeCPUMem(ctx context.Context, host *v1alpha1.Host, vmName string, vcpus, memoryMiB int32) error {
	c, err := d.connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	dom, err := c.Libvirt().DomainLookupByName(vmName)
	if err != nil {
		return vmcperrors.Wrap(vmcperrors.KindNotFound, err, "lookup domain %s", vmName)
	}

	if vcpus > 0 {
		if err := c.Libvirt().DomainSetVcpusFlags(dom, uint32(vcpus), libvirt.DomainVcpuLive|libvirt.DomainVcpuConfig); err != nil {
			return vmcperrors.Wrap(vmcperrors.KindDriverTerminal, err, "resize vcpus for %s", vmName)
		}
	}
	if memoryMiB > 0 {
		if err := c.Libvirt().DomainSetMemoryFlags(dom, uint64(memoryMiB)*1024, libvirt.DomainMemLive|libvirt.DomainMemConfig); err != nil {
			return vmcperrors.Wrap(vmcperrors.KindDriverTerminal, err, "resize memory for %s", vmName)
		}
	}
	return nil
}

// CreateVolume creates a qcow2/raw volume in pool.
func (d *Driver) CreateVolume(ctx context.Context, host *v1alpha1.Host, pool string, vol driver.VolumeSpec) error {
	c, err := d.connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	mgr := storage.NewManager(c.Libvirt())
	if err := mgr.EnsureDefaultPools(ctx); err != nil {
		return vmcperrors.Wrap(vmcperrors.KindStorageUnavailable, err, "ensure default pools")
	}

	format := storage.VolumeFormatQCOW2
	if vol.Format == "raw" {
		format = storage.VolumeFormatRaw
	}
	spec := storage.VolumeSpec{
		Name:          vol.Name,
		Type:          storage.VolumeTypeData,
		Format:        format,
		CapacityGB:    uint64(vol.SizeGB),
		BackingVolume: vol.BackingPath,
	}
	if err := mgr.CreateVolume(ctx, pool, spec); err != nil {
		return vmcperrors.Wrap(vmcperrors.KindStorageUnavailable, err, "create volume %s", vol.Name)
	}
	return nil
}

// WriteVolumeData uploads data to an existing volume, used for cloud-init
// ISOs (the NoCloud datasource image built by internal/cloudinit).
func (d *Driver) WriteVolumeData(ctx context.Context, host *v1alpha1.Host, pool, volumeName string, data []byte) error {
	c, err := d.connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	mgr := storage.NewManager(c.Libvirt())
	if err := mgr.WriteVolumeData(ctx, pool, volumeName, data); err != nil {
		return vmcperrors.Wrap(vmcperrors.KindStorageUnavailable, err, "write volume data %s", volumeName)
	}
	return nil
}

// ResizeVolume grows a volume to a new size.
func (d *Driver) ResizeVolume(ctx context.Context, host *v1alpha1.Host, pool, volumeName string, newSizeGB int32) error {
	c, err := d.connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	mgr := storage.NewManager(c.Libvirt())
	if err := mgr.ResizeVolume(ctx, pool, volumeName, uint64(newSizeGB)); err != nil {
		return vmcperrors.Wrap(vmcperrors.KindStorageUnavailable, err, "resize volume %s", volumeName)
	}
	return nil
}

// DeleteVolume removes a volume from a pool.
func (d *Driver) DeleteVolume(ctx context.Context, host *v1alpha1.Host, pool, volumeName string) error {
	c, err := d.connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	mgr := storage.NewManager(c.Libvirt())
	if err := mgr.DeleteVolume(ctx, pool, volumeName); err != nil {
		return vmcperrors.Wrap(vmcperrors.KindStorageUnavailable, err, "delete volume %s", volumeName)
	}
	return nil
}

// EnsureImage verifies (or imports) a base image and returns its filesystem
// path, used as a qcow2 backing file for boot volumes.
func (d *Driver) EnsureImage(ctx context.Context, host *v1alpha1.Host, image *v1alpha1.Image) (string, error) {
	c, err := d.connect(ctx)
	if err != nil {
		return "", err
	}
	defer c.Close()

	mgr := storage.NewManager(c.Libvirt())
	if err := mgr.EnsureDefaultPools(ctx); err != nil {
		return "", vmcperrors.Wrap(vmcperrors.KindStorageUnavailable, err, "ensure default pools")
	}

	exists, err := mgr.ImageExists(ctx, image.Name)
	if err != nil {
		return "", vmcperrors.Wrap(vmcperrors.KindStorageUnavailable, err, "check image %s", image.Name)
	}
	if !exists {
		return "", vmcperrors.New(vmcperrors.KindNotFound, fmt.Sprintf("image %s not present on host %s", image.Name, host.Name))
	}

	return mgr.GetImagePath(ctx, image.Name)
}

// DefineNetwork and DestroyNetwork manage host bridges for a VPC. Bridge
// lifecycle is driven entirely by naming, not libvirt network objects, so
// these are thin no-ops the firewall compiler and reconciler can still call
// uniformly across driver variants.
func (d *Driver) DefineNetwork(ctx context.Context, host *v1alpha1.Host, bridge, cidr string) error {
	return nil
}

func (d *Driver) DestroyNetwork(ctx context.Context, host *v1alpha1.Host, bridge string) error {
	return nil
}

// ApplyIPTables is not implemented by the local driver: it always returns a
// KindInternal error. internal/firewall only compiles rule lines and does
// not apply them either.
func (d *Driver) ApplyIPTables(ctx context.Context, host *v1alpha1.Host, chain string, rules []string) error {
	return vmcperrors.New(vmcperrors.KindInternal, "ApplyIPTables must be invoked through internal/firewall, not the driver directly")
}

// OpenSerialConsole is implemented in console.go.
func (d *Driver) OpenSerialConsole(ctx context.Context, host *v1alpha1.Host, vmName string) (driver.ConsoleStream, error) {
	return openSerialConsole(ctx, d, vmName)
}
