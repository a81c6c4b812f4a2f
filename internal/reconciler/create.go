package reconciler

import (
	"context"
	"fmt"
	"net"

	"github.com/coreforge/vmcp/api/v1alpha1"
	"github.com/coreforge/vmcp/internal/cloudinit"
	"github.com/coreforge/vmcp/internal/driver"
	"github.com/coreforge/vmcp/internal/ipam"
	"github.com/coreforge/vmcp/internal/naming"
	"github.com/coreforge/vmcp/internal/scheduler"
	"github.com/coreforge/vmcp/internal/status"
	"github.com/coreforge/vmcp/internal/vmcperrors"
)

// StoragePool is the libvirt storage pool every VM's volumes live in,
// grounded on the teacher's "foundry-vms" default in internal/vm/create.go.
const StoragePool = "vmcp-vms"

// stepCreate drives a VM from Creating to Starting: schedule a host, ensure
// the image is present there, wire networking and IPAM, materialize boot
// and cloud-init volumes, define the domain, and start it if desired.
//
// Grounded on internal/vm/create.go's CreateFromConfig, generalized from a
// single libvirt connection to the Driver abstraction and from one
// implicit host to the Scheduler's placement.
func (r *Reconciler) stepCreate(ctx context.Context, vm *v1alpha1.VirtualMachine) error {
	if vm.Status.OwnerHostID == "" {
		if err := r.placeVM(vm); err != nil {
			return err
		}
	}

	host, err := r.host(vm.Status.OwnerHostID)
	if err != nil {
		return err
	}
	drv, err := r.driverForHost(host)
	if err != nil {
		return err
	}

	vpc, _, err := r.VPCs.Get(vm.Spec.VPCID)
	if err != nil {
		return err
	}
	bridge := naming.BridgeNameForVPC(vpc.Name)

	if err := r.withHost(ctx, host.Name, func() error {
		return r.withRetry(ctx, "define_network", func() error {
			return drv.DefineNetwork(ctx, host, bridge, vpc.Spec.CIDR)
		})
	}); err != nil {
		return err
	}
	status.MarkNetworkConfigured(vm)

	nics, resolvedNICs, err := r.resolveNICs(vm, vpc)
	if err != nil {
		return err
	}

	imagePath, err := r.ensureImage(ctx, host, drv, vm.Spec.ImageID)
	if err != nil {
		return err
	}

	bootVol := driver.VolumeSpec{
		Name:        naming.VolumeNameBoot(vm.Name),
		SizeGB:      int32(vm.Spec.RootDiskSizeGB),
		Format:      "qcow2",
		BackingPath: imagePath,
	}
	if err := r.withHost(ctx, host.Name, func() error {
		return r.withRetry(ctx, "create_boot_volume", func() error {
			return drv.CreateVolume(ctx, host, StoragePool, bootVol)
		})
	}); err != nil {
		return err
	}
	status.MarkStorageProvisioned(vm)

	if err := r.attachDisks(ctx, vm, host, drv); err != nil {
		return err
	}

	if vm.Spec.CloudInit != nil {
		if err := r.writeCloudInit(ctx, vm, host, drv, resolvedNICs); err != nil {
			return err
		}
		status.MarkCloudInitReady(vm)
	}

	domainUUID, err := drv.DefineDomain(ctx, host, vm, nics)
	if err != nil {
		return vmcperrors.Wrap(vmcperrors.KindOf(err), err, "define domain for %s", vm.Name)
	}
	vm.Status.DomainUUID = domainUUID

	if vm.Spec.DesiredPower == "on" {
		if err := r.withHost(ctx, host.Name, func() error {
			return r.withRetry(ctx, "start_domain", func() error {
				return drv.Start(ctx, host, vm.Name)
			})
		}); err != nil {
			return err
		}
	}

	return status.TransitionToStarting(vm)
}

// placeVM asks the Scheduler for a host and reserves capacity on it. The
// image is passed as nil when its Image row does not exist; Schedule then
// skips its image-arch check.
func (r *Reconciler) placeVM(vm *v1alpha1.VirtualMachine) error {
	var image *v1alpha1.Image
	if vm.Spec.ImageID != "" {
		img, _, err := r.Images.Get(vm.Spec.ImageID)
		if err == nil {
			image = img
		} else if !vmcperrors.Is(err, vmcperrors.KindNotFound) {
			return err
		}
	}

	candidates, err := r.candidates(vm.Name)
	if err != nil {
		return err
	}

	hostID, err := scheduler.Schedule(vm, candidates, image)
	if err != nil {
		return err
	}

	if err := r.Hosts.UpdateAllocation(hostID, vm.Spec.VCPUs, int64(vm.Spec.MemoryMiB), 1); err != nil {
		return err
	}
	vm.Status.OwnerHostID = hostID
	return nil
}

// resolveNICs allocates a private address per Spec.NICs entry (honoring a
// pinned PrivateIP), derives MAC/interface name from it, and returns both
// the Driver's NetworkAttachment list and cloud-init's ResolvedNIC list.
func (r *Reconciler) resolveNICs(vm *v1alpha1.VirtualMachine, vpc *v1alpha1.VPC) ([]driver.NetworkAttachment, []cloudinit.ResolvedNIC, error) {
	cidr, gateway, reserved := r.subnetForVPC(vpc)
	_, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, nil, vmcperrors.Wrap(vmcperrors.KindValidation, err, "invalid CIDR %s", cidr)
	}
	prefixLen, _ := ipnet.Mask.Size()

	attachments := make([]driver.NetworkAttachment, 0, len(vm.Spec.NICs))
	resolved := make([]cloudinit.ResolvedNIC, 0, len(vm.Spec.NICs))
	statuses := make([]v1alpha1.VMNICStatus, 0, len(vm.Spec.NICs))

	for i, nicSpec := range vm.Spec.NICs {
		alloc, err := r.VPCIPs.Reserve(vpc.Name, cidr, reserved, nicSpec.PrivateIP)
		if err != nil {
			return nil, nil, err
		}
		if err := r.VPCIPs.Bind(vpc.Name, alloc.Spec.Address, vm.Name); err != nil {
			return nil, nil, err
		}

		mac, err := naming.MACFromIP(alloc.Spec.Address)
		if err != nil {
			return nil, nil, vmcperrors.Wrap(vmcperrors.KindValidation, err, "nic %d", i)
		}
		ifName, err := naming.InterfaceNameFromIP(alloc.Spec.Address)
		if err != nil {
			return nil, nil, vmcperrors.Wrap(vmcperrors.KindValidation, err, "nic %d", i)
		}

		bridge := naming.BridgeNameForVPC(vpc.Name)
		attachments = append(attachments, driver.NetworkAttachment{
			Bridge:        bridge,
			MACAddress:    mac,
			InterfaceName: ifName,
		})
		resolved = append(resolved, cloudinit.ResolvedNIC{
			PrivateIP:    fmt.Sprintf("%s/%d", alloc.Spec.Address, prefixLen),
			MAC:          mac,
			Gateway:      gateway,
			DNSServers:   nicSpec.DNSServers,
			DefaultRoute: nicSpec.DefaultRoute,
		})

		nicStatus := v1alpha1.VMNICStatus{
			PrivateIP:     alloc.Spec.Address,
			MACAddress:    mac,
			InterfaceName: ifName,
		}

		if nicSpec.FloatingIP != "" && r.PublicIPs != nil {
			fip, err := r.PublicIPs.Reserve("", nicSpec.FloatingIP+"/32", nil, nicSpec.FloatingIP)
			if err != nil {
				return nil, nil, err
			}
			if err := r.PublicIPs.Bind("", fip.Spec.Address, vm.Name); err != nil {
				return nil, nil, err
			}
			nicStatus.FloatingIP = fip.Spec.Address
			// No DNAT rule is installed for the floating IP, here or
			// elsewhere: no component calls the Driver's ApplyIPTables.
		}

		statuses = append(statuses, nicStatus)
	}

	vm.Status.NICs = statuses
	return attachments, resolved, nil
}

// subnetForVPC returns the CIDR, gateway, and reserved-address list to
// allocate against: the first Subnet carved from vpc if one exists,
// otherwise the VPC's own CIDR and default gateway. Whenever no Subnet
// spells out its own ReservedAddresses (the normal case, since CreateVPC
// never creates one), the network, gateway, and broadcast addresses of the
// CIDR in play are reserved implicitly, per spec.md §2's "reserved
// addresses (network, gw, broadcast)".
func (r *Reconciler) subnetForVPC(vpc *v1alpha1.VPC) (cidr, gateway string, reserved []string) {
	cidr, gateway = vpc.Spec.CIDR, vpc.Spec.DefaultGateway
	if r.Subnets != nil {
		subnets, err := r.Subnets.ListByField(func(s *v1alpha1.Subnet) bool {
			return s.Spec.VPCID == vpc.Name
		})
		if err == nil && len(subnets) > 0 {
			cidr = subnets[0].Spec.CIDR
			if len(subnets[0].Spec.ReservedAddresses) > 0 {
				return cidr, gateway, subnets[0].Spec.ReservedAddresses
			}
		}
	}

	defaults, err := ipam.DefaultReservedAddresses(cidr, gateway)
	if err != nil {
		return cidr, gateway, nil
	}
	return cidr, gateway, defaults
}

// ensureImage makes sure image is present on host, calling the Driver's
// ensure_image verb (fetch/copy into the host's image pool) if necessary.
func (r *Reconciler) ensureImage(ctx context.Context, host *v1alpha1.Host, drv driver.Capability, imageID string) (string, error) {
	image, _, err := r.Images.Get(imageID)
	if err != nil {
		return "", err
	}

	var path string
	err = r.withHost(ctx, host.Name, func() error {
		return r.withRetry(ctx, "ensure_image", func() error {
			p, err := drv.EnsureImage(ctx, host, image)
			if err != nil {
				return err
			}
			path = p
			return nil
		})
	})
	if err != nil {
		return "", err
	}

	if image.Status.HostPaths == nil {
		image.Status.HostPaths = make(map[string]string, 1)
	}
	image.Status.HostPaths[host.Name] = path
	if err := r.Images.Upsert(imageID, image); err != nil {
		return "", err
	}
	return path, nil
}

// attachDisks attaches every Spec.DiskAttachments entry, failing if the
// referenced Disk doesn't exist or is already attached elsewhere.
func (r *Reconciler) attachDisks(ctx context.Context, vm *v1alpha1.VirtualMachine, host *v1alpha1.Host, drv driver.Capability) error {
	if r.Disks == nil {
		return nil
	}
	for _, att := range vm.Spec.DiskAttachments {
		disk, rev, err := r.Disks.Get(att.DiskID)
		if err != nil {
			return err
		}
		if disk.Status.Phase == v1alpha1.DiskInUse && (disk.Status.Attachment == nil || disk.Status.Attachment.VMID != vm.Name) {
			return vmcperrors.New(vmcperrors.KindConflict, fmt.Sprintf("disk %s already attached to another VM", att.DiskID))
		}

		vol := driver.VolumeSpec{Name: att.DiskID, BackingPath: disk.Status.BackingPath}
		if err := r.withHost(ctx, host.Name, func() error {
			return r.withRetry(ctx, "attach_disk", func() error {
				return drv.AttachVolume(ctx, host, vm.Name, vol, att.Device)
			})
		}); err != nil {
			return err
		}

		disk.Status.Phase = v1alpha1.DiskInUse
		disk.Status.HostID = host.Name
		disk.Status.Attachment = &v1alpha1.DiskAttachment{VMID: vm.Name, Device: att.Device}
		if _, err := r.Disks.Update(att.DiskID, disk, rev); err != nil {
			return err
		}
	}
	return nil
}

// writeCloudInit generates the NoCloud ISO and materializes it as a volume,
// grounded on internal/vm/create.go's ISO-size rounding (round up to whole
// megabytes, minimum 1GB for the volume).
func (r *Reconciler) writeCloudInit(ctx context.Context, vm *v1alpha1.VirtualMachine, host *v1alpha1.Host, drv driver.Capability, nics []cloudinit.ResolvedNIC) error {
	isoData, err := cloudinit.GenerateISO(vm, nics)
	if err != nil {
		return vmcperrors.Wrap(vmcperrors.KindInternal, err, "generate cloud-init iso for %s", vm.Name)
	}

	isoSizeMB := (uint64(len(isoData)) + 1024*1024 - 1) / (1024 * 1024)
	isoSizeGB := int32((isoSizeMB + 1023) / 1024)
	if isoSizeGB == 0 {
		isoSizeGB = 1
	}

	vol := driver.VolumeSpec{
		Name:   naming.VolumeNameCloudInit(vm.Name),
		SizeGB: isoSizeGB,
		Format: "raw",
	}
	return r.withHost(ctx, host.Name, func() error {
		return r.withRetry(ctx, "create_cloudinit_volume", func() error {
			if err := drv.CreateVolume(ctx, host, StoragePool, vol); err != nil {
				return err
			}
			return drv.WriteVolumeData(ctx, host, StoragePool, vol.Name, isoData)
		})
	})
}
