package reconciler

import (
	"context"

	"github.com/coreforge/vmcp/api/v1alpha1"
	"github.com/coreforge/vmcp/internal/driver"
	"github.com/coreforge/vmcp/internal/naming"
	"github.com/coreforge/vmcp/internal/status"
)

// stepTerminate tears a VM down: stop the domain if running, detach and
// release its disks, release its IPs, delete its boot and cloud-init
// volumes, undefine the domain, and release host capacity. Best-effort
// past the first failure point is deliberately avoided — a failed step
// here is retried by the caller the same way every other step is, rather
// than racing a partial teardown against a retry.
func (r *Reconciler) stepTerminate(ctx context.Context, vm *v1alpha1.VirtualMachine) error {
	if vm.Status.OwnerHostID == "" {
		// Never placed (failed before scheduling); nothing to tear down.
		return status.TransitionToTerminated(vm)
	}

	host, drv, err := r.hostAndDriver(vm)
	if err != nil {
		return err
	}

	if err := r.stopIfRunning(ctx, vm, host, drv); err != nil {
		return err
	}

	if err := r.detachDisks(ctx, vm, host, drv); err != nil {
		return err
	}

	r.releaseNICs(vm)

	if err := r.withHost(ctx, host.Name, func() error {
		return r.withRetry(ctx, "undefine_domain", func() error {
			return drv.UndefineDomain(ctx, host, vm.Name)
		})
	}); err != nil {
		return err
	}

	if err := r.withHost(ctx, host.Name, func() error {
		return r.withRetry(ctx, "delete_cloudinit_volume", func() error {
			return drv.DeleteVolume(ctx, host, StoragePool, naming.VolumeNameCloudInit(vm.Name))
		})
	}); err != nil {
		return err
	}

	if err := r.withHost(ctx, host.Name, func() error {
		return r.withRetry(ctx, "delete_boot_volume", func() error {
			return drv.DeleteVolume(ctx, host, StoragePool, naming.VolumeNameBoot(vm.Name))
		})
	}); err != nil {
		return err
	}

	if err := r.Hosts.UpdateAllocation(host.Name, -vm.Spec.VCPUs, -int64(vm.Spec.MemoryMiB), -1); err != nil {
		return err
	}

	return status.TransitionToTerminated(vm)
}

func (r *Reconciler) stopIfRunning(ctx context.Context, vm *v1alpha1.VirtualMachine, host *v1alpha1.Host, drv driver.Capability) error {
	ds, err := drv.Status(ctx, host, vm.Name)
	if err != nil {
		return err
	}
	if ds.State != driver.DomainStateRunning && ds.State != driver.DomainStatePaused {
		return nil
	}
	return r.withHost(ctx, host.Name, func() error {
		return r.withRetry(ctx, "stop_domain", func() error {
			return drv.Stop(ctx, host, vm.Name, false)
		})
	})
}

// detachDisks returns every attached Disk to "available", leaving its
// backing volume intact (disks outlive the VM per the Disk type's
// semantics).
func (r *Reconciler) detachDisks(ctx context.Context, vm *v1alpha1.VirtualMachine, host *v1alpha1.Host, drv driver.Capability) error {
	if r.Disks == nil {
		return nil
	}
	for _, att := range vm.Spec.DiskAttachments {
		disk, rev, err := r.Disks.Get(att.DiskID)
		if err != nil {
			continue
		}
		if err := r.withHost(ctx, host.Name, func() error {
			return r.withRetry(ctx, "detach_disk", func() error {
				return drv.DetachVolume(ctx, host, vm.Name, att.Device)
			})
		}); err != nil {
			return err
		}

		disk.Status.Phase = v1alpha1.DiskAvailable
		disk.Status.Attachment = nil
		if _, err := r.Disks.Update(att.DiskID, disk, rev); err != nil {
			return err
		}
	}
	return nil
}

// releaseNICs releases every private and floating address bound to vm.
// Best-effort by design: Release is idempotent on an already-missing or
// already-released row, so a retry after a partial failure is safe.
func (r *Reconciler) releaseNICs(vm *v1alpha1.VirtualMachine) {
	for _, nic := range vm.Status.NICs {
		if nic.PrivateIP != "" {
			_ = r.VPCIPs.Release(vm.Spec.VPCID, nic.PrivateIP, vm.Name)
		}
		if nic.FloatingIP != "" && r.PublicIPs != nil {
			_ = r.PublicIPs.Release("", nic.FloatingIP, vm.Name)
		}
	}
}
