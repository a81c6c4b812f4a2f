package reconciler

import (
	"context"

	"github.com/coreforge/vmcp/api/v1alpha1"
	"github.com/coreforge/vmcp/internal/driver"
	"github.com/coreforge/vmcp/internal/status"
)

// stepWaitRunning drives a VM in Starting: ensure the domain is started and
// transition to Running once the Driver reports it so. Idempotent so a
// reconcile tick that races the domain's own boot time just waits.
func (r *Reconciler) stepWaitRunning(ctx context.Context, vm *v1alpha1.VirtualMachine) error {
	host, drv, err := r.hostAndDriver(vm)
	if err != nil {
		return err
	}

	ds, err := drv.Status(ctx, host, vm.Name)
	if err != nil {
		return err
	}

	if ds.State == driver.DomainStateRunning {
		return status.TransitionToRunning(vm)
	}

	return r.withHost(ctx, host.Name, func() error {
		return r.withRetry(ctx, "start_domain", func() error {
			return drv.Start(ctx, host, vm.Name)
		})
	})
}

// stepWaitStopped drives a VM in Stopping: request a graceful shutdown and
// transition to Stopped once the Driver reports the domain is shut off.
func (r *Reconciler) stepWaitStopped(ctx context.Context, vm *v1alpha1.VirtualMachine) error {
	host, drv, err := r.hostAndDriver(vm)
	if err != nil {
		return err
	}

	ds, err := drv.Status(ctx, host, vm.Name)
	if err != nil {
		return err
	}

	if ds.State == driver.DomainStateShutoff {
		return status.TransitionToStopped(vm)
	}

	return r.withHost(ctx, host.Name, func() error {
		return r.withRetry(ctx, "stop_domain", func() error {
			return drv.Stop(ctx, host, vm.Name, true)
		})
	})
}

// stepResize drives a VM in Resizing: apply the new vCPU/memory shape while
// the domain is offline, restart it, and transition back to Running. Entry
// to Resizing only happens from Stopped (status.TransitionToResizing),
// enforcing the offline-resize decision recorded in DESIGN.md.
func (r *Reconciler) stepResize(ctx context.Context, vm *v1alpha1.VirtualMachine) error {
	host, drv, err := r.hostAndDriver(vm)
	if err != nil {
		return err
	}

	if err := r.withHost(ctx, host.Name, func() error {
		return r.withRetry(ctx, "resize_cpu_mem", func() error {
			return drv.ResizeCPUMem(ctx, host, vm.Name, int32(vm.Spec.VCPUs), int32(vm.Spec.MemoryMiB))
		})
	}); err != nil {
		return err
	}

	if err := r.withHost(ctx, host.Name, func() error {
		return r.withRetry(ctx, "start_domain", func() error {
			return drv.Start(ctx, host, vm.Name)
		})
	}); err != nil {
		return err
	}

	return status.TransitionToRunning(vm)
}

// hostAndDriver resolves the Host and Capability a VM is currently placed
// on; every post-creation step goes through this.
func (r *Reconciler) hostAndDriver(vm *v1alpha1.VirtualMachine) (*v1alpha1.Host, driver.Capability, error) {
	host, err := r.host(vm.Status.OwnerHostID)
	if err != nil {
		return nil, nil, err
	}
	drv, err := r.driverForHost(host)
	if err != nil {
		return nil, nil, err
	}
	return host, drv, nil
}
