package migration

import (
	"context"
	"time"

	"github.com/coreforge/vmcp/api/v1alpha1"
	"github.com/coreforge/vmcp/internal/driver"
	"github.com/coreforge/vmcp/internal/status"
	"github.com/coreforge/vmcp/internal/vmcperrors"
)

// stepPrepare implements §4.6 steps 1-2: ensure the destination has the
// backing image (disk content itself travels inside BeginMigration's own
// block-copy, the way libvirt's migrate-with-storage handles non-shared
// storage, so there is no separate stream-the-disk verb here), then define
// a matching bridge on the destination so the domain has somewhere to
// attach once it lands.
func (c *Coordinator) stepPrepare(ctx context.Context, mig *v1alpha1.Migration) error {
	vm, _, err := c.VMs.Get(mig.Spec.VMID)
	if err != nil {
		return err
	}

	_, destHost, _, destDrv, err := c.hosts(mig)
	if err != nil {
		return err
	}

	if c.Images != nil && vm.Spec.ImageID != "" {
		image, _, err := c.Images.Get(vm.Spec.ImageID)
		if err == nil {
			path, err := c.withRetryResult(ctx, "ensure_destination_image", func() (string, error) {
				return destDrv.EnsureImage(ctx, destHost, image)
			})
			if err != nil {
				return err
			}
			if image.Status.HostPaths == nil {
				image.Status.HostPaths = map[string]string{}
			}
			image.Status.HostPaths[destHost.Name] = path
			if err := c.Images.Upsert(image.Name, image); err != nil {
				return err
			}
		}
	}

	vpc, err := c.vpcOf(vm)
	if err == nil {
		bridge, cidr := bridgeAndCIDR(vpc)
		if err := c.withRetry(ctx, "define_destination_network", func() error {
			return destDrv.DefineNetwork(ctx, destHost, bridge, cidr)
		}); err != nil {
			return err
		}
	}

	mig.Status.Phase = v1alpha1.MigrationPhasePrecopy
	mig.Status.ProgressPct = 0
	return nil
}

// stepPrecopy implements §4.6 step 3: begin-migration on the source, then
// poll query-migration every PollInterval until the source reports
// switchover is done.
func (c *Coordinator) stepPrecopy(ctx context.Context, mig *v1alpha1.Migration) error {
	srcHost, destHost, srcDrv, _, err := c.hosts(mig)
	if err != nil {
		return err
	}

	params := driver.MigrationParams{
		DestinationURI:    destHost.Spec.Address,
		BandwidthCapMiBps: mig.Spec.BandwidthCapBytesPerSec / (1024 * 1024),
		MaxDowntimeMS:     int64(mig.Spec.MaxDowntimeMS),
		Compressed:        mig.Spec.Compressed,
	}

	if err := c.withRetry(ctx, "begin_migration", func() error {
		return srcDrv.BeginMigration(ctx, srcHost, destHost, mig.Spec.VMID, params)
	}); err != nil {
		return err
	}

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			ms, err := srcDrv.QueryMigration(ctx, srcHost, mig.Spec.VMID)
			if err != nil {
				return err
			}
			mig.Status.Phase = v1alpha1.MigrationPhasePrecopy
			mig.Status.ProgressPct = int(ms.ProgressPct)
			if ms.FailureError != "" {
				return vmcperrors.New(vmcperrors.KindDriverTerminal, ms.FailureError)
			}
			if ms.Done {
				mig.Status.Phase = v1alpha1.MigrationPhaseSwitchover
				mig.Status.ProgressPct = 100
				return nil
			}
		}
	}
}

// stepSwitchover implements §4.6 step 4: flip the VM's owner host in a
// single Store write and ask the source to undefine the stale domain. The
// owner-host flip and the Migrating->Running transition happen on the same
// VM row update, matching the invariant that owner host flips exactly once.
func (c *Coordinator) stepSwitchover(ctx context.Context, mig *v1alpha1.Migration) error {
	srcHost, destHost, srcDrv, _, err := c.hosts(mig)
	if err != nil {
		return err
	}

	vm, vmRev, err := c.VMs.Get(mig.Spec.VMID)
	if err != nil {
		return err
	}

	vm.Status.OwnerHostID = destHost.Name
	if err := status.TransitionToRunning(vm); err != nil {
		return err
	}
	if _, err := c.VMs.Update(vm.Name, vm, vmRev); err != nil {
		return err
	}

	if err := c.withRetry(ctx, "undefine_source_domain", func() error {
		return srcDrv.UndefineDomain(ctx, srcHost, mig.Spec.VMID)
	}); err != nil {
		return err
	}

	if err := c.Hosts.UpdateAllocation(srcHost.Name, -vm.Spec.VCPUs, -int64(vm.Spec.MemoryMiB), -1); err != nil {
		return err
	}
	if err := c.Hosts.UpdateAllocation(destHost.Name, vm.Spec.VCPUs, int64(vm.Spec.MemoryMiB), 1); err != nil {
		return err
	}

	mig.Status.Phase = v1alpha1.MigrationPhaseFinalize
	mig.Status.EndTime = v1alpha1.Time{Time: time.Now()}
	return nil
}

// withRetryResult is withRetry for a step that also returns a value.
func (c *Coordinator) withRetryResult(ctx context.Context, stepName string, step func() (string, error)) (string, error) {
	var out string
	err := c.withRetry(ctx, stepName, func() error {
		var innerErr error
		out, innerErr = step()
		return innerErr
	})
	return out, err
}
