// Package migration drives a single VM's live move from a source Host to a
// destination Host, per SPEC_FULL.md §4.6: prepare, precopy, switchover,
// finalize (or abort). The phase sequence and the externalize-progress-
// to-the-Store discipline are grounded on internal/reconciler's own
// step-poll-retry loop, which is itself grounded on the teacher's
// internal/vm/destroy.go shutdown-wait ticker. A Coordinator runs one
// migration to completion; the caller (the API layer) is responsible for
// not starting two migrations for the same VM.
package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/coreforge/vmcp/api/v1alpha1"
	"github.com/coreforge/vmcp/internal/driver"
	"github.com/coreforge/vmcp/internal/entitystore"
	"github.com/coreforge/vmcp/internal/hostregistry"
	"github.com/coreforge/vmcp/internal/naming"
	"github.com/coreforge/vmcp/internal/status"
	"github.com/coreforge/vmcp/internal/vmcperrors"
)

// Retry discipline matches internal/reconciler's (§4.5 applies to every
// Driver verb, including the ones this package issues).
const (
	BaseInterval = 500 * time.Millisecond
	MaxInterval  = 30 * time.Second
	MaxAttempts  = 8
)

// PollInterval is how often QueryMigration is polled during precopy (§4.6:
// "polls query-migration every 1 s for progress").
const PollInterval = 1 * time.Second

// DriverResolver returns the Capability that reaches host.
type DriverResolver func(host *v1alpha1.Host) (driver.Capability, error)

// Coordinator owns live-migration execution. One Coordinator instance
// serves the whole control plane; concurrent migrations of distinct VMs
// are independent, matching the Reconciler's concurrency model.
type Coordinator struct {
	VMs        *entitystore.Store[v1alpha1.VirtualMachine]
	Migrations *entitystore.Store[v1alpha1.Migration]
	VPCs       *entitystore.Store[v1alpha1.VPC]
	Images     *entitystore.Store[v1alpha1.Image]
	Hosts      *hostregistry.Registry

	ResolveDriver DriverResolver

	Logger *zap.SugaredLogger
}

// New builds a Coordinator.
func New(vms *entitystore.Store[v1alpha1.VirtualMachine], migrations *entitystore.Store[v1alpha1.Migration], vpcs *entitystore.Store[v1alpha1.VPC], images *entitystore.Store[v1alpha1.Image], hosts *hostregistry.Registry, resolver DriverResolver) *Coordinator {
	return &Coordinator{
		VMs:           vms,
		Migrations:    migrations,
		VPCs:          vpcs,
		Images:        images,
		Hosts:         hosts,
		ResolveDriver: resolver,
		Logger:        zap.S().Named("migration"),
	}
}

// Run drives migrationName from its current phase through to Finalize or
// Abort, blocking until the migration reaches a terminal phase or ctx is
// canceled. Progress is persisted to the Migration row after every phase,
// and Run resumes from the row's recorded phase rather than repeating
// prepare. Run is started only by the API's CreateMigration, so a migration
// interrupted by a process restart is not resumed.
func (c *Coordinator) Run(ctx context.Context, migrationName string) error {
	for {
		mig, rev, err := c.Migrations.Get(migrationName)
		if err != nil {
			return err
		}

		var stepErr error
		switch mig.Status.Phase {
		case "", v1alpha1.MigrationPhasePrepare:
			stepErr = c.stepPrepare(ctx, mig)
		case v1alpha1.MigrationPhasePrecopy:
			stepErr = c.stepPrecopy(ctx, mig)
		case v1alpha1.MigrationPhaseSwitchover:
			stepErr = c.stepSwitchover(ctx, mig)
		case v1alpha1.MigrationPhaseFinalize:
			if _, err := c.Migrations.Update(mig.Name, mig, rev); err != nil {
				return err
			}
			return nil
		case v1alpha1.MigrationPhaseAbort:
			if _, err := c.Migrations.Update(mig.Name, mig, rev); err != nil {
				return err
			}
			return vmcperrors.New(vmcperrors.KindInternal, mig.Status.FailureReason)
		default:
			return vmcperrors.New(vmcperrors.KindInternal, fmt.Sprintf("unknown migration phase %q", string(mig.Status.Phase)))
		}

		if stepErr != nil {
			mig.Status.Phase = v1alpha1.MigrationPhaseAbort
			mig.Status.FailureReason = stepErr.Error()
		}

		if _, err := c.Migrations.Update(mig.Name, mig, rev); err != nil {
			return err
		}
		if stepErr != nil {
			return c.runAbort(ctx, migrationName, stepErr)
		}
	}
}

// runAbort tears down destination artifacts and leaves the VM unmodified
// on the source, per §4.6 step 5.
func (c *Coordinator) runAbort(ctx context.Context, migrationName string, cause error) error {
	mig, rev, err := c.Migrations.Get(migrationName)
	if err != nil {
		return err
	}

	srcHost, err := c.Hosts.Get(mig.Spec.SourceHostID)
	if err == nil {
		if srcDrv, derr := c.ResolveDriver(srcHost); derr == nil {
			_ = c.withRetry(ctx, "cancel_migration", func() error {
				return srcDrv.CancelMigration(ctx, srcHost, mig.Spec.VMID)
			})
		}
	}

	if destHost, herr := c.Hosts.Get(mig.Spec.DestinationHostID); herr == nil {
		if destDrv, derr := c.ResolveDriver(destHost); derr == nil {
			_ = c.withRetry(ctx, "undefine_destination_domain", func() error {
				return destDrv.UndefineDomain(ctx, destHost, mig.Spec.VMID)
			})
		}
	}

	if vm, vmRev, verr := c.VMs.Get(mig.Spec.VMID); verr == nil {
		if vm.GetPhase() == v1alpha1.VMPhaseMigrating {
			if err := status.TransitionToRunning(vm); err == nil {
				_, _ = c.VMs.Update(vm.Name, vm, vmRev)
			}
		}
	}

	mig.Status.Phase = v1alpha1.MigrationPhaseAbort
	mig.Status.FailureReason = cause.Error()
	mig.Status.EndTime = v1alpha1.Time{Time: time.Now()}
	if _, err := c.Migrations.Update(mig.Name, mig, rev); err != nil {
		return err
	}
	return cause
}

// withRetry mirrors internal/reconciler.Reconciler.withRetry: up to
// MaxAttempts attempts with exponential backoff, stopping early on a
// non-retryable *vmcperrors.Error.
func (c *Coordinator) withRetry(ctx context.Context, stepName string, step func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = BaseInterval
	b.MaxInterval = MaxInterval

	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		lastErr = step()
		if lastErr == nil {
			return nil
		}
		if !vmcperrors.KindOf(lastErr).Retryable() {
			return lastErr
		}
		if attempt == MaxAttempts {
			break
		}
		wait := b.NextBackOff()
		c.Logger.Warnw("migration step failed, retrying", "step", stepName, "attempt", attempt, "wait", wait, "error", lastErr)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

// hosts resolves both ends of a migration plus their Drivers.
func (c *Coordinator) hosts(mig *v1alpha1.Migration) (srcHost, destHost *v1alpha1.Host, srcDrv, destDrv driver.Capability, err error) {
	srcHost, err = c.Hosts.Get(mig.Spec.SourceHostID)
	if err != nil {
		return
	}
	destHost, err = c.Hosts.Get(mig.Spec.DestinationHostID)
	if err != nil {
		return
	}
	srcDrv, err = c.ResolveDriver(srcHost)
	if err != nil {
		return
	}
	destDrv, err = c.ResolveDriver(destHost)
	return
}

// vpcOf returns the VM's owning VPC, needed to pre-create a matching
// network (and, by extension, firewall chain) on the destination.
func (c *Coordinator) vpcOf(vm *v1alpha1.VirtualMachine) (*v1alpha1.VPC, error) {
	vpc, _, err := c.VPCs.Get(vm.Spec.VPCID)
	return vpc, err
}

// bridgeAndCIDR derives the deterministic per-VPC bridge name and CIDR
// DefineNetwork needs, the same derivation the Reconciler uses when first
// placing a VM (internal/naming.BridgeNameForVPC).
func bridgeAndCIDR(vpc *v1alpha1.VPC) (bridge, cidr string) {
	return naming.BridgeNameForVPC(vpc.Name), vpc.Spec.CIDR
}
