package local

import (
	"context"

	"github.com/digitalocean/go-libvirt"

	"github.com/coreforge/vmcp/api/v1alpha1"
	"github.com/coreforge/vmcp/internal/driver"
	"github.com/coreforge/vmcp/internal/vmcperrors"
)

// migrateFlags mirrors the flag set libvirt expects for a live, persistent,
// peer-to-peer migration: the domain keeps running throughout, is persisted
// on the destination, and is undefined on the source once the migration
// completes; the destination connects directly rather than tunneling
// through the source's RPC channel.
const migrateFlags = libvirt.MigrateLive | libvirt.MigratePeer2peer | libvirt.MigratePersistDest | libvirt.MigrateUndefineSource

// BeginMigration starts an asynchronous live migration of vmName from
// sourceHost to destHost. The call returns once libvirt has accepted the
// migration request; QueryMigration polls progress via the internal
// migration phase tracker the Reconciler drives from there.
func (d *Driver) BeginMigration(ctx context.Context, sourceHost, destHost *v1alpha1.Host, vmName string, params driver.MigrationParams) error {
	c, err := d.connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	dom, err := c.Libvirt().DomainLookupByName(vmName)
	if err != nil {
		return vmcperrors.Wrap(vmcperrors.KindNotFound, err, "lookup domain %s", vmName)
	}

	flags := migrateFlags
	if params.Compressed {
		flags |= libvirt.MigrateCompressed
	}

	destURI := params.DestinationURI
	if destURI == "" {
		destURI = "qemu+ssh://" + destHost.Spec.Address + "/system"
	}

	if err := c.Libvirt().DomainMigrateToURI3(dom, destURI, nil, uint32(flags)); err != nil {
		return vmcperrors.Wrap(vmcperrors.KindDriverTerminal, err, "begin migration of %s to %s", vmName, destHost.Name)
	}

	return nil
}

// QueryMigration reports an in-progress migration's status from libvirt's
// job info: the coarse job type maps to precopy (job running), finalize (no
// job, or the domain already gone from the source) or abort (job failed or
// cancelled), and ProgressPct is DataProcessed over DataTotal.
func (d *Driver) QueryMigration(ctx context.Context, sourceHost *v1alpha1.Host, vmName string) (*driver.MigrationStatus, error) {
	c, err := d.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	dom, err := c.Libvirt().DomainLookupByName(vmName)
	if err != nil {
		// Domain gone from the source libvirt entirely: migration completed
		// and the source definition was undefined per MigrateUndefineSource.
		return &driver.MigrationStatus{Phase: v1alpha1.MigrationPhaseFinalize, Done: true, ProgressPct: 100}, nil
	}

	info, err := c.Libvirt().DomainGetJobInfo(dom)
	if err != nil {
		return nil, vmcperrors.Wrap(vmcperrors.KindDriverUnavailable, err, "get migration job info for %s", vmName)
	}

	status := &driver.MigrationStatus{}
	switch libvirt.DomainJobType(info.Type) {
	case libvirt.DomainJobNone:
		status.Phase = v1alpha1.MigrationPhaseFinalize
		status.Done = true
		status.ProgressPct = 100
	case libvirt.DomainJobFailed:
		status.Phase = v1alpha1.MigrationPhaseAbort
		status.Done = true
		status.FailureError = "migration job failed"
	case libvirt.DomainJobCancelled:
		status.Phase = v1alpha1.MigrationPhaseAbort
		status.Done = true
		status.FailureError = "migration cancelled"
	default:
		status.Phase = v1alpha1.MigrationPhasePrecopy
		if info.DataTotal > 0 {
			status.ProgressPct = int32(info.DataProcessed * 100 / info.DataTotal)
		}
	}

	return status, nil
}

// CancelMigration aborts an in-progress migration job for vmName on the
// source host, leaving the domain running there.
func (d *Driver) CancelMigration(ctx context.Context, sourceHost *v1alpha1.Host, vmName string) error {
	c, err := d.connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	dom, err := c.Libvirt().DomainLookupByName(vmName)
	if err != nil {
		return vmcperrors.Wrap(vmcperrors.KindNotFound, err, "lookup domain %s", vmName)
	}

	if err := c.Libvirt().DomainAbortJob(dom); err != nil {
		return vmcperrors.Wrap(vmcperrors.KindDriverTerminal, err, "abort migration for %s", vmName)
	}
	return nil
}
