package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/coreforge/vmcp/api/v1alpha1"
	"github.com/coreforge/vmcp/internal/status"
	"github.com/coreforge/vmcp/internal/vmcperrors"
)

// ListMigrations serves GET /migrations.
func (h *Handler) ListMigrations(c *gin.Context) {
	migs, err := h.Migrations.List()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": migs})
}

type createMigrationRequest struct {
	VM                      string `json:"vm" binding:"required"`
	DestinationHostID       string `json:"destination_host_id" binding:"required"`
	BandwidthCapBytesPerSec int64  `json:"bandwidth_cap_bytes_per_sec,omitempty"`
	MaxDowntimeMS           int    `json:"max_downtime_ms,omitempty"`
	Compressed              bool   `json:"compressed,omitempty"`
}

// CreateMigration serves POST /migrations. It transitions the VM into
// Migrating, writes the Migration row, and hands it to the Migration
// Coordinator on a detached goroutine — Coordinator.Run blocks until the
// migration reaches a terminal phase, which would exceed any reasonable
// request timeout, so unlike Reconciler.Enqueue this can't be a queue pop
// the handler waits on.
func (h *Handler) CreateMigration(c *gin.Context) {
	var req createMigrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, vmcperrors.Wrap(vmcperrors.KindValidation, err, "invalid migration request body"))
		return
	}

	vm, vmRev, err := h.VMs.Get(req.VM)
	if err != nil {
		writeError(c, err)
		return
	}
	if _, err := h.Hosts.Get(req.DestinationHostID); err != nil {
		writeError(c, err)
		return
	}
	sourceHostID := vm.Status.OwnerHostID
	if sourceHostID == "" {
		writeError(c, vmcperrors.New(vmcperrors.KindConflict, "VM has no owning host to migrate from"))
		return
	}
	if sourceHostID == req.DestinationHostID {
		writeError(c, vmcperrors.New(vmcperrors.KindValidation, "destination host must differ from source host"))
		return
	}

	if err := status.TransitionToMigrating(vm); err != nil {
		writeError(c, err)
		return
	}

	mig := &v1alpha1.Migration{
		TypeMeta: v1alpha1.TypeMeta{APIVersion: v1alpha1.GroupName + "/" + v1alpha1.Version, Kind: v1alpha1.MigrationKind},
		ObjectMeta: v1alpha1.ObjectMeta{
			Name:              uuid.New().String(),
			CreationTimestamp: v1alpha1.Time{Time: time.Now()},
			Generation:        1,
		},
		Spec: v1alpha1.MigrationSpec{
			VMID:                    req.VM,
			SourceHostID:            sourceHostID,
			DestinationHostID:       req.DestinationHostID,
			BandwidthCapBytesPerSec: req.BandwidthCapBytesPerSec,
			MaxDowntimeMS:           req.MaxDowntimeMS,
			Compressed:              req.Compressed,
		},
		Status: v1alpha1.MigrationStatus{Phase: v1alpha1.MigrationPhasePrepare, StartTime: v1alpha1.Time{Time: time.Now()}},
	}
	if err := h.Migrations.Create(mig.Name, mig); err != nil {
		writeError(c, err)
		return
	}

	if _, err := h.VMs.Update(vm.Name, vm, vmRev); err != nil {
		writeError(c, err)
		return
	}

	runCtx, cancel := context.WithCancel(context.Background())
	h.trackMigration(mig.Name, cancel)
	name := mig.Name
	go func() {
		defer cancel()
		defer h.untrackMigration(name)
		if err := h.Migrator.Run(runCtx, name); err != nil {
			h.Logger.Warnw("migration run ended", "migration", name, "error", err)
		}
	}()

	c.Header("Location", "/api/migrations/"+mig.Name+"/status")
	writeAccepted(c, mig, 1, mig.Generation)
}

// GetMigrationStatus serves GET /migrations/{vm}/status.
func (h *Handler) GetMigrationStatus(c *gin.Context) {
	name := c.Param("vm")
	mig, _, err := h.Migrations.Get(name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, mig)
}

// DeleteMigration serves DELETE /migrations/{vm}: requests cancellation of
// an in-flight migration. If a Coordinator.Run goroutine for it is still
// running in this process, its context is canceled, which the step-poll
// loops observe and unwind through runAbort. If no goroutine is tracked
// (e.g. this process restarted mid-migration), the Migration row is only
// marked Abort: Coordinator.Run is started solely by CreateMigration, so no
// teardown runs for it and the VM's phase is left as it was.
func (h *Handler) DeleteMigration(c *gin.Context) {
	name := c.Param("vm")
	if h.cancelMigration(name) {
		c.JSON(http.StatusOK, gin.H{"status": "cancel-requested"})
		return
	}

	mig, rev, err := h.Migrations.Get(name)
	if err != nil {
		writeError(c, err)
		return
	}
	if mig.Status.Phase == v1alpha1.MigrationPhaseFinalize || mig.Status.Phase == v1alpha1.MigrationPhaseAbort {
		writeError(c, vmcperrors.New(vmcperrors.KindConflict, "migration has already reached a terminal phase"))
		return
	}
	mig.Status.Phase = v1alpha1.MigrationPhaseAbort
	mig.Status.FailureReason = "canceled by operator"
	if _, err := h.Migrations.Update(name, mig, rev); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "abort-scheduled"})
}
