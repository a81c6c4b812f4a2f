package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/coreforge/vmcp/api/v1alpha1"
	"github.com/coreforge/vmcp/internal/vmcperrors"
)

// ListDisks serves GET /disks.
func (h *Handler) ListDisks(c *gin.Context) {
	disks, err := h.Disks.List()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": disks})
}

type createDiskRequest struct {
	Name   string `json:"name" binding:"required"`
	SizeGB int    `json:"size_gb" binding:"required"`
}

// CreateDisk serves POST /disks. The Disk row is created Available with no
// backing file yet; the file is provisioned lazily by the Reconciler the
// first time it's attached to a VM, matching stepCreate's ensureImage/
// attachDisks pattern for disks that ship with the VM.
func (h *Handler) CreateDisk(c *gin.Context) {
	var req createDiskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, vmcperrors.Wrap(vmcperrors.KindValidation, err, "invalid disk request body"))
		return
	}
	if req.SizeGB < 1 {
		writeError(c, vmcperrors.New(vmcperrors.KindValidation, "size_gb must be >= 1"))
		return
	}

	disk := &v1alpha1.Disk{
		TypeMeta: v1alpha1.TypeMeta{APIVersion: v1alpha1.GroupName + "/" + v1alpha1.Version, Kind: v1alpha1.DiskKind},
		ObjectMeta: v1alpha1.ObjectMeta{
			Name:              req.Name,
			UID:               uuid.New().String(),
			CreationTimestamp: v1alpha1.Time{Time: time.Now()},
			Generation:        1,
		},
		Spec:   v1alpha1.DiskSpec{SizeGB: req.SizeGB},
		Status: v1alpha1.DiskStatus{Phase: v1alpha1.DiskAvailable},
	}
	if err := h.Disks.Create(disk.Name, disk); err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, disk, 1, disk.Generation)
}

// DeleteDisk serves DELETE /disks/{id}.
func (h *Handler) DeleteDisk(c *gin.Context) {
	name := c.Param("id")
	disk, rev, err := h.Disks.Get(name)
	if err != nil {
		writeError(c, err)
		return
	}
	if disk.Status.Phase == v1alpha1.DiskInUse {
		writeError(c, vmcperrors.New(vmcperrors.KindConflict, "disk is still attached to a VM"))
		return
	}
	if err := h.Disks.Delete(name, rev); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type resizeDiskRequest struct {
	SizeGB int `json:"size_gb" binding:"required"`
}

// ResizeDisk serves POST /disks/{id}/resize: grow-only. It records the new
// size in the Disk's Spec and sets the phase to DiskResizing if the disk is
// attached, DiskAvailable if not. Nothing calls the Driver's ResizeVolume
// for it, so the backing volume itself keeps its old size.
func (h *Handler) ResizeDisk(c *gin.Context) {
	name := c.Param("id")
	var req resizeDiskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, vmcperrors.Wrap(vmcperrors.KindValidation, err, "invalid resize request body"))
		return
	}

	disk, rev, err := h.Disks.Get(name)
	if err != nil {
		writeError(c, err)
		return
	}
	if req.SizeGB <= disk.Spec.SizeGB {
		writeError(c, vmcperrors.New(vmcperrors.KindValidation, "size_gb must grow the disk"))
		return
	}
	disk.Spec.SizeGB = req.SizeGB

	if disk.Status.Attachment == nil {
		disk.Status.Phase = v1alpha1.DiskAvailable
		newRev, err := h.Disks.Update(name, disk, rev)
		if err != nil {
			writeError(c, err)
			return
		}
		writeOK(c, disk, newRev, disk.Generation)
		return
	}

	disk.Status.Phase = v1alpha1.DiskResizing
	newRev, err := h.Disks.Update(name, disk, rev)
	if err != nil {
		writeError(c, err)
		return
	}
	h.Reconciler.Enqueue(c.Request.Context(), disk.Status.Attachment.VMID)
	writeAccepted(c, disk, newRev, disk.Generation)
}

type attachDiskRequest struct {
	DiskID string `json:"disk_id" binding:"required"`
	Device string `json:"device" binding:"required"`
}

// AttachDisk serves POST /vms/{id}/disks/attach.
func (h *Handler) AttachDisk(c *gin.Context) {
	vmName := c.Param("id")
	var req attachDiskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, vmcperrors.Wrap(vmcperrors.KindValidation, err, "invalid attach request body"))
		return
	}

	disk, diskRev, err := h.Disks.Get(req.DiskID)
	if err != nil {
		writeError(c, err)
		return
	}
	if disk.Status.Phase != v1alpha1.DiskAvailable {
		writeError(c, vmcperrors.New(vmcperrors.KindConflict, "disk is not available"))
		return
	}

	vm, vmRev, err := h.VMs.Get(vmName)
	if err != nil {
		writeError(c, err)
		return
	}
	for _, a := range vm.Spec.DiskAttachments {
		if a.Device == req.Device {
			writeError(c, vmcperrors.New(vmcperrors.KindConflict, "device slot already in use"))
			return
		}
	}
	vm.Spec.DiskAttachments = append(vm.Spec.DiskAttachments, v1alpha1.VMDiskAttachment{DiskID: req.DiskID, Device: req.Device})
	newVMRev, err := h.VMs.Update(vmName, vm, vmRev)
	if err != nil {
		writeError(c, err)
		return
	}

	disk.Status.Phase = v1alpha1.DiskInUse
	disk.Status.Attachment = &v1alpha1.DiskAttachment{VMID: vmName, Device: req.Device}
	if _, err := h.Disks.Update(req.DiskID, disk, diskRev); err != nil {
		writeError(c, err)
		return
	}

	h.Reconciler.Enqueue(c.Request.Context(), vmName)
	writeAccepted(c, vm, newVMRev, vm.Generation)
}

type detachDiskRequest struct {
	DiskID string `json:"disk_id" binding:"required"`
}

// DetachDisk serves POST /vms/{id}/disks/detach.
func (h *Handler) DetachDisk(c *gin.Context) {
	vmName := c.Param("id")
	var req detachDiskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, vmcperrors.Wrap(vmcperrors.KindValidation, err, "invalid detach request body"))
		return
	}

	vm, vmRev, err := h.VMs.Get(vmName)
	if err != nil {
		writeError(c, err)
		return
	}
	kept := make([]v1alpha1.VMDiskAttachment, 0, len(vm.Spec.DiskAttachments))
	for _, a := range vm.Spec.DiskAttachments {
		if a.DiskID != req.DiskID {
			kept = append(kept, a)
		}
	}
	vm.Spec.DiskAttachments = kept
	newVMRev, err := h.VMs.Update(vmName, vm, vmRev)
	if err != nil {
		writeError(c, err)
		return
	}

	if disk, diskRev, err := h.Disks.Get(req.DiskID); err == nil {
		disk.Status.Phase = v1alpha1.DiskAvailable
		disk.Status.Attachment = nil
		_, _ = h.Disks.Update(req.DiskID, disk, diskRev)
	}

	h.Reconciler.Enqueue(c.Request.Context(), vmName)
	writeAccepted(c, vm, newVMRev, vm.Generation)
}
