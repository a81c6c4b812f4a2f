package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/coreforge/vmcp/api/v1alpha1"
	"github.com/coreforge/vmcp/internal/status"
	"github.com/coreforge/vmcp/internal/vmcperrors"
)

const maxVCPUs = 64
const maxMemoryMiB = 512 * 1024

// ListVMs serves GET /vms from the Store snapshot.
func (h *Handler) ListVMs(c *gin.Context) {
	vms, err := h.VMs.List()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": vms})
}

// GetVM serves GET /vms/{id}.
func (h *Handler) GetVM(c *gin.Context) {
	vm, rev, err := h.VMs.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, vm, rev, vm.Generation)
}

type createVMRequest struct {
	Name           string               `json:"name" binding:"required"`
	VPC            string               `json:"vpc"`
	NetworkName    string               `json:"network_name"`
	CPUCores       int                  `json:"cpu_cores" binding:"required"`
	MemoryMB       int                  `json:"memory_mb" binding:"required"`
	DiskSizeGB     int                  `json:"disk_size_gb" binding:"required"`
	ImageID        string               `json:"image_id" binding:"required"`
	Arch           v1alpha1.Arch        `json:"arch"`
	CloudInit      *v1alpha1.CloudInitSpec `json:"cloud_init"`
	AntiAffinity   string               `json:"anti_affinity_tag"`
	ClientToken    string               `json:"client_token"`
}

// CreateVM serves POST /vms, the create-VM request schema in §6: a thin
// validator that writes desired state and enqueues the first reconcile
// step (stepCreate: place, provision storage, attach networking) rather
// than doing any of that work inline.
func (h *Handler) CreateVM(c *gin.Context) {
	var req createVMRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, vmcperrors.Wrap(vmcperrors.KindValidation, err, "invalid VM request body"))
		return
	}

	vpcID := req.VPC
	if vpcID == "" {
		vpcID = req.NetworkName
	}
	if vpcID == "" {
		writeError(c, vmcperrors.New(vmcperrors.KindValidation, "one of vpc or network_name is required"))
		return
	}
	if err := validateCreateVM(req); err != nil {
		writeError(c, err)
		return
	}

	if req.ClientToken != "" {
		if existing, found := h.findByClientToken(req.ClientToken); found {
			rev, _, err := h.vmRevision(existing.Name)
			if err != nil {
				writeError(c, err)
				return
			}
			writeOK(c, existing, rev, existing.Generation)
			return
		}
	}

	arch := req.Arch
	if arch == "" {
		arch = v1alpha1.ArchX86_64
	}

	vm := v1alpha1.NewVirtualMachine(req.Name)
	vm.Spec.VPCID = vpcID
	vm.Spec.ImageID = req.ImageID
	vm.Spec.Arch = arch
	vm.Spec.VCPUs = req.CPUCores
	vm.Spec.MemoryMiB = req.MemoryMB
	vm.Spec.RootDiskSizeGB = req.DiskSizeGB
	vm.Spec.AntiAffinityTag = req.AntiAffinity
	vm.Spec.CloudInit = req.CloudInit
	vm.Spec.ClientToken = req.ClientToken
	vm.Spec.NICs = []v1alpha1.VMNICSpec{{DefaultRoute: true}}

	if err := h.VMs.Create(vm.Name, vm); err != nil {
		writeError(c, err)
		return
	}

	h.Reconciler.Enqueue(c.Request.Context(), vm.Name)
	c.Header("Location", "/api/vms/"+vm.Name+"/status")
	writeAccepted(c, vm, 1, vm.Generation)
}

func validateCreateVM(req createVMRequest) error {
	if req.CPUCores < 1 || req.CPUCores > maxVCPUs {
		return vmcperrors.New(vmcperrors.KindValidation, "cpu_cores must be between 1 and 64")
	}
	if req.MemoryMB < 512 || req.MemoryMB%512 != 0 || req.MemoryMB > maxMemoryMiB {
		return vmcperrors.New(vmcperrors.KindValidation, "memory_mb must be >= 512, a multiple of 512, and <= 524288")
	}
	if req.DiskSizeGB < 10 {
		return vmcperrors.New(vmcperrors.KindValidation, "disk_size_gb must be >= 10")
	}
	if req.Arch != "" && req.Arch != v1alpha1.ArchX86_64 && req.Arch != v1alpha1.ArchAArch64 {
		return vmcperrors.New(vmcperrors.KindUnsupportedArch, "arch must be x86_64 or aarch64")
	}
	return nil
}

func (h *Handler) findByClientToken(token string) (*v1alpha1.VirtualMachine, bool) {
	vms, err := h.VMs.ListByField(func(vm *v1alpha1.VirtualMachine) bool {
		return vm.Spec.ClientToken == token
	})
	if err != nil || len(vms) == 0 {
		return nil, false
	}
	return vms[0], true
}

func (h *Handler) vmRevision(name string) (uint64, *v1alpha1.VirtualMachine, error) {
	vm, rev, err := h.VMs.Get(name)
	return rev, vm, err
}

// DeleteVM serves DELETE /vms/{id}, equivalent to POST .../terminate.
func (h *Handler) DeleteVM(c *gin.Context) {
	h.terminateVM(c, c.Param("id"))
}

// TerminateVM serves POST /vms/{id}/terminate.
func (h *Handler) TerminateVM(c *gin.Context) {
	h.terminateVM(c, c.Param("id"))
}

func (h *Handler) terminateVM(c *gin.Context, name string) {
	vm, rev, err := h.VMs.Get(name)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := status.TransitionToTerminating(vm); err != nil {
		writeError(c, vmcperrors.Wrap(vmcperrors.KindConflict, err, "cannot terminate VM in phase %s", vm.GetPhase()))
		return
	}
	newRev, err := h.VMs.Update(name, vm, rev)
	if err != nil {
		writeError(c, err)
		return
	}
	h.Reconciler.Enqueue(c.Request.Context(), name)
	writeAccepted(c, vm, newRev, vm.Generation)
}

// StartVM serves POST /vms/{id}/start.
func (h *Handler) StartVM(c *gin.Context) {
	name := c.Param("id")
	vm, rev, err := h.VMs.Get(name)
	if err != nil {
		writeError(c, err)
		return
	}
	if vm.GetPhase() != v1alpha1.VMPhaseStopped {
		writeError(c, vmcperrors.New(vmcperrors.KindConflict, "VM must be stopped to start"))
		return
	}
	vm.Spec.DesiredPower = "on"
	newRev, err := h.VMs.Update(name, vm, rev)
	if err != nil {
		writeError(c, err)
		return
	}
	h.Reconciler.Enqueue(c.Request.Context(), name)
	writeAccepted(c, vm, newRev, vm.Generation)
}

// StopVM serves POST /vms/{id}/stop.
func (h *Handler) StopVM(c *gin.Context) {
	name := c.Param("id")
	vm, rev, err := h.VMs.Get(name)
	if err != nil {
		writeError(c, err)
		return
	}
	if vm.GetPhase() != v1alpha1.VMPhaseRunning {
		writeError(c, vmcperrors.New(vmcperrors.KindConflict, "VM must be running to stop"))
		return
	}
	vm.Spec.DesiredPower = "off"
	newRev, err := h.VMs.Update(name, vm, rev)
	if err != nil {
		writeError(c, err)
		return
	}
	h.Reconciler.Enqueue(c.Request.Context(), name)
	writeAccepted(c, vm, newRev, vm.Generation)
}

// RestartVM serves POST /vms/{id}/restart: a full stop/start cycle driven
// by the existing Running->Stopping->Stopped->Starting->Running machinery,
// leaving Spec.DesiredPower at "on" throughout so stepReconcileStopped
// brings it back up once the Driver reports it shut off.
func (h *Handler) RestartVM(c *gin.Context) {
	name := c.Param("id")
	vm, rev, err := h.VMs.Get(name)
	if err != nil {
		writeError(c, err)
		return
	}
	if vm.GetPhase() != v1alpha1.VMPhaseRunning {
		writeError(c, vmcperrors.New(vmcperrors.KindConflict, "VM must be running to restart"))
		return
	}
	if err := status.TransitionToStopping(vm); err != nil {
		writeError(c, vmcperrors.Wrap(vmcperrors.KindConflict, err, "cannot restart VM"))
		return
	}
	newRev, err := h.VMs.Update(name, vm, rev)
	if err != nil {
		writeError(c, err)
		return
	}
	h.Reconciler.Enqueue(c.Request.Context(), name)
	writeAccepted(c, vm, newRev, vm.Generation)
}

type resizeVMRequest struct {
	CPUCores int `json:"cpu_cores"`
	MemoryMB int `json:"memory_mb"`
}

// ResizeVM serves POST /vms/{id}/resize. Resize only applies offline, per
// DESIGN.md's Open-Question decision: the VM must already be Stopped.
func (h *Handler) ResizeVM(c *gin.Context) {
	name := c.Param("id")
	var req resizeVMRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, vmcperrors.Wrap(vmcperrors.KindValidation, err, "invalid resize request body"))
		return
	}

	vm, rev, err := h.VMs.Get(name)
	if err != nil {
		writeError(c, err)
		return
	}
	if req.CPUCores > 0 {
		if req.CPUCores > maxVCPUs {
			writeError(c, vmcperrors.New(vmcperrors.KindValidation, "cpu_cores must be <= 64"))
			return
		}
		vm.Spec.VCPUs = req.CPUCores
	}
	if req.MemoryMB > 0 {
		if req.MemoryMB < 512 || req.MemoryMB%512 != 0 || req.MemoryMB > maxMemoryMiB {
			writeError(c, vmcperrors.New(vmcperrors.KindValidation, "memory_mb must be >= 512, a multiple of 512, and <= 524288"))
			return
		}
		vm.Spec.MemoryMiB = req.MemoryMB
	}

	if err := status.TransitionToResizing(vm); err != nil {
		writeError(c, vmcperrors.Wrap(vmcperrors.KindConflict, err, "cannot resize VM"))
		return
	}
	newRev, err := h.VMs.Update(name, vm, rev)
	if err != nil {
		writeError(c, err)
		return
	}
	h.Reconciler.Enqueue(c.Request.Context(), name)
	writeAccepted(c, vm, newRev, vm.Generation)
}

// GetVMStatus serves GET /vms/{id}/status: the Store record merged with
// the last Driver status response, per §4.9. A Driver read failure is
// non-fatal here — the handler falls back to the Store's observed state
// rather than failing the whole request.
func (h *Handler) GetVMStatus(c *gin.Context) {
	vm, rev, err := h.VMs.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	resp := gin.H{"vm": vm, "revision": rev, "observedAt": time.Now().Format(time.RFC3339)}
	if vm.Status.OwnerHostID != "" {
		if host, hErr := h.Hosts.Get(vm.Status.OwnerHostID); hErr == nil {
			if drv, dErr := h.DriverFor(host); dErr == nil {
				if ds, sErr := drv.Status(c.Request.Context(), host, vm.Name); sErr == nil {
					resp["driver"] = ds
				}
			}
		}
	}
	c.JSON(http.StatusOK, resp)
}

// GetVMMetrics serves GET /vms/{id}/metrics.
func (h *Handler) GetVMMetrics(c *gin.Context) {
	vm, _, err := h.VMs.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if vm.Status.OwnerHostID == "" {
		writeError(c, vmcperrors.New(vmcperrors.KindNotFound, "VM has no owning host yet"))
		return
	}
	host, err := h.Hosts.Get(vm.Status.OwnerHostID)
	if err != nil {
		writeError(c, err)
		return
	}
	drv, err := h.DriverFor(host)
	if err != nil {
		writeError(c, err)
		return
	}
	metrics, err := drv.Metrics(c.Request.Context(), host, vm.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, metrics)
}

// GetSerialConsoleURL serves GET /vms/{id}/serial-console: a signed
// WebSocket URL valid for ConsoleURLTTL, per §6.
func (h *Handler) GetSerialConsoleURL(c *gin.Context) {
	name := c.Param("id")
	if _, _, err := h.VMs.Get(name); err != nil {
		writeError(c, err)
		return
	}
	token := signConsoleToken(h.ConsoleSigningKey, name, time.Now())
	c.JSON(http.StatusOK, gin.H{"url": "/ws?vm=" + name + "&token=" + token})
}
