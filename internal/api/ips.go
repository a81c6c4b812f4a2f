package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/coreforge/vmcp/api/v1alpha1"
	"github.com/coreforge/vmcp/internal/vmcperrors"
)

// ListFloatingIPs serves GET /ips.
func (h *Handler) ListFloatingIPs(c *gin.Context) {
	ips, err := h.FloatingIPs.List()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": ips})
}

type createFloatingIPRequest struct {
	Address string `json:"address" binding:"required"`
}

// CreateFloatingIP serves POST /ips: an administrator adds an address to
// the public pool. The address is reserved in IPAM immediately so the
// §8 invariant ("at most one IPAllocation per (scope, address) that isn't
// released") holds from the moment the pool entry exists.
func (h *Handler) CreateFloatingIP(c *gin.Context) {
	var req createFloatingIPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, vmcperrors.Wrap(vmcperrors.KindValidation, err, "invalid floating IP request body"))
		return
	}

	if _, err := h.PublicIPs.Reserve("", "", nil, req.Address); err != nil {
		writeError(c, err)
		return
	}

	fip := &v1alpha1.FloatingIP{
		TypeMeta: v1alpha1.TypeMeta{APIVersion: v1alpha1.GroupName + "/" + v1alpha1.Version, Kind: v1alpha1.FloatingIPKind},
		ObjectMeta: v1alpha1.ObjectMeta{
			Name:              req.Address,
			CreationTimestamp: v1alpha1.Time{Time: time.Now()},
			Generation:        1,
		},
		Spec: v1alpha1.FloatingIPSpec{Address: req.Address},
	}
	if err := h.FloatingIPs.Create(fip.Name, fip); err != nil {
		_ = h.PublicIPs.Release("", req.Address, "")
		writeError(c, err)
		return
	}
	writeOK(c, fip, 1, fip.Generation)
}

// DeleteFloatingIP serves DELETE /ips/{addr}.
func (h *Handler) DeleteFloatingIP(c *gin.Context) {
	addr := c.Param("addr")
	fip, rev, err := h.FloatingIPs.Get(addr)
	if err != nil {
		writeError(c, err)
		return
	}
	if fip.Status.BoundVMID != "" {
		writeError(c, vmcperrors.New(vmcperrors.KindConflict, "floating IP is still bound to a VM"))
		return
	}
	if err := h.PublicIPs.Release("", addr, ""); err != nil {
		writeError(c, err)
		return
	}
	if err := h.FloatingIPs.Delete(addr, rev); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type attachFloatingIPRequest struct {
	Address string `json:"address" binding:"required"`
}

// AttachFloatingIP serves POST /vms/{id}/ips/attach: binds a reserved
// floating IP to vmName's first NIC. The Reconciler's next pass applies
// the DNAT rule on the owning host; this handler only writes desired
// state.
func (h *Handler) AttachFloatingIP(c *gin.Context) {
	vmName := c.Param("id")
	var req attachFloatingIPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, vmcperrors.Wrap(vmcperrors.KindValidation, err, "invalid attach request body"))
		return
	}

	vm, rev, err := h.VMs.Get(vmName)
	if err != nil {
		writeError(c, err)
		return
	}
	if len(vm.Spec.NICs) == 0 {
		writeError(c, vmcperrors.New(vmcperrors.KindValidation, "VM has no NICs to attach a floating IP to"))
		return
	}

	if err := h.PublicIPs.Bind("", req.Address, vmName); err != nil {
		writeError(c, err)
		return
	}

	fip, fipRev, err := h.FloatingIPs.Get(req.Address)
	if err == nil {
		fip.Status.BoundVMID = vmName
		fip.Status.LastRebindTime = v1alpha1.Time{Time: time.Now()}
		_, _ = h.FloatingIPs.Update(req.Address, fip, fipRev)
	}

	vm.Spec.NICs[0].FloatingIP = req.Address
	newRev, err := h.VMs.Update(vmName, vm, rev)
	if err != nil {
		writeError(c, err)
		return
	}
	h.Reconciler.Enqueue(c.Request.Context(), vmName)
	writeAccepted(c, vm, newRev, vm.Generation)
}

// DetachFloatingIP serves POST /vms/{id}/ips/detach.
func (h *Handler) DetachFloatingIP(c *gin.Context) {
	vmName := c.Param("id")
	var req attachFloatingIPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, vmcperrors.Wrap(vmcperrors.KindValidation, err, "invalid detach request body"))
		return
	}

	vm, rev, err := h.VMs.Get(vmName)
	if err != nil {
		writeError(c, err)
		return
	}

	if err := h.PublicIPs.Release("", req.Address, vmName); err != nil {
		writeError(c, err)
		return
	}
	fip, fipRev, err := h.FloatingIPs.Get(req.Address)
	if err == nil {
		fip.Status.BoundVMID = ""
		fip.Status.LastRebindTime = v1alpha1.Time{Time: time.Now()}
		_, _ = h.FloatingIPs.Update(req.Address, fip, fipRev)
	}

	for i := range vm.Spec.NICs {
		if vm.Spec.NICs[i].FloatingIP == req.Address {
			vm.Spec.NICs[i].FloatingIP = ""
		}
	}
	newRev, err := h.VMs.Update(vmName, vm, rev)
	if err != nil {
		writeError(c, err)
		return
	}
	h.Reconciler.Enqueue(c.Request.Context(), vmName)
	writeAccepted(c, vm, newRev, vm.Generation)
}
