package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/coreforge/vmcp/api/v1alpha1"
	"github.com/coreforge/vmcp/internal/naming"
	"github.com/coreforge/vmcp/internal/vmcperrors"
)

// ListVPCs serves GET /vpcs from the Store snapshot.
func (h *Handler) ListVPCs(c *gin.Context) {
	vpcs, err := h.VPCs.List()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": vpcs})
}

type createVPCRequest struct {
	Name           string `json:"name" binding:"required"`
	CIDR           string `json:"cidr" binding:"required"`
	DefaultGateway string `json:"defaultGateway"`
	MTU            int    `json:"mtu"`
}

// CreateVPC serves POST /vpcs.
func (h *Handler) CreateVPC(c *gin.Context) {
	var req createVPCRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, vmcperrors.Wrap(vmcperrors.KindValidation, err, "invalid VPC request body"))
		return
	}

	vpc := &v1alpha1.VPC{
		TypeMeta: v1alpha1.TypeMeta{APIVersion: v1alpha1.GroupName + "/" + v1alpha1.Version, Kind: v1alpha1.VPCKind},
		ObjectMeta: v1alpha1.ObjectMeta{
			Name:               req.Name,
			UID:                uuid.New().String(),
			CreationTimestamp:  v1alpha1.Time{Time: time.Now()},
			Generation:         1,
		},
		Spec: v1alpha1.VPCSpec{CIDR: req.CIDR, DefaultGateway: req.DefaultGateway, MTU: req.MTU},
		Status: v1alpha1.VPCStatus{
			BridgeName: naming.BridgeNameForVPC(req.Name),
			ChainName:  naming.ChainNameForVPC(req.Name, "in"),
		},
	}

	if err := h.VPCs.Create(vpc.Name, vpc); err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, vpc, 1, vpc.Generation)
}

// GetVPC serves GET /vpcs/{name}.
func (h *Handler) GetVPC(c *gin.Context) {
	vpc, rev, err := h.VPCs.Get(c.Param("name"))
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, vpc, rev, vpc.Generation)
}

// DeleteVPC serves DELETE /vpcs/{name}.
func (h *Handler) DeleteVPC(c *gin.Context) {
	name := c.Param("name")
	_, rev, err := h.VPCs.Get(name)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.VPCs.Delete(name, rev); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type createSubnetRequest struct {
	Name              string   `json:"name" binding:"required"`
	CIDR              string   `json:"cidr" binding:"required"`
	ReservedAddresses []string `json:"reservedAddresses"`
}

// CreateSubnet serves POST /vpcs/{name}/subnets.
func (h *Handler) CreateSubnet(c *gin.Context) {
	vpcName := c.Param("name")
	if _, _, err := h.VPCs.Get(vpcName); err != nil {
		writeError(c, err)
		return
	}

	var req createSubnetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, vmcperrors.Wrap(vmcperrors.KindValidation, err, "invalid subnet request body"))
		return
	}

	subnet := &v1alpha1.Subnet{
		TypeMeta: v1alpha1.TypeMeta{APIVersion: v1alpha1.GroupName + "/" + v1alpha1.Version, Kind: v1alpha1.SubnetKind},
		ObjectMeta: v1alpha1.ObjectMeta{
			Name:              req.Name,
			UID:               uuid.New().String(),
			CreationTimestamp: v1alpha1.Time{Time: time.Now()},
			Generation:        1,
		},
		Spec: v1alpha1.SubnetSpec{VPCID: vpcName, CIDR: req.CIDR, ReservedAddresses: req.ReservedAddresses},
	}

	if err := h.Subnets.Create(subnet.Name, subnet); err != nil {
		writeError(c, err)
		return
	}

	vpc, vpcRev, err := h.VPCs.Get(vpcName)
	if err == nil {
		vpc.Status.SubnetIDs = append(vpc.Status.SubnetIDs, subnet.Name)
		_, _ = h.VPCs.Update(vpcName, vpc, vpcRev)
	}

	writeOK(c, subnet, 1, subnet.Generation)
}

// DeleteSubnet serves DELETE /vpcs/{name}/subnets/{name}.
func (h *Handler) DeleteSubnet(c *gin.Context) {
	subnetName := c.Param("subnet")
	_, rev, err := h.Subnets.Get(subnetName)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.Subnets.Delete(subnetName, rev); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListFirewallRules serves GET /vpcs/{name}/firewall-rules.
func (h *Handler) ListFirewallRules(c *gin.Context) {
	vpcName := c.Param("name")
	rules, err := h.FirewallRules.ListByField(func(r *v1alpha1.FirewallRule) bool {
		return r.Spec.VPCID == vpcName
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": rules})
}

type createFirewallRuleRequest struct {
	Direction   v1alpha1.FirewallDirection `json:"direction" binding:"required"`
	Protocol    v1alpha1.FirewallProtocol  `json:"protocol" binding:"required"`
	PortMin     int                        `json:"portMin"`
	PortMax     int                        `json:"portMax"`
	SourceCIDR  string                     `json:"sourceCIDR"`
	DestCIDR    string                     `json:"destCIDR"`
	Description string                     `json:"description"`
	Priority    int                        `json:"priority"`
}

// CreateFirewallRule serves POST /vpcs/{name}/firewall-rules. It stores the
// rule only: no component compiles the VPC's rules with internal/firewall or
// pushes them to hosts through the Driver's ApplyIPTables.
func (h *Handler) CreateFirewallRule(c *gin.Context) {
	vpcName := c.Param("name")
	if _, _, err := h.VPCs.Get(vpcName); err != nil {
		writeError(c, err)
		return
	}

	var req createFirewallRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, vmcperrors.Wrap(vmcperrors.KindValidation, err, "invalid firewall rule request body"))
		return
	}

	id := uuid.New().String()
	rule := &v1alpha1.FirewallRule{
		TypeMeta: v1alpha1.TypeMeta{APIVersion: v1alpha1.GroupName + "/" + v1alpha1.Version, Kind: v1alpha1.FirewallRuleKind},
		ObjectMeta: v1alpha1.ObjectMeta{
			Name:              id,
			UID:               id,
			CreationTimestamp: v1alpha1.Time{Time: time.Now()},
			Generation:        1,
		},
		Spec: v1alpha1.FirewallRuleSpec{
			VPCID:       vpcName,
			Direction:   req.Direction,
			Protocol:    req.Protocol,
			PortMin:     req.PortMin,
			PortMax:     req.PortMax,
			SourceCIDR:  req.SourceCIDR,
			DestCIDR:    req.DestCIDR,
			Description: req.Description,
			Priority:    req.Priority,
		},
	}

	if err := h.FirewallRules.Create(rule.Name, rule); err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, rule, 1, rule.Generation)
}

// DeleteFirewallRule serves DELETE /vpcs/{name}/firewall-rules/{id}.
func (h *Handler) DeleteFirewallRule(c *gin.Context) {
	id := c.Param("id")
	_, rev, err := h.FirewallRules.Get(id)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.FirewallRules.Delete(id, rev); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
