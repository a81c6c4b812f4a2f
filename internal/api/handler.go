// Package api implements the HTTP and WebSocket surface described in
// SPEC_FULL.md §4.9: thin request validators that resolve and lock by
// generation, write desired state, enqueue reconciliation, and return 202
// with a follow-up status URL. Apart from the read-only Status/Metrics calls
// in GetVMStatus and GetVMMetrics it runs no Driver verbs itself — that is
// the Reconciler's and Migration Coordinator's job, reached here only by
// enqueueing work.
package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/coreforge/vmcp/api/v1alpha1"
	"github.com/coreforge/vmcp/internal/console"
	"github.com/coreforge/vmcp/internal/driver"
	"github.com/coreforge/vmcp/internal/entitystore"
	"github.com/coreforge/vmcp/internal/hostregistry"
	"github.com/coreforge/vmcp/internal/ipam"
	"github.com/coreforge/vmcp/internal/migration"
	"github.com/coreforge/vmcp/internal/reconciler"
	"github.com/coreforge/vmcp/internal/vmcperrors"
)

// Handler holds every dependency route handlers need: the typed entity
// stores, the host registry, the two IPAM allocators (VPC-private and
// public-pool), the Reconciler and Migration Coordinator to enqueue work
// onto, the Console Hub, and a Driver resolver for capability checks that
// don't go through a queued step (e.g. live status merge).
type Handler struct {
	VMs           *entitystore.Store[v1alpha1.VirtualMachine]
	VPCs          *entitystore.Store[v1alpha1.VPC]
	Subnets       *entitystore.Store[v1alpha1.Subnet]
	FirewallRules *entitystore.Store[v1alpha1.FirewallRule]
	Disks         *entitystore.Store[v1alpha1.Disk]
	Images        *entitystore.Store[v1alpha1.Image]
	FloatingIPs   *entitystore.Store[v1alpha1.FloatingIP]
	Migrations    *entitystore.Store[v1alpha1.Migration]

	Hosts     *hostregistry.Registry
	VPCIPs    *ipam.Allocator
	PublicIPs *ipam.Allocator

	Reconciler *reconciler.Reconciler
	Migrator   *migration.Coordinator
	Console    *console.Hub
	DriverFor  func(host *v1alpha1.Host) (driver.Capability, error)

	// ConsoleSigningKey signs the short-lived WebSocket URLs GET
	// /vms/{id}/serial-console issues (§6).
	ConsoleSigningKey []byte

	Logger *zap.SugaredLogger

	// runningMigrations tracks the cancel func of every Coordinator.Run
	// goroutine this process has started, keyed by migration name, so
	// DeleteMigration can ask one to stop.
	migMu             sync.Mutex
	runningMigrations map[string]context.CancelFunc
}

func (h *Handler) trackMigration(name string, cancel context.CancelFunc) {
	h.migMu.Lock()
	defer h.migMu.Unlock()
	if h.runningMigrations == nil {
		h.runningMigrations = make(map[string]context.CancelFunc)
	}
	h.runningMigrations[name] = cancel
}

func (h *Handler) untrackMigration(name string) {
	h.migMu.Lock()
	defer h.migMu.Unlock()
	delete(h.runningMigrations, name)
}

func (h *Handler) cancelMigration(name string) bool {
	h.migMu.Lock()
	defer h.migMu.Unlock()
	cancel, ok := h.runningMigrations[name]
	if ok {
		cancel()
	}
	return ok
}

// statusEnvelope is the shape every mutating endpoint returns, per §6:
// "{status, resource, revision}" plus the resource's current generation.
type statusEnvelope struct {
	Status     string `json:"status"`
	Resource   any    `json:"resource"`
	Revision   uint64 `json:"revision"`
	Generation int64  `json:"generation"`
}

// errorEnvelope is the stable error shape the §7 Kind taxonomy maps onto.
type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(c *gin.Context, err error) {
	kind := vmcperrors.KindOf(err)
	c.JSON(kind.HTTPStatus(), gin.H{"error": errorEnvelope{
		Code:    string(kind),
		Message: err.Error(),
	}})
}

func writeAccepted(c *gin.Context, resource any, revision uint64, generation int64) {
	c.JSON(http.StatusAccepted, statusEnvelope{
		Status:     "accepted",
		Resource:   resource,
		Revision:   revision,
		Generation: generation,
	})
}

func writeOK(c *gin.Context, resource any, revision uint64, generation int64) {
	c.JSON(http.StatusOK, statusEnvelope{
		Status:     "ok",
		Resource:   resource,
		Revision:   revision,
		Generation: generation,
	})
}
