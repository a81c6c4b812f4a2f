// Package ipam implements the two address allocators described in
// SPEC_FULL.md §4.2: a per-VPC private CIDR allocator and a per-region
// public floating-IP pool allocator, sharing one reserve/bind/release/list
// contract over internal/store.
package ipam

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/coreforge/vmcp/api/v1alpha1"
	"github.com/coreforge/vmcp/internal/store"
	"github.com/coreforge/vmcp/internal/vmcperrors"
)

// GracePeriod is how long a "reserved" allocation with no bound owner is
// kept before the sweeper reaps it, per spec.md §9(b).
const GracePeriod = 5 * time.Minute

// Allocator allocates and tracks IPAllocation rows for one scope kind
// (VPC-private or public-pool) over the shared Store.
type Allocator struct {
	st    *store.Store
	scope v1alpha1.IPAllocationScope
}

// NewVPCAllocator returns an Allocator for VPC-private addressing.
func NewVPCAllocator(st *store.Store) *Allocator {
	return &Allocator{st: st, scope: v1alpha1.IPAllocationScopeVPC}
}

// NewPublicAllocator returns an Allocator for the shared public floating-IP
// pool.
func NewPublicAllocator(st *store.Store) *Allocator {
	return &Allocator{st: st, scope: v1alpha1.IPAllocationScopePublic}
}

func allocKey(scope v1alpha1.IPAllocationScope, scopeID, address string) string {
	if scopeID == "" {
		return fmt.Sprintf("/alloc/%s/%s", scope, address)
	}
	return fmt.Sprintf("/alloc/%s/%s/%s", scope, scopeID, address)
}

func allocPrefix(scope v1alpha1.IPAllocationScope, scopeID string) string {
	if scopeID == "" {
		return fmt.Sprintf("/alloc/%s/", scope)
	}
	return fmt.Sprintf("/alloc/%s/%s/", scope, scopeID)
}

// Reserve picks the next free address in cidr (skipping reserved) and
// writes a "reserved" IPAllocation row. hint, if non-empty and free,
// is used instead of the deterministic scan order.
func (a *Allocator) Reserve(scopeID, cidr string, reserved []string, hint string) (*v1alpha1.IPAllocation, error) {
	existing, err := a.List(scopeID)
	if err != nil {
		return nil, err
	}
	taken := make(map[string]bool, len(existing)+len(reserved))
	for _, alloc := range existing {
		if alloc.Spec.Status != v1alpha1.IPAllocationReleased {
			taken[alloc.Spec.Address] = true
		}
	}
	for _, r := range reserved {
		taken[r] = true
	}

	addr := hint
	if addr == "" || taken[addr] {
		addr, err = nextFreeAddress(cidr, taken)
		if err != nil {
			return nil, err
		}
	}

	alloc := &v1alpha1.IPAllocation{
		TypeMeta: v1alpha1.TypeMeta{Kind: v1alpha1.IPAllocationKind, APIVersion: v1alpha1.GroupName + "/" + v1alpha1.Version},
		ObjectMeta: v1alpha1.ObjectMeta{
			Name:              addr,
			CreationTimestamp: v1alpha1.Time{Time: time.Now()},
		},
		Spec: v1alpha1.IPAllocationSpec{
			Scope:      a.scope,
			ScopeID:    scopeID,
			Address:    addr,
			Status:     v1alpha1.IPAllocationReserved,
			ReservedAt: v1alpha1.Time{Time: time.Now()},
		},
	}

	payload, err := json.Marshal(alloc)
	if err != nil {
		return nil, vmcperrors.Wrap(vmcperrors.KindInternal, err, "marshal allocation")
	}
	if _, err := a.st.Put(allocKey(a.scope, scopeID, addr), payload, 0); err != nil {
		return nil, err
	}
	return alloc, nil
}

// Bind marks a reserved address as bound to owner. Idempotent if already
// bound to the same owner.
func (a *Allocator) Bind(scopeID, address, owner string) error {
	key := allocKey(a.scope, scopeID, address)
	rec, err := a.st.Get(key)
	if err != nil {
		return err
	}
	var alloc v1alpha1.IPAllocation
	if err := json.Unmarshal(rec.Value, &alloc); err != nil {
		return vmcperrors.Wrap(vmcperrors.KindInternal, err, "unmarshal allocation %s", address)
	}
	if alloc.Spec.Status == v1alpha1.IPAllocationBound && alloc.Spec.Owner == owner {
		return nil
	}
	if alloc.Spec.Status == v1alpha1.IPAllocationBound && alloc.Spec.Owner != owner {
		return vmcperrors.New(vmcperrors.KindConflict, fmt.Sprintf("address %s already bound to %s", address, alloc.Spec.Owner))
	}

	alloc.Spec.Status = v1alpha1.IPAllocationBound
	alloc.Spec.Owner = owner
	payload, err := json.Marshal(&alloc)
	if err != nil {
		return vmcperrors.Wrap(vmcperrors.KindInternal, err, "marshal allocation")
	}
	_, err = a.st.Put(key, payload, rec.Rev)
	return err
}

// Release marks address as released. Idempotent: releasing an
// already-released or missing allocation is a no-op.
func (a *Allocator) Release(scopeID, address, owner string) error {
	key := allocKey(a.scope, scopeID, address)
	rec, err := a.st.Get(key)
	if vmcperrors.Is(err, vmcperrors.KindNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	var alloc v1alpha1.IPAllocation
	if err := json.Unmarshal(rec.Value, &alloc); err != nil {
		return vmcperrors.Wrap(vmcperrors.KindInternal, err, "unmarshal allocation %s", address)
	}
	if alloc.Spec.Status == v1alpha1.IPAllocationReleased {
		return nil
	}

	alloc.Spec.Status = v1alpha1.IPAllocationReleased
	alloc.Spec.Owner = ""
	payload, err := json.Marshal(&alloc)
	if err != nil {
		return vmcperrors.Wrap(vmcperrors.KindInternal, err, "marshal allocation")
	}
	_, err = a.st.Put(key, payload, rec.Rev)
	return err
}

// List returns every allocation under scopeID (all statuses).
func (a *Allocator) List(scopeID string) ([]*v1alpha1.IPAllocation, error) {
	recs, err := a.st.List(allocPrefix(a.scope, scopeID))
	if err != nil {
		return nil, err
	}
	out := make([]*v1alpha1.IPAllocation, 0, len(recs))
	for _, rec := range recs {
		var alloc v1alpha1.IPAllocation
		if err := json.Unmarshal(rec.Value, &alloc); err != nil {
			return nil, vmcperrors.Wrap(vmcperrors.KindInternal, err, "unmarshal allocation")
		}
		out = append(out, &alloc)
	}
	return out, nil
}

// nextFreeAddress scans cidr in deterministic order (smallest free
// host-part first), skipping the network and broadcast addresses when the
// CIDR has at least two host bits, and returns the first address not in
// taken.
func nextFreeAddress(cidr string, taken map[string]bool) (string, error) {
	ip, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return "", vmcperrors.Wrap(vmcperrors.KindValidation, err, "invalid CIDR %s", cidr)
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return "", vmcperrors.New(vmcperrors.KindUnsupportedArch, "only IPv4 CIDRs are supported")
	}

	ones, bits := ipnet.Mask.Size()
	hostBits := bits - ones
	if hostBits <= 0 {
		return "", vmcperrors.New(vmcperrors.KindExhausted, fmt.Sprintf("CIDR %s has no host addresses", cidr))
	}
	total := uint32(1) << uint(hostBits)

	base := ipToUint32(ipnet.IP)
	first, last := uint32(0), total
	if hostBits >= 2 {
		first, last = 1, total-1
	}
	for offset := first; offset < last; offset++ {
		candidate := uint32ToIP(base + offset)
		addr := candidate.String()
		if !taken[addr] {
			return addr, nil
		}
	}
	return "", vmcperrors.New(vmcperrors.KindExhausted, fmt.Sprintf("CIDR %s exhausted", cidr))
}

// DefaultReservedAddresses returns the network address, gateway, and
// broadcast address of cidr: the implicit reservation a Subnet carries
// (spec.md §2: "reserved addresses (network, gw, broadcast)") even when no
// Subnet row exists to spell it out explicitly. gateway, if empty, defaults
// to the first host address (base+1), the conventional VPC gateway.
func DefaultReservedAddresses(cidr, gateway string) ([]string, error) {
	_, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, vmcperrors.Wrap(vmcperrors.KindValidation, err, "invalid CIDR %s", cidr)
	}
	ones, bits := ipnet.Mask.Size()
	hostBits := bits - ones
	base := ipToUint32(ipnet.IP)
	if hostBits <= 0 {
		return []string{uint32ToIP(base).String()}, nil
	}
	total := uint32(1) << uint(hostBits)

	if gateway == "" {
		gateway = uint32ToIP(base + 1).String()
	}
	return []string{
		uint32ToIP(base).String(),
		gateway,
		uint32ToIP(base + total - 1).String(),
	}, nil
}

func ipToUint32(ip net.IP) uint32 {
	ip4 := ip.To4()
	return uint32(ip4[0])<<24 | uint32(ip4[1])<<16 | uint32(ip4[2])<<8 | uint32(ip4[3])
}

func uint32ToIP(v uint32) net.IP {
	return net.IPv4(byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// SweepExpiredReservations reaps any "reserved" allocation with no owning
// row whose ReservedAt is older than GracePeriod. Call periodically from a
// background goroutine (see RunSweeper).
func (a *Allocator) SweepExpiredReservations() (int, error) {
	recs, err := a.st.List(allocPrefix(a.scope, ""))
	if err != nil {
		return 0, err
	}
	reaped := 0
	for key, rec := range recs {
		var alloc v1alpha1.IPAllocation
		if err := json.Unmarshal(rec.Value, &alloc); err != nil {
			continue
		}
		if alloc.Spec.Status != v1alpha1.IPAllocationReserved {
			continue
		}
		if alloc.Spec.Owner != "" {
			continue
		}
		if time.Since(alloc.Spec.ReservedAt.Time) < GracePeriod {
			continue
		}
		if err := a.st.Delete(key, rec.Rev); err != nil && !vmcperrors.Is(err, vmcperrors.KindConflict) {
			return reaped, err
		}
		reaped++
	}
	return reaped, nil
}

// RunSweeper runs SweepExpiredReservations on interval until ctx is done.
func (a *Allocator) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = a.SweepExpiredReservations()
		}
	}
}
