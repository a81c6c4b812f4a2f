// Package scheduler implements the control plane's placement algorithm:
// filter hosts by health/arch/image/capacity, rank survivors, and enforce
// anti-affinity tags: when every admissible host already runs a VM with the
// same tag, placement fails with insufficient_capacity.
package scheduler

import (
	"sort"

	"github.com/coreforge/vmcp/api/v1alpha1"
	"github.com/coreforge/vmcp/internal/vmcperrors"
)

// HeadroomFraction is the fraction of a host's capacity reserved and never
// offered to the Scheduler, matching spec.md §4.4's 10% default.
const HeadroomFraction = 0.10

// Candidate is a Host together with the other VMs already placed on it,
// supplied by the caller (the Reconciler reads both from the Store in one
// snapshot so Schedule itself stays pure and side-effect free).
type Candidate struct {
	Host       *v1alpha1.Host
	ActiveVMs  []*v1alpha1.VirtualMachine
}

// Schedule picks a host for vm among candidates, or returns a
// vmcperrors.Error with KindExhausted ("unschedulable"/"insufficient_capacity").
//
// image may be nil if vm.Spec.ImageID refers to no known Image row; in that
// case the image-arch check is skipped and placement relies on the
// Reconciler's ensure_image step to fail the transition instead. No filter
// checks whether the image is already present on a host.
func Schedule(vm *v1alpha1.VirtualMachine, candidates []Candidate, image *v1alpha1.Image) (string, error) {
	if vm == nil {
		return "", vmcperrors.New(vmcperrors.KindValidation, "vm must not be nil")
	}

	filtered := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !admits(vm, c, image) {
			continue
		}
		filtered = append(filtered, c)
	}
	if len(filtered) == 0 {
		return "", vmcperrors.New(vmcperrors.KindExhausted, "unschedulable: no host satisfies arch, image, and capacity requirements")
	}

	if vm.Spec.AntiAffinityTag != "" {
		withoutCollision := make([]Candidate, 0, len(filtered))
		for _, c := range filtered {
			if !hasAntiAffinityCollision(vm.Spec.AntiAffinityTag, c.ActiveVMs) {
				withoutCollision = append(withoutCollision, c)
			}
		}
		if len(withoutCollision) == 0 {
			return "", vmcperrors.New(vmcperrors.KindExhausted, "insufficient_capacity: every admissible host violates anti-affinity tag "+vm.Spec.AntiAffinityTag)
		}
		filtered = withoutCollision
	}

	sort.Slice(filtered, func(i, j int) bool {
		si, sj := rankScore(filtered[i].Host), rankScore(filtered[j].Host)
		if si != sj {
			return si > sj
		}
		if len(filtered[i].ActiveVMs) != len(filtered[j].ActiveVMs) {
			return len(filtered[i].ActiveVMs) < len(filtered[j].ActiveVMs)
		}
		return filtered[i].Host.Name < filtered[j].Host.Name
	})

	return filtered[0].Host.Name, nil
}

// admits reports whether c's host passes the filter stage for vm: health,
// architecture match, the image's architecture (when image is known), and
// remaining capacity after headroom.
func admits(vm *v1alpha1.VirtualMachine, c Candidate, image *v1alpha1.Image) bool {
	h := c.Host
	if h.Status.Health != v1alpha1.HostHealthReady {
		return false
	}

	wantArch := vm.Spec.Arch
	if wantArch == "" {
		wantArch = h.Spec.Arch
	}
	if wantArch != h.Spec.Arch {
		return false
	}

	// Presence of the requested image only disqualifies a host when the
	// image itself can never run there (arch mismatch). An image already
	// being absent from h.Status.HostPaths is the normal case for a host
	// that simply hasn't needed it yet; ensure_image fetches it at
	// reconcile time (§4.4: "presence of the requested image (or ability
	// to fetch)"), so a cold HostPaths map must never make a host
	// inadmissible.
	if image != nil && image.Spec.Arch != h.Spec.Arch {
		return false
	}

	freeVCPUs := float64(h.Spec.CapacityVCPUs)*(1-HeadroomFraction) - float64(h.Status.AllocatedVCPUs)
	freeMemMiB := float64(h.Spec.CapacityMemMiB)*(1-HeadroomFraction) - float64(h.Status.AllocatedMemMiB)
	return freeVCPUs >= float64(vm.Spec.VCPUs) && freeMemMiB >= float64(vm.Spec.MemoryMiB)
}

// rankScore is (free_vcpu_ratio + free_mem_ratio) / 2, computed against raw
// capacity (not headroom-adjusted) so ranking reflects true host pressure.
func rankScore(h *v1alpha1.Host) float64 {
	if h.Spec.CapacityVCPUs == 0 || h.Spec.CapacityMemMiB == 0 {
		return 0
	}
	vcpuRatio := 1 - float64(h.Status.AllocatedVCPUs)/float64(h.Spec.CapacityVCPUs)
	memRatio := 1 - float64(h.Status.AllocatedMemMiB)/float64(h.Spec.CapacityMemMiB)
	return (vcpuRatio + memRatio) / 2
}

func hasAntiAffinityCollision(tag string, active []*v1alpha1.VirtualMachine) bool {
	for _, other := range active {
		if other.Spec.AntiAffinityTag == tag {
			return true
		}
	}
	return false
}
