package scheduler

import (
	"testing"

	"github.com/coreforge/vmcp/api/v1alpha1"
)

func readyHost(name string, vcpus int, memMiB int64, allocVCPUs int, allocMemMiB int64) *v1alpha1.Host {
	return &v1alpha1.Host{
		ObjectMeta: v1alpha1.ObjectMeta{Name: name},
		Spec: v1alpha1.HostSpec{
			Arch:           v1alpha1.ArchX86_64,
			CapacityVCPUs:  vcpus,
			CapacityMemMiB: memMiB,
		},
		Status: v1alpha1.HostStatus{
			Health:          v1alpha1.HostHealthReady,
			AllocatedVCPUs:  allocVCPUs,
			AllocatedMemMiB: allocMemMiB,
		},
	}
}

func testVM(vcpus, memMiB int, antiAffinity string) *v1alpha1.VirtualMachine {
	return &v1alpha1.VirtualMachine{
		Spec: v1alpha1.VirtualMachineSpec{
			Arch:            v1alpha1.ArchX86_64,
			VCPUs:           vcpus,
			MemoryMiB:       memMiB,
			AntiAffinityTag: antiAffinity,
		},
	}
}

func TestSchedule_PicksHighestFreeRatio(t *testing.T) {
	vm := testVM(2, 2048, "")
	candidates := []Candidate{
		{Host: readyHost("h1", 16, 16384, 8, 8192)},  // 50% free both
		{Host: readyHost("h2", 16, 16384, 2, 2048)},  // ~87.5% free
	}

	got, err := Schedule(vm, candidates, nil)
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	if got != "h2" {
		t.Errorf("Schedule() = %q, want %q", got, "h2")
	}
}

func TestSchedule_TieBrokenByFewestActiveVMs(t *testing.T) {
	vm := testVM(1, 1024, "")
	candidates := []Candidate{
		{Host: readyHost("h1", 16, 16384, 4, 4096), ActiveVMs: []*v1alpha1.VirtualMachine{{}, {}}},
		{Host: readyHost("h2", 16, 16384, 4, 4096), ActiveVMs: []*v1alpha1.VirtualMachine{{}}},
	}

	got, err := Schedule(vm, candidates, nil)
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	if got != "h2" {
		t.Errorf("Schedule() = %q, want %q (fewer active VMs)", got, "h2")
	}
}

func TestSchedule_TieBrokenByHostIDLex(t *testing.T) {
	vm := testVM(1, 1024, "")
	candidates := []Candidate{
		{Host: readyHost("zzz", 16, 16384, 4, 4096)},
		{Host: readyHost("aaa", 16, 16384, 4, 4096)},
	}

	got, err := Schedule(vm, candidates, nil)
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	if got != "aaa" {
		t.Errorf("Schedule() = %q, want %q", got, "aaa")
	}
}

func TestSchedule_FiltersUnhealthyHosts(t *testing.T) {
	vm := testVM(1, 1024, "")
	unhealthy := readyHost("h1", 16, 16384, 0, 0)
	unhealthy.Status.Health = v1alpha1.HostHealthUnreachable
	candidates := []Candidate{{Host: unhealthy}}

	_, err := Schedule(vm, candidates, nil)
	if err == nil {
		t.Fatal("expected unschedulable error, got nil")
	}
}

func TestSchedule_FiltersArchMismatch(t *testing.T) {
	vm := testVM(1, 1024, "")
	host := readyHost("h1", 16, 16384, 0, 0)
	host.Spec.Arch = v1alpha1.ArchAArch64
	candidates := []Candidate{{Host: host}}

	_, err := Schedule(vm, candidates, nil)
	if err == nil {
		t.Fatal("expected unschedulable error for arch mismatch, got nil")
	}
}

func TestSchedule_FiltersInsufficientCapacityAfterHeadroom(t *testing.T) {
	// 10 vcpus * 90% headroom-adjusted = 9 usable; 8 already allocated
	// leaves 1 free, not enough for a 2-vcpu request.
	vm := testVM(2, 1024, "")
	host := readyHost("h1", 10, 16384, 8, 0)
	candidates := []Candidate{{Host: host}}

	_, err := Schedule(vm, candidates, nil)
	if err == nil {
		t.Fatal("expected unschedulable error for insufficient headroom-adjusted capacity, got nil")
	}
}

func TestSchedule_AdmitsImageAbsentOnHost(t *testing.T) {
	// A freshly seeded image has no HostPaths entry for any host yet;
	// ensure_image fetches it at reconcile time, so the scheduler must not
	// treat a cold HostPaths map as disqualifying.
	vm := testVM(1, 1024, "")
	host := readyHost("h1", 16, 16384, 0, 0)
	image := &v1alpha1.Image{
		Spec:   v1alpha1.ImageSpec{Arch: v1alpha1.ArchX86_64},
		Status: v1alpha1.ImageStatus{HostPaths: map[string]string{"h2": "/var/lib/images/foo.qcow2"}},
	}
	candidates := []Candidate{{Host: host}}

	got, err := Schedule(vm, candidates, image)
	if err != nil {
		t.Fatalf("Schedule() error = %v, want host h1 admitted despite cold HostPaths", err)
	}
	if got != "h1" {
		t.Errorf("Schedule() = %q, want %q", got, "h1")
	}
}

func TestSchedule_FiltersImageArchMismatch(t *testing.T) {
	vm := testVM(1, 1024, "")
	host := readyHost("h1", 16, 16384, 0, 0)
	image := &v1alpha1.Image{Spec: v1alpha1.ImageSpec{Arch: v1alpha1.ArchAArch64}}
	candidates := []Candidate{{Host: host}}

	_, err := Schedule(vm, candidates, image)
	if err == nil {
		t.Fatal("expected unschedulable error for image/host arch mismatch, got nil")
	}
}

func TestSchedule_AntiAffinityAvoidsCollision(t *testing.T) {
	vm := testVM(1, 1024, "team-a")
	collidingHost := readyHost("h1", 16, 16384, 0, 0)
	freeHost := readyHost("h2", 16, 16384, 0, 0)
	candidates := []Candidate{
		{Host: collidingHost, ActiveVMs: []*v1alpha1.VirtualMachine{
			{Spec: v1alpha1.VirtualMachineSpec{AntiAffinityTag: "team-a"}},
		}},
		{Host: freeHost},
	}

	got, err := Schedule(vm, candidates, nil)
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	if got != "h2" {
		t.Errorf("Schedule() = %q, want %q", got, "h2")
	}
}

func TestSchedule_AntiAffinityFailsWhenNoHostAvailable(t *testing.T) {
	vm := testVM(1, 1024, "team-a")
	onlyHost := readyHost("h1", 16, 16384, 0, 0)
	candidates := []Candidate{
		{Host: onlyHost, ActiveVMs: []*v1alpha1.VirtualMachine{
			{Spec: v1alpha1.VirtualMachineSpec{AntiAffinityTag: "team-a"}},
		}},
	}

	_, err := Schedule(vm, candidates, nil)
	if err == nil {
		t.Fatal("expected insufficient_capacity error when anti-affinity cannot be satisfied, got nil")
	}
}

func TestSchedule_NilVM(t *testing.T) {
	if _, err := Schedule(nil, nil, nil); err == nil {
		t.Fatal("expected validation error for nil vm, got nil")
	}
}
