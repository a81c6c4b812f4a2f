package hostregistry

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/coreforge/vmcp/api/v1alpha1"
	"github.com/coreforge/vmcp/internal/store"
	"github.com/coreforge/vmcp/internal/vmcperrors"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "vmcp.db"))
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return New(st)
}

func testHost(name string) *v1alpha1.Host {
	return &v1alpha1.Host{
		ObjectMeta: v1alpha1.ObjectMeta{Name: name},
		Spec: v1alpha1.HostSpec{
			Address:   "10.0.0.5",
			Transport: "local",
			Arch:      "x86_64",
		},
	}
}

func TestRegisterThenGet(t *testing.T) {
	r := newTestRegistry(t)

	if err := r.Register(testHost("host-a")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	got, err := r.Get("host-a")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Spec.Address != "10.0.0.5" {
		t.Errorf("Address = %q, want 10.0.0.5", got.Spec.Address)
	}
}

func TestRegisterIsIdempotentReplace(t *testing.T) {
	r := newTestRegistry(t)

	h := testHost("host-a")
	if err := r.Register(h); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	h.Spec.Address = "10.0.0.9"
	if err := r.Register(h); err != nil {
		t.Fatalf("second Register() error = %v", err)
	}

	got, err := r.Get("host-a")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Spec.Address != "10.0.0.9" {
		t.Errorf("Address = %q, want 10.0.0.9 after replace", got.Spec.Address)
	}
}

func TestDeregisterRemovesHost(t *testing.T) {
	r := newTestRegistry(t)

	if err := r.Register(testHost("host-a")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Deregister("host-a"); err != nil {
		t.Fatalf("Deregister() error = %v", err)
	}

	_, err := r.Get("host-a")
	if vmcperrors.KindOf(err) != vmcperrors.KindNotFound {
		t.Errorf("kind after deregister = %v, want not_found", vmcperrors.KindOf(err))
	}
}

func TestListReturnsAllHosts(t *testing.T) {
	r := newTestRegistry(t)

	if err := r.Register(testHost("host-a")); err != nil {
		t.Fatalf("Register(a) error = %v", err)
	}
	if err := r.Register(testHost("host-b")); err != nil {
		t.Fatalf("Register(b) error = %v", err)
	}

	hosts, err := r.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(hosts) != 2 {
		t.Errorf("len(hosts) = %d, want 2", len(hosts))
	}
}

func TestHeartbeatUpdatesHealthAndTimestamp(t *testing.T) {
	r := newTestRegistry(t)

	if err := r.Register(testHost("host-a")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Heartbeat("host-a", v1alpha1.HostHealthReady); err != nil {
		t.Fatalf("Heartbeat() error = %v", err)
	}

	got, err := r.Get("host-a")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status.Health != v1alpha1.HostHealthReady {
		t.Errorf("Health = %v, want ready", got.Status.Health)
	}
	if got.Status.LastHeartbeat.IsZero() {
		t.Error("LastHeartbeat is zero after Heartbeat()")
	}
}

func TestGetDowngradesStaleHeartbeatToUnreachable(t *testing.T) {
	r := newTestRegistry(t)

	h := testHost("host-a")
	h.Status.Health = v1alpha1.HostHealthReady
	h.Status.LastHeartbeat = v1alpha1.Time{Time: time.Now().Add(-2 * HeartbeatTTL)}
	if err := r.Register(h); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	got, err := r.Get("host-a")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status.Health != v1alpha1.HostHealthUnreachable {
		t.Errorf("Health = %v, want unreachable after stale heartbeat", got.Status.Health)
	}
}

func TestGetMissingHostIsNotFound(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Get("missing")
	if vmcperrors.KindOf(err) != vmcperrors.KindNotFound {
		t.Errorf("kind = %v, want not_found", vmcperrors.KindOf(err))
	}
}

func TestUpdateAllocationAccumulates(t *testing.T) {
	r := newTestRegistry(t)

	if err := r.Register(testHost("host-a")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.UpdateAllocation("host-a", 2, 2048, 1); err != nil {
		t.Fatalf("UpdateAllocation() error = %v", err)
	}
	if err := r.UpdateAllocation("host-a", 1, 1024, 1); err != nil {
		t.Fatalf("second UpdateAllocation() error = %v", err)
	}

	got, err := r.Get("host-a")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status.AllocatedVCPUs != 3 {
		t.Errorf("AllocatedVCPUs = %d, want 3", got.Status.AllocatedVCPUs)
	}
	if got.Status.AllocatedMemMiB != 3072 {
		t.Errorf("AllocatedMemMiB = %d, want 3072", got.Status.AllocatedMemMiB)
	}
	if got.Status.ActiveVMCount != 2 {
		t.Errorf("ActiveVMCount = %d, want 2", got.Status.ActiveVMCount)
	}
}

func TestUpdateAllocationReleasesBelowZeroGuardedByCaller(t *testing.T) {
	r := newTestRegistry(t)

	if err := r.Register(testHost("host-a")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.UpdateAllocation("host-a", 2, 2048, 1); err != nil {
		t.Fatalf("UpdateAllocation() error = %v", err)
	}
	if err := r.UpdateAllocation("host-a", -2, -2048, -1); err != nil {
		t.Fatalf("release UpdateAllocation() error = %v", err)
	}

	got, err := r.Get("host-a")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status.AllocatedVCPUs != 0 || got.Status.AllocatedMemMiB != 0 || got.Status.ActiveVMCount != 0 {
		t.Errorf("allocation not fully released: %+v", got.Status)
	}
}

func TestUpdateAllocationMissingHostIsNotFound(t *testing.T) {
	r := newTestRegistry(t)

	if err := r.UpdateAllocation("missing", 1, 1, 1); vmcperrors.KindOf(err) != vmcperrors.KindNotFound {
		t.Errorf("kind = %v, want not_found", vmcperrors.KindOf(err))
	}
}
