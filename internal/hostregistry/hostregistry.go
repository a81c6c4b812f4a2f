// Package hostregistry maintains the inventory of hypervisor hosts: a thin
// wrapper over internal/store for Host entities, plus heartbeat tracking,
// shaped after internal/storage.Manager's "thin wrapper over one
// underlying client" style from the teacher repo.
package hostregistry

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/coreforge/vmcp/api/v1alpha1"
	"github.com/coreforge/vmcp/internal/store"
	"github.com/coreforge/vmcp/internal/vmcperrors"
)

// HeartbeatTTL is how stale a Host's last heartbeat may be before Health is
// downgraded to HostHealthUnreachable by List/Get callers.
const HeartbeatTTL = 30 * time.Second

// Registry is a thin wrapper over the Store scoped to the /host/ namespace.
type Registry struct {
	st *store.Store
}

// New returns a Registry backed by st.
func New(st *store.Store) *Registry {
	return &Registry{st: st}
}

func hostKey(id string) string { return fmt.Sprintf("/host/%s", id) }

// Register creates or replaces a Host row.
func (r *Registry) Register(host *v1alpha1.Host) error {
	payload, err := json.Marshal(host)
	if err != nil {
		return vmcperrors.Wrap(vmcperrors.KindInternal, err, "marshal host %s", host.Name)
	}

	existing, err := r.st.Get(hostKey(host.Name))
	switch {
	case vmcperrors.Is(err, vmcperrors.KindNotFound):
		_, err = r.st.Put(hostKey(host.Name), payload, 0)
	case err == nil:
		_, err = r.st.Put(hostKey(host.Name), payload, existing.Rev)
	}
	return err
}

// Deregister removes a Host row.
func (r *Registry) Deregister(id string) error {
	rec, err := r.st.Get(hostKey(id))
	if err != nil {
		return err
	}
	return r.st.Delete(hostKey(id), rec.Rev)
}

// Get fetches one Host, applying heartbeat-staleness downgrade.
func (r *Registry) Get(id string) (*v1alpha1.Host, error) {
	rec, err := r.st.Get(hostKey(id))
	if err != nil {
		return nil, err
	}
	var h v1alpha1.Host
	if err := json.Unmarshal(rec.Value, &h); err != nil {
		return nil, vmcperrors.Wrap(vmcperrors.KindInternal, err, "unmarshal host %s", id)
	}
	applyHeartbeatStaleness(&h)
	return &h, nil
}

// List returns every registered Host.
func (r *Registry) List() ([]*v1alpha1.Host, error) {
	recs, err := r.st.List("/host/")
	if err != nil {
		return nil, err
	}
	out := make([]*v1alpha1.Host, 0, len(recs))
	for _, rec := range recs {
		var h v1alpha1.Host
		if err := json.Unmarshal(rec.Value, &h); err != nil {
			return nil, vmcperrors.Wrap(vmcperrors.KindInternal, err, "unmarshal host")
		}
		applyHeartbeatStaleness(&h)
		out = append(out, &h)
	}
	return out, nil
}

// Heartbeat updates a host's last-heartbeat timestamp and health.
func (r *Registry) Heartbeat(id string, health v1alpha1.HostHealth) error {
	rec, err := r.st.Get(hostKey(id))
	if err != nil {
		return err
	}
	var h v1alpha1.Host
	if err := json.Unmarshal(rec.Value, &h); err != nil {
		return vmcperrors.Wrap(vmcperrors.KindInternal, err, "unmarshal host %s", id)
	}
	h.Status.Health = health
	h.Status.LastHeartbeat = v1alpha1.Time{Time: time.Now()}

	payload, err := json.Marshal(&h)
	if err != nil {
		return vmcperrors.Wrap(vmcperrors.KindInternal, err, "marshal host %s", id)
	}
	_, err = r.st.Put(hostKey(id), payload, rec.Rev)
	return err
}

// MaxAllocationRetries bounds the optimistic-concurrency retry loop in
// UpdateAllocation: several Reconciler workers can place VMs on the same
// host concurrently, each racing to update its allocation counters.
const MaxAllocationRetries = 5

// UpdateAllocation applies deltaVCPUs/deltaMemMiB/deltaActiveVMCount to a
// host's allocation counters (negative to release, positive to consume),
// retrying on revision conflict since concurrent Scheduler placements write
// the same row.
func (r *Registry) UpdateAllocation(id string, deltaVCPUs int, deltaMemMiB int64, deltaActiveVMCount int) error {
	for attempt := 0; attempt < MaxAllocationRetries; attempt++ {
		rec, err := r.st.Get(hostKey(id))
		if err != nil {
			return err
		}
		var h v1alpha1.Host
		if err := json.Unmarshal(rec.Value, &h); err != nil {
			return vmcperrors.Wrap(vmcperrors.KindInternal, err, "unmarshal host %s", id)
		}
		h.Status.AllocatedVCPUs += deltaVCPUs
		h.Status.AllocatedMemMiB += deltaMemMiB
		h.Status.ActiveVMCount += deltaActiveVMCount

		payload, err := json.Marshal(&h)
		if err != nil {
			return vmcperrors.Wrap(vmcperrors.KindInternal, err, "marshal host %s", id)
		}
		_, err = r.st.Put(hostKey(id), payload, rec.Rev)
		if err == nil {
			return nil
		}
		if !vmcperrors.Is(err, vmcperrors.KindConflict) {
			return err
		}
	}
	return vmcperrors.New(vmcperrors.KindConflict, fmt.Sprintf("UpdateAllocation(%s): too many concurrent writers", id))
}

func applyHeartbeatStaleness(h *v1alpha1.Host) {
	if h.Status.LastHeartbeat.IsZero() {
		return
	}
	if time.Since(h.Status.LastHeartbeat.Time) > HeartbeatTTL && h.Status.Health == v1alpha1.HostHealthReady {
		h.Status.Health = v1alpha1.HostHealthUnreachable
	}
}
