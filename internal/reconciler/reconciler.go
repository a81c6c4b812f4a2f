// Package reconciler drives each VirtualMachine's state machine one step
// at a time, per SPEC_FULL.md §4.5: an ordered plan of Driver verbs is
// computed from desired vs. observed state and executed with bounded
// per-step retry. Dispatch goes through internal/workqueue's Queue[T]/
// Future[T], adapted from the migration-agent pack's worker-pool shape to
// "drive one VM's state machine one step" instead of an arbitrary closure.
package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/coreforge/vmcp/api/v1alpha1"
	"github.com/coreforge/vmcp/internal/driver"
	"github.com/coreforge/vmcp/internal/entitystore"
	"github.com/coreforge/vmcp/internal/hostregistry"
	"github.com/coreforge/vmcp/internal/ipam"
	"github.com/coreforge/vmcp/internal/scheduler"
	"github.com/coreforge/vmcp/internal/status"
	"github.com/coreforge/vmcp/internal/vmcperrors"
	"github.com/coreforge/vmcp/internal/workqueue"
)

// Retry discipline per §4.5: each Driver verb is retried up to MaxAttempts
// times with exponential backoff between BaseInterval and MaxInterval.
const (
	BaseInterval = 500 * time.Millisecond
	MaxInterval  = 30 * time.Second
	MaxAttempts  = 8
)

// DefaultHostVerbConcurrency is the per-host semaphore size from §5 /
// HOST_VERB_CONCURRENCY (§6), bounding concurrent Driver verbs against one
// libvirtd.
const DefaultHostVerbConcurrency = 4

// DriverResolver returns the Capability that reaches host, selecting the
// local or ssh transport per host.Spec.Transport.
type DriverResolver func(host *v1alpha1.Host) (driver.Capability, error)

// Reconciler owns the VM state machine. One Reconciler instance serves the
// whole control plane; work for distinct VMs runs concurrently, work for
// the same VM is serialized by vmLocks (§5: "one owner per VM id").
type Reconciler struct {
	VMs     *entitystore.Store[v1alpha1.VirtualMachine]
	VPCs    *entitystore.Store[v1alpha1.VPC]
	Subnets *entitystore.Store[v1alpha1.Subnet]
	Images  *entitystore.Store[v1alpha1.Image]
	Disks   *entitystore.Store[v1alpha1.Disk]
	Hosts   *hostregistry.Registry

	VPCIPs    *ipam.Allocator
	PublicIPs *ipam.Allocator

	ResolveDriver DriverResolver

	queue *workqueue.Queue[struct{}]

	vmLocksMu sync.Mutex
	vmLocks   map[string]*sync.Mutex

	hostSemsMu          sync.Mutex
	hostSems            map[string]chan struct{}
	hostVerbConcurrency int

	Logger *zap.SugaredLogger
}

// New builds a Reconciler with nbWorkers concurrent VM tasks and the given
// per-host verb concurrency (0 uses DefaultHostVerbConcurrency).
func New(nbWorkers, hostVerbConcurrency int, resolver DriverResolver) *Reconciler {
	if hostVerbConcurrency <= 0 {
		hostVerbConcurrency = DefaultHostVerbConcurrency
	}
	return &Reconciler{
		ResolveDriver:       resolver,
		queue:               workqueue.New[struct{}](nbWorkers),
		vmLocks:             make(map[string]*sync.Mutex),
		hostSems:            make(map[string]chan struct{}),
		hostVerbConcurrency: hostVerbConcurrency,
		Logger:              zap.S().Named("reconciler"),
	}
}

// Close stops accepting new work and waits for in-flight tasks to drain.
func (r *Reconciler) Close() { r.queue.Close() }

// Enqueue submits one reconciliation step for vmName and returns a Future
// the caller may wait on or ignore (fire-and-forget, the common case for
// API-triggered reconciliation).
func (r *Reconciler) Enqueue(ctx context.Context, vmName string) *workqueue.Future[struct{}] {
	return r.queue.Submit(func(ctx context.Context) (struct{}, error) {
		err := r.reconcileOnce(ctx, vmName)
		if err != nil {
			r.Logger.Errorw("reconcile step failed", "vm", vmName, "error", err)
		}
		return struct{}{}, err
	})
}

func (r *Reconciler) vmLock(vmName string) *sync.Mutex {
	r.vmLocksMu.Lock()
	defer r.vmLocksMu.Unlock()
	l, ok := r.vmLocks[vmName]
	if !ok {
		l = &sync.Mutex{}
		r.vmLocks[vmName] = l
	}
	return l
}

func (r *Reconciler) hostSem(hostID string) chan struct{} {
	r.hostSemsMu.Lock()
	defer r.hostSemsMu.Unlock()
	sem, ok := r.hostSems[hostID]
	if !ok {
		sem = make(chan struct{}, r.hostVerbConcurrency)
		r.hostSems[hostID] = sem
	}
	return sem
}

// withHost runs fn holding one of hostID's verb-concurrency slots.
func (r *Reconciler) withHost(ctx context.Context, hostID string, fn func() error) error {
	sem := r.hostSem(hostID)
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-sem }()
	return fn()
}

// withRetry runs step up to MaxAttempts times with exponential backoff,
// stopping early on a non-retryable *vmcperrors.Error (§4.5: "terminal
// failed when the Driver returns a non-retryable error").
func (r *Reconciler) withRetry(ctx context.Context, stepName string, step func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = BaseInterval
	b.MaxInterval = MaxInterval

	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		lastErr = step()
		if lastErr == nil {
			return nil
		}
		if !vmcperrors.KindOf(lastErr).Retryable() {
			return lastErr
		}
		if attempt == MaxAttempts {
			break
		}
		wait := b.NextBackOff()
		r.Logger.Warnw("step failed, retrying", "step", stepName, "attempt", attempt, "wait", wait, "error", lastErr)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

// reconcileOnce loads vmName, computes and runs the next step of its state
// machine, and persists the result. Serialized per VM id.
func (r *Reconciler) reconcileOnce(ctx context.Context, vmName string) error {
	lock := r.vmLock(vmName)
	lock.Lock()
	defer lock.Unlock()

	vm, rev, err := r.VMs.Get(vmName)
	if err != nil {
		return err
	}

	switch vm.GetPhase() {
	case v1alpha1.VMPhaseCreating:
		err = r.stepCreate(ctx, vm)
	case v1alpha1.VMPhaseStarting:
		err = r.stepWaitRunning(ctx, vm)
	case v1alpha1.VMPhaseStopping:
		err = r.stepWaitStopped(ctx, vm)
	case v1alpha1.VMPhaseResizing:
		err = r.stepResize(ctx, vm)
	case v1alpha1.VMPhaseTerminating:
		err = r.stepTerminate(ctx, vm)
	case v1alpha1.VMPhaseRunning:
		err = r.stepReconcileRunning(ctx, vm)
	case v1alpha1.VMPhaseStopped:
		err = r.stepReconcileStopped(ctx, vm)
	default:
		return nil
	}

	if err != nil {
		if !vmcperrors.KindOf(err).Retryable() {
			status.MarkFailed(vm, string(vm.GetPhase()), string(vmcperrors.KindOf(err)), err.Error())
		}
	}

	if _, updateErr := r.VMs.Update(vm.Name, vm, rev); updateErr != nil {
		return updateErr
	}
	return err
}

// stepReconcileRunning reconciles a Running VM against desired power: a
// user-requested stop is the only transition out of steady-state Running.
func (r *Reconciler) stepReconcileRunning(ctx context.Context, vm *v1alpha1.VirtualMachine) error {
	if vm.Spec.DesiredPower == "off" {
		return status.TransitionToStopping(vm)
	}
	return nil
}

// stepReconcileStopped reconciles a Stopped VM against desired power.
func (r *Reconciler) stepReconcileStopped(ctx context.Context, vm *v1alpha1.VirtualMachine) error {
	if vm.Spec.DesiredPower == "on" {
		return status.TransitionToStarting(vm)
	}
	return nil
}

func (r *Reconciler) host(hostID string) (*v1alpha1.Host, error) {
	return r.Hosts.Get(hostID)
}

func (r *Reconciler) driverForHost(h *v1alpha1.Host) (driver.Capability, error) {
	return r.ResolveDriver(h)
}

// candidates builds the Scheduler's candidate list from every healthy Host
// and the VMs currently placed on each.
func (r *Reconciler) candidates(excludeVM string) ([]scheduler.Candidate, error) {
	hosts, err := r.Hosts.List()
	if err != nil {
		return nil, err
	}
	allVMs, err := r.VMs.List()
	if err != nil {
		return nil, err
	}

	byHost := make(map[string][]*v1alpha1.VirtualMachine, len(hosts))
	for _, other := range allVMs {
		if other.Name == excludeVM {
			continue
		}
		if other.Status.OwnerHostID == "" {
			continue
		}
		byHost[other.Status.OwnerHostID] = append(byHost[other.Status.OwnerHostID], other)
	}

	out := make([]scheduler.Candidate, 0, len(hosts))
	for _, h := range hosts {
		out = append(out, scheduler.Candidate{Host: h, ActiveVMs: byHost[h.Name]})
	}
	return out, nil
}
