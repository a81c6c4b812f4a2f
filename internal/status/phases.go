package status

import (
	"fmt"

	"github.com/coreforge/vmcp/api/v1alpha1"
)

// TransitionToStarting transitions the VM phase to Starting. Valid from
// Creating (initial boot) or Stopped (user-requested power-on).
func TransitionToStarting(vm *v1alpha1.VirtualMachine) error {
	phase := vm.GetPhase()
	if phase != v1alpha1.VMPhaseCreating && phase != v1alpha1.VMPhaseStopped {
		return fmt.Errorf("cannot transition to Starting from phase %s", phase)
	}
	vm.SetPhase(v1alpha1.VMPhaseStarting)
	SetCondition(vm, v1alpha1.ConditionReady, v1alpha1.ConditionFalse, "Starting", "VM start in progress")
	return nil
}

// TransitionToRunning transitions the VM phase to Running. Valid from
// Starting (boot completed), Resizing (offline resize completed and VM
// restarted), or Migrating (switchover completed on the destination).
func TransitionToRunning(vm *v1alpha1.VirtualMachine) error {
	phase := vm.GetPhase()
	if phase != v1alpha1.VMPhaseStarting && phase != v1alpha1.VMPhaseResizing && phase != v1alpha1.VMPhaseMigrating {
		return fmt.Errorf("cannot transition to Running from phase %s", phase)
	}
	vm.SetPhase(v1alpha1.VMPhaseRunning)
	SetCondition(vm, v1alpha1.ConditionReady, v1alpha1.ConditionTrue, "VMReady", "VM is running and accessible")
	vm.UpdateObservedGeneration()
	return nil
}

// TransitionToStopping transitions the VM phase to Stopping. Valid only
// from Running.
func TransitionToStopping(vm *v1alpha1.VirtualMachine) error {
	if vm.GetPhase() != v1alpha1.VMPhaseRunning {
		return fmt.Errorf("cannot transition to Stopping from phase %s", vm.GetPhase())
	}
	vm.SetPhase(v1alpha1.VMPhaseStopping)
	SetCondition(vm, v1alpha1.ConditionReady, v1alpha1.ConditionFalse, "Stopping", "VM shutdown in progress")
	return nil
}

// TransitionToStopped transitions the VM phase to Stopped. Valid from
// Stopping (graceful shutdown) or Running (e.g. a forced stop).
func TransitionToStopped(vm *v1alpha1.VirtualMachine) error {
	phase := vm.GetPhase()
	if phase != v1alpha1.VMPhaseStopping && phase != v1alpha1.VMPhaseRunning {
		return fmt.Errorf("cannot transition to Stopped from phase %s", phase)
	}
	vm.SetPhase(v1alpha1.VMPhaseStopped)
	SetCondition(vm, v1alpha1.ConditionReady, v1alpha1.ConditionFalse, "Stopped", "VM has been stopped")
	return nil
}

// TransitionToResizing transitions the VM phase to Resizing. Only valid
// from Stopped: resize is offline-only (stop, edit domain XML, start), per
// the Open Question decision recorded in DESIGN.md — a resize request
// against a Running VM must stop it first rather than resizing in place.
func TransitionToResizing(vm *v1alpha1.VirtualMachine) error {
	if vm.GetPhase() != v1alpha1.VMPhaseStopped {
		return fmt.Errorf("cannot transition to Resizing from phase %s: stop the VM first", vm.GetPhase())
	}
	vm.SetPhase(v1alpha1.VMPhaseResizing)
	return nil
}

// TransitionToMigrating transitions the VM phase to Migrating. Valid only
// from Running.
func TransitionToMigrating(vm *v1alpha1.VirtualMachine) error {
	if vm.GetPhase() != v1alpha1.VMPhaseRunning {
		return fmt.Errorf("cannot transition to Migrating from phase %s", vm.GetPhase())
	}
	vm.SetPhase(v1alpha1.VMPhaseMigrating)
	return nil
}

// TransitionToTerminating transitions the VM phase to Terminating. Valid
// from any phase except Terminated itself, matching §4.5's "any →
// terminating" arrow.
func TransitionToTerminating(vm *v1alpha1.VirtualMachine) error {
	if vm.GetPhase() == v1alpha1.VMPhaseTerminated {
		return fmt.Errorf("VM is already terminated")
	}
	vm.SetPhase(v1alpha1.VMPhaseTerminating)
	SetCondition(vm, v1alpha1.ConditionReady, v1alpha1.ConditionFalse, "Terminating", "VM termination in progress")
	return nil
}

// TransitionToTerminated transitions the VM phase to Terminated. Valid
// only from Terminating.
func TransitionToTerminated(vm *v1alpha1.VirtualMachine) error {
	if vm.GetPhase() != v1alpha1.VMPhaseTerminating {
		return fmt.Errorf("cannot transition to Terminated from phase %s", vm.GetPhase())
	}
	vm.SetPhase(v1alpha1.VMPhaseTerminated)
	return nil
}

// IsTerminal returns true if the phase is terminal: the VM will not
// transition further without external action (Stopped awaits a start
// request; Error awaits an explicit retry; Terminated never transitions).
func IsTerminal(phase v1alpha1.VMPhase) bool {
	return phase == v1alpha1.VMPhaseStopped || phase == v1alpha1.VMPhaseError || phase == v1alpha1.VMPhaseTerminated
}

// IsRunning returns true if the VM is in the Running phase.
func IsRunning(phase v1alpha1.VMPhase) bool {
	return phase == v1alpha1.VMPhaseRunning
}

// IsTransitioning returns true if the VM is mid-transition: the
// Reconciler owns the next step and no concurrent user-initiated
// transition should be accepted.
func IsTransitioning(phase v1alpha1.VMPhase) bool {
	switch phase {
	case v1alpha1.VMPhaseCreating, v1alpha1.VMPhaseStarting, v1alpha1.VMPhaseStopping,
		v1alpha1.VMPhaseResizing, v1alpha1.VMPhaseMigrating, v1alpha1.VMPhaseTerminating:
		return true
	default:
		return false
	}
}
