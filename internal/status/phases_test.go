package status

import (
	"testing"

	"github.com/coreforge/vmcp/api/v1alpha1"
)

func TestTransitionToStarting(t *testing.T) {
	tests := []struct {
		name      string
		phase     v1alpha1.VMPhase
		wantError bool
	}{
		{
			name:      "valid transition from Creating",
			phase:     v1alpha1.VMPhaseCreating,
			wantError: false,
		},
		{
			name:      "valid transition from Stopped",
			phase:     v1alpha1.VMPhaseStopped,
			wantError: false,
		},
		{
			name:      "invalid transition from Running",
			phase:     v1alpha1.VMPhaseRunning,
			wantError: true,
		},
		{
			name:      "invalid transition from Error",
			phase:     v1alpha1.VMPhaseError,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := v1alpha1.NewVirtualMachine("test-vm")
			vm.SetPhase(tt.phase)

			err := TransitionToStarting(vm)

			if tt.wantError {
				if err == nil {
					t.Error("Expected error but got nil")
				}
				if vm.GetPhase() != tt.phase {
					t.Errorf("Phase should not change on error, got %s", vm.GetPhase())
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				if vm.GetPhase() != v1alpha1.VMPhaseStarting {
					t.Errorf("Expected phase Starting, got %s", vm.GetPhase())
				}
				if !IsConditionFalse(vm, v1alpha1.ConditionReady) {
					t.Error("Expected Ready condition to be False while starting")
				}
				cond := GetCondition(vm, v1alpha1.ConditionReady)
				if cond.Reason != "Starting" {
					t.Errorf("Expected reason 'Starting', got %s", cond.Reason)
				}
			}
		})
	}
}

func TestTransitionToRunning(t *testing.T) {
	tests := []struct {
		name      string
		phase     v1alpha1.VMPhase
		wantError bool
	}{
		{
			name:      "valid transition from Starting",
			phase:     v1alpha1.VMPhaseStarting,
			wantError: false,
		},
		{
			name:      "valid transition from Resizing",
			phase:     v1alpha1.VMPhaseResizing,
			wantError: false,
		},
		{
			name:      "valid transition from Migrating",
			phase:     v1alpha1.VMPhaseMigrating,
			wantError: false,
		},
		{
			name:      "invalid transition from Creating",
			phase:     v1alpha1.VMPhaseCreating,
			wantError: true,
		},
		{
			name:      "invalid transition from Error",
			phase:     v1alpha1.VMPhaseError,
			wantError: true,
		},
		{
			name:      "invalid transition from Stopping",
			phase:     v1alpha1.VMPhaseStopping,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := v1alpha1.NewVirtualMachine("test-vm")
			vm.SetPhase(tt.phase)
			vm.Generation = 5

			err := TransitionToRunning(vm)

			if tt.wantError {
				if err == nil {
					t.Error("Expected error but got nil")
				}
				if vm.GetPhase() != tt.phase {
					t.Errorf("Phase should not change on error, got %s", vm.GetPhase())
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				if vm.GetPhase() != v1alpha1.VMPhaseRunning {
					t.Errorf("Expected phase Running, got %s", vm.GetPhase())
				}
				if !IsConditionTrue(vm, v1alpha1.ConditionReady) {
					t.Error("Expected Ready condition to be True")
				}
				if vm.Status.ObservedGeneration != 5 {
					t.Errorf("Expected ObservedGeneration 5, got %d", vm.Status.ObservedGeneration)
				}
			}
		})
	}
}

func TestTransitionToStopping(t *testing.T) {
	tests := []struct {
		name      string
		phase     v1alpha1.VMPhase
		wantError bool
	}{
		{
			name:      "valid transition from Running",
			phase:     v1alpha1.VMPhaseRunning,
			wantError: false,
		},
		{
			name:      "invalid transition from Creating",
			phase:     v1alpha1.VMPhaseCreating,
			wantError: true,
		},
		{
			name:      "invalid transition from Starting",
			phase:     v1alpha1.VMPhaseStarting,
			wantError: true,
		},
		{
			name:      "invalid transition from Stopped",
			phase:     v1alpha1.VMPhaseStopped,
			wantError: true,
		},
		{
			name:      "invalid transition from Error",
			phase:     v1alpha1.VMPhaseError,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := v1alpha1.NewVirtualMachine("test-vm")
			vm.SetPhase(tt.phase)

			err := TransitionToStopping(vm)

			if tt.wantError {
				if err == nil {
					t.Error("Expected error but got nil")
				}
				if vm.GetPhase() != tt.phase {
					t.Errorf("Phase should not change on error, got %s", vm.GetPhase())
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				if vm.GetPhase() != v1alpha1.VMPhaseStopping {
					t.Errorf("Expected phase Stopping, got %s", vm.GetPhase())
				}
				if !IsConditionFalse(vm, v1alpha1.ConditionReady) {
					t.Error("Expected Ready condition to be False during shutdown")
				}
				cond := GetCondition(vm, v1alpha1.ConditionReady)
				if cond.Reason != "Stopping" {
					t.Errorf("Expected reason 'Stopping', got %s", cond.Reason)
				}
			}
		})
	}
}

func TestTransitionToStopped(t *testing.T) {
	tests := []struct {
		name      string
		phase     v1alpha1.VMPhase
		wantError bool
	}{
		{
			name:      "valid transition from Stopping",
			phase:     v1alpha1.VMPhaseStopping,
			wantError: false,
		},
		{
			name:      "valid transition from Running (forced)",
			phase:     v1alpha1.VMPhaseRunning,
			wantError: false,
		},
		{
			name:      "invalid transition from Creating",
			phase:     v1alpha1.VMPhaseCreating,
			wantError: true,
		},
		{
			name:      "invalid transition from Starting",
			phase:     v1alpha1.VMPhaseStarting,
			wantError: true,
		},
		{
			name:      "invalid transition from Error",
			phase:     v1alpha1.VMPhaseError,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := v1alpha1.NewVirtualMachine("test-vm")
			vm.SetPhase(tt.phase)

			err := TransitionToStopped(vm)

			if tt.wantError {
				if err == nil {
					t.Error("Expected error but got nil")
				}
				if vm.GetPhase() != tt.phase {
					t.Errorf("Phase should not change on error, got %s", vm.GetPhase())
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				if vm.GetPhase() != v1alpha1.VMPhaseStopped {
					t.Errorf("Expected phase Stopped, got %s", vm.GetPhase())
				}
				if !IsConditionFalse(vm, v1alpha1.ConditionReady) {
					t.Error("Expected Ready condition to be False when stopped")
				}
				cond := GetCondition(vm, v1alpha1.ConditionReady)
				if cond.Reason != "Stopped" {
					t.Errorf("Expected reason 'Stopped', got %s", cond.Reason)
				}
			}
		})
	}
}

func TestTransitionToResizing(t *testing.T) {
	tests := []struct {
		name      string
		phase     v1alpha1.VMPhase
		wantError bool
	}{
		{
			name:      "valid transition from Stopped",
			phase:     v1alpha1.VMPhaseStopped,
			wantError: false,
		},
		{
			name:      "invalid transition from Running: resize is offline-only",
			phase:     v1alpha1.VMPhaseRunning,
			wantError: true,
		},
		{
			name:      "invalid transition from Creating",
			phase:     v1alpha1.VMPhaseCreating,
			wantError: true,
		},
		{
			name:      "invalid transition from Error",
			phase:     v1alpha1.VMPhaseError,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := v1alpha1.NewVirtualMachine("test-vm")
			vm.SetPhase(tt.phase)

			err := TransitionToResizing(vm)

			if tt.wantError {
				if err == nil {
					t.Error("Expected error but got nil")
				}
				if vm.GetPhase() != tt.phase {
					t.Errorf("Phase should not change on error, got %s", vm.GetPhase())
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				if vm.GetPhase() != v1alpha1.VMPhaseResizing {
					t.Errorf("Expected phase Resizing, got %s", vm.GetPhase())
				}
			}
		})
	}
}

func TestTransitionToMigrating(t *testing.T) {
	tests := []struct {
		name      string
		phase     v1alpha1.VMPhase
		wantError bool
	}{
		{
			name:      "valid transition from Running",
			phase:     v1alpha1.VMPhaseRunning,
			wantError: false,
		},
		{
			name:      "invalid transition from Stopped",
			phase:     v1alpha1.VMPhaseStopped,
			wantError: true,
		},
		{
			name:      "invalid transition from Resizing",
			phase:     v1alpha1.VMPhaseResizing,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := v1alpha1.NewVirtualMachine("test-vm")
			vm.SetPhase(tt.phase)

			err := TransitionToMigrating(vm)

			if tt.wantError {
				if err == nil {
					t.Error("Expected error but got nil")
				}
				if vm.GetPhase() != tt.phase {
					t.Errorf("Phase should not change on error, got %s", vm.GetPhase())
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				if vm.GetPhase() != v1alpha1.VMPhaseMigrating {
					t.Errorf("Expected phase Migrating, got %s", vm.GetPhase())
				}
			}
		})
	}
}

func TestTransitionToTerminating(t *testing.T) {
	tests := []struct {
		name      string
		phase     v1alpha1.VMPhase
		wantError bool
	}{
		{
			name:      "valid transition from Running",
			phase:     v1alpha1.VMPhaseRunning,
			wantError: false,
		},
		{
			name:      "valid transition from Stopped",
			phase:     v1alpha1.VMPhaseStopped,
			wantError: false,
		},
		{
			name:      "valid transition from Error",
			phase:     v1alpha1.VMPhaseError,
			wantError: false,
		},
		{
			name:      "valid transition from Creating",
			phase:     v1alpha1.VMPhaseCreating,
			wantError: false,
		},
		{
			name:      "invalid transition from Terminated",
			phase:     v1alpha1.VMPhaseTerminated,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := v1alpha1.NewVirtualMachine("test-vm")
			vm.SetPhase(tt.phase)

			err := TransitionToTerminating(vm)

			if tt.wantError {
				if err == nil {
					t.Error("Expected error but got nil")
				}
				if vm.GetPhase() != tt.phase {
					t.Errorf("Phase should not change on error, got %s", vm.GetPhase())
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				if vm.GetPhase() != v1alpha1.VMPhaseTerminating {
					t.Errorf("Expected phase Terminating, got %s", vm.GetPhase())
				}
				if !IsConditionFalse(vm, v1alpha1.ConditionReady) {
					t.Error("Expected Ready condition to be False during termination")
				}
			}
		})
	}
}

func TestTransitionToTerminated(t *testing.T) {
	tests := []struct {
		name      string
		phase     v1alpha1.VMPhase
		wantError bool
	}{
		{
			name:      "valid transition from Terminating",
			phase:     v1alpha1.VMPhaseTerminating,
			wantError: false,
		},
		{
			name:      "invalid transition from Running",
			phase:     v1alpha1.VMPhaseRunning,
			wantError: true,
		},
		{
			name:      "invalid transition from Stopped",
			phase:     v1alpha1.VMPhaseStopped,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := v1alpha1.NewVirtualMachine("test-vm")
			vm.SetPhase(tt.phase)

			err := TransitionToTerminated(vm)

			if tt.wantError {
				if err == nil {
					t.Error("Expected error but got nil")
				}
				if vm.GetPhase() != tt.phase {
					t.Errorf("Phase should not change on error, got %s", vm.GetPhase())
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				if vm.GetPhase() != v1alpha1.VMPhaseTerminated {
					t.Errorf("Expected phase Terminated, got %s", vm.GetPhase())
				}
			}
		})
	}
}

func TestMarkFailedThenTerminate(t *testing.T) {
	// A VM stuck in Error can still be torn down.
	vm := v1alpha1.NewVirtualMachine("test-vm")
	vm.SetPhase(v1alpha1.VMPhaseRunning)

	MarkFailed(vm, "boot", "DriverTimeout", "libvirt did not respond")
	if vm.GetPhase() != v1alpha1.VMPhaseError {
		t.Fatalf("Expected phase Error, got %s", vm.GetPhase())
	}

	if err := TransitionToTerminating(vm); err != nil {
		t.Fatalf("Expected Error -> Terminating to succeed: %v", err)
	}
	if err := TransitionToTerminated(vm); err != nil {
		t.Fatalf("Expected Terminating -> Terminated to succeed: %v", err)
	}
}

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		phase    v1alpha1.VMPhase
		expected bool
	}{
		{v1alpha1.VMPhaseCreating, false},
		{v1alpha1.VMPhaseStarting, false},
		{v1alpha1.VMPhaseRunning, false},
		{v1alpha1.VMPhaseStopping, false},
		{v1alpha1.VMPhaseStopped, true},
		{v1alpha1.VMPhaseResizing, false},
		{v1alpha1.VMPhaseMigrating, false},
		{v1alpha1.VMPhaseTerminating, false},
		{v1alpha1.VMPhaseTerminated, true},
		{v1alpha1.VMPhaseError, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.phase), func(t *testing.T) {
			if got := IsTerminal(tt.phase); got != tt.expected {
				t.Errorf("IsTerminal(%s) = %v, want %v", tt.phase, got, tt.expected)
			}
		})
	}
}

func TestIsRunning(t *testing.T) {
	tests := []struct {
		phase    v1alpha1.VMPhase
		expected bool
	}{
		{v1alpha1.VMPhaseCreating, false},
		{v1alpha1.VMPhaseStarting, false},
		{v1alpha1.VMPhaseRunning, true},
		{v1alpha1.VMPhaseStopping, false},
		{v1alpha1.VMPhaseStopped, false},
		{v1alpha1.VMPhaseResizing, false},
		{v1alpha1.VMPhaseMigrating, false},
		{v1alpha1.VMPhaseError, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.phase), func(t *testing.T) {
			if got := IsRunning(tt.phase); got != tt.expected {
				t.Errorf("IsRunning(%s) = %v, want %v", tt.phase, got, tt.expected)
			}
		})
	}
}

func TestIsTransitioning(t *testing.T) {
	tests := []struct {
		phase    v1alpha1.VMPhase
		expected bool
	}{
		{v1alpha1.VMPhaseCreating, true},
		{v1alpha1.VMPhaseStarting, true},
		{v1alpha1.VMPhaseRunning, false},
		{v1alpha1.VMPhaseStopping, true},
		{v1alpha1.VMPhaseStopped, false},
		{v1alpha1.VMPhaseResizing, true},
		{v1alpha1.VMPhaseMigrating, true},
		{v1alpha1.VMPhaseTerminating, true},
		{v1alpha1.VMPhaseTerminated, false},
		{v1alpha1.VMPhaseError, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.phase), func(t *testing.T) {
			if got := IsTransitioning(tt.phase); got != tt.expected {
				t.Errorf("IsTransitioning(%s) = %v, want %v", tt.phase, got, tt.expected)
			}
		})
	}
}

func TestPhaseTransitionFlow(t *testing.T) {
	// Full lifecycle: Creating -> Starting -> Running -> Stopping -> Stopped
	// -> Starting -> Running -> Terminating -> Terminated.
	vm := v1alpha1.NewVirtualMachine("test-vm")

	if vm.GetPhase() != v1alpha1.VMPhaseCreating {
		t.Fatalf("Expected initial phase Creating, got %s", vm.GetPhase())
	}

	if err := TransitionToStarting(vm); err != nil {
		t.Fatalf("Failed to transition to Starting: %v", err)
	}
	if err := TransitionToRunning(vm); err != nil {
		t.Fatalf("Failed to transition to Running: %v", err)
	}
	if err := TransitionToStopping(vm); err != nil {
		t.Fatalf("Failed to transition to Stopping: %v", err)
	}
	if err := TransitionToStopped(vm); err != nil {
		t.Fatalf("Failed to transition to Stopped: %v", err)
	}
	if err := TransitionToStarting(vm); err != nil {
		t.Fatalf("Failed to transition to Starting again: %v", err)
	}
	if err := TransitionToRunning(vm); err != nil {
		t.Fatalf("Failed to transition to Running again: %v", err)
	}
	if err := TransitionToTerminating(vm); err != nil {
		t.Fatalf("Failed to transition to Terminating: %v", err)
	}
	if err := TransitionToTerminated(vm); err != nil {
		t.Fatalf("Failed to transition to Terminated: %v", err)
	}

	if vm.GetPhase() != v1alpha1.VMPhaseTerminated {
		t.Errorf("Expected final phase Terminated, got %s", vm.GetPhase())
	}
}

func TestResizeRequiresStoppedFirst(t *testing.T) {
	// A resize request against a Running VM must be rejected until the
	// caller stops it, per the offline-only resize decision.
	vm := v1alpha1.NewVirtualMachine("test-vm")
	vm.SetPhase(v1alpha1.VMPhaseRunning)

	if err := TransitionToResizing(vm); err == nil {
		t.Fatal("Expected resize from Running to be rejected")
	}

	if err := TransitionToStopping(vm); err != nil {
		t.Fatalf("Failed to transition to Stopping: %v", err)
	}
	if err := TransitionToStopped(vm); err != nil {
		t.Fatalf("Failed to transition to Stopped: %v", err)
	}
	if err := TransitionToResizing(vm); err != nil {
		t.Fatalf("Expected resize from Stopped to succeed: %v", err)
	}
	if err := TransitionToRunning(vm); err != nil {
		t.Fatalf("Failed to transition Resizing -> Running: %v", err)
	}
}
