package v1alpha1

import "testing"

func TestVirtualMachineDeepCopy(t *testing.T) {
	orig := &VirtualMachine{
		ObjectMeta: ObjectMeta{Name: "web-1"},
		Spec: VirtualMachineSpec{
			VPCID:          "vpc-1",
			VCPUs:          2,
			MemoryMiB:      2048,
			RootDiskSizeGB: 20,
			NICs: []VMNICSpec{
				{PrivateIP: "10.0.0.2", DNSServers: []string{"1.1.1.1"}},
			},
			CloudInit: &CloudInitSpec{
				Packages: []string{"nginx"},
			},
		},
		Status: VirtualMachineStatus{
			Phase: VMPhaseRunning,
			NICs:  []VMNICStatus{{PrivateIP: "10.0.0.2", MACAddress: "be:ef:0a:00:00:02"}},
		},
	}

	cp := orig.DeepCopy()

	cp.Spec.NICs[0].DNSServers[0] = "8.8.8.8"
	cp.Spec.CloudInit.Packages[0] = "apache2"
	cp.Status.NICs[0].MACAddress = "changed"

	if orig.Spec.NICs[0].DNSServers[0] != "1.1.1.1" {
		t.Error("mutating copy's DNSServers affected original")
	}
	if orig.Spec.CloudInit.Packages[0] != "nginx" {
		t.Error("mutating copy's Packages affected original")
	}
	if orig.Status.NICs[0].MACAddress == "changed" {
		t.Error("mutating copy's status affected original")
	}
}

func TestVirtualMachineDeepCopyNil(t *testing.T) {
	var vm *VirtualMachine
	if got := vm.DeepCopy(); got != nil {
		t.Errorf("DeepCopy() of nil = %v, want nil", got)
	}
}

func TestCloudInitSpecDeepCopy(t *testing.T) {
	orig := &CloudInitSpec{
		Users: []CloudInitUser{{Name: "admin", SSHAuthorizedKeys: []string{"ssh-ed25519 AAAA"}}},
		AptSources: map[string]AptSource{
			"docker": {Source: "deb https://example.com stable main", KeyID: "ABCD"},
		},
	}

	cp := orig.DeepCopy()
	cp.Users[0].Name = "root"
	cp.AptSources["docker"] = AptSource{Source: "changed"}

	if orig.Users[0].Name != "admin" {
		t.Error("mutating copy's Users affected original")
	}
	if orig.AptSources["docker"].Source == "changed" {
		t.Error("mutating copy's AptSources affected original")
	}
}

func TestVMPhaseConstants(t *testing.T) {
	phases := []VMPhase{
		VMPhaseCreating, VMPhaseStarting, VMPhaseRunning, VMPhaseStopping,
		VMPhaseStopped, VMPhaseMigrating, VMPhaseResizing, VMPhaseError,
		VMPhaseTerminating, VMPhaseTerminated,
	}
	seen := make(map[VMPhase]bool)
	for _, p := range phases {
		if seen[p] {
			t.Errorf("duplicate phase value %q", p)
		}
		seen[p] = true
	}
}
