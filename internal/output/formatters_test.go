package output

import (
	"strings"
	"testing"
	"time"

	"github.com/coreforge/vmcp/api/v1alpha1"
)

func createTestVM(name string, phase v1alpha1.VMPhase, ip string) *v1alpha1.VirtualMachine {
	vm := &v1alpha1.VirtualMachine{
		TypeMeta: v1alpha1.TypeMeta{
			APIVersion: "vmcp.coreforge.io/v1alpha1",
			Kind:       "VirtualMachine",
		},
		ObjectMeta: v1alpha1.ObjectMeta{
			Name:              name,
			CreationTimestamp: v1alpha1.Time{Time: time.Now().Add(-5 * time.Minute)},
		},
		Spec: v1alpha1.VirtualMachineSpec{
			VCPUs:     2,
			MemoryMiB: 4096,
		},
		Status: v1alpha1.VirtualMachineStatus{
			Phase: phase,
		},
	}

	if ip != "" {
		vm.Status.NICs = []v1alpha1.VMNICStatus{{PrivateIP: ip}}
	}

	return vm
}

func createTestDisk(name string, phase v1alpha1.DiskStatusPhase) *v1alpha1.Disk {
	return &v1alpha1.Disk{
		ObjectMeta: v1alpha1.ObjectMeta{Name: name, CreationTimestamp: v1alpha1.Time{Time: time.Now()}},
		Spec:       v1alpha1.DiskSpec{SizeGB: 20},
		Status:     v1alpha1.DiskStatus{Phase: phase},
	}
}

func TestTableFormatter_FormatVM(t *testing.T) {
	tests := []struct {
		name      string
		vm        *v1alpha1.VirtualMachine
		wantName  string
		wantPhase string
	}{
		{
			name:      "running VM with IP",
			vm:        createTestVM("test-vm", v1alpha1.VMPhaseRunning, "10.0.0.1"),
			wantName:  "test-vm",
			wantPhase: "running",
		},
		{
			name:      "stopped VM without IP",
			vm:        createTestVM("stopped-vm", v1alpha1.VMPhaseStopped, ""),
			wantName:  "stopped-vm",
			wantPhase: "stopped",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatter := &TableFormatter{}
			output, err := formatter.FormatVM(tt.vm)
			if err != nil {
				t.Fatalf("FormatVM() error = %v", err)
			}
			if !strings.Contains(output, tt.wantName) {
				t.Errorf("output missing VM name %q: %s", tt.wantName, output)
			}
			if !strings.Contains(output, tt.wantPhase) {
				t.Errorf("output missing phase %q: %s", tt.wantPhase, output)
			}
		})
	}
}

func TestTableFormatter_FormatVMList(t *testing.T) {
	tests := []struct {
		name       string
		vms        []*v1alpha1.VirtualMachine
		noHeaders  bool
		wantCount  int
		wantHeader bool
	}{
		{name: "empty list", vms: []*v1alpha1.VirtualMachine{}, wantCount: 0},
		{
			name:       "single VM",
			vms:        []*v1alpha1.VirtualMachine{createTestVM("vm1", v1alpha1.VMPhaseRunning, "10.0.0.1")},
			wantCount:  1,
			wantHeader: true,
		},
		{
			name: "multiple VMs",
			vms: []*v1alpha1.VirtualMachine{
				createTestVM("vm1", v1alpha1.VMPhaseRunning, "10.0.0.1"),
				createTestVM("vm2", v1alpha1.VMPhaseStopped, ""),
				createTestVM("vm3", v1alpha1.VMPhaseCreating, ""),
			},
			wantCount:  3,
			wantHeader: true,
		},
		{
			name:       "no headers",
			vms:        []*v1alpha1.VirtualMachine{createTestVM("vm1", v1alpha1.VMPhaseRunning, "10.0.0.1")},
			noHeaders:  true,
			wantCount:  1,
			wantHeader: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatter := &TableFormatter{NoHeaders: tt.noHeaders}
			output, err := formatter.FormatVMList(tt.vms)
			if err != nil {
				t.Fatalf("FormatVMList() error = %v", err)
			}

			if tt.wantCount == 0 {
				if !strings.Contains(output, "No VMs found") {
					t.Errorf("expected 'No VMs found' message, got: %s", output)
				}
				return
			}

			hasHeader := strings.Contains(output, "NAME") && strings.Contains(output, "PHASE")
			if tt.wantHeader && !hasHeader {
				t.Errorf("expected header in output, got: %s", output)
			}
			if !tt.wantHeader && hasHeader {
				t.Errorf("expected no header in output, got: %s", output)
			}

			lines := strings.Split(strings.TrimSpace(output), "\n")
			expectedLines := tt.wantCount
			if tt.wantHeader {
				expectedLines++
			}
			if len(lines) != expectedLines {
				t.Errorf("expected %d lines, got %d: %s", expectedLines, len(lines), output)
			}
		})
	}
}

func TestTableFormatter_FormatDiskList(t *testing.T) {
	formatter := &TableFormatter{}

	empty, err := formatter.FormatDiskList(nil)
	if err != nil {
		t.Fatalf("FormatDiskList() error = %v", err)
	}
	if !strings.Contains(empty, "No disks found") {
		t.Errorf("expected empty-list message, got: %s", empty)
	}

	disks := []*v1alpha1.Disk{
		createTestDisk("disk1", v1alpha1.DiskAvailable),
		createTestDisk("disk2", v1alpha1.DiskInUse),
	}
	disks[1].Status.Attachment = &v1alpha1.DiskAttachment{VMID: "vm1", Device: "vdb"}

	out, err := formatter.FormatDiskList(disks)
	if err != nil {
		t.Fatalf("FormatDiskList() error = %v", err)
	}
	if !strings.Contains(out, "disk1") || !strings.Contains(out, "disk2") {
		t.Errorf("output missing disk names: %s", out)
	}
	if !strings.Contains(out, "vm1 (vdb)") {
		t.Errorf("output missing attachment info: %s", out)
	}
}

func TestYAMLFormatter_FormatVM(t *testing.T) {
	vm := createTestVM("test-vm", v1alpha1.VMPhaseRunning, "10.0.0.1")

	formatter := &YAMLFormatter{}
	output, err := formatter.FormatVM(vm)
	if err != nil {
		t.Fatalf("FormatVM() error = %v", err)
	}

	requiredFields := []string{
		"apiVersion:", "kind:", "metadata:", "name: test-vm",
		"spec:", "vcpus: 2", "memoryMiB: 4096", "status:", "phase: running",
	}
	for _, field := range requiredFields {
		if !strings.Contains(output, field) {
			t.Errorf("output missing required field %q: %s", field, output)
		}
	}
}

func TestYAMLFormatter_FormatVMList(t *testing.T) {
	tests := []struct {
		name      string
		vms       []*v1alpha1.VirtualMachine
		wantEmpty bool
	}{
		{name: "empty list", vms: []*v1alpha1.VirtualMachine{}, wantEmpty: true},
		{name: "single VM", vms: []*v1alpha1.VirtualMachine{createTestVM("vm1", v1alpha1.VMPhaseRunning, "10.0.0.1")}},
		{
			name: "multiple VMs",
			vms: []*v1alpha1.VirtualMachine{
				createTestVM("vm1", v1alpha1.VMPhaseRunning, "10.0.0.1"),
				createTestVM("vm2", v1alpha1.VMPhaseStopped, ""),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatter := &YAMLFormatter{}
			output, err := formatter.FormatVMList(tt.vms)
			if err != nil {
				t.Fatalf("FormatVMList() error = %v", err)
			}

			if tt.wantEmpty {
				if output != "" {
					t.Errorf("expected empty output, got: %s", output)
				}
				return
			}

			if len(tt.vms) > 1 && !strings.Contains(output, "---") {
				t.Errorf("expected document separator '---' in output")
			}
			for _, vm := range tt.vms {
				if !strings.Contains(output, vm.Name) {
					t.Errorf("output missing VM name %q", vm.Name)
				}
			}
		})
	}
}

func TestJSONFormatter_FormatVM(t *testing.T) {
	vm := createTestVM("test-vm", v1alpha1.VMPhaseRunning, "10.0.0.1")

	formatter := &JSONFormatter{}
	output, err := formatter.FormatVM(vm)
	if err != nil {
		t.Fatalf("FormatVM() error = %v", err)
	}

	requiredFields := []string{
		`"apiVersion"`, `"kind"`, `"metadata"`, `"name": "test-vm"`,
		`"spec"`, `"vcpus": 2`, `"memoryMiB": 4096`, `"status"`, `"phase": "running"`,
	}
	for _, field := range requiredFields {
		if !strings.Contains(output, field) {
			t.Errorf("output missing required field %q: %s", field, output)
		}
	}
}

func TestJSONFormatter_FormatVMList(t *testing.T) {
	tests := []struct {
		name      string
		vms       []*v1alpha1.VirtualMachine
		wantEmpty bool
	}{
		{name: "empty list", vms: []*v1alpha1.VirtualMachine{}, wantEmpty: true},
		{name: "single VM", vms: []*v1alpha1.VirtualMachine{createTestVM("vm1", v1alpha1.VMPhaseRunning, "10.0.0.1")}},
		{
			name: "multiple VMs",
			vms: []*v1alpha1.VirtualMachine{
				createTestVM("vm1", v1alpha1.VMPhaseRunning, "10.0.0.1"),
				createTestVM("vm2", v1alpha1.VMPhaseStopped, ""),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatter := &JSONFormatter{}
			output, err := formatter.FormatVMList(tt.vms)
			if err != nil {
				t.Fatalf("FormatVMList() error = %v", err)
			}

			if tt.wantEmpty {
				if output != "[]\n" {
					t.Errorf("expected %q, got: %q", "[]\n", output)
				}
				return
			}

			if !strings.HasPrefix(strings.TrimSpace(output), "[") {
				t.Errorf("expected output to start with '[': %s", output)
			}
			for _, vm := range tt.vms {
				if !strings.Contains(output, vm.Name) {
					t.Errorf("output missing VM name %q", vm.Name)
				}
			}
		})
	}
}

func TestJSONFormatter_FormatDisk(t *testing.T) {
	disk := createTestDisk("disk1", v1alpha1.DiskAvailable)

	formatter := &JSONFormatter{}
	output, err := formatter.FormatDisk(disk)
	if err != nil {
		t.Fatalf("FormatDisk() error = %v", err)
	}
	if !strings.Contains(output, `"name": "disk1"`) {
		t.Errorf("output missing disk name: %s", output)
	}
	if !strings.Contains(output, `"sizeGB": 20`) {
		t.Errorf("output missing size: %s", output)
	}
}

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{name: "table format", opts: Options{Format: FormatTable}},
		{name: "yaml format", opts: Options{Format: FormatYAML}},
		{name: "json format", opts: Options{Format: FormatJSON}},
		{name: "invalid format", opts: Options{Format: "invalid"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatter, err := NewFormatter(tt.opts)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewFormatter() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && formatter == nil {
				t.Error("NewFormatter() returned nil formatter")
			}
		})
	}
}

func TestValidateFormat(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		wantErr bool
	}{
		{name: "valid table", format: "table"},
		{name: "valid yaml", format: "yaml"},
		{name: "valid json", format: "json"},
		{name: "invalid format", format: "xml", wantErr: true},
		{name: "empty format", format: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFormat(tt.format)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFormat() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFormatAge(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		want     string
	}{
		{"5 seconds", 5 * time.Second, "5s"},
		{"30 seconds", 30 * time.Second, "30s"},
		{"2 minutes", 2 * time.Minute, "2m"},
		{"90 seconds", 90 * time.Second, "1m"},
		{"2 hours", 2 * time.Hour, "2h"},
		{"90 minutes", 90 * time.Minute, "1h"},
		{"2 days", 48 * time.Hour, "2d"},
		{"2 weeks", 14 * 24 * time.Hour, "2w"},
		{"50 days", 50 * 24 * time.Hour, "7w"},
		{"60 days", 60 * 24 * time.Hour, "60d"},
		{"400 days", 400 * 24 * time.Hour, "1y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatAge(tt.duration)
			if got != tt.want {
				t.Errorf("formatAge(%v) = %q, want %q", tt.duration, got, tt.want)
			}
		})
	}
}
