// Package loader loads VirtualMachine create manifests from YAML files, for
// cmd/vmcpctl's "vm create -f" flow. It loads the same apiVersion/kind
// envelope the API's resources themselves carry, so a manifest written by
// hand looks like any VirtualMachine returned by the API.
package loader

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/coreforge/vmcp/api/v1alpha1"
)

// LoadFromFile loads a VirtualMachine manifest from a YAML file.
func LoadFromFile(path string) (*v1alpha1.VirtualMachine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return LoadFromYAML(data)
}

// LoadFromYAML loads a VirtualMachine manifest from YAML bytes.
func LoadFromYAML(data []byte) (*v1alpha1.VirtualMachine, error) {
	var vm v1alpha1.VirtualMachine
	if err := yaml.Unmarshal(data, &vm); err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	if vm.APIVersion == "" {
		return nil, fmt.Errorf("missing required field: apiVersion")
	}
	if vm.Kind == "" {
		return nil, fmt.Errorf("missing required field: kind")
	}
	expectedAPIVersion := v1alpha1.GroupName + "/" + v1alpha1.Version
	if vm.APIVersion != expectedAPIVersion {
		return nil, fmt.Errorf("unsupported apiVersion: %s (expected: %s)", vm.APIVersion, expectedAPIVersion)
	}
	if vm.Kind != v1alpha1.VirtualMachineKind {
		return nil, fmt.Errorf("unsupported kind: %s (expected: %s)", vm.Kind, v1alpha1.VirtualMachineKind)
	}

	applyDefaults(&vm)

	if err := validateSpec(&vm); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &vm, nil
}

// SaveToFile writes a VirtualMachine resource to a YAML file, e.g. to let
// an operator capture `vmcpctl vm get -o yaml` output as a reusable
// manifest.
func SaveToFile(vm *v1alpha1.VirtualMachine, path string) error {
	v1alpha1.SetDefaultAPIVersion(vm)

	data, err := yaml.Marshal(vm)
	if err != nil {
		return fmt.Errorf("failed to marshal VM to YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}
	return nil
}

func applyDefaults(vm *v1alpha1.VirtualMachine) {
	if vm.Spec.Arch == "" {
		vm.Spec.Arch = v1alpha1.ArchX86_64
	}
	if vm.Spec.CPUMode == "" {
		vm.Spec.CPUMode = "host-model"
	}
	if vm.Spec.DesiredPower == "" {
		vm.Spec.DesiredPower = "on"
	}
	if len(vm.Spec.NICs) == 0 {
		vm.Spec.NICs = []v1alpha1.VMNICSpec{{DefaultRoute: true}}
	}

	vm.Name = strings.ToLower(vm.Name)
	if vm.Spec.CloudInit != nil && vm.Spec.CloudInit.Hostname != "" {
		vm.Spec.CloudInit.Hostname = strings.ToLower(vm.Spec.CloudInit.Hostname)
	}
}

func validateSpec(vm *v1alpha1.VirtualMachine) error {
	if vm.Name == "" {
		return fmt.Errorf("metadata.name is required")
	}
	if vm.Spec.VPCID == "" {
		return fmt.Errorf("spec.vpcID is required")
	}
	if vm.Spec.ImageID == "" {
		return fmt.Errorf("spec.imageID is required")
	}
	if vm.Spec.VCPUs <= 0 {
		return fmt.Errorf("spec.vcpus must be greater than 0")
	}
	if vm.Spec.MemoryMiB <= 0 || vm.Spec.MemoryMiB%512 != 0 {
		return fmt.Errorf("spec.memoryMiB must be a positive multiple of 512")
	}
	if vm.Spec.RootDiskSizeGB < 10 {
		return fmt.Errorf("spec.rootDiskSizeGB must be at least 10")
	}
	if vm.Spec.Arch != v1alpha1.ArchX86_64 && vm.Spec.Arch != v1alpha1.ArchAArch64 {
		return fmt.Errorf("spec.arch must be %q or %q", v1alpha1.ArchX86_64, v1alpha1.ArchAArch64)
	}

	devicesSeen := make(map[string]bool)
	for i, a := range vm.Spec.DiskAttachments {
		if a.DiskID == "" {
			return fmt.Errorf("spec.diskAttachments[%d].diskID is required", i)
		}
		if a.Device == "" {
			return fmt.Errorf("spec.diskAttachments[%d].device is required", i)
		}
		if devicesSeen[a.Device] {
			return fmt.Errorf("spec.diskAttachments[%d].device %q is duplicated", i, a.Device)
		}
		devicesSeen[a.Device] = true
	}

	if len(vm.Spec.NICs) == 0 {
		return fmt.Errorf("spec.nics must have at least one interface")
	}

	return nil
}
