package local

import (
	"fmt"

	"libvirt.org/go/libvirtxml"

	"github.com/coreforge/vmcp/api/v1alpha1"
	"github.com/coreforge/vmcp/internal/driver"
	"github.com/coreforge/vmcp/internal/naming"
	"github.com/coreforge/vmcp/internal/vmcperrors"
)

// aavmfCodePath and aavmfVars point at the Debian/Ubuntu aarch64 UEFI
// firmware package layout. The paths are fixed; Host.Spec has no field to
// override them for other distributions.
const (
	aavmfCodePath = "/usr/share/AAVMF/AAVMF_CODE.fd"
	aavmfVars     = "/usr/share/AAVMF/AAVMF_VARS.fd"
)

// uintPtr satisfies libvirtxml's pointer-typed optional fields.
func uintPtr(v uint) *uint { return &v }

// buildDomainXML renders a libvirt domain definition for vm, switching
// firmware and machine type on vm.Spec.Arch: SeaBIOS for x86_64, UEFI/AAVMF
// for aarch64, per SPEC_FULL.md §5.1.
func buildDomainXML(vm *v1alpha1.VirtualMachine, nics []driver.NetworkAttachment, pool string) (string, error) {
	cpuMode := vm.Spec.CPUMode
	if cpuMode == "" {
		cpuMode = "host-model"
	}

	domain := &libvirtxml.Domain{
		Type:   "kvm",
		Name:   vm.Name,
		Memory: &libvirtxml.DomainMemory{Value: uint(vm.Spec.MemoryMiB), Unit: "MiB"},
		VCPU:   &libvirtxml.DomainVCPU{Placement: "static", Value: uint(vm.Spec.VCPUs)},
		CPU: &libvirtxml.DomainCPU{
			Mode:  cpuMode,
			Model: &libvirtxml.DomainCPUModel{Fallback: "allow"},
		},
		Clock: &libvirtxml.DomainClock{
			Offset: "utc",
			Timer: []libvirtxml.DomainTimer{
				{Name: "rtc", TickPolicy: "catchup"},
				{Name: "pit", TickPolicy: "delay"},
			},
		},
		OnPoweroff: "destroy",
		OnReboot:   "restart",
		OnCrash:    "restart",
		Devices: &libvirtxml.DomainDeviceList{
			Controllers: []libvirtxml.DomainController{
				{Type: "pci", Index: uintPtr(0), Model: "pci-root"},
			},
			MemBalloon: &libvirtxml.DomainMemBalloon{Model: "virtio"},
			RNGs: []libvirtxml.DomainRNG{
				{
					Model:   "virtio",
					Backend: &libvirtxml.DomainRNGBackend{Random: &libvirtxml.DomainRNGBackendRandom{Device: "/dev/urandom"}},
				},
			},
		},
	}

	switch vm.Spec.Arch {
	case v1alpha1.ArchX86_64, "":
		domain.OS = &libvirtxml.DomainOS{
			Type: &libvirtxml.DomainOSType{Arch: "x86_64", Machine: "q35", Type: "hvm"},
			BIOS: &libvirtxml.DomainBIOS{UseSerial: "yes"},
		}
		domain.Features = &libvirtxml.DomainFeatureList{
			ACPI: &libvirtxml.DomainFeature{},
			APIC: &libvirtxml.DomainFeatureAPIC{},
			PAE:  &libvirtxml.DomainFeature{},
		}
	case v1alpha1.ArchAArch64:
		domain.OS = &libvirtxml.DomainOS{
			Type: &libvirtxml.DomainOSType{Arch: "aarch64", Machine: "virt", Type: "hvm"},
			Loader: &libvirtxml.DomainLoader{
				Path:     aavmfCodePath,
				Readonly: "yes",
				Type:     "pflash",
				Secure:   "no",
			},
			NVRam: &libvirtxml.DomainNVRam{
				NVRamSource: &libvirtxml.DomainNVRamSource{
					File: &libvirtxml.DomainFileSource{Path: vm.Name + "_VARS.fd"},
				},
				Template: aavmfVars,
			},
		}
		domain.Features = &libvirtxml.DomainFeatureList{
			ACPI: &libvirtxml.DomainFeature{},
			GIC:  &libvirtxml.DomainFeatureGIC{Version: "3"},
		}
	default:
		return "", vmcperrors.New(vmcperrors.KindUnsupportedArch, fmt.Sprintf("arch %q not supported", vm.Spec.Arch))
	}

	bootDisk := libvirtxml.DomainDisk{
		Device: "disk",
		Driver: &libvirtxml.DomainDiskDriver{Name: "qemu", Type: "qcow2", Cache: "none"},
		Source: &libvirtxml.DomainDiskSource{
			Volume: &libvirtxml.DomainDiskSourceVolume{Pool: pool, Volume: naming.VolumeNameBoot(vm.Name)},
		},
		Target: &libvirtxml.DomainDiskTarget{Dev: "vda", Bus: "virtio"},
		Boot:   &libvirtxml.DomainDeviceBoot{Order: 1},
	}
	domain.Devices.Disks = append(domain.Devices.Disks, bootDisk)

	for _, att := range vm.Spec.DiskAttachments {
		domain.Devices.Disks = append(domain.Devices.Disks, libvirtxml.DomainDisk{
			Device: "disk",
			Driver: &libvirtxml.DomainDiskDriver{Name: "qemu", Type: "qcow2", Cache: "none"},
			Source: &libvirtxml.DomainDiskSource{
				Volume: &libvirtxml.DomainDiskSourceVolume{Pool: pool, Volume: naming.VolumeNameData(vm.Name, att.Device)},
			},
			Target: &libvirtxml.DomainDiskTarget{Dev: att.Device, Bus: "virtio"},
		})
	}

	if vm.Spec.CloudInit != nil {
		domain.Devices.Disks = append(domain.Devices.Disks, libvirtxml.DomainDisk{
			Device: "cdrom",
			Driver: &libvirtxml.DomainDiskDriver{Name: "qemu", Type: "raw"},
			Source: &libvirtxml.DomainDiskSource{
				Volume: &libvirtxml.DomainDiskSourceVolume{Pool: pool, Volume: naming.VolumeNameCloudInit(vm.Name)},
			},
			Target:   &libvirtxml.DomainDiskTarget{Dev: "sda", Bus: "sata"},
			ReadOnly: &libvirtxml.DomainDiskReadOnly{},
		})
	}

	for _, nic := range nics {
		domain.Devices.Interfaces = append(domain.Devices.Interfaces, libvirtxml.DomainInterface{
			MAC:    &libvirtxml.DomainInterfaceMAC{Address: nic.MACAddress},
			Source: &libvirtxml.DomainInterfaceSource{Bridge: &libvirtxml.DomainInterfaceSourceBridge{Bridge: nic.Bridge}},
			Model:  &libvirtxml.DomainInterfaceModel{Type: "virtio"},
			Target: &libvirtxml.DomainInterfaceTarget{Dev: nic.InterfaceName},
		})
	}

	domain.Devices.Serials = []libvirtxml.DomainSerial{
		{
			Source: &libvirtxml.DomainChardevSource{Pty: &libvirtxml.DomainChardevSourcePty{}},
			Target: &libvirtxml.DomainSerialTarget{Port: uintPtr(0)},
		},
	}
	domain.Devices.Consoles = []libvirtxml.DomainConsole{
		{
			Source: &libvirtxml.DomainChardevSource{Pty: &libvirtxml.DomainChardevSourcePty{}},
			Target: &libvirtxml.DomainConsoleTarget{Type: "serial", Port: uintPtr(0)},
		},
	}

	xml, err := domain.Marshal()
	if err != nil {
		return "", vmcperrors.Wrap(vmcperrors.KindInternal, err, "marshal domain XML for %s", vm.Name)
	}
	return xml, nil
}
