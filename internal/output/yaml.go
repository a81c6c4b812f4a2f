package output

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/coreforge/vmcp/api/v1alpha1"
)

// YAMLFormatter formats resources as YAML.
type YAMLFormatter struct{}

func (f *YAMLFormatter) FormatVM(vm *v1alpha1.VirtualMachine) (string, error) {
	v1alpha1.SetDefaultAPIVersion(vm)
	return marshalYAML(vm)
}

func (f *YAMLFormatter) FormatVMList(vms []*v1alpha1.VirtualMachine) (string, error) {
	for _, vm := range vms {
		v1alpha1.SetDefaultAPIVersion(vm)
	}
	return marshalYAMLList(vms, func(vm *v1alpha1.VirtualMachine) string { return vm.Name })
}

func (f *YAMLFormatter) FormatVPC(vpc *v1alpha1.VPC) (string, error) { return marshalYAML(vpc) }
func (f *YAMLFormatter) FormatVPCList(vpcs []*v1alpha1.VPC) (string, error) {
	return marshalYAMLList(vpcs, func(v *v1alpha1.VPC) string { return v.Name })
}

func (f *YAMLFormatter) FormatDisk(d *v1alpha1.Disk) (string, error) { return marshalYAML(d) }
func (f *YAMLFormatter) FormatDiskList(ds []*v1alpha1.Disk) (string, error) {
	return marshalYAMLList(ds, func(d *v1alpha1.Disk) string { return d.Name })
}

func (f *YAMLFormatter) FormatFloatingIP(ip *v1alpha1.FloatingIP) (string, error) {
	return marshalYAML(ip)
}
func (f *YAMLFormatter) FormatFloatingIPList(ips []*v1alpha1.FloatingIP) (string, error) {
	return marshalYAMLList(ips, func(ip *v1alpha1.FloatingIP) string { return ip.Name })
}

func (f *YAMLFormatter) FormatMigration(m *v1alpha1.Migration) (string, error) {
	return marshalYAML(m)
}
func (f *YAMLFormatter) FormatMigrationList(ms []*v1alpha1.Migration) (string, error) {
	return marshalYAMLList(ms, func(m *v1alpha1.Migration) string { return m.Name })
}

func (f *YAMLFormatter) FormatHost(h *v1alpha1.Host) (string, error) { return marshalYAML(h) }
func (f *YAMLFormatter) FormatHostList(hs []*v1alpha1.Host) (string, error) {
	return marshalYAMLList(hs, func(h *v1alpha1.Host) string { return h.Name })
}

func (f *YAMLFormatter) FormatImage(img *v1alpha1.Image) (string, error) { return marshalYAML(img) }
func (f *YAMLFormatter) FormatImageList(imgs []*v1alpha1.Image) (string, error) {
	return marshalYAMLList(imgs, func(img *v1alpha1.Image) string { return img.Name })
}

func marshalYAML[T any](v T) (string, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal to YAML: %w", err)
	}
	return string(data), nil
}

// marshalYAMLList renders vs as a YAML document stream (--- separated),
// the same shape FormatVMList used. name extracts each item's name for the
// wrapped marshal error only.
func marshalYAMLList[T any](vs []T, name func(T) string) (string, error) {
	if len(vs) == 0 {
		return "", nil
	}

	var buf bytes.Buffer
	for i, v := range vs {
		data, err := yaml.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("failed to marshal %s to YAML: %w", name(v), err)
		}
		if i > 0 {
			buf.WriteString("---\n")
		}
		buf.Write(data)
	}
	return buf.String(), nil
}
