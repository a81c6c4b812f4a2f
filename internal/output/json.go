package output

import (
	"encoding/json"
	"fmt"

	"github.com/coreforge/vmcp/api/v1alpha1"
)

// JSONFormatter formats resources as JSON.
type JSONFormatter struct{}

func (f *JSONFormatter) FormatVM(vm *v1alpha1.VirtualMachine) (string, error) {
	v1alpha1.SetDefaultAPIVersion(vm)
	return marshalJSON(vm)
}

func (f *JSONFormatter) FormatVMList(vms []*v1alpha1.VirtualMachine) (string, error) {
	for _, vm := range vms {
		v1alpha1.SetDefaultAPIVersion(vm)
	}
	return marshalJSONList(vms)
}

func (f *JSONFormatter) FormatVPC(vpc *v1alpha1.VPC) (string, error) { return marshalJSON(vpc) }
func (f *JSONFormatter) FormatVPCList(vpcs []*v1alpha1.VPC) (string, error) {
	return marshalJSONList(vpcs)
}

func (f *JSONFormatter) FormatDisk(d *v1alpha1.Disk) (string, error) { return marshalJSON(d) }
func (f *JSONFormatter) FormatDiskList(ds []*v1alpha1.Disk) (string, error) {
	return marshalJSONList(ds)
}

func (f *JSONFormatter) FormatFloatingIP(ip *v1alpha1.FloatingIP) (string, error) {
	return marshalJSON(ip)
}
func (f *JSONFormatter) FormatFloatingIPList(ips []*v1alpha1.FloatingIP) (string, error) {
	return marshalJSONList(ips)
}

func (f *JSONFormatter) FormatMigration(m *v1alpha1.Migration) (string, error) {
	return marshalJSON(m)
}
func (f *JSONFormatter) FormatMigrationList(ms []*v1alpha1.Migration) (string, error) {
	return marshalJSONList(ms)
}

func (f *JSONFormatter) FormatHost(h *v1alpha1.Host) (string, error) { return marshalJSON(h) }
func (f *JSONFormatter) FormatHostList(hs []*v1alpha1.Host) (string, error) {
	return marshalJSONList(hs)
}

func (f *JSONFormatter) FormatImage(img *v1alpha1.Image) (string, error) { return marshalJSON(img) }
func (f *JSONFormatter) FormatImageList(imgs []*v1alpha1.Image) (string, error) {
	return marshalJSONList(imgs)
}

// marshalJSON and marshalJSONList replace the one-off FormatVM/FormatVMList
// marshal bodies the teacher hand-wrote: every resource marshals the same
// way, so the type parameter carries what used to be copy-pasted per type.
func marshalJSON[T any](v T) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal to JSON: %w", err)
	}
	return string(data) + "\n", nil
}

func marshalJSONList[T any](vs []T) (string, error) {
	if len(vs) == 0 {
		return "[]\n", nil
	}
	data, err := json.MarshalIndent(vs, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal list to JSON: %w", err)
	}
	return string(data) + "\n", nil
}
