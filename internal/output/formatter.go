// Package output provides formatters for displaying control-plane
// resources in various formats (table, YAML, JSON).
package output

import (
	"fmt"

	"github.com/coreforge/vmcp/api/v1alpha1"
)

// Format represents an output format type.
type Format string

const (
	// FormatTable is a human-readable table format.
	FormatTable Format = "table"
	// FormatYAML is a YAML format for declarative configs.
	FormatYAML Format = "yaml"
	// FormatJSON is a JSON format for machine consumption.
	FormatJSON Format = "json"
)

// Formatter formats control-plane resources for output. One method pair
// per listable resource, rather than a generic Format(any), so each table
// renderer keeps its own column layout.
type Formatter interface {
	FormatVM(vm *v1alpha1.VirtualMachine) (string, error)
	FormatVMList(vms []*v1alpha1.VirtualMachine) (string, error)

	FormatVPC(vpc *v1alpha1.VPC) (string, error)
	FormatVPCList(vpcs []*v1alpha1.VPC) (string, error)

	FormatDisk(d *v1alpha1.Disk) (string, error)
	FormatDiskList(ds []*v1alpha1.Disk) (string, error)

	FormatFloatingIP(ip *v1alpha1.FloatingIP) (string, error)
	FormatFloatingIPList(ips []*v1alpha1.FloatingIP) (string, error)

	FormatMigration(m *v1alpha1.Migration) (string, error)
	FormatMigrationList(ms []*v1alpha1.Migration) (string, error)

	FormatHost(h *v1alpha1.Host) (string, error)
	FormatHostList(hs []*v1alpha1.Host) (string, error)

	FormatImage(img *v1alpha1.Image) (string, error)
	FormatImageList(imgs []*v1alpha1.Image) (string, error)
}

// Options contains options for formatting output.
type Options struct {
	// Format specifies the output format.
	Format Format
	// NoHeaders omits headers in table format.
	NoHeaders bool
}

// NewFormatter creates a new Formatter based on the specified format.
func NewFormatter(opts Options) (Formatter, error) {
	switch opts.Format {
	case FormatTable:
		return &TableFormatter{NoHeaders: opts.NoHeaders}, nil
	case FormatYAML:
		return &YAMLFormatter{}, nil
	case FormatJSON:
		return &JSONFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (supported: table, yaml, json)", opts.Format)
	}
}

// ValidateFormat checks if a format string is valid.
func ValidateFormat(format string) error {
	f := Format(format)
	switch f {
	case FormatTable, FormatYAML, FormatJSON:
		return nil
	default:
		return fmt.Errorf("invalid format: %s (valid formats: table, yaml, json)", format)
	}
}
