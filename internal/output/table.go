package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/coreforge/vmcp/api/v1alpha1"
)

// TableFormatter formats resources as human-readable tables.
type TableFormatter struct {
	// NoHeaders omits the header row.
	NoHeaders bool
}

func (f *TableFormatter) FormatVM(vm *v1alpha1.VirtualMachine) (string, error) {
	return f.FormatVMList([]*v1alpha1.VirtualMachine{vm})
}

func (f *TableFormatter) FormatVMList(vms []*v1alpha1.VirtualMachine) (string, error) {
	return writeTable(f.NoHeaders, "No VMs found\n", "NAME\tPHASE\tIP\tVCPUs\tMEMORY\tAGE", vms,
		func(w *tabwriter.Writer, vm *v1alpha1.VirtualMachine) {
			phase := string(vm.Status.Phase)
			if phase == "" {
				phase = "-"
			}
			ip := "-"
			if len(vm.Status.NICs) > 0 && vm.Status.NICs[0].PrivateIP != "" {
				ip = vm.Status.NICs[0].PrivateIP
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d MiB\t%s\n",
				vm.Name, phase, ip, vm.Spec.VCPUs, vm.Spec.MemoryMiB, age(vm.CreationTimestamp))
		})
}

func (f *TableFormatter) FormatVPC(vpc *v1alpha1.VPC) (string, error) {
	return f.FormatVPCList([]*v1alpha1.VPC{vpc})
}

func (f *TableFormatter) FormatVPCList(vpcs []*v1alpha1.VPC) (string, error) {
	return writeTable(f.NoHeaders, "No VPCs found\n", "NAME\tCIDR\tSUBNETS\tAGE", vpcs,
		func(w *tabwriter.Writer, vpc *v1alpha1.VPC) {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
				vpc.Name, vpc.Spec.CIDR, len(vpc.Status.SubnetIDs), age(vpc.CreationTimestamp))
		})
}

func (f *TableFormatter) FormatDisk(d *v1alpha1.Disk) (string, error) {
	return f.FormatDiskList([]*v1alpha1.Disk{d})
}

func (f *TableFormatter) FormatDiskList(ds []*v1alpha1.Disk) (string, error) {
	return writeTable(f.NoHeaders, "No disks found\n", "NAME\tSIZE\tPHASE\tATTACHED-TO\tAGE", ds,
		func(w *tabwriter.Writer, d *v1alpha1.Disk) {
			attached := "-"
			if d.Status.Attachment != nil {
				attached = fmt.Sprintf("%s (%s)", d.Status.Attachment.VMID, d.Status.Attachment.Device)
			}
			phase := string(d.Status.Phase)
			if phase == "" {
				phase = "-"
			}
			fmt.Fprintf(w, "%s\t%d GiB\t%s\t%s\t%s\n",
				d.Name, d.Spec.SizeGB, phase, attached, age(d.CreationTimestamp))
		})
}

func (f *TableFormatter) FormatFloatingIP(ip *v1alpha1.FloatingIP) (string, error) {
	return f.FormatFloatingIPList([]*v1alpha1.FloatingIP{ip})
}

func (f *TableFormatter) FormatFloatingIPList(ips []*v1alpha1.FloatingIP) (string, error) {
	return writeTable(f.NoHeaders, "No floating IPs found\n", "ADDRESS\tBOUND-VM\tAGE", ips,
		func(w *tabwriter.Writer, ip *v1alpha1.FloatingIP) {
			bound := ip.Status.BoundVMID
			if bound == "" {
				bound = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", ip.Spec.Address, bound, age(ip.CreationTimestamp))
		})
}

func (f *TableFormatter) FormatMigration(m *v1alpha1.Migration) (string, error) {
	return f.FormatMigrationList([]*v1alpha1.Migration{m})
}

func (f *TableFormatter) FormatMigrationList(ms []*v1alpha1.Migration) (string, error) {
	return writeTable(f.NoHeaders, "No migrations found\n", "NAME\tVM\tSOURCE\tDEST\tPHASE\tPROGRESS\tAGE", ms,
		func(w *tabwriter.Writer, m *v1alpha1.Migration) {
			phase := string(m.Status.Phase)
			if phase == "" {
				phase = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d%%\t%s\n",
				m.Name, m.Spec.VMID, m.Spec.SourceHostID, m.Spec.DestinationHostID,
				phase, m.Status.ProgressPct, age(m.CreationTimestamp))
		})
}

func (f *TableFormatter) FormatHost(h *v1alpha1.Host) (string, error) {
	return f.FormatHostList([]*v1alpha1.Host{h})
}

func (f *TableFormatter) FormatHostList(hs []*v1alpha1.Host) (string, error) {
	return writeTable(f.NoHeaders, "No hosts found\n", "NAME\tADDRESS\tHEALTH\tVCPUs\tMEM(MiB)\tVMS\tAGE", hs,
		func(w *tabwriter.Writer, h *v1alpha1.Host) {
			health := string(h.Status.Health)
			if health == "" {
				health = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%d/%d\t%d\t%s\n",
				h.Name, h.Spec.Address, health,
				h.Status.AllocatedVCPUs, h.Spec.CapacityVCPUs,
				h.Status.AllocatedMemMiB, h.Spec.CapacityMemMiB,
				h.Status.ActiveVMCount, age(h.CreationTimestamp))
		})
}

func (f *TableFormatter) FormatImage(img *v1alpha1.Image) (string, error) {
	return f.FormatImageList([]*v1alpha1.Image{img})
}

func (f *TableFormatter) FormatImageList(imgs []*v1alpha1.Image) (string, error) {
	return writeTable(f.NoHeaders, "No images found\n", "NAME\tARCH\tHOSTS\tAGE", imgs,
		func(w *tabwriter.Writer, img *v1alpha1.Image) {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
				img.Name, img.Spec.Arch, len(img.Status.HostPaths), age(img.CreationTimestamp))
		})
}

// writeTable holds the tabwriter boilerplate every FormatXList shares: an
// empty-input message, an optional header row, and one row func call per
// item.
func writeTable[T any](noHeaders bool, emptyMsg, header string, items []T, row func(w *tabwriter.Writer, item T)) (string, error) {
	if len(items) == 0 {
		return emptyMsg, nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !noHeaders {
		fmt.Fprintln(w, header)
	}
	for _, item := range items {
		row(w, item)
	}

	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush table: %w", err)
	}
	return buf.String(), nil
}

// age formats a duration as a human-readable age string, e.g. "5s", "2m",
// "3h", "4d", "2w", "1y".
func age(ts v1alpha1.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return formatAge(time.Since(ts.Time))
}

func formatAge(d time.Duration) string {
	if d < 0 {
		return "unknown"
	}

	seconds := int(d.Seconds())
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}

	minutes := seconds / 60
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}

	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%dh", hours)
	}

	days := hours / 24
	if days < 7 {
		return fmt.Sprintf("%dd", days)
	}

	weeks := days / 7
	if weeks < 8 {
		return fmt.Sprintf("%dw", weeks)
	}

	years := days / 365
	if years > 0 {
		return fmt.Sprintf("%dy", years)
	}
	return fmt.Sprintf("%dd", days)
}
