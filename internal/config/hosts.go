package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/coreforge/vmcp/api/v1alpha1"
)

// LoadHosts reads a HOSTS_CONFIG file: a YAML list of Host entities to
// register with the hostregistry.Registry at startup. Administrators edit
// this file and restart vmcpd to add or resize hosts; there is no live
// reload.
func LoadHosts(path string) ([]*v1alpha1.Host, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read hosts config: %w", err)
	}

	var hosts []*v1alpha1.Host
	if err := yaml.Unmarshal(data, &hosts); err != nil {
		return nil, fmt.Errorf("parse hosts config: %w", err)
	}

	for i, h := range hosts {
		if err := validateHost(h); err != nil {
			return nil, fmt.Errorf("hosts[%d] %q: %w", i, h.Name, err)
		}
	}
	return hosts, nil
}

func validateHost(h *v1alpha1.Host) error {
	if h.Name == "" {
		return fmt.Errorf("name is required")
	}
	if h.Spec.Address == "" {
		return fmt.Errorf("address is required")
	}
	switch h.Spec.Transport {
	case "local", "ssh":
	default:
		return fmt.Errorf("transport must be \"local\" or \"ssh\", got %q", h.Spec.Transport)
	}
	if h.Spec.Transport == "ssh" && h.Spec.SSHUser == "" {
		return fmt.Errorf("sshUser is required when transport is \"ssh\"")
	}
	if h.Spec.CapacityVCPUs <= 0 {
		return fmt.Errorf("capacityVCPUs must be > 0, got %d", h.Spec.CapacityVCPUs)
	}
	if h.Spec.CapacityMemMiB <= 0 {
		return fmt.Errorf("capacityMemMiB must be > 0, got %d", h.Spec.CapacityMemMiB)
	}
	return nil
}
