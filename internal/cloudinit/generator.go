// Package cloudinit provides cloud-init configuration generation for VM provisioning.
//
// This package generates cloud-init configuration files (user-data, meta-data, network-config)
// following the official cloud-init NoCloud datasource specification.
//
// See https://cloudinit.readthedocs.io/en/latest/reference/datasources/nocloud.html
package cloudinit

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/coreforge/vmcp/api/v1alpha1"
)

// ResolvedNIC carries everything the network-config renderer needs for one
// interface, resolved ahead of time by the caller (private IP via IPAM if
// unset in the spec, MAC via internal/naming, gateway via the owning
// Subnet/VPC) so this package stays free of store/ipam dependencies.
type ResolvedNIC struct {
	// PrivateIP is in CIDR notation (e.g. "10.0.0.2/24"), the form netplan
	// v2's addresses: list requires.
	PrivateIP    string
	MAC          string
	Gateway      string
	DNSServers   []string
	DefaultRoute bool
}

// UserData represents the cloud-config user-data structure.
// This is marshaled to YAML and prefixed with "#cloud-config" header.
//
// See https://cloudinit.readthedocs.io/en/latest/explanation/format.html#cloud-config-data
type UserData struct {
	Hostname          string       `yaml:"hostname"`
	FQDN              string       `yaml:"fqdn,omitempty"`
	Users             []CIUser     `yaml:"users,omitempty"`
	Packages          []string     `yaml:"packages,omitempty"`
	RunCmd            []string     `yaml:"runcmd,omitempty"`
	WriteFiles        []CIFile     `yaml:"write_files,omitempty"`
	Timezone          string       `yaml:"timezone,omitempty"`
	AptSources        map[string]CIAptSource `yaml:"apt_sources,omitempty"`
	SSHPasswordAuth   bool         `yaml:"ssh_pwauth"`
	Output            *Output      `yaml:"output,omitempty"`
}

// CIUser mirrors v1alpha1.CloudInitUser in cloud-init's own user schema.
type CIUser struct {
	Name              string   `yaml:"name"`
	Sudo              string   `yaml:"sudo,omitempty"`
	Shell             string   `yaml:"shell,omitempty"`
	SSHAuthorizedKeys []string `yaml:"ssh_authorized_keys,omitempty"`
}

// CIFile mirrors v1alpha1.CloudInitFile in cloud-init's write_files schema.
type CIFile struct {
	Path        string `yaml:"path"`
	Content     string `yaml:"content"`
	Permissions string `yaml:"permissions,omitempty"`
	Owner       string `yaml:"owner,omitempty"`
}

// CIAptSource mirrors v1alpha1.AptSource in cloud-init's apt.sources schema.
type CIAptSource struct {
	Source string `yaml:"source"`
	KeyID  string `yaml:"keyid,omitempty"`
}

// Output configures cloud-init output logging.
type Output struct {
	All string `yaml:"all"`
}

// MetaData represents the cloud-init meta-data structure.
//
// See https://cloudinit.readthedocs.io/en/latest/reference/datasources/nocloud.html
type MetaData struct {
	InstanceID    string `yaml:"instance-id"`
	LocalHostname string `yaml:"local-hostname"`
}

// NetworkConfig represents the netplan v2 network configuration.
//
// See https://cloudinit.readthedocs.io/en/latest/reference/network-config-format-v2.html
type NetworkConfig struct {
	Version   int                       `yaml:"version"`
	Ethernets map[string]EthernetConfig `yaml:"ethernets"`
}

// EthernetConfig represents a single ethernet interface configuration.
type EthernetConfig struct {
	Match       MatchConfig   `yaml:"match"`
	Addresses   []string      `yaml:"addresses"`
	Routes      []RouteConfig `yaml:"routes,omitempty"`
	Nameservers *Nameservers  `yaml:"nameservers,omitempty"`
}

// MatchConfig matches an interface by MAC address.
type MatchConfig struct {
	MACAddress string `yaml:"macaddress"`
}

// RouteConfig represents a static route.
type RouteConfig struct {
	To  string `yaml:"to"`
	Via string `yaml:"via"`
}

// Nameservers represents DNS server configuration.
type Nameservers struct {
	Addresses []string `yaml:"addresses"`
}

// GenerateUserData generates the user-data YAML content for vm.
//
// Returns the complete user-data file content including the "#cloud-config" header.
func GenerateUserData(vm *v1alpha1.VirtualMachine) (string, error) {
	if vm == nil {
		return "", fmt.Errorf("VM configuration cannot be nil")
	}

	ci := vm.Spec.CloudInit
	hostname := vm.Name
	fqdn := ""
	if ci != nil && ci.Hostname != "" {
		hostname = ci.Hostname
	}

	userData := UserData{
		Hostname:        hostname,
		FQDN:            fqdn,
		SSHPasswordAuth: false,
		Output: &Output{
			All: "| tee -a /var/log/cloud-init-output.log",
		},
	}

	if ci != nil {
		for _, u := range ci.Users {
			userData.Users = append(userData.Users, CIUser{
				Name:              u.Name,
				Sudo:              u.Sudo,
				Shell:             u.Shell,
				SSHAuthorizedKeys: u.SSHAuthorizedKeys,
			})
		}
		userData.Packages = ci.Packages
		userData.RunCmd = ci.RunCmd
		for _, f := range ci.WriteFiles {
			userData.WriteFiles = append(userData.WriteFiles, CIFile{
				Path:        f.Path,
				Content:     f.Content,
				Permissions: f.Permissions,
				Owner:       f.Owner,
			})
		}
		userData.Timezone = ci.Timezone
		if len(ci.AptSources) > 0 {
			userData.AptSources = make(map[string]CIAptSource, len(ci.AptSources))
			for name, src := range ci.AptSources {
				userData.AptSources[name] = CIAptSource{Source: src.Source, KeyID: src.KeyID}
			}
		}
	}

	yamlBytes, err := yaml.Marshal(&userData)
	if err != nil {
		return "", fmt.Errorf("failed to marshal user-data to YAML: %w", err)
	}

	return "#cloud-config\n" + string(yamlBytes), nil
}

// GenerateMetaData generates the meta-data YAML content for vm.
//
// The instance-id is set to the VM name. Cloud-init uses instance-id to determine
// if this is a first boot. Using the VM name means cloud-init will re-run if the
// VM is destroyed and recreated with the same name.
func GenerateMetaData(vm *v1alpha1.VirtualMachine) (string, error) {
	if vm == nil {
		return "", fmt.Errorf("VM configuration cannot be nil")
	}

	metaData := MetaData{
		InstanceID:    vm.Name,
		LocalHostname: vm.Name,
	}

	yamlBytes, err := yaml.Marshal(&metaData)
	if err != nil {
		return "", fmt.Errorf("failed to marshal meta-data to YAML: %w", err)
	}

	return string(yamlBytes), nil
}

// GenerateNetworkConfig generates the network-config YAML content for vm's
// interfaces, each already resolved to a concrete IP/MAC/gateway by the
// caller.
//
// Uses netplan version 2 format with ethernet interfaces matched by MAC address.
//
// See https://cloudinit.readthedocs.io/en/latest/reference/network-config-format-v2.html
func GenerateNetworkConfig(vm *v1alpha1.VirtualMachine, nics []ResolvedNIC) (string, error) {
	if vm == nil {
		return "", fmt.Errorf("VM configuration cannot be nil")
	}
	if len(nics) == 0 {
		return "", fmt.Errorf("at least one network interface is required")
	}

	networkConfig := NetworkConfig{
		Version:   2,
		Ethernets: make(map[string]EthernetConfig, len(nics)),
	}

	for i, nic := range nics {
		ethName := fmt.Sprintf("eth%d", i)

		ethConfig := EthernetConfig{
			Match:     MatchConfig{MACAddress: nic.MAC},
			Addresses: []string{nic.PrivateIP},
		}

		if nic.DefaultRoute {
			ethConfig.Routes = []RouteConfig{
				{To: "0.0.0.0/0", Via: nic.Gateway},
			}
		}

		if len(nic.DNSServers) > 0 {
			ethConfig.Nameservers = &Nameservers{Addresses: nic.DNSServers}
		}

		networkConfig.Ethernets[ethName] = ethConfig
	}

	yamlBytes, err := yaml.Marshal(&networkConfig)
	if err != nil {
		return "", fmt.Errorf("failed to marshal network-config to YAML: %w", err)
	}

	return string(yamlBytes), nil
}
