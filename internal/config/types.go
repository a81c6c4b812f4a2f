// Package config loads vmcpd's process configuration from a config file,
// environment variables, and flags, in that order of increasing
// precedence, following the teacher's own Normalize-then-Validate shape
// (internal/config.VMConfig.Normalize/Validate) generalized from one VM's
// settings to the whole control plane's.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is vmcpd's process configuration, sourced from the Environment
// table in spec.md §6.
type Config struct {
	// StorePath is the directory backing the embedded Store (STORE_PATH).
	StorePath string `mapstructure:"store_path"`

	// HostsConfig is a YAML file of Host entities to register at startup
	// (HOSTS_CONFIG).
	HostsConfig string `mapstructure:"hosts_config"`

	// APIListen is the HTTP API's listen address (API_LISTEN).
	APIListen string `mapstructure:"api_listen"`

	// WSListen is the console WebSocket's listen address (WS_LISTEN). It
	// is validated as required, but vmcpd opens no listener for it: /ws is
	// served by the same gin.Engine on APIListen (RegisterRoutes mounts /ws
	// alongside /api).
	WSListen string `mapstructure:"ws_listen"`

	// PublicIPPool is the CIDR administrators draw floating IPs from
	// (PUBLIC_IP_POOL).
	PublicIPPool string `mapstructure:"public_ip_pool"`

	// DefaultVPCCIDR is the DEFAULT_VPC_CIDR setting. It is validated as
	// required but not otherwise read: CreateVPC rejects a request without
	// an explicit cidr rather than falling back to it.
	DefaultVPCCIDR string `mapstructure:"default_vpc_cidr"`

	// ReconcileWorkers is the Reconciler's worker-pool size
	// (RECONCILE_WORKERS).
	ReconcileWorkers int `mapstructure:"reconcile_workers"`

	// HostVerbConcurrency caps concurrent Driver verbs per host
	// (HOST_VERB_CONCURRENCY).
	HostVerbConcurrency int `mapstructure:"host_verb_concurrency"`

	// SSHIdentity is the default private key file for ssh-transport Hosts
	// that don't set their own SSHIdentityFile (SSH_IDENTITY).
	SSHIdentity string `mapstructure:"ssh_identity"`
}

// defaults mirrors the Normalize step of the teacher's VMConfig: fill in
// sane values for anything the operator left unset, before Validate runs.
func defaults() map[string]any {
	return map[string]any{
		"store_path":            "/var/lib/vmcpd/store",
		"api_listen":            ":8443",
		"ws_listen":             ":8443",
		"default_vpc_cidr":      "10.0.0.0/24",
		"reconcile_workers":     4,
		"host_verb_concurrency": 4,
	}
}

// Load builds a Config from environment variables, an optional config file
// (if configPath is non-empty), and flags, with viper's normal layering:
// flags that were set win, then environment, then config file, then
// defaults. Environment variables are read verbatim uppercase
// (STORE_PATH, HOSTS_CONFIG, ...) rather than under a prefix, matching
// spec.md §6's Environment table exactly.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for key, val := range defaults() {
		v.SetDefault(key, val)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, name := range []string{
		"store_path", "hosts_config", "api_listen", "ws_listen",
		"public_ip_pool", "default_vpc_cidr", "reconcile_workers",
		"host_verb_concurrency", "ssh_identity",
	} {
		if err := v.BindEnv(name, strings.ToUpper(name)); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", name, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configPath, err)
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for errors, the way VMConfig.Validate
// checked one VM's config structure.
func (c *Config) Validate() error {
	if c.StorePath == "" {
		return fmt.Errorf("store_path is required")
	}
	if c.HostsConfig == "" {
		return fmt.Errorf("hosts_config is required")
	}
	if c.APIListen == "" {
		return fmt.Errorf("api_listen is required")
	}
	if c.WSListen == "" {
		return fmt.Errorf("ws_listen is required")
	}
	if c.PublicIPPool == "" {
		return fmt.Errorf("public_ip_pool is required")
	}
	if c.DefaultVPCCIDR == "" {
		return fmt.Errorf("default_vpc_cidr is required")
	}
	if c.ReconcileWorkers <= 0 {
		return fmt.Errorf("reconcile_workers must be > 0, got %d", c.ReconcileWorkers)
	}
	if c.HostVerbConcurrency <= 0 {
		return fmt.Errorf("host_verb_concurrency must be > 0, got %d", c.HostVerbConcurrency)
	}
	return nil
}
