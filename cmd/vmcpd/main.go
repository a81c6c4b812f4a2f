// Command vmcpd is the control plane daemon: it opens the embedded store,
// registers the configured Hosts, wires the Reconciler, Migration
// Coordinator, and Console Hub to the Driver resolver, and serves the HTTP
// and WebSocket API until told to stop.
package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/coreforge/vmcp/api/v1alpha1"
	"github.com/coreforge/vmcp/internal/api"
	"github.com/coreforge/vmcp/internal/config"
	"github.com/coreforge/vmcp/internal/console"
	"github.com/coreforge/vmcp/internal/driver"
	"github.com/coreforge/vmcp/internal/driver/local"
	"github.com/coreforge/vmcp/internal/driver/ssh"
	"github.com/coreforge/vmcp/internal/entitystore"
	"github.com/coreforge/vmcp/internal/hostregistry"
	"github.com/coreforge/vmcp/internal/ipam"
	"github.com/coreforge/vmcp/internal/migration"
	"github.com/coreforge/vmcp/internal/reconciler"
	"github.com/coreforge/vmcp/internal/store"
)

var (
	version = "dev"
	commit  = "unknown"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vmcpd",
	Short: "vmcpd - the vmcp control plane daemon",
	Long: `vmcpd owns the embedded store, the hypervisor Host registry, the VM
reconciliation loop, live migration, and serial console fan-out, and
exposes them over an HTTP and WebSocket API for vmcpctl and other clients.`,
	Version: fmt.Sprintf("%s (commit: %s)", version, commit),
	RunE:    runServe,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to a vmcpd config file (optional, env vars and flags also apply)")
	bindConfigFlags(rootCmd.Flags())
}

// bindConfigFlags registers the flag form of every config.Config field, so
// a flag always outranks its env var and config-file counterpart per
// config.Load's precedence order.
func bindConfigFlags(flags *pflag.FlagSet) {
	flags.String("store_path", "", "directory backing the embedded store")
	flags.String("hosts_config", "", "YAML file of Host entities to register at startup")
	flags.String("api_listen", "", "HTTP API listen address")
	flags.String("ws_listen", "", "console WebSocket listen address (validated only; /ws is served on api_listen)")
	flags.String("public_ip_pool", "", "CIDR administrators draw floating IPs from")
	flags.String("default_vpc_cidr", "", "default VPC CIDR (validated only; VPC creation requires an explicit cidr)")
	flags.Int("reconcile_workers", 0, "Reconciler worker-pool size")
	flags.Int("host_verb_concurrency", 0, "max concurrent Driver verbs per host")
	flags.String("ssh_identity", "", "default private key file for ssh-transport Hosts")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck
	zap.ReplaceGlobals(logger)
	sugar := logger.Sugar()

	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	hosts := hostregistry.New(st)
	hostList, err := config.LoadHosts(cfg.HostsConfig)
	if err != nil {
		return fmt.Errorf("load hosts config: %w", err)
	}
	for _, h := range hostList {
		if err := hosts.Register(h); err != nil {
			return fmt.Errorf("register host %s: %w", h.Name, err)
		}
		sugar.Infow("registered host", "host", h.Name, "transport", h.Spec.Transport, "address", h.Spec.Address)
	}

	resolver := newDriverResolver(cfg)

	vms := entitystore.New[v1alpha1.VirtualMachine](st, "/vm/")
	vpcs := entitystore.New[v1alpha1.VPC](st, "/vpc/")
	subnets := entitystore.New[v1alpha1.Subnet](st, "/subnet/")
	firewallRules := entitystore.New[v1alpha1.FirewallRule](st, "/firewall-rule/")
	disks := entitystore.New[v1alpha1.Disk](st, "/disk/")
	images := entitystore.New[v1alpha1.Image](st, "/image/")
	floatingIPs := entitystore.New[v1alpha1.FloatingIP](st, "/floating-ip/")
	migrations := entitystore.New[v1alpha1.Migration](st, "/migration/")

	vpcIPs := ipam.NewVPCAllocator(st)
	publicIPs := ipam.NewPublicAllocator(st)

	rec := reconciler.New(cfg.ReconcileWorkers, cfg.HostVerbConcurrency, resolver)
	rec.VMs = vms
	rec.VPCs = vpcs
	rec.Subnets = subnets
	rec.Images = images
	rec.Disks = disks
	rec.Hosts = hosts
	rec.VPCIPs = vpcIPs
	rec.PublicIPs = publicIPs
	defer rec.Close()

	migrator := migration.New(vms, migrations, vpcs, images, hosts, migration.DriverResolver(resolver))

	hub := console.NewHub(func(ctx context.Context, host *v1alpha1.Host, vmName string) (driver.ConsoleStream, error) {
		drv, err := resolver(host)
		if err != nil {
			return nil, err
		}
		return drv.OpenSerialConsole(ctx, host, vmName)
	})

	signingKey := make([]byte, 32)
	if _, err := rand.Read(signingKey); err != nil {
		return fmt.Errorf("generate console signing key: %w", err)
	}

	handler := &api.Handler{
		VMs:           vms,
		VPCs:          vpcs,
		Subnets:       subnets,
		FirewallRules: firewallRules,
		Disks:         disks,
		Images:        images,
		FloatingIPs:   floatingIPs,
		Migrations:    migrations,

		Hosts:     hosts,
		VPCIPs:    vpcIPs,
		PublicIPs: publicIPs,

		Reconciler: rec,
		Migrator:   migrator,
		Console:    hub,
		DriverFor:  resolver,

		ConsoleSigningKey: signingKey,
		Logger:            sugar.Named("handler"),
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go vpcIPs.RunSweeper(sweepCtx, time.Minute)
	go publicIPs.RunSweeper(sweepCtx, time.Minute)

	srv := api.NewServer(cfg.APIListen, handler, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
		sugar.Infow("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

// newLogger builds the daemon's zap.Logger: JSON production encoding with
// RFC3339 timestamps, matching ginzap's own timestamp format so API access
// logs and application logs line up in one stream.
func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	return cfg.Build()
}

// newDriverResolver closes over cfg.SSHIdentity so an ssh-transport Host
// that doesn't set its own SSHIdentityFile falls back to the daemon-wide
// default.
func newDriverResolver(cfg *config.Config) reconciler.DriverResolver {
	localDriver := local.New("")

	return func(host *v1alpha1.Host) (driver.Capability, error) {
		switch host.Spec.Transport {
		case "local":
			return localDriver, nil
		case "ssh":
			h := host
			if h.Spec.SSHIdentityFile == "" && cfg.SSHIdentity != "" {
				clone := *h
				clone.Spec.SSHIdentityFile = cfg.SSHIdentity
				h = &clone
			}
			return ssh.New(h)
		default:
			return nil, fmt.Errorf("host %s: unknown transport %q", host.Name, host.Spec.Transport)
		}
	}
}
