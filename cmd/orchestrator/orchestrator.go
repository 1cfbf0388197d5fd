package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/david-vos/myloadbalancer/pkg/admin"
	"github.com/david-vos/myloadbalancer/pkg/config"
	"github.com/david-vos/myloadbalancer/pkg/dispatch"
	"github.com/david-vos/myloadbalancer/pkg/health"
	"github.com/david-vos/myloadbalancer/pkg/lifecycle"
	"github.com/david-vos/myloadbalancer/pkg/proxy"
	"github.com/david-vos/myloadbalancer/pkg/registry"
	"github.com/david-vos/myloadbalancer/pkg/release"
	"github.com/david-vos/myloadbalancer/pkg/runtime"
	"github.com/david-vos/myloadbalancer/pkg/server"
	"github.com/david-vos/myloadbalancer/pkg/supervisor"
)

const orchestratorLong = `
Start the myloadbalancer orchestrator.

This process launches and supervises a deployment's container instances,
continuously verifies their health, rolls out new versions when an
upstream release appears, and reverse-proxies inbound HTTP traffic to the
currently healthy instances.`

// Options holds the flags bound by NewCommand.
type Options struct {
	Strategy   string
	ConfigPath string
	Port       int
	DockerPath string
}

// Bind binds Options to flag, following the same Options.Bind(*pflag.FlagSet)
// shape the teacher's siteagent command uses.
func (o *Options) Bind(flag *pflag.FlagSet) {
	flag.StringVar(&o.Strategy, "strategy", string(dispatch.RoundRobin), "Balancing strategy: round-robin, random, or least-connections")
	flag.StringVar(&o.ConfigPath, "config", "", "Path to the orchestrator's JSON config file (overrides the default search path)")
	flag.IntVar(&o.Port, "port", 0, "Override the configured HTTP listen port")
	flag.StringVar(&o.DockerPath, "docker-path", "", "Override the configured container runtime executable path")
}

// NewCommand builds the orchestrator's root cobra command.
func NewCommand(name string) *cobra.Command {
	opts := &Options{}

	cmd := &cobra.Command{
		Use:   name,
		Short: "Start the myloadbalancer orchestrator",
		Long:  orchestratorLong,
		RunE: func(c *cobra.Command, args []string) error {
			return run(opts)
		},
	}

	opts.Bind(cmd.Flags())

	cmd.AddCommand(newStatusCommand())

	return cmd
}

func run(opts *Options) error {
	if opts.ConfigPath != "" {
		config.SearchPaths = []string{opts.ConfigPath}
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if opts.Port != 0 {
		cfg.Server.Port = opts.Port
	}
	if opts.DockerPath != "" {
		cfg.Docker.ExecutablePath = opts.DockerPath
	}

	spec := specFromConfig(cfg)

	reg := registry.New(9000)
	rt := runtime.New(cfg.Docker.ExecutablePath, cfg.Docker.Environment)
	prober := health.New()
	poller := release.New()

	sup := supervisor.New(reg, rt, prober, poller)
	lc := lifecycle.New(sup, rt)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := lc.Start(ctx, spec); err != nil {
		return fmt.Errorf("startup: deploy %s: %w", spec.Name, err)
	}

	dispatcher := dispatch.New(reg, dispatch.Strategy(opts.Strategy))
	adminHandler := admin.New(reg)
	proxyHandler := proxy.New(dispatcher, spec.Name)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := server.New(addr, adminHandler, proxyHandler)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err.Error() != "http: Server closed" {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-sigCh:
		glog.Info("shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	srv.Shutdown(shutdownCtx)
	lc.Stop(shutdownCtx)

	return nil
}

func specFromConfig(cfg *config.Config) registry.DeploymentSpec {
	d := cfg.Deployment
	return registry.DeploymentSpec{
		Name:                d.Name,
		Image:               d.Image,
		Dockerfile:          d.Dockerfile,
		Context:             d.Context,
		Replicas:            d.Replicas,
		ContainerPort:       d.ContainerPort,
		HealthCheckPath:     d.HealthCheckPath,
		HealthCheckInterval: d.HealthCheckIntervalDuration(),
		RemoteURL:           d.RemoteURL,
	}
}
