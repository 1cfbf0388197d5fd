package main

import (
	"testing"

	"github.com/spf13/pflag"

	"github.com/david-vos/myloadbalancer/pkg/config"
)

func TestOptionsBindRegistersAllFlags(t *testing.T) {
	opts := &Options{}
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	opts.Bind(flags)

	for _, name := range []string{"strategy", "config", "port", "docker-path"} {
		if flags.Lookup(name) == nil {
			t.Errorf("expected --%s to be registered", name)
		}
	}
}

func TestOptionsBindDefaults(t *testing.T) {
	opts := &Options{}
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	opts.Bind(flags)

	if opts.Strategy != "round-robin" {
		t.Errorf("expected default strategy round-robin, got %s", opts.Strategy)
	}
	if opts.ConfigPath != "" {
		t.Errorf("expected empty default config path, got %s", opts.ConfigPath)
	}
	if opts.Port != 0 {
		t.Errorf("expected default port 0, got %d", opts.Port)
	}
	if opts.DockerPath != "" {
		t.Errorf("expected empty default docker path, got %s", opts.DockerPath)
	}
}

func TestOptionsBindParsesOverrides(t *testing.T) {
	opts := &Options{}
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	opts.Bind(flags)

	err := flags.Parse([]string{
		"--strategy=least-connections",
		"--config=/etc/myloadbalancer/config.json",
		"--port=9090",
		"--docker-path=/usr/local/bin/podman",
	})
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	if opts.Strategy != "least-connections" {
		t.Errorf("expected least-connections, got %s", opts.Strategy)
	}
	if opts.ConfigPath != "/etc/myloadbalancer/config.json" {
		t.Errorf("expected config path override, got %s", opts.ConfigPath)
	}
	if opts.Port != 9090 {
		t.Errorf("expected port 9090, got %d", opts.Port)
	}
	if opts.DockerPath != "/usr/local/bin/podman" {
		t.Errorf("expected docker path override, got %s", opts.DockerPath)
	}
}

func TestNewCommandRegistersStatusSubcommand(t *testing.T) {
	cmd := NewCommand("orchestrator")

	found := false
	for _, sub := range cmd.Commands() {
		if sub.Name() == "status" {
			found = true
		}
	}
	if !found {
		t.Error("expected status subcommand to be registered")
	}
}

func TestRunAppliesConfigPathOverride(t *testing.T) {
	original := config.SearchPaths
	defer func() { config.SearchPaths = original }()

	opts := &Options{ConfigPath: "/nonexistent/path/config.json"}

	// run() fails fast on config.Load() once SearchPaths is pointed at a
	// single nonexistent file, proving the override took effect without
	// needing a full server lifecycle.
	err := run(opts)
	if err == nil {
		t.Fatal("expected an error loading a nonexistent config path")
	}
	if len(config.SearchPaths) != 1 || config.SearchPaths[0] != opts.ConfigPath {
		t.Errorf("expected SearchPaths to be overridden to [%s], got %v", opts.ConfigPath, config.SearchPaths)
	}
}
