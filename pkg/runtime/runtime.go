// Package runtime wraps the container runtime CLI (docker by default) as an
// opaque command-line tool: build, run, stop, remove, inspect, list, and the
// pod-<prefix> orphan sweep used for crash recovery.
package runtime

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/golang/glog"
)

const (
	defaultTimeout = 30 * time.Second
	buildTimeout   = 600 * time.Second
	stopTimeout    = 5 * time.Second
)

// CommandFailed wraps a non-zero exit from a runtime invocation.
type CommandFailed struct {
	Args   []string
	Stderr string
}

func (e *CommandFailed) Error() string {
	return fmt.Sprintf("runtime command %v failed: %s", e.Args, e.Stderr)
}

// BuildFailed wraps a failed image build, carrying the builder's output.
type BuildFailed struct {
	Output string
}

func (e *BuildFailed) Error() string {
	return fmt.Sprintf("image build failed: %s", e.Output)
}

// NotFound indicates the runtime reported no such container/resource.
type NotFound struct {
	ID string
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("container not found: %s", e.ID)
}

// Adapter invokes the container runtime CLI. It carries no state beyond the
// binary path and an environment overlay merged onto the ambient
// environment for every invocation.
type Adapter struct {
	ExecutablePath string
	Environment    map[string]string
}

// New returns an Adapter for the given runtime binary (e.g. "docker" or
// "podman"), merging env onto the ambient process environment for every
// command it runs.
func New(executablePath string, env map[string]string) *Adapter {
	if executablePath == "" {
		executablePath = "docker"
	}
	return &Adapter{ExecutablePath: executablePath, Environment: env}
}

func (a *Adapter) run(ctx context.Context, timeout time.Duration, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, a.ExecutablePath, args...)
	cmd.Env = a.mergedEnv()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		glog.Errorf("runtime command %s %v failed: %v: %s", a.ExecutablePath, args, err, stderr.String())
		return "", &CommandFailed{Args: args, Stderr: stderr.String()}
	}
	return strings.TrimSpace(stdout.String()), nil
}

func (a *Adapter) mergedEnv() []string {
	if len(a.Environment) == 0 {
		return nil
	}
	env := os.Environ()
	for k, v := range a.Environment {
		env = append(env, k+"="+v)
	}
	return env
}

// BuildImage builds tag from dockerfile/context, passing buildArgs as
// --build-arg KEY=VALUE pairs. Long-running: bounded by buildTimeout.
func (a *Adapter) BuildImage(ctx context.Context, dockerfile, buildContext, tag string, buildArgs map[string]string) error {
	args := []string{"build", "-t", tag, "-f", dockerfile}
	for k, v := range buildArgs {
		args = append(args, "--build-arg", fmt.Sprintf("%s=%s", k, v))
	}
	args = append(args, buildContext)

	glog.Infof("building image %s from %s", tag, dockerfile)
	if _, err := a.run(ctx, buildTimeout, args...); err != nil {
		var cmdErr *CommandFailed
		if ok := asCommandFailed(err, &cmdErr); ok {
			return &BuildFailed{Output: cmdErr.Stderr}
		}
		return &BuildFailed{Output: err.Error()}
	}
	return nil
}

func asCommandFailed(err error, target **CommandFailed) bool {
	cf, ok := err.(*CommandFailed)
	if ok {
		*target = cf
	}
	return ok
}

// RunContainer starts image detached as name, publishing hostPort:containerPort,
// and returns the runtime-assigned container id.
func (a *Adapter) RunContainer(ctx context.Context, image, name string, hostPort, containerPort int) (string, error) {
	args := []string{
		"run", "-d",
		"--name", name,
		"-p", fmt.Sprintf("%d:%d", hostPort, containerPort),
		image,
	}
	id, err := a.run(ctx, defaultTimeout, args...)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", &CommandFailed{Args: args, Stderr: "empty container id returned"}
	}
	return id, nil
}

// StopContainer gracefully stops id, with an in-runtime grace period.
// Returns a *NotFound if the runtime reports no such container.
func (a *Adapter) StopContainer(ctx context.Context, id string) error {
	_, err := a.run(ctx, defaultTimeout, "stop", "-t", fmt.Sprintf("%d", int(stopTimeout.Seconds())), id)
	return mapNotFound(id, err)
}

// RemoveContainer force-removes id. Returns a *NotFound if the runtime
// reports no such container.
func (a *Adapter) RemoveContainer(ctx context.Context, id string) error {
	_, err := a.run(ctx, defaultTimeout, "rm", "-f", id)
	return mapNotFound(id, err)
}

// GetContainerIP inspects id for its primary network address. Returns ""
// when no address is assigned (e.g. non-Linux hosts or bridge
// misconfiguration) rather than an error; returns a *NotFound if the
// runtime reports no such container.
func (a *Adapter) GetContainerIP(ctx context.Context, id string) (string, error) {
	out, err := a.run(ctx, defaultTimeout, "inspect", "-f", "{{range .NetworkSettings.Networks}}{{.IPAddress}}{{end}}", id)
	if err != nil {
		return "", mapNotFound(id, err)
	}
	return out, nil
}

// mapNotFound translates the runtime's "no such container" failure into a
// *NotFound, leaving every other error untouched.
func mapNotFound(id string, err error) error {
	var cmdErr *CommandFailed
	if asCommandFailed(err, &cmdErr) && strings.Contains(cmdErr.Stderr, "No such container") {
		return &NotFound{ID: id}
	}
	return err
}

// IsRunning inspects id's state. Any inspect error (including not-found)
// collapses to false rather than propagating.
func (a *Adapter) IsRunning(ctx context.Context, id string) bool {
	out, err := a.run(ctx, defaultTimeout, "inspect", "-f", "{{.State.Running}}", id)
	if err != nil {
		return false
	}
	return out == "true"
}

// ListContainers returns the ids of containers whose name begins with
// namePrefix.
func (a *Adapter) ListContainers(ctx context.Context, namePrefix string) ([]string, error) {
	out, err := a.run(ctx, defaultTimeout, "ps", "-a", "--filter", "name=^"+namePrefix, "--format", "{{.ID}}")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// CleanupOrphans force-removes every container named pod-*, recovering from
// a previous crash of this process. It is idempotent: a second call against
// a clean state removes nothing.
func (a *Adapter) CleanupOrphans(ctx context.Context) error {
	ids, err := a.ListContainers(ctx, "pod-")
	if err != nil {
		return err
	}
	for _, id := range ids {
		glog.Infof("removing orphan container %s", id)
		if err := a.RemoveContainer(ctx, id); err != nil {
			glog.Warningf("failed to remove orphan container %s: %v", id, err)
		}
	}
	return nil
}
