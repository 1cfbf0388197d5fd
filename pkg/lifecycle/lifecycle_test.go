package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/david-vos/myloadbalancer/pkg/registry"
	"github.com/david-vos/myloadbalancer/pkg/release"
	"github.com/david-vos/myloadbalancer/pkg/supervisor"
)

type fakeOrphaner struct {
	called int
	err    error
}

func (f *fakeOrphaner) CleanupOrphans(ctx context.Context) error {
	f.called++
	return f.err
}

type noopRuntime struct{}

func (noopRuntime) BuildImage(ctx context.Context, dockerfile, buildContext, tag string, buildArgs map[string]string) error {
	return nil
}
func (noopRuntime) RunContainer(ctx context.Context, image, name string, hostPort, containerPort int) (string, error) {
	return "container-id", nil
}
func (noopRuntime) StopContainer(ctx context.Context, id string) error   { return nil }
func (noopRuntime) RemoveContainer(ctx context.Context, id string) error { return nil }
func (noopRuntime) GetContainerIP(ctx context.Context, id string) (string, error) {
	return "10.0.0.1", nil
}
func (noopRuntime) CleanupOrphans(ctx context.Context) error { return nil }

type alwaysHealthyProber struct{}

func (alwaysHealthyProber) Check(ctx context.Context, host string, port int, path string) bool {
	return true
}

type noopReleaser struct{}

func (noopReleaser) GetLatest(ctx context.Context, remoteURL string) *release.Release {
	return nil
}

func (noopReleaser) CheckForUpdate(ctx context.Context, remoteURL, currentVersion string) *release.Release {
	return nil
}

func TestStartSweepsOrphansBeforeDeploying(t *testing.T) {
	reg := registry.New(9000)
	sup := supervisor.New(reg, noopRuntime{}, alwaysHealthyProber{}, noopReleaser{})
	orphaner := &fakeOrphaner{}
	lc := New(sup, orphaner)

	spec := registry.DeploymentSpec{Name: "web", Image: "nginx:alpine", Replicas: 1, ContainerPort: 8080}
	if err := lc.Start(context.Background(), spec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if orphaner.called != 1 {
		t.Errorf("expected orphan cleanup to run once, got %d", orphaner.called)
	}
	if len(reg.RunningPods()) != 1 {
		t.Errorf("expected 1 running pod, got %d", len(reg.RunningPods()))
	}

	lc.Stop(context.Background())
}

func TestStartProceedsDespiteOrphanCleanupFailure(t *testing.T) {
	reg := registry.New(9000)
	sup := supervisor.New(reg, noopRuntime{}, alwaysHealthyProber{}, noopReleaser{})
	orphaner := &fakeOrphaner{err: errors.New("docker not reachable")}
	lc := New(sup, orphaner)

	spec := registry.DeploymentSpec{Name: "web", Image: "nginx:alpine", Replicas: 1, ContainerPort: 8080}
	if err := lc.Start(context.Background(), spec); err != nil {
		t.Fatalf("expected orphan cleanup failure to be non-fatal, got %v", err)
	}

	lc.Stop(context.Background())
}
