// Package supervisor runs the health tick loop, throttled release sweep,
// and rolling-update driver over a deployment's pods.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/david-vos/myloadbalancer/pkg/registry"
	"github.com/david-vos/myloadbalancer/pkg/release"
)

const (
	tickInterval          = 10 * time.Second
	releaseCheckInterval  = 120 * time.Second
	maxHealthFailures     = 3
	waitForHealthyTimeout = 60 * time.Second
	waitForHealthyPoll    = 2 * time.Second
	rollingUpdatePacing   = 2 * time.Second
	shutdownTimeout       = 30 * time.Second
)

// Runtime is the subset of runtime.Adapter the supervisor needs, accepted
// as an interface so tests can substitute a fake.
type Runtime interface {
	BuildImage(ctx context.Context, dockerfile, buildContext, tag string, buildArgs map[string]string) error
	RunContainer(ctx context.Context, image, name string, hostPort, containerPort int) (string, error)
	StopContainer(ctx context.Context, id string) error
	RemoveContainer(ctx context.Context, id string) error
	GetContainerIP(ctx context.Context, id string) (string, error)
	CleanupOrphans(ctx context.Context) error
}

// Prober is the subset of health.Prober the supervisor needs.
type Prober interface {
	Check(ctx context.Context, host string, port int, path string) bool
}

// Releaser is the subset of release.Poller the supervisor needs.
type Releaser interface {
	GetLatest(ctx context.Context, remoteURL string) *release.Release
	CheckForUpdate(ctx context.Context, remoteURL, currentVersion string) *release.Release
}

// Supervisor owns the long-lived health tick loop and drives deploys,
// replacements, and rolling updates over the shared registry.
type Supervisor struct {
	registry *registry.Registry
	runtime  Runtime
	prober   Prober
	releaser Releaser

	loopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

// New returns a Supervisor over the given collaborators.
func New(reg *registry.Registry, rt Runtime, prober Prober, releaser Releaser) *Supervisor {
	return &Supervisor{
		registry: reg,
		runtime:  rt,
		prober:   prober,
		releaser: releaser,
		done:     make(chan struct{}),
	}
}

// Deploy registers spec, resolves its current release version if tracked,
// builds its image if needed, starts its replicas, and starts the health
// tick loop on first use.
func (s *Supervisor) Deploy(ctx context.Context, spec registry.DeploymentSpec) error {
	s.registry.RegisterDeployment(spec)

	version := ""
	if spec.RemoteURL != "" {
		latest := s.releaser.GetLatest(ctx, spec.RemoteURL)
		if latest == nil {
			glog.Warningf("deploy %s: could not resolve initial release version, proceeding as unknown", spec.Name)
			version = "unknown"
		} else {
			version = latest.TagName
		}
	}
	s.registry.SetCurrentVersion(spec.Name, version)

	if spec.NeedsBuild() {
		buildArgs := map[string]string{}
		if version != "" {
			buildArgs["RELEASE_VERSION"] = version
		}
		if err := s.runtime.BuildImage(ctx, spec.Dockerfile, spec.Context, spec.ResolvedImage(), buildArgs); err != nil {
			return fmt.Errorf("deploy %s: build failed: %w", spec.Name, err)
		}
	}

	for i := 0; i < spec.Replicas; i++ {
		if _, err := s.startPod(ctx, spec, version); err != nil {
			glog.Errorf("deploy %s: failed to start pod %d/%d: %v", spec.Name, i+1, spec.Replicas, err)
		}
	}

	s.loopOnce.Do(func() {
		loopCtx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		go s.healthTickLoop(loopCtx)
	})

	return nil
}

// startPod allocates a host port, runs a new container for spec, and
// inserts it into the registry as running. Only the run step can fail; once
// the container exists, a failed IP lookup is logged and the pod is still
// recorded (falling back to its host port), so no container is left
// untracked.
func (s *Supervisor) startPod(ctx context.Context, spec registry.DeploymentSpec, version string) (*registry.Pod, error) {
	pod := &registry.Pod{
		ID:             uuid.NewString(),
		DeploymentName: spec.Name,
		Image:          spec.ResolvedImage(),
		ContainerPort:  spec.ContainerPort,
		HostPort:       s.registry.NextPort(),
		Status:         registry.PodPending,
		ReleaseVersion: version,
		CreatedAt:      time.Now(),
	}

	containerID, err := s.runtime.RunContainer(ctx, pod.Image, pod.Name(), pod.HostPort, pod.ContainerPort)
	if err != nil {
		return nil, fmt.Errorf("starting pod for %s: %w", spec.Name, err)
	}
	pod.ContainerID = containerID

	ip, err := s.runtime.GetContainerIP(ctx, containerID)
	if err != nil {
		glog.Warningf("pod %s: could not resolve container ip: %v", pod.Name(), err)
	} else {
		pod.ContainerIP = ip
	}

	pod.Status = registry.PodRunning
	s.registry.Insert(pod)
	glog.Infof("pod %s started for deployment %s (container %s)", pod.Name(), spec.Name, containerID)
	return pod, nil
}

// healthTickLoop fires every tickInterval until ctx is cancelled, running a
// throttled release sweep and a health pass over every running pod each
// tick.
func (s *Supervisor) healthTickLoop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
			if ctx.Err() != nil {
				return
			}
		}
	}
}

func (s *Supervisor) tick(ctx context.Context) {
	if s.registry.DueForReleaseCheck(time.Now(), releaseCheckInterval) {
		s.releaseSweep(ctx)
	}

	for _, pod := range s.registry.RunningPods() {
		if ctx.Err() != nil {
			return
		}
		s.probeOne(ctx, pod)
	}
}

func (s *Supervisor) probeOne(ctx context.Context, pod registry.Pod) {
	host := "127.0.0.1"
	port := pod.HostPort
	if pod.ContainerIP != "" {
		host = pod.ContainerIP
		port = pod.ContainerPort
	}

	spec, ok := s.registry.DeploymentSpec(pod.DeploymentName)
	path := "/health"
	if ok {
		path = spec.HealthCheckPath
	}

	if s.prober.Check(ctx, host, port, path) {
		s.registry.ResetFailures(pod.ID)
		return
	}

	failures := s.registry.IncrementFailures(pod.ID)
	if failures >= maxHealthFailures {
		s.replace(ctx, pod)
	}
}

// replace starts a fresh pod at the same version as pod; if it becomes
// healthy within waitForHealthyTimeout, the old pod is terminated. If not,
// the new pod is terminated and the old pod is left in place to be
// reconsidered on the next tick.
func (s *Supervisor) replace(ctx context.Context, pod registry.Pod) {
	spec, ok := s.registry.DeploymentSpec(pod.DeploymentName)
	if !ok {
		glog.Errorf("replace: unknown deployment %s for pod %s", pod.DeploymentName, pod.Name())
		return
	}

	newPod, err := s.startPod(ctx, spec, pod.ReleaseVersion)
	if err != nil {
		glog.Errorf("replace: failed to start replacement for %s: %v", pod.Name(), err)
		return
	}

	if s.waitForPodHealthy(ctx, newPod, waitForHealthyTimeout) {
		s.terminate(ctx, pod)
		glog.Infof("replace: %s replaced unhealthy pod %s", newPod.Name(), pod.Name())
	} else {
		s.terminate(ctx, *newPod)
		glog.Warningf("replace: replacement %s for %s never became healthy, keeping original", newPod.Name(), pod.Name())
	}
}

// waitForPodHealthy polls the prober at waitForHealthyPoll intervals until
// pod answers healthy or timeout elapses.
func (s *Supervisor) waitForPodHealthy(ctx context.Context, pod *registry.Pod, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	host := "127.0.0.1"
	port := pod.HostPort
	if pod.ContainerIP != "" {
		host = pod.ContainerIP
		port = pod.ContainerPort
	}

	spec, ok := s.registry.DeploymentSpec(pod.DeploymentName)
	path := "/health"
	if ok {
		path = spec.HealthCheckPath
	}

	for {
		if s.prober.Check(ctx, host, port, path) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(waitForHealthyPoll):
		}
	}
}

// terminate transitions pod to terminating, best-effort stops and removes
// its container, marks it terminated, then removes it from the registry.
func (s *Supervisor) terminate(ctx context.Context, pod registry.Pod) {
	s.registry.UpdateStatus(pod.ID, registry.PodTerminating)

	if pod.ContainerID != "" {
		if err := s.runtime.StopContainer(ctx, pod.ContainerID); err != nil {
			glog.Warningf("terminate %s: stop failed: %v", pod.Name(), err)
		}
		if err := s.runtime.RemoveContainer(ctx, pod.ContainerID); err != nil {
			glog.Warningf("terminate %s: remove failed: %v", pod.Name(), err)
		}
	}

	s.registry.UpdateStatus(pod.ID, registry.PodTerminated)
	s.registry.Remove(pod.ID)
}

// releaseSweep checks every deployment with a tracked remote URL and no
// active rolling update for a newer release, and drives an update when one
// is found.
func (s *Supervisor) releaseSweep(ctx context.Context) {
	for _, name := range s.registry.DeploymentNames() {
		spec, ok := s.registry.DeploymentSpec(name)
		if !ok || spec.RemoteURL == "" {
			continue
		}
		if s.registry.RollingUpdateActive(name) {
			continue
		}

		current := s.registry.CurrentVersion(name)
		latest := s.releaser.CheckForUpdate(ctx, spec.RemoteURL, current)
		if latest == nil {
			continue
		}

		glog.Infof("release sweep: %s has new release %s (was %s)", name, latest.TagName, current)
		s.PerformRollingUpdate(ctx, name, latest.TagName)
	}
}

// PerformRollingUpdate replaces every running pod of deployment name with a
// pod at newVersion, one at a time, preserving traffic continuity: each new
// pod must become healthy before its predecessor is terminated. At most one
// rolling update runs per deployment at a time.
func (s *Supervisor) PerformRollingUpdate(ctx context.Context, name, newVersion string) {
	if !s.registry.TryStartRollingUpdate(name) {
		glog.Infof("rolling update for %s already in progress, skipping", name)
		return
	}
	defer s.registry.ClearRollingUpdate(name)

	spec, ok := s.registry.DeploymentSpec(name)
	if !ok {
		glog.Errorf("rolling update: unknown deployment %s", name)
		return
	}

	currentPods := s.registry.HealthyPods(name)

	if spec.NeedsBuild() {
		buildArgs := map[string]string{"RELEASE_VERSION": newVersion}
		if err := s.runtime.BuildImage(ctx, spec.Dockerfile, spec.Context, spec.ResolvedImage(), buildArgs); err != nil {
			glog.Errorf("rolling update %s -> %s: build failed: %v", name, newVersion, err)
			return
		}
	}

	s.registry.SetCurrentVersion(name, newVersion)

	if len(currentPods) == 0 {
		for i := 0; i < spec.Replicas; i++ {
			if _, err := s.startPod(ctx, spec, newVersion); err != nil {
				glog.Errorf("rolling update %s: fresh start %d/%d failed: %v", name, i+1, spec.Replicas, err)
			}
		}
		return
	}

	for _, old := range currentPods {
		if ctx.Err() != nil {
			return
		}

		newPod, err := s.startPod(ctx, spec, newVersion)
		if err != nil {
			glog.Errorf("rolling update %s: failed to start replacement for %s: %v", name, old.Name(), err)
			continue
		}

		if s.waitForPodHealthy(ctx, newPod, waitForHealthyTimeout) {
			s.terminate(ctx, old)
			glog.Infof("rolling update %s: %s replaced %s", name, newPod.Name(), old.Name())
		} else {
			s.terminate(ctx, *newPod)
			glog.Warningf("rolling update %s: replacement for %s never became healthy, keeping original", name, old.Name())
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(rollingUpdatePacing):
		}
	}
}

// Shutdown cancels the health tick loop, then stops and removes every pod
// in the registry. Both phases together are bounded by a single
// shutdownTimeout window, not one each.
func (s *Supervisor) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if s.cancel != nil {
		s.cancel()
		select {
		case <-s.done:
		case <-ctx.Done():
			glog.Warningf("shutdown: health tick loop did not stop within %s", shutdownTimeout)
		}
	}

	for _, pod := range s.registry.AllPods() {
		s.terminate(ctx, pod)
	}
}
