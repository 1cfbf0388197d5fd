// Package registry holds the in-process pod table: the set of deployments
// this orchestrator manages and the containers it has launched for them.
package registry

import (
	"fmt"
	"sync"
	"time"
)

// PodStatus is the lifecycle state of a single pod.
type PodStatus string

const (
	PodPending     PodStatus = "pending"
	PodRunning     PodStatus = "running"
	PodUnhealthy   PodStatus = "unhealthy"
	PodTerminating PodStatus = "terminating"
	PodTerminated  PodStatus = "terminated"
)

// DeploymentSpec is the immutable desired-state declaration for a deployment.
type DeploymentSpec struct {
	Name                 string
	Image                string
	Dockerfile           string
	Context              string
	Replicas             int
	ContainerPort        int
	HealthCheckPath      string
	HealthCheckInterval  time.Duration
	RemoteURL            string
}

// NeedsBuild reports whether the deployment builds its own image.
func (s *DeploymentSpec) NeedsBuild() bool {
	return s.Dockerfile != ""
}

// ResolvedImage returns the image this deployment runs, building the
// local-build tag convention when no image is given directly.
func (s *DeploymentSpec) ResolvedImage() string {
	if s.Image != "" {
		return s.Image
	}
	return s.Name + ":local"
}

// Pod is a single container instance plus orchestrator bookkeeping.
type Pod struct {
	ID                  string
	DeploymentName      string
	Image               string
	ContainerPort       int
	HostPort            int
	ContainerID         string
	ContainerIP         string
	Status              PodStatus
	HealthCheckFailures int
	ReleaseVersion      string
	CreatedAt           time.Time
}

// Name derives this pod's container name from its id, per the pod-<8 chars>
// naming convention cleanupOrphans relies on at startup.
func (p *Pod) Name() string {
	return ContainerName(p.ID)
}

// ContainerName derives the pod-<8 chars> container name from a pod id.
func ContainerName(id string) string {
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return "pod-" + short
}

// HostAddress returns the reachable address for this pod: the container's
// own IP when known, else the loopback host port mapping.
func (p *Pod) HostAddress() string {
	if p.ContainerIP != "" {
		return fmt.Sprintf("%s:%d", p.ContainerIP, p.ContainerPort)
	}
	return fmt.Sprintf("127.0.0.1:%d", p.HostPort)
}

// PodInfo is the slimmed-down view of a pod returned by allPodsInfo and the
// admin endpoint.
type PodInfo struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Status  PodStatus `json:"status"`
	Version string    `json:"version"`
}

// DeploymentState tracks the spec, current release version, and
// rolling-update activity of one deployment.
type DeploymentState struct {
	Spec                 DeploymentSpec
	CurrentVersion       string
	RollingUpdateActive  bool
}

// Registry is the single in-memory owner of pods and deployment state. All
// reads and writes serialize through mu; callers must never hold it across
// blocking I/O (container CLI calls, HTTP probes, sleeps).
type Registry struct {
	mu          sync.Mutex
	pods        map[string]*Pod
	deployments map[string]*DeploymentState
	nextPort    int
	lastReleaseCheck time.Time
}

// New returns an empty registry with host ports allocated starting at
// startPort (spec default 9000).
func New(startPort int) *Registry {
	return &Registry{
		pods:        make(map[string]*Pod),
		deployments: make(map[string]*DeploymentState),
		nextPort:    startPort,
	}
}

// NextPort allocates the next monotonic host port.
func (r *Registry) NextPort() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.nextPort
	r.nextPort++
	return p
}

// RegisterDeployment inserts or replaces the spec for name without
// disturbing its current version or rolling-update flag.
func (r *Registry) RegisterDeployment(spec DeploymentSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.deployments[spec.Name]
	if !ok {
		r.deployments[spec.Name] = &DeploymentState{Spec: spec}
		return
	}
	state.Spec = spec
}

// DeploymentSpec returns the spec registered for name.
func (r *Registry) DeploymentSpec(name string) (DeploymentSpec, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.deployments[name]
	if !ok {
		return DeploymentSpec{}, false
	}
	return state.Spec, true
}

// SetCurrentVersion records the deployment's latest known release version.
func (r *Registry) SetCurrentVersion(name, version string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state, ok := r.deployments[name]; ok {
		state.CurrentVersion = version
	}
}

// CurrentVersion returns the deployment's last recorded release version.
func (r *Registry) CurrentVersion(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state, ok := r.deployments[name]; ok {
		return state.CurrentVersion
	}
	return ""
}

// TryStartRollingUpdate atomically sets the rolling-update flag for name if
// it is not already set, returning whether it acquired the flag.
func (r *Registry) TryStartRollingUpdate(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.deployments[name]
	if !ok || state.RollingUpdateActive {
		return false
	}
	state.RollingUpdateActive = true
	return true
}

// ClearRollingUpdate clears the rolling-update flag for name.
func (r *Registry) ClearRollingUpdate(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state, ok := r.deployments[name]; ok {
		state.RollingUpdateActive = false
	}
}

// RollingUpdateActive reports whether name currently has an active rolling
// update.
func (r *Registry) RollingUpdateActive(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state, ok := r.deployments[name]; ok {
		return state.RollingUpdateActive
	}
	return false
}

// DeploymentNames returns every registered deployment name.
func (r *Registry) DeploymentNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.deployments))
	for n := range r.deployments {
		names = append(names, n)
	}
	return names
}

// Insert adds a new pod record. Callers must have already assigned it a
// unique id and host port.
func (r *Registry) Insert(pod *Pod) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pods[pod.ID] = pod
}

// Remove deletes a pod record.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pods, id)
}

// Get returns a copy of the pod with the given id.
func (r *Registry) Get(id string) (Pod, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pods[id]
	if !ok {
		return Pod{}, false
	}
	return *p, true
}

// UpdateStatus transitions a pod's status in place.
func (r *Registry) UpdateStatus(id string, status PodStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.pods[id]; ok {
		p.Status = status
	}
}

// UpdateContainerID records the container id assigned after a successful run.
func (r *Registry) UpdateContainerID(id, containerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.pods[id]; ok {
		p.ContainerID = containerID
	}
}

// UpdateContainerIP records the container's network address after inspect.
func (r *Registry) UpdateContainerIP(id, ip string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.pods[id]; ok {
		p.ContainerIP = ip
	}
}

// IncrementFailures bumps a pod's health-check failure counter and returns
// the new value.
func (r *Registry) IncrementFailures(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pods[id]
	if !ok {
		return 0
	}
	p.HealthCheckFailures++
	return p.HealthCheckFailures
}

// ResetFailures clears a pod's health-check failure counter.
func (r *Registry) ResetFailures(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.pods[id]; ok {
		p.HealthCheckFailures = 0
	}
}

// AllPods returns a snapshot of every pod in the registry.
func (r *Registry) AllPods() []Pod {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Pod, 0, len(r.pods))
	for _, p := range r.pods {
		out = append(out, *p)
	}
	return out
}

// RunningPods returns a snapshot of every pod across all deployments whose
// status is running.
func (r *Registry) RunningPods() []Pod {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Pod
	for _, p := range r.pods {
		if p.Status == PodRunning {
			out = append(out, *p)
		}
	}
	return out
}

// HealthyPods returns the pods of deployment name currently in running
// status — the dispatcher's candidate set.
func (r *Registry) HealthyPods(name string) []Pod {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Pod
	for _, p := range r.pods {
		if p.DeploymentName == name && p.Status == PodRunning {
			out = append(out, *p)
		}
	}
	return out
}

// PodCountsByVersion tallies running pods of deployment name by release
// version.
func (r *Registry) PodCountsByVersion(name string) map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int)
	for _, p := range r.pods {
		if p.DeploymentName == name && p.Status == PodRunning {
			counts[p.ReleaseVersion]++
		}
	}
	return counts
}

// AllPodCountsByVersion tallies running pods by version for every
// deployment.
func (r *Registry) AllPodCountsByVersion() map[string]map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]map[string]int)
	for _, p := range r.pods {
		if p.Status != PodRunning {
			continue
		}
		counts, ok := out[p.DeploymentName]
		if !ok {
			counts = make(map[string]int)
			out[p.DeploymentName] = counts
		}
		counts[p.ReleaseVersion]++
	}
	return out
}

// AllPodsInfo returns the slimmed-down {id, name, status, version} view of
// every pod, grouped by deployment.
func (r *Registry) AllPodsInfo() map[string][]PodInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string][]PodInfo)
	for _, p := range r.pods {
		short := p.ID
		if len(short) > 8 {
			short = short[:8]
		}
		out[p.DeploymentName] = append(out[p.DeploymentName], PodInfo{
			ID:      short,
			Name:    ContainerName(p.ID),
			Status:  p.Status,
			Version: p.ReleaseVersion,
		})
	}
	return out
}

// DueForReleaseCheck reports whether at least interval has elapsed since the
// last release sweep, and if so marks now as the new checkpoint. The check
// is atomic so concurrent ticks never both fire a sweep for the same
// window.
func (r *Registry) DueForReleaseCheck(now time.Time, interval time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastReleaseCheck.IsZero() || now.Sub(r.lastReleaseCheck) >= interval {
		r.lastReleaseCheck = now
		return true
	}
	return false
}
