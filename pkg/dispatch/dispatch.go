// Package dispatch chooses which healthy pod of a deployment should serve
// the next inbound request, under a pluggable balancing strategy.
package dispatch

import (
	"math/rand"
	"sort"
	"sync"

	"github.com/david-vos/myloadbalancer/pkg/registry"
)

// Strategy names a balancing strategy.
type Strategy string

const (
	RoundRobin       Strategy = "round-robin"
	Random           Strategy = "random"
	LeastConnections Strategy = "least-connections"
)

// Dispatcher picks the backend pod for a deployment's next request.
type Dispatcher struct {
	registry *registry.Registry
	strategy Strategy

	mu      sync.Mutex
	counter uint64
}

// New returns a Dispatcher over reg using strategy (RoundRobin if empty).
func New(reg *registry.Registry, strategy Strategy) *Dispatcher {
	if strategy == "" {
		strategy = RoundRobin
	}
	return &Dispatcher{registry: reg, strategy: strategy}
}

// NextPod returns one of deployment name's healthy pods, or ok=false when
// there are none.
func (d *Dispatcher) NextPod(name string) (registry.Pod, bool) {
	pods := d.registry.HealthyPods(name)
	if len(pods) == 0 {
		return registry.Pod{}, false
	}
	// The registry snapshot comes back in map order; sort by id so the
	// round-robin counter walks the same sequence on every call.
	sort.Slice(pods, func(i, j int) bool { return pods[i].ID < pods[j].ID })

	switch d.strategy {
	case Random:
		return pods[rand.Intn(len(pods))], true
	case LeastConnections:
		// Placeholder: real connection tracking is not implemented.
		return pods[0], true
	default:
		return pods[d.nextIndex(len(pods))], true
	}
}

// nextIndex advances the dispatcher's global round-robin counter under its
// own mutex and returns an index into a pod list of the given length. The
// counter is global rather than per-deployment (see design notes); it
// never reads the registry lock while held.
func (d *Dispatcher) nextIndex(n int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	idx := int(d.counter % uint64(n))
	d.counter++
	return idx
}

// NextAddress returns the reachable address of the next chosen pod for
// deployment name, or ok=false when there are no healthy pods.
func (d *Dispatcher) NextAddress(name string) (string, bool) {
	pod, ok := d.NextPod(name)
	if !ok {
		return "", false
	}
	return pod.HostAddress(), true
}
