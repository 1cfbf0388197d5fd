// Package lifecycle orchestrates process startup (orphan sweep, deploy,
// start loops) and shutdown (cancel loops, stop+remove all pods).
package lifecycle

import (
	"context"

	"github.com/golang/glog"

	"github.com/david-vos/myloadbalancer/pkg/registry"
	"github.com/david-vos/myloadbalancer/pkg/supervisor"
)

// Orphaner is the subset of runtime.Adapter lifecycle needs for startup
// crash recovery.
type Orphaner interface {
	CleanupOrphans(ctx context.Context) error
}

// Lifecycle wires startup and shutdown around a Supervisor.
type Lifecycle struct {
	supervisor *supervisor.Supervisor
	orphaner   Orphaner
}

// New returns a Lifecycle driving sup, sweeping orphaned containers via rt
// at startup.
func New(sup *supervisor.Supervisor, rt Orphaner) *Lifecycle {
	return &Lifecycle{supervisor: sup, orphaner: rt}
}

// Start sweeps orphaned containers from a previous crash, then deploys
// spec.
func (l *Lifecycle) Start(ctx context.Context, spec registry.DeploymentSpec) error {
	if err := l.orphaner.CleanupOrphans(ctx); err != nil {
		glog.Warningf("startup: orphan cleanup failed: %v", err)
	}
	return l.supervisor.Deploy(ctx, spec)
}

// Stop cancels the health tick loop and stops+removes every pod, bounded by
// the supervisor's own shutdown timeout.
func (l *Lifecycle) Stop(ctx context.Context) {
	l.supervisor.Shutdown(ctx)
}
