// Package health performs the single synchronous HTTP probe the supervisor
// uses to decide whether a pod is serving traffic.
package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang/glog"
)

const defaultTimeout = 5 * time.Second

// Prober issues health-check GETs against pod addresses.
type Prober struct {
	client *http.Client
}

// New returns a Prober with a finite request timeout.
func New() *Prober {
	return &Prober{client: &http.Client{Timeout: defaultTimeout}}
}

// Check issues an HTTP GET to http://{host}:{port}{path} and reports
// healthy iff the response status falls in [200, 300). Any transport error
// or non-2xx status collapses to false — it is never an error to the
// caller, only a signal.
func (p *Prober) Check(ctx context.Context, host string, port int, path string) bool {
	url := fmt.Sprintf("http://%s:%d%s", host, port, path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		glog.V(2).Infof("health probe: building request for %s: %v", url, err)
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		glog.V(2).Infof("health probe: %s unreachable: %v", url, err)
		return false
	}
	defer resp.Body.Close()

	healthy := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !healthy {
		glog.V(2).Infof("health probe: %s returned %d", url, resp.StatusCode)
	}
	return healthy
}
