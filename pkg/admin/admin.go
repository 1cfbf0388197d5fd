// Package admin reports the orchestrator's aggregate status: overall
// health, per-deployment pod inventory, and rolling-update activity.
package admin

import (
	"encoding/json"
	"net/http"

	"github.com/david-vos/myloadbalancer/pkg/registry"
)

// StatusReport is the JSON body served at /health.
type StatusReport struct {
	Status         string                          `json:"status"`
	Pods           map[string][]registry.PodInfo   `json:"pods"`
	RollingUpdates []string                         `json:"rollingUpdates,omitempty"`
}

// Handler serves the /health admin endpoint.
type Handler struct {
	registry *registry.Registry
}

// New returns a Handler reporting on reg.
func New(reg *registry.Registry) *Handler {
	return &Handler{registry: reg}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	report := h.Report()
	writeJSON(w, http.StatusOK, report)
}

// Report computes the current status: degraded when no pod anywhere is
// healthy, updating when any deployment has an active rolling update, else
// healthy.
func (h *Handler) Report() StatusReport {
	pods := h.registry.AllPodsInfo()

	var rolling []string
	for _, name := range h.registry.DeploymentNames() {
		if h.registry.RollingUpdateActive(name) {
			rolling = append(rolling, name)
		}
	}

	status := "healthy"
	if len(h.registry.RunningPods()) == 0 {
		status = "degraded"
	} else if len(rolling) > 0 {
		status = "updating"
	}

	return StatusReport{
		Status:         status,
		Pods:           pods,
		RollingUpdates: rolling,
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
