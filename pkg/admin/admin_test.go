package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/david-vos/myloadbalancer/pkg/registry"
)

func TestReportDegradedWhenNoRunningPods(t *testing.T) {
	r := registry.New(9000)
	h := New(r)

	report := h.Report()
	if report.Status != "degraded" {
		t.Errorf("expected degraded, got %s", report.Status)
	}
}

func TestReportHealthyWithRunningPods(t *testing.T) {
	r := registry.New(9000)
	r.Insert(&registry.Pod{ID: "a", DeploymentName: "web", Status: registry.PodRunning, HostPort: 9000, ContainerPort: 8080})
	h := New(r)

	report := h.Report()
	if report.Status != "healthy" {
		t.Errorf("expected healthy, got %s", report.Status)
	}
}

func TestReportUpdatingDuringRollingUpdate(t *testing.T) {
	r := registry.New(9000)
	r.Insert(&registry.Pod{ID: "a", DeploymentName: "web", Status: registry.PodRunning, HostPort: 9000, ContainerPort: 8080})
	r.RegisterDeployment(registry.DeploymentSpec{Name: "web", Replicas: 1})
	r.TryStartRollingUpdate("web")
	h := New(r)

	report := h.Report()
	if report.Status != "updating" {
		t.Errorf("expected updating, got %s", report.Status)
	}
	if len(report.RollingUpdates) != 1 || report.RollingUpdates[0] != "web" {
		t.Errorf("expected rollingUpdates=[web], got %v", report.RollingUpdates)
	}
}

func TestServeHTTPWritesJSON(t *testing.T) {
	r := registry.New(9000)
	h := New(r)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %s", ct)
	}

	var report StatusReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if report.Status != "degraded" {
		t.Errorf("expected degraded, got %s", report.Status)
	}
}
