// Package proxy forwards inbound HTTP requests to the backend pod chosen by
// the Dispatcher, relaying status, headers, and body, and surfacing backend
// failures as 502s.
package proxy

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/golang/glog"

	"github.com/david-vos/myloadbalancer/pkg/dispatch"
)

// Handler proxies requests for a single deployment to its healthy pods.
type Handler struct {
	dispatcher     *dispatch.Dispatcher
	deploymentName string
}

// New returns a Handler that dispatches to deploymentName's pods via d.
func New(d *dispatch.Dispatcher, deploymentName string) *Handler {
	return &Handler{dispatcher: d, deploymentName: deploymentName}
}

// ServeHTTP resolves a backend address fresh on every request (never
// cached) and forwards the request to it.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	address, ok := h.dispatcher.NextAddress(h.deploymentName)
	if !ok {
		writeText(w, http.StatusServiceUnavailable, "No healthy backends available")
		return
	}

	target := &url.URL{Scheme: "http", Host: address}

	rp := &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			req.URL.Scheme = target.Scheme
			req.URL.Host = target.Host
			req.Host = ""
			req.Header.Del("Host")
		},
		ModifyResponse: func(resp *http.Response) error {
			resp.Header.Del("Transfer-Encoding")
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			glog.Errorf("proxy: backend %s error: %v", address, err)
			writeText(w, http.StatusBadGateway, fmt.Sprintf("Backend error: %v", err))
		},
	}

	rp.ServeHTTP(w, r)
}

// writeText writes an exact plain-text body with no trailing newline,
// matching the spec's literal error message contract.
func writeText(w http.ResponseWriter, code int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	w.Write([]byte(text))
}
