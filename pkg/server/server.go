// Package server wires the admin endpoint and proxy handler onto an HTTP
// listener, in the router-table idiom this orchestrator's teacher used for
// its own site-agent REST surface.
package server

import (
	"context"
	"net"
	"net/http"
	"runtime"

	"github.com/golang/glog"
	"github.com/gorilla/mux"

	"github.com/david-vos/myloadbalancer/pkg/admin"
	"github.com/david-vos/myloadbalancer/pkg/proxy"
)

// Server serves GET /health via the admin handler and proxies GET and POST
// requests on every other path to the deployment's backend pods.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
}

// New builds the router: /health is handled by adminHandler; GET and POST
// at any other depth are forwarded by proxyHandler.
func New(addr string, adminHandler *admin.Handler, proxyHandler *proxy.Handler) *Server {
	r := mux.NewRouter()

	r.Handle("/health", loggingMiddleware(adminHandler)).Methods(http.MethodGet)
	r.PathPrefix("/").Handler(loggingMiddleware(proxyHandler)).Methods(http.MethodGet, http.MethodPost)

	return &Server{
		httpServer: &http.Server{
			Addr:    addr,
			Handler: r,
		},
	}
}

// loggingMiddleware wraps a handler with the request-line logging the
// teacher's makeHttpHandler performed for every route.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		glog.Infof("%s %s", r.Method, r.RequestURI)
		w.Header().Set("Server", "myloadbalancer ("+runtime.GOOS+")")
		next.ServeHTTP(w, r)
	})
}

// ListenAndServe starts listening on the server's configured address and
// serves until the listener is closed.
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.listener = l
	glog.Infof("listening for HTTP on %s", s.httpServer.Addr)
	return s.httpServer.Serve(l)
}

// Shutdown gracefully stops the server, honoring ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
