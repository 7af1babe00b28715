// Package api is the HTTP surface (SPEC_FULL.md §4.H): it implements the
// mirror wire contract (spec §6) and exposes read/write access to the
// registry facade over gorilla/mux, wrapped by the teacher's
// Server/Middleware pattern built on abcxyz/pkg/serving.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/abcxyz/pkg/logging"
	"github.com/abcxyz/pkg/serving"

	"github.com/pkgforge/registry/pkg/auth"
)

// Middleware wraps an http.Handler.
type Middleware func(next http.Handler) http.Handler

// Server is a wrapper around serving.Server that allows for adding
// middlewares, adapted from the teacher's handler.Server.
type Server struct {
	svr         *serving.Server
	middlewares []Middleware
}

// NewServer returns a Server bound to port.
func NewServer(port string, middlewares ...Middleware) (*Server, error) {
	svr, err := serving.New(port)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}
	return &Server{svr: svr, middlewares: middlewares}, nil
}

// Start starts the server with handler and blocks until ctx is closed,
// at which point it is gracefully stopped. The server is not safe for
// reuse after Start returns.
func (s *Server) Start(ctx context.Context, handler http.Handler) error {
	h := handler
	for i := len(s.middlewares) - 1; i >= 0; i-- {
		h = s.middlewares[i](h)
	}
	return s.svr.StartHTTPHandler(ctx, h)
}

// userHeader is the placeholder identity passthrough named in
// SPEC_FULL.md §4.H: with no authentication logic in scope (spec §1
// Non-goals), a front door (reverse proxy, basic-auth middleware) is
// expected to have already established who the caller is and to forward
// it in this header.
const userHeader = "X-Registry-User"

// PassThroughUser is a middleware that attaches the caller's user id
// (spec §4.F operations taking a `user` argument) to the request
// context, mirroring the teacher's PassThroughAuth middleware for
// pkg/cred.
func PassThroughUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u := r.Header.Get(userHeader); u != "" {
			r = r.WithContext(auth.WithUser(r.Context(), u))
		}
		next.ServeHTTP(w, r)
	})
}

// Logger is a middleware that adds a logger to the request context. Use
// REGISTRY_LOG_LEVEL, REGISTRY_LOG_FORMAT, REGISTRY_LOG_DEBUG to
// configure it.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = r.WithContext(logging.WithLogger(r.Context(), logging.NewFromEnv("REGISTRY_")))
		next.ServeHTTP(w, r)
	})
}
