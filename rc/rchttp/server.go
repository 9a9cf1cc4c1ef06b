// Package rchttp serves circles over HTTP.
package rchttp

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gordian-engine/gcircle/rc/rcledger"
	"github.com/prometheus/client_golang/prometheus"
)

// Server is an HTTP server for circle operations.
// It stops when the context passed to [NewServer] is cancelled.
type Server struct {
	done chan struct{}
}

// ServerConfig is the configuration for [NewServer].
type ServerConfig struct {
	Listener net.Listener

	Client *rcledger.Client

	// Historian, if set, serves circle histories.
	Historian rcledger.Historian

	// Gatherer, if set, is exposed at /metrics.
	Gatherer prometheus.Gatherer

	// Now supplies timestamps omitted from requests.
	// Defaults to time.Now.
	Now func() time.Time

	// ShutdownTimeout bounds how long in-flight requests may finish
	// after the context is cancelled, before connections are closed.
	// Defaults to 5 seconds.
	ShutdownTimeout time.Duration
}

// NewServer starts serving on cfg.Listener in a background goroutine.
func NewServer(ctx context.Context, log *slog.Logger, cfg ServerConfig) *Server {
	srv := &http.Server{
		Handler: NewHandler(log, cfg),

		BaseContext: func(net.Listener) context.Context {
			return ctx
		},

		ReadHeaderTimeout: 10 * time.Second,
	}

	s := &Server{
		done: make(chan struct{}),
	}
	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	go s.serve(log, cfg.Listener, srv)
	go s.waitForShutdown(ctx, log, srv, timeout)

	return s
}

// Wait blocks until the server has stopped.
func (s *Server) Wait() {
	<-s.done
}

func (s *Server) waitForShutdown(ctx context.Context, log *slog.Logger, srv *http.Server, timeout time.Duration) {
	select {
	case <-s.done:
		return
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn("Graceful HTTP shutdown incomplete; closing remaining connections", "err", err)
		if err := srv.Close(); err != nil {
			log.Warn("Failed to close HTTP server", "err", err)
		}
	}
}

func (s *Server) serve(log *slog.Logger, ln net.Listener, srv *http.Server) {
	defer close(s.done)

	if err := srv.Serve(ln); err != nil {
		if errors.Is(err, net.ErrClosed) || errors.Is(err, http.ErrServerClosed) {
			log.Info("HTTP server shutting down")
		} else {
			log.Error("HTTP server stopped unexpectedly", "err", err)
		}
	}
}
