package httphandler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

// DefaultShutdownGrace bounds how long Stop waits for in-flight requests.
const DefaultShutdownGrace = 2 * time.Second

// Server runs the HTTP API on a single listener.
type Server struct {
	addr    string
	handler http.Handler
	grace   time.Duration
	logger  *slog.Logger

	mu   sync.Mutex
	srv  *http.Server
	ln   net.Listener
	done chan struct{}
}

// NewServer creates a Server. A non-positive grace selects
// DefaultShutdownGrace.
func NewServer(addr string, handler http.Handler, grace time.Duration, logger *slog.Logger) *Server {
	if grace <= 0 {
		grace = DefaultShutdownGrace
	}
	return &Server{addr: addr, handler: handler, grace: grace, logger: logger}
}

// Start binds the listen address and serves in the background. Bind errors
// are returned. Calling Start on a running server does nothing.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	done := make(chan struct{})

	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	s.srv, s.ln, s.done = srv, ln, done
	s.logger.Info("http server started", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or "" when stopped.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Running reports whether the server is serving.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.srv != nil
}

// Stop drains in-flight requests for up to the grace period, then closes
// remaining connections. Stop on a stopped server does nothing.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv, done := s.srv, s.done
	s.srv, s.ln, s.done = nil, nil, nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, s.grace)
	defer cancel()

	var err error
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		s.logger.Warn("graceful shutdown incomplete, closing connections", "error", shutdownErr)
		err = errors.Join(fmt.Errorf("shutdown http server: %w", shutdownErr), srv.Close())
	}
	<-done

	s.logger.Info("http server stopped")
	return err
}
