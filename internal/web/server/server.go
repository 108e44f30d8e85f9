// Package server runs an HTTP handler on a listener until its context ends,
// then drains in-flight requests and runs registered cleanup.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Server wraps an [http.Server] with context-driven graceful shutdown.
type Server struct {
	srv             *http.Server
	shutdownTimeout time.Duration
	logger          *slog.Logger
	shutdownFuncs   []shutdownFunc
	certFile        string
	keyFile         string
}

// New creates a Server for handler. Request bodies are not bounded by a
// read timeout so large artifact uploads can stream; only headers are.
func New(handler http.Handler, opts ...Option) *Server {
	o := options{
		readHeaderTimeout: 5 * time.Second,
		idleTimeout:       120 * time.Second,
		shutdownTimeout:   20 * time.Second,
		logger:            slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := Server{
		srv: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: o.readHeaderTimeout,
			IdleTimeout:       o.idleTimeout,
			ErrorLog:          slog.NewLogLogger(o.logger.Handler(), slog.LevelWarn),
		},
		shutdownTimeout: o.shutdownTimeout,
		logger:          o.logger,
		shutdownFuncs:   o.shutdownFuncs,
		certFile:        o.certFile,
		keyFile:         o.keyFile,
	}

	return &s
}

// TLS reports whether the Server terminates TLS.
func (s *Server) TLS() bool {
	return s.certFile != ""
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully within the configured shutdown timeout. It returns nil after
// a clean shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	serverErrs := make(chan error, 1)
	go func() {
		s.logger.Info("server started", "addr", ln.Addr().String(), "tls", s.TLS())

		if s.TLS() {
			serverErrs <- s.srv.ServeTLS(ln, s.certFile, s.keyFile)
		} else {
			serverErrs <- s.srv.Serve(ln)
		}
	}()

	select {
	case err := <-serverErrs:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

		return nil

	case <-ctx.Done():
		s.logger.Info("shutdown requested", "cause", context.Cause(ctx))

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
		defer cancel()

		if err := s.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}

		s.logger.Info("shutdown complete")

		return nil
	}
}

// Shutdown runs the registered shutdown functions in order, then drains
// in-flight requests. A deadline on ctx bounds both.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, fn := range s.shutdownFuncs {
		if err := fn(ctx); err != nil {
			s.logger.Error("shutdown func", "error", err)
		}
	}

	if err := s.srv.Shutdown(ctx); err != nil {
		s.srv.Close()
		return fmt.Errorf("server didn't stop gracefully: %w", err)
	}

	return nil
}
