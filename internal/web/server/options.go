package server

import (
	"context"
	"log/slog"
	"time"
)

// Option configures a Server.
type Option func(*options)

type options struct {
	readHeaderTimeout time.Duration
	idleTimeout       time.Duration
	shutdownTimeout   time.Duration
	logger            *slog.Logger
	shutdownFuncs     []shutdownFunc
	certFile          string
	keyFile           string
}

type shutdownFunc func(ctx context.Context) error

// WithReadHeaderTimeout bounds how long reading request headers may take.
// Default is 5s.
func WithReadHeaderTimeout(d time.Duration) Option {
	return func(opts *options) {
		opts.readHeaderTimeout = d
	}
}

// WithIdleTimeout sets how long a keep-alive connection may sit idle.
// Default is 120s.
func WithIdleTimeout(d time.Duration) Option {
	return func(opts *options) {
		opts.idleTimeout = d
	}
}

// WithShutdownTimeout bounds the graceful shutdown performed by
// [Server.Serve]. Default is 20s.
func WithShutdownTimeout(d time.Duration) Option {
	return func(opts *options) {
		opts.shutdownTimeout = d
	}
}

// WithLogger sets the logger for lifecycle events. Default is slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(opts *options) {
		if log != nil {
			opts.logger = log
		}
	}
}

// WithShutdownFunc registers fn to run during shutdown, before connections
// are drained. Functions run in registration order.
func WithShutdownFunc(fn func(ctx context.Context) error) Option {
	return func(opts *options) {
		opts.shutdownFuncs = append(opts.shutdownFuncs, fn)
	}
}

// WithTLS serves HTTPS using the given certificate and key files.
func WithTLS(certFile, keyFile string) Option {
	return func(opts *options) {
		opts.certFile = certFile
		opts.keyFile = keyFile
	}
}
