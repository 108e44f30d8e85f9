// Command releasy-sandbox serves an in-memory Releasy service for local
// development against the releasy CLI or client library. State is lost on
// exit.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/adamwoolhether/releasy/internal/web/server"
	"github.com/adamwoolhether/releasy/releasytest"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := rootCmd(os.Stdout, os.Stderr, nil)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

type config struct {
	addr            string
	publicURL       string
	adminKey        string
	operatorJWT     string
	certFile        string
	keyFile         string
	seed            bool
	shutdownTimeout time.Duration
	verbose         bool
}

// rootCmd builds the command. ready, when set, is called with the base URL
// once the listener is bound.
func rootCmd(stdout, stderr io.Writer, ready func(baseURL string)) *cobra.Command {
	var cfg config

	cmd := cobra.Command{
		Use:   "releasy-sandbox",
		Short: "Serve an in-memory Releasy service",
		Long: `Serve an in-memory Releasy service, including its presigned storage
endpoint, until interrupted.

Presigned upload and download URLs point at --public-url, which defaults
to the bound listener address.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (cfg.certFile == "") != (cfg.keyFile == "") {
				return fmt.Errorf("--tls-cert and --tls-key must be set together")
			}

			return serve(cmd.Context(), cfg, stdout, stderr, ready)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.addr, "addr", "127.0.0.1:8080", "listen address")
	f.StringVar(&cfg.publicURL, "public-url", "", "base URL clients use to reach the sandbox")
	f.StringVar(&cfg.adminKey, "admin-key", releasytest.DefaultAdminKey, "accepted admin key")
	f.StringVar(&cfg.operatorJWT, "operator-jwt", "", "accepted operator bearer token")
	f.StringVar(&cfg.certFile, "tls-cert", "", "TLS certificate file")
	f.StringVar(&cfg.keyFile, "tls-key", "", "TLS key file")
	f.BoolVar(&cfg.seed, "seed", false, "create a demo customer and API key on startup")
	f.DurationVar(&cfg.shutdownTimeout, "shutdown-timeout", 10*time.Second, "graceful shutdown limit")
	f.BoolVarP(&cfg.verbose, "verbose", "v", false, "log every request")

	return &cmd
}

func serve(ctx context.Context, cfg config, stdout, stderr io.Writer, ready func(string)) error {
	level := slog.LevelWarn
	if cfg.verbose {
		level = slog.LevelInfo
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	ln, err := net.Listen("tcp", cfg.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.addr, err)
	}

	srvOpts := []server.Option{
		server.WithLogger(log),
		server.WithShutdownTimeout(cfg.shutdownTimeout),
	}
	scheme := "http"
	if cfg.certFile != "" {
		scheme = "https"
		srvOpts = append(srvOpts, server.WithTLS(cfg.certFile, cfg.keyFile))
	}

	baseURL := cfg.publicURL
	if baseURL == "" {
		baseURL = scheme + "://" + ln.Addr().String()
	}

	fakeOpts := []releasytest.Option{
		releasytest.WithAdminKey(cfg.adminKey),
		releasytest.WithLogger(log),
	}
	if cfg.operatorJWT != "" {
		fakeOpts = append(fakeOpts, releasytest.WithOperatorJWT(cfg.operatorJWT))
	}
	fake := releasytest.NewUnstarted(baseURL, fakeOpts...)

	fmt.Fprintf(stdout, "url:       %s\n", fake.URL())
	fmt.Fprintf(stdout, "admin key: %s\n", fake.AdminKey())
	if cfg.seed {
		cust := fake.SeedCustomer("sandbox")
		fmt.Fprintf(stdout, "customer:  %s\n", cust.ID)
		fmt.Fprintf(stdout, "api key:   %s\n", fake.SeedAPIKey(cust.ID))
	}

	if ready != nil {
		ready(fake.URL())
	}

	return server.New(fake.Handler(), srvOpts...).Serve(ctx, ln)
}
