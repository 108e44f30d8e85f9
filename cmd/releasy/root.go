package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/adamwoolhether/releasy/client"
	"github.com/adamwoolhether/releasy/opt"
)

// app carries the process environment through the command tree so tests can
// run commands in isolation.
type app struct {
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string
	flags  globalFlags

	// defaultConfig is read when neither --config nor RELEASY_CONFIG is set.
	defaultConfig string

	// clientOpts are appended to every client the commands build.
	clientOpts []client.Option
}

func newApp(stdout, stderr io.Writer, getenv func(string) string) *app {
	return &app{
		stdout:        stdout,
		stderr:        stderr,
		getenv:        getenv,
		defaultConfig: defaultConfigPath(),
	}
}

func (a *app) run(ctx context.Context, args []string) error {
	root := a.rootCmd()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err != nil {
		a.printError(err)
	}

	return err
}

func (a *app) rootCmd() *cobra.Command {
	root := cobra.Command{
		Use:   "releasy",
		Short: "Releasy release management CLI",
		Long: `A command-line client for the Releasy release management service.

Configuration is read from flags, then the environment, then a YAML
config file:
  RELEASY_URL           service base URL
  RELEASY_API_KEY       customer or CI API key
  RELEASY_ADMIN_KEY     admin key
  RELEASY_OPERATOR_JWT  operator bearer token
  RELEASY_CONFIG        config file (default: <user config dir>/releasy/config.yaml)

Exactly one credential may be configured.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{msg: err.Error()}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.url, "url", "", "service base URL (or "+envURL+")")
	pf.StringVar(&a.flags.apiKey, "api-key", "", "API key (or "+envAPIKey+")")
	pf.StringVar(&a.flags.adminKey, "admin-key", "", "admin key (or "+envAdminKey+")")
	pf.StringVar(&a.flags.operatorJWT, "operator-jwt", "", "operator JWT (or "+envOperatorJWT+")")
	pf.DurationVar(&a.flags.timeout, "timeout", 30*time.Second, "per-request timeout, 0 disables")
	pf.BoolVar(&a.flags.json, "json", false, "print results as JSON")
	pf.StringVar(&a.flags.config, "config", "", "config file (or "+envConfig+")")
	pf.StringVar(&a.flags.userAgent, "user-agent", "", "User-Agent header")
	pf.BoolVarP(&a.flags.verbose, "verbose", "v", false, "log progress and requests to stderr")

	root.AddCommand(
		a.healthCmd(),
		a.releasesCmd(),
		a.artifactsCmd(),
		a.customersCmd(),
		a.usersCmd(),
		a.downloadCmd(),
	)

	return &root
}

// client builds a client from the resolved settings.
func (a *app) client(cmd *cobra.Command) (*client.Client, error) {
	s, err := a.resolve(cmd.Flags().Changed("timeout"))
	if err != nil {
		return nil, err
	}

	level := slog.LevelWarn
	if a.flags.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))

	opts := []client.Option{
		client.WithTimeout(s.timeout),
		client.WithUserAgent(s.userAgent),
		client.WithLogger(logger),
	}
	opts = append(opts, a.clientOpts...)

	c, err := client.New(s.url, s.auth, opts...)
	if err != nil {
		if errors.Is(err, client.ErrInvalidBaseURL) {
			return nil, &usageError{msg: err.Error()}
		}
		return nil, err
	}

	return c, nil
}

// printJSON writes v as indented JSON.
func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printError renders err for a human, expanding API error details.
func (a *app) printError(err error) {
	if ue, ok := errors.AsType[*usageError](err); ok {
		fmt.Fprintf(a.stderr, "usage error: %s\nRun 'releasy --help' for usage.\n", ue.msg)
		return
	}

	if ent, ok := client.AsEnterprise(err); ok {
		detail := ent.Body.Error
		fmt.Fprintf(a.stderr, "error: status %d: %s: %s\n", ent.StatusCode, detail.Code, detail.Message)
		for _, v := range detail.Violations {
			if v.Message != "" {
				fmt.Fprintf(a.stderr, "  %s: %s (%s)\n", v.Field, v.Message, v.Code)
			} else {
				fmt.Fprintf(a.stderr, "  %s: %s\n", v.Field, v.Code)
			}
		}
		if detail.RequestID != "" {
			fmt.Fprintf(a.stderr, "request id: %s\n", detail.RequestID)
		}
		return
	}

	if apiErr, ok := errors.AsType[*client.APIError](err); ok {
		if apiErr.Body != nil {
			fmt.Fprintf(a.stderr, "error: status %d: %s: %s\n", apiErr.StatusCode, apiErr.Code(), apiErr.Message())
		} else {
			fmt.Fprintf(a.stderr, "error: status %d: %s\n", apiErr.StatusCode, truncate(string(apiErr.Raw), 200))
		}
		return
	}

	fmt.Fprintf(a.stderr, "error: %v\n", err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Flag helpers: optional fields are only sent when the flag was given.

func optString(cmd *cobra.Command, name string) opt.Field[string] {
	if !cmd.Flags().Changed(name) {
		return opt.Field[string]{}
	}
	v, _ := cmd.Flags().GetString(name)
	return opt.Some(v)
}

func optInt32(cmd *cobra.Command, name string) opt.Field[int32] {
	if !cmd.Flags().Changed(name) {
		return opt.Field[int32]{}
	}
	v, _ := cmd.Flags().GetInt32(name)
	return opt.Some(v)
}

func optBool(cmd *cobra.Command, name string) opt.Field[bool] {
	if !cmd.Flags().Changed(name) {
		return opt.Field[bool]{}
	}
	v, _ := cmd.Flags().GetBool(name)
	return opt.Some(v)
}

func formatTime(unix int64) string {
	if unix == 0 {
		return "-"
	}
	return time.Unix(unix, 0).UTC().Format(time.RFC3339)
}

// table returns a tab-aligned writer on stdout. Callers Flush it.
func (a *app) table(header string) *tabwriter.Writer {
	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, header)
	return w
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return &usageError{msg: err.Error()}
		}
		return nil
	}
}
