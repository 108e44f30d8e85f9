package client

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/adamwoolhether/releasy/client/throttle"
)

const tracerName = "github.com/adamwoolhether/releasy/client"

// Client issues typed calls against one release service. It is immutable
// after construction and safe for concurrent use; each call owns its own
// request and response buffers.
type Client struct {
	baseURL    string
	auth       Auth
	hc         *http.Client
	noFollow   *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

// New returns a Client bound to baseURL and auth. The base URL is trimmed of
// surrounding whitespace and trailing slashes and must be an absolute
// http or https URL; anything else returns an error wrapping
// [ErrInvalidBaseURL].
func New(baseURL string, auth Auth, optFns ...Option) (*Client, error) {
	base, err := normalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying client option: %w", err)
		}
	}

	client := Client{
		baseURL:    base,
		auth:       auth,
		logger:     slog.Default(),
		tracer:     noop.NewTracerProvider().Tracer(tracerName),
		propagator: propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}),
	}

	if opts.logger != nil {
		client.logger = opts.logger
	}
	if opts.tracerProvider != nil {
		client.tracer = opts.tracerProvider.Tracer(tracerName)
	}
	if opts.propagator != nil {
		client.propagator = opts.propagator
	}

	hc := &http.Client{}
	if opts.client != nil {
		cpy := *opts.client
		hc = &cpy
	}

	if opts.timeout != nil {
		hc.Timeout = *opts.timeout
	}

	var transport http.RoundTripper
	switch {
	case opts.rt != nil:
		transport = opts.rt
	case hc.Transport != nil:
		transport = hc.Transport
	default:
		transport = http.DefaultTransport
	}
	if opts.userAgent != "" {
		transport = userAgent{value: opts.userAgent, base: transport}
	}
	if opts.throttle != nil {
		rt, err := throttle.NewRoundTripper(opts.throttle.RPS, opts.throttle.Burst, func() *slog.Logger { return client.logger }, transport)
		if err != nil {
			return nil, fmt.Errorf("configuring throttle: %w", err)
		}
		transport = rt
	}
	hc.Transport = transport
	client.hc = hc

	noFollow := *hc
	noFollow.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	client.noFollow = &noFollow

	return &client, nil
}

// MustNew is like [New] but panics on error. It is intended for
// package-level initialisation with constant configuration.
func MustNew(baseURL string, auth Auth, optFns ...Option) *Client {
	c, err := New(baseURL, auth, optFns...)
	if err != nil {
		panic(err)
	}
	return c
}

// WithAuth returns a copy of c bound to auth. c is left untouched and both
// share the same underlying transport.
func (c *Client) WithAuth(auth Auth) *Client {
	cpy := *c
	cpy.auth = auth
	return &cpy
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Auth returns the bound authentication mode.
func (c *Client) Auth() Auth { return c.auth }

func normalizeBaseURL(raw string) (string, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(raw), "/")
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidBaseURL)
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidBaseURL, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: scheme must be http or https: %q", ErrInvalidBaseURL, raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host: %q", ErrInvalidBaseURL, raw)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return "", fmt.Errorf("%w: must not carry a query or fragment: %q", ErrInvalidBaseURL, raw)
	}

	return trimmed, nil
}
