package client

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/releasy/client/throttle"
)

// Option is a functional option for configuring a [Client] via [New].
type Option func(*options) error
type options struct {
	client         *http.Client
	rt             http.RoundTripper
	timeout        *time.Duration
	userAgent      string
	throttle       *throttle.Config
	logger         *slog.Logger
	tracerProvider trace.TracerProvider
	propagator     propagation.TextMapPropagator
}

// WithHTTPClient replaces the default [http.Client] used by the [Client].
// The client is copied, so later changes to hc do not affect the [Client].
func WithHTTPClient(hc *http.Client) Option {
	return func(c *options) error {
		if hc == nil {
			return errors.New("http client must not be nil")
		}
		c.client = hc
		return nil
	}
}

// WithTransport sets a custom [http.RoundTripper] as the base transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *options) error {
		if rt == nil {
			return errors.New("transport must not be nil")
		}
		c.rt = rt
		return nil
	}
}

// WithTimeout sets the overall request timeout on the underlying [http.Client].
// Zero disables the timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *options) error {
		if d < 0 {
			return errors.New("timeout must not be negative")
		}
		c.timeout = &d
		return nil
	}
}

// WithUserAgent adds a persistent User-Agent header to all outgoing requests.
func WithUserAgent(header string) Option {
	return func(c *options) error {
		c.userAgent = header
		return nil
	}
}

// WithThrottle enables token-bucket rate limiting with the given requests per
// second and burst capacity. Limits apply per remote host, so presigned
// storage uploads do not draw from the release service's budget.
func WithThrottle(rps, burst int) Option {
	return func(c *options) error {
		if rps <= 0 || burst <= 0 {
			return fmt.Errorf("rps[%d] and burst[%d] %w", rps, burst, throttle.ErrMustNotBeZero)
		}
		c.throttle = &throttle.Config{RPS: rps, Burst: burst}
		return nil
	}
}

// WithLogger injects a custom [slog.Logger] into the [Client].
func WithLogger(logger *slog.Logger) Option {
	return func(c *options) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		c.logger = logger
		return nil
	}
}

// WithTracerProvider enables one span per operation. Without it the [Client]
// uses a no-op tracer.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *options) error {
		if tp == nil {
			return errors.New("tracer provider must not be nil")
		}
		c.tracerProvider = tp
		return nil
	}
}

// WithPropagator sets the propagator used to inject trace context into
// outgoing request headers. The default is W3C trace context plus baggage.
func WithPropagator(p propagation.TextMapPropagator) Option {
	return func(c *options) error {
		if p == nil {
			return errors.New("propagator must not be nil")
		}
		c.propagator = p
		return nil
	}
}

// userAgent is an http.RoundTripper, enabling the persistent User-Agent header.
type userAgent struct {
	value string
	base  http.RoundTripper
}

func (ua userAgent) RoundTrip(r *http.Request) (*http.Response, error) {
	cpy := r.Clone(r.Context())
	cpy.Header.Set("User-Agent", ua.value)
	return ua.base.RoundTrip(cpy)
}

// CallOption adjusts a single operation call.
type CallOption func(*callOpts)

type callOpts struct {
	idempotencyKey string
	headers        http.Header
}

// WithHeader adds an extra header to a single call. Credential headers,
// Accept, Content-Type and Idempotency-Key are reserved and dropped if
// supplied this way.
func WithHeader(name, value string) CallOption {
	return func(o *callOpts) {
		if o.headers == nil {
			o.headers = make(http.Header)
		}
		o.headers.Add(name, value)
	}
}

// WithIdempotencyKey attaches key as the Idempotency-Key header on a
// designated creation call. The key is sent verbatim; pass the same key when
// resending the same request. On any other operation the key is dropped and
// a warning logged. See [NewIdempotencyKey].
func WithIdempotencyKey(key string) CallOption {
	return func(o *callOpts) {
		o.idempotencyKey = key
	}
}

func applyCallOpts(opts []CallOption) callOpts {
	var co callOpts
	for _, opt := range opts {
		opt(&co)
	}
	return co
}
