package throttle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var (
	ErrMustNotBeZero = errors.New("must be greater than zero")
	ErrWaitingFailed = errors.New("limiter waiting failed")
	ErrContextEnded  = errors.New("throttle context ended")
)

// MaxCooldown caps how long a Retry-After answer can pause a host.
const MaxCooldown = time.Minute

// Config is a per-host request rate and burst size.
type Config struct {
	RPS   int
	Burst int
}

// host is the budget for one remote host.
type host struct {
	limiter *rate.Limiter
	until   time.Time
}

// throttle is an http.RoundTripper that rate-limits per request host and
// pauses a host that answered 429 or 503 with Retry-After.
type throttle struct {
	mu    sync.Mutex
	hosts map[string]*host
	cfg   Config
	next  http.RoundTripper
	logFn func() *slog.Logger
}

// NewRoundTripper returns an http.RoundTripper that throttles outbound requests
// per host. logFn lazily resolves the logger at request time, making option
// ordering irrelevant. A nil-returning logFn disables throttle logging.
func NewRoundTripper(rps, burst int, logFn func() *slog.Logger, next http.RoundTripper) (http.RoundTripper, error) {
	if rps <= 0 || burst <= 0 {
		return nil, fmt.Errorf("rps[%d] and burst[%d] %w", rps, burst, ErrMustNotBeZero)
	}
	if next == nil {
		next = http.DefaultTransport
	}
	if logFn == nil {
		logFn = func() *slog.Logger { return nil }
	}

	t := throttle{
		hosts: make(map[string]*host),
		cfg:   Config{RPS: rps, Burst: burst},
		next:  next,
		logFn: logFn,
	}

	return &t, nil
}

// state returns the host's limiter and any remaining cooldown.
func (t *throttle) state(name string) (*rate.Limiter, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, ok := t.hosts[name]
	if !ok {
		h = &host{limiter: rate.NewLimiter(rate.Limit(t.cfg.RPS), t.cfg.Burst)}
		t.hosts[name] = h
	}

	return h.limiter, time.Until(h.until)
}

func (t *throttle) coolDown(name string, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if until := time.Now().Add(min(d, MaxCooldown)); until.After(t.hosts[name].until) {
		t.hosts[name].until = until
	}
}

func (t *throttle) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx := r.Context()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w early: %w", ErrContextEnded, err)
	}

	name := r.URL.Host
	limiter, cooldown := t.state(name)
	logger := t.logFn()

	if cooldown > 0 {
		if logger != nil {
			logger.Info("throttle host cooling down", "host", name, "remaining", cooldown.String(), "path", r.URL.Path)
		}
		if err := sleep(ctx, cooldown); err != nil {
			return nil, fmt.Errorf("%w: cooldown: %w", ErrWaitingFailed, err)
		}
	}

	if logger != nil && limiter.Tokens() < 1 {
		logger.Info("throttle tokens exhausted", "host", name, "rate", t.cfg.RPS, "burst", t.cfg.Burst, "path", r.URL.Path)
	}

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWaitingFailed, err)
	}
	if waited := time.Since(start); logger != nil && waited > time.Millisecond {
		logger.Info("throttle wait complete", "host", name, "waited", waited.String())
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w post-wait: %w", ErrContextEnded, err)
	}

	resp, err := t.next.RoundTrip(r)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		if d, ok := retryAfter(resp.Header.Get("Retry-After"), time.Now()); ok {
			t.coolDown(name, d)
			if logger != nil {
				logger.Warn("throttle host asked to back off", "host", name, "status", resp.StatusCode, "retry_after", d.String())
			}
		}
	}

	return resp, nil
}

// retryAfter parses a Retry-After value given as delay seconds or an HTTP
// date relative to now.
func retryAfter(v string, now time.Time) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}

	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}

	at, err := http.ParseTime(v)
	if err != nil {
		return 0, false
	}
	if d := at.Sub(now); d > 0 {
		return d, true
	}

	return 0, false
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
