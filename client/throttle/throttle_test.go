package throttle

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewRoundTripper_Validation(t *testing.T) {
	tests := map[string]struct {
		rps    int
		burst  int
		expErr error
	}{
		"zeroRPS":       {rps: 0, burst: 10, expErr: ErrMustNotBeZero},
		"negativeRPS":   {rps: -5, burst: 10, expErr: ErrMustNotBeZero},
		"zeroBurst":     {rps: 10, burst: 0, expErr: ErrMustNotBeZero},
		"negativeBurst": {rps: 10, burst: -5, expErr: ErrMustNotBeZero},
		"valid":         {rps: 10, burst: 20},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			rt, err := NewRoundTripper(tc.rps, tc.burst, nil, http.DefaultTransport)
			if tc.expErr != nil {
				if !errors.Is(err, tc.expErr) {
					t.Errorf("exp err %v; got: %v", tc.expErr, err)
				}
				return
			}

			if err != nil {
				t.Errorf("exp nil err, got: %v", err)
			}
			if rt == nil {
				t.Error("exp non-nil RoundTripper")
			}
		})
	}
}

func newCountingServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	return srv, &calls
}

func doGet(ctx context.Context, c *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}

	return resp.Body.Close()
}

func TestThrottle_ExceedBurstTimesOut(t *testing.T) {
	srv, calls := newCountingServer(t)

	rt, err := NewRoundTripper(1, 2, func() *slog.Logger { return slog.New(slog.DiscardHandler) }, http.DefaultTransport)
	if err != nil {
		t.Fatal(err)
	}
	c := &http.Client{Transport: rt}

	for i := range 2 {
		if err := doGet(t.Context(), c, srv.URL); err != nil {
			t.Fatalf("request %d within burst: %v", i, err)
		}
	}

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	err = doGet(ctx, c, srv.URL)
	if !errors.Is(err, ErrWaitingFailed) {
		t.Fatalf("exp ErrWaitingFailed, got: %v", err)
	}

	if got := calls.Load(); got != 2 {
		t.Errorf("exp 2 server calls, got %d", got)
	}
}

func TestThrottle_HostsAreIndependent(t *testing.T) {
	api, apiCalls := newCountingServer(t)
	storage, storageCalls := newCountingServer(t)

	rt, err := NewRoundTripper(1, 1, nil, http.DefaultTransport)
	if err != nil {
		t.Fatal(err)
	}
	c := &http.Client{Transport: rt}

	if err := doGet(t.Context(), c, api.URL); err != nil {
		t.Fatalf("api request: %v", err)
	}

	// The api host's bucket is now empty; storage has its own.
	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := doGet(ctx, c, storage.URL); err != nil {
		t.Fatalf("storage request should not wait on the api bucket: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 40*time.Millisecond {
		t.Errorf("storage request was delayed %v", elapsed)
	}

	if apiCalls.Load() != 1 || storageCalls.Load() != 1 {
		t.Errorf("exp one call each, got api=%d storage=%d", apiCalls.Load(), storageCalls.Load())
	}
}

func TestThrottle_CancelledBeforeWait(t *testing.T) {
	srv, calls := newCountingServer(t)

	rt, err := NewRoundTripper(10, 10, nil, http.DefaultTransport)
	if err != nil {
		t.Fatal(err)
	}
	c := &http.Client{Transport: rt}

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err = doGet(ctx, c, srv.URL)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("exp context.Canceled, got: %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("cancelled request reached the server")
	}
}

func TestThrottle_RetryAfterPausesHost(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	rt, err := NewRoundTripper(100, 100, nil, http.DefaultTransport)
	if err != nil {
		t.Fatal(err)
	}
	c := &http.Client{Transport: rt}

	// The 429 itself is handed back to the caller.
	if err := doGet(t.Context(), c, srv.URL); err != nil {
		t.Fatalf("first request: %v", err)
	}

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	err = doGet(ctx, c, srv.URL)
	if !errors.Is(err, ErrWaitingFailed) {
		t.Fatalf("exp ErrWaitingFailed during cooldown, got: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("exp the paused host to see 1 call, got %d", got)
	}

	other, otherCalls := newCountingServer(t)
	if err := doGet(t.Context(), c, other.URL); err != nil {
		t.Fatalf("other host should not be paused: %v", err)
	}
	if otherCalls.Load() != 1 {
		t.Error("other host not reached")
	}
}

func TestRetryAfter(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := map[string]struct {
		value string
		exp   time.Duration
		expOK bool
	}{
		"seconds":  {value: "5", exp: 5 * time.Second, expOK: true},
		"httpDate": {value: now.Add(90 * time.Second).Format(http.TimeFormat), exp: 90 * time.Second, expOK: true},
		"pastDate": {value: now.Add(-time.Minute).Format(http.TimeFormat)},
		"zero":     {value: "0"},
		"empty":    {value: ""},
		"garbage":  {value: "soon"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, ok := retryAfter(tc.value, now)
			if ok != tc.expOK || got != tc.exp {
				t.Errorf("retryAfter(%q) = %v, %v; want %v, %v", tc.value, got, ok, tc.exp, tc.expOK)
			}
		})
	}
}
