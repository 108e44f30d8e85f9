package client_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/adamwoolhether/releasy/client"
	"github.com/adamwoolhether/releasy/client/throttle"
	"github.com/adamwoolhether/releasy/releasytest"
)

var quiet = client.WithLogger(slog.New(slog.DiscardHandler))

func newServer(t *testing.T, opts ...releasytest.Option) *releasytest.Server {
	t.Helper()

	srv := releasytest.New(opts...)
	t.Cleanup(srv.Close)

	return srv
}

func adminClient(srv *releasytest.Server, opts ...client.Option) *client.Client {
	return srv.Client(client.AdminKey(srv.AdminKey()), append([]client.Option{quiet}, opts...)...)
}

func TestNew_BaseURL(t *testing.T) {
	tests := map[string]struct {
		in     string
		exp    string
		expErr bool
	}{
		"plain":          {in: "https://releasy.example.com", exp: "https://releasy.example.com"},
		"trailingSlash":  {in: "https://releasy.example.com/", exp: "https://releasy.example.com"},
		"manySlashes":    {in: "http://localhost:8080///", exp: "http://localhost:8080"},
		"whitespace":     {in: "  https://releasy.example.com/api/ \n", exp: "https://releasy.example.com/api"},
		"empty":          {in: "", expErr: true},
		"blank":          {in: "   ", expErr: true},
		"relative":       {in: "/v1", expErr: true},
		"noScheme":       {in: "releasy.example.com", expErr: true},
		"ftp":            {in: "ftp://releasy.example.com", expErr: true},
		"noHost":         {in: "https://", expErr: true},
		"query":          {in: "https://releasy.example.com?x=1", expErr: true},
		"fragment":       {in: "https://releasy.example.com#top", expErr: true},
		"controlCharURL": {in: "https://releasy.example.com/\x7f", expErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			c, err := client.New(tc.in, client.NoAuth())

			if tc.expErr {
				if !errors.Is(err, client.ErrInvalidBaseURL) {
					t.Fatalf("expected ErrInvalidBaseURL, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if diff := cmp.Diff(tc.exp, c.BaseURL()); diff != "" {
				t.Errorf("base url mismatch (-exp +got):\n%s", diff)
			}
		})
	}
}

func TestMustNew_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for invalid base url")
		}
	}()

	client.MustNew("not a url", client.NoAuth())
}

func TestNew_OptionErrors(t *testing.T) {
	tests := map[string]client.Option{
		"nilHTTPClient":   client.WithHTTPClient(nil),
		"nilTransport":    client.WithTransport(nil),
		"negativeTimeout": client.WithTimeout(-time.Second),
		"zeroThrottle":    client.WithThrottle(0, 1),
		"nilLogger":       client.WithLogger(nil),
	}

	for name, opt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := client.New("https://releasy.example.com", client.NoAuth(), opt)
			if err == nil || !strings.Contains(err.Error(), "applying client option") {
				t.Fatalf("expected option error, got %v", err)
			}
		})
	}
}

func TestWithAuth(t *testing.T) {
	base := client.MustNew("https://releasy.example.com", client.AdminKey("admin"))
	derived := base.WithAuth(client.APIKey("key"))

	if base.Auth().Kind() != client.AuthAdminKey {
		t.Errorf("original auth changed to %s", base.Auth().Kind())
	}
	if derived.Auth().Kind() != client.AuthAPIKey {
		t.Errorf("derived auth = %s, want %s", derived.Auth().Kind(), client.AuthAPIKey)
	}
	if derived.BaseURL() != base.BaseURL() {
		t.Errorf("derived base url = %q", derived.BaseURL())
	}
}

func TestAuth_StringRedacts(t *testing.T) {
	for _, a := range []client.Auth{client.APIKey("s3cret"), client.AdminKey("s3cret"), client.OperatorJWT("s3cret")} {
		if strings.Contains(a.String(), "s3cret") {
			t.Errorf("%s leaks its token", a.Kind())
		}
	}
}

func TestClient_WithUserAgent(t *testing.T) {
	srv := newServer(t)
	c := adminClient(srv, client.WithUserAgent("release-bot/1.0"))

	if _, err := c.Health(t.Context()); err != nil {
		t.Fatalf("health: %v", err)
	}

	got, _ := srv.LastRequest()
	if ua := got.Header.Get("User-Agent"); ua != "release-bot/1.0" {
		t.Errorf("User-Agent = %q, want %q", ua, "release-bot/1.0")
	}
}

type countingTransport struct {
	n    atomic.Int32
	next http.RoundTripper
}

func (ct *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	ct.n.Add(1)
	return ct.next.RoundTrip(r)
}

func TestClient_WithTransport(t *testing.T) {
	srv := newServer(t)
	ct := countingTransport{next: srv.HTTPClient().Transport}

	c := client.MustNew(srv.URL(), client.NoAuth(), quiet, client.WithTransport(&ct))
	for range 3 {
		if _, err := c.Live(t.Context()); err != nil {
			t.Fatalf("live: %v", err)
		}
	}

	if got := ct.n.Load(); got != 3 {
		t.Errorf("round trips = %d, want 3", got)
	}
}

func TestClient_WithTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer ts.Close()

	c := client.MustNew(ts.URL, client.NoAuth(), quiet, client.WithTimeout(50*time.Millisecond))

	_, err := c.Health(t.Context())

	te, ok := errors.AsType[*client.TransportError](err)
	if !ok {
		t.Fatalf("expected *TransportError, got %T: %v", err, err)
	}
	if te.Method != http.MethodGet || !strings.HasSuffix(te.URL, "/health") {
		t.Errorf("unexpected transport error fields: %+v", te)
	}
	if !errors.Is(err, client.ErrTransport) {
		t.Error("TransportError should wrap ErrTransport")
	}
}

func TestClient_TransportErrorOnClosedServer(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := client.MustNew(url, client.NoAuth(), quiet).Health(t.Context())
	if !errors.Is(err, client.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestClient_WithThrottle(t *testing.T) {
	srv := newServer(t)
	c := adminClient(srv, client.WithThrottle(1, 1))

	if _, err := c.Health(t.Context()); err != nil {
		t.Fatalf("first call: %v", err)
	}

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Health(ctx)
	if !errors.Is(err, throttle.ErrWaitingFailed) {
		t.Fatalf("expected throttle wait failure, got %v", err)
	}
	if !errors.Is(err, client.ErrTransport) {
		t.Error("throttle failure should surface as a transport error")
	}
}
