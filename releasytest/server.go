// Package releasytest provides an in-process release service for tests.
//
// A Server speaks the same HTTP API as the real service, keeps its state in
// memory, records every request it receives and hosts its own presigned
// storage endpoint, so a client can be exercised end to end:
//
//	srv := releasytest.New()
//	defer srv.Close()
//
//	c := srv.Client(client.AdminKey(srv.AdminKey()))
package releasytest

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adamwoolhether/releasy/client"
	"github.com/adamwoolhether/releasy/internal/web/middleware"
	"github.com/adamwoolhether/releasy/internal/web/mux"
)

// DefaultAdminKey is the admin secret accepted unless WithAdminKey is used.
const DefaultAdminKey = "releasytest-admin-key"

// UploadTokenHeader carries the per-presign secret the storage endpoint
// checks.
const UploadTokenHeader = "x-releasy-upload-token"

const presignTTL = 15 * time.Minute

// Request is a request as received by the Server.
type Request struct {
	Method   string
	Path     string
	RawQuery string
	Header   http.Header
	Body     []byte
}

type failure struct {
	method string
	path   string
	status int
	body   string
}

type replay struct {
	status int
	body   []byte
}

// Server is an in-memory release service listening on a loopback address.
type Server struct {
	srv         *httptest.Server
	baseURL     string
	handler     http.Handler
	logger      *slog.Logger
	adminKey    string
	operatorJWT string
	clock       atomic.Pointer[func() time.Time]

	mu       sync.Mutex
	requests []Request
	failures []failure
	idem     map[string]replay
	state
}

// New starts a Server on a loopback address. Callers must Close it.
func New(optFns ...Option) *Server {
	opts := applyOptions(optFns)

	s := newServer(opts)
	s.srv = httptest.NewUnstartedServer(s.handler)
	if opts.tls {
		s.srv.StartTLS()
	} else {
		s.srv.Start()
	}
	s.baseURL = s.srv.URL

	return s
}

// NewUnstarted builds a Server without listening anywhere. The caller
// serves [Server.Handler] itself; baseURL is the address clients reach it
// on and prefixes the presigned upload and download URLs the Server hands
// out. WithTLS has no effect.
func NewUnstarted(baseURL string, optFns ...Option) *Server {
	s := newServer(applyOptions(optFns))
	s.baseURL = strings.TrimRight(baseURL, "/")

	return s
}

func applyOptions(optFns []Option) options {
	opts := options{
		adminKey: DefaultAdminKey,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range optFns {
		opt(&opts)
	}

	return opts
}

func newServer(opts options) *Server {
	s := Server{
		logger:      opts.logger,
		adminKey:    opts.adminKey,
		operatorJWT: opts.operatorJWT,
		idem:        make(map[string]replay),
		state:       newState(),
	}
	s.SetClock(time.Now)

	app := mux.New(
		mux.WithLogger(opts.logger),
		mux.WithMiddleware(
			middleware.Logger(opts.logger),
			middleware.Errors(opts.logger),
			middleware.Panics(opts.logger),
		),
	)
	s.routes(app)
	s.handler = s.record(app)

	return &s
}

func (s *Server) routes(app *mux.App) {
	app.Get("/health", s.health)
	app.Get("/live", s.health)
	app.Get("/ready", s.health)
	app.Get("/openapi.json", s.openAPI)

	app.Get("/v1/downloads/{token}", s.resolveDownload)
	app.Put("/_storage/{key...}", s.storagePut)
	app.Get("/_storage/{key...}", s.storageGet)

	admin := app.Group()
	admin.Use(s.requireAdmin)

	admin.Get("/v1/admin/customers", s.listCustomers)
	admin.Post("/v1/admin/customers", s.createCustomer, s.idempotent)
	admin.Get("/v1/admin/customers/{customer_id}", s.getCustomer)
	admin.Patch("/v1/admin/customers/{customer_id}", s.updateCustomer)

	admin.Get("/v1/admin/customers/{customer_id}/entitlements", s.listEntitlements)
	admin.Post("/v1/admin/customers/{customer_id}/entitlements", s.createEntitlement, s.idempotent)
	admin.Patch("/v1/admin/customers/{customer_id}/entitlements/{entitlement_id}", s.updateEntitlement)
	admin.Delete("/v1/admin/customers/{customer_id}/entitlements/{entitlement_id}", s.deleteEntitlement)

	admin.Get("/v1/admin/users", s.listUsers)
	admin.Post("/v1/admin/users", s.createUser, s.idempotent)
	admin.Get("/v1/admin/users/{user_id}", s.getUser)
	admin.Patch("/v1/admin/users/{user_id}", s.patchUser)
	admin.Put("/v1/admin/users/{user_id}/groups", s.replaceGroups)
	admin.Post("/v1/admin/users/{user_id}/reset-credentials", s.resetCredentials)

	admin.Post("/v1/admin/keys", s.createKey, s.idempotent)
	admin.Post("/v1/admin/keys/revoke", s.revokeKey)
	admin.Get("/v1/admin/audit-events", s.listAuditEvents)

	admin.Post("/v1/releases", s.createRelease)
	admin.Delete("/v1/releases/{release_id}", s.deleteRelease)
	admin.Post("/v1/releases/{release_id}/publish", s.publishRelease)
	admin.Post("/v1/releases/{release_id}/unpublish", s.unpublishRelease)
	admin.Post("/v1/releases/{release_id}/artifacts", s.registerArtifact)
	admin.Post("/v1/artifacts/{artifact_id}/presign", s.presignArtifact)

	reader := app.Group()
	reader.Use(s.requireReader)
	reader.Get("/v1/releases", s.listReleases)
	reader.Post("/v1/downloads/token", s.createDownloadToken)

	keyed := app.Group()
	keyed.Use(s.requireAPIKey)
	keyed.Post("/v1/auth/introspect", s.introspect)
}

// URL is the base URL of the Server.
func (s *Server) URL() string {
	return s.baseURL
}

// Handler serves the release API and the storage endpoint.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Close shuts the Server down and blocks until outstanding requests finish.
// It is a no-op for a Server built with NewUnstarted.
func (s *Server) Close() {
	if s.srv != nil {
		s.srv.Close()
	}
}

// AdminKey is the admin secret the Server accepts.
func (s *Server) AdminKey() string {
	return s.adminKey
}

// HTTPClient returns an *http.Client configured to reach the Server,
// including its certificate when started with WithTLS.
func (s *Server) HTTPClient() *http.Client {
	if s.srv == nil {
		return http.DefaultClient
	}

	return s.srv.Client()
}

// Client builds a client bound to the Server's URL and HTTP client.
func (s *Server) Client(auth client.Auth, opts ...client.Option) *client.Client {
	opts = append([]client.Option{client.WithHTTPClient(s.HTTPClient())}, opts...)
	return client.MustNew(s.baseURL, auth, opts...)
}

// SetClock replaces the Server's notion of the current time. It drives
// created_at stamps and presign and download token expiry.
func (s *Server) SetClock(now func() time.Time) {
	s.clock.Store(&now)
}

func (s *Server) now() time.Time {
	return (*s.clock.Load())()
}

// Requests returns every request received so far, in arrival order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Request, len(s.requests))
	copy(out, s.requests)

	return out
}

// LastRequest returns the most recent request, or false if none arrived.
func (s *Server) LastRequest() (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.requests) == 0 {
		return Request{}, false
	}

	return s.requests[len(s.requests)-1], true
}

// FailNext makes the next request matching method and path answer with
// status and body verbatim instead of being handled. Queued failures are
// consumed in the order they were added.
func (s *Server) FailNext(method, path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures = append(s.failures, failure{method: method, path: path, status: status, body: body})
}

// record captures each request and serves any queued failure before the
// request reaches the router.
func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "reading request body", http.StatusBadRequest)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:   r.Method,
			Path:     r.URL.Path,
			RawQuery: r.URL.RawQuery,
			Header:   r.Header.Clone(),
			Body:     body,
		})
		f, ok := s.takeFailure(r.Method, r.URL.Path)
		s.mu.Unlock()

		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		if strings.HasPrefix(strings.TrimSpace(f.body), "{") {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(f.status)
		if _, err := io.WriteString(w, f.body); err != nil {
			s.logger.Error("writing injected failure", "error", err)
		}
	})
}

func (s *Server) takeFailure(method, path string) (failure, bool) {
	for i, f := range s.failures {
		if f.method == method && f.path == path {
			s.failures = append(s.failures[:i], s.failures[i+1:]...)
			return f, true
		}
	}

	return failure{}, false
}
