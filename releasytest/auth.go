package releasytest

import (
	"bytes"
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/adamwoolhether/releasy/client"
	"github.com/adamwoolhether/releasy/internal/web/errs"
	"github.com/adamwoolhether/releasy/internal/web/mux"
)

type ctxKey int

const principalKey ctxKey = iota + 1

// principal is the authenticated caller of a request.
type principal struct {
	actor string
	key   *apiKey
}

func withPrincipal(ctx context.Context, p principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func principalFrom(ctx context.Context) principal {
	p, ok := ctx.Value(principalKey).(principal)
	if !ok {
		return principal{actor: "anonymous"}
	}

	return p
}

var errUnauthorized = errors.New("missing or invalid credentials")

func unauthorized() error {
	return errs.New(http.StatusUnauthorized, "unauthorized", errUnauthorized)
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// adminPrincipal authenticates admin key or operator JWT credentials.
func (s *Server) adminPrincipal(r *http.Request) (principal, bool) {
	if key := r.Header.Get(client.HeaderAdminKey); key != "" && equal(key, s.adminKey) {
		return principal{actor: "admin"}, true
	}

	if s.operatorJWT == "" {
		return principal{}, false
	}

	token, ok := strings.CutPrefix(r.Header.Get(client.HeaderAuthorization), "Bearer ")
	if ok && equal(token, s.operatorJWT) {
		return principal{actor: "operator"}, true
	}

	return principal{}, false
}

// keyPrincipal authenticates an active, unexpired API key.
func (s *Server) keyPrincipal(r *http.Request) (principal, bool) {
	token := r.Header.Get(client.HeaderAPIKey)
	if token == "" {
		return principal{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keysByToken[token]
	if !ok || key.revoked {
		return principal{}, false
	}
	if exp := key.info.ExpiresAt; exp != nil && s.now().Unix() >= *exp {
		return principal{}, false
	}

	return principal{actor: "api_key:" + key.info.APIKeyID, key: key}, true
}

func (s *Server) requireAdmin(handler mux.Handler) mux.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		p, ok := s.adminPrincipal(r)
		if !ok {
			return unauthorized()
		}

		return handler(withPrincipal(ctx, p), w, r)
	}
}

// requireReader accepts admin credentials or an API key.
func (s *Server) requireReader(handler mux.Handler) mux.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		p, ok := s.adminPrincipal(r)
		if !ok {
			p, ok = s.keyPrincipal(r)
		}
		if !ok {
			return unauthorized()
		}

		return handler(withPrincipal(ctx, p), w, r)
	}
}

func (s *Server) requireAPIKey(handler mux.Handler) mux.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		p, ok := s.keyPrincipal(r)
		if !ok {
			return unauthorized()
		}

		return handler(withPrincipal(ctx, p), w, r)
	}
}

// idempotent replays the stored response of an earlier successful request
// carrying the same Idempotency-Key on the same route. Failed attempts are
// not stored.
func (s *Server) idempotent(handler mux.Handler) mux.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		key := r.Header.Get(client.HeaderIdempotencyKey)
		if key == "" {
			return handler(ctx, w, r)
		}
		scope := r.Method + " " + r.URL.Path + " " + key

		s.mu.Lock()
		rep, ok := s.idem[scope]
		s.mu.Unlock()

		if ok {
			mux.SetStatus(ctx, rep.status)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Idempotent-Replayed", "true")
			w.WriteHeader(rep.status)
			_, err := w.Write(rep.body)
			return err
		}

		cw := captureWriter{ResponseWriter: w}
		if err := handler(ctx, &cw, r); err != nil {
			return err
		}

		if cw.status >= 200 && cw.status < 300 {
			s.mu.Lock()
			s.idem[scope] = replay{status: cw.status, body: cw.buf.Bytes()}
			s.mu.Unlock()
		}

		return nil
	}
}

type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if cw.status == 0 {
		cw.status = http.StatusOK
	}
	cw.buf.Write(b)

	return cw.ResponseWriter.Write(b)
}
