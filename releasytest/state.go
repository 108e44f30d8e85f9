package releasytest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strconv"

	"github.com/google/uuid"

	"github.com/adamwoolhether/releasy/client"
	"github.com/adamwoolhether/releasy/internal/web/errs"
)

type apiKey struct {
	token   string
	info    client.AdminCreateKeyResponse
	revoked bool
}

type artifact struct {
	desc        client.ArtifactDescriptor
	contentType string
	uploaded    bool
	data        []byte
	etag        string
}

// presign is an outstanding upload grant keyed by object key.
type presign struct {
	artifactID string
	token      string
	expiresAt  int64
}

type grant struct {
	artifactID string
	expiresAt  int64
}

type state struct {
	customers    []*client.AdminCustomerResponse
	users        []*client.UserResponse
	entitlements []*client.EntitlementResponse
	keys         []*apiKey
	keysByToken  map[string]*apiKey
	audit        []client.AuditEventResponse
	releases     []*client.ReleaseResponse
	artifacts    map[string]*artifact
	artifactIDs  []string
	presigns     map[string]*presign
	grants       map[string]grant
}

func newState() state {
	return state{
		keysByToken: make(map[string]*apiKey),
		artifacts:   make(map[string]*artifact),
		presigns:    make(map[string]*presign),
		grants:      make(map[string]grant),
	}
}

func find[T any](items []*T, match func(*T) bool) (*T, bool) {
	i := slices.IndexFunc(items, match)
	if i < 0 {
		return nil, false
	}

	return items[i], true
}

func (st *state) customer(id string) (*client.AdminCustomerResponse, bool) {
	return find(st.customers, func(c *client.AdminCustomerResponse) bool { return c.ID == id })
}

func (st *state) user(id string) (*client.UserResponse, bool) {
	return find(st.users, func(u *client.UserResponse) bool { return u.ID == id })
}

func (st *state) release(id string) (*client.ReleaseResponse, bool) {
	return find(st.releases, func(r *client.ReleaseResponse) bool { return r.ID == id })
}

func (st *state) entitlement(customerID, id string) (*client.EntitlementResponse, bool) {
	return find(st.entitlements, func(e *client.EntitlementResponse) bool {
		return e.ID == id && e.CustomerID == customerID
	})
}

func (s *Server) auditLocked(actor, event, customerID string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("encoding audit payload", "event", event, "error", err)
		raw = nil
	}

	s.audit = append(s.audit, client.AuditEventResponse{
		ID:         uuid.NewString(),
		Actor:      actor,
		Event:      event,
		CreatedAt:  s.now().Unix(),
		CustomerID: customerID,
		Payload:    raw,
	})
}

func notFound(kind, id string) error {
	return errs.New(http.StatusNotFound, "not_found", fmt.Errorf("%s %s not found", kind, id))
}

func conflict(format string, args ...any) error {
	return errs.New(http.StatusConflict, "conflict", fmt.Errorf(format, args...))
}

func badRequest(format string, args ...any) error {
	return errs.New(http.StatusBadRequest, "bad_request", fmt.Errorf(format, args...))
}

// queryInt reads a non-negative integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, badRequest("query param[%s] must be a non-negative integer", name)
	}

	return n, nil
}

func pageParams(r *http.Request) (limit, offset int, err error) {
	if limit, err = queryInt(r, "limit", 50); err != nil {
		return 0, 0, err
	}
	if offset, err = queryInt(r, "offset", 0); err != nil {
		return 0, 0, err
	}

	return limit, offset, nil
}

// matches reports whether the filter name, if present in the query, equals
// value. A present but empty filter matches only empty values.
func matches(r *http.Request, name, value string) bool {
	q := r.URL.Query()
	if !q.Has(name) {
		return true
	}

	return q.Get(name) == value
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}

	return items[offset:min(offset+limit, len(items))]
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// ----------------------------------------------------------------------------
// Seeding
// ----------------------------------------------------------------------------

// SeedCustomer adds a customer and returns it.
func (s *Server) SeedCustomer(name string) client.AdminCustomerResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := client.AdminCustomerResponse{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: s.now().Unix(),
	}
	s.customers = append(s.customers, &c)

	return c
}

// SeedUser adds an active user belonging to customerID.
func (s *Server) SeedUser(customerID, email string) client.UserResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().Unix()
	u := client.UserResponse{
		ID:             uuid.NewString(),
		KeycloakUserID: uuid.NewString(),
		CustomerID:     customerID,
		Email:          email,
		Status:         "active",
		Groups:         []string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.users = append(s.users, &u)

	return u
}

// SeedAPIKey issues an API key for customerID and returns its secret.
func (s *Server) SeedAPIKey(customerID string, scopes ...string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.issueKeyLocked(customerID, "ci", scopes, nil).token
}

func (s *Server) issueKeyLocked(customerID, keyType string, scopes []string, expiresAt *int64) *apiKey {
	if scopes == nil {
		scopes = []string{}
	}

	k := apiKey{
		token: "rk_" + uuid.NewString(),
		info: client.AdminCreateKeyResponse{
			APIKeyID:   uuid.NewString(),
			CustomerID: customerID,
			KeyType:    keyType,
			Scopes:     scopes,
			ExpiresAt:  expiresAt,
		},
	}
	k.info.APIKey = k.token
	s.keys = append(s.keys, &k)
	s.keysByToken[k.token] = &k

	return &k
}

// SeedRelease adds a draft release.
func (s *Server) SeedRelease(product, version string) client.ReleaseResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	rel := client.ReleaseResponse{
		ID:        uuid.NewString(),
		Product:   product,
		Version:   version,
		Status:    "draft",
		CreatedAt: s.now().Unix(),
	}
	s.releases = append(s.releases, &rel)

	return rel
}

// SeedArtifact registers filename on releaseID with data already uploaded.
// It panics if the release does not exist.
func (s *Server) SeedArtifact(releaseID, filename string, data []byte) client.ArtifactDescriptor {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.release(releaseID); !ok {
		panic("releasytest: SeedArtifact: unknown release " + releaseID)
	}

	a := s.registerLocked(releaseID, client.ArtifactDescriptor{
		Filename: filename,
		Checksum: checksum(data),
		Size:     int64(len(data)),
	})
	a.uploaded = true
	a.data = data
	a.etag = `"` + checksum(data)[len("sha256:"):] + `"`

	return a.desc
}

func (s *Server) registerLocked(releaseID string, desc client.ArtifactDescriptor) *artifact {
	desc.ID = uuid.NewString()
	desc.ReleaseID = releaseID
	desc.ObjectKey = releaseID + "/" + desc.ID + "/" + desc.Filename
	desc.CreatedAt = s.now().Unix()

	a := artifact{desc: desc}
	s.artifacts[desc.ID] = &a
	s.artifactIDs = append(s.artifactIDs, desc.ID)

	return &a
}

// Artifact returns the stored bytes of an uploaded artifact.
func (s *Server) Artifact(id string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.artifacts[id]
	if !ok || !a.uploaded {
		return nil, false
	}

	return slices.Clone(a.data), true
}

// AuditEvents returns every audit event recorded so far.
func (s *Server) AuditEvents() []client.AuditEventResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.audit)
}
