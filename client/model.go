package client

import (
	"encoding/json"
	"net/url"

	"github.com/adamwoolhether/releasy/opt"
)

// Request types mark optional fields with opt.Field and the omitzero tag so
// "not supplied" and "explicitly null" stay distinct on the wire. Required
// fields carry validate:"required" and are checked before any I/O.
//
// In response types every field without omitempty must be present and
// non-null in a 2xx reply, and identifiers must also be non-empty. Anything
// else is reported as a *DecodeError.

// HealthResponse is returned by the health, liveness and readiness probes.
type HealthResponse struct {
	Status string `json:"status" validate:"required"`
}

// ----------------------------------------------------------------------------
// Customers
// ----------------------------------------------------------------------------

// AdminCreateCustomerRequest is the body of a customer creation.
type AdminCreateCustomerRequest struct {
	Name string            `json:"name" validate:"required"`
	Plan opt.Field[string] `json:"plan,omitzero"`
}

// AdminCreateCustomerResponse is returned when a customer is created.
type AdminCreateCustomerResponse struct {
	ID        string `json:"id" validate:"required"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"`
	Plan      string `json:"plan,omitempty"`
}

// AdminCustomerResponse is the admin view of a customer.
type AdminCustomerResponse struct {
	ID          string `json:"id" validate:"required"`
	Name        string `json:"name"`
	CreatedAt   int64  `json:"created_at"`
	Plan        string `json:"plan,omitempty"`
	SuspendedAt *int64 `json:"suspended_at,omitempty"`
}

// AdminUpdateCustomerRequest is a partial customer update. Absent fields are left unchanged.
type AdminUpdateCustomerRequest struct {
	Name      opt.Field[string] `json:"name,omitzero"`
	Plan      opt.Field[string] `json:"plan,omitzero"`
	Suspended opt.Field[bool]   `json:"suspended,omitzero"`
}

// AdminCustomerListQuery filters and pages the customer list.
type AdminCustomerListQuery struct {
	CustomerID opt.Field[string]
	Name       opt.Field[string]
	Plan       opt.Field[string]
	Limit      opt.Field[int32]
	Offset     opt.Field[int32]
}

func (q AdminCustomerListQuery) queryValues() (url.Values, error) {
	b := newQuery()
	addQuery(b, "customer_id", q.CustomerID)
	addQuery(b, "name", q.Name)
	addQuery(b, "plan", q.Plan)
	addQuery(b, "limit", q.Limit)
	addQuery(b, "offset", q.Offset)
	return b.build()
}

// AdminCustomerListResponse is one page of customers.
type AdminCustomerListResponse struct {
	Customers []AdminCustomerResponse `json:"customers" validate:"dive"`
	Limit     int64                   `json:"limit"`
	Offset    int64                   `json:"offset"`
}

// ----------------------------------------------------------------------------
// Users
// ----------------------------------------------------------------------------

// UserCreateRequest is the body of a user creation.
type UserCreateRequest struct {
	Email       string                     `json:"email" validate:"required"`
	CustomerID  string                     `json:"customer_id" validate:"required"`
	DisplayName opt.Field[string]          `json:"display_name,omitzero"`
	Groups      opt.Field[[]string]        `json:"groups,omitzero"`
	Metadata    opt.Field[json.RawMessage] `json:"metadata,omitzero"`
	Status      opt.Field[string]          `json:"status,omitzero"`
}

// UserPatchRequest is a partial user update.
type UserPatchRequest struct {
	DisplayName opt.Field[string]          `json:"display_name,omitzero"`
	Groups      opt.Field[[]string]        `json:"groups,omitzero"`
	Metadata    opt.Field[json.RawMessage] `json:"metadata,omitzero"`
	Status      opt.Field[string]          `json:"status,omitzero"`
}

// UserGroupsReplaceRequest replaces a user's group memberships.
type UserGroupsReplaceRequest struct {
	Groups []string `json:"groups" validate:"required"`
}

// ResetCredentialsRequest is the optional body of a credential reset.
type ResetCredentialsRequest struct {
	SendEmail opt.Field[bool] `json:"send_email,omitzero"`
}

// UserResponse is the admin view of a user.
type UserResponse struct {
	ID             string          `json:"id" validate:"required"`
	KeycloakUserID string          `json:"keycloak_user_id"`
	CustomerID     string          `json:"customer_id"`
	Email          string          `json:"email"`
	Status         string          `json:"status"`
	Groups         []string        `json:"groups"`
	CreatedAt      int64           `json:"created_at"`
	UpdatedAt      int64           `json:"updated_at"`
	DisabledAt     *int64          `json:"disabled_at,omitempty"`
	DisplayName    string          `json:"display_name,omitempty"`
	LastSyncedAt   *int64          `json:"last_synced_at,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
}

// UserListQuery filters and pages the user list. Paging is cursor based.
type UserListQuery struct {
	CustomerID     opt.Field[string]
	Email          opt.Field[string]
	Status         opt.Field[string]
	KeycloakUserID opt.Field[string]
	CreatedFrom    opt.Field[int64]
	CreatedTo      opt.Field[int64]
	Limit          opt.Field[int32]
	Cursor         opt.Field[string]
}

func (q UserListQuery) queryValues() (url.Values, error) {
	b := newQuery()
	addQuery(b, "customer_id", q.CustomerID)
	addQuery(b, "email", q.Email)
	addQuery(b, "status", q.Status)
	addQuery(b, "keycloak_user_id", q.KeycloakUserID)
	addQuery(b, "created_from", q.CreatedFrom)
	addQuery(b, "created_to", q.CreatedTo)
	addQuery(b, "limit", q.Limit)
	addQuery(b, "cursor", q.Cursor)
	return b.build()
}

// UserListResponse is one page of users.
type UserListResponse struct {
	Users      []UserResponse `json:"users" validate:"dive"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// ----------------------------------------------------------------------------
// Entitlements
// ----------------------------------------------------------------------------

// EntitlementCreateRequest grants a customer access to a product.
type EntitlementCreateRequest struct {
	Product  string                     `json:"product" validate:"required"`
	StartsAt int64                      `json:"starts_at"`
	EndsAt   opt.Field[int64]           `json:"ends_at,omitzero"`
	Metadata opt.Field[json.RawMessage] `json:"metadata,omitzero"`
}

// EntitlementUpdateRequest is a partial entitlement update.
type EntitlementUpdateRequest struct {
	Product  opt.Field[string]          `json:"product,omitzero"`
	StartsAt opt.Field[int64]           `json:"starts_at,omitzero"`
	EndsAt   opt.Field[int64]           `json:"ends_at,omitzero"`
	Metadata opt.Field[json.RawMessage] `json:"metadata,omitzero"`
}

// EntitlementResponse is a customer's entitlement to a product.
type EntitlementResponse struct {
	ID         string          `json:"id" validate:"required"`
	CustomerID string          `json:"customer_id"`
	Product    string          `json:"product"`
	StartsAt   int64           `json:"starts_at"`
	EndsAt     *int64          `json:"ends_at,omitempty"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}

// EntitlementListQuery filters and pages a customer's entitlements.
type EntitlementListQuery struct {
	Product opt.Field[string]
	Limit   opt.Field[int32]
	Offset  opt.Field[int32]
}

func (q EntitlementListQuery) queryValues() (url.Values, error) {
	b := newQuery()
	addQuery(b, "product", q.Product)
	addQuery(b, "limit", q.Limit)
	addQuery(b, "offset", q.Offset)
	return b.build()
}

// EntitlementListResponse is one page of entitlements.
type EntitlementListResponse struct {
	Entitlements []EntitlementResponse `json:"entitlements" validate:"dive"`
	Limit        int64                 `json:"limit"`
	Offset       int64                 `json:"offset"`
}

// ----------------------------------------------------------------------------
// API keys
// ----------------------------------------------------------------------------

// AdminCreateKeyRequest is the body of an API key creation.
type AdminCreateKeyRequest struct {
	CustomerID string              `json:"customer_id" validate:"required"`
	ExpiresAt  opt.Field[int64]    `json:"expires_at,omitzero"`
	KeyType    opt.Field[string]   `json:"key_type,omitzero"`
	Name       opt.Field[string]   `json:"name,omitzero"`
	Scopes     opt.Field[[]string] `json:"scopes,omitzero"`
}

// AdminCreateKeyResponse carries a new API key. The secret is only returned here.
type AdminCreateKeyResponse struct {
	APIKeyID   string   `json:"api_key_id" validate:"required"`
	APIKey     string   `json:"api_key" validate:"required"`
	CustomerID string   `json:"customer_id"`
	KeyType    string   `json:"key_type"`
	Scopes     []string `json:"scopes"`
	ExpiresAt  *int64   `json:"expires_at,omitempty"`
}

// AdminRevokeKeyRequest names the API key to revoke.
type AdminRevokeKeyRequest struct {
	APIKeyID string `json:"api_key_id" validate:"required"`
}

// AdminRevokeKeyResponse confirms a revocation.
type AdminRevokeKeyResponse struct {
	APIKeyID string `json:"api_key_id" validate:"required"`
}

// APIKeyIntrospection describes the key the client is authenticated with.
type APIKeyIntrospection struct {
	Active     bool     `json:"active"`
	APIKeyID   string   `json:"api_key_id" validate:"required"`
	CustomerID string   `json:"customer_id"`
	KeyType    string   `json:"key_type"`
	Scopes     []string `json:"scopes"`
	ExpiresAt  *int64   `json:"expires_at,omitempty"`
}

// ----------------------------------------------------------------------------
// Audit events
// ----------------------------------------------------------------------------

// AuditEventListQuery filters and pages the audit log.
type AuditEventListQuery struct {
	CustomerID  opt.Field[string]
	Actor       opt.Field[string]
	Event       opt.Field[string]
	CreatedFrom opt.Field[int64]
	CreatedTo   opt.Field[int64]
	Limit       opt.Field[int32]
	Offset      opt.Field[int32]
}

func (q AuditEventListQuery) queryValues() (url.Values, error) {
	b := newQuery()
	addQuery(b, "customer_id", q.CustomerID)
	addQuery(b, "actor", q.Actor)
	addQuery(b, "event", q.Event)
	addQuery(b, "created_from", q.CreatedFrom)
	addQuery(b, "created_to", q.CreatedTo)
	addQuery(b, "limit", q.Limit)
	addQuery(b, "offset", q.Offset)
	return b.build()
}

// AuditEventResponse is one audit log entry.
type AuditEventResponse struct {
	ID         string          `json:"id" validate:"required"`
	Actor      string          `json:"actor"`
	Event      string          `json:"event"`
	CreatedAt  int64           `json:"created_at"`
	CustomerID string          `json:"customer_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// AuditEventListResponse is one page of audit events.
type AuditEventListResponse struct {
	Events []AuditEventResponse `json:"events" validate:"dive"`
	Limit  int64                `json:"limit"`
	Offset int64                `json:"offset"`
}

// ----------------------------------------------------------------------------
// Download tokens
// ----------------------------------------------------------------------------

// DownloadTokenRequest asks for a download token for an artifact.
type DownloadTokenRequest struct {
	ArtifactID       string            `json:"artifact_id" validate:"required"`
	ExpiresInSeconds opt.Field[int32]  `json:"expires_in_seconds,omitzero"`
	Purpose          opt.Field[string] `json:"purpose,omitzero"`
}

// DownloadTokenResponse is a short-lived download token.
type DownloadTokenResponse struct {
	DownloadURL string `json:"download_url" validate:"required"`
	ExpiresAt   int64  `json:"expires_at"`
}

// DownloadResolution is the redirect target a download token resolves to.
type DownloadResolution struct {
	Location string
}

// ----------------------------------------------------------------------------
// Releases
// ----------------------------------------------------------------------------

// ReleaseCreateRequest is the body of a release creation.
type ReleaseCreateRequest struct {
	Product string `json:"product" validate:"required"`
	Version string `json:"version" validate:"required"`
}

// ArtifactSummary is an artifact as listed on its release.
type ArtifactSummary struct {
	ID        string `json:"id" validate:"required"`
	ObjectKey string `json:"object_key"`
	Filename  string `json:"filename,omitempty"`
	Platform  string `json:"platform"`
	Checksum  string `json:"checksum"`
	Size      int64  `json:"size"`
}

// ReleaseResponse is a release. Artifacts are only set when requested.
type ReleaseResponse struct {
	ID          string            `json:"id" validate:"required"`
	Product     string            `json:"product"`
	Version     string            `json:"version"`
	Status      string            `json:"status"`
	CreatedAt   int64             `json:"created_at"`
	PublishedAt *int64            `json:"published_at,omitempty"`
	Artifacts   []ArtifactSummary `json:"artifacts,omitempty" validate:"omitempty,dive"`
}

// ReleaseListQuery filters and pages the release list.
type ReleaseListQuery struct {
	Product          opt.Field[string]
	Version          opt.Field[string]
	Status           opt.Field[string]
	IncludeArtifacts opt.Field[bool]
	Limit            opt.Field[int32]
	Offset           opt.Field[int32]
}

func (q ReleaseListQuery) queryValues() (url.Values, error) {
	b := newQuery()
	addQuery(b, "product", q.Product)
	addQuery(b, "version", q.Version)
	addQuery(b, "status", q.Status)
	addQuery(b, "include_artifacts", q.IncludeArtifacts)
	addQuery(b, "limit", q.Limit)
	addQuery(b, "offset", q.Offset)
	return b.build()
}

// ReleaseListResponse is one page of releases.
type ReleaseListResponse struct {
	Releases []ReleaseResponse `json:"releases" validate:"dive"`
	Limit    int64             `json:"limit"`
	Offset   int64             `json:"offset"`
}
