package client

import (
	"context"
	"net/http"
)

var (
	epListUsers        = endpoint{name: "releasy.ListUsers", method: http.MethodGet, path: "/v1/admin/users"}
	epCreateUser       = endpoint{name: "releasy.CreateUser", method: http.MethodPost, path: "/v1/admin/users", idempotent: true}
	epGetUser          = endpoint{name: "releasy.GetUser", method: http.MethodGet, path: "/v1/admin/users/{user_id}"}
	epPatchUser        = endpoint{name: "releasy.PatchUser", method: http.MethodPatch, path: "/v1/admin/users/{user_id}"}
	epReplaceGroups    = endpoint{name: "releasy.ReplaceGroups", method: http.MethodPut, path: "/v1/admin/users/{user_id}/groups"}
	epResetCredentials = endpoint{name: "releasy.ResetCredentials", method: http.MethodPost, path: "/v1/admin/users/{user_id}/reset-credentials"}
)

// The admin user endpoints may answer failures with the enterprise error
// shape; use [AsEnterprise] or [APIError.Enterprise] to read the field
// violations.

func (c *Client) ListUsers(ctx context.Context, q UserListQuery, opts ...CallOption) (*UserListResponse, error) {
	return call[UserListResponse](ctx, c, epListUsers, exchange{
		query:    q,
		callOpts: applyCallOpts(opts),
	})
}

// CreateUser creates a user. It accepts [WithIdempotencyKey].
func (c *Client) CreateUser(ctx context.Context, req UserCreateRequest, opts ...CallOption) (*UserResponse, error) {
	return call[UserResponse](ctx, c, epCreateUser, exchange{
		body:     req,
		callOpts: applyCallOpts(opts),
	})
}

func (c *Client) GetUser(ctx context.Context, userID string, opts ...CallOption) (*UserResponse, error) {
	return call[UserResponse](ctx, c, epGetUser, exchange{
		params:   []pathParam{{"user_id", userID}},
		callOpts: applyCallOpts(opts),
	})
}

func (c *Client) PatchUser(ctx context.Context, userID string, req UserPatchRequest, opts ...CallOption) (*UserResponse, error) {
	return call[UserResponse](ctx, c, epPatchUser, exchange{
		params:   []pathParam{{"user_id", userID}},
		body:     req,
		callOpts: applyCallOpts(opts),
	})
}

// ReplaceGroups overwrites the user's group list. An empty, non-nil slice
// clears it.
func (c *Client) ReplaceGroups(ctx context.Context, userID string, req UserGroupsReplaceRequest, opts ...CallOption) (*UserResponse, error) {
	return call[UserResponse](ctx, c, epReplaceGroups, exchange{
		params:   []pathParam{{"user_id", userID}},
		body:     req,
		callOpts: applyCallOpts(opts),
	})
}

// ResetCredentials triggers a credential reset. The service answers 202 with
// no body; any other status is an *APIError.
func (c *Client) ResetCredentials(ctx context.Context, userID string, req ResetCredentialsRequest, opts ...CallOption) error {
	return callEmpty(ctx, c, epResetCredentials, exchange{
		params:   []pathParam{{"user_id", userID}},
		body:     req,
		callOpts: applyCallOpts(opts),
	}, http.StatusAccepted)
}
