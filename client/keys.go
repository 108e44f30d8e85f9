package client

import (
	"context"
	"net/http"
)

var (
	epCreateKey  = endpoint{name: "releasy.AdminCreateKey", method: http.MethodPost, path: "/v1/admin/keys", idempotent: true}
	epRevokeKey  = endpoint{name: "releasy.AdminRevokeKey", method: http.MethodPost, path: "/v1/admin/keys/revoke"}
	epIntrospect = endpoint{name: "releasy.AuthIntrospect", method: http.MethodPost, path: "/v1/auth/introspect"}
)

// AdminCreateKey issues an API key for a customer. The secret is only
// returned once. It accepts [WithIdempotencyKey].
func (c *Client) AdminCreateKey(ctx context.Context, req AdminCreateKeyRequest, opts ...CallOption) (*AdminCreateKeyResponse, error) {
	return call[AdminCreateKeyResponse](ctx, c, epCreateKey, exchange{
		body:     req,
		callOpts: applyCallOpts(opts),
	})
}

func (c *Client) AdminRevokeKey(ctx context.Context, req AdminRevokeKeyRequest, opts ...CallOption) (*AdminRevokeKeyResponse, error) {
	return call[AdminRevokeKeyResponse](ctx, c, epRevokeKey, exchange{
		body:     req,
		callOpts: applyCallOpts(opts),
	})
}

// AuthIntrospect describes the API key the client is bound to.
func (c *Client) AuthIntrospect(ctx context.Context, opts ...CallOption) (*APIKeyIntrospection, error) {
	return call[APIKeyIntrospection](ctx, c, epIntrospect, exchange{callOpts: applyCallOpts(opts)})
}
