package client

import (
	"context"
	"net/http"
)

var (
	epListEntitlements  = endpoint{name: "releasy.ListEntitlements", method: http.MethodGet, path: "/v1/admin/customers/{customer_id}/entitlements"}
	epCreateEntitlement = endpoint{name: "releasy.CreateEntitlement", method: http.MethodPost, path: "/v1/admin/customers/{customer_id}/entitlements", idempotent: true}
	epUpdateEntitlement = endpoint{name: "releasy.UpdateEntitlement", method: http.MethodPatch, path: "/v1/admin/customers/{customer_id}/entitlements/{entitlement_id}"}
	epDeleteEntitlement = endpoint{name: "releasy.DeleteEntitlement", method: http.MethodDelete, path: "/v1/admin/customers/{customer_id}/entitlements/{entitlement_id}"}
)

func (c *Client) ListEntitlements(ctx context.Context, customerID string, q EntitlementListQuery, opts ...CallOption) (*EntitlementListResponse, error) {
	return call[EntitlementListResponse](ctx, c, epListEntitlements, exchange{
		params:   []pathParam{{"customer_id", customerID}},
		query:    q,
		callOpts: applyCallOpts(opts),
	})
}

// CreateEntitlement grants a product to a customer. It accepts
// [WithIdempotencyKey].
func (c *Client) CreateEntitlement(ctx context.Context, customerID string, req EntitlementCreateRequest, opts ...CallOption) (*EntitlementResponse, error) {
	return call[EntitlementResponse](ctx, c, epCreateEntitlement, exchange{
		params:   []pathParam{{"customer_id", customerID}},
		body:     req,
		callOpts: applyCallOpts(opts),
	})
}

func (c *Client) UpdateEntitlement(ctx context.Context, customerID, entitlementID string, req EntitlementUpdateRequest, opts ...CallOption) (*EntitlementResponse, error) {
	return call[EntitlementResponse](ctx, c, epUpdateEntitlement, exchange{
		params:   []pathParam{{"customer_id", customerID}, {"entitlement_id", entitlementID}},
		body:     req,
		callOpts: applyCallOpts(opts),
	})
}

// DeleteEntitlement removes an entitlement. Success is exactly 204.
func (c *Client) DeleteEntitlement(ctx context.Context, customerID, entitlementID string, opts ...CallOption) error {
	return callEmpty(ctx, c, epDeleteEntitlement, exchange{
		params:   []pathParam{{"customer_id", customerID}, {"entitlement_id", entitlementID}},
		callOpts: applyCallOpts(opts),
	}, http.StatusNoContent)
}
