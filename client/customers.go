package client

import (
	"context"
	"net/http"
)

var (
	epListCustomers  = endpoint{name: "releasy.ListCustomers", method: http.MethodGet, path: "/v1/admin/customers"}
	epCreateCustomer = endpoint{name: "releasy.AdminCreateCustomer", method: http.MethodPost, path: "/v1/admin/customers", idempotent: true}
	epGetCustomer    = endpoint{name: "releasy.GetCustomer", method: http.MethodGet, path: "/v1/admin/customers/{customer_id}"}
	epUpdateCustomer = endpoint{name: "releasy.UpdateCustomer", method: http.MethodPatch, path: "/v1/admin/customers/{customer_id}"}
)

// ListCustomers lists customers matching q.
func (c *Client) ListCustomers(ctx context.Context, q AdminCustomerListQuery, opts ...CallOption) (*AdminCustomerListResponse, error) {
	return call[AdminCustomerListResponse](ctx, c, epListCustomers, exchange{
		query:    q,
		callOpts: applyCallOpts(opts),
	})
}

// AdminCreateCustomer creates a customer. It accepts [WithIdempotencyKey].
func (c *Client) AdminCreateCustomer(ctx context.Context, req AdminCreateCustomerRequest, opts ...CallOption) (*AdminCreateCustomerResponse, error) {
	return call[AdminCreateCustomerResponse](ctx, c, epCreateCustomer, exchange{
		body:     req,
		callOpts: applyCallOpts(opts),
	})
}

func (c *Client) GetCustomer(ctx context.Context, customerID string, opts ...CallOption) (*AdminCustomerResponse, error) {
	return call[AdminCustomerResponse](ctx, c, epGetCustomer, exchange{
		params:   []pathParam{{"customer_id", customerID}},
		callOpts: applyCallOpts(opts),
	})
}

// UpdateCustomer patches a customer. Fields left absent in req are not
// sent; fields set to opt.Null are sent as null.
func (c *Client) UpdateCustomer(ctx context.Context, customerID string, req AdminUpdateCustomerRequest, opts ...CallOption) (*AdminCustomerResponse, error) {
	return call[AdminCustomerResponse](ctx, c, epUpdateCustomer, exchange{
		params:   []pathParam{{"customer_id", customerID}},
		body:     req,
		callOpts: applyCallOpts(opts),
	})
}
