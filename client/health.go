package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
)

var (
	epHealth  = endpoint{name: "releasy.Health", method: http.MethodGet, path: "/health"}
	epLive    = endpoint{name: "releasy.Live", method: http.MethodGet, path: "/live"}
	epReady   = endpoint{name: "releasy.Ready", method: http.MethodGet, path: "/ready"}
	epOpenAPI = endpoint{name: "releasy.OpenAPI", method: http.MethodGet, path: "/openapi.json"}
)

// Health reports overall service health.
func (c *Client) Health(ctx context.Context, opts ...CallOption) (*HealthResponse, error) {
	return call[HealthResponse](ctx, c, epHealth, exchange{callOpts: applyCallOpts(opts)})
}

// Live is the liveness probe.
func (c *Client) Live(ctx context.Context, opts ...CallOption) (*HealthResponse, error) {
	return call[HealthResponse](ctx, c, epLive, exchange{callOpts: applyCallOpts(opts)})
}

// Ready is the readiness probe.
func (c *Client) Ready(ctx context.Context, opts ...CallOption) (*HealthResponse, error) {
	return call[HealthResponse](ctx, c, epReady, exchange{callOpts: applyCallOpts(opts)})
}

// OpenAPIJSON returns the service's OpenAPI document verbatim.
func (c *Client) OpenAPIJSON(ctx context.Context, opts ...CallOption) ([]byte, error) {
	resp, err := c.send(ctx, epOpenAPI, exchange{callOpts: applyCallOpts(opts)})
	if err != nil {
		return nil, err
	}

	if !resp.ok() {
		return nil, newAPIError(resp.status, resp.body)
	}

	return resp.body, nil
}

// OpenAPI fetches and parses the service's OpenAPI document. A document
// that does not parse is reported as a *DecodeError.
func (c *Client) OpenAPI(ctx context.Context, opts ...CallOption) (*openapi3.T, error) {
	raw, err := c.OpenAPIJSON(ctx, opts...)
	if err != nil {
		return nil, err
	}

	doc, err := openapi3.NewLoader().LoadFromData(raw)
	if err != nil {
		return nil, &DecodeError{StatusCode: http.StatusOK, Body: raw, Err: fmt.Errorf("loading openapi document: %w", err)}
	}

	return doc, nil
}
