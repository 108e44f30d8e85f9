package client

import (
	"context"
	"net/http"
)

var (
	epListReleases     = endpoint{name: "releasy.ListReleases", method: http.MethodGet, path: "/v1/releases"}
	epCreateRelease    = endpoint{name: "releasy.CreateRelease", method: http.MethodPost, path: "/v1/releases"}
	epDeleteRelease    = endpoint{name: "releasy.DeleteRelease", method: http.MethodDelete, path: "/v1/releases/{release_id}"}
	epPublishRelease   = endpoint{name: "releasy.PublishRelease", method: http.MethodPost, path: "/v1/releases/{release_id}/publish"}
	epUnpublishRelease = endpoint{name: "releasy.UnpublishRelease", method: http.MethodPost, path: "/v1/releases/{release_id}/unpublish"}
)

func (c *Client) ListReleases(ctx context.Context, q ReleaseListQuery, opts ...CallOption) (*ReleaseListResponse, error) {
	return call[ReleaseListResponse](ctx, c, epListReleases, exchange{
		query:    q,
		callOpts: applyCallOpts(opts),
	})
}

func (c *Client) CreateRelease(ctx context.Context, req ReleaseCreateRequest, opts ...CallOption) (*ReleaseResponse, error) {
	return call[ReleaseResponse](ctx, c, epCreateRelease, exchange{
		body:     req,
		callOpts: applyCallOpts(opts),
	})
}

// DeleteRelease removes a release. Success is exactly 204.
func (c *Client) DeleteRelease(ctx context.Context, releaseID string, opts ...CallOption) error {
	return callEmpty(ctx, c, epDeleteRelease, exchange{
		params:   []pathParam{{"release_id", releaseID}},
		callOpts: applyCallOpts(opts),
	}, http.StatusNoContent)
}

func (c *Client) PublishRelease(ctx context.Context, releaseID string, opts ...CallOption) (*ReleaseResponse, error) {
	return call[ReleaseResponse](ctx, c, epPublishRelease, exchange{
		params:   []pathParam{{"release_id", releaseID}},
		callOpts: applyCallOpts(opts),
	})
}

func (c *Client) UnpublishRelease(ctx context.Context, releaseID string, opts ...CallOption) (*ReleaseResponse, error) {
	return call[ReleaseResponse](ctx, c, epUnpublishRelease, exchange{
		params:   []pathParam{{"release_id", releaseID}},
		callOpts: applyCallOpts(opts),
	})
}
