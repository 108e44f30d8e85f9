package client

import (
	"context"
	"net/http"
)

var epListAuditEvents = endpoint{name: "releasy.ListAuditEvents", method: http.MethodGet, path: "/v1/admin/audit-events"}

func (c *Client) ListAuditEvents(ctx context.Context, q AuditEventListQuery, opts ...CallOption) (*AuditEventListResponse, error) {
	return call[AuditEventListResponse](ctx, c, epListAuditEvents, exchange{
		query:    q,
		callOpts: applyCallOpts(opts),
	})
}
