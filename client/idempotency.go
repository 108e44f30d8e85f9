package client

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// HeaderIdempotencyKey carries the caller's idempotency key on designated
// creation calls.
const HeaderIdempotencyKey = "Idempotency-Key"

// NewIdempotencyKey returns a fresh random key. Generate one per logical
// creation and reuse it when resending that same request.
func NewIdempotencyKey() string {
	return uuid.NewString()
}

// applyIdempotency sets the Idempotency-Key header when a key was supplied
// and ep accepts one. A key passed to any other endpoint is dropped.
func (c *Client) applyIdempotency(ctx context.Context, ep endpoint, req *http.Request, co callOpts) {
	if co.idempotencyKey == "" {
		return
	}

	if !ep.idempotent {
		c.logger.WarnContext(ctx, "idempotency key ignored: endpoint is not idempotency-aware", "op", ep.name)
		return
	}

	req.Header.Set(HeaderIdempotencyKey, co.idempotencyKey)
}
