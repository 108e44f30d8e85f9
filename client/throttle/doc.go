// Package throttle provides an [http.RoundTripper] that rate-limits
// outbound requests per remote host with a token bucket from
// [golang.org/x/time/rate].
//
// Each host gets its own bucket, so calls to the release service and
// transfers to a presigned storage endpoint never share a budget. A host
// that answers 429 or 503 with a Retry-After header is paused for that
// long, capped at [MaxCooldown]; the response itself is still returned to
// the caller, and later requests to the host wait out the pause.
//
// Requests block until a token is available or their context ends.
package throttle
