package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/oapi-codegen/runtime"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/releasy/internal/validate"
)

// endpoint describes one release service operation.
type endpoint struct {
	name   string
	method string
	// path is a template; each {name} segment is filled from the
	// exchange's path parameters.
	path string
	// idempotent marks the creation endpoints that accept an
	// Idempotency-Key header.
	idempotent bool
}

type pathParam struct {
	name  string
	value string
}

// exchange is the per-call input to send.
type exchange struct {
	params   []pathParam
	query    queryEncoder
	body     any
	callOpts callOpts
	// noFollow returns 3xx responses to the caller instead of following them.
	noFollow bool
}

// response is a fully read reply. Non-2xx bodies are capped at maxErrBodySize.
type response struct {
	status int
	header http.Header
	body   []byte
}

func (r *response) ok() bool { return r.status >= 200 && r.status < 300 }

// reservedHeaders may only be set by the client itself.
var reservedHeaders = map[string]struct{}{
	textproto.CanonicalMIMEHeaderKey(HeaderAPIKey):         {},
	textproto.CanonicalMIMEHeaderKey(HeaderAdminKey):       {},
	textproto.CanonicalMIMEHeaderKey(HeaderAuthorization):  {},
	textproto.CanonicalMIMEHeaderKey(HeaderIdempotencyKey): {},
	"Accept":       {},
	"Content-Type": {},
}

// send performs one call against the release service and reads the reply.
// Requests that fail local validation never reach the network.
func (c *Client) send(ctx context.Context, ep endpoint, ex exchange) (*response, error) {
	path, err := expandPath(ep, ex.params)
	if err != nil {
		return nil, err
	}

	target := joinURL(c.baseURL, path)
	if ex.query != nil {
		values, err := ex.query.queryValues()
		if err != nil {
			return nil, fmt.Errorf("%s: encoding query: %w", ep.name, err)
		}
		if len(values) > 0 {
			target += "?" + values.Encode()
		}
	}

	var body io.Reader
	if ex.body != nil {
		b, err := encodeBody(ep.name, ex.body)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}

	ctx, span := c.tracer.Start(ctx, ep.name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", ep.method),
			attribute.String("url.template", ep.path),
			attribute.String("releasy.auth", c.auth.Kind().String()),
		),
	)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, ep.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("%s: instantiating request: %w", ep.name, err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mergeExtraHeaders(ctx, ep, req, ex.callOpts.headers)
	if name, value, ok := c.auth.header(); ok {
		req.Header.Set(name, value)
	}
	c.applyIdempotency(ctx, ep, req, ex.callOpts)
	c.propagator.Inject(ctx, propagation.HeaderCarrier(req.Header))

	hc := c.hc
	if ex.noFollow {
		hc = c.noFollow
	}

	start := time.Now()
	resp, err := c.do(hc, req)
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		c.logger.DebugContext(ctx, "releasy call failed", "op", ep.name, "method", ep.method, "path", path, "elapsed", elapsed, "error", err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.status))
	if resp.status >= 400 {
		span.SetStatus(codes.Error, http.StatusText(resp.status))
	}
	c.logger.DebugContext(ctx, "releasy call", "op", ep.name, "method", ep.method, "path", path, "status", resp.status, "elapsed", elapsed)

	return resp, nil
}

// do runs req on hc and reads the whole body. Every failure to obtain a
// complete response is reported as a *TransportError.
func (c *Client) do(hc *http.Client, req *http.Request) (*response, error) {
	resp, err := hc.Do(req)
	if err != nil {
		return nil, &TransportError{Method: req.Method, URL: redactURL(req), Err: err}
	}
	defer func() {
		if _, err := io.Copy(io.Discard, resp.Body); err != nil {
			c.logger.Error("failed to discard unused body", "error", err)
		}
		if err := resp.Body.Close(); err != nil {
			c.logger.Error("failed to close response body", "error", err)
		}
	}()

	var r io.Reader = resp.Body
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		r = io.LimitReader(resp.Body, maxErrBodySize)
	}

	b, err := io.ReadAll(r)
	if err != nil {
		return nil, &TransportError{Method: req.Method, URL: redactURL(req), Err: fmt.Errorf("reading body: %w", err)}
	}

	return &response{status: resp.StatusCode, header: resp.Header, body: b}, nil
}

// mergeExtraHeaders copies caller headers onto req, dropping reserved names.
func (c *Client) mergeExtraHeaders(ctx context.Context, ep endpoint, req *http.Request, extra http.Header) {
	for name, values := range extra {
		key := textproto.CanonicalMIMEHeaderKey(name)
		if _, reserved := reservedHeaders[key]; reserved {
			c.logger.WarnContext(ctx, "dropping reserved header", "op", ep.name, "header", key)
			continue
		}
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
}

// expandPath fills the endpoint template. Each value is escaped as a single
// path segment. Escaping leaves dots alone, so empty values and the dot
// segments "." and ".." are rejected.
func expandPath(ep endpoint, params []pathParam) (string, error) {
	path := ep.path

	var missing validate.FieldErrors
	for _, p := range params {
		switch p.value {
		case "":
			missing = append(missing, validate.FieldError{Field: p.name, Err: "path parameter must not be empty"})
			continue
		case ".", "..":
			missing = append(missing, validate.FieldError{Field: p.name, Err: "path parameter must not be a dot segment"})
			continue
		}

		styled, err := runtime.StyleParamWithLocation("simple", false, p.name, runtime.ParamLocationPath, p.value)
		if err != nil {
			return "", fmt.Errorf("%s: styling path parameter %s: %w", ep.name, p.name, err)
		}
		path = strings.Replace(path, "{"+p.name+"}", styled, 1)
	}

	if len(missing) > 0 {
		return "", &ValidationError{Op: ep.name, Fields: missing}
	}

	return path, nil
}

// joinURL joins base and path with exactly one slash.
func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

func encodeBody(op string, body any) ([]byte, error) {
	if err := validate.Check(body); err != nil {
		if fe, ok := err.(validate.FieldErrors); ok {
			return nil, &ValidationError{Op: op, Fields: fe}
		}
		return nil, fmt.Errorf("%s: validating request: %w", op, err)
	}

	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s: encoding request payload: %w", op, err)
	}

	return b, nil
}

// redactURL drops the query string, which may carry presigned credentials.
func redactURL(req *http.Request) string {
	u := *req.URL
	u.RawQuery = ""
	u.User = nil
	return u.String()
}
