package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/adamwoolhether/releasy/client/download"
)

var (
	epCreateDownloadToken  = endpoint{name: "releasy.CreateDownloadToken", method: http.MethodPost, path: "/v1/downloads/token"}
	epResolveDownloadToken = endpoint{name: "releasy.ResolveDownloadToken", method: http.MethodGet, path: "/v1/downloads/{token}"}
)

// CreateDownloadToken issues a short-lived download token for an artifact.
func (c *Client) CreateDownloadToken(ctx context.Context, req DownloadTokenRequest, opts ...CallOption) (*DownloadTokenResponse, error) {
	return call[DownloadTokenResponse](ctx, c, epCreateDownloadToken, exchange{
		body:     req,
		callOpts: applyCallOpts(opts),
	})
}

// ResolveDownloadToken exchanges a token for the artifact's storage
// location. The service answers with a 302 whose Location is returned
// without being followed. A 302 with no Location returns
// [ErrMissingLocation]; any other status is an *APIError.
func (c *Client) ResolveDownloadToken(ctx context.Context, token string, opts ...CallOption) (*DownloadResolution, error) {
	resp, err := c.send(ctx, epResolveDownloadToken, exchange{
		params:   []pathParam{{"token", token}},
		callOpts: applyCallOpts(opts),
		noFollow: true,
	})
	if err != nil {
		return nil, err
	}

	if resp.status != http.StatusFound {
		return nil, newAPIError(resp.status, resp.body)
	}

	location := resp.header.Get("Location")
	if location == "" {
		return nil, ErrMissingLocation
	}

	return &DownloadResolution{Location: location}, nil
}

// DownloadArtifact resolves token and streams the artifact to destPath. The
// storage request carries no release service credentials. The file only
// appears at destPath once the transfer and every check in opts succeed.
//
// Failures resolving the token are *APIError values. Failures fetching from
// storage are *DownloadError, wrapping [ErrDownloadRejected] for a non-200
// reply or the *TransportError when no reply arrived.
func (c *Client) DownloadArtifact(ctx context.Context, token, destPath string, opts ...download.Option) (*download.Result, error) {
	res, err := c.ResolveDownloadToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("resolving download token: %w", err)
	}

	target, err := c.resolveLocation(res.Location)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("instantiating download request: %w", err)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, &DownloadError{Location: redactURL(req), Err: &TransportError{Method: req.Method, URL: redactURL(req), Err: err}}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Error("failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		b, err := io.ReadAll(io.LimitReader(resp.Body, maxErrBodySize))
		if err != nil {
			b = []byte("unable to read body")
		}
		return nil, &DownloadError{
			Location:   redactURL(req),
			StatusCode: resp.StatusCode,
			Body:       string(b),
			Err:        ErrDownloadRejected,
		}
	}

	result, err := download.Handle(ctx, resp.Body, resp.ContentLength, destPath, c.logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}

	return result, nil
}

// resolveLocation makes a relative redirect target absolute against the
// base URL.
func (c *Client) resolveLocation(location string) (string, error) {
	loc, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("parsing download location: %w", err)
	}
	if loc.IsAbs() {
		return loc.String(), nil
	}

	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return "", fmt.Errorf("parsing base url: %w", err)
	}

	return base.ResolveReference(loc).String(), nil
}
