package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/releasy/client/upload"
	"github.com/adamwoolhether/releasy/opt"
)

var (
	epRegisterArtifact = endpoint{name: "releasy.RegisterArtifact", method: http.MethodPost, path: "/v1/releases/{release_id}/artifacts"}
	epPresignArtifact  = endpoint{name: "releasy.PresignArtifact", method: http.MethodPost, path: "/v1/artifacts/{artifact_id}/presign"}
)

// ArtifactMetadata is the body of an artifact registration.
type ArtifactMetadata struct {
	Filename    string            `json:"filename" validate:"required"`
	Platform    opt.Field[string] `json:"platform,omitzero"`
	Checksum    opt.Field[string] `json:"checksum,omitzero"`
	Size        opt.Field[int64]  `json:"size,omitzero"`
	ContentType opt.Field[string] `json:"content_type,omitzero"`
}

// ArtifactDescriptor is the server's record of a registered artifact.
type ArtifactDescriptor struct {
	ID        string `json:"id" validate:"required"`
	ReleaseID string `json:"release_id"`
	Filename  string `json:"filename"`
	ObjectKey string `json:"object_key"`
	Platform  string `json:"platform,omitempty"`
	Checksum  string `json:"checksum,omitempty"`
	Size      int64  `json:"size,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// PresignedUpload is a time-limited, pre-authorized target for one direct
// transfer to storage. The method and headers come from the service and are
// sent exactly as given. A PresignedUpload is consumed by the first upload
// attempt, successful or not.
type PresignedUpload struct {
	ArtifactID string            `json:"artifact_id" validate:"required"`
	ObjectKey  string            `json:"object_key"`
	UploadURL  string            `json:"upload_url" validate:"required,url"`
	Method     string            `json:"method,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	ExpiresAt  int64             `json:"expires_at"`

	consumed atomic.Bool
}

// Expired reports whether its expiry is at or before now. The client
// never enforces expiry itself; storage rejects expired uploads.
func (p *PresignedUpload) Expired(now time.Time) bool {
	return p.ExpiresAt != 0 && now.Unix() >= p.ExpiresAt
}

// Consumed reports whether an upload has already been attempted with p.
func (p *PresignedUpload) Consumed() bool {
	return p.consumed.Load()
}

// UploadResult describes a transfer accepted by storage.
type UploadResult struct {
	ArtifactID string
	StatusCode int
	ETag       string
	BytesSent  int64
}

// RegisterArtifact creates an artifact record on a release.
func (c *Client) RegisterArtifact(ctx context.Context, releaseID string, meta ArtifactMetadata, opts ...CallOption) (*ArtifactDescriptor, error) {
	return call[ArtifactDescriptor](ctx, c, epRegisterArtifact, exchange{
		params:   []pathParam{{"release_id", releaseID}},
		body:     meta,
		callOpts: applyCallOpts(opts),
	})
}

// PresignArtifact obtains an upload target for a registered artifact. The
// service rejects unknown artifacts with 404 and already uploaded ones with
// 409. The method and headers of the target are taken from the reply; a
// reply without a method means PUT, the only method the service has issued.
func (c *Client) PresignArtifact(ctx context.Context, artifactID string, opts ...CallOption) (*PresignedUpload, error) {
	target, err := call[PresignedUpload](ctx, c, epPresignArtifact, exchange{
		params:   []pathParam{{"artifact_id", artifactID}},
		callOpts: applyCallOpts(opts),
	})
	if err != nil {
		return nil, err
	}

	if target.Method == "" {
		target.Method = http.MethodPut
	}

	return target, nil
}

// UploadPresigned transfers size bytes from body to the presigned target. The
// request goes straight to storage: it carries the presigned headers and none
// of the release service credentials. A negative size streams with chunked
// encoding.
//
// Failures are returned as *UploadError: wrapping [ErrUploadRejected] for a
// non-2xx reply, or the *TransportError when no reply arrived. A target that
// was already used returns [ErrUploadConsumed] without any I/O.
func (c *Client) UploadPresigned(ctx context.Context, target *PresignedUpload, body io.Reader, size int64) (*UploadResult, error) {
	if target == nil {
		return nil, errors.New("presigned upload must not be nil")
	}

	if !target.consumed.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("artifact %s: %w", target.ArtifactID, ErrUploadConsumed)
	}

	ctx, span := c.tracer.Start(ctx, "releasy.UploadPresigned",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", target.Method),
			attribute.String("releasy.artifact_id", target.ArtifactID),
			attribute.Int64("releasy.upload.size", size),
		),
	)
	defer span.End()

	if body == nil {
		body = http.NoBody
	}
	counter := &countingReader{r: body}

	req, err := http.NewRequestWithContext(ctx, target.Method, target.UploadURL, counter)
	if err != nil {
		return nil, &UploadError{ArtifactID: target.ArtifactID, Err: fmt.Errorf("instantiating upload request: %w", err)}
	}
	req.ContentLength = size
	if size == 0 {
		req.Body = http.NoBody
	}

	for name, value := range target.Headers {
		req.Header.Set(name, value)
	}

	start := time.Now()
	resp, err := c.do(c.hc, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		return nil, &UploadError{ArtifactID: target.ArtifactID, Err: err}
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.status))
	c.logger.DebugContext(ctx, "presigned upload", "artifact_id", target.ArtifactID, "status", resp.status, "bytes", counter.n, "elapsed", time.Since(start))

	if !resp.ok() {
		span.SetStatus(codes.Error, http.StatusText(resp.status))
		return nil, &UploadError{
			ArtifactID: target.ArtifactID,
			StatusCode: resp.status,
			Body:       string(resp.body),
			Err:        ErrUploadRejected,
		}
	}

	result := UploadResult{
		ArtifactID: target.ArtifactID,
		StatusCode: resp.status,
		ETag:       resp.header.Get("ETag"),
		BytesSent:  counter.n,
	}

	return &result, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.n += int64(n)
	return n, err
}

// ----------------------------------------------------------------------------
// Upload state machine
// ----------------------------------------------------------------------------

// UploadState is a step of the artifact upload protocol.
type UploadState uint8

const (
	UploadRegistered UploadState = iota + 1
	UploadPresigned
	UploadUploaded
)

func (s UploadState) String() string {
	switch s {
	case UploadRegistered:
		return "registered"
	case UploadPresigned:
		return "presigned"
	case UploadUploaded:
		return "uploaded"
	default:
		return "unknown"
	}
}

// ArtifactUpload tracks one artifact through register, presign and upload.
// Each completed step's result stays readable, so a registered but
// unuploaded artifact can be inspected, retried or cleaned up. A failed
// step leaves the state and earlier results unchanged. An ArtifactUpload
// is not safe for concurrent use.
type ArtifactUpload struct {
	releaseID  string
	state      UploadState
	descriptor *ArtifactDescriptor
	target     *PresignedUpload
	result     *UploadResult
}

// ReleaseID is the release the artifact belongs to.
func (u *ArtifactUpload) ReleaseID() string { return u.releaseID }

// State is the last completed step.
func (u *ArtifactUpload) State() UploadState { return u.state }

// Descriptor is the registration result.
func (u *ArtifactUpload) Descriptor() *ArtifactDescriptor { return u.descriptor }

// Presigned is the current upload target, nil until Presign succeeds.
func (u *ArtifactUpload) Presigned() *PresignedUpload { return u.target }

// Result is set once storage accepted the transfer.
func (u *ArtifactUpload) Result() *UploadResult { return u.result }

// StartArtifactUpload registers an artifact and returns its upload in the
// Registered state.
func (c *Client) StartArtifactUpload(ctx context.Context, releaseID string, meta ArtifactMetadata, opts ...CallOption) (*ArtifactUpload, error) {
	desc, err := c.RegisterArtifact(ctx, releaseID, meta, opts...)
	if err != nil {
		return nil, err
	}

	u := ArtifactUpload{
		releaseID:  releaseID,
		state:      UploadRegistered,
		descriptor: desc,
	}

	return &u, nil
}

// Presign moves u from Registered to Presigned. It may also be called on a
// Presigned upload whose target was consumed by a failed transfer, to obtain
// a fresh target for a retry.
func (c *Client) Presign(ctx context.Context, u *ArtifactUpload, opts ...CallOption) error {
	retry := u.state == UploadPresigned && u.target.Consumed()
	if u.state != UploadRegistered && !retry {
		return &StateError{Step: "presign", Have: u.state, Want: UploadRegistered}
	}

	target, err := c.PresignArtifact(ctx, u.descriptor.ID, opts...)
	if err != nil {
		return err
	}

	u.target = target
	u.state = UploadPresigned

	return nil
}

// Upload moves u from Presigned to Uploaded by transferring body to the
// presigned target.
func (c *Client) Upload(ctx context.Context, u *ArtifactUpload, body io.Reader, size int64) error {
	if u.state != UploadPresigned {
		return &StateError{Step: "upload", Have: u.state, Want: UploadPresigned}
	}

	result, err := c.UploadPresigned(ctx, u.target, body, size)
	if err != nil {
		return err
	}

	u.result = result
	u.state = UploadUploaded

	return nil
}

// UploadArtifactFile runs the whole protocol for the file at path. Any of
// meta's filename, size, checksum and content type left unset are filled
// from the file. The returned upload reflects the last completed step and
// is non-nil whenever registration succeeded, even if a later step failed.
func (c *Client) UploadArtifactFile(ctx context.Context, releaseID, path string, meta ArtifactMetadata, opts ...CallOption) (*ArtifactUpload, error) {
	payload, err := upload.Prepare(path)
	if err != nil {
		return nil, err
	}

	if meta.Filename == "" {
		meta.Filename = payload.Name
	}
	if meta.Size.IsZero() {
		meta.Size = opt.Some(payload.Size)
	}
	if meta.Checksum.IsZero() {
		meta.Checksum = opt.Some(payload.Checksum())
	}
	if meta.ContentType.IsZero() {
		meta.ContentType = opt.Some(payload.ContentType)
	}

	u, err := c.StartArtifactUpload(ctx, releaseID, meta, opts...)
	if err != nil {
		return nil, fmt.Errorf("registering artifact: %w", err)
	}

	if err := c.Presign(ctx, u); err != nil {
		return u, fmt.Errorf("presigning artifact %s: %w", u.descriptor.ID, err)
	}

	rc, err := payload.Open(c.logger)
	if err != nil {
		return u, err
	}
	defer func() {
		if err := rc.Close(); err != nil {
			c.logger.Error("failed to close payload", "error", err)
		}
	}()

	if err := c.Upload(ctx, u, rc, payload.Size); err != nil {
		return u, err
	}

	return u, nil
}
