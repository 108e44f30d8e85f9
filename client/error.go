package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/adamwoolhether/releasy/internal/validate"
)

// maxErrBodySize caps the amount of an error response body retained on an
// [APIError] or [UploadError].
const maxErrBodySize = 64 << 10 // 64KB

var (
	// ErrInvalidBaseURL is returned by [New] for an empty, relative or
	// non-http(s) base URL.
	ErrInvalidBaseURL = errors.New("invalid base url")
	// ErrTransport is wrapped by [TransportError].
	ErrTransport = errors.New("transport failure")
	// ErrDecode is wrapped by [DecodeError].
	ErrDecode = errors.New("decoding response")
	// ErrAPI is wrapped by [APIError].
	ErrAPI = errors.New("api error")
	// ErrNotEnterprise is returned by [APIError.Enterprise] when the raw body
	// does not carry the enterprise error shape.
	ErrNotEnterprise = errors.New("not an enterprise error body")
	// ErrUploadRejected is wrapped by [UploadError] when the storage
	// endpoint answered with a non-2xx status.
	ErrUploadRejected = errors.New("upload rejected by storage")
	// ErrDownloadRejected is wrapped by [DownloadError] when storage answered
	// a download with a non-200 status.
	ErrDownloadRejected = errors.New("download rejected by storage")
	// ErrUploadConsumed is returned when a [PresignedUpload] is used twice.
	ErrUploadConsumed = errors.New("presigned upload already consumed")
	// ErrOutOfOrder is wrapped by [StateError].
	ErrOutOfOrder = errors.New("artifact upload step out of order")
	// ErrInvalidRequest is wrapped by [ValidationError].
	ErrInvalidRequest = errors.New("invalid request")
	// ErrMissingLocation is returned when a download token resolves with a
	// redirect that carries no Location header.
	ErrMissingLocation = errors.New("missing Location header in redirect response")
)

// TransportError reports that no response was obtained: dial, TLS, DNS,
// timeout or a failed body read.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%v: %s %s: %v", ErrTransport, e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

// DecodeError reports a 2xx response whose body did not match the expected
// schema. It points at a protocol or version mismatch, not a domain failure.
type DecodeError struct {
	StatusCode int
	Body       []byte
	Err        error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v (status %d): %v", ErrDecode, e.StatusCode, e.Err)
}

func (e *DecodeError) Unwrap() []error {
	return []error{ErrDecode, e.Err}
}

// ErrorDetail is the code/message pair of the service's error body.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorBody is the generic error document returned by the release service:
//
//	{"error":{"code":"not_found","message":"customer missing"}}
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// APIError is any non-2xx response from the release service. Body is set
// when the response parsed as an [ErrorBody]; Raw always holds the
// response bytes as received (capped at 64KB).
type APIError struct {
	StatusCode int
	Body       *ErrorBody
	Raw        []byte
}

func newAPIError(status int, raw []byte) *APIError {
	apiErr := APIError{StatusCode: status}
	if len(raw) > 0 {
		apiErr.Raw = raw
	}

	var body ErrorBody
	if json.Unmarshal(raw, &body) == nil && body.Error.Code != "" {
		apiErr.Body = &body
	}

	return &apiErr
}

func (e *APIError) Error() string {
	if e.Body != nil {
		return fmt.Sprintf("%v (status %d): %s (%s)", ErrAPI, e.StatusCode, e.Body.Error.Code, e.Body.Error.Message)
	}
	return fmt.Sprintf("%v (status %d)", ErrAPI, e.StatusCode)
}

func (e *APIError) Unwrap() error { return ErrAPI }

// Code returns the parsed error code, or "" when the body did not parse.
func (e *APIError) Code() string {
	if e.Body == nil {
		return ""
	}
	return e.Body.Error.Code
}

// Message returns the parsed error message, or "" when the body did not parse.
func (e *APIError) Message() string {
	if e.Body == nil {
		return ""
	}
	return e.Body.Error.Message
}

// Enterprise re-parses the raw body as the enterprise error shape emitted by
// admin user endpoints. It has no side effects and may be called any number
// of times. A body of any other shape returns an error wrapping
// [ErrNotEnterprise].
func (e *APIError) Enterprise() (*EnterpriseError, error) {
	if len(e.Raw) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrNotEnterprise)
	}

	var body EnterpriseErrorBody
	if err := json.Unmarshal(e.Raw, &body); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotEnterprise, err)
	}

	if err := validate.Check(body); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotEnterprise, err)
	}

	return &EnterpriseError{StatusCode: e.StatusCode, Body: body}, nil
}

// Violation is a single field-level failure in an enterprise error body.
type Violation struct {
	Field   string `json:"field" validate:"required"`
	Code    string `json:"code" validate:"required"`
	Message string `json:"message,omitempty"`
}

// EnterpriseErrorDetail extends [ErrorDetail] with a request id and the
// list of field violations.
type EnterpriseErrorDetail struct {
	Code       string      `json:"code" validate:"required"`
	Message    string      `json:"message"`
	RequestID  string      `json:"request_id,omitempty"`
	Violations []Violation `json:"violations" validate:"required,min=1,dive"`
}

// EnterpriseErrorBody is the richer error document emitted by a subset of
// admin user endpoints:
//
//	{"error":{"code":"user_invalid","message":"...","request_id":"...",
//	  "violations":[{"field":"email","code":"duplicate","message":"..."}]}}
type EnterpriseErrorBody struct {
	Error EnterpriseErrorDetail `json:"error"`
}

// EnterpriseError is the result of a successful [APIError.Enterprise] decode.
type EnterpriseError struct {
	StatusCode int
	Body       EnterpriseErrorBody
}

func (e *EnterpriseError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v (status %d): %s (%s)", ErrAPI, e.StatusCode, e.Body.Error.Code, e.Body.Error.Message)
	for _, v := range e.Body.Error.Violations {
		if v.Message != "" {
			fmt.Fprintf(&b, "; %s: %s", v.Field, v.Message)
		} else {
			fmt.Fprintf(&b, "; %s: %s", v.Field, v.Code)
		}
	}
	return b.String()
}

// Violations returns the field violations.
func (e *EnterpriseError) Violations() []Violation {
	return e.Body.Error.Violations
}

// UploadError reports a failed direct transfer to the presigned storage
// endpoint. It is kept apart from [APIError] because storage responses do
// not follow the release service's error schema.
type UploadError struct {
	ArtifactID string
	StatusCode int
	Body       string
	Err        error
}

func (e *UploadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("uploading artifact %s: %v: status %d, body: %s", e.ArtifactID, e.Err, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("uploading artifact %s: %v", e.ArtifactID, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// DownloadError reports a failed fetch from the storage location a download
// token resolved to. Like [UploadError] it carries the storage reply verbatim.
type DownloadError struct {
	Location   string
	StatusCode int
	Body       string
	Err        error
}

func (e *DownloadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("downloading %s: %v: status %d, body: %s", e.Location, e.Err, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("downloading %s: %v", e.Location, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// ValidationError reports a request rejected before any I/O because a
// required field or path parameter was missing.
type ValidationError struct {
	Op     string
	Fields validate.FieldErrors
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrInvalidRequest, e.Fields)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidRequest }

// StateError reports an artifact upload step invoked from the wrong state.
type StateError struct {
	Step string
	Have UploadState
	Want UploadState
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%v: %s requires state %s, have %s", ErrOutOfOrder, e.Step, e.Want, e.Have)
}

func (e *StateError) Unwrap() error { return ErrOutOfOrder }

// StatusCode extracts the HTTP status from an [*APIError], [*UploadError]
// or [*DownloadError].
func StatusCode(err error) (int, bool) {
	if apiErr, ok := errors.AsType[*APIError](err); ok {
		return apiErr.StatusCode, true
	}
	if upErr, ok := errors.AsType[*UploadError](err); ok && upErr.StatusCode != 0 {
		return upErr.StatusCode, true
	}
	if dlErr, ok := errors.AsType[*DownloadError](err); ok && dlErr.StatusCode != 0 {
		return dlErr.StatusCode, true
	}
	return 0, false
}

// AsEnterprise is shorthand for extracting an [*APIError] from err and
// running its enterprise decode. ok is false when err is not an APIError or
// its body is not the enterprise shape.
func AsEnterprise(err error) (*EnterpriseError, bool) {
	apiErr, ok := errors.AsType[*APIError](err)
	if !ok {
		return nil, false
	}

	ent, err := apiErr.Enterprise()
	if err != nil {
		return nil, false
	}

	return ent, true
}

// IsNotFound reports whether err is a 404 from the release service.
func IsNotFound(err error) bool { return isAPIStatus(err, http.StatusNotFound) }

// IsConflict reports whether err is a 409 from the release service.
func IsConflict(err error) bool { return isAPIStatus(err, http.StatusConflict) }

// IsUnauthorized reports whether err is a 401 from the release service.
func IsUnauthorized(err error) bool { return isAPIStatus(err, http.StatusUnauthorized) }

// IsForbidden reports whether err is a 403 from the release service.
func IsForbidden(err error) bool { return isAPIStatus(err, http.StatusForbidden) }

// IsValidationFailed reports whether err is a 400 or 422 from the release service.
func IsValidationFailed(err error) bool {
	return isAPIStatus(err, http.StatusBadRequest) || isAPIStatus(err, http.StatusUnprocessableEntity)
}

func isAPIStatus(err error, status int) bool {
	apiErr, ok := errors.AsType[*APIError](err)
	return ok && apiErr.StatusCode == status
}
