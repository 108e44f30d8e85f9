// Package web holds the request and response helpers shared by the
// handlers of the in-process release service.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/adamwoolhether/releasy/internal/validate"
	"github.com/adamwoolhether/releasy/internal/web/errs"
	"github.com/adamwoolhether/releasy/internal/web/mux"
)

const ContentTypeJSON = "application/json"

// maxBodyBytes bounds JSON request bodies. Artifact bytes never travel as
// JSON, they go to the storage endpoint.
const maxBodyBytes = 1 << 20

// RespondJSON to an HTTP request, setting the status code and body if any.
func RespondJSON(ctx context.Context, w http.ResponseWriter, statusCode int, data any) error {
	mux.SetStatus(ctx, statusCode)

	if statusCode == http.StatusNoContent || (statusCode == http.StatusAccepted && data == nil) {
		w.WriteHeader(statusCode)
		return nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(statusCode)

	if _, err = w.Write(jsonData); err != nil {
		return err
	}

	return nil
}

// RespondError writes err as a {"error":{...}} document.
func RespondError(ctx context.Context, w http.ResponseWriter, err *errs.Error) error {
	return RespondJSON(ctx, w, err.Status, err.Doc())
}

// Redirect issues an HTTP redirect to the given URL. The status code
// must be in the 3xx range or an error is returned.
func Redirect(w http.ResponseWriter, r *http.Request, url string, code int) error {
	if code < 300 || code > 399 {
		return fmt.Errorf("invalid redirect code: %d", code)
	}

	mux.SetStatus(r.Context(), code)

	http.Redirect(w, r, url, code)

	return nil
}

// Decode reads a JSON document from the request body into val and checks
// its validation tags. Malformed JSON is a 400 bad_request and an oversized
// body a 413; tag failures are returned as validate.FieldErrors.
func Decode[T any](r *http.Request, val *T) error {
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes)).Decode(val); err != nil {
		if _, ok := errors.AsType[*http.MaxBytesError](err); ok {
			return errs.New(http.StatusRequestEntityTooLarge, "payload_too_large", fmt.Errorf("decode: body exceeds %d bytes", maxBodyBytes))
		}
		return errs.New(http.StatusBadRequest, "bad_request", fmt.Errorf("decode: %w", err))
	}

	if err := validate.Check(val); err != nil {
		return err
	}

	return nil
}
