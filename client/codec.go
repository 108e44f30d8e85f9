package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/oapi-codegen/runtime"

	"github.com/adamwoolhether/releasy/internal/validate"
	"github.com/adamwoolhether/releasy/opt"
)

// queryEncoder is implemented by every list query type.
type queryEncoder interface {
	queryValues() (url.Values, error)
}

// queryBuilder collects form-style query parameters. Absent fields are
// skipped, null fields are sent as an empty parameter and set fields are
// styled by the OpenAPI runtime.
type queryBuilder struct {
	values url.Values
	err    error
}

func newQuery() *queryBuilder {
	return &queryBuilder{values: make(url.Values)}
}

func addQuery[T any](q *queryBuilder, name string, f opt.Field[T]) {
	if q.err != nil || f.IsZero() {
		return
	}

	if f.IsNull() {
		q.values.Add(name, "")
		return
	}

	v, _ := f.Get()
	frag, err := runtime.StyleParamWithLocation("form", true, name, runtime.ParamLocationQuery, v)
	if err != nil {
		q.err = fmt.Errorf("styling query parameter %s: %w", name, err)
		return
	}

	parsed, err := url.ParseQuery(frag)
	if err != nil {
		q.err = fmt.Errorf("parsing query parameter %s: %w", name, err)
		return
	}

	for k, vs := range parsed {
		for _, v := range vs {
			q.values.Add(k, v)
		}
	}
}

func (q *queryBuilder) build() (url.Values, error) {
	return q.values, q.err
}

// call performs ep and decodes a 2xx body into T. Non-2xx replies become an
// *APIError; a 2xx body that does not decode or is missing required fields
// becomes a *DecodeError.
func call[T any](ctx context.Context, c *Client, ep endpoint, ex exchange) (*T, error) {
	resp, err := c.send(ctx, ep, ex)
	if err != nil {
		return nil, err
	}

	if !resp.ok() {
		return nil, newAPIError(resp.status, resp.body)
	}

	return decode[T](resp)
}

// callEmpty performs ep and succeeds only on exactly the expected status.
// Any other status, 2xx included, is returned as an *APIError.
func callEmpty(ctx context.Context, c *Client, ep endpoint, ex exchange, expected int) error {
	resp, err := c.send(ctx, ep, ex)
	if err != nil {
		return err
	}

	if resp.status != expected {
		return newAPIError(resp.status, resp.body)
	}

	return nil
}

func decode[T any](resp *response) (*T, error) {
	var v T
	if err := json.Unmarshal(resp.body, &v); err != nil {
		return nil, &DecodeError{StatusCode: resp.status, Body: resp.body, Err: err}
	}

	if err := checkPresent(resp.body, reflect.TypeFor[T](), ""); err != nil {
		return nil, &DecodeError{StatusCode: resp.status, Body: resp.body, Err: fmt.Errorf("response does not conform: %w", err)}
	}

	if err := validate.Check(&v); err != nil {
		return nil, &DecodeError{StatusCode: resp.status, Body: resp.body, Err: fmt.Errorf("response does not conform: %w", err)}
	}

	return &v, nil
}

var unmarshalerType = reflect.TypeFor[json.Unmarshaler]()

// checkPresent walks raw alongside t and reports the first field that is
// absent or null. A field is optional only when its json tag carries
// omitempty or omitzero. Nested objects and arrays of objects are checked
// element by element; types with their own UnmarshalJSON are trusted.
func checkPresent(raw json.RawMessage, t reflect.Type, path string) error {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if reflect.PointerTo(t).Implements(unmarshalerType) {
		return nil
	}

	switch t.Kind() {
	case reflect.Struct:
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return fmt.Errorf("%s: %w", fieldPath(path, ""), err)
		}

		for i := range t.NumField() {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}

			name, opts, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				continue
			}
			if name == "" {
				name = f.Name
			}
			optional := strings.Contains(opts, "omitempty") || strings.Contains(opts, "omitzero")

			v, ok := obj[name]
			if !ok || isNull(v) {
				if optional {
					continue
				}
				return fmt.Errorf("%s: required field is missing or null", fieldPath(path, name))
			}

			if err := checkPresent(v, f.Type, fieldPath(path, name)); err != nil {
				return err
			}
		}

	case reflect.Slice:
		elem := t.Elem()
		for elem.Kind() == reflect.Pointer {
			elem = elem.Elem()
		}
		if elem.Kind() != reflect.Struct {
			return nil
		}

		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return fmt.Errorf("%s: %w", fieldPath(path, ""), err)
		}
		for i, item := range items {
			p := fmt.Sprintf("%s[%d]", path, i)
			if isNull(item) {
				return fmt.Errorf("%s: null element", p)
			}
			if err := checkPresent(item, t.Elem(), p); err != nil {
				return err
			}
		}
	}

	return nil
}

func fieldPath(parent, name string) string {
	switch {
	case parent == "" && name == "":
		return "body"
	case parent == "":
		return name
	case name == "":
		return parent
	default:
		return parent + "." + name
	}
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
