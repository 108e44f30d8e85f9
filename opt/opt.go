// Package opt provides Field, a three-state wrapper for optional request
// values: absent, explicitly null, or set.
//
// Pointers collapse "not supplied" and "supplied as null" into one nil
// value. The release service treats the two differently on PATCH-style
// endpoints, so every optional request field uses Field with the
// `omitzero` struct tag:
//
//	type Patch struct {
//		Name opt.Field[string] `json:"name,omitzero"`
//	}
//
//	Patch{}                          // {}
//	Patch{Name: opt.Null[string]()}  // {"name":null}
//	Patch{Name: opt.Some("acme")}    // {"name":"acme"}
package opt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

type state uint8

const (
	absent state = iota
	null
	present
)

// Field holds an optional value. The zero value is absent.
type Field[T any] struct {
	state state
	value T
}

// Some returns a Field set to v.
func Some[T any](v T) Field[T] {
	return Field[T]{state: present, value: v}
}

// Null returns a Field that is explicitly null.
func Null[T any]() Field[T] {
	return Field[T]{state: null}
}

// FromPtr returns an absent Field for a nil pointer and a set Field otherwise.
func FromPtr[T any](p *T) Field[T] {
	if p == nil {
		return Field[T]{}
	}
	return Some(*p)
}

// IsZero reports whether the field is absent. encoding/json uses it to
// honour the omitzero tag.
func (f Field[T]) IsZero() bool { return f.state == absent }

// IsNull reports whether the field is explicitly null.
func (f Field[T]) IsNull() bool { return f.state == null }

// IsSet reports whether the field carries a value.
func (f Field[T]) IsSet() bool { return f.state == present }

// Get returns the value and whether it is set.
func (f Field[T]) Get() (T, bool) {
	return f.value, f.state == present
}

// Or returns the value if set, otherwise fallback.
func (f Field[T]) Or(fallback T) T {
	if f.state != present {
		return fallback
	}
	return f.value
}

// Equal reports whether f and other are in the same state with deeply
// equal values. go-cmp picks this method up automatically.
func (f Field[T]) Equal(other Field[T]) bool {
	if f.state != other.state {
		return false
	}
	if f.state != present {
		return true
	}
	return reflect.DeepEqual(f.value, other.value)
}

func (f Field[T]) String() string {
	switch f.state {
	case null:
		return "null"
	case present:
		return fmt.Sprint(f.value)
	default:
		return "<absent>"
	}
}

// MarshalJSON encodes null for a null Field and the value for a set one.
// Absent fields are expected to be dropped by omitzero before this runs;
// if they are not, they encode as null.
func (f Field[T]) MarshalJSON() ([]byte, error) {
	if f.state != present {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}

// UnmarshalJSON sets the Field to null for a JSON null and to the decoded
// value otherwise. A key missing from the document never reaches here and
// leaves the Field absent.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		f.state, f.value = null, zero
		return nil
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	f.state, f.value = present, v

	return nil
}
