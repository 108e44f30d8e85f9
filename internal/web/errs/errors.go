// Package errs defines the error values handlers return and the JSON error
// document they are rendered as.
package errs

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/adamwoolhether/releasy/internal/validate"
)

// Violation is a field-level failure rendered in the enterprise error shape.
type Violation struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// Error represents an error in the system. It renders as
//
//	{"error":{"code":"...","message":"..."}}
//
// gaining request_id and violations when violations are attached.
type Error struct {
	Status     int         `json:"-"`
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	RequestID  string      `json:"request_id,omitempty"`
	Violations []Violation `json:"violations,omitempty"`
	FuncName   string      `json:"-"`
	FileName   string      `json:"-"`
	InnerErr   bool        `json:"-"`
}

// New constructs an error with the given HTTP status and error code.
func New(status int, code string, err error) *Error {
	pc, filename, line, _ := runtime.Caller(1)

	return &Error{
		Status:   status,
		Code:     code,
		Message:  err.Error(),
		FuncName: runtime.FuncForPC(pc).Name(),
		FileName: fmt.Sprintf("%s:%d", filename, line),
	}
}

// NewInternal creates an error that is not intended
// to be seen by users.
func NewInternal(err error) *Error {
	pc, filename, line, _ := runtime.Caller(1)

	return &Error{
		Status:   http.StatusInternalServerError,
		Code:     "internal",
		Message:  err.Error(),
		FuncName: runtime.FuncForPC(pc).Name(),
		FileName: fmt.Sprintf("%s:%d", filename, line),
		InnerErr: true,
	}
}

// FromFields converts validation failures into a 400 carrying one
// violation per field.
func FromFields(fe validate.FieldErrors) *Error {
	violations := make([]Violation, len(fe))
	for i, f := range fe {
		violations[i] = Violation{Field: f.Field, Code: "invalid", Message: f.Err}
	}

	return &Error{
		Status:     http.StatusBadRequest,
		Code:       "validation_failed",
		Message:    "request validation failed",
		Violations: violations,
	}
}

// WithViolations attaches field violations, switching the rendered body to
// the enterprise shape.
func (e *Error) WithViolations(v ...Violation) *Error {
	e.Violations = append(e.Violations, v...)
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// IsInternal returns true if the error is internal.
func (e *Error) IsInternal() bool {
	return e.InnerErr
}

// Document is the top-level JSON error body.
type Document struct {
	Error *Error `json:"error"`
}

// Doc wraps e for rendering.
func (e *Error) Doc() Document {
	return Document{Error: e}
}
