package validate_test

import (
	"errors"
	"testing"

	"github.com/adamwoolhether/releasy/internal/validate"
	"github.com/google/go-cmp/cmp"
)

type violation struct {
	Field string `json:"field" validate:"required"`
}

type body struct {
	Name       string      `json:"name" validate:"required"`
	Email      string      `json:"email" validate:"omitempty,email"`
	Violations []violation `json:"violations" validate:"omitempty,dive"`
	Ignored    string      `json:"-" validate:"required"`
}

func TestCheck(t *testing.T) {
	tests := map[string]struct {
		in  body
		exp validate.FieldErrors
	}{
		"valid": {
			in: body{Name: "acme", Ignored: "x"},
		},
		"missingRequired": {
			in: body{Ignored: "x"},
			exp: validate.FieldErrors{
				{Field: "name", Err: "This field is required"},
			},
		},
		"translatedTag": {
			in: body{Name: "acme", Email: "nope", Ignored: "x"},
			exp: validate.FieldErrors{
				{Field: "email", Err: "email must be a valid email address"},
			},
		},
		"nested": {
			in: body{Name: "acme", Ignored: "x", Violations: []violation{{}}},
			exp: validate.FieldErrors{
				{Field: "violations[0].field", Err: "This field is required"},
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			err := validate.Check(tc.in)
			if tc.exp == nil {
				if err != nil {
					t.Fatalf("exp nil err, got: %v", err)
				}
				return
			}

			var fe validate.FieldErrors
			if !errors.As(err, &fe) {
				t.Fatalf("exp FieldErrors, got: %T %v", err, err)
			}

			if diff := cmp.Diff(tc.exp, fe); diff != "" {
				t.Errorf("field errors mismatch (-exp +got):\n%s", diff)
			}
		})
	}
}

func TestCheck_NotStruct(t *testing.T) {
	if err := validate.Check("plain string"); err == nil {
		t.Fatal("expected error for non-struct value")
	}
}

func TestFieldErrors_Error(t *testing.T) {
	fe := validate.FieldErrors{
		{Field: "name", Err: "required"},
		{Field: "email", Err: "invalid"},
	}

	if got, exp := fe.Error(), "name: required; email: invalid"; got != exp {
		t.Errorf("exp %q, got %q", exp, got)
	}
}
