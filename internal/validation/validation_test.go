package validation

import (
	"errors"
	"testing"

	"github.com/mmeshcher/loyalty-system/internal/loyalty"
)

func TestIsValidDNI(t *testing.T) {
	tests := []struct {
		name  string
		dni   string
		valid bool
	}{
		{name: "eight digits", dni: "30111222", valid: true},
		{name: "seven digits", dni: "1234567", valid: true},
		{name: "too short", dni: "123456", valid: false},
		{name: "too long", dni: "12345678901", valid: false},
		{name: "contains letters", dni: "1234a678", valid: false},
		{name: "empty string", dni: "", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsValidDNI(tt.dni)
			if got != tt.valid {
				t.Fatalf("IsValidDNI(%q) = %v, want %v", tt.dni, got, tt.valid)
			}
		})
	}
}

type sampleRequest struct {
	DNI    string `json:"dni" validate:"required,dni"`
	Name   string `json:"name" validate:"notblank"`
	Points int64  `json:"points" validate:"gte=1"`
}

func TestStruct(t *testing.T) {
	tests := []struct {
		name  string
		req   sampleRequest
		field string
	}{
		{name: "valid", req: sampleRequest{DNI: "30111222", Name: "Coffee", Points: 10}},
		{name: "bad dni", req: sampleRequest{DNI: "abc", Name: "Coffee", Points: 10}, field: "dni"},
		{name: "blank name", req: sampleRequest{DNI: "30111222", Name: "  ", Points: 10}, field: "name"},
		{name: "zero points", req: sampleRequest{DNI: "30111222", Name: "Coffee"}, field: "points"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.req)
			if tt.field == "" {
				if err != nil {
					t.Fatalf("Struct() error = %v, want nil", err)
				}
				return
			}

			var verr loyalty.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Struct() error = %v, want ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Fatalf("field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}

func TestNormalizeWinnerCode(t *testing.T) {
	if got := NormalizeWinnerCode(" ab12c "); got != "AB12C" {
		t.Fatalf("NormalizeWinnerCode = %q, want AB12C", got)
	}
}
