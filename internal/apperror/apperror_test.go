package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationErrorCollectsFields(t *testing.T) {
	var v ValidationError
	v.Check(true, "first_name", "is required")
	if v.Err() != nil {
		t.Fatal("expected no error when every check passes")
	}

	v.Check(false, "email", "is not a valid e-mail address")
	v.Add("phone", "must be at least 6 characters")

	err := v.Err()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !IsValidation(fmt.Errorf("create patient: %w", err)) {
		t.Error("wrapped validation error should still be detected")
	}
	want := "validation failed: email: is not a valid e-mail address; phone: must be at least 6 characters"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestKindsWrapSentinels(t *testing.T) {
	if !errors.Is(NotFound("patient", "42"), ErrNotFound) {
		t.Error("NotFound should wrap ErrNotFound")
	}
	if !errors.Is(Conflict("slot taken"), ErrConflict) {
		t.Error("Conflict should wrap ErrConflict")
	}
	if !errors.Is(InvalidState("already paid"), ErrInvalidState) {
		t.Error("InvalidState should wrap ErrInvalidState")
	}
	if IsValidation(ErrNotFound) {
		t.Error("sentinel is not a validation error")
	}
}

func TestIsEmail(t *testing.T) {
	tests := map[string]bool{
		"dr.sharma@hospital.com":       true,
		"sarah.j+clinic@example.co.in": true,
		"":                             false,
		"no-at-sign":                   false,
		"Sarah <sarah@example.com>":    false,
		"sarah@localhost":              false,
	}
	for in, want := range tests {
		if got := IsEmail(in); got != want {
			t.Errorf("IsEmail(%q) = %v, want %v", in, got, want)
		}
	}
}
