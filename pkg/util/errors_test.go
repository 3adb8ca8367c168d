package util

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestValidationError(t *testing.T) {
	t.Run("single error", func(t *testing.T) {
		err := NewValidationError("field is required")
		msg := err.Error()
		if !strings.Contains(msg, "field is required") {
			t.Errorf("Error message should contain the error: %s", msg)
		}
		if !errors.Is(err, ErrValidationFailed) {
			t.Errorf("ValidationError should unwrap to ErrValidationFailed")
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		err := NewValidationError("field1 is required", "field2 is invalid", "field3 out of range")
		msg := err.Error()
		if !strings.Contains(msg, "field1") || !strings.Contains(msg, "field2") || !strings.Contains(msg, "field3") {
			t.Errorf("Error message should contain all errors: %s", msg)
		}
	})
}

func TestValidationBuilder(t *testing.T) {
	t.Run("no errors", func(t *testing.T) {
		v := &ValidationBuilder{}
		v.Add(true, "this should not appear")

		if v.HasErrors() {
			t.Error("Should not have errors when all conditions are true")
		}
		if err := v.Build(); err != nil {
			t.Errorf("Build() should return nil when no errors: %v", err)
		}
		if err := v.BuildSorted(); err != nil {
			t.Errorf("BuildSorted() should return nil when no errors: %v", err)
		}
	})

	t.Run("with errors", func(t *testing.T) {
		v := &ValidationBuilder{}
		v.Add(false, "first error")
		v.Add(true, "this passes")
		v.AddErrorf("formatted error: %d", 42)

		var validationErr *ValidationError
		if !errors.As(v.Build(), &validationErr) {
			t.Fatalf("Expected *ValidationError")
		}
		if len(validationErr.Errors) != 2 {
			t.Errorf("Expected 2 errors, got %d", len(validationErr.Errors))
		}
	})

	t.Run("sorted", func(t *testing.T) {
		v := &ValidationBuilder{}
		v.AddErrorf("zeta")
		v.AddErrorf("alpha")

		var validationErr *ValidationError
		if !errors.As(v.BuildSorted(), &validationErr) {
			t.Fatalf("Expected *ValidationError")
		}
		if validationErr.Errors[0] != "alpha" || validationErr.Errors[1] != "zeta" {
			t.Errorf("BuildSorted() = %v, want [alpha zeta]", validationErr.Errors)
		}
	})
}

func TestSentinelErrors(t *testing.T) {
	sentinels := []error{
		ErrNotConnected,
		ErrNotFound,
		ErrInvalidConfig,
		ErrValidationFailed,
		ErrUnsupported,
	}

	for i, err1 := range sentinels {
		for j, err2 := range sentinels {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("Sentinel errors should be distinct: %v == %v", err1, err2)
			}
		}
	}
}

func TestErrorsIsWrapping(t *testing.T) {
	wrapped := fmt.Errorf("loading mapping: %w", NewValidationError("msg"))
	if !errors.Is(wrapped, ErrValidationFailed) {
		t.Error("wrapped ValidationError should match ErrValidationFailed")
	}
}
