package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Is(t *testing.T) {
	err := WrapError(ErrTickerNotFound, fmt.Errorf("symbol XYZ"))

	if !errors.Is(err, ErrTickerNotFound) {
		t.Error("wrapped error should match its base by code")
	}
	if errors.Is(err, ErrSignalNotFound) {
		t.Error("should not match a different code")
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("db closed")
	err := WrapError(ErrStorageFailed, cause)

	if !errors.Is(err, cause) {
		t.Error("unwrap should expose the cause")
	}
}

func TestError_Message(t *testing.T) {
	err := WrapError(ErrValidation, fmt.Errorf("confidence out of range"))
	got := err.Error()
	want := "[VALIDATION_FAILED] invalid input: confidence out of range"
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
