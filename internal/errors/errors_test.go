package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestServiceErrorUnwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := Unavailable("store lookup failed", cause)

	if !stderrors.Is(err, cause) {
		t.Fatal("cause not reachable through Unwrap")
	}

	wrapped := fmt.Errorf("outer: %w", err)
	svcErr, ok := GetServiceError(wrapped)
	if !ok {
		t.Fatal("service error not found in chain")
	}
	if svcErr.Code != ErrCodeUnavailable {
		t.Fatalf("code = %s", svcErr.Code)
	}
}

func TestGetServiceErrorPlainError(t *testing.T) {
	if _, ok := GetServiceError(stderrors.New("plain")); ok {
		t.Fatal("plain error classified as service error")
	}
}

func TestInvalidRequestMessage(t *testing.T) {
	err := InvalidRequest("%s must contain '@'", "email")
	if err.Message != "email must contain '@'" {
		t.Fatalf("message = %q", err.Message)
	}
	if err.Code != ErrCodeInvalidRequest {
		t.Fatalf("code = %s", err.Code)
	}
}

func TestInternalHidesCause(t *testing.T) {
	err := Internal(stderrors.New("sensitive detail"))
	if err.Message != "internal error" {
		t.Fatalf("message leaks: %q", err.Message)
	}
}

func TestWithDetails(t *testing.T) {
	err := Forbidden("authentication failed").WithDetails("login", "bob")
	if err.Details["login"] != "bob" {
		t.Fatalf("details = %v", err.Details)
	}
}
