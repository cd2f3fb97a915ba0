package errors

import (
	"testing"
)

func TestSentinelWrapping(t *testing.T) {
	err := NewNotFoundError("basin %s", "wb-1000")
	if !Is(err, ErrNotFound) {
		t.Fatal("wrapped not-found error should match ErrNotFound")
	}
	if !IsNotFoundError(err) {
		t.Fatal("IsNotFoundError should report true")
	}

	wrapped := Wrap(err, "resolving click")
	if !Is(wrapped, ErrNotFound) {
		t.Fatal("further wrapping should preserve the sentinel")
	}
}

func TestInvalidRequest(t *testing.T) {
	err := NewInvalidRequestError("missing field %q", "start_time")
	if !IsInvalidRequestError(err) {
		t.Fatal("IsInvalidRequestError should report true")
	}
	if IsNotFoundError(err) {
		t.Fatal("invalid-request error should not match ErrNotFound")
	}
}

func TestNilIsNotAnything(t *testing.T) {
	if IsNotFoundError(nil) || IsInvalidRequestError(nil) {
		t.Fatal("nil error should not match any sentinel")
	}
}
