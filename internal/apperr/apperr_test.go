package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorsIsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", RemoteRejected("create folder", http.StatusConflict, "exists"))
	if !errors.Is(err, ErrRemoteRejected) {
		t.Fatalf("expected remote rejected, got %v", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("did not expect not found")
	}
	if KindOf(err) != KindRemoteRejected {
		t.Fatalf("unexpected kind %q", KindOf(err))
	}
}

func TestFromStatus(t *testing.T) {
	cases := map[int]Kind{
		http.StatusUnauthorized:        KindNotAuthenticated,
		http.StatusNotFound:            KindNotFound,
		http.StatusBadRequest:          KindRemoteRejected,
		http.StatusUnprocessableEntity: KindRemoteRejected,
		http.StatusInternalServerError: KindRemoteRejected,
	}
	for status, want := range cases {
		if got := KindOf(FromStatus("op", status, "")); got != want {
			t.Fatalf("status %d: got %q want %q", status, got, want)
		}
	}
}

func TestMessage(t *testing.T) {
	if got := Message(RemoteRejected("register", 400, "email already registered")); got != "email already registered" {
		t.Fatalf("expected verbatim reason, got %q", got)
	}
	if got := Message(RemoteRejected("register", 500, "")); got != "the server rejected the request" {
		t.Fatalf("expected generic message, got %q", got)
	}
	if got := Message(NetworkUnavailable("list", errors.New("dial tcp"))); got == "" {
		t.Fatalf("expected message")
	}
	if got := Message(nil); got != "" {
		t.Fatalf("expected empty message, got %q", got)
	}
}

func TestWithOpKeepsExistingOp(t *testing.T) {
	err := WithOp("outer", NotFound("inner", "missing"))
	var appErr *Error
	if !errors.As(err, &appErr) || appErr.Op != "inner" {
		t.Fatalf("expected inner op, got %v", err)
	}
	err = WithOp("outer", &Error{Kind: KindNotFound})
	if !errors.As(err, &appErr) || appErr.Op != "outer" {
		t.Fatalf("expected outer op, got %v", err)
	}
}
