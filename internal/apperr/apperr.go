// Package apperr defines the error taxonomy shared by the gateway, the stores and the
// interactive surfaces.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind is the category of an application error.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindNotFound           Kind = "not_found"
	KindNotAuthenticated   Kind = "not_authenticated"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindRemoteRejected     Kind = "remote_rejected"
	KindNetworkUnavailable Kind = "network_unavailable"
)

// Sentinels for errors.Is. Matching is by kind only.
var (
	ErrValidation         = &Error{Kind: KindValidation}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrNotAuthenticated   = &Error{Kind: KindNotAuthenticated}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials}
	ErrRemoteRejected     = &Error{Kind: KindRemoteRejected}
	ErrNetworkUnavailable = &Error{Kind: KindNetworkUnavailable}
)

// Error carries the kind of failure plus the context needed to report it.
type Error struct {
	Kind   Kind
	Op     string
	Reason string
	Field  string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Status != 0 {
		fmt.Fprintf(&b, " (%d)", e.Status)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

func Validation(op, field, reason string) error {
	return &Error{Kind: KindValidation, Op: op, Field: field, Reason: reason}
}

func NotFound(op, reason string) error {
	return &Error{Kind: KindNotFound, Op: op, Reason: reason}
}

func NotAuthenticated(op string) error {
	return &Error{Kind: KindNotAuthenticated, Op: op, Reason: "sign in required"}
}

func InvalidCredentials(op string) error {
	return &Error{Kind: KindInvalidCredentials, Op: op, Reason: "invalid email or password"}
}

func RemoteRejected(op string, status int, reason string) error {
	return &Error{Kind: KindRemoteRejected, Op: op, Status: status, Reason: reason}
}

func NetworkUnavailable(op string, cause error) error {
	return &Error{Kind: KindNetworkUnavailable, Op: op, Err: cause}
}

// FromStatus classifies a non-2xx HTTP response.
func FromStatus(op string, status int, reason string) error {
	switch status {
	case http.StatusUnauthorized:
		return &Error{Kind: KindNotAuthenticated, Op: op, Status: status, Reason: reason}
	case http.StatusNotFound:
		return &Error{Kind: KindNotFound, Op: op, Status: status, Reason: reason}
	default:
		return RemoteRejected(op, status, reason)
	}
}

// WithOp returns err re-labelled with op when it is an *Error without one.
func WithOp(op string, err error) error {
	var appErr *Error
	if !errors.As(err, &appErr) || appErr.Op != "" {
		return err
	}
	copy := *appErr
	copy.Op = op
	return &copy
}

// KindOf reports the kind of err, or "" when err is not an application error.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message renders err for display. Remote rejections keep the server's reason verbatim.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var appErr *Error
	if !errors.As(err, &appErr) {
		return err.Error()
	}
	switch appErr.Kind {
	case KindValidation:
		if appErr.Reason != "" {
			return appErr.Reason
		}
		return "invalid input"
	case KindNotFound:
		if appErr.Reason != "" {
			return appErr.Reason
		}
		return "not found"
	case KindNotAuthenticated:
		return "session expired, please sign in again"
	case KindInvalidCredentials:
		return "invalid email or password"
	case KindRemoteRejected:
		if appErr.Reason != "" {
			return appErr.Reason
		}
		return "the server rejected the request"
	case KindNetworkUnavailable:
		return "no connection to the server, try again later"
	default:
		return appErr.Error()
	}
}
