package iam

import (
	"errors"
	"net/http"
	"strings"
)

// Kind classifies an expected service failure.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindBadRequest   Kind = "bad_request"
	KindNotFound     Kind = "not_found"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindConflict     Kind = "conflict"
	KindInternal     Kind = "internal"
)

// InternalMessage is the only message an internal failure exposes.
const InternalMessage = "There was an internal error processing the request."

// Error is the failure result of a service operation.
type Error struct {
	Kind     Kind
	Status   int
	Messages []string
	// Err is the underlying cause. It is never shown to clients.
	Err error
}

func (e *Error) Error() string {
	msg := string(e.Kind) + ": " + strings.Join(e.Messages, "; ")
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// AsError returns the *Error in err's chain, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	e, ok := AsError(err)
	return ok && e.Kind == k
}

func ValidationError(msgs ...string) *Error {
	return &Error{Kind: KindValidation, Status: http.StatusBadRequest, Messages: msgs}
}

func BadRequest(msg string) *Error {
	return &Error{Kind: KindBadRequest, Status: http.StatusBadRequest, Messages: []string{msg}}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Status: http.StatusNotFound, Messages: []string{msg}}
}

func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Status: http.StatusUnauthorized, Messages: []string{msg}}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Status: http.StatusForbidden, Messages: []string{msg}}
}

func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Status: http.StatusConflict, Messages: []string{msg}}
}

// Internal wraps an unexpected failure behind the generic message.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Status: http.StatusInternalServerError, Messages: []string{InternalMessage}, Err: err}
}

// Client-facing messages
const (
	MsgInvalidHeader      = "Invalid authorization header format"
	MsgEmailNotFound      = "Email not found"
	MsgPrincipalNotFound  = "User not found"
	MsgInvalidCredentials = "Invalid email or password"
	MsgInactive           = "Account is inactive"
	MsgEmailTaken         = "Email is already registered"
	MsgInvalidToken       = "Invalid or expired token"
	MsgTokenRevoked       = "Token has been revoked"
	MsgTokenNotFound      = "Token not found"
	MsgLogoutSuccessful   = "Logout successful"
)
