// Package errs defines the error taxonomy shared by the store, bus, auth and
// service layers. Components return classified errors; the surface maps them
// to HTTP status codes and stable wire codes without leaking internals.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for transport mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
	KindRateLimited
	KindUnavailable
)

// Stable wire codes surfaced in error envelopes and ws error frames.
const (
	CodeValidationFailed     = "VALIDATION_FAILED"
	CodeAuthenticationFailed = "AUTHENTICATION_FAILED"
	CodeInvalidToken         = "INVALID_TOKEN"
	CodeTokenExpired         = "TOKEN_EXPIRED"
	CodeInvalidRoomPassword  = "INVALID_ROOM_PASSWORD"
	CodeForbidden            = "FORBIDDEN"
	CodeRoomClosed           = "ROOM_CLOSED"
	CodeRoomPrivate          = "ROOM_PRIVATE"
	CodeOwnerCannotLeave     = "OWNER_CANNOT_LEAVE"
	CodeUserNotFound         = "USER_NOT_FOUND"
	CodeRoomNotFound         = "ROOM_NOT_FOUND"
	CodeMessageNotFound      = "MESSAGE_NOT_FOUND"
	CodeMessageDeleted       = "MESSAGE_DELETED"
	CodeNotRoomMember        = "NOT_ROOM_MEMBER"
	CodeUserExists           = "USER_EXISTS"
	CodeRoomExists           = "ROOM_EXISTS"
	CodeMembershipExists     = "MEMBERSHIP_EXISTS"
	CodeTooManyAttempts      = "TOO_MANY_ATTEMPTS"
	CodeRateLimited          = "RATE_LIMITED"
	CodeServiceUnavailable   = "SERVICE_UNAVAILABLE"
	CodeInternal             = "INTERNAL_ERROR"
)

// Error is a classified error with a stable wire code and a client-safe
// message. Err, when set, carries the cause for logs only.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a classified error.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap classifies an underlying error, keeping it for logs.
func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// Validation builds a 422-class error with the default code.
func Validation(message string) *Error {
	return New(KindValidation, CodeValidationFailed, message)
}

// Validationf is Validation with formatting.
func Validationf(format string, args ...any) *Error {
	return Validation(fmt.Sprintf(format, args...))
}

// Unauthenticated builds a 401-class error.
func Unauthenticated(code, message string) *Error {
	return New(KindAuthentication, code, message)
}

// Forbidden builds a 403-class error.
func Forbidden(code, message string) *Error {
	return New(KindAuthorization, code, message)
}

// NotFound builds a 404-class error.
func NotFound(code, message string) *Error {
	return New(KindNotFound, code, message)
}

// Conflict builds a 409-class error.
func Conflict(code, message string) *Error {
	return New(KindConflict, code, message)
}

// RateLimited builds a 429-class error.
func RateLimited(code, message string) *Error {
	return New(KindRateLimited, code, message)
}

// Unavailable builds a 503-class error around a transport failure.
func Unavailable(message string, err error) *Error {
	return Wrap(KindUnavailable, CodeServiceUnavailable, message, err)
}

// Internal wraps an unexpected error; the message shown to clients is generic.
func Internal(err error) *Error {
	return Wrap(KindInternal, CodeInternal, "internal server error", err)
}

// KindOf extracts the kind; unclassified errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf extracts the wire code; unclassified errors report INTERNAL_ERROR.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MessageOf returns the client-safe message. Unclassified errors never leak
// their text.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return "internal server error"
}

// HTTPStatus maps a kind to its response status.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// StatusOf is HTTPStatus(KindOf(err)).
func StatusOf(err error) int {
	return HTTPStatus(KindOf(err))
}
