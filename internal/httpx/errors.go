// Package httpx holds the response envelope and the error taxonomy shared by
// every handler. Handlers return *Error values and WriteError maps them to a
// status code in one place.
package httpx

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindNotFound
	KindConflict
	KindTooManyRequests
	KindTimeout
	KindUpstream
	KindUnavailable
)

const (
	CodeRequiredAuthorization = "required_authorization"
	CodeInternalServerError   = "internal_server_error"
	CodeInvalidRequestBody    = "invalid_request_body"
	CodeTooManyRequests       = "too_many_requests"
	CodeRequestTimeout        = "request_timeout"
)

func (k Kind) Status() int {
	switch k {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	case KindTimeout:
		return http.StatusRequestTimeout
	case KindUpstream:
		return http.StatusBadGateway
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindTooManyRequests:
		return "too_many_requests"
	case KindTimeout:
		return "timeout"
	case KindUpstream:
		return "upstream"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Error is a handler outcome with a stable, client-visible code. Err carries
// the underlying cause for logs and is never written to the client.
type Error struct {
	Kind Kind
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(code string) *Error {
	return &Error{Kind: KindValidation, Code: code}
}

func NotFound(code string) *Error {
	return &Error{Kind: KindNotFound, Code: code}
}

func Conflict(code string) *Error {
	return &Error{Kind: KindConflict, Code: code}
}

func Unauthorized() *Error {
	return &Error{Kind: KindUnauthorized, Code: CodeRequiredAuthorization}
}

// Upstream reports a failed call to a dependency such as remote storage.
func Upstream(code string, err error) *Error {
	return &Error{Kind: KindUpstream, Code: code, Err: err}
}

func Unavailable(code string, err error) *Error {
	return &Error{Kind: KindUnavailable, Code: code, Err: err}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternalServerError, Err: err}
}

// AsError returns err as an *Error, treating anything untagged as internal.
func AsError(err error) *Error {
	var target *Error
	if errors.As(err, &target) {
		return target
	}
	return Internal(err)
}
