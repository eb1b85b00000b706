// Package kerr defines the kbatch-proxy error taxonomy: a small, closed
// set of error kinds that every handler classifies its failures into at
// the HTTP boundary, mirroring the teacher's security.SecurityError /
// Unwrap() convention.
package kerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies which of the fixed error categories an Error belongs to.
type Kind int

const (
	// Unauthenticated means the request carried no token, or the token
	// could not be validated against the identity service.
	Unauthenticated Kind = iota
	// Forbidden means the token is valid but lacks the scope required
	// for the requested operation.
	Forbidden
	// MalformedWorkload means the submitted body failed to parse or
	// validate.
	MalformedWorkload
	// TooLarge means an attached code blob exceeded the configured cap.
	TooLarge
	// Conflict means the cluster reported a naming conflict.
	Conflict
	// NotFound means the named resource does not exist in the caller's
	// namespace.
	NotFound
	// UpstreamUnavailable means the cluster API was unreachable or
	// returned a 5xx response.
	UpstreamUnavailable
	// Internal means a programming error was caught uniformly rather
	// than classified more precisely.
	Internal
)

// String returns the taxonomy name of k, used in log attributes and error
// messages.
func (k Kind) String() string {
	switch k {
	case Unauthenticated:
		return "unauthenticated"
	case Forbidden:
		return "forbidden"
	case MalformedWorkload:
		return "malformed_workload"
	case TooLarge:
		return "too_large"
	case Conflict:
		return "conflict"
	case NotFound:
		return "not_found"
	case UpstreamUnavailable:
		return "upstream_unavailable"
	case Internal:
		return "internal"
	default:
		return "unknown"
	}
}

// HTTPStatus returns the status code this kind maps to on the wire.
func (k Kind) HTTPStatus() int {
	switch k {
	case Unauthenticated:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case MalformedWorkload:
		return http.StatusBadRequest
	case TooLarge:
		return http.StatusRequestEntityTooLarge
	case Conflict:
		return http.StatusConflict
	case NotFound:
		return http.StatusNotFound
	case UpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is a kbatch-proxy error classified into one of the fixed Kinds,
// wrapping the underlying cause so %w chains and errors.As/Is keep working
// up the call stack.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New constructs a classified Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs a classified Error around an existing cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// As reports whether err is (or wraps) a *kerr.Error, returning it if so.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it is a classified *Error, or Internal
// otherwise — the uniform catch-all for programming errors the taxonomy
// doesn't have a more specific bucket for.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return Internal
}

// MessageOf returns the human-facing message for err, suitable for sending
// to a caller: just the classified Message, never the wrapped cause (which
// may carry internal detail like cluster error bodies or Go error chains).
// Unclassified errors get a generic message rather than their raw text.
func MessageOf(err error) string {
	if e, ok := As(err); ok {
		return e.Message
	}
	return "internal error"
}

func Unauthenticatedf(format string, args ...any) *Error {
	return New(Unauthenticated, fmt.Sprintf(format, args...))
}

func Forbiddenf(format string, args ...any) *Error {
	return New(Forbidden, fmt.Sprintf(format, args...))
}

func MalformedWorkloadf(format string, args ...any) *Error {
	return New(MalformedWorkload, fmt.Sprintf(format, args...))
}

func TooLargef(format string, args ...any) *Error {
	return New(TooLarge, fmt.Sprintf(format, args...))
}

func NotFoundf(format string, args ...any) *Error {
	return New(NotFound, fmt.Sprintf(format, args...))
}
