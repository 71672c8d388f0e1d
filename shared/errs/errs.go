// Package errs holds the error kinds shared by repositories, services and
// handlers. Callers classify errors with errors.Is against the sentinels.
package errs

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrDuplicate  = errors.New("duplicate")
	ErrForbidden  = errors.New("forbidden")
	ErrTransport  = errors.New("notification transport failed")
)

// ErrInvalidCredentials is returned when a supplied password does not match
// the stored hash. It is a validation error.
var ErrInvalidCredentials = &Error{Kind: ErrValidation, Msg: "current password is incorrect"}

// Error carries a client-safe message together with its kind and an optional cause.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func NotFound(msg string) error {
	return &Error{Kind: ErrNotFound, Msg: msg}
}

func Validation(msg string) error {
	return &Error{Kind: ErrValidation, Msg: msg}
}

func Duplicate(msg string) error {
	return &Error{Kind: ErrDuplicate, Msg: msg}
}

func Forbidden(msg string) error {
	return &Error{Kind: ErrForbidden, Msg: msg}
}

// Transport wraps a delivery failure so callers can tell it apart from
// persistence failures.
func Transport(cause error) error {
	return &Error{Kind: ErrTransport, Msg: "notification delivery failed", Err: cause}
}

// Message returns the client-safe message of err, or fallback when err does
// not carry one.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return fallback
}
