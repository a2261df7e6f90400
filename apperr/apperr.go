// Package apperr defines the error kinds shared by every service and how they
// are rendered over HTTP.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuth
	KindForbidden
	KindNotFound
	KindRateLimited
	KindUpstream
)

func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *Error  { return New(KindValidation, message) }
func Auth(message string) *Error        { return New(KindAuth, message) }
func Forbidden(message string) *Error   { return New(KindForbidden, message) }
func NotFound(message string) *Error    { return New(KindNotFound, message) }
func RateLimited(message string) *Error { return New(KindRateLimited, message) }

// KindOf reports the kind of err, KindInternal for anything unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Public returns the status code and the message that may be shown to a
// client. Internal and upstream failures never expose their cause.
func Public(err error) (int, string) {
	var e *Error
	if !errors.As(err, &e) || e.Kind == KindInternal || e.Kind == KindUpstream {
		return http.StatusInternalServerError, "Internal server error"
	}
	return e.Kind.Status(), e.Message
}
