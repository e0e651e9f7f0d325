package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies a failure by who caused it and whether retrying can help.
type Kind string

const (
	// BadRequest is a client-caused failure (webhook auth, bad payload). Never retried.
	BadRequest Kind = "bad_request"
	// Unavailable is a dependency outage (secret store, queue). Safe to retry upstream.
	Unavailable Kind = "unavailable"
	// InvalidRecord is a malformed queued message. Not retried, goes to the dead-letter path.
	InvalidRecord Kind = "invalid_record"
	// DeliveryFailed means the chat endpoint rejected or never answered after all attempts.
	DeliveryFailed Kind = "delivery_failed"
	// TooLarge is a request the queue can never carry. Never retried.
	TooLarge Kind = "too_large"
)

func (k Kind) String() string { return string(k) }

// Error is a classified failure. Msg is safe to show to callers; Err may not be.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	if e.Msg == "" {
		return e.Err.Error()
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, apperr.New(apperr.Unavailable, ""))
// works as a kind test.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Msg == "" || t.Msg == e.Msg)
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Message returns the caller-safe message of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return "internal error"
}

// Retryable reports whether redelivering the work item can succeed later.
func Retryable(err error) bool {
	switch KindOf(err) {
	case Unavailable, DeliveryFailed:
		return true
	default:
		return false
	}
}

// HTTPStatus maps err to the status code returned to webhook senders.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case BadRequest, InvalidRecord:
		return http.StatusBadRequest
	case Unavailable, DeliveryFailed:
		return http.StatusServiceUnavailable
	case TooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}
