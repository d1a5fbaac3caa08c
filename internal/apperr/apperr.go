// Package apperr defines the error kinds shared by the server and the client.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindAuth
	KindConfig
	KindUpstream
	KindProvider
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAuth:
		return "auth"
	case KindConfig:
		return "config"
	case KindUpstream:
		return "upstream"
	case KindProvider:
		return "provider"
	case KindNetwork:
		return "network"
	default:
		return "internal"
	}
}

// Error is an error with a kind and a message safe to show to callers.
// Status overrides the kind's default HTTP status when non-zero.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

func Auth(msg string) *Error {
	return &Error{Kind: KindAuth, Message: msg}
}

// Credentials is the login failure: an auth error reported as 400.
func Credentials(msg string) *Error {
	return &Error{Kind: KindAuth, Message: msg, Status: http.StatusBadRequest}
}

func Config(msg string) *Error {
	return &Error{Kind: KindConfig, Message: msg}
}

func Upstream(msg string, status int, err error) *Error {
	return &Error{Kind: KindUpstream, Message: msg, Status: status, Err: err}
}

func Provider(msg string, err error) *Error {
	return &Error{Kind: KindProvider, Message: msg, Err: err}
}

func Network(msg string, err error) *Error {
	return &Error{Kind: KindNetwork, Message: msg, Err: err}
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps err to the status code a handler should answer with.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	if e.Status >= 400 && e.Status <= 599 {
		return e.Status
	}
	switch e.Kind {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the text written into {"error": ...} bodies. Internal
// errors never leak their cause.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) || e.Kind == KindInternal {
		return "Internal server error"
	}
	return e.Message
}
