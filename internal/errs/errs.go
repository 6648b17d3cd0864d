// Package errs is the error taxonomy shared by the AI client, the poster
// service and the operator surfaces.
package errs

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindConfig
	KindTransport
	KindAPI
	KindMalformedResponse
	KindContentPolicy
	KindValidation
	KindNotFound
	KindForbidden
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindTransport:
		return "transport"
	case KindAPI:
		return "api"
	case KindMalformedResponse:
		return "malformed_response"
	case KindContentPolicy:
		return "content_policy"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Error carries a Kind, an operator-facing message and an optional cause.
// Field is set for validation failures.
type Error struct {
	Kind  Kind
	Field string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func E(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func Config(msg string) *Error {
	return &Error{Kind: KindConfig, Msg: msg}
}

func Transport(msg string, err error) *Error {
	return &Error{Kind: KindTransport, Msg: msg, Err: err}
}

func API(msg string, err error) *Error {
	return &Error{Kind: KindAPI, Msg: msg, Err: err}
}

func Malformed(msg string) *Error {
	return &Error{Kind: KindMalformedResponse, Msg: msg}
}

func ContentPolicy(msg string) *Error {
	return &Error{Kind: KindContentPolicy, Msg: msg}
}

func Validation(field, msg string) *Error {
	return &Error{Kind: KindValidation, Field: field, Msg: msg}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Msg: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Msg: msg}
}

func Storage(msg string, err error) *Error {
	return &Error{Kind: KindStorage, Msg: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

const retryMessage = "The content service is unavailable right now. Please try again."

// UserMessage converts err into the text shown to an operator. Provider-side
// and storage details stay in the logs.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return "Something went wrong. Please try again."
	}
	switch e.Kind {
	case KindConfig, KindContentPolicy, KindValidation, KindNotFound, KindForbidden:
		return e.Msg
	case KindTransport, KindAPI, KindMalformedResponse:
		return retryMessage
	default:
		return "Something went wrong. Please try again."
	}
}
