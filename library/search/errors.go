package search

import (
	"github.com/Laisky/errors/v2"
)

// Kind classifies why a search produced no usable results.
type Kind string

const (
	KindMissingCredential Kind = "missing_credential"
	KindNetwork           Kind = "network"
	KindInvalidJSON       Kind = "invalid_json"
	KindNoResults         Kind = "no_results"
	KindUnauthorized      Kind = "unauthorized"
)

func (k Kind) message() string {
	switch k {
	case KindMissingCredential:
		return "SERPER_API_KEY is not set"
	case KindNetwork:
		return "network issue"
	case KindInvalidJSON:
		return "invalid JSON response"
	case KindNoResults:
		return "no results / invalid key"
	case KindUnauthorized:
		return "invalid credential"
	default:
		return string(k)
	}
}

// Error is returned by engines for every failure that maps onto an Outcome error.
// Error() yields the user-facing message; the underlying cause, if any, is kept for logs.
type Error struct {
	Kind  Kind
	Msg   string
	cause error
}

// NewError builds an Error of kind with its canonical message.
// cause may be nil.
func NewError(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Msg: kind.message(), cause: cause}
}

// NewMissingCredentialError reports that the key named credential was not provided,
// e.g. "SERPAPI_API_KEY is not set".
func NewMissingCredentialError(credential string) *Error {
	if credential == "" {
		return NewError(KindMissingCredential, nil)
	}
	return &Error{Kind: KindMissingCredential, Msg: credential + " is not set"}
}

func (e *Error) Error() string {
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.cause
}

// messageOf returns the user-facing message of err, or "" when err is not a search Error.
func messageOf(err error) string {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.Msg
	}
	return ""
}

// KindOf returns the Kind carried by err, or "" when err is not a search Error.
func KindOf(err error) Kind {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.Kind
	}
	return ""
}
