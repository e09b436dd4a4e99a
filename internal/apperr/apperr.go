// Package apperr defines the error kinds shared by the authentication,
// authorization and tool-execution layers. Callers branch on Kind instead of
// inspecting error strings.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for control flow and for the message shown to the caller.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuthentication
	KindTokenExpired
	KindTokenInvalid
	KindAuthorization
	KindValidation
	KindNotFound
	KindStorage
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindTokenExpired:
		return "token_expired"
	case KindTokenInvalid:
		return "token_invalid"
	case KindAuthorization:
		return "authorization"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindStorage:
		return "storage"
	case KindConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// Error carries a Kind together with the operation that failed.
// Reason is internal detail (e.g. "account disabled") and is never shown to
// the caller for authentication failures.
type Error struct {
	Err    error
	Op     string
	Reason string
	Kind   Kind
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind.
func New(kind Kind, op, reason string) *Error {
	return &Error{Kind: kind, Op: op, Reason: reason}
}

// Wrap attaches a kind to an underlying error.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Authentication(op, reason string) *Error {
	return New(KindAuthentication, op, reason)
}

func Authorization(op, reason string) *Error {
	return New(KindAuthorization, op, reason)
}

func Validation(op string, format string, args ...any) *Error {
	return New(KindValidation, op, fmt.Sprintf(format, args...))
}

func Storage(op string, err error) *Error {
	return Wrap(KindStorage, op, err)
}

func Configuration(op, reason string) *Error {
	return New(KindConfiguration, op, reason)
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsToken reports whether err is an expired or invalid token error.
func IsToken(err error) bool {
	k := KindOf(err)
	return k == KindTokenExpired || k == KindTokenInvalid
}

// PublicMessage is the text safe to show to an end user.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "internal error"
	}
	switch e.Kind {
	case KindAuthentication:
		return "invalid username or password"
	case KindTokenExpired:
		return "session expired, please log in again"
	case KindTokenInvalid:
		return "invalid session, please log in again"
	case KindAuthorization:
		return "operation not permitted"
	case KindValidation, KindNotFound:
		return e.Reason
	default:
		return "internal error"
	}
}
