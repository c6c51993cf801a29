package domain

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Kind is the closed set of failure categories surfaced to callers.
type Kind string

const (
	KindBadRequest     Kind = "BAD_REQUEST"
	KindUnauthorized   Kind = "UNAUTHORIZED"
	KindForbidden      Kind = "FORBIDDEN"
	KindConflict       Kind = "CONFLICT"
	KindInvalidRequest Kind = "INVALID_REQUEST"
	KindUpstream       Kind = "UPSTREAM_ERROR"
)

// Status returns the HTTP status a kind is reported with.
func (k Kind) Status() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindInvalidRequest:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

// Error is the failure variant of every core operation. Details holds the
// upstream body (or a JSON string describing a transport failure) verbatim.
type Error struct {
	Kind    Kind            `json:"-"`
	Status  int             `json:"status"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details,omitempty"`

	cause error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

func newError(kind Kind, message string, details json.RawMessage) *Error {
	return &Error{
		Kind:    kind,
		Status:  kind.Status(),
		Code:    string(kind),
		Message: message,
		Details: details,
	}
}

func BadRequest(message string) *Error {
	return newError(KindBadRequest, message, nil)
}

func Unauthorized(message string) *Error {
	return newError(KindUnauthorized, message, nil)
}

func Forbidden(message string) *Error {
	return newError(KindForbidden, message, nil)
}

func Conflict(message string, details json.RawMessage) *Error {
	return newError(KindConflict, message, details)
}

func InvalidRequest(message string, details json.RawMessage) *Error {
	return newError(KindInvalidRequest, message, details)
}

// Upstream reports a failed or unusable upstream call. cause may be nil.
func Upstream(message string, details json.RawMessage, cause error) *Error {
	e := newError(KindUpstream, message, details)
	e.cause = cause
	return e
}

// AsError returns err as a *Error. Errors outside the taxonomy are reported
// as upstream failures carrying their text as details.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return Upstream("Internal error", RawDetails([]byte(err.Error())), err)
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var de *Error
	return errors.As(err, &de) && de.Kind == kind
}

// RawDetails keeps body verbatim when it is valid JSON and encodes it as a
// JSON string otherwise. An empty body yields nil.
func RawDetails(body []byte) json.RawMessage {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	encoded, err := json.Marshal(string(body))
	if err != nil {
		return nil
	}
	return encoded
}
