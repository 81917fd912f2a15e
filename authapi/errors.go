package authapi

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNetwork is returned when the request never produced a response
	// (connect failure, timeout, cancelled context).
	ErrNetwork = errors.New("authapi: network failure")
	// ErrUnauthorized is returned for 401 responses.
	ErrUnauthorized = errors.New("authapi: unauthorized")
	// ErrSessionInvalid marks a session that cannot be recovered and requires
	// a new login.
	ErrSessionInvalid = errors.New("authapi: session invalid")
	// ErrValidation is returned for 4xx responses other than 401.
	ErrValidation = errors.New("authapi: request rejected")
	// ErrServer is returned for 5xx, unexpected statuses and undecodable
	// success bodies.
	ErrServer = errors.New("authapi: server error")
)

// StatusError is a non-2xx response from the server.
type StatusError struct {
	Status  int
	Message string
	Details map[string]any
	kind    error
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%v (status %d)", e.kind, e.Status)
	}
	return fmt.Sprintf("%v (status %d): %s", e.kind, e.Status, e.Message)
}

// Unwrap returns the kind sentinel so callers can use errors.Is.
func (e *StatusError) Unwrap() error {
	return e.kind
}

// Kind returns the sentinel this status maps to.
func (e *StatusError) Kind() error {
	return e.kind
}

// KindForStatus maps an HTTP status to an error kind. 2xx returns nil.
func KindForStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status >= 400 && status < 500:
		return ErrValidation
	default:
		return ErrServer
	}
}

func newStatusError(status int, body []byte) *StatusError {
	se := &StatusError{Status: status, kind: KindForStatus(status)}
	if msg, details, ok := parseErrorBody(body); ok {
		se.Message = msg
		se.Details = details
	}
	return se
}

func networkError(err error) error {
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}

// UserMessage returns text that is safe to show to an end user. Validation
// messages are passed through verbatim; every other kind gets a generic
// message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var se *StatusError
	switch {
	case errors.Is(err, ErrSessionInvalid):
		return "Your session has expired. Please sign in again."
	case errors.Is(err, ErrValidation):
		if errors.As(err, &se) && se.Message != "" {
			return se.Message
		}
		return "The request was rejected."
	case errors.Is(err, ErrUnauthorized):
		if errors.As(err, &se) && se.Message != "" {
			return se.Message
		}
		return "Invalid email or password."
	case errors.Is(err, ErrNetwork):
		return "Unable to reach the server. Check your connection and try again."
	case errors.Is(err, ErrServer):
		return "Something went wrong on our side. Please try again later."
	default:
		return "Something went wrong. Please try again."
	}
}
