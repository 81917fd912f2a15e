package goSession

import (
	"errors"

	"github.com/MrEthical07/goSession/authapi"
	"github.com/MrEthical07/goSession/credstore"
	"github.com/MrEthical07/goSession/refresh"
	"github.com/MrEthical07/goSession/session"
)

var (
	// ErrNetwork is returned when a call produced no response (offline,
	// timeout, cancelled context). Never retried automatically.
	ErrNetwork = authapi.ErrNetwork
	// ErrUnauthorized marks an expired access token. It is handled inside
	// the gateway and never returned by Client.Do.
	ErrUnauthorized = authapi.ErrUnauthorized
	// ErrSessionInvalid is terminal: the session could not be recovered and
	// the client is now signed out.
	ErrSessionInvalid = authapi.ErrSessionInvalid
	// ErrValidation is a 4xx rejection other than 401. The server message is
	// available through [StatusError].
	ErrValidation = authapi.ErrValidation
	// ErrServer is a 5xx or otherwise unusable response.
	ErrServer = authapi.ErrServer
	// ErrStorage is a credential persistence failure.
	ErrStorage = credstore.ErrStorage
	// ErrInvalidTransition is returned when a session event is not allowed
	// from the current state.
	ErrInvalidTransition = session.ErrInvalidTransition
	// ErrSuperseded is returned by Login and Register when a logout or a newer
	// attempt happened while the attempt was in flight.
	ErrSuperseded = refresh.ErrSuperseded

	// ErrNotStarted is returned by operations that need Start to have
	// resolved the initial state.
	ErrNotStarted = errors.New("goSession: client not started")
	// ErrAlreadyAuthenticated is returned by Login and Register while a
	// session is active.
	ErrAlreadyAuthenticated = errors.New("goSession: already authenticated")
	// ErrAuthInProgress is returned when a login or registration is already
	// running.
	ErrAuthInProgress = errors.New("goSession: authentication in progress")
	// ErrClientClosed is returned after Close.
	ErrClientClosed = errors.New("goSession: client closed")
)

// StatusError is a non-2xx response. It unwraps to one of ErrUnauthorized,
// ErrValidation or ErrServer.
type StatusError = authapi.StatusError

// UserMessage returns text that is safe to show to an end user.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrStorage):
		return "Your sign-in could not be saved on this device. Please sign in again."
	case errors.Is(err, ErrAuthInProgress):
		return "Signing in, please wait."
	case errors.Is(err, ErrSuperseded):
		return "Sign-in was cancelled."
	}
	return authapi.UserMessage(err)
}
