// Package authapi is the wire client for the remote Auth Server and the
// authenticated domain API.
//
// It classifies every response into the error taxonomy shared by the rest of
// the module: transport failures are [ErrNetwork], 401 is [ErrUnauthorized],
// other 4xx are [ErrValidation] and 5xx are [ErrServer]. Status errors carry
// the server message and details in a [*StatusError].
package authapi
