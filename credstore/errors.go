package credstore

import "errors"

var (
	// ErrStorage wraps every backend or codec failure surfaced by a [Store].
	ErrStorage = errors.New("credential storage error")
	// ErrCorrupt marks stored data that could not be opened or decoded.
	ErrCorrupt = errors.New("stored credentials corrupt")
	// ErrNotFound is returned by a [Backend] when the key holds no value.
	ErrNotFound = errors.New("credential key not found")
	// ErrInvalidPair is returned when saving a pair with a missing token.
	ErrInvalidPair = errors.New("invalid credential pair")
)
