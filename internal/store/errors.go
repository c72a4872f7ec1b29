package store

import "errors"

// Domain errors for the command store.
var (
	// ErrInvalidName is returned for empty names and for names the topic tree
	// or the config file cannot carry.
	ErrInvalidName = errors.New("store: invalid name")

	// ErrInvalidCode is returned for command codes that are empty or not hex.
	ErrInvalidCode = errors.New("store: invalid code")

	// ErrPersist is returned when the config file cannot be rewritten.
	ErrPersist = errors.New("store: persisting inventory")
)
