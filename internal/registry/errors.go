package registry

import "errors"

// Domain errors for the device registry.
var (
	// ErrInvalidIdentity is returned when identity text cannot be parsed.
	ErrInvalidIdentity = errors.New("registry: invalid identity")
)
