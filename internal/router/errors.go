package router

import "errors"

// Domain errors for message routing.
var (
	// ErrNoHandler is reported when no route matches a topic.
	ErrNoHandler = errors.New("router: no handler for topic")

	// ErrAmbiguousRoute is returned by NewTable when an earlier route would
	// capture topics meant for a later one.
	ErrAmbiguousRoute = errors.New("router: route shadowed by an earlier route")

	// ErrUnknownSubject is reported when a named device or command does not exist.
	ErrUnknownSubject = errors.New("router: unknown subject")

	// ErrDeviceUnreachable is reported when a device cannot be opened.
	ErrDeviceUnreachable = errors.New("router: device unreachable")

	// ErrInvalidPayload is reported when a payload is empty or unusable.
	ErrInvalidPayload = errors.New("router: invalid payload")

	// ErrHandlerPanic is reported when a handler panics.
	ErrHandlerPanic = errors.New("router: handler panic")
)
