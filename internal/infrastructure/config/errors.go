package config

import "errors"

// Domain errors for configuration.
var (
	// ErrNoPath is returned when saving a document that has no file path.
	ErrNoPath = errors.New("config: document has no path")

	// ErrInvalidDocument is returned for files that are not sectioned key/value data.
	ErrInvalidDocument = errors.New("config: invalid document")

	// ErrInvalidConfig is returned when validation fails.
	ErrInvalidConfig = errors.New("config: invalid configuration")
)
