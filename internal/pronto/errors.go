package pronto

import "errors"

// Domain errors for Pronto conversion.
var (
	// ErrMalformedCode is returned when the input is not a well-formed
	// Pronto code (bad hex group, short preamble, length mismatch).
	ErrMalformedCode = errors.New("pronto: malformed code")

	// ErrUnsupportedFormat is returned when the leading code is not 0000
	// (only raw, learned-style Pronto codes are supported).
	ErrUnsupportedFormat = errors.New("pronto: unsupported format")
)
