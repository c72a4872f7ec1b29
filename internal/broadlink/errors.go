package broadlink

import (
	"errors"
	"fmt"
)

// Domain errors for the Broadlink transport.
var (
	// ErrAuthFailed is returned when a unit rejects the auth handshake or
	// its session key has expired.
	ErrAuthFailed = errors.New("broadlink: authentication failed")

	// ErrNoData is returned by CheckData while no code has been captured yet.
	ErrNoData = errors.New("broadlink: no data captured yet")

	// ErrStorageNotReady is returned by CheckData while the unit's capture
	// storage is not ready to be read.
	ErrStorageNotReady = errors.New("broadlink: capture storage not ready")

	// ErrDeviceError is returned for any other firmware error code.
	ErrDeviceError = errors.New("broadlink: device error")

	// ErrTimeout is returned when a unit does not answer in time.
	ErrTimeout = errors.New("broadlink: request timed out")

	// ErrInvalidResponse is returned when a response fails validation.
	ErrInvalidResponse = errors.New("broadlink: invalid response")

	// ErrInvalidAddress is returned for unusable host or MAC values.
	ErrInvalidAddress = errors.New("broadlink: invalid address")

	// ErrClosed is returned when using a closed client.
	ErrClosed = errors.New("broadlink: client closed")
)

// Firmware error codes (signed 16-bit, little-endian at header offset 0x22).
const (
	codeAuthentication = -1
	codeStorage        = -5
	codeAuthorization  = -7
	codeRead           = -10
)

// DeviceError carries a firmware error code reported by a unit.
type DeviceError struct {
	Command uint16
	Code    int16
}

// Error implements error.
func (e *DeviceError) Error() string {
	return fmt.Sprintf("broadlink: command %#04x failed with code %d", e.Command, e.Code)
}

// Unwrap maps the firmware code onto the package sentinels so callers can
// use errors.Is.
func (e *DeviceError) Unwrap() error {
	switch e.Code {
	case codeRead:
		return ErrNoData
	case codeStorage:
		return ErrStorageNotReady
	case codeAuthentication, codeAuthorization:
		return ErrAuthFailed
	default:
		return ErrDeviceError
	}
}
