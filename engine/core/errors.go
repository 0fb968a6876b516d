package core

import (
	"errors"
)

var (
	ErrUninitialized     = errors.New("library not initialized")
	ErrInvalidVersion    = errors.New("library version mismatch")
	ErrInvalidParameter  = errors.New("invalid parameter")
	ErrUnsupportedDevice = errors.New("unsupported device")
	ErrResourceFailure   = errors.New("resource allocation failed")
	ErrAPIError          = errors.New("graphics api error")
	ErrUnknown           = errors.New("unknown")
)

/** @brief Result taxonomy returned by every public entry point. */
type Status int

const (
	STATUS_OK Status = iota
	STATUS_UNINITIALIZED
	STATUS_INVALID_VERSION
	STATUS_INVALID_PARAMETER
	STATUS_UNSUPPORTED_DEVICE
	STATUS_RESOURCE_FAILURE
	STATUS_API_ERROR
	STATUS_UNKNOWN
)

var statusErrors = []struct {
	status Status
	err    error
}{
	{STATUS_UNINITIALIZED, ErrUninitialized},
	{STATUS_INVALID_VERSION, ErrInvalidVersion},
	{STATUS_INVALID_PARAMETER, ErrInvalidParameter},
	{STATUS_UNSUPPORTED_DEVICE, ErrUnsupportedDevice},
	{STATUS_RESOURCE_FAILURE, ErrResourceFailure},
	{STATUS_API_ERROR, ErrAPIError},
}

func (s Status) String() string {
	switch s {
	case STATUS_OK:
		return "OK"
	case STATUS_UNINITIALIZED:
		return "UNINITIALIZED"
	case STATUS_INVALID_VERSION:
		return "INVALID_VERSION"
	case STATUS_INVALID_PARAMETER:
		return "INVALID_PARAMETER"
	case STATUS_UNSUPPORTED_DEVICE:
		return "UNSUPPORTED_DEVICE"
	case STATUS_RESOURCE_FAILURE:
		return "RESOURCE_FAILURE"
	case STATUS_API_ERROR:
		return "API_ERROR"
	default:
		return "UNKNOWN"
	}
}

/**
 * @brief Maps an error, possibly wrapped, back onto its Status.
 * A nil error is STATUS_OK, an error outside the taxonomy is STATUS_UNKNOWN.
 */
func StatusOf(err error) Status {
	if err == nil {
		return STATUS_OK
	}
	for _, se := range statusErrors {
		if errors.Is(err, se.err) {
			return se.status
		}
	}
	return STATUS_UNKNOWN
}

// Err returns the sentinel error for s, nil for STATUS_OK.
func (s Status) Err() error {
	if s == STATUS_OK {
		return nil
	}
	for _, se := range statusErrors {
		if se.status == s {
			return se.err
		}
	}
	return ErrUnknown
}
