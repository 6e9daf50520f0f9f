package imu

import (
	"errors"
	"fmt"
)

// ErrUnavailable is returned by a source that has no sample ready yet.
var ErrUnavailable = errors.New("sample not available yet")

// SchemaError reports a malformed or wrong-arity input record.
// The record is discarded; acquisition continues.
type SchemaError struct {
	Want   int
	Got    int
	Reason string
	Line   string
}

func (e *SchemaError) Error() string {
	msg := fmt.Sprintf("schema error: want %d channels, got %d", e.Want, e.Got)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Line != "" {
		msg += fmt.Sprintf(" (line %q)", e.Line)
	}
	return msg
}

// DeviceError reports that the sample source is unavailable or disconnected.
// It is fatal to the session.
type DeviceError struct {
	Device string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device %s: %v", e.Device, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// IsSchemaError reports whether err carries a *SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// IsDeviceError reports whether err carries a *DeviceError.
func IsDeviceError(err error) bool {
	var de *DeviceError
	return errors.As(err, &de)
}
