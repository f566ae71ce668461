package disparity

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidBlockSize is returned when the block size is negative, zero or even.
	ErrInvalidBlockSize = errors.New("invalid block size")
	// ErrInvalidScanSteps is returned when a scan step count is negative.
	ErrInvalidScanSteps = errors.New("invalid scan steps")
	// ErrUnsupportedMetric is returned for any metric other than SAD.
	ErrUnsupportedMetric = errors.New("unsupported disparity metric")
	// ErrUnsupportedAlgorithm is returned when the selector does not know the strategy name.
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")

	// ErrEmptyImage is returned when an input image is nil or has no pixels.
	ErrEmptyImage = errors.New("empty image")
	// ErrImageSizeMismatch is returned when left, right and output dimensions disagree.
	ErrImageSizeMismatch = errors.New("image size mismatch")

	// ErrNotConfigured is returned when a strategy is used before a successful Configure.
	ErrNotConfigured = errors.New("strategy not configured")
	// ErrClosed is returned when a strategy is used after Close.
	ErrClosed = errors.New("strategy closed")

	// ErrBackendUnavailable indicates the device backend is not available in this build or on this host.
	ErrBackendUnavailable = errors.New("device backend unavailable")
	// ErrInvalidKernelArg is returned when a kernel argument has the wrong index or type.
	ErrInvalidKernelArg = errors.New("invalid kernel argument")
)

// ConfigError reports a parameter that failed validation.
// It unwraps to one of ErrInvalidBlockSize, ErrInvalidScanSteps or ErrUnsupportedMetric.
type ConfigError struct {
	Field  string
	Value  int
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%v: %s=%d: %s", e.Err, e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// DeviceError wraps a failure reported by a device backend.
// Log carries the backend's diagnostic output (for example a program build log) verbatim.
type DeviceError struct {
	Op  string
	Log string
	Err error
}

func (e *DeviceError) Error() string {
	if e.Log == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v\n%s", e.Op, e.Err, e.Log)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}
