package gattc

import (
	stderrors "errors"
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidState rejects a request not allowed in the current
	// connection state, e.g. Connect while not disconnected.
	ErrInvalidState = errors.New("invalid connection state")

	// ErrNotConnected rejects a GATT operation issued while the link is
	// down. The operation is never queued.
	ErrNotConnected = errors.New("not connected")

	// ErrQueueFull rejects an operation when the command queue is at its
	// configured depth limit.
	ErrQueueFull = errors.New("operation queue full")

	// ErrDisconnected fails queued operations flushed by a disconnect.
	ErrDisconnected = errors.New("disconnected")
)

// InvalidArgumentError rejects a request before it is queued: wrong
// capability, bad payload size, disallowed write mode, MTU out of range.
type InvalidArgumentError struct {
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return "invalid argument: " + e.Reason
}

// InvalidArgf builds an InvalidArgumentError from a format string.
func InvalidArgf(format string, args ...interface{}) error {
	return &InvalidArgumentError{Reason: fmt.Sprintf(format, args...)}
}

// IsInvalidArgument reports whether err is a validation failure.
func IsInvalidArgument(err error) bool {
	var ia *InvalidArgumentError
	return stderrors.As(err, &ia)
}

// OpStatusError carries the non-success status a hardware callback reported
// for one specific operation.
type OpStatusError struct {
	Op     string
	Status GattStatus
}

func (e *OpStatusError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Op, e.Status)
}

// NewStatusError wraps a hardware status in an error.
func NewStatusError(op string, status GattStatus) error {
	return &OpStatusError{Op: op, Status: status}
}

// StatusOf extracts the hardware status from err, or OpStatusError's zero
// value and false when err carries none.
func StatusOf(err error) (GattStatus, bool) {
	var se *OpStatusError
	if stderrors.As(err, &se) {
		return se.Status, true
	}
	return StatusSuccess, false
}
