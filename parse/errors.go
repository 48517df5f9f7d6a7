package parse

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceNotFound is returned when a source identifier does not resolve
	// to a readable blob.
	ErrSourceNotFound = errors.New("source not found")

	// ErrDecode marks failures to parse raw bytes into a Batch.
	ErrDecode = errors.New("decode error")

	// ErrValidation marks batches that decoded but violate an invariant.
	ErrValidation = errors.New("validation error")

	// ErrEndOfStream is returned by Next once the source is exhausted.
	ErrEndOfStream = errors.New("end of stream")

	// ErrClosed is returned by Next after Close.
	ErrClosed = errors.New("loader closed")
)

// DecodeError wraps a decoder failure with the index of the offending record.
type DecodeError struct {
	Index int
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode record %d: %v", e.Index, e.Err)
}

func (e *DecodeError) Unwrap() []error {
	return []error{ErrDecode, e.Err}
}

// ValidationError reports why a decoded batch was rejected. Index is the
// source record index, or -1 when the batch was validated outside a loader.
type ValidationError struct {
	Index  int
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return "invalid batch: " + e.Reason
	}
	return fmt.Sprintf("invalid batch at record %d: %s", e.Index, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
