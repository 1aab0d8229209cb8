package vad

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is wrapped by every error caused by malformed slicing or
// collection parameters.
var ErrInvalidConfig = errors.New("invalid configuration")

// ClassificationError is returned when the oracle fails to classify a frame.
// The collection run that hit it is aborted.
type ClassificationError struct {
	Timestamp float64
	Err       error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("failed to classify frame at %.3fs: %s", e.Timestamp, e.Err)
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}
