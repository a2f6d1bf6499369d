package dbscan

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is matched by every construction failure.
	ErrConfiguration = errors.New("dbscan: invalid configuration")
	// ErrInvalidInput is matched when the point slice cannot be clustered.
	ErrInvalidInput = errors.New("dbscan: invalid input")
	// ErrDistance is matched when the distance capability fails for a pair.
	ErrDistance = errors.New("dbscan: distance computation failed")
)

// ConfigurationError reports a rejected constructor argument.
type ConfigurationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("dbscan: invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// Is lets errors.Is(err, ErrConfiguration) match.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// InvalidInputError reports the first nil point in the input.
type InvalidInputError struct {
	Index int
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("dbscan: nil point at index %d", e.Index)
}

// Is lets errors.Is(err, ErrInvalidInput) match.
func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// DistanceError wraps a failure of the distance capability between the
// points at input indices I and J.
type DistanceError struct {
	I, J int
	Err  error
}

func (e *DistanceError) Error() string {
	return fmt.Sprintf("dbscan: distance(%d, %d): %v", e.I, e.J, e.Err)
}

// Unwrap returns the caller's original error.
func (e *DistanceError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrDistance) match.
func (e *DistanceError) Is(target error) bool {
	return target == ErrDistance
}
