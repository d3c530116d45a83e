package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound         = errors.New("resource not found")
	ErrRunNotFound      = fmt.Errorf("%w: run", ErrNotFound)
	ErrArtifactNotFound = fmt.Errorf("%w: artifact", ErrNotFound)

	// ErrConfigInvalid marks static parameters that failed validation before
	// any processing began. Fatal to the run.
	ErrConfigInvalid = errors.New("invalid configuration")

	// ErrDataQuality marks a single acquisition date with no usable imagery.
	// The date is dropped and reported; the run continues.
	ErrDataQuality = errors.New("no usable imagery")

	// ErrInsufficientData marks a statistical step with too few points.
	// Returned to the caller, never retried.
	ErrInsufficientData = errors.New("insufficient data for analysis")

	// ErrImageUnavailable is the imagery provider's explicit signal that a
	// requested date has no image (cloud exclusion, gap in the archive).
	ErrImageUnavailable = errors.New("image unavailable")

	// Determinism errors
	ErrSeedMismatch = errors.New("seed mismatch")
	ErrHashMismatch = errors.New("hash mismatch")
)

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewConfigError(field string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrConfigInvalid, field, reason)
}

func NewDataQualityError(date Date, reason string) error {
	return fmt.Errorf("%w for %s: %s", ErrDataQuality, date, reason)
}

func NewInsufficientDataError(op string, have, want int) error {
	return fmt.Errorf("%w: %s needs at least %d points, have %d", ErrInsufficientData, op, want, have)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConfigError(err error) bool {
	return errors.Is(err, ErrConfigInvalid)
}

func IsDataQualityError(err error) bool {
	return errors.Is(err, ErrDataQuality)
}

func IsInsufficientDataError(err error) bool {
	return errors.Is(err, ErrInsufficientData)
}

func IsImageUnavailable(err error) bool {
	return errors.Is(err, ErrImageUnavailable)
}
