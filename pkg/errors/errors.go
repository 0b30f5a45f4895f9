// Package errors defines the typed failure modes of the analytics
// core. The taxonomy is deliberately small: too little data is a
// recoverable "no result yet", a missing threshold table skips one
// metric kind, and degenerate statistics never surface at all.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel targets for errors.Is checks.
var (
	ErrInsufficientData           = errors.New("insufficient data")
	ErrInvalidMetricConfiguration = errors.New("invalid metric configuration")
)

// InsufficientDataError signals that an analysis was requested over
// fewer points than it needs. Callers should treat it as "no result
// yet" rather than a failure.
type InsufficientDataError struct {
	Needed int
	Got    int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: need %d points, got %d", e.Needed, e.Got)
}

func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

// NewInsufficientData builds an InsufficientDataError.
func NewInsufficientData(needed, got int) error {
	return &InsufficientDataError{Needed: needed, Got: got}
}

// IsInsufficientData reports whether err is an insufficient-data
// condition anywhere in its chain.
func IsInsufficientData(err error) bool {
	return errors.Is(err, ErrInsufficientData)
}

// InvalidMetricConfigurationError signals a missing or malformed
// threshold table for one metric kind. Analysis for that kind is
// skipped; other kinds proceed.
type InvalidMetricConfigurationError struct {
	Kind string
}

func (e *InvalidMetricConfigurationError) Error() string {
	return fmt.Sprintf("invalid metric configuration for %q", e.Kind)
}

func (e *InvalidMetricConfigurationError) Is(target error) bool {
	return target == ErrInvalidMetricConfiguration
}

// NewInvalidMetricConfiguration builds an InvalidMetricConfigurationError.
func NewInvalidMetricConfiguration(kind string) error {
	return &InvalidMetricConfigurationError{Kind: kind}
}
