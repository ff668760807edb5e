/*
errors.go - Error types for band resolution

ERROR CATEGORIES:
  1. Configuration errors - the band definition itself is unusable
  2. Overflow errors - a roll lands on a day the target month does not have

USAGE:
  date, err := band.Resolve(cfg, today)
  if errors.Is(err, band.ErrDateOverflow) {
      // anchor day 29-31 rolled into a shorter month
  }
*/
package band

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidConfiguration is returned when a Config cannot be resolved:
	// unknown band type, negative width or anchor day outside [1,31].
	ErrInvalidConfiguration = errors.New("invalid band configuration")

	// ErrDateOverflow is returned when the anchor day does not exist in the
	// month a candidate falls in and the overflow policy is OverflowReject.
	ErrDateOverflow = errors.New("date overflow")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConfigError describes which field of a Config was rejected.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s=%v: %s", ErrInvalidConfiguration, e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfiguration
}

// OverflowError reports the month that cannot hold the anchor day.
type OverflowError struct {
	Year  int
	Month time.Month
	Day   int
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("%s: day %d does not exist in %s %d (%d days)",
		ErrDateOverflow, e.Day, e.Month, e.Year, DaysIn(e.Year, e.Month))
}

func (e *OverflowError) Unwrap() error {
	return ErrDateOverflow
}

// IsClientError returns true if the error is due to caller-supplied input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrDateOverflow)
}
