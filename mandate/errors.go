package mandate

import (
	"errors"
	"fmt"

	"github.com/warp/withdrawal-bands/band"
)

var (
	// ErrMandateNotFound is returned when a referenced mandate doesn't exist.
	ErrMandateNotFound = errors.New("mandate not found")

	// ErrMandateExists is returned when creating a mandate under a taken ID.
	ErrMandateExists = errors.New("mandate already exists")

	// ErrDuplicateWithdrawal is returned by a store when a withdrawal already
	// exists for the same mandate and date.
	ErrDuplicateWithdrawal = errors.New("withdrawal already scheduled")

	// ErrInactiveMandate is returned when scheduling against a revoked mandate.
	ErrInactiveMandate = errors.New("mandate is not active")

	// ErrInvalidMandate is returned when mandate fields fail validation.
	ErrInvalidMandate = errors.New("invalid mandate")
)

// DuplicateWithdrawalError names the conflicting withdrawal.
type DuplicateWithdrawalError struct {
	MandateID MandateID
	Date      band.Date
}

func (e *DuplicateWithdrawalError) Error() string {
	return fmt.Sprintf("%s: mandate %s on %s", ErrDuplicateWithdrawal, e.MandateID, e.Date)
}

func (e *DuplicateWithdrawalError) Unwrap() error {
	return ErrDuplicateWithdrawal
}

func invalidMandate(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidMandate, fmt.Sprintf(format, args...))
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidMandate) ||
		errors.Is(err, ErrInactiveMandate) ||
		band.IsClientError(err)
}

// IsNotFound returns true if the error indicates a missing mandate.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrMandateNotFound)
}
