/*
store.go - Persistence interfaces for mandates and withdrawals

KEY INTERFACES:
  Store:           Mandate records (save, get, list, delete)
  WithdrawalStore: Append-only withdrawal history
  Repository:      Both, as the Service needs them

APPEND-ONLY CONTRACT:
  Withdrawals are never updated. A second AppendWithdrawal for the same
  (mandate, date) fails with ErrDuplicateWithdrawal.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - mandate/store/memory.go: In-memory for testing
*/
package mandate

import (
	"context"

	"github.com/warp/withdrawal-bands/band"
)

// Store persists mandates.
type Store interface {
	// SaveMandate inserts or replaces a mandate.
	SaveMandate(ctx context.Context, m Mandate) error

	// GetMandate returns nil, nil when the mandate doesn't exist.
	GetMandate(ctx context.Context, id MandateID) (*Mandate, error)

	// ListMandates returns all mandates ordered by ID.
	ListMandates(ctx context.Context) ([]Mandate, error)

	// DeleteMandate removes a mandate. Its withdrawal history is kept.
	DeleteMandate(ctx context.Context, id MandateID) error
}

// WithdrawalStore persists the withdrawal history.
type WithdrawalStore interface {
	// AppendWithdrawal records a withdrawal. Returns ErrDuplicateWithdrawal
	// if one already exists for the same mandate and date.
	AppendWithdrawal(ctx context.Context, w Withdrawal) error

	// ListWithdrawals returns a mandate's withdrawals ordered by Date.
	ListWithdrawals(ctx context.Context, id MandateID) ([]Withdrawal, error)

	// FindWithdrawal returns nil, nil when nothing is scheduled on date.
	FindWithdrawal(ctx context.Context, id MandateID, date band.Date) (*Withdrawal, error)
}

// Repository is the full persistence surface used by Service.
type Repository interface {
	Store
	WithdrawalStore
}
