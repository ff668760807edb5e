/*
Package mandate applies withdrawal bands to direct-debit mandates.

KEY CONCEPTS:
  - Mandate: a debtor's authorisation to collect a recurring amount, with the
    band.Config that decides when each collection may run
  - Withdrawal: a resolved collection date recorded for a mandate

INVARIANT:
  At most one withdrawal per (MandateID, Date). Recording the same date
  twice returns the existing withdrawal.

SEE ALSO:
  - band/resolver.go: Date resolution
  - store/sqlite/sqlite.go: Persistence
  - mandate/store/memory.go: In-memory persistence for tests
*/
package mandate

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/withdrawal-bands/band"
)

type MandateID string
type WithdrawalID string

// Mandate is a recurring direct-debit authorisation.
type Mandate struct {
	ID        MandateID
	Debtor    string
	Reference string // unique mandate reference printed on the debit
	Config    band.Config
	Amount    decimal.Decimal
	Currency  string
	Active    bool
	CreatedAt time.Time
}

// Withdrawal is one collection scheduled for a mandate.
type Withdrawal struct {
	ID            WithdrawalID
	MandateID     MandateID
	ReferenceDate band.Date // day the resolution was made
	Candidate     band.Date
	Date          band.Date // collection date
	Rolled        bool
	Rule          band.Rule
	Amount        decimal.Decimal
	Currency      string
	CreatedAt     time.Time
}

// DefaultCurrency is used when a mandate does not name one.
const DefaultCurrency = "EUR"
