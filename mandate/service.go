package mandate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/warp/withdrawal-bands/band"
)

// =============================================================================
// SERVICE - Mandate lifecycle and withdrawal scheduling
// =============================================================================

// Service resolves and records withdrawals for stored mandates.
type Service struct {
	repo     Repository
	resolver *band.Resolver
}

// NewService creates a service resolving against the system clock.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, resolver: band.NewResolver()}
}

// WithResolver replaces the resolver, typically to inject a fixed clock.
func (s *Service) WithResolver(r *band.Resolver) *Service {
	s.resolver = r
	return s
}

// Today returns the reference date the service uses when none is given.
func (s *Service) Today() band.Date {
	return s.resolver.Today()
}

// CreateMandate validates m, assigns missing defaults and stores it.
// An ID already in use yields ErrMandateExists.
func (s *Service) CreateMandate(ctx context.Context, m Mandate) (Mandate, error) {
	if m.ID == "" {
		m.ID = MandateID(uuid.NewString())
	}
	if m.Currency == "" {
		m.Currency = DefaultCurrency
	}
	m.Currency = strings.ToUpper(m.Currency)
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if err := Validate(m); err != nil {
		return Mandate{}, err
	}
	existing, err := s.repo.GetMandate(ctx, m.ID)
	if err != nil {
		return Mandate{}, err
	}
	if existing != nil {
		return Mandate{}, fmt.Errorf("%w: %s", ErrMandateExists, m.ID)
	}
	if err := s.repo.SaveMandate(ctx, m); err != nil {
		return Mandate{}, err
	}
	return m, nil
}

// Validate checks the mandate fields and its band configuration.
func Validate(m Mandate) error {
	if m.ID == "" {
		return invalidMandate("id is required")
	}
	if strings.TrimSpace(m.Debtor) == "" {
		return invalidMandate("debtor is required")
	}
	if !m.Amount.IsPositive() {
		return invalidMandate("amount must be positive, got %s", m.Amount)
	}
	if len(m.Currency) != 3 {
		return invalidMandate("currency must be a 3-letter code, got %q", m.Currency)
	}
	return m.Config.Validate()
}

// Get returns a mandate or ErrMandateNotFound.
func (s *Service) Get(ctx context.Context, id MandateID) (*Mandate, error) {
	m, err := s.repo.GetMandate(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrMandateNotFound
	}
	return m, nil
}

// NextWithdrawal resolves the mandate's next withdrawal as seen on today.
// A zero today means the resolver's clock.
func (s *Service) NextWithdrawal(ctx context.Context, id MandateID, today band.Date) (band.Resolution, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return band.Resolution{}, err
	}
	return band.Explain(m.Config, s.reference(today))
}

// Upcoming lists the mandate's next n withdrawal dates.
func (s *Service) Upcoming(ctx context.Context, id MandateID, today band.Date, n int) ([]band.Date, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return band.Upcoming(m.Config, s.reference(today), n)
}

// Schedule resolves the next withdrawal and records it. Scheduling the same
// date twice returns the withdrawal recorded first.
func (s *Service) Schedule(ctx context.Context, id MandateID, today band.Date) (Withdrawal, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return Withdrawal{}, err
	}
	if !m.Active {
		return Withdrawal{}, ErrInactiveMandate
	}
	res, err := band.Explain(m.Config, s.reference(today))
	if err != nil {
		return Withdrawal{}, err
	}
	return s.record(ctx, *m, res)
}

// History returns the recorded withdrawals of a mandate.
func (s *Service) History(ctx context.Context, id MandateID) ([]Withdrawal, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListWithdrawals(ctx, id)
}

func (s *Service) record(ctx context.Context, m Mandate, res band.Resolution) (Withdrawal, error) {
	w := Withdrawal{
		ID:            WithdrawalID(uuid.NewString()),
		MandateID:     m.ID,
		ReferenceDate: res.Reference,
		Candidate:     res.Candidate,
		Date:          res.Date,
		Rolled:        res.Rolled,
		Rule:          res.Rule,
		Amount:        m.Amount,
		Currency:      m.Currency,
		CreatedAt:     time.Now().UTC(),
	}

	err := s.repo.AppendWithdrawal(ctx, w)
	if errors.Is(err, ErrDuplicateWithdrawal) {
		existing, findErr := s.repo.FindWithdrawal(ctx, m.ID, res.Date)
		if findErr != nil {
			return Withdrawal{}, findErr
		}
		if existing != nil {
			return *existing, nil
		}
	}
	if err != nil {
		return Withdrawal{}, err
	}
	return w, nil
}

func (s *Service) reference(today band.Date) band.Date {
	if today.IsZero() {
		return s.resolver.Today()
	}
	return today
}
