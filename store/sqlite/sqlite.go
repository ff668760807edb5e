/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

INTERFACES IMPLEMENTED:
  mandate.Store:           Mandate records
  mandate.WithdrawalStore: Withdrawal history (append-only)

KEY TABLES:
  mandates:        Mandates with their band configuration
  withdrawals:     Immutable log of scheduled collections
  scheduler_runs:  One row per scheduler pass, for the admin API

INDEXES:
  - idx_withdrawals_unique: Enforces one withdrawal per mandate and date
  - idx_withdrawals_date:   Upcoming collections across mandates

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single connection, so that
  ":memory:" databases are shared by every query.

USAGE:
  store, err := sqlite.New("./data/withdrawals.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := mandate.NewService(store)

SEE ALSO:
  - mandate/store.go: Interface definitions
  - mandate/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/withdrawal-bands/band"
	"github.com/warp/withdrawal-bands/mandate"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ mandate.Repository = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS mandates (
		id TEXT PRIMARY KEY,
		debtor TEXT NOT NULL,
		reference TEXT,
		band_type TEXT NOT NULL,
		band_width INTEGER NOT NULL,
		anchor_day INTEGER NOT NULL,
		overflow TEXT NOT NULL DEFAULT 'reject',
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	-- Withdrawals (append-only)
	CREATE TABLE IF NOT EXISTS withdrawals (
		id TEXT PRIMARY KEY,
		mandate_id TEXT NOT NULL,
		reference_date TEXT NOT NULL,
		candidate_date TEXT NOT NULL,
		withdrawal_date TEXT NOT NULL,
		rolled BOOLEAN NOT NULL,
		rule TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- A mandate is collected at most once on a given day
	CREATE UNIQUE INDEX IF NOT EXISTS idx_withdrawals_unique
		ON withdrawals(mandate_id, withdrawal_date);

	CREATE INDEX IF NOT EXISTS idx_withdrawals_date
		ON withdrawals(withdrawal_date);

	CREATE TABLE IF NOT EXISTS scheduler_runs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL DEFAULT 'running',
		reference_date TEXT NOT NULL,
		scheduled INTEGER DEFAULT 0,
		skipped INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		error TEXT,
		started_at TEXT NOT NULL,
		completed_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_scheduler_runs_started
		ON scheduler_runs(started_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// MANDATE STORE (mandate.Store interface)
// =============================================================================

const mandateColumns = `id, debtor, reference, band_type, band_width, anchor_day, overflow,
	amount, currency, active, created_at`

// SaveMandate inserts or replaces a mandate.
func (s *Store) SaveMandate(ctx context.Context, m mandate.Mandate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO mandates (` + mandateColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			debtor = excluded.debtor,
			reference = excluded.reference,
			band_type = excluded.band_type,
			band_width = excluded.band_width,
			anchor_day = excluded.anchor_day,
			overflow = excluded.overflow,
			amount = excluded.amount,
			currency = excluded.currency,
			active = excluded.active
	`

	overflow := m.Config.Overflow
	if overflow == "" {
		overflow = band.OverflowReject
	}
	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, query,
		string(m.ID),
		m.Debtor,
		nullString(m.Reference),
		string(m.Config.Type),
		m.Config.Width,
		m.Config.AnchorDay,
		string(overflow),
		m.Amount.String(),
		m.Currency,
		m.Active,
		createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save mandate: %w", err)
	}
	return nil
}

// GetMandate retrieves a mandate by ID. Returns nil, nil if absent.
func (s *Store) GetMandate(ctx context.Context, id mandate.MandateID) (*mandate.Mandate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+mandateColumns+" FROM mandates WHERE id = ?", string(id))

	m, err := scanMandate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMandates returns all mandates.
func (s *Store) ListMandates(ctx context.Context) ([]mandate.Mandate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+mandateColumns+" FROM mandates ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query mandates: %w", err)
	}
	defer rows.Close()

	var mandates []mandate.Mandate
	for rows.Next() {
		m, err := scanMandate(rows)
		if err != nil {
			return nil, err
		}
		mandates = append(mandates, m)
	}
	return mandates, rows.Err()
}

// DeleteMandate removes a mandate. Withdrawals stay as history.
func (s *Store) DeleteMandate(ctx context.Context, id mandate.MandateID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM mandates WHERE id = ?", string(id))
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMandate(row scanner) (mandate.Mandate, error) {
	var m mandate.Mandate
	var id, bandType, overflow, amount, createdAt string
	var reference sql.NullString

	err := row.Scan(&id, &m.Debtor, &reference, &bandType, &m.Config.Width, &m.Config.AnchorDay,
		&overflow, &amount, &m.Currency, &m.Active, &createdAt)
	if err != nil {
		return mandate.Mandate{}, err
	}

	m.ID = mandate.MandateID(id)
	m.Reference = reference.String
	m.Config.Type = band.BandType(bandType)
	m.Config.Overflow = band.OverflowPolicy(overflow)
	if m.Amount, err = decimal.NewFromString(amount); err != nil {
		return mandate.Mandate{}, fmt.Errorf("mandate %s: bad amount %q: %w", id, amount, err)
	}
	m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return m, nil
}

// =============================================================================
// WITHDRAWAL STORE (mandate.WithdrawalStore interface)
// =============================================================================

const withdrawalColumns = `id, mandate_id, reference_date, candidate_date, withdrawal_date,
	rolled, rule, amount, currency, created_at`

// AppendWithdrawal records a withdrawal.
func (s *Store) AppendWithdrawal(ctx context.Context, w mandate.Withdrawal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO withdrawals (` + withdrawalColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	createdAt := w.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, query,
		string(w.ID),
		string(w.MandateID),
		w.ReferenceDate.String(),
		w.Candidate.String(),
		w.Date.String(),
		w.Rolled,
		string(w.Rule),
		w.Amount.String(),
		w.Currency,
		createdAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) && strings.Contains(err.Error(), "withdrawal_date") {
			return &mandate.DuplicateWithdrawalError{MandateID: w.MandateID, Date: w.Date}
		}
		return fmt.Errorf("failed to append withdrawal: %w", err)
	}
	return nil
}

// ListWithdrawals returns a mandate's withdrawals ordered by date.
func (s *Store) ListWithdrawals(ctx context.Context, id mandate.MandateID) ([]mandate.Withdrawal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + withdrawalColumns + `
		FROM withdrawals
		WHERE mandate_id = ?
		ORDER BY withdrawal_date ASC
	`
	return s.queryWithdrawals(ctx, query, string(id))
}

// FindWithdrawal returns the withdrawal of a mandate on date, or nil, nil.
func (s *Store) FindWithdrawal(ctx context.Context, id mandate.MandateID, date band.Date) (*mandate.Withdrawal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + withdrawalColumns + `
		FROM withdrawals
		WHERE mandate_id = ? AND withdrawal_date = ?
	`
	ws, err := s.queryWithdrawals(ctx, query, string(id), date.String())
	if err != nil || len(ws) == 0 {
		return nil, err
	}
	return &ws[0], nil
}

// ListWithdrawalsBetween returns withdrawals of every mandate due in period.
func (s *Store) ListWithdrawalsBetween(ctx context.Context, period band.Period) ([]mandate.Withdrawal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + withdrawalColumns + `
		FROM withdrawals
		WHERE withdrawal_date >= ? AND withdrawal_date <= ?
		ORDER BY withdrawal_date ASC, mandate_id ASC
	`
	return s.queryWithdrawals(ctx, query, period.Start.String(), period.End.String())
}

func (s *Store) queryWithdrawals(ctx context.Context, query string, args ...any) ([]mandate.Withdrawal, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query withdrawals: %w", err)
	}
	defer rows.Close()

	var result []mandate.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	return result, rows.Err()
}

func scanWithdrawal(rows *sql.Rows) (mandate.Withdrawal, error) {
	var w mandate.Withdrawal
	var id, mandateID, referenceDate, candidate, date, rule, amount, createdAt string

	if err := rows.Scan(&id, &mandateID, &referenceDate, &candidate, &date,
		&w.Rolled, &rule, &amount, &w.Currency, &createdAt); err != nil {
		return mandate.Withdrawal{}, err
	}

	w.ID = mandate.WithdrawalID(id)
	w.MandateID = mandate.MandateID(mandateID)
	w.Rule = band.Rule(rule)
	w.ReferenceDate, _ = band.ParseDate(referenceDate)
	w.Candidate, _ = band.ParseDate(candidate)
	w.Date, _ = band.ParseDate(date)
	w.Amount = mustParseDecimal(amount)
	w.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return w, nil
}

// =============================================================================
// SCHEDULER RUNS
// =============================================================================

// SchedulerRun records one pass of the withdrawal scheduler.
type SchedulerRun struct {
	ID            string
	Status        string // running, completed, failed
	ReferenceDate band.Date
	Scheduled     int
	Skipped       int
	Failed        int
	Error         string
	StartedAt     time.Time
	CompletedAt   *time.Time
}

// SaveSchedulerRun inserts or updates a scheduler run.
func (s *Store) SaveSchedulerRun(ctx context.Context, r SchedulerRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO scheduler_runs (id, status, reference_date, scheduled, skipped, failed,
			error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			scheduled = excluded.scheduled,
			skipped = excluded.skipped,
			failed = excluded.failed,
			error = excluded.error,
			completed_at = excluded.completed_at
	`

	var completedAt *string
	if r.CompletedAt != nil {
		c := r.CompletedAt.Format(time.RFC3339)
		completedAt = &c
	}

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.Status, r.ReferenceDate.String(), r.Scheduled, r.Skipped, r.Failed,
		nullString(r.Error), r.StartedAt.Format(time.RFC3339), completedAt,
	)
	return err
}

// GetSchedulerRuns returns the most recent runs first.
func (s *Store) GetSchedulerRuns(ctx context.Context, limit int) ([]SchedulerRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, reference_date, scheduled, skipped, failed, error, started_at, completed_at
		FROM scheduler_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []SchedulerRun
	for rows.Next() {
		var r SchedulerRun
		var referenceDate, startedAt string
		var runErr, completedAt sql.NullString
		if err := rows.Scan(&r.ID, &r.Status, &referenceDate, &r.Scheduled, &r.Skipped, &r.Failed,
			&runErr, &startedAt, &completedAt); err != nil {
			return nil, err
		}
		r.Error = runErr.String
		r.ReferenceDate, _ = band.ParseDate(referenceDate)
		r.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		if completedAt.Valid {
			t, _ := time.Parse(time.RFC3339, completedAt.String)
			r.CompletedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Reset deletes all data (for tests and demos).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"withdrawals", "mandates", "scheduler_runs"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func mustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
