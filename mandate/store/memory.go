// Package store provides in-memory mandate.Repository implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/withdrawal-bands/band"
	"github.com/warp/withdrawal-bands/mandate"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	mandates    map[mandate.MandateID]mandate.Mandate
	withdrawals map[mandate.MandateID][]mandate.Withdrawal
}

var _ mandate.Repository = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		mandates:    make(map[mandate.MandateID]mandate.Mandate),
		withdrawals: make(map[mandate.MandateID][]mandate.Withdrawal),
	}
}

func (m *Memory) SaveMandate(_ context.Context, md mandate.Mandate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mandates[md.ID] = md
	return nil
}

func (m *Memory) GetMandate(_ context.Context, id mandate.MandateID) (*mandate.Mandate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	md, ok := m.mandates[id]
	if !ok {
		return nil, nil
	}
	return &md, nil
}

func (m *Memory) ListMandates(_ context.Context) ([]mandate.Mandate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]mandate.Mandate, 0, len(m.mandates))
	for _, md := range m.mandates {
		result = append(result, md)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) DeleteMandate(_ context.Context, id mandate.MandateID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.mandates, id)
	return nil
}

// AppendWithdrawal keeps each mandate's history sorted by date.
func (m *Memory) AppendWithdrawal(_ context.Context, w mandate.Withdrawal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ws := m.withdrawals[w.MandateID]
	i := sort.Search(len(ws), func(i int) bool {
		return !ws[i].Date.Before(w.Date)
	})
	if i < len(ws) && ws[i].Date.Equal(w.Date) {
		return &mandate.DuplicateWithdrawalError{MandateID: w.MandateID, Date: w.Date}
	}

	ws = append(ws, mandate.Withdrawal{})
	copy(ws[i+1:], ws[i:])
	ws[i] = w
	m.withdrawals[w.MandateID] = ws
	return nil
}

func (m *Memory) ListWithdrawals(_ context.Context, id mandate.MandateID) ([]mandate.Withdrawal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]mandate.Withdrawal, len(m.withdrawals[id]))
	copy(result, m.withdrawals[id])
	return result, nil
}

func (m *Memory) FindWithdrawal(_ context.Context, id mandate.MandateID, date band.Date) (*mandate.Withdrawal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, w := range m.withdrawals[id] {
		if w.Date.Equal(date) {
			found := w
			return &found, nil
		}
	}
	return nil, nil
}
