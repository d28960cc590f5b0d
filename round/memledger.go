package round

import (
	"context"
	"sync"
)

// MemoryLedger is an in-process FundsLedger. It backs local development and
// tests, and serves as the fallback when the escrow contract is not
// configured. Unknown players are seeded with a starting balance on first
// touch.
type MemoryLedger struct {
	mu              sync.Mutex
	startingBalance float64
	balances        map[string]float64
	locked          map[string]float64
}

func NewMemoryLedger(startingBalance float64) *MemoryLedger {
	return &MemoryLedger{
		startingBalance: startingBalance,
		balances:        make(map[string]float64),
		locked:          make(map[string]float64),
	}
}

func (m *MemoryLedger) touch(player string) {
	if _, ok := m.balances[player]; !ok {
		m.balances[player] = m.startingBalance
	}
}

func (m *MemoryLedger) Balance(ctx context.Context, player string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touch(player)
	return m.balances[player] - m.locked[player], nil
}

func (m *MemoryLedger) Lock(ctx context.Context, player string, amount float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touch(player)
	if m.balances[player]-m.locked[player] < amount {
		return ErrInsufficientBalance
	}
	m.locked[player] += amount
	return nil
}

func (m *MemoryLedger) Release(ctx context.Context, player string, amount float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locked[player] -= amount
	if m.locked[player] < 0 {
		m.locked[player] = 0
	}
	return nil
}

func (m *MemoryLedger) Settle(ctx context.Context, player string, delta float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touch(player)
	m.balances[player] += delta
	return nil
}

// Credit adds funds outside of settlement. Test and dev convenience.
func (m *MemoryLedger) Credit(player string, amount float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touch(player)
	m.balances[player] += amount
}
