// Package store provides MovementStore implementations.
package store

import (
	"context"
	"sync"

	"github.com/mellovesfromage/warehouse-system/stock"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu    sync.RWMutex
	all   []stock.Movement
	byKey map[stock.StockKey][]int // indexes into all
	ids   map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		byKey: make(map[stock.StockKey][]int),
		ids:   make(map[string]bool),
	}
}

// Append adds a single movement. Append-only.
func (m *Memory) Append(_ context.Context, mv stock.Movement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ids[mv.ID] {
		return stock.ErrDuplicateMovement
	}
	m.appendLocked(mv)
	return nil
}

// AppendBatch adds multiple movements atomically.
func (m *Memory) AppendBatch(_ context.Context, ms []stock.Movement) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Check all ids first (atomic check)
	seen := make(map[string]bool, len(ms))
	for _, mv := range ms {
		if m.ids[mv.ID] || seen[mv.ID] {
			return stock.ErrDuplicateMovement
		}
		seen[mv.ID] = true
	}

	for _, mv := range ms {
		m.appendLocked(mv)
	}
	return nil
}

func (m *Memory) appendLocked(mv stock.Movement) {
	m.all = append(m.all, mv)
	k := mv.Key()
	m.byKey[k] = append(m.byKey[k], len(m.all)-1)
	m.ids[mv.ID] = true
}

func (m *Memory) Load(_ context.Context, key stock.StockKey) ([]stock.Movement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx := m.byKey[key]
	result := make([]stock.Movement, len(idx))
	for i, j := range idx {
		result[i] = m.all[j]
	}
	return result, nil
}

func (m *Memory) LoadAll(_ context.Context) ([]stock.Movement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]stock.Movement, len(m.all))
	copy(result, m.all)
	return result, nil
}

func (m *Memory) Query(_ context.Context, f stock.MovementFilter) ([]stock.Movement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []stock.Movement
	for i := len(m.all) - 1; i >= 0; i-- {
		if !f.Matches(m.all[i]) {
			continue
		}
		result = append(result, m.all[i])
		if f.Limit > 0 && len(result) == f.Limit {
			break
		}
	}
	return result, nil
}

// Len returns the number of stored movements.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.all)
}
