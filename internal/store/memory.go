package store

import (
	"context"
	"sync"

	"github.com/ILLUVRSE/pizza-rewards/internal/coupon"
)

// MemoryLedger is a process-local ledger for development and tests.
type MemoryLedger struct {
	mu      sync.RWMutex
	coupons map[string]coupon.Code
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{coupons: map[string]coupon.Code{}}
}

func (m *MemoryLedger) Claim(ctx context.Context, code coupon.Code) (coupon.Code, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.coupons[code.UserHash]; ok {
		return existing, false, nil
	}
	m.coupons[code.UserHash] = code
	return code, true, nil
}

func (m *MemoryLedger) Lookup(ctx context.Context, userHash string) (coupon.Code, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.coupons[userHash]
	if !ok {
		return coupon.Code{}, ErrNotFound
	}
	return c, nil
}

// Len reports how many coupons have been issued.
func (m *MemoryLedger) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.coupons)
}

func (m *MemoryLedger) Ping(ctx context.Context) error { return nil }

func (m *MemoryLedger) Close() error { return nil }
