package ai

import (
	"fmt"
	"sync"
	"time"
)

// BudgetChecker checks and records token usage against per-provider budgets.
type BudgetChecker interface {
	// Check returns true if the provider has budget remaining.
	Check(provider string) (bool, error)
	// Record records token usage for a provider.
	Record(provider string, tokens int) error
	// Usage returns current usage for a provider.
	Usage(provider string) (used int64, budget int64, err error)
}

// InMemoryBudget tracks token usage per provider. Usage resets when the
// current window ends; a zero window never resets.
type InMemoryBudget struct {
	mu          sync.RWMutex
	budgets     map[string]int64 // provider -> budget limit
	usage       map[string]int64 // provider -> tokens used
	window      time.Duration
	windowStart time.Time
	now         func() time.Time
}

// NewInMemoryBudget creates a new in-memory budget tracker.
func NewInMemoryBudget(window time.Duration) *InMemoryBudget {
	b := &InMemoryBudget{
		budgets: make(map[string]int64),
		usage:   make(map[string]int64),
		window:  window,
		now:     time.Now,
	}
	b.windowStart = b.now()
	return b
}

// SetBudget sets the token budget for a provider.
func (b *InMemoryBudget) SetBudget(provider string, tokens int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.budgets[provider] = tokens
}

func (b *InMemoryBudget) Check(provider string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollLocked()

	budget, hasBudget := b.budgets[provider]
	if !hasBudget {
		// No budget set means unlimited.
		return true, nil
	}
	return b.usage[provider] < budget, nil
}

func (b *InMemoryBudget) Record(provider string, tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("tokens must be non-negative, got %d", tokens)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollLocked()

	b.usage[provider] += int64(tokens)
	return nil
}

func (b *InMemoryBudget) Usage(provider string) (int64, int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollLocked()

	return b.usage[provider], b.budgets[provider], nil
}

func (b *InMemoryBudget) rollLocked() {
	if b.window <= 0 {
		return
	}
	if now := b.now(); now.Sub(b.windowStart) >= b.window {
		clear(b.usage)
		b.windowStart = now
	}
}
