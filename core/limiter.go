package core

import (
	"fmt"
	"sync"
)

// TurnLimiter counts bot turns against a budget. The controller uses one to
// cap how many turns chain after a single trigger; budget callbacks use one
// per controller lifetime. A limit of 0 means unlimited.
type TurnLimiter struct {
	mu    sync.Mutex
	limit int
	taken int
}

// NewTurnLimiter creates a limiter allowing limit turns between resets.
func NewTurnLimiter(limit int) *TurnLimiter {
	return &TurnLimiter{limit: limit}
}

// Increment records one turn. It returns an error wrapping ErrTurnLimit when
// the turn would exceed the budget; the turn is still counted.
func (l *TurnLimiter) Increment() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.taken++
	if l.limit > 0 && l.taken > l.limit {
		return fmt.Errorf("%w: %d turns", ErrTurnLimit, l.limit)
	}
	return nil
}

// Reset starts a new budget window.
func (l *TurnLimiter) Reset() {
	l.mu.Lock()
	l.taken = 0
	l.mu.Unlock()
}

// Count returns the turns recorded since the last reset.
func (l *TurnLimiter) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.taken
}

// Limit returns the configured budget.
func (l *TurnLimiter) Limit() int { return l.limit }

// Remaining returns the turns left in the window, or -1 when unlimited.
func (l *TurnLimiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.limit == 0 {
		return -1
	}
	return max(l.limit-l.taken, 0)
}
