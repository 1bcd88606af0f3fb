package testutil

import (
	"context"
	"sync"

	"github.com/BhargaviGangoor/Wassup-Guard/internal/guard"
)

// StubRateLimiter grants every request immediately unless exhausted.
type StubRateLimiter struct {
	mu        sync.Mutex
	exhausted bool
	acquired  int
	succeeded int
}

func NewStubRateLimiter() *StubRateLimiter {
	return &StubRateLimiter{}
}

// Exhaust makes subsequent Acquire calls fail with ErrQuotaExhausted.
func (l *StubRateLimiter) Exhaust() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.exhausted = true
}

// Acquired returns how many slots were granted.
func (l *StubRateLimiter) Acquired() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.acquired
}

func (l *StubRateLimiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.exhausted {
		return guard.ErrQuotaExhausted
	}
	l.acquired++
	return nil
}

func (l *StubRateLimiter) RecordSuccess() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.succeeded++
	return nil
}

func (l *StubRateLimiter) Usage() (guard.Usage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return guard.Usage{DayCount: l.succeeded, MonthCount: l.succeeded}, nil
}

func (l *StubRateLimiter) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.succeeded = 0
	return nil
}
