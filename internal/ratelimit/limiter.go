// Package ratelimit enforces request spacing and persisted quotas for the
// reputation service.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/BhargaviGangoor/Wassup-Guard/internal/guard"
)

// StateStore persists limiter counters across process restarts.
// guard.Database satisfies this.
type StateStore interface {
	LoadRateLimitState(name string) (*guard.RateLimitState, error)
	SaveRateLimitState(name string, state *guard.RateLimitState) error
}

// Limits holds the externally imposed ceilings.
type Limits struct {
	// MinInterval is the minimum spacing between granted requests.
	MinInterval time.Duration
	// PerDay and PerMonth cap granted-and-succeeded requests per UTC
	// calendar day and month.
	PerDay   int
	PerMonth int
}

const (
	dayKeyFormat   = "2006-01-02"
	monthKeyFormat = "2006-01"
)

// Limiter gates remote lookups. All counter state lives behind one mutex
// and is persisted after every mutation, so quotas survive restarts and
// concurrent callers can never jointly violate the spacing or the
// ceilings.
//
// Window identifiers are UTC calendar day and month. When the observed
// identifier differs from the persisted one the counter resets to zero.
type Limiter struct {
	name   string
	limits Limits
	store  StateStore
	clock  guard.Clock
	logger guard.Logger

	// sleep is swapped out in tests to avoid real waiting.
	sleep func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	loaded bool
	state  guard.RateLimitState
}

var _ guard.RateLimiter = (*Limiter)(nil)

// NewLimiter creates a limiter whose state is persisted under name.
func NewLimiter(name string, limits Limits, store StateStore, clock guard.Clock, logger guard.Logger) *Limiter {
	return &Limiter{
		name:   name,
		limits: limits,
		store:  store,
		clock:  clock,
		logger: logger,
		sleep:  sleepContext,
	}
}

// Acquire returns nil once a remote call may proceed. A spent day or
// month quota yields guard.ErrQuotaExhausted immediately: waiting cannot
// help within the current window. Otherwise the caller is assigned the
// next free spacing slot and Acquire sleeps until it arrives, honoring
// context cancellation.
//
// Slot assignment happens under the mutex before sleeping, so concurrent
// callers receive distinct slots at least MinInterval apart, in arrival
// order.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()

	if err := l.ensureLoadedLocked(); err != nil {
		l.mu.Unlock()
		return err
	}

	now := l.clock.Now().UTC()
	l.rolloverLocked(now)

	if l.limits.PerDay > 0 && l.state.DayCount >= l.limits.PerDay {
		l.mu.Unlock()
		l.logger.Warn("daily quota exhausted", "count", l.state.DayCount, "limit", l.limits.PerDay)
		return fmt.Errorf("daily limit of %d reached: %w", l.limits.PerDay, guard.ErrQuotaExhausted)
	}
	if l.limits.PerMonth > 0 && l.state.MonthCount >= l.limits.PerMonth {
		l.mu.Unlock()
		l.logger.Warn("monthly quota exhausted", "count", l.state.MonthCount, "limit", l.limits.PerMonth)
		return fmt.Errorf("monthly limit of %d reached: %w", l.limits.PerMonth, guard.ErrQuotaExhausted)
	}

	// Reserve the next spacing slot. The reservation is persisted before
	// the wait so a restart cannot hand out an overlapping slot.
	slot := now
	if !l.state.LastGrantedAt.IsZero() {
		if earliest := l.state.LastGrantedAt.Add(l.limits.MinInterval); earliest.After(slot) {
			slot = earliest
		}
	}
	l.state.LastGrantedAt = slot
	if err := l.persistLocked(); err != nil {
		l.mu.Unlock()
		return err
	}
	l.mu.Unlock()

	if wait := slot.Sub(now); wait > 0 {
		l.logger.Debug("spacing remote request", "wait", wait)
		if err := l.sleep(ctx, wait); err != nil {
			return fmt.Errorf("waiting for request slot: %w", err)
		}
	}
	return nil
}

// RecordSuccess consumes one unit of day and month quota. Call only after
// the remote request actually succeeded; denied or failed requests must
// not consume quota.
func (l *Limiter) RecordSuccess() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureLoadedLocked(); err != nil {
		return err
	}

	l.rolloverLocked(l.clock.Now().UTC())
	l.state.DayCount++
	l.state.MonthCount++

	l.logger.Debug("request recorded",
		"day", l.state.DayCount, "day_limit", l.limits.PerDay,
		"month", l.state.MonthCount, "month_limit", l.limits.PerMonth)

	return l.persistLocked()
}

// Usage returns the current counters and ceilings.
func (l *Limiter) Usage() (guard.Usage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureLoadedLocked(); err != nil {
		return guard.Usage{}, err
	}
	l.rolloverLocked(l.clock.Now().UTC())

	return guard.Usage{
		DayCount:   l.state.DayCount,
		DayLimit:   l.limits.PerDay,
		MonthCount: l.state.MonthCount,
		MonthLimit: l.limits.PerMonth,
	}, nil
}

// Reset zeroes all counters and persists the empty state.
func (l *Limiter) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now().UTC()
	l.state = guard.RateLimitState{
		DayKey:   now.Format(dayKeyFormat),
		MonthKey: now.Format(monthKeyFormat),
	}
	l.loaded = true
	l.logger.Info("rate limiter counters reset")
	return l.persistLocked()
}

// ensureLoadedLocked reads persisted state on first use each process run.
func (l *Limiter) ensureLoadedLocked() error {
	if l.loaded {
		return nil
	}
	state, err := l.store.LoadRateLimitState(l.name)
	if err != nil {
		return fmt.Errorf("loading rate limit state: %w", err)
	}
	if state != nil {
		l.state = *state
	}
	l.loaded = true
	return nil
}

// rolloverLocked resets counters whose persisted window identifier no
// longer matches the current UTC day or month.
func (l *Limiter) rolloverLocked(now time.Time) {
	dayKey := now.Format(dayKeyFormat)
	if l.state.DayKey != dayKey {
		if l.state.DayKey != "" {
			l.logger.Debug("day window rolled over", "from", l.state.DayKey, "to", dayKey)
		}
		l.state.DayKey = dayKey
		l.state.DayCount = 0
	}

	monthKey := now.Format(monthKeyFormat)
	if l.state.MonthKey != monthKey {
		if l.state.MonthKey != "" {
			l.logger.Debug("month window rolled over", "from", l.state.MonthKey, "to", monthKey)
		}
		l.state.MonthKey = monthKey
		l.state.MonthCount = 0
	}
}

func (l *Limiter) persistLocked() error {
	state := l.state
	if err := l.store.SaveRateLimitState(l.name, &state); err != nil {
		return fmt.Errorf("saving rate limit state: %w", err)
	}
	return nil
}

// sleepContext sleeps for d or until ctx is canceled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
