package session

import (
	"sync"
	"time"

	"github.com/dhis2/certification-app-sub003/internal/domain"
)

// Breaker guards the backing store with an explicit closed/open/half-open
// state machine. Consecutive failures past the threshold open it; after the
// cooldown a single trial call decides whether it closes again.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	state    domain.BreakerState
	failures int
	openedAt time.Time
	trialing bool
}

func NewBreaker(threshold int, cooldown time.Duration, now func() time.Time) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	if now == nil {
		now = time.Now
	}
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       now,
		state:     domain.BreakerClosed,
	}
}

// Allow reports whether a store call may proceed. In the open state it admits
// exactly one trial call once the cooldown has elapsed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case domain.BreakerClosed:
		return true
	case domain.BreakerHalfOpen:
		if b.trialing {
			return false
		}
		b.trialing = true
		return true
	case domain.BreakerOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.state = domain.BreakerHalfOpen
		b.trialing = true
		return true
	}
	return false
}

// Success resets the failure count and closes the breaker from half-open.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.trialing = false
	b.state = domain.BreakerClosed
}

// Failure counts a store failure. The threshold transition and the half-open
// reopen both happen here so concurrent callers cannot lose counts.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == domain.BreakerHalfOpen {
		b.state = domain.BreakerOpen
		b.openedAt = b.now()
		b.trialing = false
		return
	}
	b.failures++
	if b.failures >= b.threshold {
		b.state = domain.BreakerOpen
		b.openedAt = b.now()
	}
}

func (b *Breaker) State() domain.BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
