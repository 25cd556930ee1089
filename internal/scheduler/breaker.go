package scheduler

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Breaker trips after a run of consecutive check failures and holds all
// verification work for a cooldown window. Vendor outages and a broken
// worker binary tend to fail every tail in a batch; hammering on is wasted
// quota at best and a block at worst.
type Breaker struct {
	mu        sync.Mutex
	clock     clockwork.Clock
	threshold int
	cooldown  time.Duration

	consecutiveFailures int
	open                bool
	openedAt            time.Time
}

// NewBreaker returns a closed breaker that opens after threshold
// consecutive failures and stays open for cooldown.
func NewBreaker(threshold int, cooldown time.Duration, clock clockwork.Clock) *Breaker {
	return &Breaker{
		clock:     clock,
		threshold: threshold,
		cooldown:  cooldown,
	}
}

// Allow reports whether checks may proceed. When the cooldown has elapsed
// the breaker closes again and the failure count starts from zero.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return true
	}
	if b.clock.Since(b.openedAt) < b.cooldown {
		return false
	}
	b.open = false
	b.consecutiveFailures = 0
	return true
}

// RecordFailure counts one failed check and opens the breaker once the
// threshold is reached.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFailures++
	if !b.open && b.consecutiveFailures >= b.threshold {
		b.open = true
		b.openedAt = b.clock.Now()
	}
}

// RecordSuccess resets the consecutive failure count. Any clean result
// counts, including a negative one.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFailures = 0
}

// IsOpen reports the current state without side effects.
func (b *Breaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open && b.clock.Since(b.openedAt) < b.cooldown
}

// Failures returns the current consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecutiveFailures
}
